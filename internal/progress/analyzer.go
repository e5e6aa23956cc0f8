// internal/progress/analyzer.go
package progress

import (
	"context"
	"math"

	"github-project-tracker/internal/model"
	"github-project-tracker/internal/store"
)

// Analyzer computes a progress snapshot for a project from the store alone.
// It performs no writes and no upstream calls, so it is safe to run
// concurrently with an in-flight sync; it sees whatever is committed at read
// time.
type Analyzer struct {
	store store.Store
}

// New creates an Analyzer reading from the given store.
func New(s store.Store) *Analyzer {
	return &Analyzer{store: s}
}

// Analyze builds the snapshot: task completion, commit aggregates, the code
// activity heuristic, and the per-author contribution breakdown.
func (a *Analyzer) Analyze(ctx context.Context, projectID int64) (model.ProgressSnapshot, error) {
	counts, err := a.store.CountTasksByStatus(ctx, projectID)
	if err != nil {
		return model.ProgressSnapshot{}, err
	}
	tasks := taskStats(counts)

	code, err := a.store.GetCodeStats(ctx, projectID)
	if err != nil {
		return model.ProgressSnapshot{}, err
	}

	contributions, err := a.store.GetContributions(ctx, projectID)
	if err != nil {
		return model.ProgressSnapshot{}, err
	}

	return model.ProgressSnapshot{
		Tasks:         tasks,
		Code:          code,
		CodeProgress:  CodeProgress(code.CommitCount),
		Contributions: contributions,
	}, nil
}

func taskStats(counts map[model.TaskStatus]int) model.TaskStats {
	stats := model.TaskStats{
		Todo:       counts[model.TaskTodo],
		InProgress: counts[model.TaskInProgress],
		Done:       counts[model.TaskDone],
		Cancelled:  counts[model.TaskCancelled],
	}
	stats.Total = stats.Todo + stats.InProgress + stats.Done + stats.Cancelled
	stats.Progress = TaskProgress(stats.Done, stats.Total)
	return stats
}

// TaskProgress is the completion ratio as a rounded percentage, 0 for an
// empty project.
func TaskProgress(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

// CodeProgress maps a commit count onto a 0–100 scale in steps of ten.
// This is a coarse activity indicator, not a calibrated percentage; it only
// promises to grow with activity and saturate at 100.
func CodeProgress(commitCount int) int {
	p := int(math.RoundToEven(float64(commitCount)/10)) * 10
	if p > 100 {
		return 100
	}
	return p
}
