// internal/reconcile/reconcile.go
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github-project-tracker/internal/github"
	"github-project-tracker/internal/model"
	"github-project-tracker/internal/store"
)

// maxIssueBodyRunes caps the issue body stored for downstream consumption.
const maxIssueBodyRunes = 2000

// Reconciler merges fetched upstream activity into the store using keyed
// upserts. It never touches locally-owned fields such as task linkage.
type Reconciler struct {
	store  store.Store
	logger *slog.Logger
	// now is injected for testability.
	now func() time.Time
}

// New creates a Reconciler writing through the given store.
func New(s store.Store, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: s, logger: logger, now: time.Now}
}

// UpsertCommit persists one commit and, when stats are present, its per-file
// changes. The merge policy for stats fields is applied here, in code, so it
// stays portable across storage backends: a nil incoming stats value never
// erases a previously stored one.
func (r *Reconciler) UpsertCommit(ctx context.Context, projectID int64, summary github.CommitSummary, stats *github.CommitStats) error {
	existing, err := r.store.GetCommitBySHA(ctx, projectID, summary.SHA)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	merged := mergeCommit(existing, projectID, summary, stats)
	if err := r.store.UpsertCommit(ctx, merged); err != nil {
		return err
	}

	if stats == nil {
		return nil
	}
	for _, f := range stats.Files {
		file := model.CommitFile{
			ProjectID: projectID,
			SHA:       summary.SHA,
			Path:      f.Path,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Patch:     f.Patch,
		}
		if err := r.store.UpsertCommitFile(ctx, file); err != nil {
			// File rows always travel with stats, so a failed row will be
			// repaired by the next sync; keep going.
			r.logger.Error("Failed to upsert commit file", "sha", summary.SHA, "path", f.Path, "error", err)
		}
	}
	return nil
}

// mergeCommit applies the per-field overwrite rules:
//   - message, author and date always take the freshly fetched value;
//   - stats fields take the fetched value only when stats were fetched,
//     otherwise the previously stored value is carried forward.
func mergeCommit(existing model.Commit, projectID int64, summary github.CommitSummary, stats *github.CommitStats) model.Commit {
	merged := model.Commit{
		ProjectID:  projectID,
		SHA:        summary.SHA,
		Message:    summary.Message,
		AuthorName: summary.AuthorName,
		CommitDate: summary.CommitDate,
	}
	if stats != nil {
		added, deleted, files := stats.Additions, stats.Deletions, len(stats.Files)
		merged.LinesAdded = &added
		merged.LinesDeleted = &deleted
		merged.FilesChanged = &files
	} else {
		merged.LinesAdded = existing.LinesAdded
		merged.LinesDeleted = existing.LinesDeleted
		merged.FilesChanged = existing.FilesChanged
	}
	return merged
}

// UpsertIssues persists fetched issues, stamping syncedAt. Bodies are
// truncated to a bounded length. Per-record storage failures are logged and
// skipped; the count of successfully stored issues is returned.
func (r *Reconciler) UpsertIssues(ctx context.Context, projectID int64, issues []github.IssueData) int {
	syncedAt := r.now()
	stored := 0
	for _, data := range issues {
		issue := model.Issue{
			ProjectID:       projectID,
			Number:          data.Number,
			Title:           data.Title,
			Body:            truncateRunes(data.Body, maxIssueBodyRunes),
			State:           data.State,
			Assignees:       data.Assignees,
			Labels:          data.Labels,
			GithubCreatedAt: data.CreatedAt,
			GithubUpdatedAt: data.UpdatedAt,
			ClosedAt:        data.ClosedAt,
			SyncedAt:        syncedAt,
		}
		if err := r.store.UpsertIssue(ctx, issue); err != nil {
			r.logger.Error("Failed to upsert issue", "number", data.Number, "error", err)
			continue
		}
		stored++
	}
	return stored
}

// UpsertBranches persists fetched branches, stamping syncedAt. Per-record
// storage failures are logged and skipped.
func (r *Reconciler) UpsertBranches(ctx context.Context, projectID int64, branches []github.BranchData) int {
	syncedAt := r.now()
	stored := 0
	for _, data := range branches {
		branch := model.Branch{
			ProjectID: projectID,
			Name:      data.Name,
			HeadSHA:   data.HeadSHA,
			Protected: data.Protected,
			IsDefault: data.IsDefault,
			SyncedAt:  syncedAt,
		}
		if err := r.store.UpsertBranch(ctx, branch); err != nil {
			r.logger.Error("Failed to upsert branch", "name", data.Name, "error", err)
			continue
		}
		stored++
	}
	return stored
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
