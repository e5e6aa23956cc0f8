// internal/model/snapshot.go
package model

// TaskStats is the task-completion side of a progress snapshot.
type TaskStats struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
	Cancelled  int `json:"cancelled"`
	// Progress is round(100 * Done / Total), 0 when Total is 0.
	Progress int `json:"progress"`
}

// CodeStats aggregates the stored commit activity of a project.
type CodeStats struct {
	CommitCount  int `json:"commit_count"`
	LinesAdded   int `json:"lines_added"`
	LinesDeleted int `json:"lines_deleted"`
	// ActiveDays counts distinct calendar dates with at least one commit.
	ActiveDays int `json:"active_days"`
}

// Contribution is one author's share of the commit activity.
type Contribution struct {
	Author       string `json:"author"`
	CommitCount  int    `json:"commit_count"`
	LinesAdded   int    `json:"lines_added"`
	LinesDeleted int    `json:"lines_deleted"`
}

// ProgressSnapshot combines the task and code views of one project at read
// time. CodeProgress is a coarse activity indicator, not a calibrated
// percentage.
type ProgressSnapshot struct {
	Tasks         TaskStats      `json:"tasks"`
	Code          CodeStats      `json:"code"`
	CodeProgress  int            `json:"code_progress"`
	Contributions []Contribution `json:"contributions"`
}

// SyncSummary is returned to the caller after a completed sync.
type SyncSummary struct {
	CommitsSynced int              `json:"commitsSynced"`
	IssuesFound   int              `json:"issuesFound"`
	BranchesFound int              `json:"branchesFound"`
	Progress      ProgressSnapshot `json:"progress"`
}
