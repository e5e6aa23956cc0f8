// internal/store/store.go
package store

import (
	"context"
	"time"

	"github-project-tracker/internal/model"
)

// Store is the persistence boundary consumed by the reconciliation engine,
// the progress analyzer, the task service and the sync orchestrator. Absent
// rows are reported as pgx.ErrNoRows by the Postgres implementation; tests
// substitute mocks.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, title, description string) (model.Project, error)
	GetProject(ctx context.Context, id int64) (model.Project, error)
	DeleteProject(ctx context.Context, id int64) error
	ConnectRepo(ctx context.Context, id int64, repoURL string, token *string) error
	SetSyncStatus(ctx context.Context, id int64, status model.SyncStatus) error
	MarkSynced(ctx context.Context, id int64, at time.Time) error

	// Members
	AddMember(ctx context.Context, m model.ProjectMember) error
	GetMember(ctx context.Context, projectID int64, userName string) (model.ProjectMember, error)
	RemoveMember(ctx context.Context, projectID int64, userName string) error
	ListMembers(ctx context.Context, projectID int64) ([]model.ProjectMember, error)

	// Tasks
	CreateTask(ctx context.Context, t model.Task) (model.Task, error)
	GetTask(ctx context.Context, id int64) (model.Task, error)
	UpdateTask(ctx context.Context, t model.Task) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	ListTasks(ctx context.Context, projectID int64) ([]model.Task, error)
	CountTasksByStatus(ctx context.Context, projectID int64) (map[model.TaskStatus]int, error)

	// Upstream-owned records (keyed upserts)
	GetCommitBySHA(ctx context.Context, projectID int64, sha string) (model.Commit, error)
	UpsertCommit(ctx context.Context, c model.Commit) error
	UpsertCommitFile(ctx context.Context, f model.CommitFile) error
	UpsertIssue(ctx context.Context, i model.Issue) error
	UpsertBranch(ctx context.Context, b model.Branch) error
	ListCommits(ctx context.Context, projectID int64) ([]model.Commit, error)
	ListOpenIssues(ctx context.Context, projectID int64, limit int) ([]model.Issue, error)

	// Aggregations
	GetCodeStats(ctx context.Context, projectID int64) (model.CodeStats, error)
	GetContributions(ctx context.Context, projectID int64) ([]model.Contribution, error)
}
