// internal/model/models.go
package model

import (
	"database/sql"
	"time"
)

// TaskStatus enumerates the lifecycle states of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskCancelled  TaskStatus = "cancelled"
)

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone, TaskCancelled:
		return true
	}
	return false
}

// MemberRole enumerates project membership roles.
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleMember MemberRole = "member"
)

// SyncStatus enumerates the synchronization states recorded on a project.
type SyncStatus string

const (
	SyncNever   SyncStatus = "never_synced"
	SyncRunning SyncStatus = "syncing"
	SyncOK      SyncStatus = "synced"
	SyncFail    SyncStatus = "failed"
)

// Project is a locally-owned tracker project, optionally linked to one
// upstream repository.
type Project struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	RepoURL      *string      `json:"repo_url,omitempty"`
	GithubToken  *string      `json:"-"`
	SyncStatus   SyncStatus   `json:"sync_status"`
	LastSyncedAt sql.NullTime `json:"last_synced_at"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// ProjectMember is a (project, user) pair with a role. Exactly one owner
// exists per project.
type ProjectMember struct {
	ProjectID int64      `json:"project_id"`
	UserName  string     `json:"user_name"`
	Role      MemberRole `json:"role"`
}

// Task is a locally-owned unit of work, optionally linked to an upstream
// issue by number.
type Task struct {
	ID                int64      `json:"id"`
	ProjectID         int64      `json:"project_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Status            TaskStatus `json:"status"`
	Assignee          *string    `json:"assignee,omitempty"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	GithubIssueNumber *int       `json:"github_issue_number,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Commit is an upstream-owned commit record, unique by (project, SHA).
// Stats fields are pointers: nil means the value was never fetched and must
// not erase a previously stored value on re-sync.
type Commit struct {
	ID           int64     `json:"id"`
	ProjectID    int64     `json:"project_id"`
	SHA          string    `json:"sha"`
	Message      string    `json:"message"`
	AuthorName   string    `json:"author_name"`
	CommitDate   time.Time `json:"commit_date"`
	LinesAdded   *int      `json:"lines_added,omitempty"`
	LinesDeleted *int      `json:"lines_deleted,omitempty"`
	FilesChanged *int      `json:"files_changed,omitempty"`
}

// CommitFile is a per-file change of one commit, unique by
// (project, SHA, path).
type CommitFile struct {
	ProjectID int64   `json:"project_id"`
	SHA       string  `json:"sha"`
	Path      string  `json:"path"`
	Status    string  `json:"status"`
	Additions int     `json:"additions"`
	Deletions int     `json:"deletions"`
	Patch     *string `json:"patch,omitempty"`
}

// Issue is an upstream-owned issue record, unique by (project, number).
// Assignee and label lists are stored JSON-encoded.
type Issue struct {
	ProjectID       int64      `json:"project_id"`
	Number          int        `json:"number"`
	Title           string     `json:"title"`
	Body            string     `json:"body"`
	State           string     `json:"state"`
	Assignees       []string   `json:"assignees"`
	Labels          []string   `json:"labels"`
	GithubCreatedAt time.Time  `json:"github_created_at"`
	GithubUpdatedAt time.Time  `json:"github_updated_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	SyncedAt        time.Time  `json:"synced_at"`
}

// Branch is an upstream-owned branch record, unique by (project, name).
type Branch struct {
	ProjectID int64     `json:"project_id"`
	Name      string    `json:"name"`
	HeadSHA   string    `json:"head_sha"`
	Protected bool      `json:"protected"`
	IsDefault bool      `json:"is_default"`
	SyncedAt  time.Time `json:"synced_at"`
}
