// internal/store/postgres.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github-project-tracker/internal/model"
)

// Postgres implements Store on top of a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Store backed by the given pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var _ Store = (*Postgres)(nil)

func (p *Postgres) CreateProject(ctx context.Context, title, description string) (model.Project, error) {
	const q = `
		INSERT INTO projects (title, description, sync_status)
		VALUES ($1, $2, $3)
		RETURNING id, title, description, repo_url, github_token, sync_status,
		          last_synced_at, created_at, updated_at`
	return p.scanProject(p.pool.QueryRow(ctx, q, title, description, model.SyncNever))
}

func (p *Postgres) GetProject(ctx context.Context, id int64) (model.Project, error) {
	const q = `
		SELECT id, title, description, repo_url, github_token, sync_status,
		       last_synced_at, created_at, updated_at
		FROM projects WHERE id = $1`
	return p.scanProject(p.pool.QueryRow(ctx, q, id))
}

func (p *Postgres) DeleteProject(ctx context.Context, id int64) error {
	// Project-scoped rows cascade via foreign keys.
	_, err := p.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return err
}

func (p *Postgres) ConnectRepo(ctx context.Context, id int64, repoURL string, token *string) error {
	const q = `
		UPDATE projects SET repo_url = $2, github_token = $3, updated_at = now()
		WHERE id = $1`
	_, err := p.pool.Exec(ctx, q, id, repoURL, token)
	return err
}

func (p *Postgres) SetSyncStatus(ctx context.Context, id int64, status model.SyncStatus) error {
	const q = `UPDATE projects SET sync_status = $2, updated_at = now() WHERE id = $1`
	_, err := p.pool.Exec(ctx, q, id, status)
	return err
}

func (p *Postgres) MarkSynced(ctx context.Context, id int64, at time.Time) error {
	const q = `
		UPDATE projects SET sync_status = $2, last_synced_at = $3, updated_at = now()
		WHERE id = $1`
	_, err := p.pool.Exec(ctx, q, id, model.SyncOK, at)
	return err
}

func (p *Postgres) AddMember(ctx context.Context, m model.ProjectMember) error {
	const q = `INSERT INTO project_members (project_id, user_name, role) VALUES ($1, $2, $3)`
	_, err := p.pool.Exec(ctx, q, m.ProjectID, m.UserName, m.Role)
	return err
}

func (p *Postgres) GetMember(ctx context.Context, projectID int64, userName string) (model.ProjectMember, error) {
	const q = `
		SELECT project_id, user_name, role FROM project_members
		WHERE project_id = $1 AND user_name = $2`
	var m model.ProjectMember
	err := p.pool.QueryRow(ctx, q, projectID, userName).Scan(&m.ProjectID, &m.UserName, &m.Role)
	return m, err
}

func (p *Postgres) RemoveMember(ctx context.Context, projectID int64, userName string) error {
	const q = `DELETE FROM project_members WHERE project_id = $1 AND user_name = $2`
	_, err := p.pool.Exec(ctx, q, projectID, userName)
	return err
}

func (p *Postgres) ListMembers(ctx context.Context, projectID int64) ([]model.ProjectMember, error) {
	const q = `
		SELECT project_id, user_name, role FROM project_members
		WHERE project_id = $1 ORDER BY user_name`
	rows, err := p.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []model.ProjectMember
	for rows.Next() {
		var m model.ProjectMember
		if err := rows.Scan(&m.ProjectID, &m.UserName, &m.Role); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (p *Postgres) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	const q = `
		INSERT INTO tasks (project_id, title, description, status, assignee, due_date, github_issue_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, project_id, title, description, status, assignee, due_date,
		          github_issue_number, created_at, updated_at`
	row := p.pool.QueryRow(ctx, q, t.ProjectID, t.Title, t.Description, t.Status, t.Assignee, t.DueDate, t.GithubIssueNumber)
	return scanTask(row)
}

func (p *Postgres) GetTask(ctx context.Context, id int64) (model.Task, error) {
	const q = `
		SELECT id, project_id, title, description, status, assignee, due_date,
		       github_issue_number, created_at, updated_at
		FROM tasks WHERE id = $1`
	return scanTask(p.pool.QueryRow(ctx, q, id))
}

func (p *Postgres) UpdateTask(ctx context.Context, t model.Task) (model.Task, error) {
	const q = `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, assignee = $5, due_date = $6,
		    github_issue_number = $7, updated_at = now()
		WHERE id = $1
		RETURNING id, project_id, title, description, status, assignee, due_date,
		          github_issue_number, created_at, updated_at`
	row := p.pool.QueryRow(ctx, q, t.ID, t.Title, t.Description, t.Status, t.Assignee, t.DueDate, t.GithubIssueNumber)
	return scanTask(row)
}

func (p *Postgres) DeleteTask(ctx context.Context, id int64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

func (p *Postgres) ListTasks(ctx context.Context, projectID int64) ([]model.Task, error) {
	const q = `
		SELECT id, project_id, title, description, status, assignee, due_date,
		       github_issue_number, created_at, updated_at
		FROM tasks WHERE project_id = $1 ORDER BY created_at`
	rows, err := p.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (p *Postgres) CountTasksByStatus(ctx context.Context, projectID int64) (map[model.TaskStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM tasks WHERE project_id = $1 GROUP BY status`
	rows, err := p.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.TaskStatus]int)
	for rows.Next() {
		var status model.TaskStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (p *Postgres) GetCommitBySHA(ctx context.Context, projectID int64, sha string) (model.Commit, error) {
	const q = `
		SELECT id, project_id, sha, message, author_name, commit_date,
		       lines_added, lines_deleted, files_changed
		FROM commits WHERE project_id = $1 AND sha = $2`
	var c model.Commit
	err := p.pool.QueryRow(ctx, q, projectID, sha).Scan(
		&c.ID, &c.ProjectID, &c.SHA, &c.Message, &c.AuthorName, &c.CommitDate,
		&c.LinesAdded, &c.LinesDeleted, &c.FilesChanged)
	return c, err
}

// UpsertCommit issues a keyed upsert on (project_id, sha). Values are
// expected to be pre-merged by the reconciliation engine; all columns are
// written as given.
func (p *Postgres) UpsertCommit(ctx context.Context, c model.Commit) error {
	const q = `
		INSERT INTO commits (project_id, sha, message, author_name, commit_date,
		                     lines_added, lines_deleted, files_changed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (project_id, sha) DO UPDATE SET
			message = EXCLUDED.message,
			author_name = EXCLUDED.author_name,
			commit_date = EXCLUDED.commit_date,
			lines_added = EXCLUDED.lines_added,
			lines_deleted = EXCLUDED.lines_deleted,
			files_changed = EXCLUDED.files_changed`
	_, err := p.pool.Exec(ctx, q, c.ProjectID, c.SHA, c.Message, c.AuthorName,
		c.CommitDate, c.LinesAdded, c.LinesDeleted, c.FilesChanged)
	return err
}

func (p *Postgres) UpsertCommitFile(ctx context.Context, f model.CommitFile) error {
	const q = `
		INSERT INTO commit_files (project_id, sha, path, status, additions, deletions, patch)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (project_id, sha, path) DO UPDATE SET
			status = EXCLUDED.status,
			additions = EXCLUDED.additions,
			deletions = EXCLUDED.deletions,
			patch = EXCLUDED.patch`
	_, err := p.pool.Exec(ctx, q, f.ProjectID, f.SHA, f.Path, f.Status, f.Additions, f.Deletions, f.Patch)
	return err
}

func (p *Postgres) UpsertIssue(ctx context.Context, i model.Issue) error {
	assignees, err := json.Marshal(i.Assignees)
	if err != nil {
		return fmt.Errorf("encoding assignees: %w", err)
	}
	labels, err := json.Marshal(i.Labels)
	if err != nil {
		return fmt.Errorf("encoding labels: %w", err)
	}

	const q = `
		INSERT INTO issues (project_id, number, title, body, state, assignees, labels,
		                    github_created_at, github_updated_at, closed_at, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (project_id, number) DO UPDATE SET
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			state = EXCLUDED.state,
			assignees = EXCLUDED.assignees,
			labels = EXCLUDED.labels,
			github_created_at = EXCLUDED.github_created_at,
			github_updated_at = EXCLUDED.github_updated_at,
			closed_at = EXCLUDED.closed_at,
			synced_at = EXCLUDED.synced_at`
	_, err = p.pool.Exec(ctx, q, i.ProjectID, i.Number, i.Title, i.Body, i.State,
		assignees, labels, i.GithubCreatedAt, i.GithubUpdatedAt, i.ClosedAt, i.SyncedAt)
	return err
}

func (p *Postgres) UpsertBranch(ctx context.Context, b model.Branch) error {
	const q = `
		INSERT INTO branches (project_id, name, head_sha, protected, is_default, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (project_id, name) DO UPDATE SET
			head_sha = EXCLUDED.head_sha,
			protected = EXCLUDED.protected,
			is_default = EXCLUDED.is_default,
			synced_at = EXCLUDED.synced_at`
	_, err := p.pool.Exec(ctx, q, b.ProjectID, b.Name, b.HeadSHA, b.Protected, b.IsDefault, b.SyncedAt)
	return err
}

func (p *Postgres) ListCommits(ctx context.Context, projectID int64) ([]model.Commit, error) {
	const q = `
		SELECT id, project_id, sha, message, author_name, commit_date,
		       lines_added, lines_deleted, files_changed
		FROM commits WHERE project_id = $1 ORDER BY commit_date DESC`
	rows, err := p.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commits []model.Commit
	for rows.Next() {
		var c model.Commit
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.SHA, &c.Message, &c.AuthorName,
			&c.CommitDate, &c.LinesAdded, &c.LinesDeleted, &c.FilesChanged); err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

func (p *Postgres) ListOpenIssues(ctx context.Context, projectID int64, limit int) ([]model.Issue, error) {
	const q = `
		SELECT project_id, number, title, body, state, assignees, labels,
		       github_created_at, github_updated_at, closed_at, synced_at
		FROM issues
		WHERE project_id = $1 AND state = 'open'
		ORDER BY github_updated_at DESC
		LIMIT $2`
	rows, err := p.pool.Query(ctx, q, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []model.Issue
	for rows.Next() {
		var i model.Issue
		var assignees, labels []byte
		if err := rows.Scan(&i.ProjectID, &i.Number, &i.Title, &i.Body, &i.State,
			&assignees, &labels, &i.GithubCreatedAt, &i.GithubUpdatedAt, &i.ClosedAt, &i.SyncedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(assignees, &i.Assignees); err != nil {
			return nil, fmt.Errorf("decoding assignees: %w", err)
		}
		if err := json.Unmarshal(labels, &i.Labels); err != nil {
			return nil, fmt.Errorf("decoding labels: %w", err)
		}
		issues = append(issues, i)
	}
	return issues, rows.Err()
}

func (p *Postgres) GetCodeStats(ctx context.Context, projectID int64) (model.CodeStats, error) {
	const q = `
		SELECT COUNT(*),
		       COALESCE(SUM(lines_added), 0),
		       COALESCE(SUM(lines_deleted), 0),
		       COUNT(DISTINCT commit_date::date)
		FROM commits WHERE project_id = $1`
	var s model.CodeStats
	err := p.pool.QueryRow(ctx, q, projectID).Scan(&s.CommitCount, &s.LinesAdded, &s.LinesDeleted, &s.ActiveDays)
	return s, err
}

func (p *Postgres) GetContributions(ctx context.Context, projectID int64) ([]model.Contribution, error) {
	const q = `
		SELECT author_name, COUNT(*),
		       COALESCE(SUM(lines_added), 0),
		       COALESCE(SUM(lines_deleted), 0)
		FROM commits WHERE project_id = $1
		GROUP BY author_name
		ORDER BY COUNT(*) DESC, author_name`
	rows, err := p.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contributions []model.Contribution
	for rows.Next() {
		var c model.Contribution
		if err := rows.Scan(&c.Author, &c.CommitCount, &c.LinesAdded, &c.LinesDeleted); err != nil {
			return nil, err
		}
		contributions = append(contributions, c)
	}
	return contributions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *Postgres) scanProject(row rowScanner) (model.Project, error) {
	var pr model.Project
	err := row.Scan(&pr.ID, &pr.Title, &pr.Description, &pr.RepoURL, &pr.GithubToken,
		&pr.SyncStatus, &pr.LastSyncedAt, &pr.CreatedAt, &pr.UpdatedAt)
	return pr, err
}

func scanTask(row rowScanner) (model.Task, error) {
	var t model.Task
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status,
		&t.Assignee, &t.DueDate, &t.GithubIssueNumber, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
