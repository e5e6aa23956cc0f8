// internal/store/storetest/fake.go
//
// Package storetest provides an in-memory Store used by unit tests in place
// of Postgres. Missing rows are reported as pgx.ErrNoRows, matching the real
// implementation; per-method failures can be injected through Errs.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github-project-tracker/internal/model"
	"github-project-tracker/internal/store"
)

// Fake is an in-memory store.Store.
type Fake struct {
	mu     sync.Mutex
	nextID int64

	Projects    map[int64]model.Project
	Members     map[int64]map[string]model.ProjectMember
	Tasks       map[int64]model.Task
	Commits     map[string]model.Commit
	CommitFiles map[string]model.CommitFile
	Issues      map[string]model.Issue
	Branches    map[string]model.Branch

	// Errs maps a method name to an error that method will return.
	Errs map[string]error
}

var _ store.Store = (*Fake)(nil)

// New creates an empty Fake.
func New() *Fake {
	return &Fake{
		Projects:    make(map[int64]model.Project),
		Members:     make(map[int64]map[string]model.ProjectMember),
		Tasks:       make(map[int64]model.Task),
		Commits:     make(map[string]model.Commit),
		CommitFiles: make(map[string]model.CommitFile),
		Issues:      make(map[string]model.Issue),
		Branches:    make(map[string]model.Branch),
		Errs:        make(map[string]error),
	}
}

func (f *Fake) fail(method string) error { return f.Errs[method] }

func commitKey(projectID int64, sha string) string { return fmt.Sprintf("%d/%s", projectID, sha) }

func (f *Fake) CreateProject(_ context.Context, title, description string) (model.Project, error) {
	if err := f.fail("CreateProject"); err != nil {
		return model.Project{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p := model.Project{
		ID:          f.nextID,
		Title:       title,
		Description: description,
		SyncStatus:  model.SyncNever,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	f.Projects[p.ID] = p
	return p, nil
}

func (f *Fake) GetProject(_ context.Context, id int64) (model.Project, error) {
	if err := f.fail("GetProject"); err != nil {
		return model.Project{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Projects[id]
	if !ok {
		return model.Project{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *Fake) DeleteProject(_ context.Context, id int64) error {
	if err := f.fail("DeleteProject"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Projects, id)
	delete(f.Members, id)
	for tid, t := range f.Tasks {
		if t.ProjectID == id {
			delete(f.Tasks, tid)
		}
	}
	return nil
}

func (f *Fake) ConnectRepo(_ context.Context, id int64, repoURL string, token *string) error {
	if err := f.fail("ConnectRepo"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Projects[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.RepoURL = &repoURL
	p.GithubToken = token
	f.Projects[id] = p
	return nil
}

func (f *Fake) SetSyncStatus(_ context.Context, id int64, status model.SyncStatus) error {
	if err := f.fail("SetSyncStatus"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Projects[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.SyncStatus = status
	f.Projects[id] = p
	return nil
}

func (f *Fake) MarkSynced(_ context.Context, id int64, at time.Time) error {
	if err := f.fail("MarkSynced"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Projects[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.SyncStatus = model.SyncOK
	p.LastSyncedAt.Time = at
	p.LastSyncedAt.Valid = true
	f.Projects[id] = p
	return nil
}

func (f *Fake) AddMember(_ context.Context, m model.ProjectMember) error {
	if err := f.fail("AddMember"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Members[m.ProjectID] == nil {
		f.Members[m.ProjectID] = make(map[string]model.ProjectMember)
	}
	f.Members[m.ProjectID][m.UserName] = m
	return nil
}

func (f *Fake) GetMember(_ context.Context, projectID int64, userName string) (model.ProjectMember, error) {
	if err := f.fail("GetMember"); err != nil {
		return model.ProjectMember{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.Members[projectID][userName]
	if !ok {
		return model.ProjectMember{}, pgx.ErrNoRows
	}
	return m, nil
}

func (f *Fake) RemoveMember(_ context.Context, projectID int64, userName string) error {
	if err := f.fail("RemoveMember"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Members[projectID], userName)
	return nil
}

func (f *Fake) ListMembers(_ context.Context, projectID int64) ([]model.ProjectMember, error) {
	if err := f.fail("ListMembers"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var members []model.ProjectMember
	for _, m := range f.Members[projectID] {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserName < members[j].UserName })
	return members, nil
}

func (f *Fake) CreateTask(_ context.Context, t model.Task) (model.Task, error) {
	if err := f.fail("CreateTask"); err != nil {
		return model.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = f.nextID
	t.CreatedAt = time.Now()
	t.UpdatedAt = time.Now()
	f.Tasks[t.ID] = t
	return t, nil
}

func (f *Fake) GetTask(_ context.Context, id int64) (model.Task, error) {
	if err := f.fail("GetTask"); err != nil {
		return model.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.Tasks[id]
	if !ok {
		return model.Task{}, pgx.ErrNoRows
	}
	return t, nil
}

func (f *Fake) UpdateTask(_ context.Context, t model.Task) (model.Task, error) {
	if err := f.fail("UpdateTask"); err != nil {
		return model.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Tasks[t.ID]; !ok {
		return model.Task{}, pgx.ErrNoRows
	}
	t.UpdatedAt = time.Now()
	f.Tasks[t.ID] = t
	return t, nil
}

func (f *Fake) DeleteTask(_ context.Context, id int64) error {
	if err := f.fail("DeleteTask"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Tasks, id)
	return nil
}

func (f *Fake) ListTasks(_ context.Context, projectID int64) ([]model.Task, error) {
	if err := f.fail("ListTasks"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var tasks []model.Task
	for _, t := range f.Tasks {
		if t.ProjectID == projectID {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (f *Fake) CountTasksByStatus(_ context.Context, projectID int64) (map[model.TaskStatus]int, error) {
	if err := f.fail("CountTasksByStatus"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[model.TaskStatus]int)
	for _, t := range f.Tasks {
		if t.ProjectID == projectID {
			counts[t.Status]++
		}
	}
	return counts, nil
}

func (f *Fake) GetCommitBySHA(_ context.Context, projectID int64, sha string) (model.Commit, error) {
	if err := f.fail("GetCommitBySHA"); err != nil {
		return model.Commit{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.Commits[commitKey(projectID, sha)]
	if !ok {
		return model.Commit{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *Fake) UpsertCommit(_ context.Context, c model.Commit) error {
	if err := f.fail("UpsertCommit"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := commitKey(c.ProjectID, c.SHA)
	if existing, ok := f.Commits[key]; ok {
		c.ID = existing.ID
	} else {
		f.nextID++
		c.ID = f.nextID
	}
	f.Commits[key] = c
	return nil
}

func (f *Fake) UpsertCommitFile(_ context.Context, file model.CommitFile) error {
	if err := f.fail("UpsertCommitFile"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CommitFiles[fmt.Sprintf("%d/%s/%s", file.ProjectID, file.SHA, file.Path)] = file
	return nil
}

func (f *Fake) UpsertIssue(_ context.Context, i model.Issue) error {
	if err := f.fail("UpsertIssue"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Issues[fmt.Sprintf("%d/%d", i.ProjectID, i.Number)] = i
	return nil
}

func (f *Fake) UpsertBranch(_ context.Context, b model.Branch) error {
	if err := f.fail("UpsertBranch"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Branches[fmt.Sprintf("%d/%s", b.ProjectID, b.Name)] = b
	return nil
}

func (f *Fake) ListCommits(_ context.Context, projectID int64) ([]model.Commit, error) {
	if err := f.fail("ListCommits"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var commits []model.Commit
	for _, c := range f.Commits {
		if c.ProjectID == projectID {
			commits = append(commits, c)
		}
	}
	sort.Slice(commits, func(i, j int) bool { return commits[i].CommitDate.After(commits[j].CommitDate) })
	return commits, nil
}

func (f *Fake) ListOpenIssues(_ context.Context, projectID int64, limit int) ([]model.Issue, error) {
	if err := f.fail("ListOpenIssues"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var issues []model.Issue
	for _, i := range f.Issues {
		if i.ProjectID == projectID && i.State == "open" {
			issues = append(issues, i)
		}
	}
	sort.Slice(issues, func(i, j int) bool {
		return issues[i].GithubUpdatedAt.After(issues[j].GithubUpdatedAt)
	})
	if len(issues) > limit {
		issues = issues[:limit]
	}
	return issues, nil
}

func (f *Fake) GetCodeStats(_ context.Context, projectID int64) (model.CodeStats, error) {
	if err := f.fail("GetCodeStats"); err != nil {
		return model.CodeStats{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats model.CodeStats
	days := make(map[string]struct{})
	for _, c := range f.Commits {
		if c.ProjectID != projectID {
			continue
		}
		stats.CommitCount++
		if c.LinesAdded != nil {
			stats.LinesAdded += *c.LinesAdded
		}
		if c.LinesDeleted != nil {
			stats.LinesDeleted += *c.LinesDeleted
		}
		days[c.CommitDate.Format("2006-01-02")] = struct{}{}
	}
	stats.ActiveDays = len(days)
	return stats, nil
}

func (f *Fake) GetContributions(_ context.Context, projectID int64) ([]model.Contribution, error) {
	if err := f.fail("GetContributions"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	byAuthor := make(map[string]*model.Contribution)
	for _, c := range f.Commits {
		if c.ProjectID != projectID {
			continue
		}
		contrib, ok := byAuthor[c.AuthorName]
		if !ok {
			contrib = &model.Contribution{Author: c.AuthorName}
			byAuthor[c.AuthorName] = contrib
		}
		contrib.CommitCount++
		if c.LinesAdded != nil {
			contrib.LinesAdded += *c.LinesAdded
		}
		if c.LinesDeleted != nil {
			contrib.LinesDeleted += *c.LinesDeleted
		}
	}
	var contributions []model.Contribution
	for _, c := range byAuthor {
		contributions = append(contributions, *c)
	}
	sort.Slice(contributions, func(i, j int) bool {
		if contributions[i].CommitCount != contributions[j].CommitCount {
			return contributions[i].CommitCount > contributions[j].CommitCount
		}
		return contributions[i].Author < contributions[j].Author
	})
	return contributions, nil
}
