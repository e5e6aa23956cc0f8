// internal/tasks/service.go
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github-project-tracker/internal/apperrors"
	"github-project-tracker/internal/github"
	"github-project-tracker/internal/model"
	"github-project-tracker/internal/store"
)

// Service owns the locally-owned entities: projects, tasks and memberships.
// Reconciliation never writes through this service, and this service never
// touches upstream-owned rows.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// NewService creates a task service.
func NewService(s store.Store, logger *slog.Logger) *Service {
	return &Service{store: s, logger: logger}
}

// CreateProject creates a project with its single owner membership.
func (s *Service) CreateProject(ctx context.Context, title, description, owner string) (model.Project, error) {
	if title == "" {
		return model.Project{}, fmt.Errorf("%w: project title is required", apperrors.ErrValidation)
	}
	project, err := s.store.CreateProject(ctx, title, description)
	if err != nil {
		return model.Project{}, err
	}
	member := model.ProjectMember{ProjectID: project.ID, UserName: owner, Role: model.RoleOwner}
	if err := s.store.AddMember(ctx, member); err != nil {
		return model.Project{}, err
	}
	return project, nil
}

// GetProject fetches one project.
func (s *Service) GetProject(ctx context.Context, id int64) (model.Project, error) {
	project, err := s.store.GetProject(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Project{}, apperrors.ErrNotFound
	}
	return project, err
}

// ConnectRepo links a repository locator (and optional access token) to a
// project. Owner only. The locator is resolved up front so a malformed URL
// is rejected before it is stored.
func (s *Service) ConnectRepo(ctx context.Context, projectID int64, actor, repoURL string, token *string) error {
	if err := s.requireRole(ctx, projectID, actor, model.RoleOwner); err != nil {
		return err
	}
	if _, err := github.ParseRepoURL(repoURL); err != nil {
		return err
	}
	return s.store.ConnectRepo(ctx, projectID, repoURL, token)
}

// DeleteProject removes a project and, via cascade, everything scoped to it.
// Owner only.
func (s *Service) DeleteProject(ctx context.Context, projectID int64, actor string) error {
	if err := s.requireRole(ctx, projectID, actor, model.RoleOwner); err != nil {
		return err
	}
	return s.store.DeleteProject(ctx, projectID)
}

// AddMember adds a regular member. Owner only.
func (s *Service) AddMember(ctx context.Context, projectID int64, actor, userName string) error {
	if err := s.requireRole(ctx, projectID, actor, model.RoleOwner); err != nil {
		return err
	}
	return s.store.AddMember(ctx, model.ProjectMember{
		ProjectID: projectID,
		UserName:  userName,
		Role:      model.RoleMember,
	})
}

// RemoveMember removes a member. Owner only; the owner cannot be removed,
// only the whole project can be deleted.
func (s *Service) RemoveMember(ctx context.Context, projectID int64, actor, userName string) error {
	if err := s.requireRole(ctx, projectID, actor, model.RoleOwner); err != nil {
		return err
	}
	target, err := s.member(ctx, projectID, userName)
	if err != nil {
		return err
	}
	if target.Role == model.RoleOwner {
		return apperrors.ErrForbidden
	}
	return s.store.RemoveMember(ctx, projectID, userName)
}

// ListMembers lists project memberships.
func (s *Service) ListMembers(ctx context.Context, projectID int64) ([]model.ProjectMember, error) {
	return s.store.ListMembers(ctx, projectID)
}

// CreateTask creates a task. Any member may create; an assignee, when given,
// must be a project member.
func (s *Service) CreateTask(ctx context.Context, projectID int64, actor string, t model.Task) (model.Task, error) {
	if _, err := s.member(ctx, projectID, actor); err != nil {
		return model.Task{}, err
	}
	if t.Title == "" {
		return model.Task{}, fmt.Errorf("%w: task title is required", apperrors.ErrValidation)
	}
	if t.Status == "" {
		t.Status = model.TaskTodo
	}
	if !model.ValidTaskStatus(t.Status) {
		return model.Task{}, fmt.Errorf("%w: invalid task status", apperrors.ErrValidation)
	}
	if t.Assignee != nil {
		if _, err := s.member(ctx, projectID, *t.Assignee); err != nil {
			return model.Task{}, err
		}
	}
	t.ProjectID = projectID
	return s.store.CreateTask(ctx, t)
}

// UpdateTaskStatus changes a task's status. Any member of the task's
// project may do this.
func (s *Service) UpdateTaskStatus(ctx context.Context, taskID int64, actor string, status model.TaskStatus) (model.Task, error) {
	if !model.ValidTaskStatus(status) {
		return model.Task{}, fmt.Errorf("%w: invalid task status", apperrors.ErrValidation)
	}
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return model.Task{}, err
	}
	if _, err := s.member(ctx, task.ProjectID, actor); err != nil {
		return model.Task{}, err
	}
	task.Status = status
	return s.store.UpdateTask(ctx, task)
}

// UpdateTask rewrites a task's mutable fields. Owner only.
func (s *Service) UpdateTask(ctx context.Context, taskID int64, actor string, updated model.Task) (model.Task, error) {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return model.Task{}, err
	}
	if err := s.requireRole(ctx, task.ProjectID, actor, model.RoleOwner); err != nil {
		return model.Task{}, err
	}
	if updated.Title == "" {
		return model.Task{}, fmt.Errorf("%w: task title is required", apperrors.ErrValidation)
	}
	if !model.ValidTaskStatus(updated.Status) {
		return model.Task{}, fmt.Errorf("%w: invalid task status", apperrors.ErrValidation)
	}
	if updated.Assignee != nil {
		if _, err := s.member(ctx, task.ProjectID, *updated.Assignee); err != nil {
			return model.Task{}, err
		}
	}
	task.Title = updated.Title
	task.Description = updated.Description
	task.Status = updated.Status
	task.Assignee = updated.Assignee
	task.DueDate = updated.DueDate
	task.GithubIssueNumber = updated.GithubIssueNumber
	return s.store.UpdateTask(ctx, task)
}

// LinkTaskToIssue records a task's upstream issue linkage. This is the only
// write path for the linkage; sync never modifies it. Owner only, like every
// non-status field.
func (s *Service) LinkTaskToIssue(ctx context.Context, taskID int64, actor string, issueNumber int) (model.Task, error) {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return model.Task{}, err
	}
	if err := s.requireRole(ctx, task.ProjectID, actor, model.RoleOwner); err != nil {
		return model.Task{}, err
	}
	task.GithubIssueNumber = &issueNumber
	return s.store.UpdateTask(ctx, task)
}

// DeleteTask removes a task. Owner only.
func (s *Service) DeleteTask(ctx context.Context, taskID int64, actor string) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.requireRole(ctx, task.ProjectID, actor, model.RoleOwner); err != nil {
		return err
	}
	return s.store.DeleteTask(ctx, taskID)
}

// ListTasks lists a project's tasks.
func (s *Service) ListTasks(ctx context.Context, projectID int64) ([]model.Task, error) {
	return s.store.ListTasks(ctx, projectID)
}

func (s *Service) getTask(ctx context.Context, taskID int64) (model.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, apperrors.ErrNotFound
	}
	return task, err
}

func (s *Service) member(ctx context.Context, projectID int64, userName string) (model.ProjectMember, error) {
	m, err := s.store.GetMember(ctx, projectID, userName)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ProjectMember{}, apperrors.ErrForbidden
	}
	return m, err
}

func (s *Service) requireRole(ctx context.Context, projectID int64, actor string, role model.MemberRole) error {
	m, err := s.member(ctx, projectID, actor)
	if err != nil {
		return err
	}
	if m.Role != role {
		return apperrors.ErrForbidden
	}
	return nil
}
