// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github-project-tracker/internal/apperrors"
	"github-project-tracker/internal/model"
	"github-project-tracker/internal/suggest"
	"github-project-tracker/internal/tasks"
)

// SyncRunner triggers one synchronization pass.
type SyncRunner interface {
	Sync(ctx context.Context, projectID int64) (model.SyncSummary, error)
}

// ProgressReader computes a progress snapshot.
type ProgressReader interface {
	Analyze(ctx context.Context, projectID int64) (model.ProgressSnapshot, error)
}

// Suggester produces AI task suggestions.
type Suggester interface {
	Suggest(ctx context.Context, projectID int64) ([]suggest.Suggestion, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	tasks     *tasks.Service
	syncer    SyncRunner
	progress  ProgressReader
	suggester Suggester
	logger    *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(taskSvc *tasks.Service, syncRunner SyncRunner, progress ProgressReader, suggester Suggester, logger *slog.Logger) http.Handler {
	h := &Handler{
		tasks:     taskSvc,
		syncer:    syncRunner,
		progress:  progress,
		suggester: suggester,
		logger:    logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/projects", h.createProject)
		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/", h.getProject)
			r.Delete("/", h.deleteProject)
			r.Post("/repo", h.connectRepo)
			r.Post("/sync", h.triggerSync)
			r.Get("/progress", h.getProgress)
			r.Post("/suggestions", h.getSuggestions)
			r.Get("/tasks", h.listTasks)
			r.Post("/tasks", h.createTask)
			r.Get("/members", h.listMembers)
			r.Post("/members", h.addMember)
			r.Delete("/members/{userName}", h.removeMember)
		})
		r.Route("/tasks/{taskID}", func(r chi.Router) {
			r.Put("/", h.updateTask)
			r.Delete("/", h.deleteTask)
			r.Patch("/status", h.updateTaskStatus)
			r.Post("/link", h.linkTaskToIssue)
		})
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createProject handles POST /v1/projects.
func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	project, err := h.tasks.CreateProject(r.Context(), req.Title, req.Description, actor(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, project)
}

// getProject handles GET /v1/projects/{projectID}.
func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	project, err := h.tasks.GetProject(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, project)
}

// deleteProject handles DELETE /v1/projects/{projectID}.
func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	if err := h.tasks.DeleteProject(r.Context(), id, actor(r)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// connectRepo handles POST /v1/projects/{projectID}/repo.
func (h *Handler) connectRepo(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	var req struct {
		RepoURL string  `json:"repo_url"`
		Token   *string `json:"token,omitempty"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.tasks.ConnectRepo(r.Context(), id, actor(r), req.RepoURL, req.Token); err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

// triggerSync handles POST /v1/projects/{projectID}/sync.
func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	summary, err := h.syncer.Sync(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// getProgress handles GET /v1/projects/{projectID}/progress.
func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	if _, err := h.tasks.GetProject(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	snapshot, err := h.progress.Analyze(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, snapshot)
}

// getSuggestions handles POST /v1/projects/{projectID}/suggestions.
func (h *Handler) getSuggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	if _, err := h.tasks.GetProject(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	suggestions, err := h.suggester.Suggest(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

// listTasks handles GET /v1/projects/{projectID}/tasks.
func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	taskList, err := h.tasks.ListTasks(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, taskList)
}

// createTask handles POST /v1/projects/{projectID}/tasks.
func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	var req model.Task
	if !h.decode(w, r, &req) {
		return
	}
	task, err := h.tasks.CreateTask(r.Context(), id, actor(r), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, task)
}

// updateTask handles PUT /v1/tasks/{taskID}.
func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}
	var req model.Task
	if !h.decode(w, r, &req) {
		return
	}
	task, err := h.tasks.UpdateTask(r.Context(), id, actor(r), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, task)
}

// updateTaskStatus handles PATCH /v1/tasks/{taskID}/status.
func (h *Handler) updateTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status model.TaskStatus `json:"status"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	task, err := h.tasks.UpdateTaskStatus(r.Context(), id, actor(r), req.Status)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, task)
}

// linkTaskToIssue handles POST /v1/tasks/{taskID}/link.
func (h *Handler) linkTaskToIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}
	var req struct {
		IssueNumber int `json:"issue_number"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	task, err := h.tasks.LinkTaskToIssue(r.Context(), id, actor(r), req.IssueNumber)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, task)
}

// deleteTask handles DELETE /v1/tasks/{taskID}.
func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}
	if err := h.tasks.DeleteTask(r.Context(), id, actor(r)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listMembers handles GET /v1/projects/{projectID}/members.
func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	members, err := h.tasks.ListMembers(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, members)
}

// addMember handles POST /v1/projects/{projectID}/members.
func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	var req struct {
		UserName string `json:"user_name"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.tasks.AddMember(r.Context(), id, actor(r), req.UserName); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// removeMember handles DELETE /v1/projects/{projectID}/members/{userName}.
func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	userName := chi.URLParam(r, "userName")
	if err := h.tasks.RemoveMember(r.Context(), id, actor(r), userName); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// actor extracts the acting member's user name. Authentication is handled
// upstream of this service; the gateway forwards the identity in a header.
func actor(r *http.Request) string {
	return r.Header.Get("X-User")
}

func (h *Handler) projectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return h.pathID(w, r, "projectID")
}

func (h *Handler) taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return h.pathID(w, r, "taskID")
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid "+param+" path parameter")
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON request body")
		return false
	}
	return true
}

// respondError maps the error taxonomy onto stable {code, message} pairs.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var locatorErr *apperrors.InvalidLocatorError
	var syncErr *apperrors.SyncFailedError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "PROJECT_NOT_FOUND", "Project not found")
	case errors.Is(err, apperrors.ErrRepoNotConnected):
		respondWithError(w, http.StatusBadRequest, "GITHUB_REPO_NOT_CONNECTED", "Project has no connected GitHub repository")
	case errors.Is(err, apperrors.ErrValidation):
		respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, apperrors.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "FORBIDDEN", "Acting member lacks the required role")
	case errors.Is(err, apperrors.ErrAIBackendUnavailable):
		respondWithError(w, http.StatusServiceUnavailable, "AI_BACKEND_UNAVAILABLE", "AI backend is unavailable")
	case errors.As(err, &locatorErr):
		respondWithError(w, http.StatusBadRequest, "INVALID_REPO_URL", locatorErr.Error())
	case errors.As(err, &syncErr):
		respondWithError(w, http.StatusBadGateway, "SYNC_FAILED", syncErr.Error())
	default:
		h.logger.Error("Unhandled error", "error", err)
		respondWithError(w, http.StatusInternalServerError, "SERVER_ERROR", "Internal server error")
	}
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, map[string]string{"code": code, "message": message})
}
