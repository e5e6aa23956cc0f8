// internal/api/handler_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-project-tracker/internal/apperrors"
	"github-project-tracker/internal/model"
	"github-project-tracker/internal/store/storetest"
	"github-project-tracker/internal/suggest"
	"github-project-tracker/internal/tasks"
)

type stubSyncer struct {
	summary model.SyncSummary
	err     error
}

func (s *stubSyncer) Sync(context.Context, int64) (model.SyncSummary, error) {
	return s.summary, s.err
}

type stubProgress struct {
	snapshot model.ProgressSnapshot
	err      error
}

func (s *stubProgress) Analyze(context.Context, int64) (model.ProgressSnapshot, error) {
	return s.snapshot, s.err
}

type stubSuggester struct {
	suggestions []suggest.Suggestion
	err         error
}

func (s *stubSuggester) Suggest(context.Context, int64) ([]suggest.Suggestion, error) {
	return s.suggestions, s.err
}

type testEnv struct {
	fake      *storetest.Fake
	syncer    *stubSyncer
	progress  *stubProgress
	suggester *stubSuggester
	router    http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	env := &testEnv{
		fake:      storetest.New(),
		syncer:    &stubSyncer{},
		progress:  &stubProgress{},
		suggester: &stubSuggester{},
	}
	taskSvc := tasks.NewService(env.fake, logger)
	env.router = NewRouter(taskSvc, env.syncer, env.progress, env.suggester, logger)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedProject(t *testing.T) model.Project {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/projects", "olivia", `{"title": "widget"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var project model.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &project))
	return project
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["code"]
}

func TestHandler_TriggerSync(t *testing.T) {
	t.Run("returns the sync summary", func(t *testing.T) {
		env := newTestEnv(t)
		project := env.seedProject(t)
		env.syncer.summary = model.SyncSummary{CommitsSynced: 12, IssuesFound: 3, BranchesFound: 2}

		rec := env.do(t, http.MethodPost, fmt.Sprintf("/v1/projects/%d/sync", project.ID), "olivia", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var summary model.SyncSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
		assert.Equal(t, 12, summary.CommitsSynced)
		assert.Equal(t, 3, summary.IssuesFound)
	})

	t.Run("maps the error taxonomy onto stable codes", func(t *testing.T) {
		cases := []struct {
			name     string
			err      error
			status   int
			wantCode string
		}{
			{"unknown project", apperrors.ErrNotFound, http.StatusNotFound, "PROJECT_NOT_FOUND"},
			{"no repo connected", apperrors.ErrRepoNotConnected, http.StatusBadRequest, "GITHUB_REPO_NOT_CONNECTED"},
			{"sync failure", &apperrors.SyncFailedError{Err: errors.New("upstream gone")}, http.StatusBadGateway, "SYNC_FAILED"},
			{"bad stored locator", &apperrors.InvalidLocatorError{Locator: "x", Reason: "y"}, http.StatusBadRequest, "INVALID_REPO_URL"},
			{"anything else", errors.New("kaboom"), http.StatusInternalServerError, "SERVER_ERROR"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				env := newTestEnv(t)
				env.seedProject(t)
				env.syncer.err = tc.err

				rec := env.do(t, http.MethodPost, "/v1/projects/1/sync", "olivia", "")
				assert.Equal(t, tc.status, rec.Code)
				assert.Equal(t, tc.wantCode, errorCode(t, rec))
			})
		}
	})

	t.Run("rejects a non-numeric project id", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/v1/projects/abc/sync", "olivia", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
	})
}

func TestHandler_Progress(t *testing.T) {
	env := newTestEnv(t)
	env.seedProject(t)
	env.progress.snapshot = model.ProgressSnapshot{
		Tasks:        model.TaskStats{Total: 4, Done: 2, Progress: 50},
		CodeProgress: 20,
	}

	rec := env.do(t, http.MethodGet, "/v1/projects/1/progress", "olivia", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot model.ProgressSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, 50, snapshot.Tasks.Progress)
	assert.Equal(t, 20, snapshot.CodeProgress)
}

func TestHandler_Progress_UnknownProject(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/projects/99/progress", "olivia", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PROJECT_NOT_FOUND", errorCode(t, rec))
}

func TestHandler_Suggestions(t *testing.T) {
	t.Run("returns suggestions", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedProject(t)
		env.suggester.suggestions = []suggest.Suggestion{{Title: "do the thing"}}

		rec := env.do(t, http.MethodPost, "/v1/projects/1/suggestions", "olivia", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "do the thing")
	})

	t.Run("maps backend outage to AI_BACKEND_UNAVAILABLE", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedProject(t)
		env.suggester.err = apperrors.ErrAIBackendUnavailable

		rec := env.do(t, http.MethodPost, "/v1/projects/1/suggestions", "olivia", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "AI_BACKEND_UNAVAILABLE", errorCode(t, rec))
	})
}

func TestHandler_TaskLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedProject(t)

	// Non-member creation is forbidden.
	rec := env.do(t, http.MethodPost, "/v1/projects/1/tasks", "intruder", `{"title": "sneak"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/v1/projects/1/tasks", "olivia", `{"title": "write docs"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var task model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))

	rec = env.do(t, http.MethodPatch, "/v1/tasks/2/status", "olivia", `{"status": "done"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, model.TaskDone, task.Status)

	rec = env.do(t, http.MethodPatch, "/v1/tasks/2/status", "olivia", `{"status": "archived"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = env.do(t, http.MethodGet, "/v1/projects/1/tasks", "olivia", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = env.do(t, http.MethodDelete, "/v1/tasks/2", "olivia", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
