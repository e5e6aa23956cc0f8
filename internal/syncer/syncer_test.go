// internal/syncer/syncer_test.go
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-project-tracker/internal/apperrors"
	"github-project-tracker/internal/github"
	"github-project-tracker/internal/model"
	"github-project-tracker/internal/progress"
	"github-project-tracker/internal/reconcile"
	"github-project-tracker/internal/store/storetest"
)

// fakeFetcher is a scriptable Fetcher.
type fakeFetcher struct {
	commits     []github.CommitSummary
	commitsErr  error
	stats       map[string]github.CommitStats
	statsErr    map[string]error
	issues      []github.IssueData
	issuesErr   error
	branches    []github.BranchData
	branchesErr error
}

func (f *fakeFetcher) ListCommits(context.Context, github.RepoRef, github.ListCommitsOptions) ([]github.CommitSummary, error) {
	return f.commits, f.commitsErr
}

func (f *fakeFetcher) GetCommitStats(_ context.Context, _ github.RepoRef, sha string) (github.CommitStats, error) {
	if err := f.statsErr[sha]; err != nil {
		return github.CommitStats{}, err
	}
	return f.stats[sha], nil
}

func (f *fakeFetcher) ListIssues(context.Context, github.RepoRef, github.ListIssuesOptions) ([]github.IssueData, error) {
	return f.issues, f.issuesErr
}

func (f *fakeFetcher) ListBranches(context.Context, github.RepoRef) ([]github.BranchData, error) {
	return f.branches, f.branchesErr
}

func newTestSyncer(t *testing.T, fake *storetest.Fake, fetcher *fakeFetcher) *Syncer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	factory := func(string) Fetcher { return fetcher }
	return New(fake, factory, reconcile.New(fake, logger), progress.New(fake), logger, Options{})
}

func connectedProject(t *testing.T, fake *storetest.Fake) model.Project {
	t.Helper()
	ctx := context.Background()
	project, err := fake.CreateProject(ctx, "widget", "")
	require.NoError(t, err)
	require.NoError(t, fake.ConnectRepo(ctx, project.ID, "https://github.com/acme/widget", nil))
	return project
}

var day = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testCommits() []github.CommitSummary {
	return []github.CommitSummary{
		{SHA: "abc", Message: "feat: one", AuthorName: "alice", CommitDate: day},
		{SHA: "def", Message: "fix: two", AuthorName: "bob", CommitDate: day.Add(time.Hour)},
	}
}

func TestSyncer_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("completes and reports a summary", func(t *testing.T) {
		fake := storetest.New()
		project := connectedProject(t, fake)
		fetcher := &fakeFetcher{
			commits: testCommits(),
			stats: map[string]github.CommitStats{
				"abc": {Additions: 10, Deletions: 2},
				"def": {Additions: 3, Deletions: 1},
			},
			issues:   []github.IssueData{{Number: 1, Title: "a bug", State: "open"}},
			branches: []github.BranchData{{Name: "main", HeadSHA: "def", IsDefault: true}},
		}
		s := newTestSyncer(t, fake, fetcher)

		summary, err := s.Sync(ctx, project.ID)
		require.NoError(t, err)

		assert.Equal(t, 2, summary.CommitsSynced)
		assert.Equal(t, 1, summary.IssuesFound)
		assert.Equal(t, 1, summary.BranchesFound)
		assert.Equal(t, 2, summary.Progress.Code.CommitCount)
		assert.Equal(t, 13, summary.Progress.Code.LinesAdded)

		stored, err := fake.GetProject(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SyncOK, stored.SyncStatus)
		assert.True(t, stored.LastSyncedAt.Valid, "lastSyncedAt must be stamped on completion")
	})

	t.Run("issue fetch failure downgrades to zero issues", func(t *testing.T) {
		fake := storetest.New()
		project := connectedProject(t, fake)
		fetcher := &fakeFetcher{
			commits:   testCommits(),
			issuesErr: &apperrors.UpstreamError{StatusCode: 403, Message: "rate limited"},
		}
		s := newTestSyncer(t, fake, fetcher)

		summary, err := s.Sync(ctx, project.ID)
		require.NoError(t, err, "a best-effort phase failure must not surface")
		assert.Equal(t, 2, summary.CommitsSynced)
		assert.Equal(t, 0, summary.IssuesFound)
	})

	t.Run("branch fetch failure downgrades to zero branches", func(t *testing.T) {
		fake := storetest.New()
		project := connectedProject(t, fake)
		fetcher := &fakeFetcher{
			commits:     testCommits(),
			branchesErr: &apperrors.UpstreamUnavailableError{Err: errors.New("dial tcp: timeout")},
		}
		s := newTestSyncer(t, fake, fetcher)

		summary, err := s.Sync(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.BranchesFound)
	})

	t.Run("commit fetch failure is fatal and leaves lastSyncedAt unchanged", func(t *testing.T) {
		fake := storetest.New()
		project := connectedProject(t, fake)
		fetcher := &fakeFetcher{
			commitsErr: &apperrors.UpstreamUnavailableError{Err: errors.New("dial tcp: refused")},
		}
		s := newTestSyncer(t, fake, fetcher)

		_, err := s.Sync(ctx, project.ID)
		var syncErr *apperrors.SyncFailedError
		require.ErrorAs(t, err, &syncErr)

		stored, err := fake.GetProject(ctx, project.ID)
		require.NoError(t, err)
		assert.False(t, stored.LastSyncedAt.Valid)
		assert.Equal(t, model.SyncFail, stored.SyncStatus)
	})

	t.Run("a single stats failure isolates to its commit", func(t *testing.T) {
		fake := storetest.New()
		project := connectedProject(t, fake)
		fetcher := &fakeFetcher{
			commits: testCommits(),
			stats: map[string]github.CommitStats{
				"def": {Additions: 3, Deletions: 1},
			},
			statsErr: map[string]error{
				"abc": &apperrors.UpstreamError{StatusCode: 422, Message: "too large"},
			},
		}
		s := newTestSyncer(t, fake, fetcher)

		summary, err := s.Sync(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.CommitsSynced, "both commits stored despite one stats failure")

		withoutStats, err := fake.GetCommitBySHA(ctx, project.ID, "abc")
		require.NoError(t, err)
		assert.Nil(t, withoutStats.LinesAdded)

		withStats, err := fake.GetCommitBySHA(ctx, project.ID, "def")
		require.NoError(t, err)
		require.NotNil(t, withStats.LinesAdded)
		assert.Equal(t, 3, *withStats.LinesAdded)
	})

	t.Run("re-running a sync never duplicates records", func(t *testing.T) {
		fake := storetest.New()
		project := connectedProject(t, fake)
		fetcher := &fakeFetcher{
			commits:  testCommits(),
			issues:   []github.IssueData{{Number: 1, Title: "a bug", State: "open"}},
			branches: []github.BranchData{{Name: "main", HeadSHA: "def", IsDefault: true}},
		}
		s := newTestSyncer(t, fake, fetcher)

		_, err := s.Sync(ctx, project.ID)
		require.NoError(t, err)
		summary, err := s.Sync(ctx, project.ID)
		require.NoError(t, err)

		assert.Equal(t, 2, summary.CommitsSynced)
		assert.Len(t, fake.Commits, 2)
		assert.Len(t, fake.Issues, 1)
		assert.Len(t, fake.Branches, 1)
	})

	t.Run("unknown project", func(t *testing.T) {
		fake := storetest.New()
		s := newTestSyncer(t, fake, &fakeFetcher{})

		_, err := s.Sync(ctx, 404)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("project without a connected repository", func(t *testing.T) {
		fake := storetest.New()
		project, err := fake.CreateProject(ctx, "widget", "")
		require.NoError(t, err)
		s := newTestSyncer(t, fake, &fakeFetcher{})

		_, err = s.Sync(ctx, project.ID)
		assert.ErrorIs(t, err, apperrors.ErrRepoNotConnected)
	})

	t.Run("malformed stored locator", func(t *testing.T) {
		fake := storetest.New()
		project, err := fake.CreateProject(ctx, "widget", "")
		require.NoError(t, err)
		require.NoError(t, fake.ConnectRepo(ctx, project.ID, "https://github.com/acme", nil))
		s := newTestSyncer(t, fake, &fakeFetcher{})

		_, err = s.Sync(ctx, project.ID)
		var locErr *apperrors.InvalidLocatorError
		assert.ErrorAs(t, err, &locErr)
	})
}
