// internal/reconcile/reconcile_test.go
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-project-tracker/internal/github"
	"github-project-tracker/internal/store/storetest"
)

func newTestReconciler(fake *storetest.Fake) *Reconciler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(fake, logger)
}

var commitTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestReconciler_UpsertCommit(t *testing.T) {
	ctx := context.Background()
	summary := github.CommitSummary{SHA: "abc", Message: "feat: one", AuthorName: "alice", CommitDate: commitTime}

	t.Run("stores stats and file changes when fetched", func(t *testing.T) {
		fake := storetest.New()
		r := newTestReconciler(fake)

		stats := &github.CommitStats{
			Additions: 42,
			Deletions: 7,
			Files: []github.FileChange{
				{Path: "main.go", Status: "modified", Additions: 42, Deletions: 7},
			},
		}
		require.NoError(t, r.UpsertCommit(ctx, 1, summary, stats))

		stored, err := fake.GetCommitBySHA(ctx, 1, "abc")
		require.NoError(t, err)
		require.NotNil(t, stored.LinesAdded)
		assert.Equal(t, 42, *stored.LinesAdded)
		assert.Equal(t, 7, *stored.LinesDeleted)
		assert.Equal(t, 1, *stored.FilesChanged)
		assert.Len(t, fake.CommitFiles, 1)
	})

	t.Run("a stats-less pass never erases previously stored stats", func(t *testing.T) {
		fake := storetest.New()
		r := newTestReconciler(fake)

		stats := &github.CommitStats{Additions: 42, Deletions: 7}
		require.NoError(t, r.UpsertCommit(ctx, 1, summary, stats))

		// Second pass without stats: message updates, stats stay.
		updated := summary
		updated.Message = "feat: one (amended)"
		require.NoError(t, r.UpsertCommit(ctx, 1, updated, nil))

		stored, err := fake.GetCommitBySHA(ctx, 1, "abc")
		require.NoError(t, err)
		assert.Equal(t, "feat: one (amended)", stored.Message)
		require.NotNil(t, stored.LinesAdded)
		assert.Equal(t, 42, *stored.LinesAdded)
	})

	t.Run("a richer pass overwrites stats", func(t *testing.T) {
		fake := storetest.New()
		r := newTestReconciler(fake)

		require.NoError(t, r.UpsertCommit(ctx, 1, summary, &github.CommitStats{Additions: 42}))
		require.NoError(t, r.UpsertCommit(ctx, 1, summary, &github.CommitStats{Additions: 50}))

		stored, err := fake.GetCommitBySHA(ctx, 1, "abc")
		require.NoError(t, err)
		assert.Equal(t, 50, *stored.LinesAdded)
	})

	t.Run("is idempotent", func(t *testing.T) {
		fake := storetest.New()
		r := newTestReconciler(fake)

		stats := &github.CommitStats{Additions: 1, Files: []github.FileChange{{Path: "a.go", Status: "added", Additions: 1}}}
		require.NoError(t, r.UpsertCommit(ctx, 1, summary, stats))
		require.NoError(t, r.UpsertCommit(ctx, 1, summary, stats))

		assert.Len(t, fake.Commits, 1, "re-running must not create duplicates")
		assert.Len(t, fake.CommitFiles, 1)
	})

	t.Run("propagates a commit storage failure", func(t *testing.T) {
		fake := storetest.New()
		fake.Errs["UpsertCommit"] = errors.New("disk on fire")
		r := newTestReconciler(fake)

		err := r.UpsertCommit(ctx, 1, summary, nil)
		require.Error(t, err)
	})
}

func TestReconciler_UpsertIssues(t *testing.T) {
	ctx := context.Background()
	issues := []github.IssueData{
		{Number: 1, Title: "a bug", Body: "boom", State: "open", CreatedAt: commitTime, UpdatedAt: commitTime},
		{Number: 2, Title: "done", State: "closed", CreatedAt: commitTime, UpdatedAt: commitTime},
	}

	t.Run("stores issues with a syncedAt stamp", func(t *testing.T) {
		fake := storetest.New()
		r := newTestReconciler(fake)
		r.now = func() time.Time { return commitTime }

		stored := r.UpsertIssues(ctx, 7, issues)
		assert.Equal(t, 2, stored)
		assert.Len(t, fake.Issues, 2)
		issue := fake.Issues["7/1"]
		assert.Equal(t, commitTime, issue.SyncedAt)
	})

	t.Run("is idempotent", func(t *testing.T) {
		fake := storetest.New()
		r := newTestReconciler(fake)

		r.UpsertIssues(ctx, 7, issues)
		r.UpsertIssues(ctx, 7, issues)
		assert.Len(t, fake.Issues, 2)
	})

	t.Run("truncates oversized bodies", func(t *testing.T) {
		fake := storetest.New()
		r := newTestReconciler(fake)

		long := []github.IssueData{{Number: 9, Title: "long", Body: strings.Repeat("x", maxIssueBodyRunes+500), State: "open"}}
		r.UpsertIssues(ctx, 7, long)
		assert.Len(t, fake.Issues["7/9"].Body, maxIssueBodyRunes)
	})

	t.Run("skips failing records and keeps counting", func(t *testing.T) {
		fake := storetest.New()
		fake.Errs["UpsertIssue"] = errors.New("constraint violated")
		r := newTestReconciler(fake)

		stored := r.UpsertIssues(ctx, 7, issues)
		assert.Equal(t, 0, stored)
	})
}

func TestReconciler_UpsertBranches(t *testing.T) {
	ctx := context.Background()
	branches := []github.BranchData{
		{Name: "main", HeadSHA: "abc", Protected: true, IsDefault: true},
		{Name: "dev", HeadSHA: "def"},
	}

	fake := storetest.New()
	r := newTestReconciler(fake)

	stored := r.UpsertBranches(ctx, 7, branches)
	assert.Equal(t, 2, stored)

	// Second sync moves a head SHA; still two rows.
	branches[1].HeadSHA = "fed"
	stored = r.UpsertBranches(ctx, 7, branches)
	assert.Equal(t, 2, stored)
	assert.Len(t, fake.Branches, 2)
	assert.Equal(t, "fed", fake.Branches["7/dev"].HeadSHA)
}
