// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github-project-tracker/internal/apperrors"
	"github-project-tracker/internal/github"
	"github-project-tracker/internal/model"
	"github-project-tracker/internal/store"
)

// Phase identifies the current step of a sync invocation.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseFetchingCommits  Phase = "fetching_commits"
	PhaseFetchingIssues   Phase = "fetching_issues"
	PhaseFetchingBranches Phase = "fetching_branches"
	PhaseReconciling      Phase = "reconciling"
	PhaseAnalyzing        Phase = "analyzing"
	PhaseCompleted        Phase = "completed"
	PhaseFailed           Phase = "failed"
)

// Fetcher retrieves upstream activity for a repository.
type Fetcher interface {
	ListCommits(ctx context.Context, ref github.RepoRef, opts github.ListCommitsOptions) ([]github.CommitSummary, error)
	GetCommitStats(ctx context.Context, ref github.RepoRef, sha string) (github.CommitStats, error)
	ListIssues(ctx context.Context, ref github.RepoRef, opts github.ListIssuesOptions) ([]github.IssueData, error)
	ListBranches(ctx context.Context, ref github.RepoRef) ([]github.BranchData, error)
}

// FetcherFactory builds a Fetcher for a project's (possibly empty) access
// token.
type FetcherFactory func(token string) Fetcher

// Reconciler persists fetched activity idempotently.
type Reconciler interface {
	UpsertCommit(ctx context.Context, projectID int64, summary github.CommitSummary, stats *github.CommitStats) error
	UpsertIssues(ctx context.Context, projectID int64, issues []github.IssueData) int
	UpsertBranches(ctx context.Context, projectID int64, branches []github.BranchData) int
}

// Analyzer computes the post-sync progress snapshot.
type Analyzer interface {
	Analyze(ctx context.Context, projectID int64) (model.ProgressSnapshot, error)
}

// Options tunes one orchestrator instance.
type Options struct {
	// PageSize bounds commit and issue listings (upstream max 100).
	PageSize int
	// UpstreamTimeout applies to each individual upstream call.
	UpstreamTimeout time.Duration
	// StatsConcurrency bounds the per-commit stats worker pool.
	StatsConcurrency int
}

func (o *Options) withDefaults() {
	if o.PageSize <= 0 {
		o.PageSize = 100
	}
	if o.UpstreamTimeout <= 0 {
		o.UpstreamTimeout = 30 * time.Second
	}
	if o.StatsConcurrency <= 0 {
		o.StatsConcurrency = 5
	}
}

// Syncer orchestrates one fetch→reconcile→analyze pass per invocation.
// Dependencies are injected so tests can substitute fakes. Concurrent syncs
// of the same project are not serialized; keyed upserts keep them safe.
type Syncer struct {
	store      store.Store
	newFetcher FetcherFactory
	reconciler Reconciler
	analyzer   Analyzer
	logger     *slog.Logger
	opts       Options
	// now is injected for testability.
	now func() time.Time
}

// New creates a Syncer.
func New(s store.Store, factory FetcherFactory, r Reconciler, a Analyzer, logger *slog.Logger, opts Options) *Syncer {
	opts.withDefaults()
	return &Syncer{
		store:      s,
		newFetcher: factory,
		reconciler: r,
		analyzer:   a,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
	}
}

// Sync runs a full synchronization pass for one project and returns its
// summary. A commit-fetch failure is fatal and leaves lastSyncedAt
// unchanged; issue and branch fetches are best-effort and downgrade to empty
// results. Re-invoking after any failure is safe.
func (s *Syncer) Sync(ctx context.Context, projectID int64) (model.SyncSummary, error) {
	logger := s.logger.With("project_id", projectID)

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SyncSummary{}, apperrors.ErrNotFound
		}
		return model.SyncSummary{}, err
	}
	if project.RepoURL == nil {
		return model.SyncSummary{}, apperrors.ErrRepoNotConnected
	}

	ref, err := github.ParseRepoURL(*project.RepoURL)
	if err != nil {
		return model.SyncSummary{}, err
	}
	logger = logger.With("owner", ref.Owner, "repo", ref.Name)

	token := ""
	if project.GithubToken != nil {
		token = *project.GithubToken
	}
	fetcher := s.newFetcher(token)

	if err := s.store.SetSyncStatus(ctx, projectID, model.SyncRunning); err != nil {
		logger.Warn("Failed to record syncing status", "error", err)
	}

	// FetchingCommits: commits are the primary signal, a failure here aborts
	// the whole run.
	logger.Info("Sync phase", "phase", PhaseFetchingCommits)
	commits, err := s.fetchCommits(ctx, fetcher, ref)
	if err != nil {
		return model.SyncSummary{}, s.fail(ctx, projectID, logger, PhaseFetchingCommits, err)
	}

	// FetchingIssues and FetchingBranches are best-effort enrichments: a
	// failure downgrades to an empty result set.
	logger.Info("Sync phase", "phase", PhaseFetchingIssues)
	issues, err := s.fetchIssues(ctx, fetcher, ref)
	if err != nil {
		logger.Warn("Issue fetch failed, continuing without issues", "error", err)
		issues = nil
	}

	logger.Info("Sync phase", "phase", PhaseFetchingBranches)
	branches, err := s.fetchBranches(ctx, fetcher, ref)
	if err != nil {
		logger.Warn("Branch fetch failed, continuing without branches", "error", err)
		branches = nil
	}

	logger.Info("Sync phase", "phase", PhaseReconciling)
	commitsSynced := s.reconcileCommits(ctx, fetcher, ref, projectID, commits, logger)
	issuesFound := s.reconciler.UpsertIssues(ctx, projectID, issues)
	branchesFound := s.reconciler.UpsertBranches(ctx, projectID, branches)

	logger.Info("Sync phase", "phase", PhaseAnalyzing)
	snapshot, err := s.analyzer.Analyze(ctx, projectID)
	if err != nil {
		return model.SyncSummary{}, s.fail(ctx, projectID, logger, PhaseAnalyzing, err)
	}

	if err := s.store.MarkSynced(ctx, projectID, s.now()); err != nil {
		return model.SyncSummary{}, s.fail(ctx, projectID, logger, PhaseCompleted, err)
	}

	logger.Info("Sync phase", "phase", PhaseCompleted,
		"commits_synced", commitsSynced, "issues_found", issuesFound, "branches_found", branchesFound)

	return model.SyncSummary{
		CommitsSynced: commitsSynced,
		IssuesFound:   issuesFound,
		BranchesFound: branchesFound,
		Progress:      snapshot,
	}, nil
}

// reconcileCommits fetches per-commit stats through a bounded worker pool
// and upserts each commit independently. A stats failure isolates to its
// commit (the commit is stored without stats); a storage failure isolates
// the same way. Returns the number of commits stored.
func (s *Syncer) reconcileCommits(ctx context.Context, fetcher Fetcher, ref github.RepoRef, projectID int64, commits []github.CommitSummary, logger *slog.Logger) int {
	var synced atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.StatsConcurrency)

	for _, commit := range commits {
		commit := commit
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			var stats *github.CommitStats
			callCtx, cancel := context.WithTimeout(gctx, s.opts.UpstreamTimeout)
			fetched, err := fetcher.GetCommitStats(callCtx, ref, commit.SHA)
			cancel()
			if err != nil {
				logger.Warn("Stats fetch failed, storing commit without stats", "sha", commit.SHA, "error", err)
			} else {
				stats = &fetched
			}

			if err := s.reconciler.UpsertCommit(gctx, projectID, commit, stats); err != nil {
				logger.Error("Failed to upsert commit", "sha", commit.SHA, "error", err)
				return nil
			}
			synced.Add(1)
			return nil
		})
	}

	// Workers never return errors; Wait only drains the pool.
	_ = g.Wait()

	return int(synced.Load())
}

func (s *Syncer) fetchCommits(ctx context.Context, fetcher Fetcher, ref github.RepoRef) ([]github.CommitSummary, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.UpstreamTimeout)
	defer cancel()
	return fetcher.ListCommits(callCtx, ref, github.ListCommitsOptions{PerPage: s.opts.PageSize})
}

func (s *Syncer) fetchIssues(ctx context.Context, fetcher Fetcher, ref github.RepoRef) ([]github.IssueData, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.UpstreamTimeout)
	defer cancel()
	return fetcher.ListIssues(callCtx, ref, github.ListIssuesOptions{State: "all", PerPage: s.opts.PageSize})
}

func (s *Syncer) fetchBranches(ctx context.Context, fetcher Fetcher, ref github.RepoRef) ([]github.BranchData, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.UpstreamTimeout)
	defer cancel()
	return fetcher.ListBranches(callCtx, ref)
}

// fail records the failed status and wraps the cause. lastSyncedAt is never
// touched on a failed run.
func (s *Syncer) fail(ctx context.Context, projectID int64, logger *slog.Logger, phase Phase, cause error) error {
	logger.Error("Sync failed", "phase", phase, "error", cause)
	if err := s.store.SetSyncStatus(ctx, projectID, model.SyncFail); err != nil {
		logger.Warn("Failed to record failed status", "error", err)
	}
	return &apperrors.SyncFailedError{Err: cause}
}
