// internal/github/client.go
package github

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github-project-tracker/internal/apperrors"
)

// CommitSummary is one entry of a repository's commit list as fetched from
// the upstream, before any stats enrichment.
type CommitSummary struct {
	SHA        string
	Message    string
	AuthorName string
	CommitDate time.Time
	URL        string
}

// FileChange is one file of a commit's diff.
type FileChange struct {
	Path      string
	Status    string
	Additions int
	Deletions int
	Patch     *string
}

// CommitStats holds the per-commit statistics fetched for a single SHA.
type CommitStats struct {
	Additions int
	Deletions int
	Files     []FileChange
}

// IssueData is a normalized upstream issue (pull requests excluded).
type IssueData struct {
	Number    int
	Title     string
	Body      string
	State     string
	Assignees []string
	Labels    []string
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

// BranchData is a normalized upstream branch.
type BranchData struct {
	Name      string
	HeadSHA   string
	Protected bool
	IsDefault bool
}

// ListCommitsOptions bounds a commit listing.
type ListCommitsOptions struct {
	PerPage int
	Since   time.Time
}

// ListIssuesOptions filters an issue listing.
type ListIssuesOptions struct {
	State   string
	PerPage int
}

// Client is a wrapper around the go-github client. All operations are
// read-only against the upstream and safe to retry.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewClient creates and configures a new Client instance. An empty token
// yields an unauthenticated client restricted to public repositories and
// stricter upstream rate limits.
func NewClient(token string, logger *slog.Logger) *Client {
	if token == "" {
		return &Client{gh: github.NewClient(nil), logger: logger}
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	return &Client{gh: github.NewClient(tc), logger: logger}
}

// SetBaseURL points the client at an alternate API root, for GitHub
// Enterprise deployments and tests.
func (c *Client) SetBaseURL(raw string) error {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return err
	}
	c.gh.BaseURL = base
	return nil
}

// ListCommits fetches a single page of commits for a repository,
// most-recent-first, bounded by opts.PerPage.
func (c *Client) ListCommits(ctx context.Context, ref RepoRef, opts ListCommitsOptions) ([]CommitSummary, error) {
	ghOpts := &github.CommitsListOptions{
		Since:       opts.Since,
		ListOptions: github.ListOptions{PerPage: opts.PerPage},
	}

	c.logger.Debug("Fetching commits", "owner", ref.Owner, "repo", ref.Name, "per_page", opts.PerPage)
	commits, _, err := c.gh.Repositories.ListCommits(ctx, ref.Owner, ref.Name, ghOpts)
	if err != nil {
		return nil, mapUpstreamError(err)
	}

	out := make([]CommitSummary, 0, len(commits))
	for _, commit := range commits {
		out = append(out, toCommitSummary(commit))
	}
	return out, nil
}

// GetCommitStats fetches addition/deletion totals and the per-file change
// list for one commit. Callers must treat a failure here as isolated to the
// given SHA.
func (c *Client) GetCommitStats(ctx context.Context, ref RepoRef, sha string) (CommitStats, error) {
	commit, _, err := c.gh.Repositories.GetCommit(ctx, ref.Owner, ref.Name, sha, nil)
	if err != nil {
		return CommitStats{}, mapUpstreamError(err)
	}

	stats := CommitStats{
		Additions: commit.GetStats().GetAdditions(),
		Deletions: commit.GetStats().GetDeletions(),
	}
	for _, f := range commit.Files {
		stats.Files = append(stats.Files, FileChange{
			Path:      f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Patch:     f.Patch,
		})
	}
	return stats, nil
}

// ListIssues fetches a single page of issues. The upstream conflates issues
// and pull requests; pull requests are filtered out here.
func (c *Client) ListIssues(ctx context.Context, ref RepoRef, opts ListIssuesOptions) ([]IssueData, error) {
	state := opts.State
	if state == "" {
		state = "all"
	}
	ghOpts := &github.IssueListByRepoOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: opts.PerPage},
	}

	issues, _, err := c.gh.Issues.ListByRepo(ctx, ref.Owner, ref.Name, ghOpts)
	if err != nil {
		return nil, mapUpstreamError(err)
	}

	out := make([]IssueData, 0, len(issues))
	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		out = append(out, toIssueData(issue))
	}
	return out, nil
}

// ListBranches fetches the branch list with head SHA and protection flags.
// The repository's default branch is fetched alongside to mark IsDefault.
func (c *Client) ListBranches(ctx context.Context, ref RepoRef) ([]BranchData, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, ref.Owner, ref.Name)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	defaultBranch := repo.GetDefaultBranch()

	branches, _, err := c.gh.Repositories.ListBranches(ctx, ref.Owner, ref.Name, nil)
	if err != nil {
		return nil, mapUpstreamError(err)
	}

	out := make([]BranchData, 0, len(branches))
	for _, b := range branches {
		out = append(out, BranchData{
			Name:      b.GetName(),
			HeadSHA:   b.GetCommit().GetSHA(),
			Protected: b.GetProtected(),
			IsDefault: b.GetName() == defaultBranch,
		})
	}
	return out, nil
}

// mapUpstreamError translates go-github failures into the error taxonomy:
// an upstream non-2xx response becomes UpstreamError, anything else
// (DNS, refused connection, timeout) becomes UpstreamUnavailable.
func mapUpstreamError(err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return &apperrors.UpstreamError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &apperrors.UpstreamError{
			StatusCode: rateErr.Response.StatusCode,
			Message:    rateErr.Message,
		}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &apperrors.UpstreamError{
			StatusCode: abuseErr.Response.StatusCode,
			Message:    abuseErr.Message,
		}
	}
	return &apperrors.UpstreamUnavailableError{Err: err}
}

// toCommitSummary translates a github.RepositoryCommit to a CommitSummary.
func toCommitSummary(c *github.RepositoryCommit) CommitSummary {
	return CommitSummary{
		SHA:        c.GetSHA(),
		Message:    c.GetCommit().GetMessage(),
		AuthorName: c.GetCommit().GetAuthor().GetName(),
		CommitDate: c.GetCommit().GetAuthor().GetDate().Time,
		URL:        c.GetHTMLURL(),
	}
}

// toIssueData translates a github.Issue to an IssueData.
func toIssueData(i *github.Issue) IssueData {
	data := IssueData{
		Number:    i.GetNumber(),
		Title:     i.GetTitle(),
		Body:      i.GetBody(),
		State:     i.GetState(),
		CreatedAt: i.GetCreatedAt().Time,
		UpdatedAt: i.GetUpdatedAt().Time,
	}
	for _, a := range i.Assignees {
		data.Assignees = append(data.Assignees, a.GetLogin())
	}
	for _, l := range i.Labels {
		data.Labels = append(data.Labels, l.GetName())
	}
	if i.ClosedAt != nil {
		t := i.GetClosedAt().Time
		data.ClosedAt = &t
	}
	return data
}
