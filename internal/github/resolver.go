// internal/github/resolver.go
package github

import (
	"net/url"
	"strings"

	"github-project-tracker/internal/apperrors"
)

// RepoRef is a resolved (owner, name) repository reference.
type RepoRef struct {
	Owner string
	Name  string
}

// ParseRepoURL resolves a repository locator of the form
// https://<host>/<owner>/<name>, tolerating a ".git" suffix and a trailing
// slash. It is a pure function with no side effects.
func ParseRepoURL(raw string) (RepoRef, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return RepoRef{}, &apperrors.InvalidLocatorError{Locator: raw, Reason: "empty locator"}
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return RepoRef{}, &apperrors.InvalidLocatorError{Locator: raw, Reason: "not a valid URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return RepoRef{}, &apperrors.InvalidLocatorError{Locator: raw, Reason: "expected an http(s) URL"}
	}
	if u.Host == "" {
		return RepoRef{}, &apperrors.InvalidLocatorError{Locator: raw, Reason: "missing host"}
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, &apperrors.InvalidLocatorError{Locator: raw, Reason: "expected path '<owner>/<name>'"}
	}

	name := strings.TrimSuffix(parts[1], ".git")
	if name == "" {
		return RepoRef{}, &apperrors.InvalidLocatorError{Locator: raw, Reason: "missing repository name"}
	}

	return RepoRef{Owner: parts[0], Name: name}, nil
}
