// internal/apperrors/apperrors.go
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra payload.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned when caller-supplied input is rejected.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden is returned when the acting member lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrRepoNotConnected is returned when a sync is requested for a project
	// with no linked repository.
	ErrRepoNotConnected = errors.New("project has no connected repository")
	// ErrAIBackendUnavailable is returned when the suggestion backend cannot
	// be reached or is disabled.
	ErrAIBackendUnavailable = errors.New("AI backend unavailable")
)

// InvalidLocatorError is returned when a repository locator string cannot be
// resolved to an (owner, name) pair. Not retryable.
type InvalidLocatorError struct {
	Locator string
	Reason  string
}

func (e *InvalidLocatorError) Error() string {
	return fmt.Sprintf("invalid repository locator %q: %s", e.Locator, e.Reason)
}

// UpstreamUnavailableError indicates a network-level failure reaching the
// upstream API. Retryable by re-invoking the sync.
type UpstreamUnavailableError struct {
	Err error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("upstream unavailable: %v", e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

// UpstreamError indicates the upstream API responded with a non-2xx status
// (rate limit, not found, auth failure). Not automatically retryable.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Message)
}

// SyncFailedError indicates the commit-fetch phase of a sync failed. The
// project's lastSyncedAt is left unchanged and the caller may retry.
type SyncFailedError struct {
	Err error
}

func (e *SyncFailedError) Error() string {
	return fmt.Sprintf("sync failed: %v", e.Err)
}

func (e *SyncFailedError) Unwrap() error { return e.Err }
