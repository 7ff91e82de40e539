// internal/forum/errors.go
//
// Error taxonomy shared by every forum package.
//
// Context
// -------
// Components return these sentinels (or the typed errors below, which
// unwrap to a sentinel) and never decide on user-facing responses.  Only
// internal/api translates them into HTTP status codes.
//
//   - ErrNotFound covers both "absent" and "not readable by you" so that
//     restricted forums do not leak their existence.
//   - ErrCyclicHierarchy is a data-integrity fault meant for operators.
//   - ErrStorageConflict marks a unique-constraint race; the caller retries
//     slug allocation exactly once.
package forum

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrRateLimited         = errors.New("rate limited")
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrCyclicHierarchy     = errors.New("cyclic forum hierarchy")
	ErrSlugExhausted       = errors.New("slug generation exhausted")
	ErrStorageConflict     = errors.New("storage conflict")
	ErrInvalidPlacement    = errors.New("invalid forum placement")
)

// RateLimitedError is returned when a principal opens threads too quickly.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// DuplicateSubmissionError points at the thread the principal already
// opened under the same title so callers can redirect instead of failing.
type DuplicateSubmissionError struct {
	ThreadID int64
	Slug     string
	Title    string
}

func (e *DuplicateSubmissionError) Error() string {
	return fmt.Sprintf("duplicate submission: thread %q already exists", e.Slug)
}

func (e *DuplicateSubmissionError) Unwrap() error { return ErrDuplicateSubmission }

// URL is the redirect target for the pre-existing thread.
func (e *DuplicateSubmissionError) URL() string { return ThreadURL(e.Slug) }

// CyclicHierarchyError records the forum ids walked before the cycle closed.
type CyclicHierarchyError struct {
	ForumID int64
	Path    []int64
}

func (e *CyclicHierarchyError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("cyclic forum hierarchy at forum %d: %s", e.ForumID, strings.Join(parts, " -> "))
}

func (e *CyclicHierarchyError) Unwrap() error { return ErrCyclicHierarchy }
