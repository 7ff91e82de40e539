// internal/flood/guard.go
//
// Thread-creation flood and duplicate guard.
//
// Context
// -------
// Check runs once per new thread, never on edits, and in this order:
//
//  1. Duplicate ─ the principal already opened a thread in this site with
//     exactly this title.  The error carries the existing thread so the
//     caller can redirect to it instead of failing.
//  2. Rate      ─ the principal's most recent thread-opening post in this
//     site is younger than the cooldown.  The error carries the remaining
//     wait.
//
// Both lookups are site-scoped.  Anonymous principals share author id 0, so
// every anonymous visitor counts as one author.
//
// Notes
// -----
//   - A zero cooldown disables the rate check; the duplicate check always
//     runs.
//   - Oxford commas, two spaces after periods.
package flood

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yanizio/adept-forum/internal/auth"
	"github.com/yanizio/adept-forum/internal/forum"
	"github.com/yanizio/adept-forum/internal/metrics"
)

// Lookup is the slice of the post store the guard needs.
type Lookup interface {
	ThreadByAuthorTitle(ctx context.Context, siteID, authorID int64, title string) (*forum.Thread, error)
	LatestRootPostByAuthor(ctx context.Context, siteID, authorID int64) (*forum.Post, error)
}

// Guard rejects floods and duplicate submissions.
type Guard struct {
	lookup   Lookup
	cooldown time.Duration
	now      func() time.Time
}

// NewGuard returns a Guard with the given cooldown.
func NewGuard(l Lookup, cooldown time.Duration) *Guard {
	return &Guard{lookup: l, cooldown: cooldown, now: time.Now}
}

// WithClock returns a copy of g reading time from now.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	cp := *g
	cp.now = now
	return &cp
}

// Cooldown reports the configured rate window.
func (g *Guard) Cooldown() time.Duration { return g.cooldown }

// Check returns nil, a *forum.DuplicateSubmissionError, or a
// *forum.RateLimitedError.
func (g *Guard) Check(ctx context.Context, siteID int64, p auth.Principal, title string) error {
	authorID := authorOf(p)

	dup, err := g.lookup.ThreadByAuthorTitle(ctx, siteID, authorID, title)
	switch {
	case err == nil:
		metrics.GuardRejectionsTotal.WithLabelValues("duplicate").Inc()
		return &forum.DuplicateSubmissionError{ThreadID: dup.ID, Slug: dup.Slug, Title: dup.Title}
	case !errors.Is(err, forum.ErrNotFound):
		return fmt.Errorf("duplicate check: %w", err)
	}

	if g.cooldown <= 0 {
		return nil
	}
	last, err := g.lookup.LatestRootPostByAuthor(ctx, siteID, authorID)
	switch {
	case errors.Is(err, forum.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("rate check: %w", err)
	}

	if elapsed := g.now().Sub(last.SubmittedAt); elapsed < g.cooldown {
		metrics.GuardRejectionsTotal.WithLabelValues("rate").Inc()
		return &forum.RateLimitedError{RetryAfter: g.cooldown - elapsed}
	}
	return nil
}

func authorOf(p auth.Principal) int64 {
	if !p.Authenticated {
		return 0
	}
	return p.ID
}
