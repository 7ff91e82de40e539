// internal/thread/service.go
//
// Thread lifecycle manager.
//
// Context
// -------
// Service is the only component that decides what a principal may do to a
// thread and in which order the collaborators run:
//
//	request → access control → flood / duplicate guard → slug allocation
//	        → store transaction → counters and lists → event sink
//
// Every method takes the site id explicitly.  Lookups that start from a slug
// are scoped to that site, so a slug from another site is simply not found.
//
// State per thread:
//
//	Draft (Preview, never stored) → Open → Closed ↔ Open
//	                                     → Moved (forum changes, state kept)
//	                                     → Deleted
//
// Error policy
// ------------
//   - A forum or thread the principal may not read is forum.ErrNotFound,
//     never ErrForbidden, so restricted forums do not leak.
//   - Readable but not writable is forum.ErrForbidden.
//   - Field problems are *ValidationError.
//   - Store, guard, and allocator errors propagate wrapped.
//
// Notes
// -----
//   - Cache and list maintenance runs after commit and never fails a call.
//   - Oxford commas, two spaces after periods.
package thread

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/adept-forum/internal/acl"
	"github.com/yanizio/adept-forum/internal/auth"
	"github.com/yanizio/adept-forum/internal/counter"
	"github.com/yanizio/adept-forum/internal/event"
	"github.com/yanizio/adept-forum/internal/flood"
	"github.com/yanizio/adept-forum/internal/forum"
	"github.com/yanizio/adept-forum/internal/hierarchy"
	"github.com/yanizio/adept-forum/internal/slug"
	"github.com/yanizio/adept-forum/internal/store"
)

// DefaultPageSize is used when Deps.PageSize is zero.
const DefaultPageSize = 20

// Deps wires a Service.  Only Store is required.
type Deps struct {
	Store    store.Store
	Guard    *flood.Guard
	Slugs    *slug.Allocator
	Counters *counter.Maintainer
	Events   event.Sink
	Log      *zap.SugaredLogger
	PageSize int
	Now      func() time.Time
}

// Service implements thread and forum operations.
type Service struct {
	store    store.Store
	guard    *flood.Guard
	slugs    *slug.Allocator
	counters *counter.Maintainer
	events   event.Sink
	log      *zap.SugaredLogger
	pageSize int
	now      func() time.Time
}

// New fills unset dependencies with defaults.
func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	if d.Guard == nil {
		d.Guard = flood.NewGuard(d.Store, 0)
	}
	if d.Slugs == nil {
		d.Slugs = slug.NewAllocator(slug.Options{})
	}
	if d.Counters == nil {
		d.Counters = counter.New(d.Store, nil, counter.Options{}, d.Log)
	}
	if d.Events == nil {
		d.Events = event.Discard{}
	}
	if d.PageSize <= 0 {
		d.PageSize = DefaultPageSize
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		store:    d.Store,
		guard:    d.Guard,
		slugs:    d.Slugs,
		counters: d.Counters,
		events:   d.Events,
		log:      d.Log,
		pageSize: d.PageSize,
		now:      d.Now,
	}
}

/*──────────────────────────── lookups ─────────────────────────────────────*/

// readableForum loads forumSlug and hides it unless p may read it.
func (s *Service) readableForum(ctx context.Context, siteID int64, p auth.Principal, forumSlug string) (*forum.Forum, error) {
	f, err := s.store.ForumBySlug(ctx, siteID, forumSlug)
	if err != nil {
		return nil, err
	}
	if !acl.CanRead(p, f) {
		return nil, fmt.Errorf("forum %q: %w", forumSlug, forum.ErrNotFound)
	}
	return f, nil
}

// readableThread loads threadSlug and its forum and hides both unless p may
// read the thread.
func (s *Service) readableThread(ctx context.Context, siteID int64, p auth.Principal, threadSlug string) (*forum.Forum, *forum.Thread, error) {
	t, err := s.store.ThreadBySlug(ctx, siteID, threadSlug)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.store.ForumByID(ctx, siteID, t.ForumID)
	if err != nil {
		return nil, nil, err
	}
	if !acl.CanReadThread(p, f, t) {
		return nil, nil, fmt.Errorf("thread %q: %w", threadSlug, forum.ErrNotFound)
	}
	return f, t, nil
}

// moderated loads a thread for a staff-only action.
func (s *Service) moderated(ctx context.Context, siteID int64, p auth.Principal, threadSlug string) (*forum.Forum, *forum.Thread, error) {
	f, t, err := s.readableThread(ctx, siteID, p, threadSlug)
	if err != nil {
		return nil, nil, err
	}
	if !acl.CanModerate(p) {
		return nil, nil, fmt.Errorf("moderate thread %q: %w", threadSlug, forum.ErrForbidden)
	}
	return f, t, nil
}

func (s *Service) tree(ctx context.Context, siteID int64) (*hierarchy.Tree, error) {
	fs, err := s.store.ForumsBySite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return hierarchy.New(fs), nil
}

// rootAuthor returns the author id of t's opening post, or -1 when the
// thread has none.
func (s *Service) rootAuthor(ctx context.Context, t *forum.Thread) (*forum.Post, int64, error) {
	if t.RootPostID == nil {
		return nil, -1, nil
	}
	root, err := s.store.PostByID(ctx, *t.RootPostID)
	if errors.Is(err, forum.ErrNotFound) {
		return nil, -1, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return root, root.AuthorID, nil
}

func authorID(p auth.Principal) int64 {
	if !p.Authenticated {
		return 0
	}
	return p.ID
}

func actor(p auth.Principal) event.Actor {
	return event.Actor{ID: authorID(p), Username: p.DisplayName()}
}

// offset converts a 1-based page number.
func (s *Service) offset(page int) (int, int) {
	if page < 1 {
		page = 1
	}
	return page, (page - 1) * s.pageSize
}
