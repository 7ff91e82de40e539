// internal/thread/service_test.go
//
// Lifecycle tests over the in-memory store and cache.
//
// Run: go test ./internal/thread -v
package thread

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yanizio/adept-forum/internal/auth"
	"github.com/yanizio/adept-forum/internal/cache"
	"github.com/yanizio/adept-forum/internal/counter"
	"github.com/yanizio/adept-forum/internal/event"
	"github.com/yanizio/adept-forum/internal/flood"
	"github.com/yanizio/adept-forum/internal/forum"
	"github.com/yanizio/adept-forum/internal/slug"
	"github.com/yanizio/adept-forum/internal/store"
)

const site = int64(1)

var (
	t0       = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	member   = auth.Principal{ID: 10, Username: "member", Authenticated: true}
	other    = auth.Principal{ID: 11, Username: "other", Authenticated: true}
	upgraded = auth.Principal{ID: 12, Username: "gold", Authenticated: true, Profile: &auth.Profile{Upgraded: true}}
	staff    = auth.Principal{ID: 13, Username: "mod", Authenticated: true, Staff: true}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type env struct {
	svc    *Service
	st     store.Store
	mem    *store.Memory
	events *event.Recorder
	clock  *clock
	forums map[string]*forum.Forum
}

type option func(*Deps)

func withStore(wrap func(*store.Memory) store.Store) option {
	return func(d *Deps) { d.Store = wrap(d.Store.(*store.Memory)) }
}

func withCooldown(cd time.Duration) option {
	return func(d *Deps) { d.Guard = flood.NewGuard(d.Store, cd).WithClock(d.Now) }
}

func withPageSize(n int) option { return func(d *Deps) { d.PageSize = n } }

func newEnv(t *testing.T, opts ...option) *env {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	clk := &clock{now: t0}

	e := &env{mem: mem, events: &event.Recorder{}, clock: clk, forums: map[string]*forum.Forum{}}
	seed := []forum.Forum{
		{Title: "General", Slug: "general"},
		{Title: "Announcements", Slug: "announcements", OnlyStaffPosts: true},
		{Title: "Upgraders", Slug: "upgraders", OnlyUpgraders: true},
		{Title: "Secret", Slug: "secret", Restricted: true, AllowedUsers: forum.IDSet(member.ID)},
		{Title: "Staff room", Slug: "staff-room", OnlyStaffReads: true},
		{Title: "Other", Slug: "other"},
	}
	for i := range seed {
		f := seed[i]
		f.SiteID = site
		if err := mem.SaveForum(ctx, &f); err != nil {
			t.Fatalf("SaveForum: %v", err)
		}
		e.forums[f.Slug] = &f
	}
	sub := forum.Forum{SiteID: site, Title: "Help", Slug: "help", ParentID: &e.forums["general"].ID}
	if err := mem.SaveForum(ctx, &sub); err != nil {
		t.Fatalf("SaveForum: %v", err)
	}
	e.forums["help"] = &sub

	d := Deps{
		Store:  mem,
		Events: e.events,
		Now:    clk.Now,
		Slugs:  slug.NewAllocator(slug.Options{}, slug.WithClock(clk.Now)),
	}
	for _, o := range opts {
		o(&d)
	}
	if d.Guard == nil {
		d.Guard = flood.NewGuard(d.Store, 0)
	}
	d.Counters = counter.New(d.Store, cache.NewMemory(128), counter.Options{}, nil)

	e.st = d.Store
	e.svc = New(d)
	return e
}

func (e *env) create(t *testing.T, p auth.Principal, forumSlug, title string) *forum.Thread {
	t.Helper()
	th, err := e.svc.Create(context.Background(), site, p, forumSlug, Submission{Title: title, Body: "body of " + title})
	if err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return th
}

func TestCreateThread(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	th := e.create(t, member, "general", "Hello, World")
	if th.Slug != "hello-world" || th.Posts != 1 || th.Views != 0 {
		t.Fatalf("unexpected thread %#v", th)
	}
	if th.RootPostID == nil || th.LatestPostID == nil || *th.RootPostID != *th.LatestPostID {
		t.Fatalf("root and latest post differ")
	}

	stored, err := e.st.ThreadBySlug(ctx, site, "hello-world")
	if err != nil {
		t.Fatalf("ThreadBySlug: %v", err)
	}
	live, _ := e.st.CountPosts(ctx, stored.ID)
	if stored.Posts != live || live != 1 {
		t.Fatalf("posts=%d live=%d", stored.Posts, live)
	}

	root, _ := e.st.PostByID(ctx, *stored.RootPostID)
	if root.AuthorID != member.ID || root.Body != "body of Hello, World" {
		t.Fatalf("root post %#v", root)
	}

	if kinds := e.events.Kinds(); len(kinds) != 1 || kinds[0] != event.KindThreadCreated {
		t.Fatalf("events = %v", kinds)
	}
}

func TestCreateValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Create(ctx, site, member, "general", Submission{Title: "   ", Body: ""})
	if !IsValidationError(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
	fields := FieldsOf(err)
	if len(fields) != 2 || fields[0].Name != "title" || fields[1].Name != "body" {
		t.Fatalf("fields = %#v", fields)
	}

	_, err = e.svc.Create(ctx, site, member, "general", Submission{Title: strings.Repeat("x", 101), Body: "b"})
	if f := FieldsOf(err); len(f) != 1 || !strings.Contains(f[0].Message, "100") {
		t.Fatalf("long title: %v", err)
	}
}

func TestCreateAccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sub := Submission{Title: "Hi", Body: "b"}

	cases := []struct {
		p     auth.Principal
		forum string
		want  error
	}{
		{other, "secret", forum.ErrNotFound},
		{staff, "secret", forum.ErrNotFound},
		{member, "staff-room", forum.ErrNotFound},
		{member, "announcements", forum.ErrForbidden},
		{auth.Anonymous(), "upgraders", forum.ErrForbidden},
		{member, "missing", forum.ErrNotFound},
	}
	for _, c := range cases {
		if _, err := e.svc.Create(ctx, site, c.p, c.forum, sub); !errors.Is(err, c.want) {
			t.Errorf("%s in %s: err = %v, want %v", c.p.Username, c.forum, err, c.want)
		}
	}

	if _, err := e.svc.Create(ctx, site, member, "secret", sub); err != nil {
		t.Fatalf("allow-listed member: %v", err)
	}
	if _, err := e.svc.Create(ctx, site, upgraded, "upgraders", Submission{Title: "Gold", Body: "b"}); err != nil {
		t.Fatalf("upgraded member: %v", err)
	}
	if _, err := e.svc.Create(ctx, site, auth.Anonymous(), "general", Submission{Title: "Anon", Body: "b"}); err != nil {
		t.Fatalf("anonymous in open forum: %v", err)
	}
}

func TestDuplicateAndRateGuards(t *testing.T) {
	e := newEnv(t, withCooldown(5*time.Minute))
	ctx := context.Background()

	first := e.create(t, member, "general", "Hello")
	e.clock.Advance(60 * time.Second)

	_, err := e.svc.Create(ctx, site, member, "general", Submission{Title: "Hello", Body: "again"})
	var dup *forum.DuplicateSubmissionError
	if !errors.As(err, &dup) || dup.ThreadID != first.ID || dup.URL() != "/threads/hello" {
		t.Fatalf("duplicate: err = %v", err)
	}

	_, err = e.svc.Create(ctx, site, member, "general", Submission{Title: "Other", Body: "b"})
	var rl *forum.RateLimitedError
	if !errors.As(err, &rl) || rl.RetryAfter != 240*time.Second {
		t.Fatalf("rate: err = %v", err)
	}

	// Another member is unaffected.
	e.create(t, other, "general", "Unrelated")

	e.clock.Advance(241 * time.Second) // 301s after the first thread
	e.create(t, member, "general", "Other")
}

// lyingStore claims every slug is free for the first n checks so the
// insert hits the unique constraint.
type lyingStore struct {
	store.Store
	mu   sync.Mutex
	lies int
}

func (l *lyingStore) SlugExists(ctx context.Context, s string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lies != 0 {
		if l.lies > 0 {
			l.lies--
		}
		return false, nil
	}
	return l.Store.SlugExists(ctx, s)
}

func TestSlugConflictRetriedOnce(t *testing.T) {
	ls := &lyingStore{}
	e := newEnv(t, withStore(func(m *store.Memory) store.Store {
		ls.Store = m
		return ls
	}))
	ctx := context.Background()

	e.create(t, member, "general", "Same title")

	ls.lies = 1
	th := e.create(t, other, "general", "Same title")
	if th.Slug != "same-title-1" {
		t.Fatalf("slug after retry = %q", th.Slug)
	}

	ls.lies = -1 // lie forever
	_, err := e.svc.Create(ctx, site, upgraded, "general", Submission{Title: "Same title", Body: "b"})
	if !errors.Is(err, forum.ErrStorageConflict) {
		t.Fatalf("second conflict: err = %v", err)
	}
	if n, _ := e.mem.CountThreads(ctx, e.forums["general"].ID); n != 2 {
		t.Fatalf("threads = %d, failed attempts left rows behind", n)
	}
}

func TestReplyMaintainsCounters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	th := e.create(t, member, "general", "Thread")

	var last *forum.Post
	for i := 0; i < 3; i++ {
		e.clock.Advance(time.Minute)
		p, err := e.svc.Reply(ctx, site, other, th.Slug, "reply")
		if err != nil {
			t.Fatalf("Reply: %v", err)
		}
		last = p
	}

	stored, _ := e.st.ThreadBySlug(ctx, site, th.Slug)
	live, _ := e.st.CountPosts(ctx, stored.ID)
	if stored.Posts != 4 || live != 4 {
		t.Fatalf("posts=%d live=%d", stored.Posts, live)
	}
	if *stored.LatestPostID != last.ID {
		t.Fatalf("latest post %d, want %d", *stored.LatestPostID, last.ID)
	}

	if _, err := e.svc.Reply(ctx, site, other, th.Slug, "  "); !IsValidationError(err) {
		t.Fatalf("empty reply: %v", err)
	}
}

func TestReplyClosedAndBanned(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	th := e.create(t, member, "general", "Thread")

	if err := e.svc.Ban(ctx, site, staff, th.Slug, other.ID); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if _, err := e.svc.Reply(ctx, site, other, th.Slug, "hi"); !errors.Is(err, forum.ErrNotFound) {
		t.Fatalf("banned reply: err = %v", err)
	}
	if _, err := e.svc.View(ctx, site, other, th.Slug, 1); !errors.Is(err, forum.ErrNotFound) {
		t.Fatalf("banned view: err = %v", err)
	}

	closed := true
	if _, err := e.svc.Moderate(ctx, site, staff, th.Slug, Flags{Closed: &closed}); err != nil {
		t.Fatalf("Moderate: %v", err)
	}
	if _, err := e.svc.Reply(ctx, site, member, th.Slug, "hi"); !errors.Is(err, forum.ErrForbidden) {
		t.Fatalf("closed reply: err = %v", err)
	}
}

func TestEdit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	th := e.create(t, member, "general", "Original")

	got, err := e.svc.Edit(ctx, site, member, th.Slug, Submission{Title: "Renamed", Body: "new body"})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got.Title != "Renamed" || got.Slug != "original" {
		t.Fatalf("edited thread %#v", got)
	}
	root, _ := e.st.PostByID(ctx, *got.RootPostID)
	if root.Body != "new body" {
		t.Fatalf("root body %q", root.Body)
	}

	if _, err := e.svc.Edit(ctx, site, other, th.Slug, Submission{Title: "x", Body: "y"}); !errors.Is(err, forum.ErrForbidden) {
		t.Fatalf("non-author edit: err = %v", err)
	}

	closed := true
	_, _ = e.svc.Moderate(ctx, site, staff, th.Slug, Flags{Closed: &closed})
	if _, err := e.svc.Edit(ctx, site, member, th.Slug, Submission{Title: "x", Body: "y"}); !errors.Is(err, forum.ErrForbidden) {
		t.Fatalf("author edit of closed thread: err = %v", err)
	}
	if _, err := e.svc.Edit(ctx, site, staff, th.Slug, Submission{Title: "Staff", Body: "y"}); err != nil {
		t.Fatalf("staff edit of closed thread: %v", err)
	}
}

func TestEditSkipsGuards(t *testing.T) {
	e := newEnv(t, withCooldown(time.Hour))
	ctx := context.Background()
	th := e.create(t, member, "general", "Once")

	if _, err := e.svc.Edit(ctx, site, member, th.Slug, Submission{Title: "Once", Body: "edited"}); err != nil {
		t.Fatalf("Edit inside cooldown: %v", err)
	}
}

func TestModerationRequiresStaff(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	th := e.create(t, member, "general", "Mod")
	yes := true

	if _, err := e.svc.Moderate(ctx, site, member, th.Slug, Flags{Sticky: &yes}); !errors.Is(err, forum.ErrForbidden) {
		t.Fatalf("Moderate: err = %v", err)
	}
	if _, err := e.svc.Move(ctx, site, member, th.Slug, "other"); !errors.Is(err, forum.ErrForbidden) {
		t.Fatalf("Move: err = %v", err)
	}
	if err := e.svc.Delete(ctx, site, member, th.Slug); !errors.Is(err, forum.ErrForbidden) {
		t.Fatalf("Delete: err = %v", err)
	}
	if err := e.svc.Ban(ctx, site, member, th.Slug, other.ID); !errors.Is(err, forum.ErrForbidden) {
		t.Fatalf("Ban: err = %v", err)
	}

	got, err := e.svc.Moderate(ctx, site, staff, th.Slug, Flags{Sticky: &yes})
	if err != nil || !got.Sticky || got.Closed {
		t.Fatalf("Moderate = %#v, %v", got, err)
	}
}

func TestMoveEmitsEvent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	th := e.create(t, member, "general", "Moving")

	got, err := e.svc.Move(ctx, site, staff, th.Slug, "other")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got.ForumID != e.forums["other"].ID {
		t.Fatalf("forum not changed")
	}

	last := e.events.Events[len(e.events.Events)-1]
	moved, ok := last.Data.(event.ThreadMoved)
	if last.Kind != event.KindThreadMoved || !ok {
		t.Fatalf("last event %#v", last)
	}
	if moved.OldForum != e.forums["general"].ID || moved.NewForum != e.forums["other"].ID || moved.Actor.ID != staff.ID {
		t.Fatalf("moved = %#v", moved)
	}
	if !last.At.Equal(t0) {
		t.Fatalf("event stamped %v, want service clock %v", last.At, t0)
	}

	if _, err := e.svc.Move(ctx, site, staff, th.Slug, "secret"); !errors.Is(err, forum.ErrNotFound) {
		t.Fatalf("move into unreadable forum: err = %v", err)
	}

	page, err := e.svc.Forum(ctx, site, member, "general", 1)
	if err != nil {
		t.Fatalf("Forum: %v", err)
	}
	if page.ThreadsTotal != 0 || page.PostsTotal != 0 || len(page.Active) != 0 {
		t.Fatalf("old forum still counts the moved thread: %#v", page)
	}
}

// interleavingStore runs between once, just before the wrapped call, to
// stand in for a concurrent request landing between read and write.
type interleavingStore struct {
	store.Store
	mu      sync.Mutex
	between map[string]func()
}

func (s *interleavingStore) fire(op string) {
	s.mu.Lock()
	fn := s.between[op]
	delete(s.between, op)
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *interleavingStore) PostByID(ctx context.Context, id int64) (*forum.Post, error) {
	s.fire("PostByID")
	return s.Store.PostByID(ctx, id)
}

func (s *interleavingStore) SetFlags(ctx context.Context, id int64, fl store.ThreadFlags) error {
	s.fire("SetFlags")
	return s.Store.SetFlags(ctx, id, fl)
}

func (s *interleavingStore) SetForum(ctx context.Context, id, forumID int64) error {
	s.fire("SetForum")
	return s.Store.SetForum(ctx, id, forumID)
}

func TestConcurrentWritesKeepEachOther(t *testing.T) {
	is := &interleavingStore{between: map[string]func(){}}
	e := newEnv(t, withStore(func(m *store.Memory) store.Store {
		is.Store = m
		return is
	}))
	ctx := context.Background()
	yes := true
	otherForum := e.forums["other"].ID

	th := e.create(t, member, "general", "Racy")

	// A moderator closes the thread after the author's edit loaded it.
	is.between["PostByID"] = func() {
		if err := e.mem.SetFlags(ctx, th.ID, store.ThreadFlags{Closed: &yes}); err != nil {
			t.Errorf("close: %v", err)
		}
	}
	got, err := e.svc.Edit(ctx, site, member, th.Slug, Submission{Title: "Racy edit", Body: "b"})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got.Title != "Racy edit" || !got.Closed {
		t.Fatalf("edit reopened or lost title: %#v", got)
	}

	// A move lands between the moderator's read and flag write.
	is.between["SetFlags"] = func() {
		if err := e.mem.SetForum(ctx, th.ID, otherForum); err != nil {
			t.Errorf("move: %v", err)
		}
	}
	got, err = e.svc.Moderate(ctx, site, staff, th.Slug, Flags{Sticky: &yes})
	if err != nil {
		t.Fatalf("Moderate: %v", err)
	}
	if got.ForumID != otherForum || !got.Sticky || !got.Closed {
		t.Fatalf("moderation undid the move: %#v", got)
	}

	// Flag changes made during a move survive it.
	no := false
	is.between["SetForum"] = func() {
		if err := e.mem.SetFlags(ctx, th.ID, store.ThreadFlags{Featured: &yes, Sticky: &no}); err != nil {
			t.Errorf("feature: %v", err)
		}
	}
	got, err = e.svc.Move(ctx, site, staff, th.Slug, "general")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	stored, _ := e.mem.ThreadByID(ctx, th.ID)
	for _, x := range []*forum.Thread{got, stored} {
		if x.ForumID != e.forums["general"].ID || !x.Featured || x.Sticky || !x.Closed || x.Title != "Racy edit" {
			t.Fatalf("move overwrote concurrent flags: %#v", x)
		}
	}
}

func TestConcurrentReplies(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	th := e.create(t, member, "general", "Busy")

	const n = 32
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		maxID int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := e.svc.Reply(ctx, site, other, th.Slug, "me too")
			if err != nil {
				t.Errorf("Reply: %v", err)
				return
			}
			mu.Lock()
			if p.ID > maxID {
				maxID = p.ID
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	got, err := e.st.ThreadByID(ctx, th.ID)
	if err != nil {
		t.Fatalf("ThreadByID: %v", err)
	}
	counted, _ := e.st.CountPosts(ctx, th.ID)
	if got.Posts != n+1 || counted != n+1 {
		t.Fatalf("posts = %d, counted = %d, want %d", got.Posts, counted, n+1)
	}
	// Every reply carries the same timestamp, so the last attached (highest
	// id) is the newest.
	if got.LatestPostID == nil || *got.LatestPostID != maxID {
		t.Fatalf("latest post = %v, want %d", got.LatestPostID, maxID)
	}
}

func TestDeleteRecounts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	keep := e.create(t, member, "general", "Keep")
	gone := e.create(t, other, "general", "Gone")
	_, _ = e.svc.Reply(ctx, site, member, gone.Slug, "r")

	if err := e.svc.Delete(ctx, site, staff, gone.Slug); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := e.st.ThreadBySlug(ctx, site, gone.Slug); !errors.Is(err, forum.ErrNotFound) {
		t.Fatalf("thread survived: %v", err)
	}
	if n, _ := e.st.CountPosts(ctx, gone.ID); n != 0 {
		t.Fatalf("posts survived: %d", n)
	}

	f, _ := e.st.ForumBySlug(ctx, site, "general")
	if f.ThreadsTotal != 1 || f.PostsTotal != 1 {
		t.Fatalf("persisted totals %d/%d", f.ThreadsTotal, f.PostsTotal)
	}

	page, _ := e.svc.Forum(ctx, site, member, "general", 1)
	if len(page.Threads) != 1 || page.Threads[0].ID != keep.ID {
		t.Fatalf("threads = %#v", page.Threads)
	}
	for _, a := range page.Active {
		if a.ID == gone.ID {
			t.Fatalf("deleted thread in active list")
		}
	}
}

func TestViewPaginates(t *testing.T) {
	e := newEnv(t, withPageSize(2))
	ctx := context.Background()
	th := e.create(t, member, "general", "Paged")
	for i := 0; i < 2; i++ {
		e.clock.Advance(time.Second)
		_, _ = e.svc.Reply(ctx, site, other, th.Slug, "r")
	}

	p1, err := e.svc.View(ctx, site, member, th.Slug, 1)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(p1.Posts) != 2 || !p1.HasNext || !p1.CanReply || !p1.CanEdit {
		t.Fatalf("page 1 = %#v", p1)
	}
	p2, _ := e.svc.View(ctx, site, other, th.Slug, 2)
	if len(p2.Posts) != 1 || p2.HasNext || p2.CanEdit {
		t.Fatalf("page 2 = %#v", p2)
	}
	if p2.Thread.Views != 2 {
		t.Fatalf("views = %d", p2.Thread.Views)
	}
}

func TestForumPage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, member, "general", "A")
	e.clock.Advance(time.Minute)
	b := e.create(t, other, "general", "B")
	e.clock.Advance(time.Minute)
	_, _ = e.svc.Reply(ctx, site, other, a.Slug, "bump")

	yes := true
	_, _ = e.svc.Moderate(ctx, site, staff, b.Slug, Flags{Sticky: &yes})

	page, err := e.svc.Forum(ctx, site, member, "general", 1)
	if err != nil {
		t.Fatalf("Forum: %v", err)
	}
	if len(page.Sticky) != 1 || page.Sticky[0].ID != b.ID {
		t.Fatalf("sticky = %#v", page.Sticky)
	}
	if len(page.Threads) != 1 || page.Threads[0].ID != a.ID {
		t.Fatalf("threads = %#v", page.Threads)
	}
	if len(page.Active) != 2 || page.Active[0].ID != a.ID {
		t.Fatalf("active = %#v", page.Active)
	}
	if len(page.Newest) != 2 || page.Newest[0].ID != b.ID {
		t.Fatalf("newest = %#v", page.Newest)
	}
	if page.ThreadsTotal != 2 || page.PostsTotal != 3 {
		t.Fatalf("totals %d/%d", page.ThreadsTotal, page.PostsTotal)
	}
	if len(page.Subforums) != 1 || page.Subforums[0].Slug != "help" {
		t.Fatalf("subforums = %#v", page.Subforums)
	}

	help, _ := e.svc.Forum(ctx, site, member, "help", 1)
	if len(help.Breadcrumbs) != 2 || help.Breadcrumbs[0].Slug != "general" {
		t.Fatalf("breadcrumbs = %#v", help.Breadcrumbs)
	}

	if _, err := e.svc.Forum(ctx, site, other, "secret", 1); !errors.Is(err, forum.ErrNotFound) {
		t.Fatalf("restricted forum page: err = %v", err)
	}
}

func TestForumsIndex(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.mem.AddCategory(forum.Category{SiteID: site, Title: "Public", Slug: "public"})
	e.mem.AddCategory(forum.Category{SiteID: site, Title: "VIP", Slug: "vip", OnlyUpgraders: true})

	slugs := func(sums []ForumSummary) map[string]bool {
		out := map[string]bool{}
		for _, s := range sums {
			out[s.Slug] = true
		}
		return out
	}

	idx, err := e.svc.Forums(ctx, site, member)
	if err != nil {
		t.Fatalf("Forums: %v", err)
	}
	roots := slugs(idx.Forums)
	if !roots["general"] || roots["help"] || roots["secret"] || roots["staff-room"] {
		t.Fatalf("member roots = %v", roots)
	}
	if r := slugs(idx.Restricted); len(r) != 1 || !r["secret"] {
		t.Fatalf("member restricted = %v", r)
	}
	if len(idx.Categories) != 1 {
		t.Fatalf("member categories = %#v", idx.Categories)
	}

	idx, _ = e.svc.Forums(ctx, site, upgraded)
	if len(idx.Categories) != 2 || len(idx.Restricted) != 0 {
		t.Fatalf("upgraded index = %#v", idx)
	}

	idx, _ = e.svc.Forums(ctx, site, staff)
	if !slugs(idx.Forums)["staff-room"] {
		t.Fatalf("staff cannot see staff-only forum")
	}
}

func TestPreviewHasNoSideEffects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	pv, err := e.svc.Preview(ctx, site, member, "help", Submission{Title: "Draft title", Body: ""})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if pv.Thread.Slug != "draft-title" || pv.Thread.Posts != 1 || len(pv.Breadcrumbs) != 2 {
		t.Fatalf("preview = %#v", pv)
	}
	if len(pv.Errors) != 1 || pv.Errors[0].Name != "body" {
		t.Fatalf("errors = %#v", pv.Errors)
	}
	if ok, _ := e.st.SlugExists(ctx, "draft-title"); ok {
		t.Fatalf("preview stored a thread")
	}
	if len(e.events.Events) != 0 {
		t.Fatalf("preview emitted events")
	}

	if _, err := e.svc.Preview(ctx, site, other, "secret", Submission{Title: "x", Body: "y"}); !errors.Is(err, forum.ErrNotFound) {
		t.Fatalf("preview in restricted forum: err = %v", err)
	}
}

func TestSaveForum(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.svc.SaveForum(ctx, site, member, forum.Forum{Title: "New"}); !errors.Is(err, forum.ErrForbidden) {
		t.Fatalf("member SaveForum: err = %v", err)
	}

	f, err := e.svc.SaveForum(ctx, site, staff, forum.Forum{Title: "Off Topic"})
	if err != nil {
		t.Fatalf("SaveForum: %v", err)
	}
	if f.ID == 0 || f.Slug != "off-topic" {
		t.Fatalf("saved forum %#v", f)
	}

	// general → help → general closes a loop.
	general := *e.forums["general"]
	general.ParentID = &e.forums["help"].ID
	if _, err := e.svc.SaveForum(ctx, site, staff, general); !IsValidationError(err) {
		t.Fatalf("loop placement: err = %v", err)
	}

	// A child titled like its ancestor.
	dup := forum.Forum{Title: "General", Slug: "general-2", ParentID: &e.forums["help"].ID}
	if _, err := e.svc.SaveForum(ctx, site, staff, dup); !IsValidationError(err) {
		t.Fatalf("ancestor title: err = %v", err)
	}

	if _, err := e.svc.SaveForum(ctx, site, staff, forum.Forum{Title: "General again", Slug: "general"}); !IsValidationError(err) {
		t.Fatalf("duplicate slug: err = %v", err)
	}

	secret := *e.forums["secret"]
	secret.AllowedUsers = forum.IDSet(member.ID, other.ID)
	if _, err := e.svc.SaveForum(ctx, site, staff, secret); err != nil {
		t.Fatalf("update allow-list: %v", err)
	}
	if _, err := e.svc.Forum(ctx, site, other, "secret", 1); err != nil {
		t.Fatalf("newly allowed member: %v", err)
	}
}
