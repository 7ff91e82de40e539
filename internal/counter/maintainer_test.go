// internal/counter/maintainer_test.go
//
// Run: go test ./internal/counter -v
package counter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yanizio/adept-forum/internal/cache"
	"github.com/yanizio/adept-forum/internal/forum"
	"github.com/yanizio/adept-forum/internal/store"
)

var t0 = time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

// brokenCache fails every call.
type brokenCache struct{}

var errDown = errors.New("cache down")

func (brokenCache) Get(context.Context, string) ([]byte, bool, error)          { return nil, false, errDown }
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error   { return errDown }
func (brokenCache) Delete(context.Context, ...string) error                    { return errDown }
func (brokenCache) Push(context.Context, string, string, int) error            { return errDown }
func (brokenCache) Range(context.Context, string, int) ([]string, error)       { return nil, errDown }
func (brokenCache) Remove(context.Context, string, string) error               { return errDown }
func (brokenCache) Ping(context.Context) error                                 { return errDown }
func (brokenCache) Close() error                                               { return nil }

type fixture struct {
	st    *store.Memory
	forum *forum.Forum
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	f := &forum.Forum{SiteID: 1, Title: "General", Slug: "general"}
	if err := st.SaveForum(context.Background(), f); err != nil {
		t.Fatalf("SaveForum: %v", err)
	}
	return &fixture{st: st, forum: f}
}

func (fx *fixture) thread(t *testing.T, m *Maintainer, slug string, posts int) *forum.Thread {
	t.Helper()
	ctx := context.Background()
	th := &forum.Thread{ForumID: fx.forum.ID, Title: slug, Slug: slug, CreatedAt: t0}
	if err := fx.st.InsertThread(ctx, th); err != nil {
		t.Fatalf("InsertThread: %v", err)
	}
	for i := 0; i < posts; i++ {
		fx.post(t, m, th, t0.Add(time.Duration(i)*time.Minute))
	}
	return th
}

func (fx *fixture) post(t *testing.T, m *Maintainer, th *forum.Thread, at time.Time) *forum.Post {
	t.Helper()
	ctx := context.Background()
	p := &forum.Post{ThreadID: th.ID, AuthorID: 1, Body: "x", SubmittedAt: at}
	if err := fx.st.CreatePost(ctx, p); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if err := m.PostCreated(ctx, fx.st, fx.forum, th, p); err != nil {
		t.Fatalf("PostCreated: %v", err)
	}
	return p
}

func TestPostCountInvariant(t *testing.T) {
	fx := newFixture(t)
	m := New(fx.st, cache.NewMemory(64), Options{}, nil)
	ctx := context.Background()

	th := fx.thread(t, m, "a", 3)
	late := fx.post(t, m, th, t0.Add(time.Hour))

	stored, _ := fx.st.ThreadByID(ctx, th.ID)
	live, _ := fx.st.CountPosts(ctx, th.ID)
	if stored.Posts != live || stored.Posts != 4 {
		t.Fatalf("posts column %d, live %d", stored.Posts, live)
	}
	if *stored.LatestPostID != late.ID || *th.LatestPostID != late.ID {
		t.Fatalf("latest post not moved to newest")
	}
}

func TestAggregateReadThrough(t *testing.T) {
	fx := newFixture(t)
	m := New(fx.st, cache.NewMemory(64), Options{}, nil)
	ctx := context.Background()

	th := fx.thread(t, m, "a", 2)
	fx.thread(t, m, "b", 1)

	n, err := m.ForumPostsTotal(ctx, fx.forum)
	if err != nil || n != 3 {
		t.Fatalf("ForumPostsTotal = %d, %v", n, err)
	}

	// A write that bypasses Touch leaves the cached value in place.
	_ = fx.st.AttachPost(ctx, th.ID, 999, t0.Add(time.Hour))
	if n, _ := m.ForumPostsTotal(ctx, fx.forum); n != 3 {
		t.Fatalf("cached total = %d, want 3", n)
	}

	m.Invalidate(ctx, fx.forum)
	if n, _ := m.ForumPostsTotal(ctx, fx.forum); n != 4 {
		t.Fatalf("after Invalidate = %d, want 4", n)
	}
	if n, _ := m.ForumThreadsTotal(ctx, fx.forum); n != 2 {
		t.Fatalf("ForumThreadsTotal = %d, want 2", n)
	}
}

func TestAggregateWithoutCache(t *testing.T) {
	for name, c := range map[string]cache.Cache{"nil": nil, "broken": brokenCache{}} {
		t.Run(name, func(t *testing.T) {
			fx := newFixture(t)
			m := New(fx.st, c, Options{}, nil)
			fx.thread(t, m, "a", 2)

			n, err := m.ForumPostsTotal(context.Background(), fx.forum)
			if err != nil || n != 2 {
				t.Fatalf("ForumPostsTotal = %d, %v", n, err)
			}
			if ids := m.RecentThreads(context.Background(), fx.forum, 10); len(ids) != 0 {
				t.Fatalf("RecentThreads = %v", ids)
			}
		})
	}
}

// gatedCounts blocks SumPosts until release closes and fails with the
// context's error if it was cancelled meanwhile.
type gatedCounts struct {
	Counts
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCounts) SumPosts(ctx context.Context, _ int64) (int64, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return 7, nil
}

func TestAggregateSurvivesFirstCallerCancel(t *testing.T) {
	fx := newFixture(t)
	g := &gatedCounts{Counts: fx.st, entered: make(chan struct{}), release: make(chan struct{})}
	m := New(g, nil, Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		n   int64
		err error
	}
	first, second := make(chan result, 1), make(chan result, 1)
	go func() {
		n, err := m.ForumPostsTotal(ctx, fx.forum)
		first <- result{n, err}
	}()
	<-g.entered
	go func() {
		n, err := m.ForumPostsTotal(context.Background(), fx.forum)
		second <- result{n, err}
	}()
	cancel()
	close(g.release)

	for _, ch := range []chan result{first, second} {
		if r := <-ch; r.err != nil || r.n != 7 {
			t.Fatalf("ForumPostsTotal = %d, %v", r.n, r.err)
		}
	}
}

func TestActiveListBound(t *testing.T) {
	fx := newFixture(t)
	m := New(fx.st, cache.NewMemory(64), Options{}, nil)
	ctx := context.Background()

	var last *forum.Thread
	for i := 0; i < 30; i++ {
		last = fx.thread(t, m, "t"+string(rune('a'+i)), 1)
	}
	ids := m.RecentThreads(ctx, fx.forum, 0)
	if len(ids) != DefaultActiveTrim || ids[0] != last.ID {
		t.Fatalf("active list len %d: %v", len(ids), ids)
	}
}

func TestThreadDeletedRecount(t *testing.T) {
	fx := newFixture(t)
	c := cache.NewMemory(64)
	m := New(fx.st, c, Options{}, nil)
	ctx := context.Background()

	gone := fx.thread(t, m, "gone", 2)
	m.ThreadCreated(ctx, fx.forum, gone)
	fx.thread(t, m, "kept", 1)

	if _, err := fx.st.DeletePostsByThread(ctx, gone.ID); err != nil {
		t.Fatal(err)
	}
	if err := fx.st.DeleteThread(ctx, gone.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.ThreadDeleted(ctx, fx.forum, gone); err != nil {
		t.Fatalf("ThreadDeleted: %v", err)
	}

	saved, _ := fx.st.ForumByID(ctx, 1, fx.forum.ID)
	if saved.ThreadsTotal != 1 || saved.PostsTotal != 1 {
		t.Fatalf("persisted totals %d/%d", saved.ThreadsTotal, saved.PostsTotal)
	}
	for _, id := range append(m.RecentThreads(ctx, fx.forum, 0), m.NewestThreads(ctx, fx.forum, 0)...) {
		if id == gone.ID {
			t.Fatalf("deleted thread still listed")
		}
	}
	if n, _ := m.ForumPostsTotal(ctx, fx.forum); n != 1 {
		t.Fatalf("cached posts = %d", n)
	}
}
