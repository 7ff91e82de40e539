// internal/counter/maintainer.go
//
// Denormalized counters, recent-activity lists, and cached forum totals.
//
// Context
// -------
// The thread service calls the Maintainer explicitly at each write:
//
//	create  → AttachPost (in tx) → Touch + ThreadCreated (after commit)
//	reply   → AttachPost (in tx) → Touch (after commit)
//	delete  → ThreadDeleted (after commit)
//	move    → ThreadMoved (invalidates both forums)
//
// AttachPost is the only path that changes thread.posts and
// thread.latest_post, so the "posts equals live post count" invariant rests
// on one atomic statement.  Everything else here is best effort: list and
// cache failures are logged, counted, and swallowed.
//
// Cache layout
// ------------
//
//	forum:<site>:<forum>:posts      aggregate, TTL AggregateTTL
//	forum:<site>:<forum>:threads    aggregate, TTL AggregateTTL
//	forum:<site>:<forum>:active     list, trimmed to ActiveTrim
//	forum:<site>:<forum>:created    list, trimmed to CreatedTrim
//
// Notes
// -----
//   - A nil cache is valid; totals are then computed live on every read.
//   - Concurrent misses for one key share a single recount (singleflight).
//   - Oxford commas, two spaces after periods.
package counter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/adept-forum/internal/cache"
	"github.com/yanizio/adept-forum/internal/forum"
	"github.com/yanizio/adept-forum/internal/metrics"
)

// Defaults used when Options leave a field zero.
const (
	DefaultActiveTrim   = 25
	DefaultCreatedTrim  = 30
	DefaultAggregateTTL = time.Hour
)

// Options tune list bounds and aggregate lifetime.
type Options struct {
	ActiveTrim   int           `koanf:"active_trim"`
	CreatedTrim  int           `koanf:"created_trim"`
	AggregateTTL time.Duration `koanf:"aggregate_ttl"`
}

// Attacher is the store call behind AttachPost.  Pass the transactional
// store so the increment commits with the post.
type Attacher interface {
	AttachPost(ctx context.Context, threadID, postID int64, at time.Time) error
}

// Counts is the store surface for live recounts.
type Counts interface {
	CountThreads(ctx context.Context, forumID int64) (int64, error)
	SumPosts(ctx context.Context, forumID int64) (int64, error)
	SaveForumTotals(ctx context.Context, forumID, threads, posts int64) error
}

// Maintainer keeps derived forum state in step with writes.
type Maintainer struct {
	counts Counts
	cache  cache.Cache
	opts   Options
	log    *zap.SugaredLogger
	group  singleflight.Group
}

// New returns a Maintainer.  c may be nil.
func New(counts Counts, c cache.Cache, opts Options, log *zap.SugaredLogger) *Maintainer {
	if opts.ActiveTrim <= 0 {
		opts.ActiveTrim = DefaultActiveTrim
	}
	if opts.CreatedTrim <= 0 {
		opts.CreatedTrim = DefaultCreatedTrim
	}
	if opts.AggregateTTL <= 0 {
		opts.AggregateTTL = DefaultAggregateTTL
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Maintainer{counts: counts, cache: c, opts: opts, log: log}
}

func key(f *forum.Forum, suffix string) string {
	return fmt.Sprintf("forum:%d:%d:%s", f.SiteID, f.ID, suffix)
}

/*──────────────────────────── writes ──────────────────────────────────────*/

// AttachPost applies the post delta to thread t inside the caller's
// transaction and mirrors it onto t.
func (m *Maintainer) AttachPost(ctx context.Context, tx Attacher, t *forum.Thread, p *forum.Post) error {
	if err := tx.AttachPost(ctx, t.ID, p.ID, p.SubmittedAt); err != nil {
		return err
	}
	t.Posts++
	if t.LatestPostAt == nil || !p.SubmittedAt.Before(*t.LatestPostAt) {
		id, at := p.ID, p.SubmittedAt
		t.LatestPostID, t.LatestPostAt = &id, &at
	}
	metrics.PostsCreatedTotal.Inc()
	return nil
}

// Touch records activity on t after commit.
func (m *Maintainer) Touch(ctx context.Context, f *forum.Forum, t *forum.Thread) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Push(ctx, key(f, "active"), member(t), m.opts.ActiveTrim); err != nil {
		m.fail("push_active", f, err)
	}
	m.Invalidate(ctx, f)
}

// PostCreated is AttachPost followed by Touch, for callers that do not need
// to split the transaction boundary.
func (m *Maintainer) PostCreated(ctx context.Context, tx Attacher, f *forum.Forum, t *forum.Thread, p *forum.Post) error {
	if err := m.AttachPost(ctx, tx, t, p); err != nil {
		return err
	}
	m.Touch(ctx, f, t)
	return nil
}

// ThreadCreated pushes t onto the newest-threads list.
func (m *Maintainer) ThreadCreated(ctx context.Context, f *forum.Forum, t *forum.Thread) {
	metrics.ThreadsCreatedTotal.Inc()
	if m.cache == nil {
		return
	}
	if err := m.cache.Push(ctx, key(f, "created"), member(t), m.opts.CreatedTrim); err != nil {
		m.fail("push_created", f, err)
	}
}

// ThreadDeleted recounts f, persists the totals, refreshes the cache, and
// drops t from both lists.
func (m *Maintainer) ThreadDeleted(ctx context.Context, f *forum.Forum, t *forum.Thread) error {
	threads, err := m.counts.CountThreads(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("recount threads: %w", err)
	}
	posts, err := m.counts.SumPosts(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("recount posts: %w", err)
	}
	if err := m.counts.SaveForumTotals(ctx, f.ID, threads, posts); err != nil {
		return fmt.Errorf("save forum totals: %w", err)
	}
	f.ThreadsTotal, f.PostsTotal = threads, posts

	if m.cache == nil {
		return nil
	}
	m.store(ctx, f, "threads", threads)
	m.store(ctx, f, "posts", posts)
	for _, list := range []string{"active", "created"} {
		if err := m.cache.Remove(ctx, key(f, list), member(t)); err != nil {
			m.fail("remove_"+list, f, err)
		}
	}
	return nil
}

// ThreadMoved moves t's list entries from one forum to the other and drops
// both forums' aggregates.
func (m *Maintainer) ThreadMoved(ctx context.Context, from, to *forum.Forum, t *forum.Thread) {
	if m.cache == nil {
		return
	}
	for _, list := range []string{"active", "created"} {
		if err := m.cache.Remove(ctx, key(from, list), member(t)); err != nil {
			m.fail("remove_"+list, from, err)
		}
	}
	m.Touch(ctx, to, t)
	m.Invalidate(ctx, from)
}

// Invalidate drops f's cached aggregates.
func (m *Maintainer) Invalidate(ctx context.Context, f *forum.Forum) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Delete(ctx, key(f, "posts"), key(f, "threads")); err != nil {
		m.fail("invalidate", f, err)
	}
}

/*──────────────────────────── reads ───────────────────────────────────────*/

// ForumPostsTotal returns the number of posts in f's threads.
func (m *Maintainer) ForumPostsTotal(ctx context.Context, f *forum.Forum) (int64, error) {
	return m.aggregate(ctx, f, "posts", m.counts.SumPosts)
}

// ForumThreadsTotal returns the number of threads in f.
func (m *Maintainer) ForumThreadsTotal(ctx context.Context, f *forum.Forum) (int64, error) {
	return m.aggregate(ctx, f, "threads", m.counts.CountThreads)
}

func (m *Maintainer) aggregate(ctx context.Context, f *forum.Forum, metric string,
	live func(context.Context, int64) (int64, error)) (int64, error) {

	k := key(f, metric)
	if m.cache != nil {
		b, hit, err := m.cache.Get(ctx, k)
		switch {
		case err != nil:
			m.fail("get_"+metric, f, err)
		case hit:
			if n, perr := strconv.ParseInt(string(b), 10, 64); perr == nil {
				metrics.AggregateLookupsTotal.WithLabelValues("hit").Inc()
				return n, nil
			}
		}
	}
	metrics.AggregateLookupsTotal.WithLabelValues("miss").Inc()

	// Waiters share the first caller's result, so its cancellation must not
	// fail them.
	shared := context.WithoutCancel(ctx)
	v, err, _ := m.group.Do(k, func() (any, error) {
		n, err := live(shared, f.ID)
		if err != nil {
			return int64(0), err
		}
		m.store(shared, f, metric, n)
		return n, nil
	})
	if err != nil {
		return 0, fmt.Errorf("forum %d %s: %w", f.ID, metric, err)
	}
	return v.(int64), nil
}

func (m *Maintainer) store(ctx context.Context, f *forum.Forum, metric string, n int64) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Set(ctx, key(f, metric), []byte(strconv.FormatInt(n, 10)), m.opts.AggregateTTL); err != nil {
		m.fail("set_"+metric, f, err)
	}
}

// RecentThreads returns up to limit thread ids from f's active list.
func (m *Maintainer) RecentThreads(ctx context.Context, f *forum.Forum, limit int) []int64 {
	return m.list(ctx, f, "active", limit)
}

// NewestThreads returns up to limit thread ids from f's created list.
func (m *Maintainer) NewestThreads(ctx context.Context, f *forum.Forum, limit int) []int64 {
	return m.list(ctx, f, "created", limit)
}

func (m *Maintainer) list(ctx context.Context, f *forum.Forum, name string, limit int) []int64 {
	if m.cache == nil {
		return nil
	}
	raw, err := m.cache.Range(ctx, key(f, name), limit)
	if err != nil {
		m.fail("range_"+name, f, err)
		return nil
	}
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func member(t *forum.Thread) string { return strconv.FormatInt(t.ID, 10) }

func (m *Maintainer) fail(op string, f *forum.Forum, err error) {
	metrics.CacheErrorsTotal.WithLabelValues(op).Inc()
	m.log.Warnw("forum cache call failed", "op", op, "forum", f.ID, "err", err)
}
