// internal/flood/courtesy.go
//
// Per-forum courtesy guard kept in the cache.
//
// Context
// -------
// Some forums (announcements, classifieds) want a longer quiet period per
// member than the global cooldown.  The `forum.flood_control` config maps a
// forum slug to a number of seconds.  After a member opens a thread in such
// a forum, Remember stores a notice under
//
//	forum:flood:<site>:<forum>:<username>
//
// with a TTL equal to the period.  While the notice lives, the create
// handler redirects the member to the thread they already opened and the
// forum page shows the notice instead of the new-thread form.
//
// Forums missing from the map, anonymous principals, and a nil cache all
// disable the guard.  Cache failures are logged and treated as "no notice".
package flood

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/adept-forum/internal/auth"
	"github.com/yanizio/adept-forum/internal/cache"
	"github.com/yanizio/adept-forum/internal/forum"
	"github.com/yanizio/adept-forum/internal/metrics"
)

// Notice is the cached record of the member's last thread in a forum.
type Notice struct {
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Expires time.Time `json:"expires"`
}

// RetryAfter is the time left before the member may post again.
func (n *Notice) RetryAfter(now time.Time) time.Duration {
	if d := n.Expires.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Courtesy tracks per-forum quiet periods.
type Courtesy struct {
	cache   cache.Backend
	periods map[string]time.Duration
	log     *zap.SugaredLogger
	now     func() time.Time
}

// NewCourtesy converts the slug → seconds map from config.  c may be nil.
func NewCourtesy(c cache.Backend, seconds map[string]int, log *zap.SugaredLogger) *Courtesy {
	periods := make(map[string]time.Duration, len(seconds))
	for slug, s := range seconds {
		if s > 0 {
			periods[slug] = time.Duration(s) * time.Second
		}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Courtesy{cache: c, periods: periods, log: log, now: time.Now}
}

// SetClock replaces time.Now.
func (c *Courtesy) SetClock(now func() time.Time) { c.now = now }

// Period reports the quiet period for forumSlug, or false when the forum
// is not flood-controlled.
func (c *Courtesy) Period(forumSlug string) (time.Duration, bool) {
	d, ok := c.periods[forumSlug]
	return d, ok
}

func (c *Courtesy) enabled(forumSlug string, p auth.Principal) (time.Duration, bool) {
	if c == nil || c.cache == nil || !p.Authenticated {
		return 0, false
	}
	return c.Period(forumSlug)
}

// Key builds the cache key for one member in one forum.
func Key(siteID int64, forumSlug, username string) string {
	k := fmt.Sprintf("forum:flood:%d:%s:%s", siteID, forumSlug, username)
	return strings.ReplaceAll(k, " ", "-")
}

// Remember records t as p's latest thread in forumSlug.
func (c *Courtesy) Remember(ctx context.Context, siteID int64, forumSlug string, p auth.Principal, t *forum.Thread) {
	period, ok := c.enabled(forumSlug, p)
	if !ok {
		return
	}
	n := Notice{Title: t.Title, URL: t.URL(), Expires: c.now().Add(period)}
	b, err := json.Marshal(n)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, Key(siteID, forumSlug, p.Username), b, period); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("courtesy_set").Inc()
		c.log.Warnw("courtesy notice not stored", "forum", forumSlug, "err", err)
	}
}

// Active returns p's live notice for forumSlug, if any.
func (c *Courtesy) Active(ctx context.Context, siteID int64, forumSlug string, p auth.Principal) (*Notice, bool) {
	if _, ok := c.enabled(forumSlug, p); !ok {
		return nil, false
	}
	b, hit, err := c.cache.Get(ctx, Key(siteID, forumSlug, p.Username))
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("courtesy_get").Inc()
		c.log.Warnw("courtesy notice lookup failed", "forum", forumSlug, "err", err)
		return nil, false
	}
	if !hit {
		return nil, false
	}
	var n Notice
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, false
	}
	if !c.now().Before(n.Expires) {
		return nil, false
	}
	return &n, true
}

// Now exposes the courtesy clock so handlers compute RetryAfter against
// the same time source.
func (c *Courtesy) Now() time.Time { return c.now() }
