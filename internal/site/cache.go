// internal/site/cache.go
//
// Host → site resolver with a lazy, singleflight-guarded cache.
//
// Context
// -------
// Every request resolves its Host header to a site row.  Cache keeps
// resolved rows in a sync.Map keyed by lookup host.  A miss loads through
// the Loader exactly once per host however many requests arrive in
// parallel (singleflight); the rest wait for the shared result.
//
// Entries are refreshed after Options.TTL so a suspension takes effect
// without a restart.  When the refresh fails for a reason other than "not
// found" the stale row keeps being served and the failure is logged.  The
// evictor (evictor.go) drops idle entries and trims the map to MaxEntries.
//
// The literal host "localhost" is looked up as Options.LocalhostAlias when
// set, so a dev instance can masquerade as a real site row.
//
// Notes
// -----
//   - Ports are stripped before lookup.
//   - Oxford commas, two spaces after periods.
package site

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/adept-forum/internal/forum"
	"github.com/yanizio/adept-forum/internal/metrics"
)

// Loader fetches an active site by lookup host.  *Repository implements it.
type Loader interface {
	ByHost(ctx context.Context, host string) (*Site, error)
}

// Options tune the cache.  Zero values take the defaults below.
type Options struct {
	TTL            time.Duration `koanf:"cache_ttl"`
	IdleTTL        time.Duration `koanf:"idle_ttl"`
	MaxEntries     int           `koanf:"max_entries"`
	LocalhostAlias string        `koanf:"localhost_alias"`
}

// Defaults.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultIdleTTL    = 30 * time.Minute
	DefaultMaxEntries = 100
)

type entry struct {
	site     *Site
	loadedAt int64 // UnixNano
	lastSeen int64 // UnixNano, atomic
}

// Cache resolves hosts to sites.  Safe for concurrent use.
type Cache struct {
	loader Loader
	opts   Options
	log    *zap.SugaredLogger
	now    func() time.Time

	sfg singleflight.Group
	m   sync.Map // lookup host → *entry
}

// NewCache constructs a Cache over l.
func NewCache(l Loader, opts Options, log *zap.SugaredLogger) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Cache{loader: l, opts: opts, log: log, now: time.Now}
}

// SetClock replaces the time source.  Tests only.
func (c *Cache) SetClock(now func() time.Time) { c.now = now }

// Len reports the number of cached sites.
func (c *Cache) Len() int {
	n := 0
	c.m.Range(func(_, _ any) bool { n++; return true })
	return n
}

// Resolve returns the site serving host.  Unknown, suspended, and deleted
// hosts are a wrapped forum.ErrNotFound.
func (c *Cache) Resolve(ctx context.Context, host string) (*Site, error) {
	key := c.lookupHost(host)
	now := c.now().UnixNano()

	if ent, ok := c.load(key); ok && now-ent.loadedAt < int64(c.opts.TTL) {
		atomic.StoreInt64(&ent.lastSeen, now)
		return ent.site, nil
	}

	v, err, _ := c.sfg.Do(key, func() (any, error) {
		// Double-check after singleflight barrier.
		now := c.now().UnixNano()
		stale, ok := c.load(key)
		if ok && now-stale.loadedAt < int64(c.opts.TTL) {
			atomic.StoreInt64(&stale.lastSeen, now)
			return stale.site, nil
		}

		s, err := c.loader.ByHost(context.WithoutCancel(ctx), key)
		switch {
		case errors.Is(err, forum.ErrNotFound):
			if ok {
				c.drop(key, "gone")
			}
			return nil, err
		case err != nil:
			metrics.SiteLoadErrorsTotal.Inc()
			if ok {
				c.log.Warnw("site refresh failed, serving cached row", "host", key, "err", err)
				atomic.StoreInt64(&stale.lastSeen, now)
				return stale.site, nil
			}
			return nil, err
		}

		ent := &entry{site: s, loadedAt: now, lastSeen: now}
		if _, replaced := c.m.Swap(key, ent); !replaced {
			metrics.ActiveSites.Inc()
		}
		metrics.SitesLoadedTotal.Inc()
		c.log.Debugw("site loaded", "host", key, "site", s.ID)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Site), nil
}

func (c *Cache) load(key string) (*entry, bool) {
	v, ok := c.m.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

func (c *Cache) drop(key, reason string) {
	if _, ok := c.m.LoadAndDelete(key); ok {
		metrics.ActiveSites.Dec()
		metrics.SiteEvictionsTotal.Inc()
		c.log.Infow("site evicted", "host", key, "reason", reason)
	}
}

// lookupHost strips the port and applies the localhost alias.
func (c *Cache) lookupHost(h string) string {
	h = strings.ToLower(stripPort(h))
	if h == "localhost" && c.opts.LocalhostAlias != "" {
		return c.opts.LocalhostAlias
	}
	return h
}

// stripPort removes the :port suffix from Host when present.
func stripPort(h string) string {
	if i := strings.IndexByte(h, ':'); i != -1 {
		return h[:i]
	}
	return h
}
