// evictor.go houses the eviction pass for Cache.  Each pass removes:
//
//   - sites idle longer than Options.IdleTTL
//   - least-recently-used sites when the map exceeds Options.MaxEntries
//
// Each eviction is logged and updates Prometheus counters.
package site

import (
	"context"
	"sort"
	"sync/atomic"
	"time"
)

// DefaultEvictInterval is the Run period used by cmd/forumd.
const DefaultEvictInterval = 5 * time.Minute

// Run calls Evict every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultEvictInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Evict()
		}
	}
}

// Evict runs one idle pass and one LRU pass and returns how many sites were
// dropped.
func (c *Cache) Evict() int {
	now := c.now().UnixNano()
	dropped := 0

	type kv struct {
		key string
		at  int64
	}
	var live []kv

	// Idle pass
	c.m.Range(func(key, value any) bool {
		ent := value.(*entry)
		seen := atomic.LoadInt64(&ent.lastSeen)
		if time.Duration(now-seen) > c.opts.IdleTTL {
			c.drop(key.(string), "idle")
			dropped++
			return true
		}
		live = append(live, kv{key: key.(string), at: seen})
		return true
	})

	// LRU pass
	if over := len(live) - c.opts.MaxEntries; over > 0 {
		sort.Slice(live, func(i, j int) bool { return live[i].at < live[j].at })
		for _, e := range live[:over] {
			c.drop(e.key, "lru")
			dropped++
		}
	}
	return dropped
}
