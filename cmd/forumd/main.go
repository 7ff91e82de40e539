// cmd/forumd/main.go
//
// Forum daemon, HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Bootstrap console logger so config errors are visible.
//
//  2. Optional Vault client (VAULT_ADDR set) for `vault:` config values.
//
//  3. Load conf/global.yaml plus ADEPT_ overrides and switch to the daily
//     rotating JSON logger (tees to console when running in a TTY).
//
//  4. Open the forum database and log the active-site count.
//
//  5. Pick the shared cache: Redis when redis.url is set, otherwise the
//     in-process LRU.  Events go to the log, and to Redis pub/sub when
//     redis.publish_events is on.
//
//  6. Wire guards, slug allocator, counters, and the thread service.
//
//  7. Start the site cache evictor and serve until SIGINT or SIGTERM.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/yanizio/adept-forum/internal/api"
	"github.com/yanizio/adept-forum/internal/cache"
	"github.com/yanizio/adept-forum/internal/config"
	"github.com/yanizio/adept-forum/internal/counter"
	"github.com/yanizio/adept-forum/internal/database"
	"github.com/yanizio/adept-forum/internal/event"
	"github.com/yanizio/adept-forum/internal/flood"
	"github.com/yanizio/adept-forum/internal/logger"
	"github.com/yanizio/adept-forum/internal/requestinfo"
	"github.com/yanizio/adept-forum/internal/server"
	"github.com/yanizio/adept-forum/internal/site"
	"github.com/yanizio/adept-forum/internal/slug"
	"github.com/yanizio/adept-forum/internal/store"
	"github.com/yanizio/adept-forum/internal/thread"
	"github.com/yanizio/adept-forum/internal/vault"
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	boot := logger.Bootstrap()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, boot); err != nil {
		boot.Fatalw("forumd stopped", "err", err)
	}
}

func run(ctx context.Context, boot *zap.SugaredLogger) error {
	//
	// ── 1.  Secrets and configuration ───────────────────────────────────
	//
	var secrets config.Secrets
	if os.Getenv("VAULT_ADDR") != "" {
		vc, err := vault.New(ctx, boot)
		if err != nil {
			return err
		}
		secrets = vc
	}

	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Paths.Root, cfg.Log.Level, cfg.Log.Tee || runningInTTY())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	//
	// ── 2.  Database ────────────────────────────────────────────────────
	//
	log.Infow("connecting to forum DB", "driver", cfg.Database.Driver)
	db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.ResolvedDSN(), cfg.Database.Pool)
	if err != nil {
		return err
	}
	defer db.Close()

	sites := site.NewRepository(db)
	if active, err := sites.AllActive(ctx); err != nil {
		log.Warnw("active site count failed", "err", err)
	} else {
		log.Infow("forum DB online", "active_sites", len(active))
	}

	//
	// ── 3.  Cache and event sinks ───────────────────────────────────────
	//
	sinks := event.Multi{event.LogSink{Log: log}}

	shared := cache.Connect(ctx, cfg.Redis.URL, cfg.Redis.Prefix, cfg.Forum.MemoryCacheSize, log)
	if rc, ok := shared.(*cache.Redis); ok && cfg.Redis.PublishEvents {
		sinks = append(sinks, event.NewRedisPublisher(rc.Client(), cfg.Redis.Prefix+"events:", log))
	}
	defer shared.Close()

	//
	// ── 4.  Domain services ─────────────────────────────────────────────
	//
	st := store.NewSQL(db)
	threads := thread.New(thread.Deps{
		Store:    st,
		Guard:    flood.NewGuard(st, cfg.Forum.RateCooldown),
		Slugs:    slug.NewAllocator(cfg.Forum.Slug),
		Counters: counter.New(st, shared, cfg.Forum.Counters, log),
		Events:   sinks,
		Log:      log,
		PageSize: cfg.Forum.PageSize,
	})

	siteCache := site.NewCache(sites, cfg.Site, log)
	go siteCache.Run(ctx, site.DefaultEvictInterval)

	//
	// ── 5.  HTTP server ─────────────────────────────────────────────────
	//
	var geo requestinfo.Locator
	if cfg.HTTP.GeoIPDB != "" {
		g, err := requestinfo.OpenGeo(cfg.HTTP.GeoIPDB)
		if err != nil {
			return err
		}
		defer g.Close()
		geo = g
	}

	handler := api.New(api.Deps{
		Threads:      threads,
		Sites:        siteCache,
		Courtesy:     flood.NewCourtesy(shared, cfg.Forum.FloodControl, log),
		Checks:       map[string]api.Check{"database": db.PingContext},
		Optional:     map[string]api.Check{"cache": shared.Ping},
		Geo:          geo,
		TrustHeaders: cfg.Auth.TrustHeaders,
		ForceHTTPS:   cfg.HTTP.ForceHTTPS,
		Log:          log,
	})

	srv := server.New(cfg.HTTP.ListenAddr, handler, server.Timeouts{
		Read:  cfg.HTTP.ReadTimeout,
		Write: cfg.HTTP.WriteTimeout,
		Idle:  cfg.HTTP.IdleTimeout,
	})
	return server.Serve(ctx, srv, log)
}
