// internal/api/api.go
//
// chi JSON surface over the thread service.
//
// Context
// -------
// The router is assembled once at boot:
//
//	request id → real ip → access log → recoverer → security headers
//	  → (optional) HTTPS redirect
//	  ├─ /healthz, /metrics                       no site needed
//	  └─ site resolution → principal from headers → forum routes
//
// Handlers are thin.  They decode the body, pull the site and principal
// from the context, call one thread.Service method, and encode the result.
// Every error goes through writeError (errors.go), the only place domain
// errors become status codes.
//
// Notes
// -----
//   - Staff-only routes sit behind acl.RequireStaff; the service checks
//     again, so the gate only saves a store round-trip.
//   - The courtesy flood guard runs here, not in the service, because its
//     answer is a redirect.
//   - Oxford commas, two spaces after periods.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/adept-forum/internal/acl"
	"github.com/yanizio/adept-forum/internal/auth"
	"github.com/yanizio/adept-forum/internal/flood"
	"github.com/yanizio/adept-forum/internal/middleware"
	"github.com/yanizio/adept-forum/internal/requestinfo"
	"github.com/yanizio/adept-forum/internal/site"
	"github.com/yanizio/adept-forum/internal/thread"
)

// Check is one named health probe, e.g. a database or Redis ping.
type Check func(ctx context.Context) error

// Deps wires the router.  Threads and Sites are required.
type Deps struct {
	Threads      *thread.Service
	Sites        site.Resolver
	Courtesy     *flood.Courtesy
	Checks       map[string]Check    // failure answers 503
	Optional     map[string]Check    // failure reports "degraded", status stays 200
	Geo          requestinfo.Locator // optional
	TrustHeaders bool
	ForceHTTPS   bool
	Log          *zap.SugaredLogger
}

type handler struct {
	threads  *thread.Service
	courtesy *flood.Courtesy
	checks   map[string]Check
	optional map[string]Check
	log      *zap.SugaredLogger
}

// New returns the root http.Handler.
func New(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	h := &handler{threads: d.Threads, courtesy: d.Courtesy, checks: d.Checks, optional: d.Optional, log: d.Log}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestinfo.Enrich(d.Geo))
	r.Use(middleware.RequestLog(d.Log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Security)
	if d.ForceHTTPS {
		r.Use(middleware.ForceHTTPS(d.Sites))
	}

	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(site.Middleware(d.Sites))
		r.Use(auth.Headers(d.TrustHeaders))

		r.Route("/forums", func(r chi.Router) {
			r.Get("/", h.listForums)
			r.With(acl.RequireStaff).Post("/", h.saveForum)
			r.Get("/{forum}", h.forumPage)
			r.Post("/{forum}/threads", h.createThread)
			r.Post("/{forum}/preview", h.preview)
		})

		r.Route("/threads/{thread}", func(r chi.Router) {
			r.Get("/", h.threadPage)
			r.Patch("/", h.editThread)
			r.Post("/posts", h.reply)

			r.Group(func(r chi.Router) {
				r.Use(acl.RequireStaff)
				r.Post("/moderate", h.moderate)
				r.Post("/move", h.move)
				r.Post("/bans", h.ban)
				r.Delete("/", h.deleteThread)
			})
		})
	})
	return r
}

// healthz runs every check.  A failed required check answers 503.  A failed
// optional one (the shared cache) only marks the body degraded, since the
// forum computes live without it.
func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	status, state := http.StatusOK, "ok"
	out := map[string]string{}
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			h.log.Warnw("health check failed", "check", name, "err", err)
			out[name] = err.Error()
			status, state = http.StatusServiceUnavailable, "unavailable"
			continue
		}
		out[name] = "ok"
	}
	for name, check := range h.optional {
		if err := check(r.Context()); err != nil {
			h.log.Warnw("optional health check failed", "check", name, "err", err)
			out[name] = "degraded: " + err.Error()
			if status == http.StatusOK {
				state = "degraded"
			}
			continue
		}
		out[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": out})
}
