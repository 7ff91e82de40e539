// internal/server/timeouts.go
//
// HTTP server helper with robust timeouts and graceful shutdown.
//
// Production hardening recommends:
//
//   • ReadTimeout   – abort slow-loris headers (10 s)
//   • WriteTimeout  – cap total response time (15 s)
//   • IdleTimeout   – close keep-alives on idle clients (60 s)
//
// Zero values in Timeouts take those defaults so cmd/forumd does not repeat
// boilerplate.

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Timeouts overrides the defaults; zero fields keep them.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// Defaults.
const (
	DefaultRead     = 10 * time.Second
	DefaultWrite    = 15 * time.Second
	DefaultIdle     = 60 * time.Second
	ShutdownTimeout = 20 * time.Second
)

// New constructs an *http.Server with sensible defaults.
func New(addr string, handler http.Handler, t Timeouts) *http.Server {
	pick := func(v, d time.Duration) time.Duration {
		if v > 0 {
			return v
		}
		return d
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       pick(t.Read, DefaultRead),
		ReadHeaderTimeout: pick(t.Read, DefaultRead),
		WriteTimeout:      pick(t.Write, DefaultWrite),
		IdleTimeout:       pick(t.Idle, DefaultIdle),
	}
}

// Serve runs srv until ctx is cancelled, then drains in-flight requests for
// up to ShutdownTimeout.
func Serve(ctx context.Context, srv *http.Server, log *zap.SugaredLogger) error {
	errc := make(chan error, 1)
	go func() {
		log.Infow("http listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Infow("http shutting down")
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	return nil
}
