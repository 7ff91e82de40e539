// internal/site/middleware.go
//
// Request middleware that attaches the resolved site.

package site

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/yanizio/adept-forum/internal/forum"
)

// Resolver maps a Host header to a site.  *Cache implements it.
type Resolver interface {
	Resolve(ctx context.Context, host string) (*Site, error)
}

// Middleware resolves r.Host and stores the site in the request context.
// Unknown hosts get 404; resolver failures get 503.
func Middleware(res Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := res.Resolve(r.Context(), r.Host)
			if err != nil {
				if errors.Is(err, forum.ErrNotFound) {
					http.NotFound(w, r)
					return
				}
				zap.S().Errorw("site resolution failed", "host", r.Host, "err", err)
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSite(r.Context(), s)))
		})
	}
}
