// internal/middleware/https.go
//
// Package middleware holds the small HTTP wrappers shared by every route:
// HTTPS enforcement, security headers, and the access log.
//
// ForceHTTPS sends plain-HTTP requests for a known site to the same URL on
// https with 308, so POST bodies survive the redirect.  A request counts as
// secure when it arrived over TLS or a proxy says so in X-Forwarded-Proto.
// localhost is never redirected, and unknown hosts fall through to the
// site resolver, which answers 404.
package middleware

import (
	"net/http"
	"strings"

	"github.com/yanizio/adept-forum/internal/site"
)

// ForceHTTPS returns the redirecting wrapper.
func ForceHTTPS(res site.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secure(r) || stripPort(r.Host) == "localhost" {
				next.ServeHTTP(w, r)
				return
			}
			if _, err := res.Resolve(r.Context(), r.Host); err != nil {
				next.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, "https://"+r.Host+r.URL.RequestURI(), http.StatusPermanentRedirect)
		})
	}
}

func secure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// stripPort drops a ":port" suffix from host.
func stripPort(host string) string {
	if i := strings.LastIndexByte(host, ':'); i != -1 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
