// internal/requestinfo/middleware.go
//
// HTTP middleware that attaches *Info to each request.
//
// It runs after chi's RealIP, so r.RemoteAddr already holds the client
// address taken from X-Forwarded-For or X-Real-IP, and before the access
// log so log lines can carry the browser, bot flag, and country.
package requestinfo

import (
	"net"
	"net/http"
)

// Enrich parses the request once and stores *Info in its context.  loc
// may be nil, in which case only the IP is recorded.
func Enrich(loc Locator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r.RemoteAddr)
			info := &Info{
				UA:  ParseUA(r.UserAgent(), r.Header.Get("Accept-Language")),
				Geo: Geo{IP: ip},
			}
			if loc != nil {
				info.Geo = loc.Locate(ip)
			}
			next.ServeHTTP(w, r.WithContext(WithInfo(r.Context(), info)))
		})
	}
}

// clientIP accepts "ip:port" or a bare address.
func clientIP(remote string) net.IP {
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(remote)
}
