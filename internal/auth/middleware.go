// internal/auth/middleware.go
//
// Gateway-header principal middleware.
//
// Context
// -------
// The forum sits behind an identity gateway that has already authenticated
// the caller.  When `auth.trust_headers` is enabled the gateway forwards:
//
//	X-Forum-User-Id    numeric user id
//	X-Forum-User-Name  username (used for cache keys and post authorship)
//	X-Forum-Roles      comma list of staff, superuser, upgraded
//
// Requests without a valid user id proceed as Anonymous().  When trust is
// disabled the headers are ignored so a client cannot escalate itself.
package auth

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	HeaderUserID   = "X-Forum-User-Id"
	HeaderUserName = "X-Forum-User-Name"
	HeaderRoles    = "X-Forum-Roles"
)

// Headers attaches the principal described by gateway headers.
func Headers(trust bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := Anonymous()
			if trust {
				p = FromHeaders(r.Header)
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// FromHeaders parses the gateway headers into a Principal.
func FromHeaders(h http.Header) Principal {
	id, err := strconv.ParseInt(strings.TrimSpace(h.Get(HeaderUserID)), 10, 64)
	if err != nil || id <= 0 {
		return Anonymous()
	}

	p := Principal{
		ID:            id,
		Username:      strings.TrimSpace(h.Get(HeaderUserName)),
		Authenticated: true,
	}
	if p.Username == "" {
		p.Username = "user-" + strconv.FormatInt(id, 10)
	}

	for _, role := range strings.Split(h.Get(HeaderRoles), ",") {
		switch strings.ToLower(strings.TrimSpace(role)) {
		case "staff":
			p.Staff = true
		case "superuser":
			p.Superuser = true
		case "upgraded":
			p.Profile = &Profile{Upgraded: true}
		}
	}
	return p
}
