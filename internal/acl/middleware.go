// internal/acl/middleware.go
//
// Chi middleware helpers that gate moderation routes.

package acl

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/yanizio/adept-forum/internal/auth"
)

// RequireStaff ensures the current principal is staff or superuser.
// Anonymous callers get 401 and authenticated non-staff get 403.  The
// thread service re-checks, so this is the cheap early exit.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := auth.PrincipalFrom(r.Context())
		if !p.Authenticated {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if !CanModerate(p) {
			zap.L().Debug("acl staff gate denied",
				zap.Int64("user_id", p.ID),
				zap.String("path", r.URL.Path))
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
