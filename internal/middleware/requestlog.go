// internal/middleware/requestlog.go
//
// Access-log middleware.
//
// One INFO line per request with method, path, status, bytes, duration, and
// the chi request id, plus browser, bot flag, and country when
// requestinfo.Enrich ran first.  5xx responses log at ERROR so they surface in the
// error view of the daily log.  Health and metrics probes log at DEBUG.

package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yanizio/adept-forum/internal/requestinfo"
)

// RequestLog returns the access-log wrapper.
func RequestLog(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"host", r.Host,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			}
			if info := requestinfo.FromContext(r.Context()); info != nil {
				fields = append(fields,
					"browser", info.UA.Browser,
					"bot", info.UA.IsBot,
					"country", info.Geo.CountryISO,
				)
			}
			switch {
			case status >= 500:
				log.Errorw("http request", fields...)
			case r.URL.Path == "/healthz" || r.URL.Path == "/metrics":
				log.Debugw("http request", fields...)
			default:
				log.Infow("http request", fields...)
			}
		})
	}
}
