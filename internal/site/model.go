// internal/site/model.go
//
// Site row and request-context helpers.
//
// Context
// -------
// A deployment serves several forum sites from one process.  The `site`
// table maps a Host header to a site id, and every forum, category, and
// thread query downstream is scoped by that id.  The operational state is
// captured by two nullable timestamps:
//
//   - SuspendedAt – site is temporarily disabled (e.g., billing).
//   - DeletedAt   – site is permanently removed.
//
// Either timestamp being non-NULL keeps the resolver from serving the site.
package site

import (
	"context"
	"time"
)

// Site mirrors one row in the `site` table.
type Site struct {
	ID          int64      `db:"id"           json:"id"`
	Host        string     `db:"host"         json:"host"`
	Title       string     `db:"title"        json:"title"`
	Locale      string     `db:"locale"       json:"locale"`
	SuspendedAt *time.Time `db:"suspended_at" json:"-"`
	DeletedAt   *time.Time `db:"deleted_at"   json:"-"`
	CreatedAt   time.Time  `db:"created_at"   json:"-"`
}

// Active reports whether the site may be served.
func (s *Site) Active() bool { return s.SuspendedAt == nil && s.DeletedAt == nil }

type ctxKey struct{}

// WithSite returns a context carrying s.
func WithSite(ctx context.Context, s *Site) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the site attached by Middleware, or nil.
func FromContext(ctx context.Context) *Site {
	s, _ := ctx.Value(ctxKey{}).(*Site)
	return s
}
