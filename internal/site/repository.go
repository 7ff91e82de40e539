// internal/site/repository.go
//
// Site-table query helpers.
//
// Both helpers exclude suspended or deleted rows at SQL level so callers
// stay simple.  Queries use `?` and are rebound for the pgx driver.
package site

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/adept-forum/internal/forum"
)

const siteColumns = `id, host, title, locale, suspended_at, deleted_at, created_at`

// Repository reads the `site` table.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps db.
func NewRepository(db *sqlx.DB) *Repository { return &Repository{db: db} }

// ByHost fetches the active site for host.  A missing row is a wrapped
// forum.ErrNotFound.
func (r *Repository) ByHost(ctx context.Context, host string) (*Site, error) {
	q := r.db.Rebind(`
        SELECT ` + siteColumns + `
        FROM   site
        WHERE  host = ?
          AND  suspended_at IS NULL
          AND  deleted_at   IS NULL
        LIMIT  1`)

	var s Site
	if err := r.db.GetContext(ctx, &s, q, host); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("site %q: %w", host, forum.ErrNotFound)
		}
		return nil, fmt.Errorf("site %q: %w", host, err)
	}
	return &s, nil
}

// AllActive returns every site that is neither suspended nor deleted.  Used
// at boot to log the site count, not on the request path.
func (r *Repository) AllActive(ctx context.Context) ([]Site, error) {
	const q = `
        SELECT ` + siteColumns + `
        FROM   site
        WHERE  suspended_at IS NULL
          AND  deleted_at   IS NULL
        ORDER  BY id`
	var rows []Site
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}
