// internal/store/sql.go
//
// sqlx implementation of Store.
//
// Context
// -------
// Queries are written once with `?` placeholders and passed through Rebind,
// so the same statements run on MySQL and on Postgres through pgx.  Inserts
// read the new id with LastInsertId on MySQL and `RETURNING id` elsewhere.
//
// A SQL value wraps either the pool or an open transaction.  InTx on the
// pool value begins a transaction, hands fn a transactional SQL, and commits
// when fn returns nil.  InTx on a transactional value calls fn directly.
//
// Notes
// -----
//   - sql.ErrNoRows becomes forum.ErrNotFound.
//   - Unique violations become forum.ErrStorageConflict.
//   - Oxford commas, two spaces after periods.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/adept-forum/internal/database"
	"github.com/yanizio/adept-forum/internal/forum"
)

// SQL is the sqlx-backed Store.
type SQL struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
	tx  *sqlx.Tx
}

var _ Store = (*SQL)(nil)

// NewSQL wraps an open pool.
func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{db: db, ext: db}
}

// InTx runs fn inside a transaction.
func (s *SQL) InTx(ctx context.Context, fn func(Store) error) (err error) {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&SQL{db: s.db, ext: tx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQL) q(query string) string { return s.ext.Rebind(query) }

// insert runs an INSERT and returns the generated id.
func (s *SQL) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if database.UsesReturning(s.ext.DriverName()) {
		var id int64
		if err := s.ext.QueryRowxContext(ctx, s.q(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, classify(err)
		}
		return id, nil
	}
	res, err := s.ext.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return 0, classify(err)
	}
	return res.LastInsertId()
}

// run executes a statement without inspecting the affected-row count.
// MySQL reports changed rows, so an UPDATE that rewrites identical values
// would otherwise look like a miss.
func (s *SQL) run(ctx context.Context, query string, args ...any) error {
	_, err := s.ext.ExecContext(ctx, s.q(query), args...)
	return classify(err)
}

// exec runs a statement and reports ErrNotFound when it touched no rows.
func (s *SQL) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.ext.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return forum.ErrNotFound
	}
	return nil
}

func (s *SQL) get(ctx context.Context, dest any, query string, args ...any) error {
	return classify(sqlx.GetContext(ctx, s.ext, dest, s.q(query), args...))
}

func (s *SQL) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return classify(sqlx.SelectContext(ctx, s.ext, dest, s.q(query), args...))
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return forum.ErrNotFound
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", forum.ErrStorageConflict, err)
	default:
		return err
	}
}
