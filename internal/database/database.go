// Package database centralises sqlx connection helpers.  Two drivers are
// registered: go-sql-driver/mysql (default, also MariaDB) and pgx's
// database/sql adapter for Postgres.
//
// Public entry points:
//
//	Open(ctx, driver, dsn, opts) – pool with retrying ping.
//	DefaultOptions()             – conservative pool sizes.
//	IsUniqueViolation(err)       – driver-neutral duplicate-key check.
//
// Open pings the database before returning so callers can fail fast during
// bootstrap.  Callers should Close() the returned *sqlx.DB when no longer
// needed.
package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Driver names accepted by Open.
const (
	MySQL    = "mysql"
	Postgres = "pgx"
)

// Options tune the pool and the startup ping.
type Options struct {
	MaxOpen     int           `koanf:"max_open"`
	MaxIdle     int           `koanf:"max_idle"`
	MaxLifetime time.Duration `koanf:"max_lifetime"`
	PingRetries int           `koanf:"ping_retries"`
	PingBackoff time.Duration `koanf:"ping_backoff"`
}

// DefaultOptions returns 15 max open, 5 idle, a 30-minute connection
// lifetime, and three pings one second apart.
func DefaultOptions() Options {
	return Options{
		MaxOpen:     15,
		MaxIdle:     5,
		MaxLifetime: 30 * time.Minute,
		PingRetries: 3,
		PingBackoff: time.Second,
	}
}

// Open returns a *sqlx.DB for driver ("mysql" or "pgx").
func Open(ctx context.Context, driver, dsn string, opts Options) (*sqlx.DB, error) {
	if driver == "" {
		driver = MySQL
	}
	if driver != MySQL && driver != Postgres {
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}
	d := DefaultOptions()
	if opts.MaxOpen > 0 {
		d.MaxOpen = opts.MaxOpen
	}
	if opts.MaxIdle > 0 {
		d.MaxIdle = opts.MaxIdle
	}
	if opts.MaxLifetime > 0 {
		d.MaxLifetime = opts.MaxLifetime
	}
	if opts.PingRetries > 0 {
		d.PingRetries = opts.PingRetries
	}
	if opts.PingBackoff > 0 {
		d.PingBackoff = opts.PingBackoff
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(d.MaxOpen)
	db.SetMaxIdleConns(d.MaxIdle)
	db.SetConnMaxLifetime(d.MaxLifetime)

	if err := ping(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ping(ctx context.Context, db *sqlx.DB, o Options) error {
	var err error
	for attempt := 1; attempt <= o.PingRetries; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		zap.S().Warnw("database ping failed", "attempt", attempt, "err", err)
		if attempt == o.PingRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.PingBackoff):
		}
	}
	return fmt.Errorf("database ping: %w", err)
}
