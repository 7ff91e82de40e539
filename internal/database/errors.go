package database

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	mysqlDuplicateEntry = 1062
	pgUniqueViolation   = "23505"
)

// IsUniqueViolation reports whether err is a duplicate-key error from either
// supported driver.
func IsUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == pgUniqueViolation
	}
	return false
}

// UsesReturning reports whether driver needs `RETURNING id` instead of
// LastInsertId.
func UsesReturning(driver string) bool {
	return driver == Postgres || driver == "postgres"
}
