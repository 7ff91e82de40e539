// Run: go test ./internal/database -v
package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{fmt.Errorf("insert thread: %w", &mysql.MySQLError{Number: 1062}), true},
		{&mysql.MySQLError{Number: 1213}, false},
		{&pgconn.PgError{Code: "23505"}, true},
		{&pgconn.PgError{Code: "40001"}, false},
		{errors.New("boom"), false},
		{nil, false},
	}
	for i, c := range cases {
		if got := IsUniqueViolation(c.err); got != c.want {
			t.Errorf("case %d: IsUniqueViolation(%v) = %v", i, c.err, got)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "sqlite", "x", Options{}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestUsesReturning(t *testing.T) {
	if UsesReturning(MySQL) || !UsesReturning(Postgres) {
		t.Fatalf("driver returning detection wrong")
	}
}
