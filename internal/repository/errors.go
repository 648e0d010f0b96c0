// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow the service layer to translate
// storage outcomes into typed application errors.  ErrConflict signals that
// a conditional write found the row in a different state than expected,
// while ErrDuplicate signals a unique key violation.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// ErrConflict is returned when a conditional update affects no rows
// because the record has moved on, e.g. a route already checked in by a
// concurrent request.  Services translate this into an invalid state error.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert or update violates a unique key
// such as a truck plate or a username.
var ErrDuplicate = errors.New("duplicate key")

// queryer is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a unit of work.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// isDuplicate recognizes unique violations from MySQL (1062) and SQLite.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique constraint failed")
}

// lastID returns the auto-generated id of an insert.
func lastID(res sql.Result) (uint64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
