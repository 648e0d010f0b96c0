// Package apperr defines the typed failures surfaced by the route ledger.
// Every failure carries one of the sentinel kinds below so that callers can
// branch with errors.Is, plus enough context (entity, id, offending field)
// for a client to correct the request without a server-side log lookup.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds.  Handlers translate them into HTTP status codes.
var (
	ErrValidation   = errors.New("validation_error")
	ErrNotFound     = errors.New("not_found")
	ErrInvalidState = errors.New("invalid_state")
	ErrComputation  = errors.New("computation_error")
	ErrConflict     = errors.New("conflict")
)

// Error is a typed failure.  Kind is one of the sentinels above.
type Error struct {
	Kind    error
	Entity  string // e.g. "route", "client", "truck"
	ID      uint64 // identifier of the entity, zero when not applicable
	Field   string // offending request field, empty when not applicable
	Message string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Entity != "" {
		b.WriteString(": ")
		b.WriteString(e.Entity)
		if e.ID != 0 {
			fmt.Fprintf(&b, " %d", e.ID)
		}
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Unwrap exposes the kind so errors.Is(err, ErrNotFound) works.
func (e *Error) Unwrap() error { return e.Kind }

// Validation reports malformed or business-rule-violating input.
func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an unknown entity referenced by id.
func NotFound(entity string, id uint64) *Error {
	return &Error{Kind: ErrNotFound, Entity: entity, ID: id, Message: entity + " not found"}
}

// InvalidState reports an operation attempted in the wrong lifecycle state.
func InvalidState(entity string, id uint64, format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidState, Entity: entity, ID: id, Message: fmt.Sprintf(format, args...)}
}

// Computation reports arithmetic overflow or an invalid price configuration.
func Computation(field, format string, args ...any) *Error {
	return &Error{Kind: ErrComputation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a uniqueness violation on create.
func Conflict(entity, field, format string, args ...any) *Error {
	return &Error{Kind: ErrConflict, Entity: entity, Field: field, Message: fmt.Sprintf(format, args...)}
}

// WithEntity returns a copy of e bound to the given entity and id.  Used when
// a lower layer raised the failure without knowing which record it concerns.
func (e *Error) WithEntity(entity string, id uint64) *Error {
	cp := *e
	cp.Entity = entity
	cp.ID = id
	return &cp
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
