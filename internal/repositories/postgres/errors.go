package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/lylaw27/glaze-store/internal/repositories"
)

// Error implements repositories.RepositoryError for PostgreSQL backed repositories.
type Error struct {
	op          string
	err         error
	constraint  string
	notFound    bool
	conflict    bool
	unavailable bool
}

var _ repositories.RepositoryError = (*Error)(nil)

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports whether the error represents a missing row.
func (e *Error) IsNotFound() bool {
	return e != nil && e.notFound
}

// IsConflict reports whether the error represents a constraint or serialisation conflict.
func (e *Error) IsConflict() bool {
	return e != nil && e.conflict
}

// IsUnavailable reports whether the error represents a transient backend outage.
func (e *Error) IsUnavailable() bool {
	return e != nil && e.unavailable
}

// Constraint returns the violated constraint name, when known.
func (e *Error) Constraint() string {
	if e == nil {
		return ""
	}
	return e.constraint
}

func notFound(op string, format string, args ...any) *Error {
	return &Error{op: op, err: fmt.Errorf(format, args...), notFound: true}
}

func conflict(op string, format string, args ...any) *Error {
	return &Error{op: op, err: fmt.Errorf(format, args...), conflict: true}
}

func newError(op string, err error) *Error {
	e := &Error{op: op, err: err}

	if errors.Is(err, sql.ErrNoRows) {
		e.notFound = true
		return e
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		e.unavailable = true
		return e
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		e.constraint = pqErr.Constraint
		switch pqErr.Code {
		case "23505", "23503", "23514", "40001", "40P01":
			// unique, foreign key, check, serialization failure, deadlock
			e.conflict = true
		case "57P01", "57P02", "57P03":
			e.unavailable = true
		default:
			switch pqErr.Code.Class() {
			case "08", "53":
				e.unavailable = true
			}
		}
	}
	return e
}

// WrapError annotates database errors with repository semantics. Context cancellations and inventory
// errors are passed through.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}

	var repoErr *Error
	if errors.As(err, &repoErr) {
		if op != "" && repoErr.op == "" {
			repoErr.op = op
		}
		return repoErr
	}
	return newError(op, err)
}

func isUniqueViolation(err error, constraintHint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraintHint == "" || strings.Contains(pqErr.Constraint, constraintHint)
}
