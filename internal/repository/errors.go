// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the party service to distinguish between different failure
// scenarios without inspecting driver errors themselves.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as buying a second active ticket for the same
// movie. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrDuplicate wraps MySQL error 1062 (duplicate key).
var ErrDuplicate = errors.New("duplicate key")

// ErrMissingReference wraps MySQL error 1452: a foreign key points at a row
// that does not exist (for example a participant for a deleted party).
var ErrMissingReference = errors.New("referenced row does not exist")

// ErrTxConflict wraps MySQL deadlock (1213) and lock wait timeout (1205)
// errors.  The transaction was rolled back by the server and may be retried.
var ErrTxConflict = errors.New("transaction conflict")

// MySQL server error numbers the repositories react to.
const (
	mysqlDuplicateEntry   = 1062
	mysqlNoReferencedRow  = 1452
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlockDetected = 1213
)

// classify maps driver errors onto the sentinels above.  The original error
// stays in the chain so callers can still log the server message.  Errors
// that are not MySQL server errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case mysqlDuplicateEntry:
		return errors.Join(ErrDuplicate, err)
	case mysqlNoReferencedRow:
		return errors.Join(ErrMissingReference, err)
	case mysqlLockWaitTimeout, mysqlDeadlockDetected:
		return errors.Join(ErrTxConflict, err)
	}
	return err
}
