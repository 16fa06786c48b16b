// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as
// services and handlers to tell "row does not exist" apart from a
// store failure without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrUnavailabilityNotFound is returned when no unavailability has the
// requested id.
var ErrUnavailabilityNotFound = errors.New("unavailability not found")

// ErrUserNotFound is returned when a user lookup matches no row.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned by UserRepo.Create on a duplicate email.
var ErrEmailExists = errors.New("email already exists")

// ErrReferenceBusy is returned by InReferenceTx when every attempt lost a
// deadlock or lock wait to concurrent writers of the same reference.  It
// wraps the last driver error.
var ErrReferenceBusy = errors.New("reference is busy with a concurrent write")

// MySQL server error numbers the repositories react to.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicateKey reports whether err is a unique constraint violation.
func isDuplicateKey(err error) bool {
	return mysqlErrNumber(err) == mysqlDuplicateEntry
}

// isRetryableTx reports whether a transaction failed because InnoDB chose
// it as a deadlock victim or gave up waiting for a lock.  Both are safe
// to retry from the start.
func isRetryableTx(err error) bool {
	n := mysqlErrNumber(err)
	return n == mysqlDeadlock || n == mysqlLockWaitTimeout
}
