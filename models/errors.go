package models

import (
	"errors"
	"fmt"
	"strings"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

// Domain error kinds. Callers classify with errors.Is; every error carries
// a human-readable message on top of its kind.
var (
	// ErrValidation: missing or malformed required fields. Always raised
	// before any store access.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicatePayment: an active payment already exists for the same
	// (group, member, slot, payment month) tuple.
	ErrDuplicatePayment = errors.New("duplicate payment")

	// ErrInvalidTransition: the requested lifecycle transition is not legal
	// from the record's current state. No mutation, no audit entry.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrConflictingActiveRecord: restoring this record would put two active
	// payments on the same tuple.
	ErrConflictingActiveRecord = errors.New("conflicting active payment")

	// ErrAuditWrite: the record mutation may have committed but the audit
	// entry could not be written. Surfaced distinctly so callers can alert
	// instead of assuming silent success.
	ErrAuditWrite = errors.New("audit log write failed")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// isDuplicateKey reports whether err is a unique-constraint violation.
// MySQL error 1062; falls back to message matching for other drivers.
func isDuplicateKey(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
