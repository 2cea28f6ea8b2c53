package transaction

import (
	"errors"
	"fmt"
)

// ErrNoTransaction is returned for MANDATORY propagation when no transaction
// is in progress.
var ErrNoTransaction = errors.New("no transaction in progress for MANDATORY propagation")

// TransactionUsageError reports an operation that violates propagation or
// read-only rules. It is raised before any I/O.
//
//revive:disable-next-line:exported // Name mirrors the other transaction errors.
type TransactionUsageError struct {
	Reason string
}

func (e *TransactionUsageError) Error() string {
	return "transaction usage error: " + e.Reason
}

// TransactionSystemError wraps failures of the transaction machinery itself,
// including a panic raised by the handler.
//
//revive:disable-next-line:exported // Name mirrors the other transaction errors.
type TransactionSystemError struct {
	Err   error
	Panic any
}

func (e *TransactionSystemError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("transaction system error: panic: %v", e.Panic)
	}
	return fmt.Sprintf("transaction system error: %v", e.Err)
}

func (e *TransactionSystemError) Unwrap() error { return e.Err }

// RollbackError is returned when rolling back after a failure fails too.
// The original failure stays the primary error.
type RollbackError struct {
	Err         error
	RollbackErr error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%v (rollback failed: %v)", e.Err, e.RollbackErr)
}

func (e *RollbackError) Unwrap() error { return e.Err }

func usageError(format string, args ...any) error {
	return &TransactionUsageError{Reason: fmt.Sprintf(format, args...)}
}
