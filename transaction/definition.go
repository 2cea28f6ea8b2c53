package transaction

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gaborage/go-bricks-data/database/types"
)

// Propagation controls how an operation relates to a transaction already in
// progress. The zero value is Required.
type Propagation int

const (
	// Required joins the current transaction or starts a new one.
	Required Propagation = iota
	// Supports joins the current transaction or runs without one.
	Supports
	// Mandatory joins the current transaction and fails without one.
	Mandatory
	// RequiresNew always starts an independent transaction on a new connection.
	RequiresNew
	// NotSupported runs without a transaction and rejects a current one.
	NotSupported
	// Never runs without a transaction and rejects a current one.
	Never
	// Nested joins the current transaction. Savepoints are not part of the
	// driver contract, so it behaves like Required.
	Nested
)

var propagationNames = [...]string{
	Required:     "REQUIRED",
	Supports:     "SUPPORTS",
	Mandatory:    "MANDATORY",
	RequiresNew:  "REQUIRES_NEW",
	NotSupported: "NOT_SUPPORTED",
	Never:        "NEVER",
	Nested:       "NESTED",
}

func (p Propagation) String() string {
	if p < 0 || int(p) >= len(propagationNames) {
		return fmt.Sprintf("Propagation(%d)", int(p))
	}
	return propagationNames[p]
}

// ParsePropagation accepts the names produced by String, case-insensitively.
// The empty string yields Required.
func ParsePropagation(s string) (Propagation, error) {
	if s == "" {
		return Required, nil
	}
	name := strings.ToUpper(s)
	for i, n := range propagationNames {
		if n == name {
			return Propagation(i), nil
		}
	}
	return Required, fmt.Errorf("unknown propagation %q", s)
}

// Definition holds the transaction attributes of one operation. The zero
// value is a read-write REQUIRED transaction with the driver's default
// isolation and no timeout.
type Definition struct {
	Name        string
	Propagation Propagation
	Isolation   types.IsolationLevel
	ReadOnly    bool
	// Timeout bounds the whole transaction scope when positive.
	Timeout time.Duration
	// NoRollbackFor lists errors that still commit, matched with errors.Is.
	NoRollbackFor []error
}

// DefaultDefinition returns the zero Definition.
func DefaultDefinition() Definition { return Definition{} }

func (d Definition) noRollback(err error) bool {
	for _, target := range d.NoRollbackFor {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
