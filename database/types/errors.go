//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import "errors"

// Sentinel errors shared by driver adapters.
var (
	// ErrConnectionClosed is returned by any call on a closed Connection.
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrNoActiveTransaction is returned by commit or rollback without a begin.
	ErrNoActiveTransaction = errors.New("no active transaction on connection")

	// ErrTransactionActive is returned by a second begin on the same connection.
	ErrTransactionActive = errors.New("transaction already active on connection")

	// ErrColumnIndex is returned by Row.Get for an out-of-range index.
	ErrColumnIndex = errors.New("column index out of range")

	// ErrBindIndex is returned by Bind for a negative parameter index.
	ErrBindIndex = errors.New("bind index out of range")
)
