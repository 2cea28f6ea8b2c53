// Package mapper converts between Go values and driver bindings and rows.
package mapper

import "fmt"

// DataAccessError reports a failure reading or converting one column.
type DataAccessError struct {
	Column string
	Err    error
}

func (e *DataAccessError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("data access error: %v", e.Err)
	}
	return fmt.Sprintf("data access error for column %q: %v", e.Column, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }
