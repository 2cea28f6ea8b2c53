package repository

import (
	"errors"
	"fmt"

	"github.com/gaborage/go-bricks-data/mapper"
)

var (
	// ErrUnsupportedOperation is returned by verbs that need an explicit query.
	ErrUnsupportedOperation = errors.New("operation not supported without an explicit query")
	// ErrIllegalArgument reports an invalid argument detected before any SQL runs.
	ErrIllegalArgument = errors.New("illegal argument")
	// ErrQueryMetadataMissing reports a descriptor lacking what the verb needs.
	ErrQueryMetadataMissing = errors.New("query metadata missing")
)

func metadataMissing(name, what string) error {
	return &mapper.DataAccessError{Err: fmt.Errorf("%w: %s has no %s", ErrQueryMetadataMissing, describe(name), what)}
}

func unsupported(verb string) error {
	return fmt.Errorf("%w: %s; declare a query and execute it directly", ErrUnsupportedOperation, verb)
}

func describe(name string) string {
	if name == "" {
		return "query"
	}
	return "query " + name
}
