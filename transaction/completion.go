package transaction

import (
	"context"
	"errors"
	"fmt"
)

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailure
	// outcomeCancelled is a stream whose consumer stopped early.
	outcomeCancelled
)

type completion int

const (
	commit completion = iota
	rollback
)

// errConsumerStopped is returned by stream handlers when the range loop ends
// before the stream does.
var errConsumerStopped = errors.New("stream consumer stopped")

// decideCompletion maps the outcome of a transaction body onto commit or
// rollback. A cancelled stream commits like a successful one.
func decideCompletion(out outcome, rollbackOnly bool, err error, noRollbackFor []error) completion {
	switch out {
	case outcomeFailure:
		for _, target := range noRollbackFor {
			if errors.Is(err, target) && !rollbackOnly {
				return commit
			}
		}
		return rollback
	default:
		if rollbackOnly {
			return rollback
		}
		return commit
	}
}

// run calls fn and classifies its result. A panic becomes a
// TransactionSystemError and a cancelled context a failure.
func run(ctx context.Context, st *Status, fn Handler) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = outcomeFailure
			err = &TransactionSystemError{Err: fmt.Errorf("panic in transaction handler: %v", r), Panic: r}
		}
	}()

	err = fn(ctx, st)
	switch {
	case errors.Is(err, errConsumerStopped):
		return outcomeCancelled, nil
	case err != nil:
		return outcomeFailure, err
	case ctx.Err() != nil:
		return outcomeFailure, ctx.Err()
	default:
		return outcomeSuccess, nil
	}
}
