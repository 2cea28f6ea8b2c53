package transaction

import (
	"context"
	"errors"
	"iter"

	"github.com/gaborage/go-bricks-data/database/types"
)

// StreamInConnection yields the values of open within a connection scope
// that lasts for the range loop.
func StreamInConnection[T any](ctx context.Context, m *Manager, open func(ctx context.Context, conn types.Connection) iter.Seq2[T, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var s streamState
		err := m.WithConnection(ctx, func(ctx context.Context, conn types.Connection) error {
			return drain(open(ctx, conn), yield, &s)
		})
		finish(m, &s, err, yield)
	}
}

// StreamInTransaction yields the values of open within a transaction scope
// that lasts for the range loop. Breaking out of the loop commits; an error
// from the stream or the context rolls back and is yielded last.
func StreamInTransaction[T any](ctx context.Context, m *Manager, def Definition, open func(ctx context.Context, status *Status) iter.Seq2[T, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var s streamState
		err := m.WithTransaction(ctx, def, func(ctx context.Context, st *Status) error {
			return drain(open(ctx, st), yield, &s)
		})
		finish(m, &s, err, yield)
	}
}

type streamState struct {
	stopped  bool
	panicked bool
}

// drain forwards seq to yield. A stopped consumer ends the scope with
// errConsumerStopped; a panicking one is recorded so the panic can be
// raised again after cleanup.
func drain[T any](seq iter.Seq2[T, error], yield func(T, error) bool, s *streamState) error {
	for v, err := range seq {
		if err != nil {
			return err
		}
		if !forward(yield, v, s) {
			s.stopped = true
			return errConsumerStopped
		}
	}
	return nil
}

func forward[T any](yield func(T, error) bool, v T, s *streamState) bool {
	done := false
	defer func() {
		if !done {
			s.panicked = true
		}
	}()
	ok := yield(v, nil)
	done = true
	return ok
}

func finish[T any](m *Manager, s *streamState, err error, yield func(T, error) bool) {
	if s.panicked {
		var sys *TransactionSystemError
		if errors.As(err, &sys) && sys.Panic != nil {
			panic(sys.Panic)
		}
		panic(err)
	}
	if err == nil || errors.Is(err, errConsumerStopped) {
		return
	}
	if s.stopped {
		m.log.Warn().Err(err).Str("dataSource", m.dataSource()).Msg("Error completing stream after consumer stopped")
		return
	}
	var zero T
	yield(zero, err)
}
