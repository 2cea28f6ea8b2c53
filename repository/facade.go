package repository

import (
	"context"
	"fmt"
	"iter"

	"github.com/gaborage/go-bricks-data/query"
	"github.com/gaborage/go-bricks-data/transaction"
)

// Future is the pending result of an operation running on its own goroutine.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Async runs fn on a new goroutine. A panic in fn fails the future with a
// transaction.TransactionSystemError.
func Async[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = &transaction.TransactionSystemError{Err: fmt.Errorf("panic in async operation: %v", r), Panic: r}
			}
		}()
		f.value, f.err = fn(ctx)
	}()
	return f
}

// Done is closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Get waits for the result. Giving up on ctx does not cancel the operation;
// cancel the context passed to Async for that.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// FindAllList is FindAll collected into a slice.
func FindAllList[R any](ctx context.Context, o *Operations, q *query.PreparedQuery[R]) ([]R, error) {
	return Collect(FindAll(ctx, o, q))
}

// FindOneAsync runs FindOptional on its own goroutine.
func FindOneAsync[R any](ctx context.Context, o *Operations, q *query.PreparedQuery[R]) *Future[Optional[R]] {
	return Async(ctx, func(ctx context.Context) (Optional[R], error) { return FindOptional(ctx, o, q) })
}

// FindAllAsync runs FindAllList on its own goroutine.
func FindAllAsync[R any](ctx context.Context, o *Operations, q *query.PreparedQuery[R]) *Future[[]R] {
	return Async(ctx, func(ctx context.Context) ([]R, error) { return FindAllList(ctx, o, q) })
}

// ExistsAsync runs Exists on its own goroutine.
func ExistsAsync[R any](ctx context.Context, o *Operations, q *query.PreparedQuery[R]) *Future[bool] {
	return Async(ctx, func(ctx context.Context) (bool, error) { return Exists(ctx, o, q) })
}

// PersistAsync runs Persist on its own goroutine; an evicted entity completes
// the future with Present false.
func PersistAsync[T any](ctx context.Context, o *Operations, ins *query.StoredInsert[T], v T) *Future[Optional[T]] {
	return Async(ctx, func(ctx context.Context) (Optional[T], error) {
		v, ok, err := Persist(ctx, o, ins, v)
		return Optional[T]{Value: v, Present: ok}, err
	})
}

// PersistAllAsync runs PersistAll on its own goroutine.
func PersistAllAsync[T any](ctx context.Context, o *Operations, ins *query.StoredInsert[T], values []T) *Future[[]T] {
	return Async(ctx, func(ctx context.Context) ([]T, error) { return PersistAll(ctx, o, ins, values) })
}

// UpdateAsync runs Update on its own goroutine; a missing row completes the
// future with Present false.
func UpdateAsync[T any](ctx context.Context, o *Operations, op *query.UpdateOperation[T], v T) *Future[Optional[T]] {
	return Async(ctx, func(ctx context.Context) (Optional[T], error) {
		v, ok, err := Update(ctx, o, op, v)
		return Optional[T]{Value: v, Present: ok}, err
	})
}

// DeleteAsync runs Delete on its own goroutine.
func DeleteAsync[T any](ctx context.Context, o *Operations, op *query.DeleteOperation[T], v T) *Future[int64] {
	return Async(ctx, func(ctx context.Context) (int64, error) { return Delete(ctx, o, op, v) })
}

// ExecuteUpdateAsync runs ExecuteUpdate on its own goroutine.
func ExecuteUpdateAsync[N any](ctx context.Context, o *Operations, q *query.PreparedQuery[N]) *Future[N] {
	return Async(ctx, func(ctx context.Context) (N, error) { return ExecuteUpdate(ctx, o, q) })
}
