package repository

import (
	"context"

	"github.com/gaborage/go-bricks-data/entity"
)

// FindByID always fails: lookups by identity need a declared query, see
// query.FindByID.
func FindByID[T any](_ context.Context, _ *Operations, _ *entity.Entity[T], _ any) (T, bool, error) {
	var zero T
	return zero, false, unsupported("find by id")
}

// FindPage always fails: paging needs a declared query.
func FindPage[T any](_ context.Context, _ *Operations, _ *entity.Entity[T], _, _ int) ([]T, error) {
	return nil, unsupported("find page")
}

// Count always fails: counting needs a declared query, see query.Count.
func Count[T any](_ context.Context, _ *Operations, _ *entity.Entity[T]) (int64, error) {
	return 0, unsupported("count")
}

// DeleteAll always fails: bulk deletes need a declared query executed with
// ExecuteDelete.
func DeleteAll[T any](_ context.Context, _ *Operations, _ *entity.Entity[T]) (int64, error) {
	return 0, unsupported("delete all")
}
