package entity

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	defaultValidator     *validator.Validate
	defaultValidatorOnce sync.Once
)

func sharedValidator() *validator.Validate {
	defaultValidatorOnce.Do(func() {
		defaultValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return defaultValidator
}

// ValidationError carries the validator's field errors for an entity.
type ValidationError struct {
	Entity string
	Event  Event
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s failed validation: %v", e.Event, e.Entity, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validating registers a PrePersist and PreUpdate hook that checks `validate`
// struct tags. A nil v selects a shared validator.
func (e *Entity[T]) Validating(v *validator.Validate) *Entity[T] {
	if v == nil {
		v = sharedValidator()
	}
	hook := func(event Event) Hook[T] {
		return func(ctx context.Context, entity T) (T, error) {
			sv := e.structValue(entity)
			if !sv.IsValid() {
				return entity, &ValidationError{Entity: e.Name(), Event: event, Err: fmt.Errorf("nil entity")}
			}
			if err := v.StructCtx(ctx, sv.Interface()); err != nil {
				return entity, &ValidationError{Entity: e.Name(), Event: event, Err: err}
			}
			return entity, nil
		}
	}
	return e.On(PrePersist, hook(PrePersist)).On(PreUpdate, hook(PreUpdate))
}
