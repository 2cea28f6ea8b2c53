package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured indicates a data source name has no configuration entry.
var ErrNotConfigured = errors.New("not configured")

// ConfigError describes a configuration problem with an actionable hint.
// Messages are lowercase.
//
//nolint:revive // exported name reads better at call sites than config.Error
type ConfigError struct {
	Category string // "missing", "invalid", "not_configured"
	Field    string // dotted config path, e.g. "datasources.default.host"
	Message  string
	Action   string
}

func (e *ConfigError) Error() string {
	parts := make([]string, 0, 4)
	if e.Category != "" {
		parts = append(parts, "config_"+e.Category+":")
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	return strings.Join(parts, " ")
}

// Unwrap exposes ErrNotConfigured for not_configured errors.
func (e *ConfigError) Unwrap() error {
	if e.Category == "not_configured" {
		return ErrNotConfigured
	}
	return nil
}

// NewMissingFieldError reports a required field that has no value.
func NewMissingFieldError(field string) *ConfigError {
	return &ConfigError{
		Category: "missing",
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to config.yaml", EnvVarFor(field), field),
	}
}

// NewInvalidFieldError reports a field whose value is not acceptable.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{Category: "invalid", Field: field, Message: message}
	if len(validOptions) > 0 {
		err.Action = "must be one of: " + strings.Join(validOptions, ", ")
	}
	return err
}

// NewNotConfiguredError reports a lookup of a data source that is absent.
func NewNotConfiguredError(field string) *ConfigError {
	return &ConfigError{
		Category: "not_configured",
		Field:    field,
		Message:  "(absent)",
		Action:   fmt.Sprintf("to enable: set %s env vars or add %s to config.yaml", EnvVarFor(field)+"_*", field),
	}
}

// IsNotConfigured reports whether err marks an absent configuration entry.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

// EnvVarFor returns the environment variable that overrides a dotted config path.
func EnvVarFor(field string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
}
