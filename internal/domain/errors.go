// Package domain defines core types, interfaces, and errors for query synchronization.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConfigError indicates the process cannot start because required
// configuration is missing or inconsistent.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// TimeoutError indicates an execution did not reach a terminal state
// within the configured maximum wait.
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string { return e.Message }

// ErrMissingAPIKey is returned when no API credential could be resolved.
var ErrMissingAPIKey = &ConfigError{Message: "DUNE_API_KEY is not set (use --api-key, the environment, a .env file or a profile)"}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConfig creates a ConfigError with a formatted message.
func ErrConfig(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// ErrTimeout creates a TimeoutError with a formatted message.
func ErrTimeout(format string, args ...interface{}) *TimeoutError {
	return &TimeoutError{Message: fmt.Sprintf(format, args...)}
}
