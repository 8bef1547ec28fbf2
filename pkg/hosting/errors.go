package hosting

import (
	"errors"
	"fmt"
)

// Common errors for backend operations.
var (
	// ErrUnauthorized indicates authentication failed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrZoneNotFound indicates the hosted zone does not exist or is not visible.
	ErrZoneNotFound = errors.New("hosted zone not found")

	// ErrThrottled indicates the API rejected the request due to rate limiting.
	ErrThrottled = errors.New("request throttled")
)

// ConfigError represents a backend configuration error.
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("configuration error: %s=%q: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// ErrConfigMissing creates an error for a missing required configuration field.
func ErrConfigMissing(field string) error {
	return &ConfigError{
		Field:   field,
		Message: "required but not set",
	}
}

// ErrConfigInvalid creates an error for an invalid configuration value.
func ErrConfigInvalid(field, value, message string) error {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// APIError wraps a hosting API failure with backend context.
type APIError struct {
	Backend   string
	Operation string
	Err       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hosting %s: %s: %v", e.Backend, e.Operation, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with backend context.
func WrapError(backend, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{
		Backend:   backend,
		Operation: operation,
		Err:       err,
	}
}

// IsAPIError returns true if err came from a hosting API call.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// IsUnauthorized returns true if the error indicates authentication failed.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsZoneNotFound returns true if the error indicates a missing hosted zone.
func IsZoneNotFound(err error) bool {
	return errors.Is(err, ErrZoneNotFound)
}

// IsThrottled returns true if the error indicates rate limiting.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}
