package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrQuotaExceeded   = errors.New("quota exceeded")
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every offending field of a request.
type ValidationError struct {
	Fields []FieldError
}

// Add records an offending field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field was recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns the error when fields were recorded, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// AggregateProviderError reports a provider failure during a search.
// During an ALL fan-out it fails the whole aggregate.
type AggregateProviderError struct {
	Provider EntityType
	Err      error
}

func (e *AggregateProviderError) Error() string {
	return fmt.Sprintf("%s provider failed: %v", e.Provider, e.Err)
}

func (e *AggregateProviderError) Unwrap() error {
	return e.Err
}
