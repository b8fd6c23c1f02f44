package shared

import (
	"fmt"
	"sort"
	"strings"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Local guard errors. None of these ever reach the remote API.
var (
	ErrEmptySelection   = NewDomainError("EMPTY_SELECTION", "Please select at least one record")
	ErrNoBatchOperation = NewDomainError("NO_BATCH_OPERATION", "Please select a batch operation")
	ErrSubmitCancelled  = NewDomainError("SUBMIT_CANCELLED", "Submission cancelled")
	ErrUnknownEntity    = NewDomainError("UNKNOWN_ENTITY", "Unknown entity")
	ErrInvalidInput     = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrNotLoaded        = NewDomainError("NOT_LOADED", "Form has not been loaded")
)

// ValidationError carries per-field messages produced by local form validation.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates an empty validation error
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a message for a field. The first message for a field wins.
func (e *ValidationError) Add(field, message string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// HasErrors reports whether any field failed validation
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// Field returns the message for a field, or "" if the field is valid
func (e *ValidationError) Field(name string) string {
	return e.Fields[name]
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
