// Package collab implements project collaboration: projects and their upload
// directories, stored files, tasks, chat, and the explore and calendar views.
// Every operation that touches a project goes through access.HasAccess.
package collab

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the principal fails the access predicate.
	ErrForbidden = errors.New("access denied")
)

// FieldError is a single per-field validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports bad input. It is always returned before any
// storage mutation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, ", ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// ConflictError reports a duplicate value for a unique field.
type ConflictError struct {
	Field   string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// StorageError reports a failed filesystem operation.
type StorageError struct {
	Op      string
	Message string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
