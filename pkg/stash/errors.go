package stash

import (
	"errors"
	"fmt"
	"strings"
)

// Error types
var (
	// ErrNotFound is the root of every not-found error
	ErrNotFound = errors.New("not found")

	// ErrItemNotFound indicates an item id is unknown
	ErrItemNotFound = fmt.Errorf("item %w", ErrNotFound)

	// ErrBlobNotFound indicates a storage key could not be resolved
	ErrBlobNotFound = fmt.Errorf("blob %w", ErrNotFound)

	// ErrBackend indicates the catalog store or the blob store failed
	ErrBackend = errors.New("backend failure")

	// ErrMalformedResponse indicates the blob store returned a payload of unrecognized shape
	ErrMalformedResponse = errors.New("malformed blob response")

	// ErrValidation is matched by every *ValidationError
	ErrValidation = errors.New("validation failed")
)

// FieldError describes one invalid field of a draft or patch.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries per-field detail for a rejected draft or patch.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// BackendError represents a catalog store failure
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("catalog operation %s failed: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() []error {
	return []error{ErrBackend, e.Err}
}

// StorageError represents a blob store failure for one key
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// MalformedResponseError keeps a truncated snapshot of an unrecognized blob response
type MalformedResponseError struct {
	Reason   string
	Snapshot string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed blob response (%s): %s", e.Reason, e.Snapshot)
}

func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// backendErr wraps err as a BackendError unless it already is a known
// not-found or validation error, which pass through untouched.
func backendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}
