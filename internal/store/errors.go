package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no backend holds the requested document
	ErrNotFound = errors.New("document not found")

	// ErrInvalidTransition is returned when a document leaves a terminal status
	ErrInvalidTransition = errors.New("invalid document status transition")
)

// BackendError records which backend failed and during which operation
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
