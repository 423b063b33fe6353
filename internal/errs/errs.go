// Package errs holds the error kinds shared by the planner components.
// Concrete errors wrap one of the kinds so callers can branch with errors.Is.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNetwork     = errors.New("network error")
	ErrDecode      = errors.New("decode error")
	ErrProvider    = errors.New("provider error")
	ErrValidation  = errors.New("validation error")
	ErrPersistence = errors.New("persistence error")
	ErrNotFound    = errors.New("not found")
)

var (
	ErrNothingToSync     = fmt.Errorf("no accepted events to sync, accept events before syncing: %w", ErrValidation)
	ErrNoAccount         = fmt.Errorf("could not determine account email, sign in again: %w", ErrValidation)
	ErrNoEvents          = fmt.Errorf("no events found in document: %w", ErrValidation)
	ErrNotSyllabus       = fmt.Errorf("document is not a syllabus: %w", ErrValidation)
	ErrEmptyDocument     = fmt.Errorf("document is empty: %w", ErrValidation)
	ErrUnsupportedFormat = fmt.Errorf("unsupported export format: %w", ErrValidation)
	ErrNothingToExport   = fmt.Errorf("no events to export: %w", ErrValidation)
	ErrClassNotFound     = fmt.Errorf("class not found: %w", ErrNotFound)
	ErrEventNotFound     = fmt.Errorf("event not found: %w", ErrNotFound)
)

// ProviderError is a non-200 answer from the backend.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("provider responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *ProviderError) Unwrap() error {
	return ErrProvider
}

// Kind returns the kind sentinel err wraps, or nil for foreign errors.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrProvider, ErrNetwork, ErrDecode, ErrPersistence} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
