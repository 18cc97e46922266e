package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexNotFound signals a missing index.
	ErrIndexNotFound = errors.New("index not found")
	// ErrDuplicateIndex signals an attempt to add an index under a taken name.
	ErrDuplicateIndex = errors.New("duplicate index")
	// ErrConcurrency signals an optimistic concurrency conflict on the catalog.
	ErrConcurrency = errors.New("concurrency conflict")
	// ErrInvalidIndexName signals an unusable index name.
	ErrInvalidIndexName = errors.New("invalid index name")
	// ErrInvalidStats signals a malformed stats delta (e.g. negative counters).
	ErrInvalidStats = errors.New("invalid stats")
	// ErrInvalidPriority signals an unknown priority value.
	ErrInvalidPriority = errors.New("invalid priority")
	// ErrInvalidDocumentKey signals an empty document key in the reference graph.
	ErrInvalidDocumentKey = errors.New("invalid document key")
)

// DuplicateIndexError reports the name that is already taken.
type DuplicateIndexError struct {
	Name string
}

func (e *DuplicateIndexError) Error() string {
	return fmt.Sprintf("there is already an index with the name: '%s'", e.Name)
}

func (e *DuplicateIndexError) Unwrap() error { return ErrDuplicateIndex }

// ConcurrencyError reports the version the caller expected and the one found.
type ConcurrencyError struct {
	Name     string
	Expected uint64
	Actual   uint64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("cannot add '%s': version mismatch, expected: %d, actual: %d", e.Name, e.Expected, e.Actual)
}

func (e *ConcurrencyError) Unwrap() error { return ErrConcurrency }

// IndexNotFoundError reports the missing index name.
type IndexNotFoundError struct {
	Name string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index '%s' not found", e.Name)
}

func (e *IndexNotFoundError) Unwrap() error { return ErrIndexNotFound }

// NewIndexNotFound creates an index-not-found error.
func NewIndexNotFound(name string) error {
	return &IndexNotFoundError{Name: name}
}

// IsRetryable reports whether the whole batch may be retried after err.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrency)
}
