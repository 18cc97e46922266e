package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDuplicateIndexError(t *testing.T) {
	err := error(&DuplicateIndexError{Name: "index1"})

	if got, want := err.Error(), "there is already an index with the name: 'index1'"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if !errors.Is(err, ErrDuplicateIndex) {
		t.Error("expected errors.Is(ErrDuplicateIndex)")
	}
	if IsRetryable(err) {
		t.Error("duplicate index must not be retryable")
	}
}

func TestConcurrencyError(t *testing.T) {
	err := fmt.Errorf("batch: %w", &ConcurrencyError{Name: "index2", Expected: 0, Actual: 1})

	if got, want := err.Error(), "batch: cannot add 'index2': version mismatch, expected: 0, actual: 1"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	var ce *ConcurrencyError
	if !errors.As(err, &ce) {
		t.Fatal("expected errors.As(*ConcurrencyError)")
	}
	if ce.Expected != 0 || ce.Actual != 1 {
		t.Errorf("expected 0/1, got %d/%d", ce.Expected, ce.Actual)
	}
	if !errors.Is(err, ErrConcurrency) {
		t.Error("expected errors.Is(ErrConcurrency)")
	}
	if !IsRetryable(err) {
		t.Error("concurrency conflict must be retryable")
	}
}

func TestIndexNotFoundError(t *testing.T) {
	err := NewIndexNotFound("missing")
	if !errors.Is(err, ErrIndexNotFound) {
		t.Error("expected errors.Is(ErrIndexNotFound)")
	}
	if got, want := err.Error(), "index 'missing' not found"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
