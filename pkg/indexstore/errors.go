package indexstore

import (
	"github.com/kailas-cloud/indexstore/internal/db"
	"github.com/kailas-cloud/indexstore/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrIndexNotFound      = domain.ErrIndexNotFound
	ErrDuplicateIndex     = domain.ErrDuplicateIndex
	ErrConcurrency        = domain.ErrConcurrency
	ErrInvalidIndexName   = domain.ErrInvalidIndexName
	ErrInvalidStats       = domain.ErrInvalidStats
	ErrInvalidPriority    = domain.ErrInvalidPriority
	ErrInvalidDocumentKey = domain.ErrInvalidDocumentKey

	// ErrClosed is returned by operations on a closed Store.
	ErrClosed = db.ErrClosed
	// ErrTxNotWritable is returned by writes inside View.
	ErrTxNotWritable = db.ErrTxNotWritable
)

// Typed errors. Use errors.As() to inspect.
type (
	DuplicateIndexError = domain.DuplicateIndexError
	ConcurrencyError    = domain.ConcurrencyError
	IndexNotFoundError  = domain.IndexNotFoundError
	EngineError         = db.Error
)

// IsRetryable reports whether the whole batch may be retried after err.
func IsRetryable(err error) bool {
	return domain.IsRetryable(err)
}
