package indexstore

import (
	"github.com/kailas-cloud/indexstore/internal/domain/etag"
	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
	"github.com/kailas-cloud/indexstore/internal/storage"
)

// Tx is the per-batch accessor handed to Batch and View callbacks.
// Indexing() exposes the catalog, stats and error log; References() the
// document reference graph. It must not be retained after the callback.
type Tx = storage.Accessor

// Index bookkeeping types.
type (
	IndexStats    = domidx.Stats
	WorkStats     = domidx.WorkStats
	IndexingError = domidx.Error
	FailureRate   = domidx.FailureRate
	FailurePolicy = domidx.FailurePolicy
	Priority      = domidx.Priority
	Etag          = etag.Etag
)

// Index priorities.
const (
	PriorityLow    = domidx.PriorityLow
	PriorityNormal = domidx.PriorityNormal
	PriorityHigh   = domidx.PriorityHigh
	PriorityForced = domidx.PriorityForced
)

// DefaultFailurePolicy requires 100 attempts and tolerates 15% errors.
var DefaultFailurePolicy = domidx.DefaultFailurePolicy

// ParsePriority parses a case-insensitive priority name.
func ParsePriority(s string) (Priority, error) {
	return domidx.ParsePriority(s)
}

// EtagFromParts builds an etag from its restart and change counters.
func EtagFromParts(restarts, changes uint64) Etag {
	return etag.FromParts(restarts, changes)
}

// ParseEtag parses the UUID form of an etag.
func ParseEtag(s string) (Etag, error) {
	return etag.Parse(s)
}
