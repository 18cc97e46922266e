package admin

import (
	"context"

	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
)

// Repository defines the index bookkeeping the admin surface reads and
// mutates.
type Repository interface {
	ListStats(ctx context.Context) ([]domidx.Stats, error)
	Stats(ctx context.Context, name string) (domidx.Stats, error)
	FailureRate(ctx context.Context, name string) (domidx.FailureRate, error)
	IndexingErrors(ctx context.Context, name string) ([]domidx.Error, error)
	SetPriority(ctx context.Context, name string, p domidx.Priority) error
	Touch(ctx context.Context, name string) error
}

// ReferenceReader reads the document reference graph.
type ReferenceReader interface {
	ReferencesFrom(ctx context.Context, key string) ([]string, error)
	ReferencedBy(ctx context.Context, key string) ([]string, error)
	CountReferencing(ctx context.Context, key string) (int64, error)
}
