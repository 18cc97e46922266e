package mirror

import (
	"context"

	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
)

// StatsReader loads committed index stats.
type StatsReader interface {
	ListStats(ctx context.Context) ([]domidx.Stats, error)
	LookupStats(ctx context.Context, names []string) (found []domidx.Stats, missing []string, err error)
}

// Publisher writes stats to the mirror.
type Publisher interface {
	Publish(ctx context.Context, stats []domidx.Stats) error
	Remove(ctx context.Context, names ...string) error
	Sync(ctx context.Context, stats []domidx.Stats) error
}
