// Package mirror republishes index stats after every committed batch.
// Failures are logged and counted; the batch is already durable.
package mirror

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexstore/internal/metrics"
)

const defaultTimeout = 2 * time.Second

// Service keeps the mirror in step with the engine.
type Service struct {
	reader    StatsReader
	publisher Publisher
	logger    *zap.Logger
	timeout   time.Duration
}

// New creates a mirror service.
func New(reader StatsReader, publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		reader:    reader,
		publisher: publisher,
		logger:    logger.Named("mirror"),
		timeout:   defaultTimeout,
	}
}

// OnCommit publishes the indexes changed by a batch and removes the deleted
// ones. Its signature matches storage.CommitHook.
func (s *Service) OnCommit(ctx context.Context, changed []string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	found, missing, err := s.reader.LookupStats(ctx, changed)
	if err != nil {
		s.fail("load stats", err, changed)
		return
	}
	if err := s.publisher.Publish(ctx, found); err != nil {
		s.fail("publish", err, changed)
		return
	}
	if err := s.publisher.Remove(ctx, missing...); err != nil {
		s.fail("remove", err, missing)
		return
	}
	metrics.MirrorPublishTotal.WithLabelValues(metrics.OutcomeOK).Inc()
}

// Resync publishes every live index and drops mirrored indexes that no
// longer exist.
func (s *Service) Resync(ctx context.Context) error {
	stats, err := s.reader.ListStats(ctx)
	if err != nil {
		metrics.MirrorPublishTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return err
	}
	if err := s.publisher.Sync(ctx, stats); err != nil {
		metrics.MirrorPublishTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return err
	}
	metrics.MirrorPublishTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	s.logger.Info("mirror resynced", zap.Int("indexes", len(stats)))
	return nil
}

func (s *Service) fail(step string, err error, names []string) {
	metrics.MirrorPublishTotal.WithLabelValues(metrics.OutcomeError).Inc()
	s.logger.Warn("mirror "+step+" failed", zap.Error(err), zap.Strings("indexes", names))
}
