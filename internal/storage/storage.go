// Package storage scopes index bookkeeping to engine transactions.
//
// A Batch opens a writable transaction, hands an Accessor to the caller and
// commits when the callback returns nil. An error or panic rolls everything
// back. Commit hooks run only after a successful commit.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexstore/internal/db"
	"github.com/kailas-cloud/indexstore/internal/domain"
	"github.com/kailas-cloud/indexstore/internal/metrics"
	"github.com/kailas-cloud/indexstore/internal/repository/index"
	"github.com/kailas-cloud/indexstore/internal/repository/reference"
)

// Batch modes used as metric labels.
const (
	modeBatch = "batch"
	modeView  = "view"
)

// CommitHook observes committed batches. changed lists the display names of
// indexes created, mutated or deleted by the batch.
type CommitHook func(ctx context.Context, changed []string)

// Storage runs batches against one engine.
type Storage struct {
	engine    db.Engine
	logger    *zap.Logger
	now       func() time.Time
	maxErrors int
	hooks     []CommitHook
}

// New creates a Storage over engine.
func New(engine db.Engine, logger *zap.Logger) *Storage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{
		engine:    engine,
		logger:    logger,
		now:       time.Now,
		maxErrors: index.DefaultMaxErrors,
	}
}

// WithClock overrides the batch clock.
func (s *Storage) WithClock(now func() time.Time) *Storage {
	if now != nil {
		s.now = now
	}
	return s
}

// WithMaxErrors sets how many indexing errors are kept per index.
func (s *Storage) WithMaxErrors(n int) *Storage {
	if n > 0 {
		s.maxErrors = n
	}
	return s
}

// OnCommit registers a hook. Not safe to call concurrently with Batch.
func (s *Storage) OnCommit(h CommitHook) *Storage {
	s.hooks = append(s.hooks, h)
	return s
}

// Engine returns the underlying engine.
func (s *Storage) Engine() db.Engine { return s.engine }

// Ping checks engine availability.
func (s *Storage) Ping(ctx context.Context) error {
	return s.engine.Ping(ctx)
}

// Batch runs fn in a writable transaction. Writers are serialized by the
// engine. fn's error is returned unchanged after rollback.
func (s *Storage) Batch(ctx context.Context, fn func(*Accessor) error) error {
	start := time.Now()
	changed, err := s.run(ctx, true, fn)
	metrics.ObserveBatch(modeBatch, outcome(err), time.Since(start))
	if err != nil {
		return err
	}

	if len(changed) > 0 {
		for _, h := range s.hooks {
			h(ctx, changed)
		}
	}
	return nil
}

// View runs fn against a read-only snapshot. Writes fail with
// db.ErrTxNotWritable.
func (s *Storage) View(ctx context.Context, fn func(*Accessor) error) error {
	start := time.Now()
	_, err := s.run(ctx, false, fn)
	metrics.ObserveBatch(modeView, outcome(err), time.Since(start))
	return err
}

func (s *Storage) run(ctx context.Context, writable bool, fn func(*Accessor) error) (changed []string, err error) {
	tx, err := s.engine.Begin(ctx, writable)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	a := newAccessor(tx, s.now().UTC(), s.maxErrors)
	if err := fn(a); err != nil {
		return nil, err
	}

	done = true
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return a.indexing.Changed(), nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case domain.IsRetryable(err):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}

// Accessor exposes the repositories of one transaction. It must not be used
// after the batch callback returns.
type Accessor struct {
	tx         db.Tx
	now        time.Time
	indexing   *index.Repo
	references *reference.Repo
}

func newAccessor(tx db.Tx, now time.Time, maxErrors int) *Accessor {
	return &Accessor{
		tx:         tx,
		now:        now,
		indexing:   index.New(tx, now).WithMaxErrors(maxErrors),
		references: reference.New(tx),
	}
}

// Indexing returns the catalog, stats, failure-rate and error-log repository.
func (a *Accessor) Indexing() *index.Repo { return a.indexing }

// References returns the document reference graph repository.
func (a *Accessor) References() *reference.Repo { return a.references }

// Now returns the fixed timestamp of the batch.
func (a *Accessor) Now() time.Time { return a.now }

// Context returns the batch context.
func (a *Accessor) Context() context.Context { return a.tx.Context() }
