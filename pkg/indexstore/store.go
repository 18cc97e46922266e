package indexstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexstore/internal/db"
	"github.com/kailas-cloud/indexstore/internal/db/bolt"
	"github.com/kailas-cloud/indexstore/internal/db/pebble"
	dbRedis "github.com/kailas-cloud/indexstore/internal/db/redis"
	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
	"github.com/kailas-cloud/indexstore/internal/storage"
	healthuc "github.com/kailas-cloud/indexstore/internal/usecase/health"
	mirroruc "github.com/kailas-cloud/indexstore/internal/usecase/mirror"
)

const defaultReadinessTimeout = 10 * time.Second

// Store is the indexstore entry point.
type Store struct {
	engine  db.Engine
	storage *storage.Storage
	mirror  *dbRedis.Store
	health  healthUseCase
	obs     *observer
	closed  atomic.Bool
}

// Open opens the store selected by WithBolt, WithPebble or WithInMemory.
// The provided context bounds the mirror readiness check and initial resync.
func Open(ctx context.Context, opts ...Option) (*Store, error) {
	cfg := &storeConfig{
		policy:       domidx.DefaultFailurePolicy,
		mirrorWaitUp: defaultReadinessTimeout,
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.zapLogger == nil {
		cfg.zapLogger = zap.NewNop()
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return nil, err
	}

	st := storage.New(engine, cfg.zapLogger).WithMaxErrors(cfg.maxErrors).WithClock(cfg.clock)
	s := &Store{engine: engine, storage: st, obs: obs}

	if err := s.attachMirror(ctx, cfg); err != nil {
		_ = engine.Close()
		return nil, err
	}

	// Pass nil interface (not typed nil pointer!) if there is no mirror.
	var mirrorPinger healthuc.Pinger
	if s.mirror != nil {
		mirrorPinger = s.mirror
	}
	s.health = healthuc.New(st, mirrorPinger)
	return s, nil
}

func openEngine(cfg *storeConfig) (db.Engine, error) {
	switch cfg.driver {
	case driverBolt:
		e, err := bolt.Open(bolt.Config{Path: cfg.path, Sync: cfg.sync})
		if err != nil {
			return nil, fmt.Errorf("indexstore: open bolt: %w", err)
		}
		return e, nil
	case driverPebble:
		e, err := pebble.Open(pebble.Config{
			Path:     cfg.path,
			Sync:     cfg.sync,
			InMemory: cfg.inMemory,
			Logger:   cfg.zapLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("indexstore: open pebble: %w", err)
		}
		return e, nil
	case "":
		return nil, errors.New("indexstore: storage location required (use WithBolt, WithPebble or WithInMemory)")
	default:
		return nil, fmt.Errorf("indexstore: unknown driver %q", cfg.driver)
	}
}

func (s *Store) attachMirror(ctx context.Context, cfg *storeConfig) error {
	mirror := cfg.mirrorStore
	if mirror == nil {
		if len(cfg.mirror.Addrs) == 0 {
			return nil
		}
		var err error
		if mirror, err = dbRedis.NewStore(cfg.mirror); err != nil {
			return fmt.Errorf("indexstore: create mirror: %w", err)
		}
	}
	mirror.WithFailurePolicy(cfg.policy)

	if err := mirror.WaitForReady(ctx, cfg.mirrorWaitUp); err != nil {
		mirror.Close()
		return fmt.Errorf("indexstore: mirror not ready: %w", err)
	}

	svc := mirroruc.New(s.storage, mirror, cfg.zapLogger)
	if err := svc.Resync(ctx); err != nil {
		mirror.Close()
		return fmt.Errorf("indexstore: mirror resync: %w", err)
	}
	s.storage.OnCommit(svc.OnCommit)
	s.mirror = mirror
	return nil
}

// Close releases the mirror connection and the engine. Subsequent calls
// return ErrClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if s.mirror != nil {
		s.mirror.Close()
	}
	if err := s.engine.Close(); err != nil {
		return fmt.Errorf("indexstore: close: %w", err)
	}
	return nil
}

// Engine returns the engine name ("bolt" or "pebble").
func (s *Store) Engine() string {
	return s.engine.Name()
}

// Ping checks engine availability.
func (s *Store) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("ping", start, err) }()

	if s.closed.Load() {
		return ErrClosed
	}
	if err = s.storage.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Batch runs fn in one writable transaction. If fn returns an error or
// panics, nothing it did is persisted and the error is returned unchanged.
// The context is only consulted before the transaction begins.
func (s *Store) Batch(ctx context.Context, fn func(tx *Tx) error) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("batch", start, err) }()

	if s.closed.Load() {
		return ErrClosed
	}
	return s.storage.Batch(ctx, fn)
}

// View runs fn against a read-only snapshot. Writes fail with
// ErrTxNotWritable.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("view", start, err) }()

	if s.closed.Load() {
		return ErrClosed
	}
	return s.storage.View(ctx, fn)
}

// Indexes returns the stats of every index in creation order.
func (s *Store) Indexes(ctx context.Context) (stats []IndexStats, err error) {
	start := time.Now()
	defer func() { s.obs.observe("indexes", start, err) }()

	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.storage.ListStats(ctx)
}

// Index returns the stats of one index.
func (s *Store) Index(ctx context.Context, name string) (st IndexStats, err error) {
	start := time.Now()
	defer func() { s.obs.observe("index", start, err) }()

	if s.closed.Load() {
		return IndexStats{}, ErrClosed
	}
	return s.storage.Stats(ctx, name)
}
