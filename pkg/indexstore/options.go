package indexstore

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/indexstore/internal/db/redis"
	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
)

// Option configures the Store.
type Option interface {
	apply(*storeConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*storeConfig)

func (f optionFunc) apply(c *storeConfig) { f(c) }

const (
	driverBolt   = "bolt"
	driverPebble = "pebble"
)

type storeConfig struct {
	driver   string // "bolt" or "pebble"
	path     string
	inMemory bool
	sync     bool

	maxErrors int
	policy    domidx.FailurePolicy
	clock     func() time.Time

	mirror       dbRedis.Config
	mirrorStore  *dbRedis.Store
	mirrorWaitUp time.Duration

	logger     *slog.Logger
	zapLogger  *zap.Logger
	metricsReg prometheus.Registerer
}

// WithBolt stores everything in a single bbolt file at path.
func WithBolt(path string) Option {
	return optionFunc(func(c *storeConfig) {
		c.driver = driverBolt
		c.path = path
		c.inMemory = false
	})
}

// WithPebble stores everything in a pebble directory at path.
func WithPebble(path string) Option {
	return optionFunc(func(c *storeConfig) {
		c.driver = driverPebble
		c.path = path
		c.inMemory = false
	})
}

// WithInMemory keeps everything in memory (pebble on an in-memory
// filesystem). Data is lost on Close.
func WithInMemory() Option {
	return optionFunc(func(c *storeConfig) {
		c.driver = driverPebble
		c.path = ""
		c.inMemory = true
	})
}

// WithSync fsyncs on every commit.
func WithSync() Option {
	return optionFunc(func(c *storeConfig) {
		c.sync = true
	})
}

// WithMaxErrors bounds the indexing error log kept per index.
// Default: 50.
func WithMaxErrors(n int) Option {
	return optionFunc(func(c *storeConfig) {
		c.maxErrors = n
	})
}

// WithFailurePolicy sets the thresholds behind FailureRate.IsInvalid in the
// health report and the mirrored "invalid" field.
// Default: 100 attempts, 15% errors.
func WithFailurePolicy(p FailurePolicy) Option {
	return optionFunc(func(c *storeConfig) {
		c.policy = p
	})
}

// WithClock overrides the clock used for batch timestamps.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(c *storeConfig) {
		c.clock = now
	})
}

// WithRedisMirror publishes committed index stats to Redis or Valkey hashes
// under keyPrefix + "index:" + lower(name).
func WithRedisMirror(addr, password, keyPrefix string) Option {
	return optionFunc(func(c *storeConfig) {
		c.mirror = dbRedis.Config{
			Addrs:     []string{addr},
			Password:  password,
			KeyPrefix: keyPrefix,
		}
	})
}

// WithLogger enables structured logging for Store operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *storeConfig) {
		c.logger = l
	})
}

// WithZapLogger sets the logger of the storage internals (engine, commit
// hooks, mirror).
func WithZapLogger(l *zap.Logger) Option {
	return optionFunc(func(c *storeConfig) {
		c.zapLogger = l
	})
}

// WithPrometheus registers Store metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *storeConfig) {
		c.metricsReg = reg
	})
}

// withMirrorStore injects a ready mirror client.
func withMirrorStore(s *dbRedis.Store, waitUp time.Duration) Option {
	return optionFunc(func(c *storeConfig) {
		c.mirrorStore = s
		c.mirrorWaitUp = waitUp
	})
}
