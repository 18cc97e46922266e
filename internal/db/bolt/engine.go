// Package bolt implements db.Engine on top of go.etcd.io/bbolt.
package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/kailas-cloud/indexstore/internal/db"
)

// Compile-time checks.
var (
	_ db.Engine = (*Engine)(nil)
	_ db.Tx     = (*Tx)(nil)
)

// Config holds bolt file parameters.
type Config struct {
	Path string
	// Sync forces an fsync on every commit.
	Sync bool
	// Timeout bounds waiting for the file lock on open.
	Timeout time.Duration
	// InitialMmapSize keeps long readers from blocking a writer that grows
	// the file.
	InitialMmapSize int
}

const defaultInitialMmapSize = 16 << 20

// Engine is a single-file bbolt database with one bucket per table.
type Engine struct {
	db   *bbolt.DB
	path string
}

// Open opens (or creates) the bolt file and ensures every table bucket exists.
func Open(cfg Config) (*Engine, error) {
	if cfg.Path == "" {
		return nil, &db.Error{Op: db.OpOpen, Err: fmt.Errorf("path is required")}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	if cfg.InitialMmapSize <= 0 {
		cfg.InitialMmapSize = defaultInitialMmapSize
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, &db.Error{Op: db.OpOpen, Err: fmt.Errorf("mkdir %s: %w", filepath.Dir(cfg.Path), err)}
	}

	bdb, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{
		Timeout:         cfg.Timeout,
		InitialMmapSize: cfg.InitialMmapSize,
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpOpen, Err: err}
	}
	bdb.NoSync = !cfg.Sync

	e := &Engine{db: bdb, path: cfg.Path}
	if err := e.initializeBuckets(db.Tables...); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) initializeBuckets(tables ...db.Table) error {
	err := e.db.Update(func(tx *bbolt.Tx) error {
		for _, t := range tables {
			if _, err := tx.CreateBucketIfNotExists([]byte(t)); err != nil {
				return fmt.Errorf("creating bucket %s: %w", t, err)
			}
		}
		return nil
	})
	if err != nil {
		return &db.Error{Op: db.OpOpen, Err: err}
	}
	return nil
}

// Name returns the engine identifier.
func (e *Engine) Name() string { return "bolt" }

// Path returns the database file path.
func (e *Engine) Path() string { return e.path }

// Ping checks that the database is open and readable.
func (e *Engine) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := e.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(db.TableIndexes)) == nil {
			return db.ErrTableNotFound
		}
		return nil
	})
	if err != nil {
		return &db.Error{Op: db.OpBegin, Err: mapErr(err)}
	}
	return nil
}

// Close closes the database file.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Begin starts a transaction. A writable Begin blocks while another writable
// transaction is open.
func (e *Engine) Begin(ctx context.Context, writable bool) (db.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	btx, err := e.db.Begin(writable)
	if err != nil {
		return nil, &db.Error{Op: db.OpBegin, Err: mapErr(err)}
	}
	return &Tx{tx: btx, ctx: ctx}, nil
}

// Tx wraps a bbolt transaction.
type Tx struct {
	tx     *bbolt.Tx
	ctx    context.Context
	closed bool
}

// Context returns the context the transaction was started with.
func (t *Tx) Context() context.Context { return t.ctx }

// Writable reports whether the transaction accepts writes.
func (t *Tx) Writable() bool { return t.tx.Writable() }

func (t *Tx) bucket(table db.Table) (*bbolt.Bucket, error) {
	if t.closed {
		return nil, db.ErrTxClosed
	}
	b := t.tx.Bucket([]byte(table))
	if b == nil {
		return nil, fmt.Errorf("%w: %s", db.ErrTableNotFound, table)
	}
	return b, nil
}

func (t *Tx) writableBucket(table db.Table) (*bbolt.Bucket, error) {
	b, err := t.bucket(table)
	if err != nil {
		return nil, err
	}
	if !t.tx.Writable() {
		return nil, db.ErrTxNotWritable
	}
	return b, nil
}

// Get returns a copy of the value at key.
func (t *Tx) Get(table db.Table, key []byte) ([]byte, error) {
	b, err := t.bucket(table)
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	v := b.Get(key)
	if v == nil {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(v), nil
}

// ForEach scans keys with the given prefix in ascending order.
func (t *Tx) ForEach(table db.Table, prefix []byte, fn func(k, v []byte) error) error {
	b, err := t.bucket(table)
	if err != nil {
		return &db.Error{Op: db.OpScan, Err: err}
	}
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			if errors.Is(err, db.ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Put stores value at key.
func (t *Tx) Put(table db.Table, key, value []byte) error {
	b, err := t.writableBucket(table)
	if err != nil {
		return &db.Error{Op: db.OpPut, Err: err}
	}
	if err := b.Put(key, value); err != nil {
		return &db.Error{Op: db.OpPut, Err: mapErr(err)}
	}
	return nil
}

// Delete removes key.
func (t *Tx) Delete(table db.Table, key []byte) error {
	b, err := t.writableBucket(table)
	if err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	if err := b.Delete(key); err != nil {
		return &db.Error{Op: db.OpDelete, Err: mapErr(err)}
	}
	return nil
}

// NextSequence returns the bucket's next sequence value.
func (t *Tx) NextSequence(table db.Table) (uint64, error) {
	b, err := t.writableBucket(table)
	if err != nil {
		return 0, &db.Error{Op: db.OpSequence, Err: err}
	}
	seq, err := b.NextSequence()
	if err != nil {
		return 0, &db.Error{Op: db.OpSequence, Err: mapErr(err)}
	}
	return seq, nil
}

// Commit commits a writable transaction or releases a read-only one.
func (t *Tx) Commit() error {
	if t.closed {
		return &db.Error{Op: db.OpCommit, Err: db.ErrTxClosed}
	}
	t.closed = true
	if !t.tx.Writable() {
		if err := t.tx.Rollback(); err != nil {
			return &db.Error{Op: db.OpCommit, Err: mapErr(err)}
		}
		return nil
	}
	if err := t.tx.Commit(); err != nil {
		return &db.Error{Op: db.OpCommit, Err: mapErr(err)}
	}
	return nil
}

// Rollback discards the transaction.
func (t *Tx) Rollback() error {
	if t.closed {
		return &db.Error{Op: db.OpRollback, Err: db.ErrTxClosed}
	}
	t.closed = true
	if err := t.tx.Rollback(); err != nil {
		return &db.Error{Op: db.OpRollback, Err: mapErr(err)}
	}
	return nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, bbolt.ErrTxClosed):
		return db.ErrTxClosed
	case errors.Is(err, bbolt.ErrTxNotWritable):
		return db.ErrTxNotWritable
	case errors.Is(err, bbolt.ErrDatabaseNotOpen):
		return db.ErrClosed
	default:
		return err
	}
}
