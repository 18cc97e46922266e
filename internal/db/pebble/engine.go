// Package pebble implements db.Engine on top of github.com/cockroachdb/pebble.
//
// Tables are key prefixes (table name followed by 0x00) inside one keyspace.
// Writes go through an indexed batch so a transaction reads its own writes;
// a mutex keeps a single writer open at a time. Readers use a snapshot.
package pebble

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"

	"github.com/kailas-cloud/indexstore/internal/db"
)

// Compile-time checks.
var (
	_ db.Engine = (*Engine)(nil)
	_ db.Tx     = (*Tx)(nil)
)

// Sequence counters live outside every table prefix.
var sequencePrefix = []byte{0x00, 's', 'e', 'q', 0x00}

// Config holds pebble parameters.
type Config struct {
	Path string
	// Sync fsyncs the WAL on every commit.
	Sync bool
	// InMemory keeps everything in a vfs.NewMem filesystem; Path is ignored.
	InMemory bool
	Logger   *zap.Logger
}

// Engine is a pebble database holding every table.
type Engine struct {
	db       *pebble.DB
	writeOpt *pebble.WriteOptions

	// writeMu is held by the open writable transaction.
	writeMu sync.Mutex
}

// Open opens (or creates) the pebble directory.
func Open(cfg Config) (*Engine, error) {
	opts := &pebble.Options{}
	if cfg.Logger != nil {
		opts.Logger = cfg.Logger.Named("pebble").Sugar()
	}

	path := cfg.Path
	switch {
	case cfg.InMemory:
		opts.FS = vfs.NewMem()
		path = "indexstore"
	case path == "":
		return nil, &db.Error{Op: db.OpOpen, Err: fmt.Errorf("path is required")}
	}

	pdb, err := pebble.Open(path, opts)
	if err != nil {
		return nil, &db.Error{Op: db.OpOpen, Err: err}
	}

	writeOpt := pebble.NoSync
	if cfg.Sync {
		writeOpt = pebble.Sync
	}
	return &Engine{db: pdb, writeOpt: writeOpt}, nil
}

// Name returns the engine identifier.
func (e *Engine) Name() string { return "pebble" }

// DB exposes the underlying database for metrics collection.
func (e *Engine) DB() *pebble.DB { return e.db }

// Ping performs a point read.
func (e *Engine) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, closer, err := e.db.Get(sequencePrefix)
	switch {
	case err == nil:
		return closer.Close()
	case errors.Is(err, pebble.ErrNotFound):
		return nil
	default:
		return &db.Error{Op: db.OpGet, Err: mapErr(err)}
	}
}

// Close closes the database.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Begin starts a transaction. A writable Begin blocks while another writable
// transaction is open.
func (e *Engine) Begin(ctx context.Context, writable bool) (db.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !writable {
		return &Tx{engine: e, ctx: ctx, reader: e.db.NewSnapshot()}, nil
	}

	e.writeMu.Lock()
	b := e.db.NewIndexedBatch()
	return &Tx{engine: e, ctx: ctx, reader: b, batch: b}, nil
}

// Tx is either a snapshot reader or an indexed-batch writer.
type Tx struct {
	engine *Engine
	ctx    context.Context
	reader pebble.Reader
	batch  *pebble.Batch
	closed bool
}

// Context returns the context the transaction was started with.
func (t *Tx) Context() context.Context { return t.ctx }

// Writable reports whether the transaction accepts writes.
func (t *Tx) Writable() bool { return t.batch != nil }

func tableKey(table db.Table, key []byte) []byte {
	out := make([]byte, 0, len(table)+1+len(key))
	out = append(out, table...)
	out = append(out, 0x00)
	return append(out, key...)
}

func (t *Tx) checkWrite() error {
	if t.closed {
		return db.ErrTxClosed
	}
	if t.batch == nil {
		return db.ErrTxNotWritable
	}
	return nil
}

// Get returns a copy of the value at key.
func (t *Tx) Get(table db.Table, key []byte) ([]byte, error) {
	if t.closed {
		return nil, &db.Error{Op: db.OpGet, Err: db.ErrTxClosed}
	}
	v, err := t.get(tableKey(table, key))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, err
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return v, nil
}

func (t *Tx) get(key []byte) ([]byte, error) {
	v, closer, err := t.reader.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, db.ErrKeyNotFound
		}
		return nil, mapErr(err)
	}
	out := bytes.Clone(v)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

// ForEach scans keys with the given prefix in ascending order.
func (t *Tx) ForEach(table db.Table, prefix []byte, fn func(k, v []byte) error) error {
	if t.closed {
		return &db.Error{Op: db.OpScan, Err: db.ErrTxClosed}
	}
	lower := tableKey(table, prefix)
	it, err := t.reader.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upperBound(lower),
	})
	if err != nil {
		return &db.Error{Op: db.OpScan, Err: mapErr(err)}
	}

	strip := len(table) + 1
	for ok := it.First(); ok; ok = it.Next() {
		if err := fn(it.Key()[strip:], it.Value()); err != nil {
			_ = it.Close()
			if errors.Is(err, db.ErrStop) {
				return nil
			}
			return err
		}
	}
	if err := it.Close(); err != nil {
		return &db.Error{Op: db.OpScan, Err: mapErr(err)}
	}
	return nil
}

// upperBound returns the smallest key greater than every key with the prefix.
func upperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// Put stores value at key.
func (t *Tx) Put(table db.Table, key, value []byte) error {
	if err := t.checkWrite(); err != nil {
		return &db.Error{Op: db.OpPut, Err: err}
	}
	if err := t.batch.Set(tableKey(table, key), value, nil); err != nil {
		return &db.Error{Op: db.OpPut, Err: mapErr(err)}
	}
	return nil
}

// Delete removes key.
func (t *Tx) Delete(table db.Table, key []byte) error {
	if err := t.checkWrite(); err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	if err := t.batch.Delete(tableKey(table, key), nil); err != nil {
		return &db.Error{Op: db.OpDelete, Err: mapErr(err)}
	}
	return nil
}

// NextSequence increments the table's counter inside the batch.
func (t *Tx) NextSequence(table db.Table) (uint64, error) {
	if err := t.checkWrite(); err != nil {
		return 0, &db.Error{Op: db.OpSequence, Err: err}
	}
	key := append(bytes.Clone(sequencePrefix), table...)

	var seq uint64
	v, err := t.get(key)
	switch {
	case err == nil:
		if len(v) != 8 {
			return 0, &db.Error{Op: db.OpSequence, Err: fmt.Errorf("corrupt sequence for %s", table)}
		}
		seq = binary.BigEndian.Uint64(v)
	case errors.Is(err, db.ErrKeyNotFound):
	default:
		return 0, &db.Error{Op: db.OpSequence, Err: err}
	}

	seq++
	if err := t.batch.Set(key, binary.BigEndian.AppendUint64(nil, seq), nil); err != nil {
		return 0, &db.Error{Op: db.OpSequence, Err: mapErr(err)}
	}
	return seq, nil
}

// Commit applies the batch atomically, or releases the snapshot.
func (t *Tx) Commit() error {
	if t.closed {
		return &db.Error{Op: db.OpCommit, Err: db.ErrTxClosed}
	}
	t.closed = true

	if t.batch == nil {
		if err := t.reader.Close(); err != nil {
			return &db.Error{Op: db.OpCommit, Err: mapErr(err)}
		}
		return nil
	}

	defer t.engine.writeMu.Unlock()
	err := t.batch.Commit(t.engine.writeOpt)
	closeErr := t.batch.Close()
	if err != nil {
		return &db.Error{Op: db.OpCommit, Err: mapErr(err)}
	}
	if closeErr != nil {
		return &db.Error{Op: db.OpCommit, Err: mapErr(closeErr)}
	}
	return nil
}

// Rollback discards the batch, or releases the snapshot.
func (t *Tx) Rollback() error {
	if t.closed {
		return &db.Error{Op: db.OpRollback, Err: db.ErrTxClosed}
	}
	t.closed = true
	if t.batch != nil {
		defer t.engine.writeMu.Unlock()
	}
	if err := t.reader.Close(); err != nil {
		return &db.Error{Op: db.OpRollback, Err: mapErr(err)}
	}
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, pebble.ErrClosed) {
		return db.ErrClosed
	}
	return err
}
