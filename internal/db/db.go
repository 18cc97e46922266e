package db

import (
	"context"
)

// Table names a keyspace inside an engine. Bolt maps a table to a bucket,
// pebble maps it to a key prefix.
type Table string

// Tables used by the index metadata store.
const (
	TableIndexes           Table = "indexes"
	TableIndexStats        Table = "index_stats"
	TableIndexErrors       Table = "index_errors"
	TableReferencesForward Table = "references_forward"
	TableReferencesReverse Table = "references_reverse"
	TableReferencesCount   Table = "references_count"
	TableReferencesByView  Table = "references_by_view"
)

// Tables lists every table an engine must create on open.
var Tables = []Table{
	TableIndexes,
	TableIndexStats,
	TableIndexErrors,
	TableReferencesForward,
	TableReferencesReverse,
	TableReferencesCount,
	TableReferencesByView,
}

// Engine is a transactional key-value storage engine.
// At most one writable transaction is open at a time; readers see a
// consistent snapshot taken when the transaction began.
type Engine interface {
	Pinger
	Begin(ctx context.Context, writable bool) (Tx, error)
	Name() string
	Close() error
}

// Pinger checks engine availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Tx is a single engine transaction.
//
//nolint:interfacebloat // facade by design -- repositories use narrow sub-interfaces (ISP)
type Tx interface {
	Reader
	Writer
	Context() context.Context
	Writable() bool
	Commit() error
	Rollback() error
}

// Reader provides point reads and ordered prefix scans.
type Reader interface {
	// Get returns a copy of the value stored at key, or ErrKeyNotFound.
	Get(t Table, key []byte) ([]byte, error)
	// ForEach calls fn for every key starting with prefix in ascending order.
	// Returning ErrStop from fn ends the scan without error. Key and value
	// are only valid for the duration of the call, and fn must not modify t.
	ForEach(t Table, prefix []byte, fn func(k, v []byte) error) error
}

// Writer provides mutations. All of them fail with ErrTxNotWritable on a
// read-only transaction.
type Writer interface {
	Put(t Table, key, value []byte) error
	// Delete removes key; deleting an absent key is not an error.
	Delete(t Table, key []byte) error
	// NextSequence returns the next value of the table's monotonic sequence.
	NextSequence(t Table) (uint64, error)
}
