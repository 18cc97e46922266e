package db

import "errors"

// Sentinel errors for engine operations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrTxClosed      = errors.New("db: transaction closed")
	ErrTxNotWritable = errors.New("db: transaction not writable")
	ErrTableNotFound = errors.New("db: table not found")
	ErrClosed        = errors.New("db: engine closed")

	// ErrStop is returned from a ForEach callback to end the scan early.
	ErrStop = errors.New("db: stop iteration")
)

// Op constants name engine operations for error context.
const (
	OpOpen     = "OPEN"
	OpBegin    = "BEGIN"
	OpGet      = "GET"
	OpPut      = "PUT"
	OpDelete   = "DELETE"
	OpScan     = "SCAN"
	OpSequence = "SEQUENCE"
	OpCommit   = "COMMIT"
	OpRollback = "ROLLBACK"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
