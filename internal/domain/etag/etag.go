// Package etag defines the 16-byte change marker documents and indexes are
// stamped with.
package etag

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Etag is a totally ordered 16-byte change marker. The first 8 bytes hold the
// restart counter and the last 8 the change counter, both big-endian.
type Etag [16]byte

// Empty is the zero etag every index progress cursor starts at.
var Empty Etag

// FromParts builds an etag from its restart and change counters.
func FromParts(restarts, changes uint64) Etag {
	var e Etag
	binary.BigEndian.PutUint64(e[:8], restarts)
	binary.BigEndian.PutUint64(e[8:], changes)
	return e
}

// Parse reads the UUID text form.
func Parse(s string) (Etag, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Empty, fmt.Errorf("parse etag %q: %w", s, err)
	}
	return Etag(u), nil
}

// FromBytes copies a 16-byte slice into an etag.
func FromBytes(b []byte) (Etag, error) {
	if len(b) != len(Empty) {
		return Empty, fmt.Errorf("etag must be %d bytes, got %d", len(Empty), len(b))
	}
	var e Etag
	copy(e[:], b)
	return e, nil
}

// Restarts returns the restart counter.
func (e Etag) Restarts() uint64 { return binary.BigEndian.Uint64(e[:8]) }

// Changes returns the change counter.
func (e Etag) Changes() uint64 { return binary.BigEndian.Uint64(e[8:]) }

// IsEmpty reports whether e is the zero etag.
func (e Etag) IsEmpty() bool { return e == Empty }

// Compare orders etags bytewise.
func (e Etag) Compare(other Etag) int { return bytes.Compare(e[:], other[:]) }

// Less reports whether e sorts before other.
func (e Etag) Less(other Etag) bool { return e.Compare(other) < 0 }

// Next returns the etag with the change counter incremented.
func (e Etag) Next() Etag { return FromParts(e.Restarts(), e.Changes()+1) }

func (e Etag) String() string { return uuid.UUID(e).String() }

// MarshalText implements encoding.TextMarshaler.
func (e Etag) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Etag) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
