// Package index models the catalog entry and the per-index bookkeeping
// records of the metadata store.
package index

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/indexstore/internal/domain"
)

// MaxNameLength bounds index names in bytes.
const MaxNameLength = 256

// Entry is one catalog row (immutable value object).
type Entry struct {
	name      string
	id        uint64
	version   uint64
	mapReduce bool
}

// NewEntry creates a catalog entry.
func NewEntry(name string, id, version uint64, mapReduce bool) Entry {
	return Entry{name: name, id: id, version: version, mapReduce: mapReduce}
}

// Name returns the display name with the casing it was created with.
func (e Entry) Name() string { return e.name }

// ID returns the internal id, never reused after deletion.
func (e Entry) ID() uint64 { return e.id }

// Version returns the optimistic concurrency version. 0 means absent.
func (e Entry) Version() uint64 { return e.version }

// IsMapReduce reports whether the index carries reduce-side bookkeeping.
func (e Entry) IsMapReduce() bool { return e.mapReduce }

// WithVersion returns a copy with the given version.
func (e Entry) WithVersion(v uint64) Entry {
	e.version = v
	return e
}

// ValidateName rejects names that cannot be stored.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name is required", domain.ErrInvalidIndexName)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: name too long (max %d)", domain.ErrInvalidIndexName, MaxNameLength)
	case !utf8.ValidString(name):
		return fmt.Errorf("%w: name must be valid UTF-8", domain.ErrInvalidIndexName)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: name contains control characters", domain.ErrInvalidIndexName)
		}
	}
	return nil
}

// NormalizeName folds a name for case-insensitive lookup.
func NormalizeName(name string) string {
	return strings.ToLower(name)
}
