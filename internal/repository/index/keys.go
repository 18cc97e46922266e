package index

import (
	"github.com/kailas-cloud/indexstore/internal/db"
	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
)

// entryKey is tuple(lower(name)) in the indexes table.
func entryKey(name string) []byte {
	return db.NewKey().Str(domidx.NormalizeName(name)).Bytes()
}

// statsKey is tuple(id) in the index_stats table; ids are assigned in
// creation order so a full scan returns indexes in creation order.
func statsKey(id uint64) []byte {
	return db.NewKey().U64(id).Bytes()
}

// errorPrefix is tuple(id) in the index_errors table.
func errorPrefix(id uint64) []byte {
	return db.NewKey().U64(id).Bytes()
}

// errorKey is tuple(id, seq) in the index_errors table.
func errorKey(id, seq uint64) []byte {
	return db.NewKey().U64(id).U64(seq).Bytes()
}
