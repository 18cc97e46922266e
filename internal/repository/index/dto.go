package index

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/indexstore/internal/domain/etag"
	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
)

// entryRow is the stored form of a catalog entry.
type entryRow struct {
	Name      string `json:"name"`
	ID        uint64 `json:"id"`
	Version   uint64 `json:"version"`
	MapReduce bool   `json:"map_reduce"`
}

func entryToRow(e domidx.Entry) entryRow {
	return entryRow{Name: e.Name(), ID: e.ID(), Version: e.Version(), MapReduce: e.IsMapReduce()}
}

func (r entryRow) toDomain() domidx.Entry {
	return domidx.NewEntry(r.Name, r.ID, r.Version, r.MapReduce)
}

// statsRow is the stored form of an index stats record. Reduce fields are
// omitted for map-only indexes.
type statsRow struct {
	Name      string `json:"name"`
	ID        uint64 `json:"id"`
	MapReduce bool   `json:"map_reduce"`

	MapAttempts  int64 `json:"map_attempts"`
	MapSuccesses int64 `json:"map_successes"`
	MapErrors    int64 `json:"map_errors"`

	ReduceAttempts  *int64 `json:"reduce_attempts,omitempty"`
	ReduceSuccesses *int64 `json:"reduce_successes,omitempty"`
	ReduceErrors    *int64 `json:"reduce_errors,omitempty"`

	Priority   domidx.Priority `json:"priority"`
	TouchCount int64           `json:"touch_count"`

	CreatedTimestamp time.Time `json:"created_timestamp"`
	LastIndexingTime time.Time `json:"last_indexing_time"`

	LastIndexedEtag      etag.Etag `json:"last_indexed_etag"`
	LastIndexedTimestamp time.Time `json:"last_indexed_timestamp"`

	LastReducedEtag      *etag.Etag `json:"last_reduced_etag,omitempty"`
	LastReducedTimestamp *time.Time `json:"last_reduced_timestamp,omitempty"`
}

func statsToRow(s domidx.Stats) statsRow {
	return statsRow{
		Name:                 s.Name,
		ID:                   s.ID,
		MapReduce:            s.IsMapReduce,
		MapAttempts:          s.MapAttempts,
		MapSuccesses:         s.MapSuccesses,
		MapErrors:            s.MapErrors,
		ReduceAttempts:       s.ReduceAttempts,
		ReduceSuccesses:      s.ReduceSuccesses,
		ReduceErrors:         s.ReduceErrors,
		Priority:             s.Priority,
		TouchCount:           s.TouchCount,
		CreatedTimestamp:     s.CreatedTimestamp,
		LastIndexingTime:     s.LastIndexingTime,
		LastIndexedEtag:      s.LastIndexedEtag,
		LastIndexedTimestamp: s.LastIndexedTimestamp,
		LastReducedEtag:      s.LastReducedEtag,
		LastReducedTimestamp: s.LastReducedTimestamp,
	}
}

func (r statsRow) toDomain() domidx.Stats {
	return domidx.Stats{
		Name:                 r.Name,
		ID:                   r.ID,
		IsMapReduce:          r.MapReduce,
		MapAttempts:          r.MapAttempts,
		MapSuccesses:         r.MapSuccesses,
		MapErrors:            r.MapErrors,
		ReduceAttempts:       r.ReduceAttempts,
		ReduceSuccesses:      r.ReduceSuccesses,
		ReduceErrors:         r.ReduceErrors,
		Priority:             r.Priority,
		TouchCount:           r.TouchCount,
		CreatedTimestamp:     r.CreatedTimestamp,
		LastIndexingTime:     r.LastIndexingTime,
		LastIndexedEtag:      r.LastIndexedEtag,
		LastIndexedTimestamp: r.LastIndexedTimestamp,
		LastReducedEtag:      r.LastReducedEtag,
		LastReducedTimestamp: r.LastReducedTimestamp,
	}
}

func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return b, nil
}

func decodeEntry(b []byte) (domidx.Entry, error) {
	var r entryRow
	if err := json.Unmarshal(b, &r); err != nil {
		return domidx.Entry{}, fmt.Errorf("unmarshal entry: %w", err)
	}
	return r.toDomain(), nil
}

func decodeStats(b []byte) (domidx.Stats, error) {
	var r statsRow
	if err := json.Unmarshal(b, &r); err != nil {
		return domidx.Stats{}, fmt.Errorf("unmarshal stats: %w", err)
	}
	return r.toDomain(), nil
}

func decodeError(b []byte) (domidx.Error, error) {
	var e domidx.Error
	if err := json.Unmarshal(b, &e); err != nil {
		return domidx.Error{}, fmt.Errorf("unmarshal indexing error: %w", err)
	}
	return e, nil
}
