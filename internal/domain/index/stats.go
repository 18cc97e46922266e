package index

import (
	"time"

	"github.com/kailas-cloud/indexstore/internal/domain/etag"
)

// Stats is the progress and health record of one index.
// Reduce fields are nil unless the index is map-reduce.
type Stats struct {
	Name        string
	ID          uint64
	IsMapReduce bool

	MapAttempts  int64
	MapSuccesses int64
	MapErrors    int64

	ReduceAttempts  *int64
	ReduceSuccesses *int64
	ReduceErrors    *int64

	Priority   Priority
	TouchCount int64

	CreatedTimestamp time.Time
	LastIndexingTime time.Time

	LastIndexedEtag      etag.Etag
	LastIndexedTimestamp time.Time

	LastReducedEtag      *etag.Etag
	LastReducedTimestamp *time.Time
}

// NewStats returns the default record for a freshly created index.
func NewStats(name string, id uint64, mapReduce bool, created time.Time) Stats {
	s := Stats{
		Name:             name,
		ID:               id,
		IsMapReduce:      mapReduce,
		Priority:         PriorityNormal,
		CreatedTimestamp: created,
		LastIndexingTime: created,
		LastIndexedEtag:  etag.Empty,
	}
	if mapReduce {
		var attempts, successes, errs int64
		reduced := etag.Empty
		var reducedAt time.Time
		s.ReduceAttempts = &attempts
		s.ReduceSuccesses = &successes
		s.ReduceErrors = &errs
		s.LastReducedEtag = &reduced
		s.LastReducedTimestamp = &reducedAt
	}
	return s
}

// ApplyMap adds the map-side counters of delta.
func (s *Stats) ApplyMap(delta WorkStats, now time.Time) {
	s.MapAttempts += delta.MapAttempts
	s.MapSuccesses += delta.MapSuccesses
	s.MapErrors += delta.MapErrors
	s.LastIndexingTime = now
}

// ApplyReduce adds the reduce-side counters of delta. No-op on map-only
// indexes.
func (s *Stats) ApplyReduce(delta WorkStats) {
	if !s.IsMapReduce {
		return
	}
	*s.ReduceAttempts += delta.ReduceAttempts
	*s.ReduceSuccesses += delta.ReduceSuccesses
	*s.ReduceErrors += delta.ReduceErrors
}

// SetLastReduced moves the reduce cursor. No-op on map-only indexes.
func (s *Stats) SetLastReduced(e etag.Etag, at time.Time) {
	if !s.IsMapReduce {
		return
	}
	s.LastReducedEtag = &e
	s.LastReducedTimestamp = &at
}

// FailureRate projects the counters used for health decisions.
func (s Stats) FailureRate() FailureRate {
	fr := FailureRate{
		Attempts:  s.MapAttempts,
		Errors:    s.MapErrors,
		Successes: s.MapSuccesses,
	}
	if s.IsMapReduce {
		fr.ReduceAttempts = ptr(*s.ReduceAttempts)
		fr.ReduceErrors = ptr(*s.ReduceErrors)
		fr.ReduceSuccesses = ptr(*s.ReduceSuccesses)
	}
	return fr
}

func ptr[T any](v T) *T { return &v }
