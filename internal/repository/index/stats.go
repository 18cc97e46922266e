package index

import (
	"time"

	"github.com/kailas-cloud/indexstore/internal/domain/etag"
	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
)

// SetIndexPriority overwrites the priority and bumps the catalog version.
func (r *Repo) SetIndexPriority(name string, p domidx.Priority) error {
	parsed, err := domidx.ParsePriority(string(p))
	if err != nil {
		return err
	}
	return r.updateStats(name, true, func(s *domidx.Stats) {
		s.Priority = parsed
	})
}

// UpdateIndexingStats adds the map-side counters of delta and refreshes the
// last indexing time. Reduce counters are untouched.
func (r *Repo) UpdateIndexingStats(name string, delta domidx.WorkStats) error {
	if err := delta.Validate(); err != nil {
		return err
	}
	return r.updateStats(name, false, func(s *domidx.Stats) {
		s.ApplyMap(delta, r.now)
	})
}

// UpdateReduceStats adds the reduce-side counters of delta. Accepted and
// ignored for map-only indexes.
func (r *Repo) UpdateReduceStats(name string, delta domidx.WorkStats) error {
	if err := delta.Validate(); err != nil {
		return err
	}
	return r.updateStats(name, false, func(s *domidx.Stats) {
		s.ApplyReduce(delta)
	})
}

// UpdateLastIndexed moves the map progress cursor. Monotonicity is the
// caller's responsibility.
func (r *Repo) UpdateLastIndexed(name string, e etag.Etag, at time.Time) error {
	return r.updateStats(name, false, func(s *domidx.Stats) {
		s.LastIndexedEtag = e
		s.LastIndexedTimestamp = at
	})
}

// UpdateLastReduced moves the reduce progress cursor on map-reduce indexes.
func (r *Repo) UpdateLastReduced(name string, e etag.Etag, at time.Time) error {
	return r.updateStats(name, false, func(s *domidx.Stats) {
		s.SetLastReduced(e, at)
	})
}

// TouchIndexEtag increments the touch count by one and bumps the catalog
// version. Progress cursors are left alone.
func (r *Repo) TouchIndexEtag(name string) error {
	return r.updateStats(name, true, func(s *domidx.Stats) {
		s.TouchCount++
	})
}

func (r *Repo) updateStats(name string, bumpVersion bool, fn func(*domidx.Stats)) error {
	e, err := r.mustLookup(name)
	if err != nil {
		return err
	}
	s, err := r.stats(e)
	if err != nil {
		return err
	}
	fn(&s)
	if err := r.putStats(s); err != nil {
		return err
	}
	if bumpVersion {
		if err := r.putEntry(e.WithVersion(e.Version() + 1)); err != nil {
			return err
		}
	}
	r.markChanged(e.Name())
	return nil
}
