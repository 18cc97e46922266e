package index

import domidx "github.com/kailas-cloud/indexstore/internal/domain/index"

// FailureRate returns the counters used for health decisions. Reduce fields
// are nil for map-only indexes.
func (r *Repo) FailureRate(name string) (domidx.FailureRate, error) {
	s, err := r.IndexStats(name)
	if err != nil {
		return domidx.FailureRate{}, err
	}
	return s.FailureRate(), nil
}
