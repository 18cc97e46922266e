package storage

import (
	"context"
	"errors"

	"github.com/kailas-cloud/indexstore/internal/domain"
	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
)

// Single-operation helpers used by the admin and mirror use cases. Each one
// runs in its own View or Batch.

// ListStats returns every index in creation order.
func (s *Storage) ListStats(ctx context.Context) ([]domidx.Stats, error) {
	var out []domidx.Stats
	err := s.View(ctx, func(a *Accessor) error {
		var err error
		out, err = a.Indexing().IndexesStats()
		return err
	})
	return out, err
}

// Stats returns the stats record of name.
func (s *Storage) Stats(ctx context.Context, name string) (domidx.Stats, error) {
	var out domidx.Stats
	err := s.View(ctx, func(a *Accessor) error {
		var err error
		out, err = a.Indexing().IndexStats(name)
		return err
	})
	return out, err
}

// LookupStats splits names into the stats of live indexes and the names
// that no longer exist.
func (s *Storage) LookupStats(ctx context.Context, names []string) (found []domidx.Stats, missing []string, err error) {
	err = s.View(ctx, func(a *Accessor) error {
		for _, name := range names {
			st, err := a.Indexing().IndexStats(name)
			if errors.Is(err, domain.ErrIndexNotFound) {
				missing = append(missing, name)
				continue
			}
			if err != nil {
				return err
			}
			found = append(found, st)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return found, missing, nil
}

// FailureRate returns the failure-rate projection of name.
func (s *Storage) FailureRate(ctx context.Context, name string) (domidx.FailureRate, error) {
	var out domidx.FailureRate
	err := s.View(ctx, func(a *Accessor) error {
		var err error
		out, err = a.Indexing().FailureRate(name)
		return err
	})
	return out, err
}

// IndexingErrors returns the error log of name, oldest first.
func (s *Storage) IndexingErrors(ctx context.Context, name string) ([]domidx.Error, error) {
	var out []domidx.Error
	err := s.View(ctx, func(a *Accessor) error {
		var err error
		out, err = a.Indexing().IndexingErrors(name)
		return err
	})
	return out, err
}

// SetPriority overwrites the priority of name.
func (s *Storage) SetPriority(ctx context.Context, name string, p domidx.Priority) error {
	return s.Batch(ctx, func(a *Accessor) error {
		return a.Indexing().SetIndexPriority(name, p)
	})
}

// Touch bumps the touch count of name.
func (s *Storage) Touch(ctx context.Context, name string) error {
	return s.Batch(ctx, func(a *Accessor) error {
		return a.Indexing().TouchIndexEtag(name)
	})
}

// ReferencesFrom lists the documents key references.
func (s *Storage) ReferencesFrom(ctx context.Context, key string) ([]string, error) {
	var out []string
	err := s.View(ctx, func(a *Accessor) error {
		var err error
		out, err = drain(a.References().DocumentReferencesFrom(key))
		return err
	})
	return out, err
}

// ReferencedBy lists the documents referencing key.
func (s *Storage) ReferencedBy(ctx context.Context, key string) ([]string, error) {
	var out []string
	err := s.View(ctx, func(a *Accessor) error {
		var err error
		out, err = drain(a.References().DocumentsReferencing(key))
		return err
	})
	return out, err
}

// CountReferencing returns how many documents reference key.
func (s *Storage) CountReferencing(ctx context.Context, key string) (int64, error) {
	var out int64
	err := s.View(ctx, func(a *Accessor) error {
		var err error
		out, err = a.References().CountDocumentsReferencing(key)
		return err
	})
	return out, err
}

func drain(seq func(yield func(string, error) bool)) ([]string, error) {
	out := []string{}
	for k, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}
