// Package index stores the index catalog, per-index stats and the indexing
// error log inside one engine transaction.
package index

import (
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/indexstore/internal/db"
	"github.com/kailas-cloud/indexstore/internal/domain"
	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
)

// DefaultMaxErrors is how many indexing errors are kept per index.
const DefaultMaxErrors = 50

// store is the consumer interface for index bookkeeping (ISP).
type store interface {
	Get(t db.Table, key []byte) ([]byte, error)
	ForEach(t db.Table, prefix []byte, fn func(k, v []byte) error) error
	Put(t db.Table, key, value []byte) error
	Delete(t db.Table, key []byte) error
	NextSequence(t db.Table) (uint64, error)
}

// Repo is bound to a single transaction. It is not safe for concurrent use.
type Repo struct {
	store     store
	now       time.Time
	maxErrors int

	// changed holds display names of indexes mutated through this repo,
	// keyed by normalized name.
	changed map[string]string
}

// New creates an index repository over tx. now is the batch timestamp.
func New(s store, now time.Time) *Repo {
	return &Repo{
		store:     s,
		now:       now,
		maxErrors: DefaultMaxErrors,
		changed:   make(map[string]string),
	}
}

// WithMaxErrors sets how many indexing errors are kept per index.
func (r *Repo) WithMaxErrors(n int) *Repo {
	if n > 0 {
		r.maxErrors = n
	}
	return r
}

// Changed returns the names of indexes created, mutated or deleted so far.
func (r *Repo) Changed() []string {
	names := make([]string, 0, len(r.changed))
	for _, name := range r.changed {
		names = append(names, name)
	}
	return names
}

func (r *Repo) markChanged(name string) {
	r.changed[domidx.NormalizeName(name)] = name
}

// --- Catalog ---

// AddIndex creates an index. It never checks versions: an existing name is a
// caller error reported as *domain.DuplicateIndexError.
func (r *Repo) AddIndex(name string, mapReduce bool) error {
	if err := domidx.ValidateName(name); err != nil {
		return err
	}
	current, found, err := r.lookup(name)
	if err != nil {
		return err
	}
	if found {
		return &domain.DuplicateIndexError{Name: current.Name()}
	}
	return r.create(name, mapReduce, 0)
}

// AddIndexVersioned creates (or recreates) an index if the version the
// caller observed still matches the stored one. 0 means "absent". On a
// mismatch it returns *domain.ConcurrencyError.
func (r *Repo) AddIndexVersioned(name string, mapReduce bool, expectedVersion uint64) error {
	if err := domidx.ValidateName(name); err != nil {
		return err
	}
	current, found, err := r.lookup(name)
	if err != nil {
		return err
	}
	var actual uint64
	if found {
		actual = current.Version()
	}
	if actual != expectedVersion {
		return &domain.ConcurrencyError{Name: name, Expected: expectedVersion, Actual: actual}
	}
	if found {
		if err := r.purge(current); err != nil {
			return err
		}
	}
	return r.create(name, mapReduce, actual)
}

func (r *Repo) create(name string, mapReduce bool, previousVersion uint64) error {
	id, err := r.store.NextSequence(db.TableIndexes)
	if err != nil {
		return fmt.Errorf("allocate index id: %w", err)
	}

	entry := domidx.NewEntry(name, id, previousVersion+1, mapReduce)
	if err := r.putEntry(entry); err != nil {
		return err
	}
	if err := r.putStats(domidx.NewStats(name, id, mapReduce, r.now)); err != nil {
		return err
	}
	r.markChanged(name)
	return nil
}

// IndexVersion returns the stored version of name, 0 if absent.
func (r *Repo) IndexVersion(name string) (uint64, error) {
	e, found, err := r.lookup(name)
	if err != nil || !found {
		return 0, err
	}
	return e.Version(), nil
}

// IndexEntry returns the catalog entry for name.
func (r *Repo) IndexEntry(name string) (domidx.Entry, error) {
	return r.mustLookup(name)
}

// DeleteIndex removes the entry, its stats and its error log. Reference
// graph edges are left to the caller. Deleting an absent name is a no-op.
func (r *Repo) DeleteIndex(name string) error {
	e, found, err := r.lookup(name)
	if err != nil || !found {
		return err
	}
	if err := r.store.Delete(db.TableIndexes, entryKey(name)); err != nil {
		return fmt.Errorf("delete index %s: %w", name, err)
	}
	if err := r.purge(e); err != nil {
		return err
	}
	r.markChanged(e.Name())
	return nil
}

// purge drops the stats record and error log that belong to e.
func (r *Repo) purge(e domidx.Entry) error {
	if err := r.store.Delete(db.TableIndexStats, statsKey(e.ID())); err != nil {
		return fmt.Errorf("delete stats %s: %w", e.Name(), err)
	}
	keys, err := r.errorKeys(e.ID())
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := r.store.Delete(db.TableIndexErrors, k); err != nil {
			return fmt.Errorf("delete errors %s: %w", e.Name(), err)
		}
	}
	return nil
}

// IndexesStats returns every live index in creation order.
func (r *Repo) IndexesStats() ([]domidx.Stats, error) {
	out := []domidx.Stats{}
	err := r.store.ForEach(db.TableIndexStats, nil, func(_, v []byte) error {
		s, err := decodeStats(v)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan stats: %w", err)
	}
	return out, nil
}

// IndexStats returns the stats record of name.
func (r *Repo) IndexStats(name string) (domidx.Stats, error) {
	e, err := r.mustLookup(name)
	if err != nil {
		return domidx.Stats{}, err
	}
	return r.stats(e)
}

// --- helpers ---

func (r *Repo) lookup(name string) (domidx.Entry, bool, error) {
	b, err := r.store.Get(db.TableIndexes, entryKey(name))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domidx.Entry{}, false, nil
		}
		return domidx.Entry{}, false, fmt.Errorf("get index %s: %w", name, err)
	}
	e, err := decodeEntry(b)
	if err != nil {
		return domidx.Entry{}, false, fmt.Errorf("index %s: %w", name, err)
	}
	return e, true, nil
}

func (r *Repo) mustLookup(name string) (domidx.Entry, error) {
	e, found, err := r.lookup(name)
	if err != nil {
		return domidx.Entry{}, err
	}
	if !found {
		return domidx.Entry{}, domain.NewIndexNotFound(name)
	}
	return e, nil
}

func (r *Repo) putEntry(e domidx.Entry) error {
	b, err := encode(entryToRow(e))
	if err != nil {
		return err
	}
	if err := r.store.Put(db.TableIndexes, entryKey(e.Name()), b); err != nil {
		return fmt.Errorf("put index %s: %w", e.Name(), err)
	}
	return nil
}

func (r *Repo) stats(e domidx.Entry) (domidx.Stats, error) {
	b, err := r.store.Get(db.TableIndexStats, statsKey(e.ID()))
	if err != nil {
		return domidx.Stats{}, fmt.Errorf("get stats %s: %w", e.Name(), err)
	}
	s, err := decodeStats(b)
	if err != nil {
		return domidx.Stats{}, fmt.Errorf("stats %s: %w", e.Name(), err)
	}
	return s, nil
}

func (r *Repo) putStats(s domidx.Stats) error {
	b, err := encode(statsToRow(s))
	if err != nil {
		return err
	}
	if err := r.store.Put(db.TableIndexStats, statsKey(s.ID), b); err != nil {
		return fmt.Errorf("put stats %s: %w", s.Name, err)
	}
	return nil
}
