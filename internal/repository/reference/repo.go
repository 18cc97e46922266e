// Package reference maintains the document reference graph: which documents
// a document references, and which documents reference it, scoped per view.
//
// Both directions and the per-target counter are mutated together in the
// caller's transaction, so they are always in lock-step.
package reference

import (
	"errors"
	"fmt"
	"iter"

	"github.com/kailas-cloud/indexstore/internal/db"
	"github.com/kailas-cloud/indexstore/internal/domain"
)

// store is the consumer interface for graph operations (ISP).
type store interface {
	Get(t db.Table, key []byte) ([]byte, error)
	ForEach(t db.Table, prefix []byte, fn func(k, v []byte) error) error
	Put(t db.Table, key, value []byte) error
	Delete(t db.Table, key []byte) error
}

// Repo is bound to a single transaction. It is not safe for concurrent use.
type Repo struct {
	store store
}

// New creates a reference graph repository over tx.
func New(s store) *Repo {
	return &Repo{store: s}
}

// UpdateDocumentReferences replaces the set of documents from references
// within view. Only the difference against the stored set is written; an
// empty refs removes every edge of (view, from).
func (r *Repo) UpdateDocumentReferences(view, from string, refs []string) error {
	if from == "" {
		return fmt.Errorf("%w: from is required", domain.ErrInvalidDocumentKey)
	}
	wanted := make(map[string]struct{}, len(refs))
	for _, to := range refs {
		if to == "" {
			return fmt.Errorf("%w: empty reference from %s", domain.ErrInvalidDocumentKey, from)
		}
		wanted[to] = struct{}{}
	}

	existing, err := r.viewTargets(from, view)
	if err != nil {
		return err
	}

	for to := range existing {
		if _, keep := wanted[to]; keep {
			continue
		}
		if err := r.removeEdge(view, from, to); err != nil {
			return err
		}
	}
	for to := range wanted {
		if _, have := existing[to]; have {
			continue
		}
		if err := r.addEdge(view, from, to); err != nil {
			return err
		}
	}

	switch {
	case len(wanted) == 0 && len(existing) > 0:
		if err := r.store.Delete(db.TableReferencesByView, byViewKey(view, from)); err != nil {
			return fmt.Errorf("delete view marker: %w", err)
		}
	case len(wanted) > 0 && len(existing) == 0:
		if err := r.store.Put(db.TableReferencesByView, byViewKey(view, from), nil); err != nil {
			return fmt.Errorf("put view marker: %w", err)
		}
	}
	return nil
}

// DocumentReferencesFrom yields every distinct document from references, in
// any view. The sequence is lazy and can be ranged over again. The table
// must not be mutated while ranging.
func (r *Repo) DocumentReferencesFrom(from string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		seen := make(map[string]struct{})
		err := r.store.ForEach(db.TableReferencesForward, forwardPrefix(from), func(k, _ []byte) error {
			_, to, err := decodeForward(k)
			if err != nil {
				return err
			}
			if _, dup := seen[to]; dup {
				return nil
			}
			seen[to] = struct{}{}
			if !yield(to, nil) {
				return db.ErrStop
			}
			return nil
		})
		if err != nil {
			yield("", fmt.Errorf("scan references from %s: %w", from, err))
		}
	}
}

// DocumentsReferencing yields every distinct document that references to,
// in any view. Same laziness rules as DocumentReferencesFrom.
func (r *Repo) DocumentsReferencing(to string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := r.store.ForEach(db.TableReferencesReverse, reversePrefix(to), func(k, _ []byte) error {
			from, err := decodeSecond(k)
			if err != nil {
				return err
			}
			if !yield(from, nil) {
				return db.ErrStop
			}
			return nil
		})
		if err != nil {
			yield("", fmt.Errorf("scan references to %s: %w", to, err))
		}
	}
}

// CountDocumentsReferencing returns the number of distinct documents that
// reference to. It is a single point read.
func (r *Repo) CountDocumentsReferencing(to string) (int64, error) {
	n, err := r.count(to)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// RemoveAllDocumentReferencesFrom drops every edge from references, in all
// views, in both directions.
func (r *Repo) RemoveAllDocumentReferencesFrom(from string) error {
	type edge struct{ view, to string }
	var edges []edge
	err := r.store.ForEach(db.TableReferencesForward, forwardPrefix(from), func(k, _ []byte) error {
		view, to, err := decodeForward(k)
		if err != nil {
			return err
		}
		edges = append(edges, edge{view: view, to: to})
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan references from %s: %w", from, err)
	}

	views := make(map[string]struct{})
	for _, e := range edges {
		if err := r.removeEdge(e.view, from, e.to); err != nil {
			return err
		}
		views[e.view] = struct{}{}
	}
	for view := range views {
		if err := r.store.Delete(db.TableReferencesByView, byViewKey(view, from)); err != nil {
			return fmt.Errorf("delete view marker: %w", err)
		}
	}
	return nil
}

// RemoveViewReferences drops every edge recorded for view and returns how
// many edges were removed. DeleteIndex does not call this; the execution
// engine prunes views explicitly.
func (r *Repo) RemoveViewReferences(view string) (int, error) {
	var froms []string
	err := r.store.ForEach(db.TableReferencesByView, byViewPrefix(view), func(k, _ []byte) error {
		from, err := decodeSecond(k)
		if err != nil {
			return err
		}
		froms = append(froms, from)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan view %s: %w", view, err)
	}

	var removed int
	for _, from := range froms {
		targets, err := r.viewTargets(from, view)
		if err != nil {
			return removed, err
		}
		for to := range targets {
			if err := r.removeEdge(view, from, to); err != nil {
				return removed, err
			}
			removed++
		}
		if err := r.store.Delete(db.TableReferencesByView, byViewKey(view, from)); err != nil {
			return removed, fmt.Errorf("delete view marker: %w", err)
		}
	}
	return removed, nil
}

// viewTargets returns the stored references of (view, from).
func (r *Repo) viewTargets(from, view string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	err := r.store.ForEach(db.TableReferencesForward, forwardViewPrefix(from, view), func(k, _ []byte) error {
		_, to, err := decodeForward(k)
		if err != nil {
			return err
		}
		out[to] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan references %s/%s: %w", view, from, err)
	}
	return out, nil
}

func (r *Repo) addEdge(view, from, to string) error {
	if err := r.store.Put(db.TableReferencesForward, forwardKey(from, view, to), nil); err != nil {
		return fmt.Errorf("put forward edge: %w", err)
	}

	views, err := r.viewCount(to, from)
	if err != nil {
		return err
	}
	if views == 0 {
		if err := r.adjustCount(to, 1); err != nil {
			return err
		}
	}
	if err := r.store.Put(db.TableReferencesReverse, reverseKey(to, from), encodeViewCount(views+1)); err != nil {
		return fmt.Errorf("put reverse edge: %w", err)
	}
	return nil
}

func (r *Repo) removeEdge(view, from, to string) error {
	if err := r.store.Delete(db.TableReferencesForward, forwardKey(from, view, to)); err != nil {
		return fmt.Errorf("delete forward edge: %w", err)
	}

	views, err := r.viewCount(to, from)
	if err != nil {
		return err
	}
	switch {
	case views > 1:
		if err := r.store.Put(db.TableReferencesReverse, reverseKey(to, from), encodeViewCount(views-1)); err != nil {
			return fmt.Errorf("put reverse edge: %w", err)
		}
	case views == 1:
		if err := r.store.Delete(db.TableReferencesReverse, reverseKey(to, from)); err != nil {
			return fmt.Errorf("delete reverse edge: %w", err)
		}
		if err := r.adjustCount(to, -1); err != nil {
			return err
		}
	}
	return nil
}

// viewCount returns in how many views from references to, 0 if none.
func (r *Repo) viewCount(to, from string) (uint64, error) {
	b, err := r.store.Get(db.TableReferencesReverse, reverseKey(to, from))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get reverse edge: %w", err)
	}
	return decodeViewCount(b)
}

func (r *Repo) count(to string) (uint64, error) {
	b, err := r.store.Get(db.TableReferencesCount, countKey(to))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get reference count %s: %w", to, err)
	}
	return decodeCount(b)
}

func (r *Repo) adjustCount(to string, delta int) error {
	n, err := r.count(to)
	if err != nil {
		return err
	}
	switch {
	case delta > 0:
		n++
	case n > 0:
		n--
	}
	if n == 0 {
		if err := r.store.Delete(db.TableReferencesCount, countKey(to)); err != nil {
			return fmt.Errorf("delete reference count %s: %w", to, err)
		}
		return nil
	}
	if err := r.store.Put(db.TableReferencesCount, countKey(to), encodeCount(n)); err != nil {
		return fmt.Errorf("put reference count %s: %w", to, err)
	}
	return nil
}
