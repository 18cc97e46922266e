package index

import (
	"bytes"
	"fmt"

	"github.com/kailas-cloud/indexstore/internal/db"
	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
)

// AddIndexingErrors appends errs to the index's error log and drops the
// oldest entries beyond the configured limit. Zero timestamps are stamped
// with the batch time.
func (r *Repo) AddIndexingErrors(name string, errs []domidx.Error) error {
	if len(errs) == 0 {
		return nil
	}
	e, err := r.mustLookup(name)
	if err != nil {
		return err
	}

	for _, ie := range errs {
		if ie.Timestamp.IsZero() {
			ie.Timestamp = r.now
		}
		seq, err := r.store.NextSequence(db.TableIndexErrors)
		if err != nil {
			return fmt.Errorf("allocate error seq: %w", err)
		}
		b, err := encode(ie)
		if err != nil {
			return err
		}
		if err := r.store.Put(db.TableIndexErrors, errorKey(e.ID(), seq), b); err != nil {
			return fmt.Errorf("put error %s: %w", name, err)
		}
	}

	keys, err := r.errorKeys(e.ID())
	if err != nil {
		return err
	}
	for len(keys) > r.maxErrors {
		if err := r.store.Delete(db.TableIndexErrors, keys[0]); err != nil {
			return fmt.Errorf("trim errors %s: %w", name, err)
		}
		keys = keys[1:]
	}
	r.markChanged(e.Name())
	return nil
}

// IndexingErrors returns the index's error log, oldest first.
func (r *Repo) IndexingErrors(name string) ([]domidx.Error, error) {
	e, err := r.mustLookup(name)
	if err != nil {
		return nil, err
	}
	out := []domidx.Error{}
	err = r.store.ForEach(db.TableIndexErrors, errorPrefix(e.ID()), func(_, v []byte) error {
		ie, err := decodeError(v)
		if err != nil {
			return err
		}
		out = append(out, ie)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan errors %s: %w", name, err)
	}
	return out, nil
}

// errorKeys materializes the log keys of id so callers can delete them
// without mutating the table mid-scan.
func (r *Repo) errorKeys(id uint64) ([][]byte, error) {
	var keys [][]byte
	err := r.store.ForEach(db.TableIndexErrors, errorPrefix(id), func(k, _ []byte) error {
		keys = append(keys, bytes.Clone(k))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan errors: %w", err)
	}
	return keys, nil
}
