package reference

import (
	"bytes"
	"errors"
	"sort"
	"testing"

	"github.com/kailas-cloud/indexstore/internal/db"
)

// memStore is an in-memory store with injectable failures.
type memStore struct {
	tables map[db.Table]map[string][]byte

	getFn func(t db.Table, key []byte) error
	putFn func(t db.Table, key []byte) error
}

func newMemStore() *memStore {
	return &memStore{
		tables: make(map[db.Table]map[string][]byte),
	}
}

func (m *memStore) table(t db.Table) map[string][]byte {
	if m.tables[t] == nil {
		m.tables[t] = make(map[string][]byte)
	}
	return m.tables[t]
}

func (m *memStore) Get(t db.Table, key []byte) ([]byte, error) {
	if m.getFn != nil {
		if err := m.getFn(t, key); err != nil {
			return nil, err
		}
	}
	v, ok := m.table(t)[string(key)]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(v), nil
}

func (m *memStore) ForEach(t db.Table, prefix []byte, fn func(k, v []byte) error) error {
	keys := make([]string, 0, len(m.table(t)))
	for k := range m.table(t) {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), m.table(t)[k]); err != nil {
			if errors.Is(err, db.ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (m *memStore) Put(t db.Table, key, value []byte) error {
	if m.putFn != nil {
		if err := m.putFn(t, key); err != nil {
			return err
		}
	}
	m.table(t)[string(key)] = bytes.Clone(value)
	return nil
}

func (m *memStore) Delete(t db.Table, key []byte) error {
	delete(m.table(t), string(key))
	return nil
}

func (m *memStore) count(t db.Table) int { return len(m.table(t)) }

func newTestRepo(t *testing.T) (*Repo, *memStore) {
	t.Helper()
	ms := newMemStore()
	return New(ms), ms
}
