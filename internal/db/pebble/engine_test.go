package pebble

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/indexstore/internal/db"
	"github.com/kailas-cloud/indexstore/internal/db/dbtest"
)

// MustOpenMem returns an in-memory engine. Fatal on error.
func MustOpenMem(tb testing.TB) *Engine {
	tb.Helper()
	e, err := Open(Config{InMemory: true, Logger: zap.NewNop()})
	if err != nil {
		tb.Fatal(err)
	}
	return e
}

func TestEngineSuite(t *testing.T) {
	dbtest.Run(t, func(tb testing.TB) db.Engine { return MustOpenMem(tb) })
}

func TestEngineSuite_Disk(t *testing.T) {
	dbtest.Run(t, func(tb testing.TB) db.Engine {
		e, err := Open(Config{Path: filepath.Join(tb.TempDir(), "pebble"), Sync: true})
		if err != nil {
			tb.Fatal(err)
		}
		return e
	})
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpOpen {
		t.Fatalf("expected OPEN error, got %v", err)
	}
}

func TestUpperBound(t *testing.T) {
	tests := []struct {
		name   string
		prefix []byte
		want   []byte
	}{
		{"simple", []byte("ab"), []byte("ac")},
		{"carry", []byte{'a', 0xff}, []byte{'b'}},
		{"all ff", []byte{0xff, 0xff}, nil},
		{"empty", nil, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := upperBound(tc.prefix); !bytes.Equal(got, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestSequenceOutsideTables(t *testing.T) {
	e := MustOpenMem(t)
	defer e.Close() //nolint:errcheck // test cleanup

	tx := dbtest.MustBegin(t, e, true)
	if _, err := tx.NextSequence(db.TableIndexes); err != nil {
		t.Fatalf("sequence: %v", err)
	}

	var n int
	for _, table := range db.Tables {
		err := tx.ForEach(table, nil, func(_, _ []byte) error {
			n++
			return nil
		})
		if err != nil {
			t.Fatalf("foreach %s: %v", table, err)
		}
	}
	if n != 0 {
		t.Errorf("expected sequence key to be invisible to table scans, saw %d keys", n)
	}
	dbtest.MustCommit(t, tx)
}
