// Package dbtest holds a behavioural suite every db.Engine must pass.
package dbtest

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/indexstore/internal/db"
)

// OpenFunc returns a fresh, empty engine. The suite closes it.
type OpenFunc func(tb testing.TB) db.Engine

// MustBegin starts a transaction. Fatal on error.
func MustBegin(tb testing.TB, e db.Engine, writable bool) db.Tx {
	tb.Helper()
	tx, err := e.Begin(context.Background(), writable)
	if err != nil {
		tb.Fatalf("begin: %v", err)
	}
	return tx
}

// MustCommit commits tx. Fatal on error.
func MustCommit(tb testing.TB, tx db.Tx) {
	tb.Helper()
	if err := tx.Commit(); err != nil {
		tb.Fatalf("commit: %v", err)
	}
}

// Run executes the engine suite.
func Run(t *testing.T, open OpenFunc) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, e db.Engine)
	}{
		{"PutGetCommit", testPutGetCommit},
		{"GetMissing", testGetMissing},
		{"ReadYourWrites", testReadYourWrites},
		{"Rollback", testRollback},
		{"ReadOnlyRejectsWrites", testReadOnlyRejectsWrites},
		{"UseAfterClose", testUseAfterClose},
		{"ForEachPrefixOrder", testForEachPrefixOrder},
		{"ForEachStop", testForEachStop},
		{"TablesIsolated", testTablesIsolated},
		{"DeleteAbsent", testDeleteAbsent},
		{"Sequence", testSequence},
		{"SnapshotIsolation", testSnapshotIsolation},
		{"Ping", testPing},
		{"CancelledContext", testCancelledContext},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := open(t)
			defer func() {
				if err := e.Close(); err != nil {
					t.Errorf("close: %v", err)
				}
			}()
			tc.fn(t, e)
		})
	}
}

func testPutGetCommit(t *testing.T, e db.Engine) {
	tx := MustBegin(t, e, true)
	if err := tx.Put(db.TableIndexes, []byte("a"), []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	MustCommit(t, tx)

	rtx := MustBegin(t, e, false)
	defer rtx.Rollback() //nolint:errcheck // read-only
	v, err := rtx.Get(db.TableIndexes, []byte("a"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(v) != "1" {
		t.Errorf("expected 1, got %q", v)
	}
}

func testGetMissing(t *testing.T, e db.Engine) {
	tx := MustBegin(t, e, false)
	defer tx.Rollback() //nolint:errcheck // read-only
	if _, err := tx.Get(db.TableIndexes, []byte("missing")); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func testReadYourWrites(t *testing.T, e db.Engine) {
	tx := MustBegin(t, e, true)
	defer tx.Rollback() //nolint:errcheck // discarded

	if err := tx.Put(db.TableIndexStats, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, err := tx.Get(db.TableIndexStats, []byte("k"))
	if err != nil || string(v) != "v" {
		t.Fatalf("expected own write, got %q, %v", v, err)
	}

	var seen int
	err = tx.ForEach(db.TableIndexStats, nil, func(_, _ []byte) error {
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("foreach: %v", err)
	}
	if seen != 1 {
		t.Errorf("expected scan to see 1 pending key, saw %d", seen)
	}

	if err := tx.Delete(db.TableIndexStats, []byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := tx.Get(db.TableIndexStats, []byte("k")); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected deleted key to be gone, got %v", err)
	}
}

func testRollback(t *testing.T, e db.Engine) {
	tx := MustBegin(t, e, true)
	if err := tx.Put(db.TableIndexes, []byte("a"), []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := tx.NextSequence(db.TableIndexes); err != nil {
		t.Fatalf("sequence: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	rtx := MustBegin(t, e, false)
	defer rtx.Rollback() //nolint:errcheck // read-only
	if _, err := rtx.Get(db.TableIndexes, []byte("a")); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected rolled back key to be absent, got %v", err)
	}

	// The writer lock must have been released.
	wtx := MustBegin(t, e, true)
	seq, err := wtx.NextSequence(db.TableIndexes)
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	if seq != 1 {
		t.Errorf("expected rolled back sequence to restart at 1, got %d", seq)
	}
	MustCommit(t, wtx)
}

func testReadOnlyRejectsWrites(t *testing.T, e db.Engine) {
	tx := MustBegin(t, e, false)
	defer tx.Rollback() //nolint:errcheck // read-only

	if tx.Writable() {
		t.Fatal("expected read-only transaction")
	}
	if err := tx.Put(db.TableIndexes, []byte("a"), nil); !errors.Is(err, db.ErrTxNotWritable) {
		t.Errorf("put: expected ErrTxNotWritable, got %v", err)
	}
	if err := tx.Delete(db.TableIndexes, []byte("a")); !errors.Is(err, db.ErrTxNotWritable) {
		t.Errorf("delete: expected ErrTxNotWritable, got %v", err)
	}
	if _, err := tx.NextSequence(db.TableIndexes); !errors.Is(err, db.ErrTxNotWritable) {
		t.Errorf("sequence: expected ErrTxNotWritable, got %v", err)
	}
}

func testUseAfterClose(t *testing.T, e db.Engine) {
	tx := MustBegin(t, e, true)
	MustCommit(t, tx)

	if _, err := tx.Get(db.TableIndexes, []byte("a")); !errors.Is(err, db.ErrTxClosed) {
		t.Errorf("get: expected ErrTxClosed, got %v", err)
	}
	if err := tx.Put(db.TableIndexes, []byte("a"), nil); !errors.Is(err, db.ErrTxClosed) {
		t.Errorf("put: expected ErrTxClosed, got %v", err)
	}
	if err := tx.Commit(); !errors.Is(err, db.ErrTxClosed) {
		t.Errorf("commit: expected ErrTxClosed, got %v", err)
	}
	if err := tx.Rollback(); !errors.Is(err, db.ErrTxClosed) {
		t.Errorf("rollback: expected ErrTxClosed, got %v", err)
	}
}

func testForEachPrefixOrder(t *testing.T, e db.Engine) {
	tx := MustBegin(t, e, true)
	keys := []db.Key{
		db.NewKey().Str("b").Str("2"),
		db.NewKey().Str("a").Str("z"),
		db.NewKey().Str("b").Str("1"),
		db.NewKey().Str("b\x00").Str("1"),
		db.NewKey().Str("c").Str("1"),
	}
	for _, k := range keys {
		if err := tx.Put(db.TableReferencesForward, k.Bytes(), nil); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	MustCommit(t, tx)

	rtx := MustBegin(t, e, false)
	defer rtx.Rollback() //nolint:errcheck // read-only

	var got []string
	err := rtx.ForEach(db.TableReferencesForward, db.NewKey().Str("b").Bytes(), func(k, _ []byte) error {
		d := db.DecodeKey(k)
		if _, err := d.Str(); err != nil {
			return err
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		got = append(got, s)
		return nil
	})
	if err != nil {
		t.Fatalf("foreach: %v", err)
	}
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("expected [1 2], got %v", got)
	}
}

func testForEachStop(t *testing.T, e db.Engine) {
	tx := MustBegin(t, e, true)
	for _, k := range []string{"a", "b", "c"} {
		if err := tx.Put(db.TableIndexes, []byte(k), nil); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	var seen int
	err := tx.ForEach(db.TableIndexes, nil, func(_, _ []byte) error {
		seen++
		return db.ErrStop
	})
	if err != nil {
		t.Fatalf("expected nil after ErrStop, got %v", err)
	}
	if seen != 1 {
		t.Errorf("expected 1 callback, got %d", seen)
	}

	boom := errors.New("boom")
	err = tx.ForEach(db.TableIndexes, nil, func(_, _ []byte) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected callback error to propagate, got %v", err)
	}
	MustCommit(t, tx)
}

func testTablesIsolated(t *testing.T, e db.Engine) {
	tx := MustBegin(t, e, true)
	if err := tx.Put(db.TableIndexes, []byte("k"), []byte("indexes")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := tx.Put(db.TableIndexStats, []byte("k"), []byte("stats")); err != nil {
		t.Fatalf("put: %v", err)
	}
	MustCommit(t, tx)

	rtx := MustBegin(t, e, false)
	defer rtx.Rollback() //nolint:errcheck // read-only

	var n int
	err := rtx.ForEach(db.TableIndexes, nil, func(_, v []byte) error {
		n++
		if string(v) != "indexes" {
			t.Errorf("scan leaked value %q from another table", v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("foreach: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 key, got %d", n)
	}
}

func testDeleteAbsent(t *testing.T, e db.Engine) {
	tx := MustBegin(t, e, true)
	if err := tx.Delete(db.TableIndexes, []byte("nope")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	MustCommit(t, tx)
}

func testSequence(t *testing.T, e db.Engine) {
	tx := MustBegin(t, e, true)
	for want := uint64(1); want <= 3; want++ {
		got, err := tx.NextSequence(db.TableIndexes)
		if err != nil {
			t.Fatalf("sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}
	other, err := tx.NextSequence(db.TableIndexErrors)
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	if other != 1 {
		t.Errorf("expected independent sequence per table, got %d", other)
	}
	MustCommit(t, tx)

	tx = MustBegin(t, e, true)
	got, err := tx.NextSequence(db.TableIndexes)
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	if got != 4 {
		t.Errorf("expected sequence to survive commit, got %d", got)
	}
	MustCommit(t, tx)
}

func testSnapshotIsolation(t *testing.T, e db.Engine) {
	tx := MustBegin(t, e, true)
	if err := tx.Put(db.TableIndexes, []byte("a"), []byte("old")); err != nil {
		t.Fatalf("put: %v", err)
	}
	MustCommit(t, tx)

	rtx := MustBegin(t, e, false)
	defer rtx.Rollback() //nolint:errcheck // read-only

	done := make(chan error, 1)
	go func() {
		wtx, err := e.Begin(context.Background(), true)
		if err != nil {
			done <- err
			return
		}
		if err := wtx.Put(db.TableIndexes, []byte("a"), []byte("new")); err != nil {
			_ = wtx.Rollback()
			done <- err
			return
		}
		done <- wtx.Commit()
	}()
	if err := <-done; err != nil {
		t.Fatalf("concurrent writer: %v", err)
	}

	v, err := rtx.Get(db.TableIndexes, []byte("a"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(v) != "old" {
		t.Errorf("expected snapshot to keep old value, got %q", v)
	}
}

func testPing(t *testing.T, e db.Engine) {
	if err := e.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if e.Name() == "" {
		t.Error("expected engine name")
	}
}

func testCancelledContext(t *testing.T, e db.Engine) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Begin(ctx, true); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// The writer slot must still be free.
	MustCommit(t, MustBegin(t, e, true))
}
