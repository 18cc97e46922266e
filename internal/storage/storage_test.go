package storage

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/indexstore/internal/db"
	"github.com/kailas-cloud/indexstore/internal/db/bolt"
	"github.com/kailas-cloud/indexstore/internal/db/pebble"
	"github.com/kailas-cloud/indexstore/internal/domain"
	"github.com/kailas-cloud/indexstore/internal/domain/etag"
	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
	"github.com/kailas-cloud/indexstore/internal/metrics"
)

var testNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type engineCase struct {
	name string
	open func(t *testing.T) db.Engine
}

var engines = []engineCase{
	{"bolt", func(t *testing.T) db.Engine {
		t.Helper()
		e, err := bolt.Open(bolt.Config{Path: filepath.Join(t.TempDir(), "index.bolt")})
		if err != nil {
			t.Fatalf("open bolt: %v", err)
		}
		return e
	}},
	{"pebble", func(t *testing.T) db.Engine {
		t.Helper()
		e, err := pebble.Open(pebble.Config{InMemory: true})
		if err != nil {
			t.Fatalf("open pebble: %v", err)
		}
		return e
	}},
}

// forEachEngine runs fn once per engine with a fresh Storage.
func forEachEngine(t *testing.T, fn func(t *testing.T, s *Storage)) {
	t.Helper()
	for _, ec := range engines {
		t.Run(ec.name, func(t *testing.T) {
			e := ec.open(t)
			t.Cleanup(func() { _ = e.Close() })
			fn(t, New(e, nil).WithClock(func() time.Time { return testNow }))
		})
	}
}

func mustBatch(t *testing.T, s *Storage, fn func(*Accessor) error) {
	t.Helper()
	if err := s.Batch(context.Background(), fn); err != nil {
		t.Fatalf("batch: %v", err)
	}
}

func mustView(t *testing.T, s *Storage, fn func(*Accessor) error) {
	t.Helper()
	if err := s.View(context.Background(), fn); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func collect(t *testing.T, seq func(yield func(string, error) bool)) []string {
	t.Helper()
	var out []string
	for k, err := range seq {
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// --- Catalog ---

func TestIndexCreation(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().AddIndex("index1", false) })
		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().AddIndex("index2", true) })

		mustView(t, s, func(a *Accessor) error {
			stats, err := a.Indexing().IndexesStats()
			if err != nil {
				return err
			}
			if len(stats) != 2 {
				t.Fatalf("expected 2 indexes, got %d", len(stats))
			}
			if stats[0].Name != "index1" || stats[0].IsMapReduce {
				t.Errorf("unexpected first index %+v", stats[0])
			}
			if stats[1].Name != "index2" || !stats[1].IsMapReduce {
				t.Errorf("unexpected second index %+v", stats[1])
			}
			return nil
		})
	})
}

func TestCannotAddDuplicateIndex(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().AddIndex("index1", false) })

		err := s.Batch(context.Background(), func(a *Accessor) error {
			return a.Indexing().AddIndex("index1", false)
		})
		var dup *domain.DuplicateIndexError
		if !errors.As(err, &dup) {
			t.Fatalf("expected DuplicateIndexError, got %v", err)
		}
		if got, want := err.Error(), "there is already an index with the name: 'index1'"; got != want {
			t.Errorf("expected %q, got %q", want, got)
		}

		err = s.Batch(context.Background(), func(a *Accessor) error {
			return a.Indexing().AddIndex("INDEX1", false)
		})
		if !errors.Is(err, domain.ErrDuplicateIndex) {
			t.Errorf("expected case-insensitive duplicate, got %v", err)
		}
	})
}

func TestAddIndexVersioned_StaleObservation(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		var first, second uint64
		mustView(t, s, func(a *Accessor) error {
			var err error
			first, err = a.Indexing().IndexVersion("index2")
			return err
		})
		mustView(t, s, func(a *Accessor) error {
			var err error
			second, err = a.Indexing().IndexVersion("index2")
			return err
		})

		mustBatch(t, s, func(a *Accessor) error {
			return a.Indexing().AddIndexVersioned("index2", false, first)
		})

		err := s.Batch(context.Background(), func(a *Accessor) error {
			return a.Indexing().AddIndexVersioned("index2", false, second)
		})
		var ce *domain.ConcurrencyError
		if !errors.As(err, &ce) {
			t.Fatalf("expected ConcurrencyError, got %v", err)
		}
		if ce.Expected != 0 || ce.Actual != 1 {
			t.Errorf("expected 0/1, got %d/%d", ce.Expected, ce.Actual)
		}
		if !domain.IsRetryable(err) {
			t.Error("expected conflict to be retryable")
		}
	})
}

func TestAddIndexVersioned_Recreate(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		var id uint64
		mustBatch(t, s, func(a *Accessor) error {
			if err := a.Indexing().AddIndex("index1", false); err != nil {
				return err
			}
			if err := a.Indexing().UpdateIndexingStats("index1", domidx.WorkStats{MapAttempts: 3}); err != nil {
				return err
			}
			e, err := a.Indexing().IndexEntry("index1")
			id = e.ID()
			return err
		})

		mustBatch(t, s, func(a *Accessor) error {
			return a.Indexing().AddIndexVersioned("index1", true, 1)
		})

		mustView(t, s, func(a *Accessor) error {
			e, err := a.Indexing().IndexEntry("index1")
			if err != nil {
				return err
			}
			if e.Version() != 2 || e.ID() == id || !e.IsMapReduce() {
				t.Errorf("unexpected entry after recreate: v%d id %d mr %v", e.Version(), e.ID(), e.IsMapReduce())
			}
			st, err := a.Indexing().IndexStats("index1")
			if err != nil {
				return err
			}
			if st.MapAttempts != 0 {
				t.Errorf("expected fresh stats, got %d attempts", st.MapAttempts)
			}
			all, err := a.Indexing().IndexesStats()
			if err != nil {
				return err
			}
			if len(all) != 1 {
				t.Errorf("expected old stats purged, got %d records", len(all))
			}
			return nil
		})
	})
}

func TestDoubleAddInOneBatch(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		err := s.Batch(context.Background(), func(a *Accessor) error {
			if err := a.Indexing().AddIndexVersioned("index1", false, 0); err != nil {
				return err
			}
			return a.Indexing().AddIndexVersioned("index1", false, 0)
		})
		var ce *domain.ConcurrencyError
		if !errors.As(err, &ce) || ce.Actual != 1 {
			t.Fatalf("expected conflict against own write, got %v", err)
		}

		mustView(t, s, func(a *Accessor) error {
			v, err := a.Indexing().IndexVersion("index1")
			if v != 0 {
				t.Errorf("expected batch rolled back, got version %d", v)
			}
			return err
		})
	})
}

func TestDeleteIndex(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		mustBatch(t, s, func(a *Accessor) error {
			if err := a.Indexing().AddIndex("index1", false); err != nil {
				return err
			}
			return a.Indexing().AddIndexingErrors("index1", []domidx.Error{{Action: domidx.ActionMap, Error: "boom"}})
		})
		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().DeleteIndex("index1") })
		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().DeleteIndex("index1") })

		mustView(t, s, func(a *Accessor) error {
			if _, err := a.Indexing().IndexStats("index1"); !errors.Is(err, domain.ErrIndexNotFound) {
				t.Errorf("expected ErrIndexNotFound, got %v", err)
			}
			all, err := a.Indexing().IndexesStats()
			if len(all) != 0 {
				t.Errorf("expected no indexes, got %d", len(all))
			}
			return err
		})
	})
}

// --- Stats ---

func TestIndexStats(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		mustBatch(t, s, func(a *Accessor) error {
			if err := a.Indexing().AddIndex("index1", false); err != nil {
				return err
			}
			return a.Indexing().AddIndex("index2", true)
		})

		mustView(t, s, func(a *Accessor) error {
			s1, err := a.Indexing().IndexStats("index1")
			if err != nil {
				return err
			}
			if s1.Name != "index1" || s1.IsMapReduce || s1.Priority != domidx.PriorityNormal {
				t.Errorf("unexpected index1 stats %+v", s1)
			}
			if s1.MapAttempts != 0 || s1.MapErrors != 0 || s1.MapSuccesses != 0 || s1.TouchCount != 0 {
				t.Errorf("expected zero counters, got %+v", s1)
			}
			if s1.ReduceAttempts != nil || s1.LastReducedEtag != nil || s1.LastReducedTimestamp != nil {
				t.Error("expected reduce fields absent on map-only index")
			}
			if !s1.LastIndexedEtag.IsEmpty() || !s1.LastIndexedTimestamp.IsZero() {
				t.Errorf("expected empty map cursor, got %s @ %v", s1.LastIndexedEtag, s1.LastIndexedTimestamp)
			}
			if !s1.CreatedTimestamp.Equal(testNow) || !s1.LastIndexingTime.Equal(testNow) {
				t.Errorf("expected timestamps at %v, got %v / %v", testNow, s1.CreatedTimestamp, s1.LastIndexingTime)
			}

			s2, err := a.Indexing().IndexStats("index2")
			if err != nil {
				return err
			}
			if !s2.IsMapReduce || s2.ReduceAttempts == nil || *s2.ReduceAttempts != 0 {
				t.Errorf("expected zeroed reduce counters, got %+v", s2)
			}
			if s2.LastReducedEtag == nil || !s2.LastReducedEtag.IsEmpty() {
				t.Error("expected empty reduce cursor")
			}
			return nil
		})
	})
}

func TestIndexPriority(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().AddIndex("index1", false) })
		mustBatch(t, s, func(a *Accessor) error {
			return a.Indexing().SetIndexPriority("index1", domidx.PriorityHigh)
		})

		mustView(t, s, func(a *Accessor) error {
			st, err := a.Indexing().IndexStats("index1")
			if err != nil {
				return err
			}
			if st.Priority != domidx.PriorityHigh {
				t.Errorf("expected high, got %s", st.Priority)
			}
			v, err := a.Indexing().IndexVersion("index1")
			if v != 2 {
				t.Errorf("expected version bump to 2, got %d", v)
			}
			return err
		})

		err := s.Batch(context.Background(), func(a *Accessor) error {
			return a.Indexing().SetIndexPriority("index1", "urgent")
		})
		if !errors.Is(err, domain.ErrInvalidPriority) {
			t.Errorf("expected ErrInvalidPriority, got %v", err)
		}
	})
}

func TestFailureRate(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		mustBatch(t, s, func(a *Accessor) error {
			if err := a.Indexing().AddIndex("index1", false); err != nil {
				return err
			}
			return a.Indexing().AddIndex("index2", true)
		})

		mustView(t, s, func(a *Accessor) error {
			fr, err := a.Indexing().FailureRate("index1")
			if err != nil {
				return err
			}
			if fr.Attempts != 0 || fr.Errors != 0 || fr.Successes != 0 || fr.ReduceAttempts != nil {
				t.Errorf("unexpected index1 rate %+v", fr)
			}
			fr, err = a.Indexing().FailureRate("index2")
			if err != nil {
				return err
			}
			if fr.ReduceAttempts == nil || *fr.ReduceAttempts != 0 {
				t.Errorf("expected zero reduce attempts, got %+v", fr)
			}
			if fr.IsInvalid(domidx.DefaultFailurePolicy) {
				t.Error("fresh index must not be invalid")
			}
			return nil
		})
	})
}

func TestUpdateLastIndexed(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().AddIndex("index1", false) })

		e := etag.FromParts(0, 5)
		at := testNow.Add(-time.Hour)
		mustBatch(t, s, func(a *Accessor) error {
			return a.Indexing().UpdateLastIndexed("index1", e, at)
		})

		mustView(t, s, func(a *Accessor) error {
			st, err := a.Indexing().IndexStats("index1")
			if err != nil {
				return err
			}
			if st.LastIndexedEtag != e || !st.LastIndexedTimestamp.Equal(at) {
				t.Errorf("expected %s @ %v, got %s @ %v", e, at, st.LastIndexedEtag, st.LastIndexedTimestamp)
			}
			return nil
		})
	})
}

func TestUpdateLastReduced(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		mustBatch(t, s, func(a *Accessor) error {
			if err := a.Indexing().AddIndex("index1", false); err != nil {
				return err
			}
			return a.Indexing().AddIndex("index2", true)
		})

		e := etag.FromParts(1, 7)
		at := testNow.Add(-time.Minute)
		mustBatch(t, s, func(a *Accessor) error {
			if err := a.Indexing().UpdateLastReduced("index1", e, at); err != nil {
				return err
			}
			return a.Indexing().UpdateLastReduced("index2", e, at)
		})

		mustView(t, s, func(a *Accessor) error {
			s1, err := a.Indexing().IndexStats("index1")
			if err != nil {
				return err
			}
			if s1.LastReducedEtag != nil {
				t.Error("map-only index must not carry a reduce cursor")
			}
			s2, err := a.Indexing().IndexStats("index2")
			if err != nil {
				return err
			}
			if s2.LastReducedEtag == nil || *s2.LastReducedEtag != e || !s2.LastReducedTimestamp.Equal(at) {
				t.Errorf("unexpected reduce cursor %v @ %v", s2.LastReducedEtag, s2.LastReducedTimestamp)
			}
			return nil
		})
	})
}

func TestTouchIndexEtag(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().AddIndex("index1", false) })
		mustBatch(t, s, func(a *Accessor) error {
			if err := a.Indexing().TouchIndexEtag("index1"); err != nil {
				return err
			}
			return a.Indexing().TouchIndexEtag("index1")
		})

		mustView(t, s, func(a *Accessor) error {
			st, err := a.Indexing().IndexStats("index1")
			if err != nil {
				return err
			}
			if st.TouchCount != 2 {
				t.Errorf("expected touch count 2, got %d", st.TouchCount)
			}
			if !st.LastIndexedEtag.IsEmpty() {
				t.Error("touch must not move the map cursor")
			}
			return nil
		})
	})
}

func TestUpdateIndexingStats(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().AddIndex("index1", true) })

		later := testNow.Add(time.Minute)
		s.WithClock(func() time.Time { return later })
		delta := domidx.WorkStats{
			MapAttempts: 11, MapSuccesses: 9, MapErrors: 2,
			ReduceAttempts: 5, ReduceSuccesses: 4, ReduceErrors: 1,
		}
		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().UpdateIndexingStats("index1", delta) })

		mustView(t, s, func(a *Accessor) error {
			st, err := a.Indexing().IndexStats("index1")
			if err != nil {
				return err
			}
			if st.MapAttempts != 11 || st.MapSuccesses != 9 || st.MapErrors != 2 {
				t.Errorf("unexpected map counters %+v", st)
			}
			if *st.ReduceAttempts != 0 || *st.ReduceSuccesses != 0 || *st.ReduceErrors != 0 {
				t.Error("indexing stats must not touch reduce counters")
			}
			if !st.LastIndexingTime.Equal(later) {
				t.Errorf("expected last indexing time %v, got %v", later, st.LastIndexingTime)
			}
			return nil
		})

		err := s.Batch(context.Background(), func(a *Accessor) error {
			return a.Indexing().UpdateIndexingStats("index1", domidx.WorkStats{MapErrors: -1})
		})
		if !errors.Is(err, domain.ErrInvalidStats) {
			t.Errorf("expected ErrInvalidStats, got %v", err)
		}
	})
}

func TestUpdateReduceStats(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().AddIndex("index1", true) })

		delta := domidx.WorkStats{
			MapAttempts: 11, MapSuccesses: 9, MapErrors: 2,
			ReduceAttempts: 5, ReduceSuccesses: 4, ReduceErrors: 1,
		}
		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().UpdateReduceStats("index1", delta) })

		mustView(t, s, func(a *Accessor) error {
			st, err := a.Indexing().IndexStats("index1")
			if err != nil {
				return err
			}
			if st.MapAttempts != 0 || st.MapSuccesses != 0 || st.MapErrors != 0 {
				t.Error("reduce stats must not touch map counters")
			}
			if *st.ReduceAttempts != 5 || *st.ReduceSuccesses != 4 || *st.ReduceErrors != 1 {
				t.Errorf("unexpected reduce counters %d/%d/%d", *st.ReduceAttempts, *st.ReduceSuccesses, *st.ReduceErrors)
			}
			return nil
		})
	})
}

func TestIndexingErrors(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		s.WithMaxErrors(3)
		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().AddIndex("index1", false) })

		var ws domidx.WorkStats
		for _, key := range []string{"docs/1", "docs/2", "docs/3", "docs/4"} {
			ws.AddMapError(key, "bad")
		}
		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().AddIndexingErrors("index1", ws.Errors) })

		mustView(t, s, func(a *Accessor) error {
			errs, err := a.Indexing().IndexingErrors("index1")
			if err != nil {
				return err
			}
			if len(errs) != 3 {
				t.Fatalf("expected 3 errors kept, got %d", len(errs))
			}
			if errs[0].Document != "docs/2" || errs[2].Document != "docs/4" {
				t.Errorf("expected oldest dropped, got %s..%s", errs[0].Document, errs[2].Document)
			}
			if !errs[0].Timestamp.Equal(testNow) {
				t.Errorf("expected batch timestamp, got %v", errs[0].Timestamp)
			}
			return nil
		})
	})
}

// --- References ---

func TestDocumentReferences1(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		mustBatch(t, s, func(a *Accessor) error {
			return a.References().UpdateDocumentReferences("view1", "key1", nil)
		})
		mustView(t, s, func(a *Accessor) error {
			if refs := collect(t, a.References().DocumentReferencesFrom("key1")); len(refs) != 0 {
				t.Errorf("expected no references, got %v", refs)
			}
			return nil
		})

		mustBatch(t, s, func(a *Accessor) error {
			return a.References().UpdateDocumentReferences("view1", "key1", []string{"key2", "key3"})
		})
		mustView(t, s, func(a *Accessor) error {
			refs := collect(t, a.References().DocumentReferencesFrom("key1"))
			if !slices.Equal(refs, []string{"key2", "key3"}) {
				t.Errorf("expected [key2 key3], got %v", refs)
			}
			return nil
		})

		mustBatch(t, s, func(a *Accessor) error {
			return a.References().RemoveAllDocumentReferencesFrom("key1")
		})
		mustView(t, s, func(a *Accessor) error {
			if refs := collect(t, a.References().DocumentReferencesFrom("key1")); len(refs) != 0 {
				t.Errorf("expected no references, got %v", refs)
			}
			n, err := a.References().CountDocumentsReferencing("key2")
			if n != 0 {
				t.Errorf("expected count 0, got %d", n)
			}
			return err
		})
	})
}

func TestDocumentReferences2(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		mustBatch(t, s, func(a *Accessor) error {
			return a.References().UpdateDocumentReferences("view1", "key1", []string{"key2", "key3"})
		})
		mustBatch(t, s, func(a *Accessor) error {
			return a.References().UpdateDocumentReferences("view1", "key2", []string{"key1", "key3"})
		})

		mustView(t, s, func(a *Accessor) error {
			docs := collect(t, a.References().DocumentsReferencing("key3"))
			if !slices.Equal(docs, []string{"key1", "key2"}) {
				t.Errorf("expected [key1 key2], got %v", docs)
			}
			want := map[string]int64{"key3": int64(len(docs)), "key1": 1, "key2": 1}
			for to, n := range want {
				got, err := a.References().CountDocumentsReferencing(to)
				if err != nil {
					return err
				}
				if got != n {
					t.Errorf("%s: expected count %d, got %d", to, n, got)
				}
			}
			return nil
		})
	})
}

func TestRemoveViewReferences(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		mustBatch(t, s, func(a *Accessor) error {
			if err := a.References().UpdateDocumentReferences("view1", "key1", []string{"key3"}); err != nil {
				return err
			}
			return a.References().UpdateDocumentReferences("view2", "key2", []string{"key3"})
		})

		var removed int
		mustBatch(t, s, func(a *Accessor) error {
			var err error
			removed, err = a.References().RemoveViewReferences("view1")
			return err
		})
		if removed != 1 {
			t.Errorf("expected 1 source removed, got %d", removed)
		}

		mustView(t, s, func(a *Accessor) error {
			docs := collect(t, a.References().DocumentsReferencing("key3"))
			if !slices.Equal(docs, []string{"key2"}) {
				t.Errorf("expected [key2], got %v", docs)
			}
			return nil
		})
	})
}

// --- Batch semantics ---

func TestBatch_RollbackOnError(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		boom := errors.New("boom")
		err := s.Batch(context.Background(), func(a *Accessor) error {
			if err := a.Indexing().AddIndex("index1", false); err != nil {
				return err
			}
			if err := a.References().UpdateDocumentReferences("view1", "key1", []string{"key2"}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected callback error unchanged, got %v", err)
		}

		mustView(t, s, func(a *Accessor) error {
			all, err := a.Indexing().IndexesStats()
			if err != nil {
				return err
			}
			if len(all) != 0 {
				t.Errorf("expected no indexes after rollback, got %d", len(all))
			}
			if refs := collect(t, a.References().DocumentReferencesFrom("key1")); len(refs) != 0 {
				t.Errorf("expected no references after rollback, got %v", refs)
			}
			return nil
		})
	})
}

func TestBatch_RollbackOnPanic(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		func() {
			defer func() {
				if recover() == nil {
					t.Error("expected panic to propagate")
				}
			}()
			_ = s.Batch(context.Background(), func(a *Accessor) error {
				if err := a.Indexing().AddIndex("index1", false); err != nil {
					return err
				}
				panic("boom")
			})
		}()

		// Writer lock must be released after the panic.
		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().AddIndex("index2", false) })

		mustView(t, s, func(a *Accessor) error {
			v, err := a.Indexing().IndexVersion("index1")
			if v != 0 {
				t.Errorf("expected index1 rolled back, got version %d", v)
			}
			return err
		})
	})
}

func TestView_RejectsWrites(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		err := s.View(context.Background(), func(a *Accessor) error {
			return a.Indexing().AddIndex("index1", false)
		})
		if !errors.Is(err, db.ErrTxNotWritable) {
			t.Errorf("expected ErrTxNotWritable, got %v", err)
		}
	})
}

func TestBatch_CancelledContext(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := s.Batch(ctx, func(*Accessor) error {
			called = true
			return nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if called {
			t.Error("callback must not run on a cancelled context")
		}
	})
}

func TestBatch_CommitHooks(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		var calls [][]string
		s.OnCommit(func(_ context.Context, changed []string) {
			slices.Sort(changed)
			calls = append(calls, changed)
		})

		mustBatch(t, s, func(a *Accessor) error {
			if err := a.Indexing().AddIndex("Orders", false); err != nil {
				return err
			}
			if err := a.Indexing().AddIndex("users", false); err != nil {
				return err
			}
			return a.Indexing().TouchIndexEtag("orders")
		})
		mustBatch(t, s, func(a *Accessor) error {
			return a.References().UpdateDocumentReferences("view1", "key1", []string{"key2"})
		})
		_ = s.Batch(context.Background(), func(a *Accessor) error {
			_ = a.Indexing().TouchIndexEtag("users")
			return errors.New("abort")
		})

		if len(calls) != 1 {
			t.Fatalf("expected 1 hook call, got %d: %v", len(calls), calls)
		}
		if !slices.Equal(calls[0], []string{"Orders", "users"}) {
			t.Errorf("expected [Orders users], got %v", calls[0])
		}
	})
}

func TestBatch_Metrics(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		ok := testutil.ToFloat64(metrics.BatchesTotal.WithLabelValues(modeBatch, metrics.OutcomeOK))
		conflict := testutil.ToFloat64(metrics.BatchesTotal.WithLabelValues(modeBatch, metrics.OutcomeConflict))
		view := testutil.ToFloat64(metrics.BatchesTotal.WithLabelValues(modeView, metrics.OutcomeOK))

		mustBatch(t, s, func(a *Accessor) error { return a.Indexing().AddIndexVersioned("index1", false, 0) })
		_ = s.Batch(context.Background(), func(a *Accessor) error {
			return a.Indexing().AddIndexVersioned("index1", false, 0)
		})
		mustView(t, s, func(*Accessor) error { return nil })

		if got := testutil.ToFloat64(metrics.BatchesTotal.WithLabelValues(modeBatch, metrics.OutcomeOK)); got != ok+1 {
			t.Errorf("ok: expected %f, got %f", ok+1, got)
		}
		if got := testutil.ToFloat64(metrics.BatchesTotal.WithLabelValues(modeBatch, metrics.OutcomeConflict)); got != conflict+1 {
			t.Errorf("conflict: expected %f, got %f", conflict+1, got)
		}
		if got := testutil.ToFloat64(metrics.BatchesTotal.WithLabelValues(modeView, metrics.OutcomeOK)); got != view+1 {
			t.Errorf("view: expected %f, got %f", view+1, got)
		}
	})
}

func TestAccessor(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		type ctxKey struct{}
		ctx := context.WithValue(context.Background(), ctxKey{}, "v")
		err := s.View(ctx, func(a *Accessor) error {
			if !a.Now().Equal(testNow) {
				t.Errorf("expected %v, got %v", testNow, a.Now())
			}
			if a.Context().Value(ctxKey{}) != "v" {
				t.Error("expected batch context")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("view: %v", err)
		}
		if err := s.Ping(context.Background()); err != nil {
			t.Errorf("ping: %v", err)
		}
	})
}

// --- Queries ---

func TestQueries(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Storage) {
		ctx := context.Background()
		mustBatch(t, s, func(a *Accessor) error {
			if err := a.Indexing().AddIndex("index1", false); err != nil {
				return err
			}
			if err := a.Indexing().AddIndexingErrors("index1", []domidx.Error{{Action: domidx.ActionWrite, Error: "disk"}}); err != nil {
				return err
			}
			return a.References().UpdateDocumentReferences("view1", "key1", []string{"key2"})
		})

		list, err := s.ListStats(ctx)
		if err != nil || len(list) != 1 {
			t.Fatalf("ListStats: %v, %d", err, len(list))
		}

		if err := s.SetPriority(ctx, "index1", domidx.PriorityLow); err != nil {
			t.Fatalf("SetPriority: %v", err)
		}
		if err := s.Touch(ctx, "index1"); err != nil {
			t.Fatalf("Touch: %v", err)
		}
		st, err := s.Stats(ctx, "index1")
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if st.Priority != domidx.PriorityLow || st.TouchCount != 1 {
			t.Errorf("unexpected stats %+v", st)
		}

		found, missing, err := s.LookupStats(ctx, []string{"index1", "gone"})
		if err != nil {
			t.Fatalf("LookupStats: %v", err)
		}
		if len(found) != 1 || !slices.Equal(missing, []string{"gone"}) {
			t.Errorf("unexpected lookup %d found, missing %v", len(found), missing)
		}

		if _, err := s.FailureRate(ctx, "gone"); !errors.Is(err, domain.ErrIndexNotFound) {
			t.Errorf("expected ErrIndexNotFound, got %v", err)
		}
		errs, err := s.IndexingErrors(ctx, "index1")
		if err != nil || len(errs) != 1 || errs[0].Action != domidx.ActionWrite {
			t.Errorf("unexpected errors %v, %v", errs, err)
		}

		from, err := s.ReferencesFrom(ctx, "key1")
		if err != nil || !slices.Equal(from, []string{"key2"}) {
			t.Errorf("ReferencesFrom: %v, %v", from, err)
		}
		by, err := s.ReferencedBy(ctx, "key2")
		if err != nil || !slices.Equal(by, []string{"key1"}) {
			t.Errorf("ReferencedBy: %v, %v", by, err)
		}
		n, err := s.CountReferencing(ctx, "key2")
		if err != nil || n != 1 {
			t.Errorf("CountReferencing: %d, %v", n, err)
		}
		none, err := s.ReferencesFrom(ctx, "nobody")
		if err != nil || none == nil || len(none) != 0 {
			t.Errorf("expected empty non-nil slice, got %v, %v", none, err)
		}
	})
}
