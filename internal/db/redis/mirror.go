package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/indexstore/internal/db"
	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
)

const indexKeySegment = "index:"

// Key returns the hash key mirroring the stats of name.
func (s *Store) Key(name string) string {
	return s.prefix + indexKeySegment + domidx.NormalizeName(name)
}

// Publish replaces the mirrored hash of every stats record in one DoMulti
// round-trip. Each hash is deleted first so fields of a recreated index
// don't linger.
func (s *Store) Publish(ctx context.Context, stats []domidx.Stats) error {
	if len(stats) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, 2*len(stats))
	for _, st := range stats {
		key := s.Key(st.Name)
		cmds = append(cmds, s.b().Del().Key(key).Build())

		hset := s.b().Hset().Key(key).FieldValue()
		for _, f := range statsFields(st, s.policy) {
			hset = hset.FieldValue(f[0], f[1])
		}
		cmds = append(cmds, hset.Build())
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpPut, Err: fmt.Errorf("index %s: %w", stats[i/2].Name, err)}
		}
	}
	return nil
}

// Remove deletes the mirrored hashes of names.
func (s *Store) Remove(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = s.Key(n)
	}
	cmd := s.b().Del().Key(keys...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	return nil
}

// Fetch returns the mirrored fields of name, or db.ErrKeyNotFound.
func (s *Store) Fetch(ctx context.Context, name string) (map[string]string, error) {
	cmd := s.b().Hgetall().Key(s.Key(name)).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	if len(m) == 0 {
		return nil, db.ErrKeyNotFound
	}
	return m, nil
}

// Names lists the normalized names of every mirrored index.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	pattern := s.prefix + indexKeySegment + "*"
	var names []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		for _, k := range res.Elements {
			names = append(names, strings.TrimPrefix(k, s.prefix+indexKeySegment))
		}
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}
	return names, nil
}

// Sync publishes stats and removes mirrored indexes that are no longer live.
func (s *Store) Sync(ctx context.Context, stats []domidx.Stats) error {
	if err := s.Publish(ctx, stats); err != nil {
		return err
	}

	live := make(map[string]struct{}, len(stats))
	for _, st := range stats {
		live[domidx.NormalizeName(st.Name)] = struct{}{}
	}
	mirrored, err := s.Names(ctx)
	if err != nil {
		return err
	}
	var stale []string
	for _, n := range mirrored {
		if _, ok := live[n]; !ok {
			stale = append(stale, n)
		}
	}
	return s.Remove(ctx, stale...)
}

// statsFields flattens st into ordered hash fields.
func statsFields(st domidx.Stats, policy domidx.FailurePolicy) [][2]string {
	fr := st.FailureRate()
	fields := [][2]string{
		{"name", st.Name},
		{"id", strconv.FormatUint(st.ID, 10)},
		{"map_reduce", strconv.FormatBool(st.IsMapReduce)},
		{"priority", string(st.Priority)},
		{"touch_count", strconv.FormatInt(st.TouchCount, 10)},
		{"map_attempts", strconv.FormatInt(st.MapAttempts, 10)},
		{"map_successes", strconv.FormatInt(st.MapSuccesses, 10)},
		{"map_errors", strconv.FormatInt(st.MapErrors, 10)},
		{"created", formatTime(st.CreatedTimestamp)},
		{"last_indexing_time", formatTime(st.LastIndexingTime)},
		{"last_indexed_etag", st.LastIndexedEtag.String()},
		{"last_indexed_timestamp", formatTime(st.LastIndexedTimestamp)},
		{"failure_rate", strconv.FormatFloat(fr.Rate(), 'f', -1, 64)},
		{"invalid", strconv.FormatBool(fr.IsInvalid(policy))},
	}
	if st.IsMapReduce {
		fields = append(fields,
			[2]string{"reduce_attempts", strconv.FormatInt(*st.ReduceAttempts, 10)},
			[2]string{"reduce_successes", strconv.FormatInt(*st.ReduceSuccesses, 10)},
			[2]string{"reduce_errors", strconv.FormatInt(*st.ReduceErrors, 10)},
			[2]string{"last_reduced_etag", st.LastReducedEtag.String()},
			[2]string{"last_reduced_timestamp", formatTime(*st.LastReducedTimestamp)},
		)
	}
	return fields
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
