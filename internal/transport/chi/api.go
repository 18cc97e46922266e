package chi

import (
	"time"

	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
)

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeIndexNotFound    ErrorCode = "index_not_found"
	ErrorCodeIndexExists      ErrorCode = "index_already_exists"
	ErrorCodeVersionConflict  ErrorCode = "version_conflict"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ConflictResponse extends ErrorResponse with the catalog versions involved.
type ConflictResponse struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Index    string    `json:"index"`
	Expected uint64    `json:"expected"`
	Actual   uint64    `json:"actual"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// IndexStats is the wire form of domidx.Stats.
type IndexStats struct {
	Name       string `json:"name"`
	ID         uint64 `json:"id"`
	MapReduce  bool   `json:"map_reduce"`
	Priority   string `json:"priority"`
	TouchCount int64  `json:"touch_count"`

	MapAttempts  int64 `json:"map_attempts"`
	MapSuccesses int64 `json:"map_successes"`
	MapErrors    int64 `json:"map_errors"`

	ReduceAttempts  *int64 `json:"reduce_attempts,omitempty"`
	ReduceSuccesses *int64 `json:"reduce_successes,omitempty"`
	ReduceErrors    *int64 `json:"reduce_errors,omitempty"`

	CreatedAt        time.Time `json:"created_at"`
	LastIndexingTime time.Time `json:"last_indexing_time"`

	LastIndexedEtag string     `json:"last_indexed_etag"`
	LastIndexedAt   *time.Time `json:"last_indexed_at,omitempty"`

	LastReducedEtag *string    `json:"last_reduced_etag,omitempty"`
	LastReducedAt   *time.Time `json:"last_reduced_at,omitempty"`
}

// IndexListResponse is the body of GET /indexes.
type IndexListResponse struct {
	Items []IndexStats `json:"items"`
}

// FailureRateResponse is the body of GET /indexes/{name}/failure-rate.
type FailureRateResponse struct {
	Attempts        int64   `json:"attempts"`
	Errors          int64   `json:"errors"`
	Successes       int64   `json:"successes"`
	ReduceAttempts  *int64  `json:"reduce_attempts,omitempty"`
	ReduceErrors    *int64  `json:"reduce_errors,omitempty"`
	ReduceSuccesses *int64  `json:"reduce_successes,omitempty"`
	Rate            float64 `json:"rate"`
	Invalid         bool    `json:"invalid"`
}

// IndexingErrorsResponse is the body of GET /indexes/{name}/errors.
type IndexingErrorsResponse struct {
	Items []domidx.Error `json:"items"`
}

// SetPriorityRequest is the body of PUT /indexes/{name}/priority.
type SetPriorityRequest struct {
	Priority string `json:"priority"`
}

// PriorityResponse echoes the stored priority.
type PriorityResponse struct {
	Name     string `json:"name"`
	Priority string `json:"priority"`
}

// ReferencesResponse is the body of GET /references/{from,to}.
type ReferencesResponse struct {
	Key   string   `json:"key"`
	Keys  []string `json:"keys,omitempty"`
	Count int64    `json:"count"`
}

// ReferencesParams are the query parameters of the reference routes.
type ReferencesParams struct {
	Key       string
	CountOnly *bool
}

func statsToAPI(s domidx.Stats) IndexStats {
	out := IndexStats{
		Name:             s.Name,
		ID:               s.ID,
		MapReduce:        s.IsMapReduce,
		Priority:         string(s.Priority),
		TouchCount:       s.TouchCount,
		MapAttempts:      s.MapAttempts,
		MapSuccesses:     s.MapSuccesses,
		MapErrors:        s.MapErrors,
		ReduceAttempts:   s.ReduceAttempts,
		ReduceSuccesses:  s.ReduceSuccesses,
		ReduceErrors:     s.ReduceErrors,
		CreatedAt:        s.CreatedTimestamp,
		LastIndexingTime: s.LastIndexingTime,
		LastIndexedEtag:  s.LastIndexedEtag.String(),
		LastIndexedAt:    timePtr(s.LastIndexedTimestamp),
	}
	if s.LastReducedEtag != nil {
		e := s.LastReducedEtag.String()
		out.LastReducedEtag = &e
	}
	if s.LastReducedTimestamp != nil {
		out.LastReducedAt = timePtr(*s.LastReducedTimestamp)
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
