package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/indexstore/internal/domain"
	logpkg "github.com/kailas-cloud/indexstore/internal/logger"
	adminuc "github.com/kailas-cloud/indexstore/internal/usecase/admin"
	healthuc "github.com/kailas-cloud/indexstore/internal/usecase/health"
	"github.com/kailas-cloud/indexstore/internal/version"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements ServerInterface over the admin and health use cases.
type Server struct {
	admin         *adminuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates the admin HTTP server.
func NewServer(admin *adminuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		admin:  admin,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		concurrencyHandler,
		sentinelHandler(domain.ErrIndexNotFound, http.StatusNotFound, ErrorCodeIndexNotFound),
		sentinelHandler(domain.ErrDuplicateIndex, http.StatusConflict, ErrorCodeIndexExists),
		sentinelHandler(domain.ErrInvalidIndexName, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidPriority, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidStats, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidDocumentKey, http.StatusBadRequest, ErrorCodeValidationFailed),
	}
	return s
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Version: version.Version,
		Checks:  checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// ListIndexes handles GET /indexes.
func (s *Server) ListIndexes(w http.ResponseWriter, r *http.Request) {
	stats, err := s.admin.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]IndexStats, len(stats))
	for i, st := range stats {
		items[i] = statsToAPI(st)
	}
	writeJSON(w, http.StatusOK, IndexListResponse{Items: items})
}

// GetIndex handles GET /indexes/{name}.
func (s *Server) GetIndex(w http.ResponseWriter, r *http.Request, name string) {
	st, err := s.admin.Get(r.Context(), name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsToAPI(st))
}

// GetFailureRate handles GET /indexes/{name}/failure-rate.
func (s *Server) GetFailureRate(w http.ResponseWriter, r *http.Request, name string) {
	h, err := s.admin.FailureRate(r.Context(), name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FailureRateResponse{
		Attempts:        h.Rate.Attempts,
		Errors:          h.Rate.Errors,
		Successes:       h.Rate.Successes,
		ReduceAttempts:  h.Rate.ReduceAttempts,
		ReduceErrors:    h.Rate.ReduceErrors,
		ReduceSuccesses: h.Rate.ReduceSuccesses,
		Rate:            h.Ratio,
		Invalid:         h.Invalid,
	})
}

// GetIndexingErrors handles GET /indexes/{name}/errors.
func (s *Server) GetIndexingErrors(w http.ResponseWriter, r *http.Request, name string) {
	errs, err := s.admin.Errors(r.Context(), name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IndexingErrorsResponse{Items: errs})
}

// SetPriority handles PUT /indexes/{name}/priority.
func (s *Server) SetPriority(w http.ResponseWriter, r *http.Request, name string) {
	var req SetPriorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Priority == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "priority is required")
		return
	}

	p, err := s.admin.SetPriority(r.Context(), name, req.Priority)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PriorityResponse{Name: name, Priority: string(p)})
}

// TouchIndex handles POST /indexes/{name}/touch.
func (s *Server) TouchIndex(w http.ResponseWriter, r *http.Request, name string) {
	st, err := s.admin.Touch(r.Context(), name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsToAPI(st))
}

// ReferencesFrom handles GET /references/from.
func (s *Server) ReferencesFrom(w http.ResponseWriter, r *http.Request, params ReferencesParams) {
	keys, err := s.admin.ReferencesFrom(r.Context(), params.Key)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	resp := ReferencesResponse{Key: params.Key, Count: int64(len(keys))}
	if !derefBool(params.CountOnly) {
		resp.Keys = keys
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReferencesTo handles GET /references/to.
func (s *Server) ReferencesTo(w http.ResponseWriter, r *http.Request, params ReferencesParams) {
	if derefBool(params.CountOnly) {
		n, err := s.admin.CountReferencing(r.Context(), params.Key)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ReferencesResponse{Key: params.Key, Count: n})
		return
	}

	keys, err := s.admin.ReferencedBy(r.Context(), params.Key)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReferencesResponse{Key: params.Key, Keys: keys, Count: int64(len(keys))})
}

func derefBool(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-safe message for domain errors.
// Typed domain errors carry only caller-supplied names, so their text is
// returned as is.
func safeDomainMessage(err error) string {
	var (
		nf  *domain.IndexNotFoundError
		dup *domain.DuplicateIndexError
		ce  *domain.ConcurrencyError
	)
	switch {
	case errors.As(err, &nf):
		return nf.Error()
	case errors.As(err, &dup):
		return dup.Error()
	case errors.As(err, &ce):
		return ce.Error()
	}

	sentinels := []error{
		domain.ErrIndexNotFound,
		domain.ErrDuplicateIndex,
		domain.ErrConcurrency,
		domain.ErrInvalidIndexName,
		domain.ErrInvalidPriority,
		domain.ErrInvalidStats,
		domain.ErrInvalidDocumentKey,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// concurrencyHandler reports version conflicts with the versions involved.
func concurrencyHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrConcurrency) {
		return false
	}
	var ce *domain.ConcurrencyError
	if errors.As(err, &ce) {
		writeJSON(w, http.StatusConflict, ConflictResponse{
			Code:     ErrorCodeVersionConflict,
			Message:  msg,
			Index:    ce.Name,
			Expected: ce.Expected,
			Actual:   ce.Actual,
		})
		return true
	}
	writeError(w, http.StatusConflict, ErrorCodeVersionConflict, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
