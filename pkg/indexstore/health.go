package indexstore

import (
	"context"

	healthuc "github.com/kailas-cloud/indexstore/internal/usecase/health"
)

// HealthStatus represents the aggregated store health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}

// Health checks the engine and, when configured, the mirror.
func (s *Store) Health(ctx context.Context) HealthStatus {
	if s.closed.Load() {
		return HealthStatus{
			Status: string(healthuc.Unhealthy),
			Checks: map[string]string{healthuc.ComponentStorage: string(healthuc.CheckError)},
		}
	}
	report := s.health.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
