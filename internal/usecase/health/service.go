package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the mirror is down but the engine serves.
	Degraded Status = "degraded"
	// Unhealthy indicates the engine itself is unavailable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentStorage = "storage"
	ComponentMirror  = "mirror"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	storage Pinger
	mirror  Pinger
}

// New creates a Service. mirror can be nil.
func New(storage, mirror Pinger) *Service {
	return &Service{storage: storage, mirror: mirror}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{
		ComponentStorage: result(s.storage.Ping(ctx)),
	}
	if s.mirror != nil {
		checks[ComponentMirror] = result(s.mirror.Ping(ctx))
	}

	status := Healthy
	switch {
	case checks[ComponentStorage] == CheckError:
		status = Unhealthy
	case checks[ComponentMirror] == CheckError:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
