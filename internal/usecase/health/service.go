package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status           Status
	Checks           map[string]CheckResult
	IndexedDocuments int
}

// Service coordinates health checks across the model providers, the cache,
// and the in-memory index.
type Service struct {
	embedding Checker
	generator Checker
	cache     Pinger
	index     IndexInfo
}

// New creates a Service. embedding, generator, and cache can each be nil
// when the component is not configured.
func New(embedding, generator Checker, cache Pinger, index IndexInfo) *Service {
	return &Service{embedding: embedding, generator: generator, cache: cache, index: index}
}

// Check runs health checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.embedding != nil {
		checks["embedding"] = toResult(s.embedding.HealthCheck(ctx))
	}
	if s.generator != nil {
		checks["generator"] = toResult(s.generator.HealthCheck(ctx))
	}
	if s.cache != nil {
		checks["cache"] = toResult(s.cache.Ping(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	count := 0
	if s.index != nil {
		count = s.index.Len()
	}
	return Report{Status: status, Checks: checks, IndexedDocuments: count}
}

func toResult(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
