package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the aggregated health status.
type Status string

// Aggregated statuses.
const (
	Healthy   Status = "ok"
	Degraded  Status = "degraded"
	Unhealthy Status = "error"
)

// CheckResult is the outcome of one probe.
type CheckResult string

// Probe outcomes.
const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Component names reported by the server.
const (
	ComponentDatabase   = "database"
	ComponentEmbedding  = "embedding"
	ComponentGeneration = "generation"
	ComponentUsageLog   = "usage_log"
)

const defaultProbeTimeout = 3 * time.Second

// Check is a named probe. A failing critical check makes the service unhealthy,
// a failing non-critical one only degrades it.
type Check struct {
	Name     string
	Critical bool
	Probe    Probe
}

// Report aggregates probe results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service runs the configured checks concurrently.
type Service struct {
	checks  []Check
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Service. Checks with a nil Probe are skipped.
func New(logger *zap.Logger, checks ...Check) *Service {
	kept := make([]Check, 0, len(checks))
	for _, c := range checks {
		if c.Probe != nil {
			kept = append(kept, c)
		}
	}
	return &Service{checks: kept, timeout: defaultProbeTimeout, logger: logger}
}

// Check runs every probe with a per-probe timeout.
func (s *Service) Check(ctx context.Context) Report {
	results := make([]CheckResult, len(s.checks))
	var wg sync.WaitGroup
	for i, c := range s.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			if err := c.Probe.HealthCheck(pctx); err != nil {
				s.logger.Warn("health check failed", zap.String("component", c.Name), zap.Error(err))
				results[i] = CheckError
				return
			}
			results[i] = CheckOK
		}()
	}
	wg.Wait()

	r := Report{Status: Healthy, Checks: make(map[string]CheckResult, len(s.checks))}
	for i, c := range s.checks {
		r.Checks[c.Name] = results[i]
		if results[i] == CheckOK {
			continue
		}
		if c.Critical {
			r.Status = Unhealthy
		} else if r.Status == Healthy {
			r.Status = Degraded
		}
	}
	return r
}
