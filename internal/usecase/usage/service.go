package usage

import (
	"context"
	"fmt"
	"time"

	domusage "github.com/legojeon/report-coach/internal/domain/usage"
)

// Services lists the accounted services in report order.
var Services = []string{domusage.ServiceQuerySummary, domusage.ServiceEmbedding}

// Service builds usage reports.
type Service struct {
	totals TotalsReader
	now    func() time.Time
}

// New creates a Service. A nil totals reader reports zero for every service.
func New(totals TotalsReader) *Service {
	return &Service{totals: totals, now: time.Now}
}

// Report returns per-service token totals for the period containing now.
func (s *Service) Report(ctx context.Context, period domusage.Period) (domusage.Report, error) {
	now := s.now().UTC()
	start, end := period.Bounds(now)

	totals, err := s.readTotals(ctx, period, now)
	if err != nil {
		return domusage.Report{}, fmt.Errorf("read usage totals: %w", err)
	}

	r := domusage.Report{
		Period:      period,
		PeriodStart: start.UnixMilli(),
		PeriodEnd:   end.UnixMilli(),
		Services:    totals,
	}
	for _, t := range totals {
		r.TotalTokens += t.Tokens
	}
	return r, nil
}

func (s *Service) readTotals(ctx context.Context, period domusage.Period, now time.Time) ([]domusage.ServiceTotal, error) {
	if s.totals == nil {
		out := make([]domusage.ServiceTotal, len(Services))
		for i, name := range Services {
			out[i] = domusage.ServiceTotal{Service: name}
		}
		return out, nil
	}
	return s.totals.Totals(ctx, period, now, Services) //nolint:wrapcheck // wrapped by Report
}
