package usage

import (
	"context"
	"time"

	domusage "github.com/legojeon/report-coach/internal/domain/usage"
)

// Sink persists usage records. Implemented by repository/usage (counters)
// and repository/usagelog (Postgres rows).
type Sink interface {
	Name() string
	Write(ctx context.Context, rec domusage.Record) error
}

// TotalsReader reads per-service token totals for a period.
type TotalsReader interface {
	Totals(ctx context.Context, period domusage.Period, at time.Time, services []string) ([]domusage.ServiceTotal, error)
}
