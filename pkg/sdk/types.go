package reportcoach

import (
	"context"

	"github.com/legojeon/report-coach/internal/domain"
	domusage "github.com/legojeon/report-coach/internal/domain/usage"
	healthuc "github.com/legojeon/report-coach/internal/usecase/health"
	ingestuc "github.com/legojeon/report-coach/internal/usecase/ingest"
)

// Search result types.
type (
	SearchResponse = domain.SearchResponse
	ResultItem     = domain.ResultItem
	ResultMetadata = domain.ResultMetadata
	ScoreBreakdown = domain.ScoreBreakdown
	TokenUsage     = domain.TokenUsage
)

// Weights are the ranking coefficients.
type Weights = domain.Weights

// IngestResult counts what an Ingest call did.
type IngestResult = ingestuc.Result

// DefaultWeights returns the built-in ranking coefficients.
func DefaultWeights() Weights { return domain.DefaultWeights() }

// Usage report types.
type (
	UsageReport  = domusage.Report
	ServiceTotal = domusage.ServiceTotal
	Period       = domusage.Period
)

// Usage periods.
const (
	PeriodDay   = domusage.PeriodDay
	PeriodMonth = domusage.PeriodMonth
)

// HealthReport is the aggregated dependency status.
type HealthReport = healthuc.Report

// WithCaller attributes the usage of calls made with the returned context to userID.
// Hidden callers are counted but flagged in the usage log.
func WithCaller(ctx context.Context, userID string, hidden bool) context.Context {
	return domain.ContextWithCaller(ctx, domain.Caller{UserID: userID, Hidden: hidden})
}
