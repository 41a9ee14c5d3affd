package usage

import (
	"time"

	"github.com/legojeon/report-coach/internal/domain"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// Service names under which tokens are accounted.
const (
	ServiceQuerySummary = "query_summary"
	ServiceEmbedding    = "embedding"
)

// ParsePeriod maps a query parameter to a Period. Empty means day.
func ParsePeriod(s string) (Period, bool) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, true
	case PeriodMonth:
		return PeriodMonth, true
	default:
		return "", false
	}
}

// Bounds returns the UTC start and end of the period containing now.
func (p Period) Bounds(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	if p == PeriodMonth {
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// CounterKey is the Valkey key of a service's token counter for the period containing t.
func CounterKey(service string, p Period, t time.Time) string {
	t = t.UTC()
	if p == PeriodMonth {
		return domain.KeyPrefix + "usage:" + service + ":monthly:" + t.Format("2006-01")
	}
	return domain.KeyPrefix + "usage:" + service + ":daily:" + t.Format("2006-01-02")
}

// Record is one token-usage event emitted by a collaborator call.
type Record struct {
	UserID         string
	ServiceName    string
	RequestPrompt  string
	PromptTokens   int
	ResponseTokens int
	TotalTokens    int
	Hidden         bool
	At             time.Time
}

// ServiceTotal is the token count of one service within a period.
type ServiceTotal struct {
	Service string `json:"service"`
	Tokens  int64  `json:"tokens"`
}

// Report aggregates token usage for a period.
type Report struct {
	Period      Period         `json:"period"`
	PeriodStart int64          `json:"period_start"`
	PeriodEnd   int64          `json:"period_end"`
	Services    []ServiceTotal `json:"services"`
	TotalTokens int64          `json:"total_tokens"`
}
