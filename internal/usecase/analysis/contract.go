package analysis

import domusage "github.com/legojeon/report-coach/internal/domain/usage"

// UsageRecorder accepts usage records without blocking.
type UsageRecorder interface {
	Record(rec domusage.Record) bool
}
