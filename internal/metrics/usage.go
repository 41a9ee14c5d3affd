package metrics

import "github.com/prometheus/client_golang/prometheus"

// Usage side-channel and ingest metrics.
var (
	// UsageRecordsTotal counts usage records by outcome: queued, dropped, written, failed.
	UsageRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_records_total",
			Help:      "Usage records by dispatch outcome",
		},
		[]string{"sink", "outcome"},
	)

	IngestChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_chunks_total",
			Help:      "Corpus chunks processed by the loader",
		},
		[]string{"result"}, // indexed, skipped, failed
	)
)
