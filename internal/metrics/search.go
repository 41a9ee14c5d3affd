package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total search requests by outcome",
		},
		[]string{"status"}, // ok, invalid, unavailable, error
	)

	SearchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_stage_duration_seconds",
			Help:      "Duration of each search pipeline stage",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"}, // analyze, retrieve, filter, rerank, format
	)

	SearchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_candidates",
			Help:      "Number of candidates entering the reranker",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 8),
		},
	)

	SearchFilterBypassTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_filter_bypass_total",
			Help:      "Searches where metadata filters left fewer than k candidates and were ignored",
		},
	)

	SearchAnalysisDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_analysis_degraded_total",
			Help:      "Query analyses that fell back to the raw query",
		},
		[]string{"reason"}, // generation_error, empty_summary
	)
)
