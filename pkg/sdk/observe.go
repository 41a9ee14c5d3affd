package reportcoach

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Client calls reported by the observer.
const (
	opSearch = "search"
	opIngest = "ingest"
	opReset  = "reset"
	opHealth = "health"
	opUsage  = "usage"
)

// Call outcomes. Caller mistakes and upstream outages are kept apart from
// everything else so a dashboard can tell them from bugs.
const (
	outcomeOK          = "ok"
	outcomeRejected    = "rejected"
	outcomeUnavailable = "unavailable"
	outcomeFailed      = "failed"
)

func callOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrEmptyQuery), errors.Is(err, ErrInvalidK):
		return outcomeRejected
	case errors.Is(err, ErrEmbeddingQuotaExceeded), errors.Is(err, ErrCollaboratorUnavailable):
		return outcomeUnavailable
	default:
		return outcomeFailed
	}
}

type clientMetrics struct {
	calls         *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	searchResults prometheus.Histogram
	ingestChunks  *prometheus.CounterVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reportcoach",
			Subsystem: "sdk",
			Name:      "calls_total",
			Help:      "Client calls by operation (search, ingest, reset, health, usage) and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reportcoach",
			Subsystem: "sdk",
			Name:      "call_duration_seconds",
			Help:      "Client call latency. Ingest covers a whole report directory.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 120, 600},
		}, []string{"op"}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reportcoach",
			Subsystem: "sdk",
			Name:      "search_results",
			Help:      "Passages returned per successful search, after report dedup.",
			Buckets:   prometheus.LinearBuckets(0, 5, 11),
		}),
		ingestChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reportcoach",
			Subsystem: "sdk",
			Name:      "ingest_chunks_total",
			Help:      "Report chunks seen by ingest, by result (indexed, skipped, failed).",
		}, []string{"result"}),
	}
	if err := reuseOrRegister(reg, &m.calls); err != nil {
		return nil, err
	}
	if err := reuseOrRegister(reg, &m.latency); err != nil {
		return nil, err
	}
	if err := reuseOrRegister(reg, &m.searchResults); err != nil {
		return nil, err
	}
	if err := reuseOrRegister(reg, &m.ingestChunks); err != nil {
		return nil, err
	}
	return m, nil
}

// reuseOrRegister registers *c, or points *c at the collector a previous
// Client already registered under the same name.
func reuseOrRegister[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	var dup prometheus.AlreadyRegisteredError
	switch {
	case err == nil:
		return nil
	case !errors.As(err, &dup):
		return fmt.Errorf("reportcoach: register metric: %w", err)
	}
	existing, ok := dup.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("reportcoach: metric registered as %T by someone else", dup.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer records client calls on the caller's logger and registerer.
// Both are optional; a nil observer records nothing.
type observer struct {
	logger  *slog.Logger
	metrics *clientMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newClientMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) search(start time.Time, query string, k int, resp SearchResponse, err error) {
	if o == nil {
		return
	}
	o.finish(opSearch, start, err, "query_runes", len([]rune(query)), "k", k, "results", resp.TotalResults)
	if err == nil && o.metrics != nil {
		o.metrics.searchResults.Observe(float64(resp.TotalResults))
	}
}

func (o *observer) ingest(start time.Time, dir string, res IngestResult, err error) {
	if o == nil {
		return
	}
	o.finish(opIngest, start, err, "dir", dir, "files", res.Files,
		"indexed", res.Indexed, "skipped", res.Skipped, "failed", res.Failed)
	if o.metrics != nil {
		o.metrics.ingestChunks.WithLabelValues("indexed").Add(float64(res.Indexed))
		o.metrics.ingestChunks.WithLabelValues("skipped").Add(float64(res.Skipped))
		o.metrics.ingestChunks.WithLabelValues("failed").Add(float64(res.Failed))
	}
}

func (o *observer) call(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	o.finish(op, start, err)
}

func (o *observer) finish(op string, start time.Time, err error, attrs ...any) {
	took := time.Since(start)
	outcome := callOutcome(err)
	if o.metrics != nil {
		o.metrics.calls.WithLabelValues(op, outcome).Inc()
		o.metrics.latency.WithLabelValues(op).Observe(took.Seconds())
	}
	if o.logger == nil {
		return
	}
	attrs = append(attrs, "took", took)
	switch outcome {
	case outcomeOK:
		o.logger.Debug("reportcoach: "+op+" done", attrs...)
	case outcomeRejected:
		o.logger.Info("reportcoach: "+op+" rejected", append(attrs, "error", err)...)
	default:
		o.logger.Warn("reportcoach: "+op+" "+outcome, append(attrs, "error", err)...)
	}
}
