package usage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	domusage "github.com/legojeon/report-coach/internal/domain/usage"
	"github.com/legojeon/report-coach/internal/metrics"
)

const (
	// DefaultQueueSize is the buffer used when the configured size is not positive.
	DefaultQueueSize = 256
	writeTimeout     = 5 * time.Second
)

// Dispatcher hands usage records to a background worker that writes them to every sink.
// Record never blocks; a full queue drops the record.
type Dispatcher struct {
	sinks  []Sink
	queue  chan domusage.Record
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewDispatcher starts the worker. Close must be called to flush pending records.
func NewDispatcher(queueSize int, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		sinks:  sinks,
		queue:  make(chan domusage.Record, queueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Record enqueues rec. It reports whether the record was accepted.
func (d *Dispatcher) Record(rec domusage.Record) bool {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.UsageRecordsTotal.WithLabelValues("dispatcher", "dropped").Inc()
		return false
	}
	select {
	case d.queue <- rec:
		metrics.UsageRecordsTotal.WithLabelValues("dispatcher", "queued").Inc()
		return true
	default:
		metrics.UsageRecordsTotal.WithLabelValues("dispatcher", "dropped").Inc()
		d.logger.Warn("usage queue full, record dropped",
			zap.String("service", rec.ServiceName),
			zap.Int("total_tokens", rec.TotalTokens),
		)
		return false
	}
}

// Close stops accepting records and waits until the queue drains or ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for rec := range d.queue {
		d.write(rec)
	}
}

func (d *Dispatcher) write(rec domusage.Record) {
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := s.Write(ctx, rec)
		cancel()
		if err != nil {
			metrics.UsageRecordsTotal.WithLabelValues(s.Name(), "failed").Inc()
			d.logger.Warn("usage sink write failed",
				zap.String("sink", s.Name()),
				zap.String("service", rec.ServiceName),
				zap.Error(err),
			)
			continue
		}
		metrics.UsageRecordsTotal.WithLabelValues(s.Name(), "written").Inc()
	}
}
