package usage

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	domusage "github.com/legojeon/report-coach/internal/domain/usage"
	"github.com/legojeon/report-coach/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

type recordingSink struct {
	name string
	err  error

	mu      sync.Mutex
	records []domusage.Record
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(_ context.Context, rec domusage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// gateSink blocks each write until release is closed.
type gateSink struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gateSink) Name() string { return "gate" }

func (g *gateSink) Write(ctx context.Context, _ domusage.Record) error {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
	}
	return nil
}

func TestDispatcher_FansOutToSinks(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b", err: errors.New("insert failed")}
	d := NewDispatcher(8, zap.NewNop(), a, b)

	for range 3 {
		if !d.Record(domusage.Record{ServiceName: domusage.ServiceQuerySummary, TotalTokens: 10}) {
			t.Fatal("record rejected")
		}
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	if a.count() != 3 || b.count() != 3 {
		t.Errorf("expected 3 writes per sink, got a=%d b=%d", a.count(), b.count())
	}
	if a.records[0].At.IsZero() {
		t.Error("expected timestamp to be filled")
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	gate := &gateSink{started: make(chan struct{}), release: make(chan struct{})}
	d := NewDispatcher(1, zap.NewNop(), gate)

	dropped := metrics.UsageRecordsTotal.WithLabelValues("dispatcher", "dropped")
	before := testutil.ToFloat64(dropped)

	d.Record(domusage.Record{TotalTokens: 1})
	<-gate.started // worker holds the first record

	if !d.Record(domusage.Record{TotalTokens: 2}) {
		t.Fatal("second record should fit in the buffer")
	}
	start := time.Now()
	if d.Record(domusage.Record{TotalTokens: 3}) {
		t.Fatal("third record should be dropped")
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Record blocked on a full queue")
	}
	if got := testutil.ToFloat64(dropped) - before; got != 1 {
		t.Errorf("expected 1 dropped record, got %v", got)
	}

	close(gate.release)
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestDispatcher_RecordAfterClose(t *testing.T) {
	d := NewDispatcher(1, zap.NewNop())
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if d.Record(domusage.Record{TotalTokens: 1}) {
		t.Error("record accepted after close")
	}
	if err := d.Close(context.Background()); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestDispatcher_CloseHonorsContext(t *testing.T) {
	gate := &gateSink{started: make(chan struct{}), release: make(chan struct{})}
	d := NewDispatcher(4, zap.NewNop(), gate)
	d.Record(domusage.Record{TotalTokens: 1})
	<-gate.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	close(gate.release)
}
