package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/legojeon/report-coach/internal/db"
	domusage "github.com/legojeon/report-coach/internal/domain/usage"
)

// store is the consumer interface for counter operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps daily and monthly token counters per service (INCRBY + GET with TTL).
type Store struct {
	store    store
	dailyTTL time.Duration
	monthTTL time.Duration
	now      func() time.Time
}

// New creates a counter store.
// dailyTTL is the TTL for daily keys (recommended: 48h).
// monthTTL is the TTL for monthly keys (recommended: 62 days).
func New(s store, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{
		store:    s,
		dailyTTL: dailyTTL,
		monthTTL: monthTTL,
		now:      time.Now,
	}
}

// Name identifies the sink in metrics and logs.
func (s *Store) Name() string { return "valkey" }

// Write adds a record's total tokens to the daily and monthly counters of its service.
func (s *Store) Write(ctx context.Context, rec domusage.Record) error {
	if rec.TotalTokens <= 0 {
		return nil
	}
	at := rec.At
	if at.IsZero() {
		at = s.now()
	}
	for _, p := range []domusage.Period{domusage.PeriodDay, domusage.PeriodMonth} {
		if err := s.IncrBy(ctx, domusage.CounterKey(rec.ServiceName, p, at), int64(rec.TotalTokens)); err != nil {
			return err
		}
	}
	return nil
}

// Totals reads the counters of the given services for the period containing at.
// Services without a counter report zero.
func (s *Store) Totals(
	ctx context.Context, period domusage.Period, at time.Time, services []string,
) ([]domusage.ServiceTotal, error) {
	out := make([]domusage.ServiceTotal, 0, len(services))
	for _, svc := range services {
		n, err := s.Get(ctx, domusage.CounterKey(svc, period, at))
		if err != nil {
			return nil, err
		}
		out = append(out, domusage.ServiceTotal{Service: svc, Tokens: n})
	}
	return out, nil
}

// IncrBy atomically increments the key value and sets TTL.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	if err := s.store.IncrBy(ctx, key, val); err != nil {
		return fmt.Errorf("usage INCRBY %s: %w", key, err)
	}

	// NX: the first write of the period owns the expiry.
	if err := s.store.Expire(ctx, key, s.ttlForKey(key), true); err != nil {
		return fmt.Errorf("usage EXPIRE %s: %w", key, err)
	}
	return nil
}

// Get returns the counter value. Returns 0 if the key does not exist.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("usage GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("usage GET %s parse: %w", key, err)
	}
	return val, nil
}

func (s *Store) ttlForKey(key string) time.Duration {
	if strings.Contains(key, ":daily:") {
		return s.dailyTTL
	}
	return s.monthTTL
}
