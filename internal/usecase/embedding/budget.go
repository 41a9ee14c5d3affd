package embedding

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/legojeon/report-coach/internal/domain"
	domusage "github.com/legojeon/report-coach/internal/domain/usage"
)

// BudgetAction decides what happens once a token cap is reached.
type BudgetAction string

// Budget actions.
const (
	BudgetActionWarn   BudgetAction = "warn"
	BudgetActionReject BudgetAction = "reject"
)

const persistTimeout = 2 * time.Second

// CounterStore persists embedding token counters.
// The keys are the shared usage counters, so the usage report sees embedding tokens too.
type CounterStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// BudgetStatus is a point-in-time view of the embedding budget. A limit of 0 means unlimited.
type BudgetStatus struct {
	DailyUsed    int64 `json:"daily_used"`
	DailyLimit   int64 `json:"daily_limit"`
	MonthlyUsed  int64 `json:"monthly_used"`
	MonthlyLimit int64 `json:"monthly_limit"`
}

// BudgetTracker counts embedding tokens per UTC day and month.
// Check reads memory only. Record updates memory and then the store.
type BudgetTracker struct {
	mu           sync.Mutex
	dailyUsed    int64
	monthlyUsed  int64
	dailyLimit   int64
	monthlyLimit int64
	action       BudgetAction
	day          time.Time
	month        time.Time
	store        CounterStore
	now          func() time.Time
	logger       *zap.Logger
}

// NewBudgetTracker creates a tracker. Zero limits disable enforcement but tokens are still counted.
func NewBudgetTracker(dailyLimit, monthlyLimit int64, action BudgetAction, logger *zap.Logger) *BudgetTracker {
	b := &BudgetTracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		now:          time.Now,
		logger:       logger,
	}
	b.day, b.month = periodStarts(b.now())
	return b
}

// WithStore attaches the counter store and seeds memory from it.
func (b *BudgetTracker) WithStore(ctx context.Context, store CounterStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.now()
	if v, err := store.Get(ctx, domusage.CounterKey(domusage.ServiceEmbedding, domusage.PeriodDay, now)); err == nil {
		b.dailyUsed = v
	} else {
		b.logger.Warn("load daily embedding usage", zap.Error(err))
	}
	if v, err := store.Get(ctx, domusage.CounterKey(domusage.ServiceEmbedding, domusage.PeriodMonth, now)); err == nil {
		b.monthlyUsed = v
	} else {
		b.logger.Warn("load monthly embedding usage", zap.Error(err))
	}

	b.logger.Info("embedding budget loaded",
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("monthly_used", b.monthlyUsed),
	)
	return b
}

// Check returns ErrEmbeddingQuotaExceeded when a cap is reached and the action is reject.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()

	over := (b.dailyLimit > 0 && b.dailyUsed >= b.dailyLimit) ||
		(b.monthlyLimit > 0 && b.monthlyUsed >= b.monthlyLimit)
	if !over {
		return nil
	}
	if b.action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}
	b.logger.Warn("embedding token budget exceeded",
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("daily_limit", b.dailyLimit),
		zap.Int64("monthly_used", b.monthlyUsed),
		zap.Int64("monthly_limit", b.monthlyLimit),
	)
	return nil
}

// Record adds consumed tokens. Store failures are logged and never surface.
func (b *BudgetTracker) Record(ctx context.Context, tokens int64) {
	if tokens <= 0 {
		return
	}
	b.mu.Lock()
	b.rollover()
	b.dailyUsed += tokens
	b.monthlyUsed += tokens
	store := b.store
	now := b.now()
	b.mu.Unlock()

	if store == nil {
		return
	}

	// The caller may already be cancelled; the counter write still has to land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	for _, p := range []domusage.Period{domusage.PeriodDay, domusage.PeriodMonth} {
		key := domusage.CounterKey(domusage.ServiceEmbedding, p, now)
		if err := store.IncrBy(ctx, key, tokens); err != nil {
			b.logger.Warn("persist embedding usage", zap.String("key", key), zap.Error(err))
		}
	}
}

// RemainingDaily returns tokens left today, or -1 when unlimited.
func (b *BudgetTracker) RemainingDaily() int64 {
	s := b.Status()
	return remaining(s.DailyLimit, s.DailyUsed)
}

// RemainingMonthly returns tokens left this month, or -1 when unlimited.
func (b *BudgetTracker) RemainingMonthly() int64 {
	s := b.Status()
	return remaining(s.MonthlyLimit, s.MonthlyUsed)
}

// Status snapshots usage and limits.
func (b *BudgetTracker) Status() BudgetStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return BudgetStatus{
		DailyUsed:    b.dailyUsed,
		DailyLimit:   b.dailyLimit,
		MonthlyUsed:  b.monthlyUsed,
		MonthlyLimit: b.monthlyLimit,
	}
}

func (b *BudgetTracker) rollover() {
	day, month := periodStarts(b.now())
	if day.After(b.day) {
		b.dailyUsed = 0
		b.day = day
	}
	if month.After(b.month) {
		b.monthlyUsed = 0
		b.month = month
	}
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

func periodStarts(t time.Time) (time.Time, time.Time) {
	day, _ := domusage.PeriodDay.Bounds(t)
	month, _ := domusage.PeriodMonth.Bounds(t)
	return day, month
}
