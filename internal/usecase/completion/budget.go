package completion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tokentally/internal/domain"
)

// BudgetAction selects what happens once a window is used up.
type BudgetAction string

const (
	// BudgetActionWarn logs and lets the call through.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject fails the call with domain.ErrBudgetExceeded.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore keeps window counters outside the process.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

const storeWriteTimeout = 2 * time.Second

// budgetWindow counts provider-reported total_tokens within one UTC calendar period.
type budgetWindow struct {
	name   string // "daily" or "monthly", also the key segment
	layout string // time layout of the key suffix
	floor  func(time.Time) time.Time
	limit  int64 // 0 = unlimited
	used   int64
	start  time.Time
}

func newDailyWindow(limit int64, now time.Time) *budgetWindow {
	w := &budgetWindow{name: "daily", layout: "2006-01-02", floor: startOfDay, limit: limit}
	w.start = w.floor(now)
	return w
}

func newMonthlyWindow(limit int64, now time.Time) *budgetWindow {
	w := &budgetWindow{name: "monthly", layout: "2006-01", floor: startOfMonth, limit: limit}
	w.start = w.floor(now)
	return w
}

// roll starts a fresh period when now has moved past the current one.
func (w *budgetWindow) roll(now time.Time) {
	if s := w.floor(now); s.After(w.start) {
		w.start = s
		w.used = 0
	}
}

func (w *budgetWindow) exhausted() bool {
	return w.limit > 0 && w.used >= w.limit
}

// remaining is -1 for an unlimited window and never negative otherwise.
func (w *budgetWindow) remaining() int64 {
	if w.limit == 0 {
		return -1
	}
	return max(w.limit-w.used, 0)
}

func (w *budgetWindow) key(provider string, at time.Time) string {
	return fmt.Sprintf("%sbudget:%s:%s:%s", domain.KeyPrefix, provider, w.name, at.Format(w.layout))
}

// BudgetTracker caps the tokens a provider may consume per UTC day and month.
// Only successful calls are counted, using the provider's total_tokens figure.
// Counters live in memory; a BudgetStore, when attached, receives every increment
// and seeds the counters on startup so several processes share one allowance.
type BudgetTracker struct {
	mu       sync.Mutex
	daily    *budgetWindow
	monthly  *budgetWindow
	action   BudgetAction
	provider string
	store    BudgetStore
	now      func() time.Time
	logger   *zap.Logger
}

// NewBudgetTracker creates a tracker. A zero limit leaves that window unlimited.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &BudgetTracker{
		action:   action,
		provider: provider,
		logger:   logger,
	}
	b.setClock(func() time.Time { return time.Now().UTC() })
	b.daily = newDailyWindow(dailyLimit, b.now())
	b.monthly = newMonthlyWindow(monthlyLimit, b.now())
	return b
}

// setClock swaps the time source and re-anchors both windows to it.
func (b *BudgetTracker) setClock(now func() time.Time) {
	b.now = now
	if b.daily != nil {
		b.daily.start = b.daily.floor(now())
		b.monthly.start = b.monthly.floor(now())
	}
}

// WithStore attaches a store and seeds the current windows from it.
// A failed read keeps the in-memory value and is logged.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.now()
	for _, w := range b.windows() {
		w.roll(now)
		key := w.key(b.provider, now)
		val, err := store.Get(ctx, key)
		if err != nil {
			b.logger.Warn("Failed to load budget window", zap.String("key", key), zap.Error(err))
			continue
		}
		w.used = val
	}

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.daily.used),
		zap.Int64("monthly_used", b.monthly.used),
	)
	return b
}

func (b *BudgetTracker) windows() [2]*budgetWindow {
	return [2]*budgetWindow{b.daily, b.monthly}
}

// Check reports whether another call may go out. It never touches the store.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for _, w := range b.windows() {
		w.roll(now)
		if !w.exhausted() {
			continue
		}
		if b.action == BudgetActionReject {
			return fmt.Errorf("%s limit %d reached: %w", w.name, w.limit, domain.ErrBudgetExceeded)
		}
		b.logger.Warn("Token budget exceeded",
			zap.String("provider", b.provider),
			zap.String("window", w.name),
			zap.Int64("used", w.used),
			zap.Int64("limit", w.limit),
		)
		return nil
	}
	return nil
}

// Record adds the tokens of a completed call to both windows, then to the store.
// Store failures are logged; the in-memory count stays authoritative.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	now := b.now()
	keys := make([]string, 0, 2)
	for _, w := range b.windows() {
		w.roll(now)
		w.used += tokens
		keys = append(keys, w.key(b.provider, now))
	}
	store := b.store
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Detached from the caller's context: a cancelled request must not lose the increment.
	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()

	for _, key := range keys {
		if err := store.IncrBy(ctx, key, tokens); err != nil {
			b.logger.Warn("Failed to persist budget window", zap.String("key", key), zap.Error(err))
		}
	}
}

// RemainingDaily returns tokens left today, -1 when unlimited.
func (b *BudgetTracker) RemainingDaily() int64 {
	return b.read(b.daily, (*budgetWindow).remaining)
}

// RemainingMonthly returns tokens left this month, -1 when unlimited.
func (b *BudgetTracker) RemainingMonthly() int64 {
	return b.read(b.monthly, (*budgetWindow).remaining)
}

// DailyUsed returns tokens counted today.
func (b *BudgetTracker) DailyUsed() int64 {
	return b.read(b.daily, func(w *budgetWindow) int64 { return w.used })
}

// MonthlyUsed returns tokens counted this month.
func (b *BudgetTracker) MonthlyUsed() int64 {
	return b.read(b.monthly, func(w *budgetWindow) int64 { return w.used })
}

// DailyLimit returns the daily cap.
func (b *BudgetTracker) DailyLimit() int64 { return b.daily.limit }

// MonthlyLimit returns the monthly cap.
func (b *BudgetTracker) MonthlyLimit() int64 { return b.monthly.limit }

func (b *BudgetTracker) read(w *budgetWindow, f func(*budgetWindow) int64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	w.roll(b.now())
	return f(w)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
