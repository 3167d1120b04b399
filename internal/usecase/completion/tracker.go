package completion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tokentally/internal/domain"
	"github.com/kailas-cloud/tokentally/internal/domain/usage"
	"github.com/kailas-cloud/tokentally/internal/domain/usage/pricing"
	"github.com/kailas-cloud/tokentally/internal/metrics"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// Result is the outcome of one tracked call: the reply plus what it added to the totals.
type Result struct {
	Content string
	Model   string
	Usage   usage.Usage
	Cost    float64
}

// Tracker wraps a Completer and accumulates token usage and estimated cost.
// Transport metrics (requests, duration, errors) are recorded in transport/openai.
// This layer owns the running totals, pricing, budget and the per-call usage line.
type Tracker struct {
	inner    domain.Completer
	provider string
	model    string
	pricing  pricing.Pricing
	budget   BudgetChecker
	totals   usage.Totals
	logger   *zap.Logger
}

// NewTracker wraps a completer. budget can be nil (unlimited).
func NewTracker(
	inner domain.Completer, provider, model string,
	p pricing.Pricing, budget BudgetChecker, logger *zap.Logger,
) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		inner:    inner,
		provider: provider,
		model:    model,
		pricing:  p,
		budget:   budget,
		logger:   logger,
	}
}

// Call sends a single free-text prompt as one user message and returns the reply text.
func (t *Tracker) Call(ctx context.Context, prompt string) (string, error) {
	res, err := t.Complete(ctx, domain.Prompt(prompt))
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// CallMessages sends a pre-formed message sequence and returns the reply text.
func (t *Tracker) CallMessages(ctx context.Context, msgs []domain.Message) (string, error) {
	res, err := t.Complete(ctx, msgs)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// Complete delegates to the inner completer and records usage.
// Totals are touched only after the provider returned a reply and a usage record.
func (t *Tracker) Complete(ctx context.Context, msgs []domain.Message) (Result, error) {
	if t.budget != nil {
		if err := t.budget.Check(ctx); err != nil {
			t.logger.Error("Budget exceeded",
				zap.String("provider", t.provider),
				zap.String("model", t.model),
				zap.Error(err),
			)
			return Result{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()

	resp, err := t.inner.Complete(ctx, msgs)

	duration := time.Since(start)

	if err != nil {
		t.logger.Error("Completion request failed",
			zap.String("provider", t.provider),
			zap.String("model", t.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return Result{}, fmt.Errorf("complete: %w", err)
	}

	u := resp.Usage
	cost := t.pricing.Cost(u)
	t.totals.Add(u, cost)

	t.recordMetrics(u, cost)
	t.recordBudget(u.TotalTokens)

	t.logger.Info(fmt.Sprintf("[USAGE] est. cost=%.6f, cache_hit=%d, cache_miss=%d, completion=%d, total=%d",
		cost, u.PromptCacheHitTokens, u.PromptCacheMissTokens, u.CompletionTokens, u.TotalTokens),
		zap.String("provider", t.provider),
		zap.String("model", t.model),
		zap.Duration("duration", duration),
	)

	return Result{
		Content: resp.Content,
		Model:   resp.Model,
		Usage:   u,
		Cost:    cost,
	}, nil
}

// Totals returns the running totals since construction.
func (t *Tracker) Totals() usage.Snapshot {
	return t.totals.Snapshot()
}

// Pricing returns the unit prices used for cost estimates.
func (t *Tracker) Pricing() pricing.Pricing {
	return t.pricing
}

func (t *Tracker) recordMetrics(u usage.Usage, cost float64) {
	t.addTokens("cache_hit", u.PromptCacheHitTokens)
	t.addTokens("cache_miss", u.PromptCacheMissTokens)
	t.addTokens("completion", u.CompletionTokens)
	t.addTokens("total", u.TotalTokens)
	if cost > 0 {
		metrics.LLMCostTotal.WithLabelValues(t.provider, t.model, t.pricing.Currency).Add(cost)
	}
}

// addTokens skips non-positive values: Prometheus counters panic on negative Add.
func (t *Tracker) addTokens(kind string, n int) {
	if n > 0 {
		metrics.LLMTokensTotal.WithLabelValues(t.provider, t.model, kind).Add(float64(n))
	}
}

func (t *Tracker) recordBudget(totalTokens int) {
	if t.budget == nil || totalTokens <= 0 {
		return
	}
	t.budget.Record(int64(totalTokens))
	remaining := metrics.LLMBudgetTokensRemaining
	remaining.WithLabelValues(t.provider, "daily").Set(float64(t.budget.RemainingDaily()))
	remaining.WithLabelValues(t.provider, "monthly").Set(float64(t.budget.RemainingMonthly()))
}
