package tokentally

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tokentally/internal/domain"
	openaiTransport "github.com/kailas-cloud/tokentally/internal/transport/openai"
	completionuc "github.com/kailas-cloud/tokentally/internal/usecase/completion"
)

const defaultProvider = "deepseek"

// LLM is a chat completion client that keeps running usage totals.
type LLM struct {
	tracker *completionuc.Tracker
	budget  *completionuc.BudgetTracker
	pricing Pricing
	obs     *callObserver
}

// New creates an LLM for the given model and OpenAI-compatible base URL.
// No network I/O happens here and all totals start at zero.
func New(model, baseURL, apiKey string, opts ...Option) (*LLM, error) {
	if model == "" {
		return nil, errors.New("tokentally: model is required")
	}
	if baseURL == "" {
		return nil, errors.New("tokentally: base URL is required")
	}

	cfg := &llmConfig{
		provider: defaultProvider,
		pricing:  DefaultPricing(),
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.dailyLimit < 0 || cfg.monthlyLimit < 0 {
		return nil, errors.New("tokentally: token budget limits must not be negative")
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	obs, err := newObserver(cfg.provider, model, cfg.pricing.Currency, logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	tcfg := &openaiTransport.Config{
		APIKey:   apiKey,
		BaseURL:  baseURL,
		Model:    model,
		Provider: cfg.provider,
		Options:  cfg.options,
		Logger:   logger,
	}
	if cfg.httpClient != nil {
		tcfg.HTTPClient = cfg.httpClient
	}
	completer := openaiTransport.NewCompleter(tcfg)

	l := &LLM{pricing: cfg.pricing, obs: obs}

	var budgetChecker completionuc.BudgetChecker
	if cfg.dailyLimit > 0 || cfg.monthlyLimit > 0 {
		action := completionuc.BudgetActionWarn
		if cfg.rejectOver {
			action = completionuc.BudgetActionReject
		}
		l.budget = completionuc.NewBudgetTracker(cfg.provider, cfg.dailyLimit, cfg.monthlyLimit, action, logger)
		budgetChecker = l.budget
	}

	l.tracker = completionuc.NewTracker(completer, cfg.provider, model, cfg.pricing.toDomain(), budgetChecker, logger)
	return l, nil
}

// Call sends prompt as a single user message and returns the reply text.
func (l *LLM) Call(ctx context.Context, prompt string) (string, error) {
	return l.complete(ctx, "call", domain.Prompt(prompt))
}

// CallMessages sends a message sequence unchanged and returns the reply text.
func (l *LLM) CallMessages(ctx context.Context, msgs []Message) (string, error) {
	return l.complete(ctx, "call_messages", messagesToDomain(msgs))
}

func (l *LLM) complete(ctx context.Context, op string, msgs []domain.Message) (reply string, err error) {
	start := time.Now()
	var delta Usage
	defer func() { l.obs.observe(op, start, delta, err) }()

	res, err := l.tracker.Complete(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("tokentally: %w", err)
	}

	delta = Usage{
		Calls:                 1,
		Cost:                  res.Cost,
		PromptCacheHitTokens:  int64(res.Usage.PromptCacheHitTokens),
		PromptCacheMissTokens: int64(res.Usage.PromptCacheMissTokens),
		CompletionTokens:      int64(res.Usage.CompletionTokens),
		TotalTokens:           int64(res.Usage.TotalTokens),
	}
	return res.Content, nil
}

// Usage returns a snapshot of the running totals.
func (l *LLM) Usage() Usage {
	return usageFromSnapshot(l.tracker.Totals())
}

// Pricing returns the rates used for cost estimates.
func (l *LLM) Pricing() Pricing {
	return l.pricing
}

// RemainingTokens reports the tokens left in the daily and monthly budgets.
// -1 means the period is unlimited.
func (l *LLM) RemainingTokens() (daily, monthly int64) {
	if l.budget == nil {
		return -1, -1
	}
	return l.budget.RemainingDaily(), l.budget.RemainingMonthly()
}
