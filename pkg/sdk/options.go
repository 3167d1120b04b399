package tokentally

import (
	"maps"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the LLM.
type Option interface {
	apply(*llmConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*llmConfig)

func (f optionFunc) apply(c *llmConfig) { f(c) }

type llmConfig struct {
	provider string
	options  map[string]any
	pricing  Pricing

	httpClient HTTPDoer
	logger     *zap.Logger
	metricsReg prometheus.Registerer

	dailyLimit   int64
	monthlyLimit int64
	rejectOver   bool
}

// WithOption sets one provider request parameter, such as "temperature" or "max_tokens".
// Keys and value types are checked on every call; an unknown key fails the call
// with ErrUnsupportedOption before anything is sent.
func WithOption(key string, value any) Option {
	return optionFunc(func(c *llmConfig) {
		if c.options == nil {
			c.options = make(map[string]any)
		}
		c.options[key] = value
	})
}

// WithOptions merges a set of provider request parameters. See WithOption.
func WithOptions(opts map[string]any) Option {
	return optionFunc(func(c *llmConfig) {
		if c.options == nil {
			c.options = make(map[string]any, len(opts))
		}
		maps.Copy(c.options, opts)
	})
}

// WithPricing overrides the per-million-token rates used for cost estimates.
// Defaults to DefaultPricing().
func WithPricing(p Pricing) Option {
	return optionFunc(func(c *llmConfig) {
		c.pricing = p
	})
}

// WithProvider sets the provider name used in metric labels and budget keys.
// Default: "deepseek".
func WithProvider(name string) Option {
	return optionFunc(func(c *llmConfig) {
		c.provider = name
	})
}

// HTTPDoer sends one HTTP request. *http.Client satisfies it, as do
// wrappers that add tracing, proxies or recording.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WithHTTPClient replaces the HTTP client used to reach the provider.
func WithHTTPClient(hc HTTPDoer) Option {
	return optionFunc(func(c *llmConfig) {
		c.httpClient = hc
	})
}

// WithLogger enables structured logging, including the per-call usage line.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *llmConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (calls, durations, tokens, cost)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *llmConfig) {
		c.metricsReg = reg
	})
}

// WithTokenBudget caps total tokens per UTC day and month (0 = unlimited).
// With reject set, calls fail with ErrBudgetExceeded once a limit is reached;
// otherwise the overrun is logged and the call goes through.
func WithTokenBudget(daily, monthly int64, reject bool) Option {
	return optionFunc(func(c *llmConfig) {
		c.dailyLimit = daily
		c.monthlyLimit = monthly
		c.rejectOver = reject
	})
}
