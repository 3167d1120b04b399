package tokentally

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
	cost     *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokentally",
			Subsystem: "sdk",
			Name:      "calls_total",
			Help:      "Total SDK completion calls by provider, model and status.",
		}, []string{"provider", "model", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tokentally",
			Subsystem: "sdk",
			Name:      "call_duration_seconds",
			Help:      "SDK completion call duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider", "model"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokentally",
			Subsystem: "sdk",
			Name:      "tokens_total",
			Help:      "Tokens consumed through the SDK by counter type.",
		}, []string{"provider", "model", "type"}),
		cost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokentally",
			Subsystem: "sdk",
			Name:      "cost_total",
			Help:      "Estimated cost of SDK calls.",
		}, []string{"provider", "model", "currency"}),
	}
	if err := registerOrReuse(reg, &m.calls); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.tokens); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.cost); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("tokentally: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("tokentally: register metric: %w", err)
	}
	return nil
}

// callObserver provides logging and metrics for SDK calls.
type callObserver struct {
	provider string
	model    string
	currency string
	logger   *zap.Logger
	metrics  *sdkMetrics
}

func newObserver(provider, model, currency string, logger *zap.Logger, reg prometheus.Registerer) (*callObserver, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &callObserver{provider: provider, model: model, currency: currency, logger: logger, metrics: m}, nil
}

// observe records one call. delta is the per-call increment; it is zero on error.
func (o *callObserver) observe(op string, start time.Time, delta Usage, err error) {
	dur := time.Since(start)

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.calls.WithLabelValues(o.provider, o.model, status).Inc()
		o.metrics.duration.WithLabelValues(o.provider, o.model).Observe(dur.Seconds())
		if err == nil {
			o.addTokens("cache_hit", delta.PromptCacheHitTokens)
			o.addTokens("cache_miss", delta.PromptCacheMissTokens)
			o.addTokens("completion", delta.CompletionTokens)
			o.addTokens("total", delta.TotalTokens)
			if delta.Cost > 0 {
				o.metrics.cost.WithLabelValues(o.provider, o.model, o.currency).Add(delta.Cost)
			}
		}
	}

	if err != nil {
		o.logger.Warn("operation failed",
			zap.String("op", op),
			zap.Duration("duration", dur),
			zap.Error(err),
		)
		return
	}
	o.logger.Debug("operation completed",
		zap.String("op", op),
		zap.Duration("duration", dur),
	)
}

func (o *callObserver) addTokens(kind string, n int64) {
	if n > 0 {
		o.metrics.tokens.WithLabelValues(o.provider, o.model, kind).Add(float64(n))
	}
}
