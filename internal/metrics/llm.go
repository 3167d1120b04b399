package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Completion Prometheus metrics.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokentally",
			Name:      "llm_requests_total",
			Help:      "Total number of chat completion requests",
		},
		[]string{"provider", "model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tokentally",
			Name:      "llm_request_duration_seconds",
			Help:      "Chat completion request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	LLMErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokentally",
			Name:      "llm_errors_total",
			Help:      "Total chat completion errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokentally",
			Name:      "llm_tokens_total",
			Help:      "Total tokens consumed",
		},
		[]string{"provider", "model", "type"}, // cache_hit / cache_miss / completion / total
	)

	LLMCostTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokentally",
			Name:      "llm_cost_total",
			Help:      "Estimated cost of completed calls",
		},
		[]string{"provider", "model", "currency"},
	)

	LLMBudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tokentally",
			Name:      "llm_budget_tokens_remaining",
			Help:      "Remaining token budget",
		},
		[]string{"provider", "period"},
	)
)

var registerLLMOnce sync.Once

// RegisterLLMMetrics registers Prometheus completion metrics. Safe to call more than once.
func RegisterLLMMetrics() {
	registerLLMOnce.Do(func() {
		prometheus.MustRegister(LLMRequestsTotal)
		prometheus.MustRegister(LLMRequestDuration)
		prometheus.MustRegister(LLMErrorsTotal)
		prometheus.MustRegister(LLMTokensTotal)
		prometheus.MustRegister(LLMCostTotal)
		prometheus.MustRegister(LLMBudgetTokensRemaining)
	})
}
