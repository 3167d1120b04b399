package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tokentally/internal/domain"
	domusage "github.com/kailas-cloud/tokentally/internal/domain/usage"
	healthuc "github.com/kailas-cloud/tokentally/internal/usecase/health"
	"github.com/kailas-cloud/tokentally/internal/metrics"
)

const maxBodyBytes = 1 << 20

// Server serves the tokentally HTTP API.
type Server struct {
	caller        Caller
	usage         UsageReporter
	health        HealthReporter
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(caller Caller, usage UsageReporter, health HealthReporter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		caller: caller,
		usage:  usage,
		health: health,
		logger: logger,
		errorHandlers: []errorHandler{
			sentinelHandler(domain.ErrEmptyRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
			sentinelHandler(domain.ErrUnsupportedOption, http.StatusBadRequest, ErrorCodeUnsupportedOption),
			sentinelHandler(domain.ErrBudgetExceeded, http.StatusPaymentRequired, ErrorCodeBudgetExceeded),
			sentinelHandler(domain.ErrNoChoices, http.StatusBadGateway, ErrorCodeProviderError),
			sentinelHandler(domain.ErrMissingUsage, http.StatusBadGateway, ErrorCodeProviderError),
			sentinelHandler(domain.ErrProviderError, http.StatusBadGateway, ErrorCodeProviderError),
		},
	}
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Post("/v1/call", s.Call)
	r.Get("/v1/usage", s.GetUsage)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
}

// Call handles POST /v1/call.
func (s *Server) Call(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: trailing data")
		return
	}

	msgs, err := messagesFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	res, err := s.caller.Complete(r.Context(), msgs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CallResponse{
		Content: res.Content,
		Model:   res.Model,
		Usage: CallUsage{
			Cost:       res.Cost,
			Currency:   s.caller.Pricing().Currency,
			CacheHit:   res.Usage.PromptCacheHitTokens,
			CacheMiss:  res.Usage.PromptCacheMissTokens,
			Completion: res.Usage.CompletionTokens,
			Total:      res.Usage.TotalTokens,
		},
	})
}

// GetUsage handles GET /v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("period")
	period := domusage.ParsePeriod(raw)
	if raw != "" && string(period) != raw {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			fmt.Sprintf("period must be one of day, month, total; got %q", raw))
		return
	}

	report := s.usage.GetReport(r.Context(), period)
	totals := report.Totals()
	b := report.Budget()

	resp := UsageResponse{
		Period: string(report.Period()),
		Usage: UsageTotals{
			Calls:                 totals.Calls,
			Cost:                  totals.Cost,
			Currency:              s.caller.Pricing().Currency,
			PromptCacheHitTokens:  totals.PromptCacheHitTokens,
			PromptCacheMissTokens: totals.PromptCacheMissTokens,
			CompletionTokens:      totals.CompletionTokens,
			TotalTokens:           totals.TotalTokens,
		},
		Budget: BudgetStatus{
			TokensLimit:     b.TokensLimit(),
			TokensUsed:      b.TokensUsed(),
			TokensRemaining: b.TokensRemaining(),
			IsExhausted:     b.IsExhausted(),
			ResetsAt:        millisToRFC3339(b.ResetsAt()),
		},
	}

	if report.PeriodStart() > 0 {
		resp.PeriodStartAt = millisToRFC3339(report.PeriodStart())
		resp.PeriodEndAt = millisToRFC3339(report.PeriodEnd())
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

func messagesFromRequest(req CallRequest) ([]domain.Message, error) {
	switch {
	case req.Prompt != nil && req.Messages != nil:
		return nil, errors.New("exactly one of prompt or messages is allowed")
	case req.Prompt != nil:
		return domain.Prompt(*req.Prompt), nil
	case len(req.Messages) == 0:
		return nil, errors.New("prompt or messages is required")
	}

	msgs := make([]domain.Message, len(req.Messages))
	for i, m := range req.Messages {
		if m.Role == "" {
			return nil, fmt.Errorf("messages[%d].role is required", i)
		}
		msgs[i] = domain.Message{Role: domain.Role(m.Role), Content: m.Content}
	}
	return msgs, nil
}

func millisToRFC3339(ms int64) *string {
	if ms <= 0 {
		return nil
	}
	s := time.UnixMilli(ms).UTC().Format(time.RFC3339)
	return &s
}
