package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tokentally/internal/domain"
	domusage "github.com/kailas-cloud/tokentally/internal/domain/usage"
	"github.com/kailas-cloud/tokentally/internal/domain/usage/budget"
	"github.com/kailas-cloud/tokentally/internal/domain/usage/pricing"
	completionuc "github.com/kailas-cloud/tokentally/internal/usecase/completion"
	healthuc "github.com/kailas-cloud/tokentally/internal/usecase/health"
)

// --- Mocks ---

type mockCaller struct {
	result   completionuc.Result
	err      error
	received []domain.Message
	calls    int
}

func (m *mockCaller) Complete(_ context.Context, msgs []domain.Message) (completionuc.Result, error) {
	m.calls++
	m.received = msgs
	return m.result, m.err
}

func (m *mockCaller) Pricing() pricing.Pricing { return pricing.Default() }

type mockUsage struct {
	report domusage.Report
	period domusage.Period
}

func (m *mockUsage) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	m.period = period
	return m.report
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func newTestRouter(caller *mockCaller, apiKeys ...string) (http.Handler, *mockUsage) {
	usage := &mockUsage{report: domusage.NewReport(domusage.PeriodTotal, 0, 0, domusage.Snapshot{}, budget.Unlimited())}
	health := &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}}
	srv := NewServer(caller, usage, health, nil)
	return NewRouter(srv, apiKeys, nil), usage
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- POST /v1/call ---

func TestCall_Prompt(t *testing.T) {
	caller := &mockCaller{result: completionuc.Result{
		Content: "pong",
		Model:   "deepseek-chat",
		Usage: domusage.Usage{
			PromptCacheHitTokens:  1,
			PromptCacheMissTokens: 2,
			CompletionTokens:      3,
			TotalTokens:           6,
		},
		Cost: 0.0000445,
	}}
	h, _ := newTestRouter(caller)

	rr := doRequest(t, h, http.MethodPost, "/v1/call", `{"prompt":"ping"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp CallResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Content != "pong" || resp.Model != "deepseek-chat" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Usage.CacheHit != 1 || resp.Usage.CacheMiss != 2 || resp.Usage.Completion != 3 || resp.Usage.Total != 6 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
	if resp.Usage.Currency != "CNY" {
		t.Errorf("expected CNY, got %q", resp.Usage.Currency)
	}

	want := []domain.Message{{Role: domain.RoleUser, Content: "ping"}}
	if len(caller.received) != 1 || caller.received[0] != want[0] {
		t.Errorf("expected %v, got %v", want, caller.received)
	}
}

func TestCall_Messages(t *testing.T) {
	caller := &mockCaller{result: completionuc.Result{Content: "ok"}}
	h, _ := newTestRouter(caller)

	body := `{"messages":[{"role":"system","content":"be brief"},{"role":"user","content":"hi"}]}`
	rr := doRequest(t, h, http.MethodPost, "/v1/call", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if len(caller.received) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(caller.received))
	}
	if caller.received[0].Role != domain.RoleSystem || caller.received[1].Content != "hi" {
		t.Errorf("messages not passed through: %v", caller.received)
	}
}

func TestCall_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code ErrorCode
	}{
		{"malformed json", `{"prompt":`, ErrorCodeBadRequest},
		{"unknown field", `{"prompt":"x","temperature":1}`, ErrorCodeBadRequest},
		{"trailing data", `{"prompt":"x"}{"prompt":"y"}`, ErrorCodeBadRequest},
		{"empty body object", `{}`, ErrorCodeValidationFailed},
		{"both prompt and messages", `{"prompt":"x","messages":[{"role":"user","content":"y"}]}`, ErrorCodeValidationFailed},
		{"empty messages", `{"messages":[]}`, ErrorCodeValidationFailed},
		{"missing role", `{"messages":[{"content":"y"}]}`, ErrorCodeValidationFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			caller := &mockCaller{}
			h, _ := newTestRouter(caller)

			rr := doRequest(t, h, http.MethodPost, "/v1/call", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			if got := decodeError(t, rr).Code; got != tc.code {
				t.Errorf("expected code %q, got %q", tc.code, got)
			}
			if caller.calls != 0 {
				t.Error("provider must not be called on invalid input")
			}
		})
	}
}

func TestCall_DomainErrors(t *testing.T) {
	apiErr := &openai.APIError{HTTPStatusCode: 401, Message: "bad key"}
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"empty request", domain.ErrEmptyRequest, http.StatusBadRequest, ErrorCodeValidationFailed},
		{"unsupported option", fmt.Errorf("apply options: %w", domain.ErrUnsupportedOption),
			http.StatusBadRequest, ErrorCodeUnsupportedOption},
		{"budget", fmt.Errorf("budget check: %w", domain.ErrBudgetExceeded),
			http.StatusPaymentRequired, ErrorCodeBudgetExceeded},
		{"provider", fmt.Errorf("complete: %w: %w", domain.ErrProviderError, apiErr),
			http.StatusBadGateway, ErrorCodeProviderError},
		{"no choices", domain.ErrNoChoices, http.StatusBadGateway, ErrorCodeProviderError},
		{"missing usage", domain.ErrMissingUsage, http.StatusBadGateway, ErrorCodeProviderError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrorCodeInternalError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestRouter(&mockCaller{err: tc.err})

			rr := doRequest(t, h, http.MethodPost, "/v1/call", `{"prompt":"x"}`)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			resp := decodeError(t, rr)
			if resp.Code != tc.code {
				t.Errorf("expected code %q, got %q", tc.code, resp.Code)
			}
			if strings.Contains(resp.Message, "bad key") {
				t.Error("provider error details must not leak to clients")
			}
		})
	}
}

// --- GET /v1/usage ---

func TestGetUsage(t *testing.T) {
	h, usage := newTestRouter(&mockCaller{})
	usage.report = domusage.NewReport(
		domusage.PeriodDay,
		1_760_832_000_000, 1_760_918_400_000,
		domusage.Snapshot{Calls: 2, Cost: 0.25, PromptCacheHitTokens: 10, TotalTokens: 40},
		budget.New(1000, 40, 960, 1_760_918_400_000),
	)

	rr := doRequest(t, h, http.MethodGet, "/v1/usage?period=day", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if usage.period != domusage.PeriodDay {
		t.Errorf("expected day period, got %q", usage.period)
	}

	var resp UsageResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Usage.Calls != 2 || resp.Usage.Cost != 0.25 || resp.Usage.TotalTokens != 40 {
		t.Errorf("unexpected totals: %+v", resp.Usage)
	}
	if resp.Budget.TokensLimit != 1000 || resp.Budget.TokensRemaining != 960 || resp.Budget.IsExhausted {
		t.Errorf("unexpected budget: %+v", resp.Budget)
	}
	if resp.PeriodStartAt == nil || *resp.PeriodStartAt != "2025-10-19T00:00:00Z" {
		t.Errorf("unexpected period start: %v", resp.PeriodStartAt)
	}
	if resp.Budget.ResetsAt == nil {
		t.Error("expected resets_at")
	}
}

func TestGetUsage_DefaultsToTotal(t *testing.T) {
	h, usage := newTestRouter(&mockCaller{})

	rr := doRequest(t, h, http.MethodGet, "/v1/usage", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if usage.period != domusage.PeriodTotal {
		t.Errorf("expected total period, got %q", usage.period)
	}

	var resp UsageResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PeriodStartAt != nil {
		t.Error("total period must have no bounds")
	}
}

func TestGetUsage_InvalidPeriod(t *testing.T) {
	h, _ := newTestRouter(&mockCaller{})

	rr := doRequest(t, h, http.MethodGet, "/v1/usage?period=week", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

// --- GET /health ---

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		report healthuc.Report
		status int
	}{
		{"healthy", healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{
			"provider": healthuc.CheckOK,
		}}, http.StatusOK},
		{"degraded", healthuc.Report{Status: healthuc.Degraded, Checks: map[string]healthuc.CheckResult{
			"provider": healthuc.CheckError,
		}}, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewServer(&mockCaller{}, &mockUsage{}, &mockHealth{report: tc.report}, nil)
			h := NewRouter(srv, []string{"secret"}, nil)

			rr := doRequest(t, h, http.MethodGet, "/health", "")
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != string(tc.report.Status) {
				t.Errorf("expected %q, got %q", tc.report.Status, resp.Status)
			}
			if resp.Checks["provider"] != string(tc.report.Checks["provider"]) {
				t.Errorf("unexpected checks: %v", resp.Checks)
			}
		})
	}
}

// --- router ---

func TestRouter_AuthProtectsCall(t *testing.T) {
	caller := &mockCaller{result: completionuc.Result{Content: "ok"}}
	h, _ := newTestRouter(caller, "secret")

	rr := doRequest(t, h, http.MethodPost, "/v1/call", `{"prompt":"x"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if caller.calls != 0 {
		t.Error("provider must not be called without auth")
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/call", strings.NewReader(`{"prompt":"x"}`))
	req.Header.Set("Authorization", "Bearer secret")
	ok := httptest.NewRecorder()
	h.ServeHTTP(ok, req)
	if ok.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", ok.Code)
	}
}

func TestRouter_RequestIDAndMetrics(t *testing.T) {
	h, _ := newTestRouter(&mockCaller{})

	rr := doRequest(t, h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRouter_NotFoundIsJSON(t *testing.T) {
	h, _ := newTestRouter(&mockCaller{})

	rr := doRequest(t, h, http.MethodGet, "/v1/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
}

func TestJSONRecoverer(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("kaboom") })
	h := JSONRecoverer(zap.NewNop())(panicky)

	rr := doRequest(t, h, http.MethodGet, "/", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if decodeError(t, rr).Code != ErrorCodeInternalError {
		t.Error("expected internal_error code")
	}
}
