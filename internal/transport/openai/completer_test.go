package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tokentally/internal/domain"
	"github.com/kailas-cloud/tokentally/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterLLMMetrics()
	os.Exit(m.Run())
}

// chatRequest mirrors the fields of the outgoing request the tests inspect.
type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	Stop        []string `json:"stop"`
	Seed        *int     `json:"seed"`
}

// chatResponse builds an OpenAI-compatible body; usage is passed raw so fields can be omitted.
func chatResponse(content string, usage map[string]any) map[string]any {
	resp := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "deepseek-chat",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	}
	if usage != nil {
		resp["usage"] = usage
	}
	return resp
}

func newFakeProvider(t *testing.T, body any, captured *chatRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestCompleter(baseURL string, opts map[string]any) *Completer {
	return NewCompleter(&Config{
		APIKey:   "test-key",
		BaseURL:  baseURL,
		Model:    "deepseek-chat",
		Provider: "test",
		Options:  opts,
		Logger:   zap.NewNop(),
	})
}

func TestCompleter_Complete(t *testing.T) {
	var got chatRequest
	server := newFakeProvider(t, chatResponse("hi there", map[string]any{
		"prompt_tokens":            30,
		"prompt_cache_hit_tokens":  10,
		"prompt_cache_miss_tokens": 20,
		"completion_tokens":        5,
		"total_tokens":             35,
	}), &got)

	c := newTestCompleter(server.URL, nil)
	result, err := c.Complete(context.Background(), domain.Prompt("hello"))
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if result.Content != "hi there" {
		t.Errorf("Content = %q, want %q", result.Content, "hi there")
	}
	if result.Model != "deepseek-chat" {
		t.Errorf("Model = %q", result.Model)
	}
	u := result.Usage
	if u.PromptCacheHitTokens != 10 || u.PromptCacheMissTokens != 20 ||
		u.CompletionTokens != 5 || u.TotalTokens != 35 {
		t.Errorf("unexpected usage: %+v", u)
	}

	if got.Model != "deepseek-chat" {
		t.Errorf("request model = %q", got.Model)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "hello" {
		t.Errorf("request messages = %+v, want [{user hello}]", got.Messages)
	}
}

func TestCompleter_PassesMessagesThrough(t *testing.T) {
	var got chatRequest
	server := newFakeProvider(t, chatResponse("ok", map[string]any{"total_tokens": 1}), &got)

	msgs := []domain.Message{
		{Role: domain.RoleSystem, Content: "be brief"},
		{Role: domain.RoleUser, Content: "q1"},
		{Role: domain.RoleAssistant, Content: "a1"},
		{Role: domain.RoleUser, Content: "q2"},
	}
	c := newTestCompleter(server.URL, nil)
	if _, err := c.Complete(context.Background(), msgs); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if len(got.Messages) != len(msgs) {
		t.Fatalf("expected %d messages, got %d", len(msgs), len(got.Messages))
	}
	for i, m := range msgs {
		if got.Messages[i].Role != string(m.Role) || got.Messages[i].Content != m.Content {
			t.Errorf("message[%d] = %+v, want %+v", i, got.Messages[i], m)
		}
	}
}

func TestCompleter_MissingCountersDefaultToZero(t *testing.T) {
	server := newFakeProvider(t, chatResponse("ok", map[string]any{
		"completion_tokens": 7,
	}), nil)

	c := newTestCompleter(server.URL, nil)
	result, err := c.Complete(context.Background(), domain.Prompt("hello"))
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	u := result.Usage
	if u.PromptCacheHitTokens != 0 || u.PromptCacheMissTokens != 0 || u.TotalTokens != 0 {
		t.Errorf("absent counters should be zero, got %+v", u)
	}
	if u.CompletionTokens != 7 {
		t.Errorf("CompletionTokens = %d, want 7", u.CompletionTokens)
	}
}

func TestCompleter_EmptyUsageObject(t *testing.T) {
	server := newFakeProvider(t, chatResponse("ok", map[string]any{}), nil)

	c := newTestCompleter(server.URL, nil)
	result, err := c.Complete(context.Background(), domain.Prompt("hello"))
	if err != nil {
		t.Fatalf("an empty usage object is not an error: %v", err)
	}
	if result.Usage.TotalTokens != 0 {
		t.Errorf("TotalTokens = %d, want 0", result.Usage.TotalTokens)
	}
}

func TestCompleter_MissingUsage(t *testing.T) {
	server := newFakeProvider(t, chatResponse("ok", nil), nil)

	c := newTestCompleter(server.URL, nil)
	_, err := c.Complete(context.Background(), domain.Prompt("hello"))
	if !errors.Is(err, domain.ErrMissingUsage) {
		t.Fatalf("expected ErrMissingUsage, got %v", err)
	}
}

func TestCompleter_NoChoices(t *testing.T) {
	body := chatResponse("", map[string]any{"total_tokens": 3})
	body["choices"] = []any{}
	server := newFakeProvider(t, body, nil)

	c := newTestCompleter(server.URL, nil)
	_, err := c.Complete(context.Background(), domain.Prompt("hello"))
	if !errors.Is(err, domain.ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
}

func TestCompleter_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "Authentication Fails, Your api key is invalid",
				"type":    "authentication_error",
			},
		})
	}))
	defer server.Close()

	c := newTestCompleter(server.URL, nil)
	_, err := c.Complete(context.Background(), domain.Prompt("hello"))
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !errors.Is(err, domain.ErrProviderError) {
		t.Errorf("expected ErrProviderError, got %v", err)
	}

	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("native go-openai error must stay in the chain, got %v", err)
	}
	if apiErr.HTTPStatusCode != http.StatusUnauthorized {
		t.Errorf("HTTPStatusCode = %d, want 401", apiErr.HTTPStatusCode)
	}
}

func TestCompleter_NoRetryOnServerError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "overloaded", "type": "server_error"},
		})
	}))
	defer server.Close()

	c := newTestCompleter(server.URL, nil)
	if _, err := c.Complete(context.Background(), domain.Prompt("hello")); err == nil {
		t.Fatal("expected error for 503 response")
	}
	if hits.Load() != 1 {
		t.Errorf("expected exactly one request, got %d", hits.Load())
	}
}

func TestCompleter_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [`))
	}))
	defer server.Close()

	c := newTestCompleter(server.URL, nil)
	_, err := c.Complete(context.Background(), domain.Prompt("hello"))
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError for malformed body, got %v", err)
	}
}

func TestCompleter_AppliesOptions(t *testing.T) {
	var got chatRequest
	server := newFakeProvider(t, chatResponse("ok", map[string]any{"total_tokens": 1}), &got)

	c := newTestCompleter(server.URL, map[string]any{
		"temperature": 0.7,
		"max_tokens":  256,
		"stop":        []any{"END"},
		"seed":        42,
	})
	if _, err := c.Complete(context.Background(), domain.Prompt("hello")); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if got.Temperature < 0.69 || got.Temperature > 0.71 {
		t.Errorf("temperature = %v, want 0.7", got.Temperature)
	}
	if got.MaxTokens != 256 {
		t.Errorf("max_tokens = %d, want 256", got.MaxTokens)
	}
	if len(got.Stop) != 1 || got.Stop[0] != "END" {
		t.Errorf("stop = %v, want [END]", got.Stop)
	}
	if got.Seed == nil || *got.Seed != 42 {
		t.Errorf("seed = %v, want 42", got.Seed)
	}
}

func TestCompleter_UnsupportedOptionFailsBeforeDispatch(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	c := newTestCompleter(server.URL, map[string]any{"drop_params": true})
	_, err := c.Complete(context.Background(), domain.Prompt("hello"))
	if !errors.Is(err, domain.ErrUnsupportedOption) {
		t.Fatalf("expected ErrUnsupportedOption, got %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("no request should reach the provider, got %d", hits.Load())
	}
}

func TestCompleter_EmptyMessages(t *testing.T) {
	c := newTestCompleter("http://unused", nil)

	_, err := c.Complete(context.Background(), nil)
	if !errors.Is(err, domain.ErrEmptyRequest) {
		t.Fatalf("expected ErrEmptyRequest, got %v", err)
	}
}

func TestCompleter_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": "deepseek-chat", "object": "model"}},
		})
	}))
	defer server.Close()

	c := newTestCompleter(server.URL, nil)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
}

func TestCompleter_HealthCheckError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestCompleter(server.URL, nil)
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check error")
	}
}

func TestExtractDetail(t *testing.T) {
	if got := extractDetail([]byte(`{"detail":"model not found"}`)); got != "model not found" {
		t.Errorf("extractDetail = %q", got)
	}
	if got := extractDetail([]byte(`not json`)); got != "" {
		t.Errorf("extractDetail(non-json) = %q, want empty", got)
	}
}
