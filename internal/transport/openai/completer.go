package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tokentally/internal/domain"
	"github.com/kailas-cloud/tokentally/internal/metrics"
)

// Completer is a chat completion provider using the OpenAI-compatible API (e.g. DeepSeek).
type Completer struct {
	client   *openai.Client
	model    string
	provider string
	options  map[string]any
	logger   *zap.Logger
}

// Config holds the completion provider settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Provider string
	// Options are provider-specific request parameters, validated on every call.
	Options map[string]any
	// HTTPClient overrides the transport (tests, proxies). Defaults to go-openai's client.
	HTTPClient openai.HTTPDoer
	Logger     *zap.Logger
}

// NewCompleter creates an OpenAI-compatible completion provider. No I/O happens here.
func NewCompleter(cfg *Config) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	clientCfg.HTTPClient = &usageRecorder{inner: clientCfg.HTTPClient}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Completer{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		provider: cfg.Provider,
		options:  maps.Clone(cfg.Options),
		logger:   logger,
	}
}

// Complete implements domain.Completer. Sends exactly one request; nothing is retried.
func (c *Completer) Complete(ctx context.Context, msgs []domain.Message) (domain.Completion, error) {
	if len(msgs) == 0 {
		return domain.Completion{}, domain.ErrEmptyRequest
	}

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toChatMessages(msgs),
	}
	if err := applyOptions(&req, c.options); err != nil {
		c.recordError("invalid_option")
		return domain.Completion{}, err
	}

	ctx, capture := withUsageCapture(ctx)
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		c.recordError("api_error")
		return domain.Completion{}, wrapAPIError(err)
	}

	if len(resp.Choices) == 0 {
		c.recordError("no_choices")
		return domain.Completion{}, fmt.Errorf("model %s: %w", c.model, domain.ErrNoChoices)
	}
	if capture.payload == nil {
		c.recordError("missing_usage")
		return domain.Completion{}, fmt.Errorf("model %s: %w", c.model, domain.ErrMissingUsage)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())

	c.logger.Debug("Chat completion received",
		zap.String("provider", c.provider),
		zap.String("model", resp.Model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Duration("duration", duration),
	)

	return domain.Completion{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage:   capture.payload.toUsage(),
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (c *Completer) recordError(errorType string) {
	metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
	metrics.LLMErrorsTotal.WithLabelValues(c.provider, c.model, errorType).Inc()
}

func toChatMessages(msgs []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

// wrapAPIError adds a readable summary and domain.ErrProviderError while keeping
// the native go-openai error reachable through errors.As.
func wrapAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("completion API error %d: %s: %w: %w",
			reqErr.HTTPStatusCode, detail, domain.ErrProviderError, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("completion API error %d: %s: %w: %w",
			apiErr.HTTPStatusCode, apiErr.Message, domain.ErrProviderError, err)
	}

	return fmt.Errorf("completion request failed: %w: %w", domain.ErrProviderError, err)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
