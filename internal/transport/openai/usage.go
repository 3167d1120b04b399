package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/tokentally/internal/domain/usage"
)

// usagePayload mirrors the usage object of an OpenAI-compatible response.
// Cache counters are DeepSeek extensions; every field is optional.
type usagePayload struct {
	PromptCacheHitTokens  *int `json:"prompt_cache_hit_tokens"`
	PromptCacheMissTokens *int `json:"prompt_cache_miss_tokens"`
	CompletionTokens      *int `json:"completion_tokens"`
	TotalTokens           *int `json:"total_tokens"`
}

// toUsage defaults absent counters to zero.
func (p *usagePayload) toUsage() usage.Usage {
	return usage.Usage{
		PromptCacheHitTokens:  deref(p.PromptCacheHitTokens),
		PromptCacheMissTokens: deref(p.PromptCacheMissTokens),
		CompletionTokens:      deref(p.CompletionTokens),
		TotalTokens:           deref(p.TotalTokens),
	}
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// usageCapture receives the raw usage record of one request.
type usageCapture struct {
	payload *usagePayload
}

type captureKey struct{}

func withUsageCapture(ctx context.Context) (context.Context, *usageCapture) {
	c := &usageCapture{}
	return context.WithValue(ctx, captureKey{}, c), c
}

func captureFromContext(ctx context.Context) *usageCapture {
	c, _ := ctx.Value(captureKey{}).(*usageCapture)
	return c
}

// usageRecorder is an HTTP doer that copies the usage object of successful
// responses into the capture carried by the request context.
// go-openai's own Usage type drops the cache counters and cannot tell
// a missing record from an empty one, so the body is decoded here as well.
type usageRecorder struct {
	inner openai.HTTPDoer
}

func (d *usageRecorder) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.inner.Do(req)
	if err != nil {
		return resp, err //nolint:wrapcheck // go-openai wraps transport errors itself
	}

	c := captureFromContext(req.Context())
	if c == nil || resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	var envelope struct {
		Usage *usagePayload `json:"usage"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		c.payload = envelope.Usage
	}
	return resp, nil
}
