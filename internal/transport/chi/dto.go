package chi

// ErrorCode is the machine-readable error identifier in API responses.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodeUnsupportedOption ErrorCode = "unsupported_option"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeBudgetExceeded    ErrorCode = "budget_exceeded"
	ErrorCodeProviderError     ErrorCode = "provider_error"
	ErrorCodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// MessageDTO is one role/content pair on the wire.
type MessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CallRequest is the body of POST /v1/call. Exactly one of Prompt or Messages is set.
type CallRequest struct {
	Prompt   *string      `json:"prompt,omitempty"`
	Messages []MessageDTO `json:"messages,omitempty"`
}

// CallUsage is the per-call increment returned with a reply.
type CallUsage struct {
	Cost       float64 `json:"cost"`
	Currency   string  `json:"currency"`
	CacheHit   int     `json:"cache_hit"`
	CacheMiss  int     `json:"cache_miss"`
	Completion int     `json:"completion"`
	Total      int     `json:"total"`
}

// CallResponse is the body of a successful POST /v1/call.
type CallResponse struct {
	Content string    `json:"content"`
	Model   string    `json:"model"`
	Usage   CallUsage `json:"usage"`
}

// UsageTotals mirrors the running totals.
type UsageTotals struct {
	Calls                 int64   `json:"calls"`
	Cost                  float64 `json:"cost"`
	Currency              string  `json:"currency"`
	PromptCacheHitTokens  int64   `json:"prompt_cache_hit_tokens"`
	PromptCacheMissTokens int64   `json:"prompt_cache_miss_tokens"`
	CompletionTokens      int64   `json:"completion_tokens"`
	TotalTokens           int64   `json:"total_tokens"`
}

// BudgetStatus is the token budget state for a period.
type BudgetStatus struct {
	TokensLimit     int64   `json:"tokens_limit"`
	TokensUsed      int64   `json:"tokens_used"`
	TokensRemaining int64   `json:"tokens_remaining"`
	IsExhausted     bool    `json:"is_exhausted"`
	ResetsAt        *string `json:"resets_at,omitempty"`
}

// UsageResponse is the body of GET /v1/usage.
type UsageResponse struct {
	Period        string       `json:"period"`
	PeriodStartAt *string      `json:"period_start_at,omitempty"`
	PeriodEndAt   *string      `json:"period_end_at,omitempty"`
	Usage         UsageTotals  `json:"usage"`
	Budget        BudgetStatus `json:"budget"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
