// Package pricing converts token usage into a monetary estimate.
package pricing

import "github.com/kailas-cloud/tokentally/internal/domain/usage"

const tokensPerUnit = 1_000_000

// Pricing holds unit prices per million tokens in a single currency.
type Pricing struct {
	CacheHitPerMillion  float64
	CacheMissPerMillion float64
	OutputPerMillion    float64
	Currency            string
}

// Default returns the DeepSeek chat list prices (CNY).
func Default() Pricing {
	return Pricing{
		CacheHitPerMillion:  0.5,
		CacheMissPerMillion: 4,
		OutputPerMillion:    12,
		Currency:            "CNY",
	}
}

// Cost estimates the price of one call. TotalTokens is not priced.
func (p Pricing) Cost(u usage.Usage) float64 {
	return float64(u.PromptCacheHitTokens)/tokensPerUnit*p.CacheHitPerMillion +
		float64(u.PromptCacheMissTokens)/tokensPerUnit*p.CacheMissPerMillion +
		float64(u.CompletionTokens)/tokensPerUnit*p.OutputPerMillion
}
