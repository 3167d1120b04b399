package tokentally

import (
	"github.com/kailas-cloud/tokentally/internal/domain"
	"github.com/kailas-cloud/tokentally/internal/domain/usage"
	"github.com/kailas-cloud/tokentally/internal/domain/usage/pricing"
)

// Role is the author of a message.
type Role string

// Role constants.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role/content pair of a conversation.
type Message struct {
	Role    Role
	Content string
}

// Pricing holds per-million-token rates.
type Pricing struct {
	CacheHitPerMillion  float64
	CacheMissPerMillion float64
	OutputPerMillion    float64
	Currency            string
}

// DefaultPricing returns the DeepSeek rates: 0.5 / 4 / 12 CNY per million tokens.
func DefaultPricing() Pricing {
	return pricingFromDomain(pricing.Default())
}

// Usage is a snapshot of the running totals.
type Usage struct {
	Calls                 int64
	Cost                  float64
	PromptCacheHitTokens  int64
	PromptCacheMissTokens int64
	CompletionTokens      int64
	TotalTokens           int64
}

func (p Pricing) toDomain() pricing.Pricing {
	return pricing.Pricing{
		CacheHitPerMillion:  p.CacheHitPerMillion,
		CacheMissPerMillion: p.CacheMissPerMillion,
		OutputPerMillion:    p.OutputPerMillion,
		Currency:            p.Currency,
	}
}

func pricingFromDomain(p pricing.Pricing) Pricing {
	return Pricing{
		CacheHitPerMillion:  p.CacheHitPerMillion,
		CacheMissPerMillion: p.CacheMissPerMillion,
		OutputPerMillion:    p.OutputPerMillion,
		Currency:            p.Currency,
	}
}

func usageFromSnapshot(s usage.Snapshot) Usage {
	return Usage{
		Calls:                 s.Calls,
		Cost:                  s.Cost,
		PromptCacheHitTokens:  s.PromptCacheHitTokens,
		PromptCacheMissTokens: s.PromptCacheMissTokens,
		CompletionTokens:      s.CompletionTokens,
		TotalTokens:           s.TotalTokens,
	}
}

func messagesToDomain(msgs []Message) []domain.Message {
	out := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		out[i] = domain.Message{Role: domain.Role(m.Role), Content: m.Content}
	}
	return out
}
