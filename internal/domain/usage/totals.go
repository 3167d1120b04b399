package usage

import "sync"

// Snapshot is a consistent copy of the running totals.
type Snapshot struct {
	Calls                 int64
	Cost                  float64
	PromptCacheHitTokens  int64
	PromptCacheMissTokens int64
	CompletionTokens      int64
	TotalTokens           int64
}

// Totals accumulates cost and token counters over the lifetime of one wrapper.
// Safe for concurrent use.
type Totals struct {
	mu sync.Mutex
	s  Snapshot
}

// Add records one completed call.
func (t *Totals) Add(u Usage, cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.s.Calls++
	t.s.Cost += cost
	t.s.PromptCacheHitTokens += int64(u.PromptCacheHitTokens)
	t.s.PromptCacheMissTokens += int64(u.PromptCacheMissTokens)
	t.s.CompletionTokens += int64(u.CompletionTokens)
	t.s.TotalTokens += int64(u.TotalTokens)
}

// Snapshot returns the current totals.
func (t *Totals) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}
