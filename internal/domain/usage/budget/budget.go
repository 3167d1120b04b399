// Package budget describes the state of a token budget at a point in time.
package budget

// Budget is a read-only snapshot of a token budget.
// A zero limit means the budget is not enforced.
type Budget struct {
	tokensLimit     int64
	tokensUsed      int64
	tokensRemaining int64
	isExhausted     bool
	resetsAt        int64 // unix millis, 0 when the period never resets
}

// New creates a Budget snapshot.
func New(limit, used, remaining int64, resetsAt int64) Budget {
	return Budget{
		tokensLimit:     limit,
		tokensUsed:      used,
		tokensRemaining: remaining,
		isExhausted:     limit > 0 && remaining <= 0,
		resetsAt:        resetsAt,
	}
}

// Unlimited returns a snapshot for a wrapper without a budget.
func Unlimited() Budget { return Budget{} }

// TokensLimit returns the token cap (0 = unlimited).
func (b Budget) TokensLimit() int64 { return b.tokensLimit }

// TokensUsed returns tokens consumed in the period.
func (b Budget) TokensUsed() int64 { return b.tokensUsed }

// TokensRemaining returns tokens left.
func (b Budget) TokensRemaining() int64 { return b.tokensRemaining }

// IsExhausted reports whether the budget is spent.
func (b Budget) IsExhausted() bool { return b.isExhausted }

// IsUnlimited reports whether no limit applies.
func (b Budget) IsUnlimited() bool { return b.tokensLimit == 0 }

// ResetsAt returns the reset timestamp (unix millis).
func (b Budget) ResetsAt() int64 { return b.resetsAt }
