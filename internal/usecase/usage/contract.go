package usage

import domusage "github.com/kailas-cloud/tokentally/internal/domain/usage"

// TotalsReader exposes the running totals of a tracked completer.
type TotalsReader interface {
	Totals() domusage.Snapshot
}

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	DailyLimit() int64
	MonthlyLimit() int64
	DailyUsed() int64
	MonthlyUsed() int64
	RemainingDaily() int64
	RemainingMonthly() int64
}
