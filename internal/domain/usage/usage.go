package usage

import (
	"github.com/kailas-cloud/tokentally/internal/domain/usage/budget"
)

// Usage is the token accounting of a single completion call.
// TotalTokens is taken from the provider as reported and is not derived from the other counters.
type Usage struct {
	PromptCacheHitTokens  int
	PromptCacheMissTokens int
	CompletionTokens      int
	TotalTokens           int
}

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

// ParsePeriod maps a query value to a Period. Unknown values fall back to PeriodTotal.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case PeriodDay:
		return PeriodDay
	case PeriodMonth:
		return PeriodMonth
	default:
		return PeriodTotal
	}
}

// Report is a completion usage report for a time period.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	totals      Snapshot
	budget      budget.Budget
}

// NewReport creates a usage report.
func NewReport(period Period, start, end int64, totals Snapshot, b budget.Budget) Report {
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		totals:      totals,
		budget:      b,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// Totals returns the running totals of the wrapper.
func (r *Report) Totals() Snapshot { return r.totals }

// Budget returns the budget status.
func (r *Report) Budget() budget.Budget { return r.budget }
