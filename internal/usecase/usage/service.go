package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/tokentally/internal/domain/usage"
	"github.com/kailas-cloud/tokentally/internal/domain/usage/budget"
)

// Service handles usage reporting.
type Service struct {
	totals TotalsReader
	br     BudgetReader
	now    func() time.Time
}

// New creates a Service. br can be nil (unlimited mode).
func New(totals TotalsReader, br BudgetReader) *Service {
	return &Service{
		totals: totals,
		br:     br,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetReport builds a usage report for the given period.
// Running totals cover the wrapper's lifetime regardless of period; the period
// selects the budget window and its bounds.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now()
	var start, end int64
	b := budget.Unlimited()

	switch period {
	case domusage.PeriodDay:
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		start = dayStart.UnixMilli()
		end = dayStart.Add(24 * time.Hour).UnixMilli()
		if s.br != nil {
			b = budget.New(s.br.DailyLimit(), s.br.DailyUsed(), s.br.RemainingDaily(), end)
		}
	case domusage.PeriodMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		start = monthStart.UnixMilli()
		end = monthStart.AddDate(0, 1, 0).UnixMilli()
		if s.br != nil {
			b = budget.New(s.br.MonthlyLimit(), s.br.MonthlyUsed(), s.br.RemainingMonthly(), end)
		}
	default:
		// total: no period boundaries, report the monthly window
		if s.br != nil {
			monthEnd := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
			b = budget.New(s.br.MonthlyLimit(), s.br.MonthlyUsed(), s.br.RemainingMonthly(), monthEnd.UnixMilli())
		}
	}

	var totals domusage.Snapshot
	if s.totals != nil {
		totals = s.totals.Totals()
	}

	return domusage.NewReport(period, start, end, totals, b)
}
