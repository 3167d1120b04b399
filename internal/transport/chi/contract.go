package chi

import (
	"context"

	"github.com/kailas-cloud/tokentally/internal/domain"
	domusage "github.com/kailas-cloud/tokentally/internal/domain/usage"
	"github.com/kailas-cloud/tokentally/internal/domain/usage/pricing"
	completionuc "github.com/kailas-cloud/tokentally/internal/usecase/completion"
	healthuc "github.com/kailas-cloud/tokentally/internal/usecase/health"
)

// Caller runs a tracked completion.
type Caller interface {
	Complete(ctx context.Context, msgs []domain.Message) (completionuc.Result, error)
	Pricing() pricing.Pricing
}

// UsageReporter builds usage reports.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthReporter aggregates component health.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}
