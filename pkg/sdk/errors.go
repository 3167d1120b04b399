package tokentally

import "github.com/kailas-cloud/tokentally/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrProviderError     = domain.ErrProviderError
	ErrNoChoices         = domain.ErrNoChoices
	ErrMissingUsage      = domain.ErrMissingUsage
	ErrUnsupportedOption = domain.ErrUnsupportedOption
	ErrEmptyRequest      = domain.ErrEmptyRequest
	ErrBudgetExceeded    = domain.ErrBudgetExceeded
)
