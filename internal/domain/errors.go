package domain

import "errors"

var (
	// ErrProviderError signals a failed call to the completion provider.
	ErrProviderError = errors.New("completion provider error")
	// ErrNoChoices signals a provider response without a first choice.
	ErrNoChoices = errors.New("completion response has no choices")
	// ErrMissingUsage signals a provider response without a usage record.
	ErrMissingUsage = errors.New("completion response has no usage")
	// ErrUnsupportedOption signals a provider option the client does not accept.
	ErrUnsupportedOption = errors.New("unsupported provider option")
	// ErrEmptyRequest signals a request with no messages.
	ErrEmptyRequest = errors.New("empty request")
	// ErrBudgetExceeded signals an exhausted token budget.
	ErrBudgetExceeded = errors.New("token budget exceeded")
)
