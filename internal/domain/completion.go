package domain

import (
	"context"

	"github.com/kailas-cloud/tokentally/internal/domain/usage"
)

// KeyPrefix namespaces every key tokentally writes to the KV store.
const KeyPrefix = "tokentally:"

// Role identifies the author of a chat message.
type Role string

// Chat roles accepted by OpenAI-compatible providers.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role/content pair of a chat request.
type Message struct {
	Role    Role
	Content string
}

// Prompt wraps free text into a one-element sequence authored by the user.
func Prompt(text string) []Message {
	return []Message{{Role: RoleUser, Content: text}}
}

// Completion is the provider's answer to one chat request.
type Completion struct {
	Content string
	Model   string
	Usage   usage.Usage
}

// Completer sends a chat request to a completion provider.
type Completer interface {
	Complete(ctx context.Context, msgs []Message) (Completion, error)
}

// HealthChecker is an optional interface for components that can verify availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
