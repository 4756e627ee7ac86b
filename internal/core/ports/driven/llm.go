package driven

import "context"

// LLMService synthesizes answers from retrieved passages. It is optional:
// without one, retrieval still works and answering reports
// domain.ErrLLMUnavailable.
type LLMService interface {
	// Chat sends the conversation and returns the assistant's reply.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	ModelName() string

	// Ping checks credentials and reachability without running inference.
	Ping(ctx context.Context) error

	Close() error
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatOptions tunes one completion. Zero values leave the provider default.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64

	// Stop ends generation at the first of these sequences.
	Stop []string
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
