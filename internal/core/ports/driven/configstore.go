package driven

// ConfigStore persists the user's config file as flat dot-notation keys
// ("embedding.model"). Values keep the types the file format decodes to;
// interpreting them is the settings service's job.
type ConfigStore interface {
	// Get returns the stored value of key.
	Get(key string) (any, bool)

	// Set stores value under key and persists it.
	Set(key string, value any) error

	// Unset removes key and persists the change. Unknown keys are a no-op.
	Unset(key string) error

	// Keys returns the stored keys in sorted order.
	Keys() []string

	// Path describes where the configuration lives.
	Path() string
}

// PromptStore loads user-editable prompt templates.
type PromptStore interface {
	// Load returns the template for name, falling back to the built-in default.
	Load(name string) (string, error)
}

// Prompt names.
const (
	// PromptAnswerSystem is the system message for answer synthesis.
	PromptAnswerSystem = "answer_system"

	// PromptAnswerUser is the user message for answer synthesis.
	// Placeholders: passages, then question.
	PromptAnswerUser = "answer_user"
)
