package driving

import "github.com/custodia-labs/kimchi/internal/core/domain"

// SettingsService assembles the configuration and edits the config file.
type SettingsService interface {
	// Load builds a Config from defaults, the config file and the environment.
	// The result is not validated.
	Load() (domain.Config, error)

	// Get returns the stored value of a key.
	Get(key string) (any, bool)

	// Set parses value for a known key and persists it.
	Set(key, value string) error

	// Unset removes a key from the config file.
	Unset(key string) error

	// Keys lists every recognised key in display order.
	Keys() []string
}
