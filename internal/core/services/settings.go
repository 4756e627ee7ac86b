package services

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
	"github.com/custodia-labs/kimchi/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// EnvPrefix prefixes the environment variable of every config key:
// index.batch_size is read from KIMCHI_INDEX_BATCH_SIZE.
const EnvPrefix = "KIMCHI_"

type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindFloat
	kindBool
	kindList
	kindDuration
)

// setting binds a config key to a Config field.
type setting struct {
	key  string
	kind settingKind

	// env lists extra variable names read before the KIMCHI_ one.
	env []string

	apply func(c *domain.Config, v any)
}

// SettingsService assembles domain.Config from, in increasing precedence,
// defaults, the config store and the environment. Command-line flags are
// applied on top by the CLI.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
	settings    []setting
}

// NewSettingsService creates a settings service reading the process environment.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
		settings:    settingsTable(),
	}
}

// SetEnv replaces the environment lookup. Tests pass a map-backed function.
func (s *SettingsService) SetEnv(lookup func(string) (string, bool)) {
	s.lookupEnv = lookup
}

// Load builds the configuration. A malformed environment value is an input
// error; a config file value of the wrong type is ignored.
func (s *SettingsService) Load() (domain.Config, error) {
	cfg := domain.DefaultConfig()

	for _, st := range s.settings {
		if v, ok := s.fromStore(st); ok {
			st.apply(&cfg, v)
		}
	}

	for _, st := range s.settings {
		raw, name, ok := s.fromEnv(st)
		if !ok {
			continue
		}
		v, err := parseSetting(st.kind, raw)
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, name, err)
		}
		st.apply(&cfg, v)
	}

	s.applyProviderKeys(&cfg)
	return cfg, nil
}

// Get returns the stored value of a key.
func (s *SettingsService) Get(key string) (any, bool) {
	return s.configStore.Get(key)
}

// Set parses value according to the key's type and persists it.
func (s *SettingsService) Set(key, value string) error {
	st, ok := s.lookup(key)
	if !ok {
		return fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
	}
	v, err := parseSetting(st.kind, value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}

	// reject values the assembled config would refuse
	cfg := domain.DefaultConfig()
	st.apply(&cfg, v)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if d, ok := v.(time.Duration); ok {
		v = d.String()
	}
	return s.configStore.Set(key, v)
}

// Unset removes a key from the config file so its default applies again.
func (s *SettingsService) Unset(key string) error {
	if _, ok := s.lookup(key); !ok {
		if _, stored := s.configStore.Get(key); !stored {
			return fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
		}
	}
	return s.configStore.Unset(key)
}

// Keys lists every recognised key in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(s.settings))
	for i, st := range s.settings {
		keys[i] = st.key
	}
	return keys
}

// EnvName returns the KIMCHI_ variable for a key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func (s *SettingsService) lookup(key string) (setting, bool) {
	for _, st := range s.settings {
		if st.key == key {
			return st, true
		}
	}
	return setting{}, false
}

// fromStore reads a typed value, ignoring values of the wrong type. TOML
// decodes integers as int64 and arrays as []any; both are accepted along
// with the Go types the memory store holds.
func (s *SettingsService) fromStore(st setting) (any, bool) {
	raw, ok := s.configStore.Get(st.key)
	if !ok {
		return nil, false
	}
	switch st.kind {
	case kindString:
		v, ok := raw.(string)
		return v, ok
	case kindInt:
		switch v := raw.(type) {
		case int:
			return v, true
		case int64:
			return int(v), true
		}
	case kindFloat:
		switch v := raw.(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		}
	case kindBool:
		v, ok := raw.(bool)
		return v, ok
	case kindList:
		return stringList(raw)
	case kindDuration:
		if str, ok := raw.(string); ok {
			if d, err := time.ParseDuration(str); err == nil {
				return d, true
			}
		}
	}
	return nil, false
}

// stringList keeps the string elements of a stored array.
func stringList(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out, true
	}
	return nil, false
}

// fromEnv returns the first non-empty variable bound to the setting. The
// KIMCHI_ name takes precedence over the legacy names.
func (s *SettingsService) fromEnv(st setting) (string, string, bool) {
	names := append([]string{EnvName(st.key)}, st.env...)
	for _, name := range names {
		if v, ok := s.lookupEnv(name); ok && v != "" {
			return v, name, true
		}
	}
	return "", "", false
}

// applyProviderKeys fills API keys from the providers' conventional variables.
func (s *SettingsService) applyProviderKeys(cfg *domain.Config) {
	providerKey := func(p domain.AIProvider) string {
		var name string
		switch p {
		case domain.AIProviderOpenAI:
			name = "OPENAI_API_KEY"
		case domain.AIProviderAnthropic:
			name = "ANTHROPIC_API_KEY"
		default:
			return ""
		}
		v, _ := s.lookupEnv(name)
		return v
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = providerKey(cfg.Embedding.Provider)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKey(cfg.LLM.Provider)
	}
}

func parseSetting(kind settingKind, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case kindInt:
		return strconv.Atoi(raw)
	case kindFloat:
		return strconv.ParseFloat(raw, 64)
	case kindBool:
		return strconv.ParseBool(raw)
	case kindList:
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case kindDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

// settingsTable lists the recognised keys.
//
//nolint:funlen // Flat table
func settingsTable() []setting {
	str := func(key string, env []string, set func(*domain.Config, string)) setting {
		return setting{key: key, kind: kindString, env: env, apply: func(c *domain.Config, v any) { set(c, v.(string)) }}
	}
	num := func(key string, set func(*domain.Config, int)) setting {
		return setting{key: key, kind: kindInt, apply: func(c *domain.Config, v any) { set(c, v.(int)) }}
	}
	flag := func(key string, env []string, set func(*domain.Config, bool)) setting {
		return setting{key: key, kind: kindBool, env: env, apply: func(c *domain.Config, v any) { set(c, v.(bool)) }}
	}
	list := func(key string, set func(*domain.Config, []string)) setting {
		return setting{key: key, kind: kindList, apply: func(c *domain.Config, v any) { set(c, v.([]string)) }}
	}
	maxChars := func(s domain.Strategy) setting {
		return num("chunking."+string(s)+".max_chars", func(c *domain.Config, v int) {
			l := c.Chunking.LimitsFor(s)
			l.MaxChars = v
			setLimits(c, s, l)
		})
	}

	table := []setting{
		str("repo.path", nil, func(c *domain.Config, v string) { c.Repo.Path = v }),
		list("repo.exclude_dirs", func(c *domain.Config, v []string) { c.Repo.ExcludeDirs = v }),
		list("repo.exclude_extensions", func(c *domain.Config, v []string) { c.Repo.ExcludeExtensions = v }),
		list("repo.exclude_globs", func(c *domain.Config, v []string) { c.Repo.ExcludeGlobs = v }),
		flag("repo.use_gitignore", nil, func(c *domain.Config, v bool) { c.Repo.UseGitignore = v }),
		num("repo.max_file_size", func(c *domain.Config, v int) { c.Repo.MaxFileSize = int64(v) }),
		str("repo.fallback_encoding", nil, func(c *domain.Config, v string) { c.Repo.FallbackEncoding = v }),

		{key: "chunking.overlap", kind: kindFloat, apply: func(c *domain.Config, v any) {
			c.Chunking.Overlap = v.(float64)
		}},
	}
	for _, s := range domain.AllStrategies() {
		table = append(table, maxChars(s))
	}
	table = append(table,
		num("chunking.code.max_lines", func(c *domain.Config, v int) {
			l := c.Chunking.LimitsFor(domain.StrategyCode)
			l.MaxLines = v
			setLimits(c, domain.StrategyCode, l)
		}),

		str("embedding.provider", nil, func(c *domain.Config, v string) { c.Embedding.Provider = domain.AIProvider(v) }),
		str("embedding.model", []string{"EMBEDDING_MODEL"}, func(c *domain.Config, v string) { c.Embedding.Model = v }),
		str("embedding.base_url", nil, func(c *domain.Config, v string) { c.Embedding.BaseURL = v }),
		str("embedding.api_key", nil, func(c *domain.Config, v string) { c.Embedding.APIKey = v }),
		num("embedding.dimensions", func(c *domain.Config, v int) { c.Embedding.Dimensions = v }),
		num("embedding.batch_size", func(c *domain.Config, v int) { c.Embedding.BatchSize = v }),
		num("embedding.workers", func(c *domain.Config, v int) { c.Embedding.Workers = v }),
		setting{key: "embedding.requests_per_second", kind: kindFloat, apply: func(c *domain.Config, v any) {
			c.Embedding.RequestsPerSecond = v.(float64)
		}},
		num("embedding.max_retries", func(c *domain.Config, v int) { c.Embedding.MaxRetries = v }),

		str("index.name", nil, func(c *domain.Config, v string) { c.Index.Name = v }),
		str("index.backend", nil, func(c *domain.Config, v string) { c.Index.Backend = domain.IndexBackend(v) }),
		str("index.data_dir", nil, func(c *domain.Config, v string) { c.Index.DataDir = v }),
		num("index.batch_size", func(c *domain.Config, v int) { c.Index.BatchSize = v }),
		flag("index.keyword", nil, func(c *domain.Config, v bool) { c.Index.Keyword = v }),

		num("retrieval.top_k", func(c *domain.Config, v int) { c.Retrieval.TopK = v }),
		str("retrieval.mode", nil, func(c *domain.Config, v string) { c.Retrieval.Mode = domain.SearchMode(v) }),

		str("llm.provider", nil, func(c *domain.Config, v string) { c.LLM.Provider = domain.AIProvider(v) }),
		str("llm.model", nil, func(c *domain.Config, v string) { c.LLM.Model = v }),
		str("llm.base_url", nil, func(c *domain.Config, v string) { c.LLM.BaseURL = v }),
		str("llm.api_key", nil, func(c *domain.Config, v string) { c.LLM.APIKey = v }),

		str("github.owner", []string{"GITHUB_OWNER"}, func(c *domain.Config, v string) { c.GitHub.Owner = v }),
		str("github.repo", []string{"GITHUB_REPO"}, func(c *domain.Config, v string) { c.GitHub.Repo = v }),
		str("github.branch", []string{"GITHUB_BRANCH"}, func(c *domain.Config, v string) { c.GitHub.Branch = v }),
		str("github.token", []string{"GITHUB_TOKEN"}, func(c *domain.Config, v string) { c.GitHub.Token = v }),
		str("github.base_path", []string{"BASE_PATH"}, func(c *domain.Config, v string) { c.GitHub.BasePath = v }),
		num("github.max_retries", func(c *domain.Config, v int) { c.GitHub.MaxRetries = v }),
		setting{key: "github.retry_delay", kind: kindDuration, apply: func(c *domain.Config, v any) {
			c.GitHub.RetryDelay = v.(time.Duration)
		}},

		flag("verbose", []string{"VERBOSE"}, func(c *domain.Config, v bool) { c.Verbose = v }),
		flag("show_progress", []string{"SHOW_PROGRESS"}, func(c *domain.Config, v bool) { c.ShowProgress = v }),
	)
	return table
}

// setLimits replaces one strategy's limits without sharing the map with defaults.
func setLimits(c *domain.Config, s domain.Strategy, l domain.ChunkLimits) {
	limits := make(map[domain.Strategy]domain.ChunkLimits, len(c.Chunking.Limits)+1)
	for k, v := range c.Chunking.Limits {
		limits[k] = v
	}
	limits[s] = l
	c.Chunking.Limits = limits
}
