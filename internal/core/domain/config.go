package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the explicit configuration object handed to the pipeline,
// retriever and synthesizer at construction. Nothing reads ambient state
// after a Config has been assembled.
type Config struct {
	Repo      RepoConfig
	GitHub    GitHubConfig
	Chunking  ChunkingConfig
	Embedding EmbeddingSettings
	Index     IndexSettings
	Retrieval RetrievalSettings
	LLM       LLMSettings

	// Verbose enables debug logging.
	Verbose bool

	// ShowProgress enables the ingestion progress bar when stderr is a terminal.
	ShowProgress bool
}

// RepoConfig controls how a repository snapshot is walked.
type RepoConfig struct {
	// Path is the local snapshot root. When empty, the GitHub materializer
	// provides one.
	Path string

	// ExcludeDirs are directory names skipped at any depth.
	ExcludeDirs []string

	// ExcludeExtensions are file extensions (with dot) never loaded.
	ExcludeExtensions []string

	// ExcludeGlobs are doublestar patterns matched against the relative path
	// and the base name.
	ExcludeGlobs []string

	// UseGitignore applies .gitignore files found in the snapshot.
	UseGitignore bool

	// MaxFileSize is the largest file, in bytes, that is loaded.
	MaxFileSize int64

	// FallbackEncoding decodes files that are not valid UTF-8 and carry no BOM.
	FallbackEncoding string
}

// GitHubConfig locates a repository to materialize.
type GitHubConfig struct {
	Owner      string
	Repo       string
	Branch     string
	Token      string
	BasePath   string
	MaxRetries int
	RetryDelay time.Duration

	// Force discards an existing local snapshot.
	Force bool
}

// IsConfigured returns true if owner and repository are set.
func (g GitHubConfig) IsConfigured() bool {
	return g.Owner != "" && g.Repo != ""
}

// LocalPath is where the snapshot of this repository lives.
func (g GitHubConfig) LocalPath() string {
	return filepath.Join(g.BasePath, g.Owner, g.Repo)
}

// ChunkLimits bounds a chunk. Sizes are counted in runes.
type ChunkLimits struct {
	MaxChars int

	// MaxLines bounds code chunks. Zero means no line bound.
	MaxLines int
}

// ChunkingConfig holds per-strategy limits and the overlap fraction.
type ChunkingConfig struct {
	Limits map[Strategy]ChunkLimits

	// Overlap is the fraction of the maximum chunk size shared between
	// consecutive chunks of one document.
	Overlap float64
}

// LimitsFor returns the limits of a strategy, falling back to defaults.
func (c ChunkingConfig) LimitsFor(s Strategy) ChunkLimits {
	if l, ok := c.Limits[s]; ok {
		return l
	}
	return DefaultChunkLimits()[s]
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions overrides the model's output dimension where the provider
	// supports it. Zero uses the model default.
	Dimensions int

	// BatchSize is the number of texts per embedding request.
	BatchSize int

	// Workers bounds concurrent embedding requests.
	Workers int

	// RequestsPerSecond throttles requests across workers. Zero disables.
	RequestsPerSecond float64

	// MaxRetries bounds attempts for transient failures.
	MaxRetries int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValidEmbedding() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// IndexSettings selects and tunes the vector index.
type IndexSettings struct {
	Name    string
	Backend IndexBackend

	// DataDir holds the SQLite database and keyword index.
	DataDir string

	// BatchSize is the number of records per upsert call.
	BatchSize int

	// Keyword maintains the BM25 index alongside vectors.
	Keyword bool

	// Recreate drops an existing index before ingestion.
	Recreate bool
}

// RetrievalSettings tunes the retriever.
type RetrievalSettings struct {
	TopK int
	Mode SearchMode
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValidLLM() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// Defaults.
const (
	DefaultMaxFileSize       = 1 << 20
	DefaultOverlap           = 0.15
	DefaultEmbeddingModel    = "text-embedding-3-large"
	DefaultEmbeddingBatch    = 32
	DefaultEmbeddingWorkers  = 4
	DefaultEmbeddingRetries  = 5
	DefaultIndexName         = "kimchi"
	DefaultIndexBatchSize    = 100
	DefaultTopK              = 3
	DefaultLLMModel          = "mistral"
	DefaultGitHubRetries     = 3
	DefaultGitHubRetryDelay  = 10 * time.Second
	DefaultFallbackEncoding  = "windows-1252"
	maxOverlapFraction       = 0.5
	defaultMaxChunkChars     = 1500
	defaultMaxCodeChunkLines = 60
)

// DefaultExcludeDirs are directories that never hold indexable sources.
func DefaultExcludeDirs() []string {
	return []string{
		".git", ".svn", ".hg", "__pycache__", ".pytest_cache",
		"node_modules", ".vscode", ".idea", ".venv", "venv",
		"dist", "build", "target", "bin", "obj",
	}
}

// DefaultExcludeExtensions are binary formats that are never decoded.
func DefaultExcludeExtensions() []string {
	return []string{
		".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".webp", ".tiff",
		".pdf", ".zip", ".tar", ".gz", ".tgz", ".bz2", ".xz", ".7z", ".rar",
		".jar", ".war", ".class", ".so", ".dylib", ".dll", ".exe", ".o", ".a",
		".pyc", ".pyo", ".woff", ".woff2", ".ttf", ".otf", ".eot",
		".mp3", ".mp4", ".mov", ".avi", ".wav", ".wasm", ".db", ".sqlite",
	}
}

// DefaultChunkLimits returns the per-strategy limits.
func DefaultChunkLimits() map[Strategy]ChunkLimits {
	return map[Strategy]ChunkLimits{
		StrategyCode:       {MaxChars: defaultMaxChunkChars, MaxLines: defaultMaxCodeChunkLines},
		StrategyStructured: {MaxChars: defaultMaxChunkChars},
		StrategyRecord:     {MaxChars: defaultMaxChunkChars},
		StrategyPlainText:  {MaxChars: defaultMaxChunkChars},
	}
}

// DefaultDataDir returns ~/.kimchi/data, or a relative path when the home
// directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".kimchi", "data")
	}
	return filepath.Join(home, ".kimchi", "data")
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() Config {
	return Config{
		Repo: RepoConfig{
			ExcludeDirs:       DefaultExcludeDirs(),
			ExcludeExtensions: DefaultExcludeExtensions(),
			UseGitignore:      true,
			MaxFileSize:       DefaultMaxFileSize,
			FallbackEncoding:  DefaultFallbackEncoding,
		},
		GitHub: GitHubConfig{
			BasePath:   os.TempDir(),
			MaxRetries: DefaultGitHubRetries,
			RetryDelay: DefaultGitHubRetryDelay,
		},
		Chunking: ChunkingConfig{
			Limits:  DefaultChunkLimits(),
			Overlap: DefaultOverlap,
		},
		Embedding: EmbeddingSettings{
			Provider:   AIProviderOpenAI,
			Model:      DefaultEmbeddingModel,
			BatchSize:  DefaultEmbeddingBatch,
			Workers:    DefaultEmbeddingWorkers,
			MaxRetries: DefaultEmbeddingRetries,
		},
		Index: IndexSettings{
			Name:      DefaultIndexName,
			Backend:   IndexBackendSQLite,
			DataDir:   DefaultDataDir(),
			BatchSize: DefaultIndexBatchSize,
		},
		Retrieval: RetrievalSettings{
			TopK: DefaultTopK,
			Mode: SearchModeSemantic,
		},
		LLM: LLMSettings{
			Provider: AIProviderOllama,
			Model:    DefaultLLMModel,
		},
		ShowProgress: true,
	}
}

// Validate rejects malformed configuration before any I/O.
// Every returned error wraps ErrInvalidInput.
//
//nolint:gocyclo // Flat list of independent checks
func (c Config) Validate() error {
	if c.Index.Name == "" {
		return fmt.Errorf("%w: index name is required", ErrInvalidInput)
	}
	if !c.Index.Backend.IsValid() {
		return fmt.Errorf("%w: unknown index backend %q", ErrInvalidInput, c.Index.Backend)
	}
	if c.Index.BatchSize <= 0 {
		return fmt.Errorf("%w: index batch size must be positive, got %d", ErrInvalidInput, c.Index.BatchSize)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: top-k must be positive, got %d", ErrInvalidInput, c.Retrieval.TopK)
	}
	if !c.Retrieval.Mode.IsValid() {
		return fmt.Errorf("%w: unknown retrieval mode %q", ErrInvalidInput, c.Retrieval.Mode)
	}
	if c.Repo.MaxFileSize <= 0 {
		return fmt.Errorf("%w: max file size must be positive, got %d", ErrInvalidInput, c.Repo.MaxFileSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= maxOverlapFraction {
		return fmt.Errorf("%w: overlap must be in [0, %.1f), got %g", ErrInvalidInput, maxOverlapFraction, c.Chunking.Overlap)
	}
	for _, s := range AllStrategies() {
		l := c.Chunking.LimitsFor(s)
		if l.MaxChars <= 0 {
			return fmt.Errorf("%w: max chunk size for %s must be positive, got %d", ErrInvalidInput, s, l.MaxChars)
		}
		if l.MaxLines < 0 {
			return fmt.Errorf("%w: max chunk lines for %s must not be negative", ErrInvalidInput, s)
		}
	}
	for s := range c.Chunking.Limits {
		if !s.IsValid() {
			return fmt.Errorf("%w: unknown chunk strategy %q", ErrInvalidInput, s)
		}
	}
	if !c.Embedding.Provider.IsValidEmbedding() {
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidInput, c.Embedding.Provider)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("%w: embedding model is required", ErrInvalidInput)
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.Workers <= 0 {
		return fmt.Errorf("%w: embedding batch size and workers must be positive", ErrInvalidInput)
	}
	if c.Embedding.RequestsPerSecond < 0 || c.Embedding.MaxRetries < 0 {
		return fmt.Errorf("%w: embedding rate and retries must not be negative", ErrInvalidInput)
	}
	return nil
}

// ValidateSource checks that ingestion has somewhere to read from.
func (c Config) ValidateSource() error {
	if c.Repo.Path == "" && !c.GitHub.IsConfigured() {
		return fmt.Errorf("%w: set a repository path or github owner and repo", ErrInvalidInput)
	}
	if c.Repo.Path == "" && c.GitHub.Branch == "" {
		return fmt.Errorf("%w: github branch is required", ErrInvalidInput)
	}
	return nil
}
