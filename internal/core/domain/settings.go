package domain

const unknownDescription = "Unknown"

// SearchMode selects how retrieval ranks passages.
type SearchMode string

const (
	// SearchModeSemantic ranks by vector similarity alone.
	SearchModeSemantic SearchMode = "semantic"
	// SearchModeHybrid fuses vector similarity with BM25 keyword rank.
	SearchModeHybrid   SearchMode = "hybrid"
)

var searchModes = map[SearchMode]string{
	SearchModeSemantic: "Semantic (vector similarity)",
	SearchModeHybrid:   "Hybrid (vector + keyword, rank fusion)",
}

func (m SearchMode) IsValid() bool {
	_, ok := searchModes[m]
	return ok
}

// RequiresKeywordIndex reports whether ingestion must also feed the BM25
// index.
func (m SearchMode) RequiresKeywordIndex() bool {
	return m == SearchModeHybrid
}

func (m SearchMode) String() string {
	return string(m)
}

// Description is the label shown by `config show`.
func (m SearchMode) Description() string {
	if d, ok := searchModes[m]; ok {
		return d
	}
	return unknownDescription
}

// AIProvider names the service behind embeddings or answer synthesis.
type AIProvider string

const (
	AIProviderOllama    AIProvider = "ollama"
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic" // chat only
	// AIProviderHash is the offline feature-hashing embedder. Its vectors are
	// deterministic across runs and machines.
	AIProviderHash      AIProvider = "hash"
)

// providerTraits records what each provider can serve.
type providerTraits struct {
	label     string
	embedding bool
	chat      bool
	keyed     bool
}

var providers = map[AIProvider]providerTraits{
	AIProviderOllama:    {label: "Ollama (local)", embedding: true, chat: true},
	AIProviderOpenAI:    {label: "OpenAI (cloud)", embedding: true, chat: true, keyed: true},
	AIProviderAnthropic: {label: "Anthropic (cloud)", chat: true, keyed: true},
	AIProviderHash:      {label: "Feature hashing (built-in, offline)", embedding: true},
}

// IsValidEmbedding reports whether p can produce embeddings.
func (p AIProvider) IsValidEmbedding() bool {
	return providers[p].embedding
}

// IsValidLLM reports whether p can answer chat requests.
func (p AIProvider) IsValidLLM() bool {
	return providers[p].chat
}

func (p AIProvider) RequiresAPIKey() bool {
	return providers[p].keyed
}

func (p AIProvider) String() string {
	return string(p)
}

func (p AIProvider) Description() string {
	if t, ok := providers[p]; ok {
		return t.label
	}
	return unknownDescription
}

// IndexBackend selects where index records live.
type IndexBackend string

const (
	IndexBackendSQLite IndexBackend = "sqlite"
	IndexBackendMemory IndexBackend = "memory" // lost on exit
)

func (b IndexBackend) IsValid() bool {
	return b == IndexBackendSQLite || b == IndexBackendMemory
}

func (b IndexBackend) String() string {
	return string(b)
}
