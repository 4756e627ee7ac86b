// Package app assembles the adapters and services of one kimchi process from
// a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/custodia-labs/kimchi/internal/adapters/driven/ai"
	"github.com/custodia-labs/kimchi/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kimchi/internal/adapters/driven/search/bm25"
	"github.com/custodia-labs/kimchi/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kimchi/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/kimchi/internal/connectors/filesystem"
	"github.com/custodia-labs/kimchi/internal/connectors/github"
	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
	"github.com/custodia-labs/kimchi/internal/core/services"
	"github.com/custodia-labs/kimchi/internal/logger"
	"github.com/custodia-labs/kimchi/internal/postprocessors/chunker"
)

// App holds the wired services. Close releases everything App created;
// injected collaborators are left to their owner.
type App struct {
	Config domain.Config

	Ingest    *services.IngestService
	Retrieval *services.RetrieveService
	Answer    *services.AnswerService

	Chunker  *chunker.Engine
	Embedder driven.EmbeddingService
	LLM      driven.LLMService
	Index    driven.VectorIndex
	Keyword  driven.KeywordIndex

	closers []func() error
}

// Option overrides a collaborator, mainly for tests.
type Option func(*options)

type options struct {
	configDir string
	embedder  driven.EmbeddingService
	llm       driven.LLMService
	index     driven.VectorIndex
	keyword   driven.KeywordIndex
	source    driven.SourceMaterializer
	progress  driven.ProgressReporter
	prompts   driven.PromptStore
}

// WithConfigDir sets the directory holding user prompts. Empty means ~/.kimchi.
func WithConfigDir(dir string) Option {
	return func(o *options) { o.configDir = dir }
}

// WithEmbedder uses e instead of the configured provider.
func WithEmbedder(e driven.EmbeddingService) Option {
	return func(o *options) { o.embedder = e }
}

// WithLLM uses l instead of the configured provider.
func WithLLM(l driven.LLMService) Option {
	return func(o *options) { o.llm = l }
}

// WithVectorIndex uses idx instead of opening the configured backend. idx
// must carry the configured index name.
func WithVectorIndex(idx driven.VectorIndex) Option {
	return func(o *options) { o.index = idx }
}

// WithKeywordIndex uses k as the keyword index.
func WithKeywordIndex(k driven.KeywordIndex) Option {
	return func(o *options) { o.keyword = k }
}

// WithMaterializer uses m when no local repository path is configured.
func WithMaterializer(m driven.SourceMaterializer) Option {
	return func(o *options) { o.source = m }
}

// WithProgress reports ingestion progress to p.
func WithProgress(p driven.ProgressReporter) Option {
	return func(o *options) { o.progress = p }
}

// WithPromptStore loads answer prompts from p.
func WithPromptStore(p driven.PromptStore) Option {
	return func(o *options) { o.prompts = p }
}

// New validates cfg and wires every service. On error, anything already
// opened is closed.
func New(cfg domain.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg}
	if err := a.wire(cfg, o); err != nil {
		_ = a.Close()
		return nil, err
	}

	logger.Banner("Pipeline",
		"source", describeSource(cfg),
		"index", fmt.Sprintf("%s (%s, keyword=%t)", cfg.Index.Name, cfg.Index.Backend, a.Keyword != nil),
		"embedding", fmt.Sprintf("%s (%d dims, batch %d, %d workers)",
			a.Embedder.ModelName(), a.Embedder.Dimensions(), cfg.Embedding.BatchSize, cfg.Embedding.Workers),
		"index batch", strconv.Itoa(cfg.Index.BatchSize),
		"retrieval", fmt.Sprintf("%s, top-k %d", cfg.Retrieval.Mode, cfg.Retrieval.TopK),
	)
	return a, nil
}

func (a *App) wire(cfg domain.Config, o options) error {
	if err := a.openAI(cfg, o); err != nil {
		return err
	}
	if err := a.openIndexes(cfg, o); err != nil {
		return err
	}

	a.Chunker = chunker.FromConfig(cfg.Chunking)
	loader, err := filesystem.New(filesystem.OptionsFromConfig(cfg.Repo))
	if err != nil {
		return err
	}

	retrier := services.NewRetrier(cfg.Embedding.MaxRetries)

	a.Ingest = services.NewIngestService(cfg, loader, a.Chunker, a.Embedder, a.Index)
	a.Ingest.SetRetrier(retrier)
	a.Ingest.SetProgress(o.progress)
	if a.Keyword != nil {
		a.Ingest.SetKeywordIndex(a.Keyword)
	}
	switch {
	case o.source != nil:
		a.Ingest.SetMaterializer(o.source)
	case cfg.Repo.Path == "" && cfg.GitHub.IsConfigured():
		a.Ingest.SetMaterializer(github.New(cfg.GitHub, nil))
	}

	a.Retrieval = services.NewRetrieveService(a.Embedder, a.Index, cfg.Retrieval.Mode)
	if a.Keyword != nil {
		a.Retrieval.SetKeywordIndex(a.Keyword)
	}

	a.Answer = services.NewAnswerService(a.Retrieval, a.LLM)
	a.Answer.SetRetrier(retrier)
	if prompts := a.promptStore(o); prompts != nil {
		a.Answer.SetPromptStore(prompts)
	}
	return nil
}

func (a *App) promptStore(o options) driven.PromptStore {
	if o.prompts != nil {
		return o.prompts
	}
	dir := o.configDir
	if dir != "" {
		dir = filepath.Join(dir, "prompts")
	}
	store, err := file.NewPromptStore(dir)
	if err != nil {
		logger.Warn("prompt store unavailable, using built-in prompts: %v", err)
		return nil
	}
	return store
}

func (a *App) openAI(cfg domain.Config, o options) error {
	a.Embedder = o.embedder
	if a.Embedder == nil {
		e, err := ai.CreateEmbeddingService(cfg.Embedding)
		if err != nil {
			return err
		}
		a.Embedder = e
		a.closers = append(a.closers, e.Close)
	}

	a.LLM = o.llm
	if a.LLM == nil {
		l, err := ai.CreateLLMService(cfg.LLM)
		if err != nil {
			return err
		}
		if l != nil {
			a.LLM = l
			a.closers = append(a.closers, l.Close)
		}
	}
	return nil
}

func (a *App) openIndexes(cfg domain.Config, o options) error {
	a.Index = o.index
	if a.Index == nil {
		switch cfg.Index.Backend {
		case domain.IndexBackendMemory:
			a.Index = memory.NewVectorIndex(cfg.Index.Name)
		case domain.IndexBackendSQLite:
			store, err := sqlite.NewStore(cfg.Index.DataDir, cfg.Index.Name)
			if err != nil {
				return err
			}
			a.Index = store
		default:
			return fmt.Errorf("%w: unknown index backend %q", domain.ErrInvalidInput, cfg.Index.Backend)
		}
		a.closers = append(a.closers, a.Index.Close)
	}

	a.Keyword = o.keyword
	if a.Keyword != nil || !NeedsKeywordIndex(cfg) {
		return nil
	}
	var (
		k   *bm25.Index
		err error
	)
	if cfg.Index.Backend == domain.IndexBackendMemory {
		k, err = bm25.NewMemory()
	} else {
		path := KeywordIndexPath(cfg.Index)
		if cfg.Index.Recreate {
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("%w: remove keyword index: %v", domain.ErrIndexUnavailable, err)
			}
		}
		k, err = bm25.Open(path)
	}
	if err != nil {
		return err
	}
	a.Keyword = k
	a.closers = append(a.closers, k.Close)
	return nil
}

// NeedsKeywordIndex reports whether cfg maintains or queries the BM25 index.
func NeedsKeywordIndex(cfg domain.Config) bool {
	return cfg.Index.Keyword || cfg.Retrieval.Mode == domain.SearchModeHybrid
}

// KeywordIndexPath is where the persistent keyword index of an index lives.
func KeywordIndexPath(idx domain.IndexSettings) string {
	return filepath.Join(idx.DataDir, idx.Name+".bleve")
}

// NewWatcher creates a file watcher with the loader's exclusion rules.
func (a *App) NewWatcher() driven.Watcher {
	return filesystem.NewWatcher(filesystem.OptionsFromConfig(a.Config.Repo))
}

// Ping checks that the embedding and LLM providers are reachable.
func (a *App) Ping(ctx context.Context) error {
	s := ai.Services{Embedding: a.Embedder, LLM: a.LLM}
	return s.Ping(ctx)
}

// Close releases owned resources in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func describeSource(cfg domain.Config) string {
	if cfg.Repo.Path != "" {
		return cfg.Repo.Path
	}
	if cfg.GitHub.IsConfigured() {
		return fmt.Sprintf("%s/%s@%s", cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Branch)
	}
	return "(none)"
}
