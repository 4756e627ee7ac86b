package services

import (
	"context"
	"strings"
	"sync"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
)

// mockEmbedder returns one-hot vectors keyed by text length unless embedFn is set.
type mockEmbedder struct {
	mu      sync.Mutex
	dims    int
	model   string
	embedFn func(texts []string) ([][]float32, error)
	batches [][]string
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims, model: "mock-embed"}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), texts...))
	fn := m.embedFn
	m.mu.Unlock()

	if fn != nil {
		return fn(texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, m.dims)
		v[len(t)%m.dims] = 1
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dims }

func (m *mockEmbedder) ModelName() string { return m.model }

func (m *mockEmbedder) Ping(context.Context) error { return nil }

func (m *mockEmbedder) Close() error { return nil }

func (m *mockEmbedder) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func (m *mockEmbedder) setEmbedFn(fn func([]string) ([][]float32, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedFn = fn
}

// faultyIndex wraps a real index and injects upsert errors.
type faultyIndex struct {
	driven.VectorIndex
	mu         sync.Mutex
	upsertErrs []error
	failIDs    map[string]bool
	upserts    int
}

func (f *faultyIndex) Upsert(ctx context.Context, records []domain.IndexRecord) ([]domain.RecordFailure, error) {
	f.mu.Lock()
	f.upserts++
	if len(f.upsertErrs) > 0 {
		err := f.upsertErrs[0]
		f.upsertErrs = f.upsertErrs[1:]
		f.mu.Unlock()
		if err != nil {
			return nil, err
		}
	} else {
		f.mu.Unlock()
	}

	var keep []domain.IndexRecord
	var failures []domain.RecordFailure
	for _, r := range records {
		if f.failIDs[r.ID] {
			failures = append(failures, domain.RecordFailure{
				ID:            r.ID,
				SourcePath:    r.Metadata.SourcePath,
				SequenceIndex: r.Metadata.SequenceIndex,
				Err:           domain.ErrInvalidInput,
			})
			continue
		}
		keep = append(keep, r)
	}
	more, err := f.VectorIndex.Upsert(ctx, keep)
	return append(failures, more...), err
}

// mockKeywordIndex records indexed text and answers searches by substring.
type mockKeywordIndex struct {
	mu        sync.Mutex
	texts     map[string]string
	order     []string
	searchErr error
	indexErr  error
}

func newMockKeywordIndex() *mockKeywordIndex {
	return &mockKeywordIndex{texts: make(map[string]string)}
}

func (m *mockKeywordIndex) Index(_ context.Context, records []domain.IndexRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexErr != nil {
		return m.indexErr
	}
	for _, r := range records {
		if _, ok := m.texts[r.ID]; !ok {
			m.order = append(m.order, r.ID)
		}
		m.texts[r.ID] = r.Text
	}
	return nil
}

func (m *mockKeywordIndex) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.texts, id)
	}
	return nil
}

func (m *mockKeywordIndex) Search(_ context.Context, query string, limit int) ([]domain.KeywordHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	var hits []domain.KeywordHit
	for _, id := range m.order {
		text, ok := m.texts[id]
		if !ok || !strings.Contains(strings.ToLower(text), strings.ToLower(query)) {
			continue
		}
		hits = append(hits, domain.KeywordHit{ID: id, Score: 1})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

func (m *mockKeywordIndex) Close() error { return nil }

func (m *mockKeywordIndex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

// mockLoader streams fixed documents and errors.
type mockLoader struct {
	docs  []domain.Document
	errs  []error
	files map[string]domain.Document
}

func (m *mockLoader) Load(ctx context.Context, _ string) (<-chan domain.Document, <-chan error) {
	docs := make(chan domain.Document)
	errs := make(chan error)
	go func() {
		defer close(docs)
		defer close(errs)
		for _, err := range m.errs {
			select {
			case errs <- err:
			case <-ctx.Done():
				return
			}
		}
		for _, d := range m.docs {
			select {
			case docs <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return docs, errs
}

func (m *mockLoader) LoadFile(_ context.Context, _, rel string) (domain.Document, error) {
	d, ok := m.files[rel]
	if !ok {
		return domain.Document{}, domain.ErrNotFound
	}
	return d, nil
}

// mockChunker turns each line of a document into a chunk.
type mockChunker struct{}

func (mockChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, line := range strings.Split(doc.Text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		seq := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:   domain.ChunkID(doc.Path, seq, domain.StrategyPlainText),
			Text: line,
			Metadata: domain.ChunkMetadata{
				SourcePath:    doc.Path,
				Extension:     doc.Extension,
				SequenceIndex: seq,
				Strategy:      domain.StrategyPlainText,
			},
		})
	}
	if len(chunks) == 0 {
		return nil, domain.NewSkipError(doc.Path, domain.SkipEmpty, nil)
	}
	return chunks, nil
}

// mockProgress counts calls.
type mockProgress struct {
	mu       sync.Mutex
	started  bool
	added    int
	finished bool
}

func (m *mockProgress) Start(int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
}

func (m *mockProgress) Add(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added += n
}

func (m *mockProgress) Describe(string) {}

func (m *mockProgress) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = true
}

// mockMaterializer returns a fixed root.
type mockMaterializer struct {
	root  string
	err   error
	calls int
}

func (m *mockMaterializer) Materialize(context.Context) (string, error) {
	m.calls++
	return m.root, m.err
}

func (m *mockMaterializer) Describe() string { return "octo/repo@main" }

// mockLLM records the conversation it was sent.
type mockLLM struct {
	mu       sync.Mutex
	reply    string
	errs     []error
	calls    int
	messages []driven.ChatMessage
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.messages = messages
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return "", err
	}
	return m.reply, nil
}

func (m *mockLLM) ModelName() string { return "mock-llm" }

func (m *mockLLM) Ping(context.Context) error { return nil }

func (m *mockLLM) Close() error { return nil }

// mockPrompts serves fixed templates.
type mockPrompts map[string]string

func (m mockPrompts) Load(name string) (string, error) {
	p, ok := m[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

// doc builds a document whose lines become chunks under mockChunker.
func doc(path string, lines ...string) domain.Document {
	return domain.Document{
		Path:      path,
		Extension: ".txt",
		Text:      strings.Join(lines, "\n"),
	}
}

// testConfig returns a valid config for the hash embedder and memory index.
func testConfig() domain.Config {
	cfg := domain.DefaultConfig()
	cfg.Repo.Path = "/snapshot"
	cfg.Embedding.Provider = domain.AIProviderHash
	cfg.Embedding.Model = "hash-64"
	cfg.Embedding.BatchSize = 2
	cfg.Embedding.Workers = 2
	cfg.Embedding.MaxRetries = 2
	cfg.Index.Backend = domain.IndexBackendMemory
	cfg.Index.BatchSize = 3
	return cfg
}
