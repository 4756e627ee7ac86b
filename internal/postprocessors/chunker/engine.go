// Package chunker splits documents into retrieval-sized chunks.
//
// The strategy is chosen from the file extension (see domain.StrategyForExtension):
//
//   - code: top-level declarations packed up to a line and size limit
//   - structured: markdown sections split at ATX headers
//   - record: JSON members and elements
//   - plaintext: sentences packed up to a size limit
//
// Sizes are counted in runes. Every chunk is non-empty and within its
// strategy's limits; sequence indexes are contiguous from zero.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.Chunker = (*Engine)(nil)

// Engine splits documents into chunks.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	limits  map[domain.Strategy]domain.ChunkLimits
	overlap float64
}

// Option configures the engine.
type Option func(*Engine)

// WithLimits sets the limits of one strategy. Non-positive MaxChars is ignored.
func WithLimits(s domain.Strategy, l domain.ChunkLimits) Option {
	return func(e *Engine) {
		if l.MaxChars > 0 && l.MaxLines >= 0 {
			e.limits[s] = l
		}
	}
}

// WithOverlap sets the overlap fraction. Values outside [0, 0.5) are ignored.
func WithOverlap(overlap float64) Option {
	return func(e *Engine) {
		if overlap >= 0 && overlap < 0.5 {
			e.overlap = overlap
		}
	}
}

// New creates an engine with default limits and the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		limits:  domain.DefaultChunkLimits(),
		overlap: domain.DefaultOverlap,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromConfig creates an engine from chunking configuration.
func FromConfig(cfg domain.ChunkingConfig) *Engine {
	opts := []Option{WithOverlap(cfg.Overlap)}
	for s, l := range cfg.Limits {
		opts = append(opts, WithLimits(s, l))
	}
	return New(opts...)
}

// Limits returns the limits applied to a strategy.
func (e *Engine) Limits(s domain.Strategy) domain.ChunkLimits {
	if l, ok := e.limits[s]; ok {
		return l
	}
	return domain.DefaultChunkLimits()[s]
}

// Overlap returns the overlap fraction.
func (e *Engine) Overlap() float64 {
	return e.overlap
}

// StrategyLimits is one row of Describe.
type StrategyLimits struct {
	Strategy domain.Strategy
	Limits   domain.ChunkLimits
}

// Describe returns the effective limits of every strategy.
func (e *Engine) Describe() []StrategyLimits {
	out := make([]StrategyLimits, 0, len(domain.AllStrategies()))
	for _, s := range domain.AllStrategies() {
		out = append(out, StrategyLimits{Strategy: s, Limits: e.Limits(s)})
	}
	return out
}

// Chunk splits a document. A document with no visible content yields no
// chunks and a skip error with reason empty.
func (e *Engine) Chunk(document domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(document.Text) == "" {
		return nil, domain.NewSkipError(document.Path, domain.SkipEmpty, nil)
	}

	strategy := domain.StrategyForExtension(document.Extension)
	lim := e.Limits(strategy)
	d := newDoc(document.Text)

	var spans []span
	switch strategy {
	case domain.StrategyCode:
		spans = e.chunkCode(d, strings.ToLower(document.Extension), lim)
	case domain.StrategyStructured:
		spans = e.chunkMarkdown(d, lim)
	case domain.StrategyRecord:
		spans = e.chunkRecords(d, lim)
	case domain.StrategyPlainText:
		spans = e.chunkPlainText(d, lim)
	default:
		return nil, fmt.Errorf("%w: unknown chunk strategy %q", domain.ErrInvalidInput, strategy)
	}

	if len(spans) == 0 {
		spans = d.windowLines(1, len(d.lines), lim, e.overlap, "")
	}
	spans = e.enforce(d, spans, lim)

	base := domain.MetadataFromDocument(document)
	chunks := make([]domain.Chunk, 0, len(spans))
	for i, sp := range spans {
		meta := base
		meta.SequenceIndex = i
		meta.Strategy = strategy
		meta.Section = sp.section
		meta.StartLine = sp.startLine
		meta.EndLine = sp.endLine
		chunks = append(chunks, domain.Chunk{
			ID:       domain.ChunkID(document.Path, i, strategy),
			Text:     d.text[sp.start:sp.end],
			Metadata: meta,
		})
	}
	return chunks, nil
}

// enforce re-splits any span that breaks the limits. Strategies already
// respect them; this keeps the guarantee independent of strategy code.
func (e *Engine) enforce(d *doc, spans []span, lim domain.ChunkLimits) []span {
	out := spans[:0:0]
	for _, sp := range spans {
		tooLong := utf8.RuneCountInString(d.text[sp.start:sp.end]) > lim.MaxChars
		tooTall := lim.MaxLines > 0 && sp.endLine-sp.startLine+1 > lim.MaxLines
		switch {
		case tooTall:
			out = append(out, d.windowLines(sp.startLine, sp.endLine, lim, e.overlap, sp.section)...)
		case tooLong:
			out = append(out, d.runeWindows(sp.start, sp.end, lim.MaxChars, e.overlap, sp.section)...)
		default:
			out = append(out, sp)
		}
	}
	return out
}
