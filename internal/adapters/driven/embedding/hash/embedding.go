// Package hash provides an offline embedding service based on feature
// hashing. Vectors are deterministic and need no network, which makes the
// service useful for tests, air-gapped indexing and smoke runs.
package hash

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultDimensions is the vector size used when none is configured.
const DefaultDimensions = 256

// EmbeddingService hashes tokens into a fixed number of signed buckets.
type EmbeddingService struct {
	dimensions int
}

// NewEmbeddingService creates a hashing embedder with the given vector size.
func NewEmbeddingService(dimensions int) (*EmbeddingService, error) {
	if dimensions == 0 {
		dimensions = DefaultDimensions
	}
	if dimensions < 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidInput, dimensions)
	}
	return &EmbeddingService{dimensions: dimensions}, nil
}

// Embed returns the L2-normalised feature vector for text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.vector(text), nil
}

// EmbedBatch embeds each text in order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = s.vector(text)
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName identifies the hashing scheme and its size, so an index built
// with one size is never queried with another.
func (s *EmbeddingService) ModelName() string {
	return fmt.Sprintf("hash-%d", s.dimensions)
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *EmbeddingService) Close() error {
	return nil
}

func (s *EmbeddingService) vector(text string) []float32 {
	v := make([]float64, s.dimensions)
	for _, tok := range tokens(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := int(sum % uint64(s.dimensions))
		// the top bit picks the sign so collisions tend to cancel out
		if sum>>63 == 1 {
			v[bucket]--
		} else {
			v[bucket]++
		}
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	out := make([]float32, s.dimensions)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}

// tokens splits text into lowercase alphanumeric words. Identifiers also
// contribute their camelCase and snake_case parts.
func tokens(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	var out []string
	for _, w := range words {
		lower := strings.ToLower(strings.Trim(w, "_"))
		if lower == "" {
			continue
		}
		out = append(out, lower)
		parts := identifierParts(w)
		if len(parts) > 1 {
			out = append(out, parts...)
		}
	}
	return out
}

func identifierParts(word string) []string {
	var parts []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(word)
	for i, r := range runes {
		switch {
		case r == '_':
			flush()
			continue
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	return parts
}
