package domain

import (
	"fmt"
	"time"
)

// Metadata keys used when a ChunkMetadata is flattened for storage.
const (
	MetaSourcePath    = "source_path"
	MetaExtension     = "extension"
	MetaSizeBytes     = "size_bytes"
	MetaCreatedAt     = "created_at"
	MetaModifiedAt    = "modified_at"
	MetaSequenceIndex = "sequence_index"
	MetaStrategy      = "chunk_strategy"
	MetaSection       = "section"
	MetaStartLine     = "start_line"
	MetaEndLine       = "end_line"
)

// ChunkMetadata is the fixed-schema provenance carried by every chunk and
// index record. Named fields replace free-form maps so a typo cannot drop
// provenance silently.
type ChunkMetadata struct {
	SourcePath    string
	Extension     string
	SizeBytes     int64
	CreatedAt     time.Time
	ModifiedAt    time.Time
	SequenceIndex int
	Strategy      Strategy

	// Section is the markdown heading or code declaration the chunk starts in.
	// Empty when the strategy has no notion of sections.
	Section string

	// StartLine and EndLine are 1-based and inclusive. Zero when unknown.
	StartLine int
	EndLine   int
}

// MetadataFromDocument copies the document-level fields.
func MetadataFromDocument(doc Document) ChunkMetadata {
	return ChunkMetadata{
		SourcePath: doc.Path,
		Extension:  doc.Extension,
		SizeBytes:  doc.SizeBytes,
		CreatedAt:  doc.CreatedAt,
		ModifiedAt: doc.ModifiedAt,
	}
}

// Flatten returns the metadata as a map of scalar values.
// Timestamps are RFC 3339 strings.
func (m ChunkMetadata) Flatten() map[string]any {
	return map[string]any{
		MetaSourcePath:    m.SourcePath,
		MetaExtension:     m.Extension,
		MetaSizeBytes:     m.SizeBytes,
		MetaCreatedAt:     formatTime(m.CreatedAt),
		MetaModifiedAt:    formatTime(m.ModifiedAt),
		MetaSequenceIndex: m.SequenceIndex,
		MetaStrategy:      string(m.Strategy),
		MetaSection:       m.Section,
		MetaStartLine:     m.StartLine,
		MetaEndLine:       m.EndLine,
	}
}

// MetadataFromMap is the inverse of Flatten. Numbers may arrive as any Go
// numeric type (JSON decoding yields float64, SQL drivers int64).
func MetadataFromMap(values map[string]any) (ChunkMetadata, error) {
	var m ChunkMetadata
	var err error

	m.SourcePath = stringValue(values[MetaSourcePath])
	if m.SourcePath == "" {
		return m, fmt.Errorf("%w: metadata missing %s", ErrInvalidInput, MetaSourcePath)
	}
	m.Extension = stringValue(values[MetaExtension])
	m.Section = stringValue(values[MetaSection])

	strategy := Strategy(stringValue(values[MetaStrategy]))
	if !strategy.IsValid() {
		return m, fmt.Errorf("%w: unknown chunk strategy %q", ErrInvalidInput, strategy)
	}
	m.Strategy = strategy

	if m.SizeBytes, err = int64Value(values[MetaSizeBytes]); err != nil {
		return m, fmt.Errorf("%s: %w", MetaSizeBytes, err)
	}
	seq, err := int64Value(values[MetaSequenceIndex])
	if err != nil {
		return m, fmt.Errorf("%s: %w", MetaSequenceIndex, err)
	}
	m.SequenceIndex = int(seq)

	start, err := int64Value(values[MetaStartLine])
	if err != nil {
		return m, fmt.Errorf("%s: %w", MetaStartLine, err)
	}
	end, err := int64Value(values[MetaEndLine])
	if err != nil {
		return m, fmt.Errorf("%s: %w", MetaEndLine, err)
	}
	m.StartLine, m.EndLine = int(start), int(end)

	if m.CreatedAt, err = parseTime(values[MetaCreatedAt]); err != nil {
		return m, fmt.Errorf("%s: %w", MetaCreatedAt, err)
	}
	if m.ModifiedAt, err = parseTime(values[MetaModifiedAt]); err != nil {
		return m, fmt.Errorf("%s: %w", MetaModifiedAt, err)
	}

	return m, nil
}

// Provenance renders "path#sequence_index", the form used in prompts and output.
func (m ChunkMetadata) Provenance() string {
	return fmt.Sprintf("%s#%d", m.SourcePath, m.SequenceIndex)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v any) (time.Time, error) {
	s := stringValue(v)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func int64Value(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%w: expected number, got %T", ErrInvalidInput, v)
	}
}
