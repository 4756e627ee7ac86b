package domain

import (
	"sort"
	"strings"
)

// Strategy identifies the splitter that produced a chunk.
// The set is closed: every value is handled explicitly by the chunking engine.
type Strategy string

// Chunking strategies.
const (
	// StrategyCode prefers boundaries between top-level syntactic units.
	StrategyCode Strategy = "code"

	// StrategyStructured splits hierarchical markup along section headers.
	StrategyStructured Strategy = "structured"

	// StrategyRecord splits serialised records along top-level record boundaries.
	StrategyRecord Strategy = "record"

	// StrategyPlainText splits on sentence boundaries.
	StrategyPlainText Strategy = "plaintext"
)

// DefaultStrategy applies to extensions missing from the table.
const DefaultStrategy = StrategyPlainText

// AllStrategies returns every strategy in display order.
func AllStrategies() []Strategy {
	return []Strategy{StrategyCode, StrategyStructured, StrategyRecord, StrategyPlainText}
}

// IsValid returns true if the strategy is one of the known variants.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyCode, StrategyStructured, StrategyRecord, StrategyPlainText:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Strategy) String() string {
	return string(s)
}

// Description returns a human-readable description of the strategy.
func (s Strategy) Description() string {
	switch s {
	case StrategyCode:
		return "Code (top-level declarations, line window fallback)"
	case StrategyStructured:
		return "Structured text (sections, sentence fallback)"
	case StrategyRecord:
		return "Records (top-level members, nested fallback)"
	case StrategyPlainText:
		return "Plain text (sentences)"
	default:
		return unknownDescription
	}
}

// extensionStrategies maps lower-cased extensions to strategies.
var extensionStrategies = map[string]Strategy{
	// Programming languages
	".go": StrategyCode, ".py": StrategyCode, ".js": StrategyCode, ".jsx": StrategyCode,
	".mjs": StrategyCode, ".ts": StrategyCode, ".tsx": StrategyCode, ".java": StrategyCode,
	".c": StrategyCode, ".h": StrategyCode, ".cc": StrategyCode, ".cpp": StrategyCode,
	".hpp": StrategyCode, ".cs": StrategyCode, ".rs": StrategyCode, ".rb": StrategyCode,
	".php": StrategyCode, ".swift": StrategyCode, ".kt": StrategyCode, ".scala": StrategyCode,
	".vb": StrategyCode, ".pl": StrategyCode, ".r": StrategyCode, ".m": StrategyCode,
	".lua": StrategyCode, ".dart": StrategyCode, ".sh": StrategyCode, ".bash": StrategyCode,
	".zsh": StrategyCode, ".sql": StrategyCode, ".proto": StrategyCode,

	// Web and configuration formats split on top-level blocks
	".html": StrategyCode, ".css": StrategyCode, ".scss": StrategyCode, ".sass": StrategyCode,
	".less": StrategyCode, ".vue": StrategyCode, ".svelte": StrategyCode, ".xml": StrategyCode,
	".yaml": StrategyCode, ".yml": StrategyCode, ".toml": StrategyCode, ".ini": StrategyCode,
	".cfg": StrategyCode, ".conf": StrategyCode, ".tf": StrategyCode,

	// Hierarchical markup
	".md": StrategyStructured, ".markdown": StrategyStructured, ".mdx": StrategyStructured,

	// Record-oriented serialisation
	".json": StrategyRecord, ".geojson": StrategyRecord,

	// Prose
	".txt": StrategyPlainText, ".text": StrategyPlainText, ".rst": StrategyPlainText,
}

// StrategyForExtension maps an extension to its strategy.
// Lookup is case-insensitive and accepts the extension with or without the dot.
// Unmapped extensions get DefaultStrategy.
func StrategyForExtension(ext string) Strategy {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if s, ok := extensionStrategies[ext]; ok {
		return s
	}
	return DefaultStrategy
}

// ExtensionMapping is one row of the extension table.
type ExtensionMapping struct {
	Extension string
	Strategy  Strategy
}

// ExtensionTable returns a copy of the extension table sorted by strategy,
// then extension.
func ExtensionTable() []ExtensionMapping {
	rows := make([]ExtensionMapping, 0, len(extensionStrategies))
	for ext, s := range extensionStrategies {
		rows = append(rows, ExtensionMapping{Extension: ext, Strategy: s})
	}
	order := make(map[Strategy]int, 4)
	for i, s := range AllStrategies() {
		order[s] = i
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Strategy != rows[j].Strategy {
			return order[rows[i].Strategy] < order[rows[j].Strategy]
		}
		return rows[i].Extension < rows[j].Extension
	})
	return rows
}
