package chunker

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

func newDocument(path, text string) domain.Document {
	ext := ""
	if i := strings.LastIndex(path, "."); i >= 0 {
		ext = strings.ToLower(path[i:])
	}
	return domain.Document{
		Path:       path,
		Extension:  ext,
		Text:       text,
		SizeBytes:  int64(len(text)),
		CreatedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		ModifiedAt: time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
		Encoding:   "utf-8",
	}
}

// assertChunkInvariants checks the properties every chunk list must hold.
func assertChunkInvariants(t *testing.T, e *Engine, doc domain.Document, chunks []domain.Chunk) {
	t.Helper()
	strategy := domain.StrategyForExtension(doc.Extension)
	lim := e.Limits(strategy)
	seen := make(map[string]bool)
	for i, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c.Text), "chunk %d is empty", i)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), lim.MaxChars, "chunk %d too long", i)
		if lim.MaxLines > 0 {
			assert.LessOrEqual(t, strings.Count(c.Text, "\n")+1, lim.MaxLines, "chunk %d too tall", i)
		}
		assert.Equal(t, i, c.Metadata.SequenceIndex)
		assert.Equal(t, strategy, c.Metadata.Strategy)
		assert.Equal(t, doc.Path, c.Metadata.SourcePath)
		assert.Equal(t, doc.Extension, c.Metadata.Extension)
		assert.Equal(t, doc.SizeBytes, c.Metadata.SizeBytes)
		assert.Equal(t, doc.CreatedAt, c.Metadata.CreatedAt)
		assert.Equal(t, doc.ModifiedAt, c.Metadata.ModifiedAt)
		assert.Equal(t, domain.ChunkID(doc.Path, i, strategy), c.ID)
		assert.LessOrEqual(t, c.Metadata.StartLine, c.Metadata.EndLine)
		assert.False(t, seen[c.ID], "duplicate id")
		seen[c.ID] = true
	}
}

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		e := New()
		assert.Equal(t, domain.DefaultOverlap, e.Overlap())
		assert.Equal(t, domain.DefaultChunkLimits()[domain.StrategyCode], e.Limits(domain.StrategyCode))
	})

	t.Run("custom limits and overlap", func(t *testing.T) {
		e := New(WithLimits(domain.StrategyPlainText, domain.ChunkLimits{MaxChars: 200}), WithOverlap(0.2))
		assert.Equal(t, 200, e.Limits(domain.StrategyPlainText).MaxChars)
		assert.Equal(t, 0.2, e.Overlap())
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		e := New(WithLimits(domain.StrategyPlainText, domain.ChunkLimits{MaxChars: 0}), WithOverlap(0.5))
		assert.Equal(t, domain.DefaultChunkLimits()[domain.StrategyPlainText], e.Limits(domain.StrategyPlainText))
		assert.Equal(t, domain.DefaultOverlap, e.Overlap())
	})

	t.Run("from config", func(t *testing.T) {
		cfg := domain.DefaultConfig().Chunking
		cfg.Limits[domain.StrategyRecord] = domain.ChunkLimits{MaxChars: 300}
		cfg.Overlap = 0.1
		e := FromConfig(cfg)
		assert.Equal(t, 300, e.Limits(domain.StrategyRecord).MaxChars)
		assert.Equal(t, 0.1, e.Overlap())
	})
}

func TestEngine_Describe(t *testing.T) {
	rows := New().Describe()
	require.Len(t, rows, len(domain.AllStrategies()))
	for _, r := range rows {
		assert.Positive(t, r.Limits.MaxChars)
	}
}

func TestEngine_Chunk_Empty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\n\t\n"} {
		chunks, err := New().Chunk(newDocument("empty.txt", text))
		assert.Empty(t, chunks)
		se, ok := domain.AsSkip(err)
		require.True(t, ok)
		assert.Equal(t, domain.SkipEmpty, se.Reason)
		assert.Equal(t, "empty.txt", se.Path)
	}
}

func TestEngine_Chunk_Deterministic(t *testing.T) {
	doc := newDocument("notes.txt", strings.Repeat("The quick brown fox jumps. ", 200))
	e := New()

	first, err := e.Chunk(doc)
	require.NoError(t, err)
	second, err := e.Chunk(doc)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngine_Chunk_Code(t *testing.T) {
	t.Run("500 line go file yields at least five bounded chunks", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("package big\n\n")
		for i := 0; i < 100; i++ {
			fmt.Fprintf(&b, "// Func%d returns %d.\nfunc Func%d() int {\n\treturn %d\n}\n\n", i, i, i, i)
		}
		doc := newDocument("big.go", b.String())
		require.GreaterOrEqual(t, strings.Count(doc.Text, "\n"), 500)
		e := New()

		chunks, err := e.Chunk(doc)

		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(chunks), 5)
		assertChunkInvariants(t, e, doc, chunks)
		assert.Equal(t, "package big", chunks[0].Metadata.Section)
	})

	t.Run("go declarations keep their doc comments", func(t *testing.T) {
		src := "package p\n\n// Alpha is first.\nfunc Alpha() {}\n\n// Beta is second.\ntype Beta struct{}\n"
		e := New(WithLimits(domain.StrategyCode, domain.ChunkLimits{MaxChars: 40, MaxLines: 10}))

		chunks, err := e.Chunk(newDocument("p.go", src))

		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, "package p", chunks[0].Text)
		assert.Equal(t, "// Alpha is first.\nfunc Alpha() {}", chunks[1].Text)
		assert.Equal(t, "func Alpha", chunks[1].Metadata.Section)
		assert.Equal(t, 3, chunks[1].Metadata.StartLine)
		assert.Equal(t, 4, chunks[1].Metadata.EndLine)
		assert.Equal(t, "type Beta", chunks[2].Metadata.Section)
	})

	t.Run("methods are named with their receiver", func(t *testing.T) {
		src := "package p\n\nfunc (e *Engine) Run() {}\n"
		e := New(WithLimits(domain.StrategyCode, domain.ChunkLimits{MaxChars: 30, MaxLines: 10}))

		chunks, err := e.Chunk(newDocument("p.go", src))

		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "func (*Engine) Run", chunks[1].Metadata.Section)
	})

	t.Run("unparseable go falls back to blocks", func(t *testing.T) {
		src := "package p\n\nfunc broken( {\n\n}\n"
		e := New()

		chunks, err := e.Chunk(newDocument("broken.go", src))

		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		assert.Contains(t, chunks[0].Text, "package p")
	})

	t.Run("other languages split on top-level blocks", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 50; i++ {
			fmt.Fprintf(&b, "def handler_%d(event):\n    value = event.get('k%d')\n\n    return value\n\n\n", i, i)
		}
		doc := newDocument("handlers.py", b.String())
		e := New(WithLimits(domain.StrategyCode, domain.ChunkLimits{MaxChars: 500, MaxLines: 20}))

		chunks, err := e.Chunk(doc)

		require.NoError(t, err)
		assertChunkInvariants(t, e, doc, chunks)
		for _, c := range chunks {
			assert.True(t, strings.HasPrefix(c.Text, "def handler_"), "chunk should start at a definition: %q", c.Text)
		}
	})

	t.Run("oversized unit is windowed with overlap", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("function huge() {\n")
		for i := 0; i < 100; i++ {
			fmt.Fprintf(&b, "  step(%d);\n", i)
		}
		b.WriteString("}\n")
		doc := newDocument("huge.js", b.String())
		e := New(WithLimits(domain.StrategyCode, domain.ChunkLimits{MaxChars: 1500, MaxLines: 20}), WithOverlap(0.1))

		chunks, err := e.Chunk(doc)

		require.NoError(t, err)
		assertChunkInvariants(t, e, doc, chunks)
		require.Greater(t, len(chunks), 5)
		assert.Greater(t, chunks[0].Metadata.EndLine, chunks[1].Metadata.StartLine-1, "windows should overlap")
		assert.Equal(t, 102, chunks[len(chunks)-1].Metadata.EndLine)
	})

	t.Run("over-long line is rune windowed", func(t *testing.T) {
		doc := newDocument("min.js", strings.Repeat("a", 4000))
		e := New()

		chunks, err := e.Chunk(doc)

		require.NoError(t, err)
		assertChunkInvariants(t, e, doc, chunks)
		assert.GreaterOrEqual(t, len(chunks), 3)
	})
}

func TestEngine_Chunk_Markdown(t *testing.T) {
	t.Run("three sections yield exactly three chunks", func(t *testing.T) {
		src := "# Install\nRun the installer.\n\n# Configure\nEdit the file.\n\n# Use\nRun the command.\n"
		doc := newDocument("README.md", src)
		e := New()

		chunks, err := e.Chunk(doc)

		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assertChunkInvariants(t, e, doc, chunks)
		assert.Equal(t, []string{"Install", "Configure", "Use"},
			[]string{chunks[0].Metadata.Section, chunks[1].Metadata.Section, chunks[2].Metadata.Section})
		assert.Equal(t, "# Configure\nEdit the file.", chunks[1].Text)
	})

	t.Run("preamble is its own section", func(t *testing.T) {
		src := "Intro text.\n\n## Details\nMore.\n"

		chunks, err := New().Chunk(newDocument("doc.md", src))

		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "", chunks[0].Metadata.Section)
		assert.Equal(t, "Details", chunks[1].Metadata.Section)
	})

	t.Run("headers inside fences are ignored", func(t *testing.T) {
		src := "# Script\n```bash\n# not a header\necho hi\n```\n"

		chunks, err := New().Chunk(newDocument("doc.md", src))

		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Contains(t, chunks[0].Text, "# not a header")
	})

	t.Run("long section is split on sentences", func(t *testing.T) {
		src := "# Story\n" + strings.Repeat("This sentence is part of a long story. ", 30)
		doc := newDocument("story.md", src)
		e := New(WithLimits(domain.StrategyStructured, domain.ChunkLimits{MaxChars: 200}))

		chunks, err := e.Chunk(doc)

		require.NoError(t, err)
		assert.Greater(t, len(chunks), 3)
		assertChunkInvariants(t, e, doc, chunks)
		for _, c := range chunks {
			assert.Equal(t, "Story", c.Metadata.Section)
		}
	})
}

func TestEngine_Chunk_Records(t *testing.T) {
	t.Run("packs members and splits large ones", func(t *testing.T) {
		src := "{\n  \"name\": \"kimchi\",\n  \"version\": \"1.0.0\",\n" +
			"  \"deps\": {\"cobra\": \"v1.10.1\", \"bleve\": \"v2.5.7\", \"sqlite\": \"v1.40.1\"}\n}\n"
		doc := newDocument("package.json", src)
		e := New(WithLimits(domain.StrategyRecord, domain.ChunkLimits{MaxChars: 40}))

		chunks, err := e.Chunk(doc)

		require.NoError(t, err)
		assertChunkInvariants(t, e, doc, chunks)
		require.Len(t, chunks, 3)
		assert.Equal(t, "\"name\": \"kimchi\",\n  \"version\": \"1.0.0\"", chunks[0].Text)
		assert.Equal(t, "name", chunks[0].Metadata.Section)
		// the key of a split record opens its first fragment
		assert.Equal(t, "\"deps\": {\"cobra\": \"v1.10.1\"", chunks[1].Text)
		assert.Equal(t, "deps.cobra", chunks[1].Metadata.Section)
		assert.Equal(t, "\"bleve\": \"v2.5.7\", \"sqlite\": \"v1.40.1\"", chunks[2].Text)
		assert.Equal(t, "deps.bleve", chunks[2].Metadata.Section)
	})

	t.Run("key that does not fit is its own fragment", func(t *testing.T) {
		src := `{"a_rather_long_dependency_list": {"x": "1234567890", "y": "0987654321"}}`
		e := New(WithLimits(domain.StrategyRecord, domain.ChunkLimits{MaxChars: 40}))

		chunks, err := e.Chunk(newDocument("deps.json", src))

		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, `"a_rather_long_dependency_list": {`, chunks[0].Text)
		assert.Equal(t, `"x": "1234567890", "y": "0987654321"`, chunks[1].Text)
		assert.Equal(t, "a_rather_long_dependency_list.x", chunks[1].Metadata.Section)
	})

	t.Run("array elements", func(t *testing.T) {
		src := `[{"id": 1}, {"id": 2}, {"id": 3}]`
		e := New(WithLimits(domain.StrategyRecord, domain.ChunkLimits{MaxChars: 12}))

		chunks, err := e.Chunk(newDocument("items.json", src))

		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, `{"id": 2}`, chunks[1].Text)
		assert.Equal(t, "[1]", chunks[1].Metadata.Section)
	})

	t.Run("scalar document is one record", func(t *testing.T) {
		chunks, err := New().Chunk(newDocument("v.json", `"just a string"`))

		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, `"just a string"`, chunks[0].Text)
	})

	t.Run("empty object still yields a chunk", func(t *testing.T) {
		chunks, err := New().Chunk(newDocument("empty.json", "{}"))

		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "{}", chunks[0].Text)
	})

	t.Run("invalid json falls back to lines", func(t *testing.T) {
		src := "{\"a\": 1,,\n\"b\": 2}\n"

		chunks, err := New().Chunk(newDocument("bad.json", src))

		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, strings.TrimSpace(src), chunks[0].Text)
	})
}

func TestEngine_Chunk_PlainText(t *testing.T) {
	t.Run("sentences packed with overlap", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 60; i++ {
			fmt.Fprintf(&b, "Sentence number %d is here. ", i)
		}
		doc := newDocument("notes.txt", b.String())
		e := New(WithLimits(domain.StrategyPlainText, domain.ChunkLimits{MaxChars: 200}), WithOverlap(0.2))

		chunks, err := e.Chunk(doc)

		require.NoError(t, err)
		assertChunkInvariants(t, e, doc, chunks)
		require.Greater(t, len(chunks), 3)
		for i := 1; i < len(chunks); i++ {
			first := chunks[i].Text[:strings.Index(chunks[i].Text, ".")+1]
			assert.Contains(t, chunks[i-1].Text, first, "chunk %d should start inside chunk %d", i, i-1)
		}
		assert.True(t, strings.HasSuffix(chunks[len(chunks)-1].Text, "Sentence number 59 is here."))
	})

	t.Run("no overlap", func(t *testing.T) {
		doc := newDocument("notes.txt", strings.Repeat("One two three. ", 40))
		e := New(WithLimits(domain.StrategyPlainText, domain.ChunkLimits{MaxChars: 60}), WithOverlap(0))

		chunks, err := e.Chunk(doc)

		require.NoError(t, err)
		total := 0
		for _, c := range chunks {
			total += strings.Count(c.Text, "One two three.")
		}
		assert.Equal(t, 40, total)
	})

	t.Run("blank lines separate paragraphs", func(t *testing.T) {
		segs := sentences("first para\n\nsecond para", 0, len("first para\n\nsecond para"))
		assert.Len(t, segs, 2)
	})

	t.Run("multibyte text respects rune limit", func(t *testing.T) {
		doc := newDocument("ko.txt", strings.Repeat("김치", 1000))
		e := New(WithLimits(domain.StrategyPlainText, domain.ChunkLimits{MaxChars: 100}))

		chunks, err := e.Chunk(doc)

		require.NoError(t, err)
		assertChunkInvariants(t, e, doc, chunks)
		for _, c := range chunks {
			assert.True(t, utf8.ValidString(c.Text))
		}
	})

	t.Run("unknown extensions use plaintext", func(t *testing.T) {
		chunks, err := New().Chunk(newDocument("LICENSE", "Permission is granted."))

		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, domain.StrategyPlainText, chunks[0].Metadata.Strategy)
	})
}

// assertCoversDocument walks the chunks in sequence order, locating each in
// the document at or after the previous one, and checks that every
// non-whitespace byte outside ignore is inside some chunk.
func assertCoversDocument(t *testing.T, text string, chunks []domain.Chunk, ignore string) {
	t.Helper()
	covered := make([]bool, len(text))
	from := 0
	for i, c := range chunks {
		off := strings.Index(text[from:], c.Text)
		require.GreaterOrEqual(t, off, 0, "chunk %d is not in the document after chunk %d", i, i-1)
		start := from + off
		for j := start; j < start+len(c.Text); j++ {
			covered[j] = true
		}
		from = start
	}
	for i := 0; i < len(text); i++ {
		if covered[i] || isSpace(text[i]) || strings.IndexByte(ignore, text[i]) >= 0 {
			continue
		}
		lo, hi := max(0, i-20), min(len(text), i+20)
		t.Fatalf("byte %d (%q) is in no chunk, near %q", i, text[i], text[lo:hi])
	}
}

func TestEngine_Chunk_CoversDocument(t *testing.T) {
	words := []string{"amber", "birch", "cedar", "delta", "ember", "fjord", "grove", "heron", "inlet", "juniper", "kestrel", "lichen"}

	var code strings.Builder
	code.WriteString("package sample\n\nimport \"fmt\"\n")
	for i, w := range words[:8] {
		fmt.Fprintf(&code, "\n// %s returns the %s value.\nfunc %s() int {\n\treturn %d\n}\n", w, w, w, i)
	}
	code.WriteString("\nfunc long() {\n")
	for _, w := range words {
		fmt.Fprintf(&code, "\tfmt.Println(%q)\n", w)
	}
	code.WriteString("}\n")

	var md strings.Builder
	md.WriteString("Intro before any header.\n")
	for _, w := range words[:4] {
		fmt.Fprintf(&md, "\n## %s\n\n", w)
		for _, v := range words {
			fmt.Fprintf(&md, "The %s section mentions %s once. ", w, v)
		}
		md.WriteString("\n")
	}

	var rec strings.Builder
	rec.WriteString("{\n")
	for i, w := range words[:6] {
		fmt.Fprintf(&rec, "  %q: %q,\n", w, strings.Repeat(w[:1], 6))
		if i == 2 {
			rec.WriteString("  \"nested\": {\"inner_one\": \"value one here\", \"inner_two\": [\"x1\", \"x2\", \"x3\"], \"inner_three\": 3},\n")
		}
	}
	rec.WriteString("  \"last\": true\n}\n")

	var plain strings.Builder
	for _, w := range words {
		fmt.Fprintf(&plain, "The %s sentence ends here. ", w)
	}
	// one run with no sentence breaks, long enough to be windowed
	for i := 0; i < 24; i++ {
		fmt.Fprintf(&plain, "%s%d", words[i%len(words)], i)
	}

	tests := []struct {
		name   string
		path   string
		text   string
		limits domain.ChunkLimits
		ignore string
	}{
		{"code", "sample.go", code.String(), domain.ChunkLimits{MaxChars: 200, MaxLines: 6}, ""},
		{"markdown", "guide.md", md.String(), domain.ChunkLimits{MaxChars: 150}, ""},
		{"records", "data.json", rec.String(), domain.ChunkLimits{MaxChars: 48}, "{}[],"},
		{"plaintext", "notes.txt", plain.String(), domain.ChunkLimits{MaxChars: 70}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newDocument(tt.path, tt.text)
			for _, overlap := range []float64{0, 0.2} {
				e := New(WithLimits(domain.StrategyForExtension(doc.Extension), tt.limits), WithOverlap(overlap))

				chunks, err := e.Chunk(doc)

				require.NoError(t, err)
				require.Greater(t, len(chunks), 1)
				assertChunkInvariants(t, e, doc, chunks)
				assertCoversDocument(t, tt.text, chunks, tt.ignore)
			}
		})
	}
}
