package chunker

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

var headerPattern = regexp.MustCompile(`^(#{1,6})[ \t]+(.+?)[ \t#]*$`)

// section is a header and the lines up to the next header.
type section struct {
	from, to int
	title    string
}

// chunkMarkdown emits one chunk per section. Text before the first header is
// its own section. A section over the size limit is split on sentences.
func (e *Engine) chunkMarkdown(d *doc, lim domain.ChunkLimits) []span {
	var out []span
	for _, sec := range markdownSections(d) {
		s, end := d.lineRange(sec.from, sec.to)
		sp, ok := d.span(s, end, sec.title)
		if !ok {
			continue
		}
		if d.runes(sp.start, sp.end) <= lim.MaxChars {
			out = append(out, sp)
			continue
		}
		out = append(out, d.packSentences(sentences(d.text, sp.start, sp.end), lim.MaxChars, e.overlap, sec.title)...)
	}
	return out
}

// markdownSections finds ATX headers outside fenced code blocks.
func markdownSections(d *doc) []section {
	last := len(d.lines)
	var sections []section
	cur := section{from: 1}
	fence := ""
	for n := 1; n <= last; n++ {
		line := d.lineText(n)
		trimmed := strings.TrimLeft(line, " ")
		if marker := fenceMarker(trimmed); marker != "" {
			switch {
			case fence == "":
				fence = marker
			case strings.HasPrefix(trimmed, fence):
				fence = ""
			}
			continue
		}
		if fence != "" {
			continue
		}
		m := headerPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if n > cur.from {
			cur.to = n - 1
			sections = append(sections, cur)
		}
		cur = section{from: n, title: strings.TrimSpace(m[2])}
	}
	cur.to = last
	return append(sections, cur)
}

func fenceMarker(line string) string {
	switch {
	case strings.HasPrefix(line, "```"):
		return "```"
	case strings.HasPrefix(line, "~~~"):
		return "~~~"
	default:
		return ""
	}
}
