package chunker

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// span is a byte range of the document text selected as one chunk.
type span struct {
	start, end int
	section    string
	startLine  int
	endLine    int
}

// lineIndex holds the byte offset at which each line starts.
type lineIndex []int

func newLineIndex(text string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

// line returns the 1-based line containing byte offset off.
func (li lineIndex) line(off int) int {
	return sort.Search(len(li), func(i int) bool { return li[i] > off })
}

// bounds returns the byte range of line n (1-based), excluding the newline.
func (li lineIndex) bounds(n, textLen int) (int, int) {
	start := li[n-1]
	end := textLen
	if n < len(li) {
		end = li[n] - 1
	}
	return start, end
}

// doc bundles the text being chunked with its line index.
type doc struct {
	text  string
	lines lineIndex
}

func newDoc(text string) *doc {
	return &doc{text: text, lines: newLineIndex(text)}
}

func (d *doc) runes(start, end int) int {
	return utf8.RuneCountInString(d.text[start:end])
}

// lineRange returns the byte range covering lines from..to inclusive.
func (d *doc) lineRange(from, to int) (int, int) {
	start, _ := d.lines.bounds(from, len(d.text))
	_, end := d.lines.bounds(to, len(d.text))
	return start, end
}

// span trims surrounding whitespace from [start, end) and returns the span,
// or false if nothing is left.
func (d *doc) span(start, end int, section string) (span, bool) {
	for start < end {
		r, size := utf8.DecodeRuneInString(d.text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(d.text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	if start >= end {
		return span{}, false
	}
	return span{
		start:     start,
		end:       end,
		section:   section,
		startLine: d.lines.line(start),
		endLine:   d.lines.line(end - 1),
	}, true
}

func (d *doc) appendSpan(out []span, start, end int, section string) []span {
	if sp, ok := d.span(start, end, section); ok {
		return append(out, sp)
	}
	return out
}

// overlapCount is the share of n units repeated at the start of the next chunk.
func overlapCount(overlap float64, n int) int {
	return int(math.Ceil(overlap * float64(n)))
}

// runeWindows splits [start, end) into windows of at most maxChars runes.
// Consecutive windows share overlap*maxChars runes.
func (d *doc) runeWindows(start, end, maxChars int, overlap float64, section string) []span {
	var offsets []int
	for i := range d.text[start:end] {
		offsets = append(offsets, start+i)
	}
	n := len(offsets)
	step := maxChars - overlapCount(overlap, maxChars)
	if step < 1 {
		step = 1
	}

	var out []span
	for a := 0; a < n; a += step {
		b := a + maxChars
		wEnd := end
		if b < n {
			wEnd = offsets[b]
		}
		out = d.appendSpan(out, offsets[a], wEnd, section)
		if b >= n {
			break
		}
	}
	return out
}

// windowLines splits lines from..to (inclusive, 1-based) into windows
// bounded by lim.MaxLines and lim.MaxChars. Consecutive windows share
// ceil(overlap * lines) lines. A line longer than MaxChars is rune-windowed.
func (d *doc) windowLines(from, to int, lim domain.ChunkLimits, overlap float64, section string) []span {
	oversized := func(n int) bool {
		s, e := d.lines.bounds(n, len(d.text))
		return d.runes(s, e) > lim.MaxChars
	}
	fits := func(a, b int) bool {
		if lim.MaxLines > 0 && b-a+1 > lim.MaxLines {
			return false
		}
		s, e := d.lineRange(a, b)
		return d.runes(s, e) <= lim.MaxChars
	}

	var out []span
	i := from
	for i <= to {
		if oversized(i) {
			s, e := d.lines.bounds(i, len(d.text))
			out = append(out, d.runeWindows(s, e, lim.MaxChars, overlap, section)...)
			i++
			continue
		}

		j := i
		for j+1 <= to && !oversized(j+1) && fits(i, j+1) {
			j++
		}
		s, e := d.lineRange(i, j)
		out = d.appendSpan(out, s, e, section)
		if j >= to {
			break
		}

		next := j + 1
		if !oversized(next) {
			n := j - i + 1
			ov := overlapCount(overlap, n)
			if ov >= n {
				ov = n - 1
			}
			if ov > 0 && fits(next-ov, next) {
				next -= ov
			}
		}
		i = next
	}
	return out
}

// blank reports whether line n holds only whitespace.
func (d *doc) blank(n int) bool {
	s, e := d.lines.bounds(n, len(d.text))
	return strings.TrimSpace(d.text[s:e]) == ""
}

// lineText returns line n without its newline.
func (d *doc) lineText(n int) string {
	s, e := d.lines.bounds(n, len(d.text))
	return d.text[s:e]
}
