package chunker

import "github.com/custodia-labs/kimchi/internal/core/domain"

// chunkPlainText packs sentences up to the size limit. Consecutive chunks
// share trailing sentences worth up to overlap*MaxChars runes.
func (e *Engine) chunkPlainText(d *doc, lim domain.ChunkLimits) []span {
	return d.packSentences(sentences(d.text, 0, len(d.text)), lim.MaxChars, e.overlap, "")
}

// sentences segments text[start:end] at '.', '!' or '?' followed by
// whitespace, and at blank lines. Returned ranges are trimmed.
func sentences(text string, start, end int) [][2]int {
	var out [][2]int
	segStart := start
	add := func(s, e int) {
		for s < e && isSpace(text[s]) {
			s++
		}
		for e > s && isSpace(text[e-1]) {
			e--
		}
		if s < e {
			out = append(out, [2]int{s, e})
		}
	}
	for i := start; i < end; i++ {
		boundary := false
		switch text[i] {
		case '.', '!', '?':
			boundary = i+1 == end || isSpace(text[i+1])
		case '\n':
			boundary = i+1 < end && text[i+1] == '\n'
		}
		if boundary {
			add(segStart, i+1)
			segStart = i + 1
		}
	}
	add(segStart, end)
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// packSentences packs segments into spans of at most maxChars runes.
func (d *doc) packSentences(segs [][2]int, maxChars int, overlap float64, section string) []span {
	oversized := func(i int) bool { return d.runes(segs[i][0], segs[i][1]) > maxChars }
	fits := func(a, b int) bool { return d.runes(segs[a][0], segs[b][1]) <= maxChars }
	budget := overlapCount(overlap, maxChars)

	var out []span
	a := 0
	for a < len(segs) {
		if oversized(a) {
			out = append(out, d.runeWindows(segs[a][0], segs[a][1], maxChars, overlap, section)...)
			a++
			continue
		}

		b := a
		for b+1 < len(segs) && !oversized(b+1) && fits(a, b+1) {
			b++
		}
		out = d.appendSpan(out, segs[a][0], segs[b][1], section)
		if b+1 >= len(segs) {
			break
		}

		next := b + 1
		for next-1 > a && d.runes(segs[next-1][0], segs[b][1]) <= budget {
			next--
		}
		if next <= b && (oversized(b+1) || !fits(next, b+1)) {
			next = b + 1
		}
		a = next
	}
	return out
}
