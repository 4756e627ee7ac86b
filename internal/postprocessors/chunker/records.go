package chunker

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/logger"
)

// maxRecordDepth bounds recursion into nested objects and arrays.
const maxRecordDepth = 8

var errTrailingData = errors.New("data after top-level value")

// record is a member of a JSON object ("key": value) or an element of an
// array, as a byte range of the document.
type record struct {
	start, end int
	valueStart int
	name       string
}

// chunkRecords splits JSON on top-level members or elements and packs small
// neighbours together. A record over the limit is split on its own members.
// Text that is not a single JSON value falls back to line windows.
func (e *Engine) chunkRecords(d *doc, lim domain.ChunkLimits) []span {
	recs, err := jsonRecords(d.text, 0, len(d.text), "")
	if err != nil {
		logger.Debug("record chunking fell back to lines: %v", err)
		return d.windowLines(1, len(d.lines), domain.ChunkLimits{MaxChars: lim.MaxChars}, e.overlap, "")
	}
	if len(recs) == 0 {
		return nil
	}
	return e.packRecords(d, recs, lim, 0, recs[0].start)
}

// jsonRecords lists the members of the JSON value in text[start:end].
// A scalar value is a single record.
func jsonRecords(text string, start, end int, prefix string) ([]record, error) {
	dec := json.NewDecoder(strings.NewReader(text[start:end]))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, errTrailingData
		}
		return []record{{start: start, end: end, valueStart: start, name: prefix}}, nil
	}

	var recs []record
	for i := 0; dec.More(); i++ {
		recStart := skipSeparators(text, start+int(dec.InputOffset()), end)
		name := joinName(prefix, "["+strconv.Itoa(i)+"]")
		if delim == '{' {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, _ := keyTok.(string)
			name = joinName(prefix, key)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		recEnd := start + int(dec.InputOffset())
		recs = append(recs, record{
			start:      recStart,
			end:        recEnd,
			valueStart: recEnd - len(raw),
			name:       name,
		})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return recs, nil
}

func skipSeparators(text string, i, end int) int {
	for i < end && (isSpace(text[i]) || text[i] == ',') {
		i++
	}
	return i
}

func joinName(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case strings.HasPrefix(name, "["):
		return prefix + name
	default:
		return prefix + "." + name
	}
}

// packRecords packs adjacent records while they fit in MaxChars. The first
// group starts at lead, which lets a split record keep its key with its
// first member; a lead that does not fit becomes a span of its own.
func (e *Engine) packRecords(d *doc, recs []record, lim domain.ChunkLimits, depth, lead int) []span {
	oversized := func(i int) bool { return d.runes(recs[i].start, recs[i].end) > lim.MaxChars }

	var out []span
	for i := 0; i < len(recs); {
		start := recs[i].start
		if i == 0 && lead < start {
			if d.runes(lead, recs[0].end) <= lim.MaxChars {
				start = lead
			} else {
				out = d.appendSpan(out, lead, start, recs[0].name)
			}
		}
		if oversized(i) {
			out = append(out, e.splitRecord(d, recs[i], lim, depth)...)
			i++
			continue
		}
		j := i
		for j+1 < len(recs) && !oversized(j+1) && d.runes(start, recs[j+1].end) <= lim.MaxChars {
			j++
		}
		out = d.appendSpan(out, start, recs[j].end, recs[i].name)
		i = j + 1
	}
	return out
}

// splitRecord breaks one oversized record into its nested members, or into
// windows when it has none. The record's key opens the first fragment.
func (e *Engine) splitRecord(d *doc, r record, lim domain.ChunkLimits, depth int) []span {
	if depth < maxRecordDepth && r.valueStart < r.end {
		if c := d.text[r.valueStart]; c == '{' || c == '[' {
			nested, err := jsonRecords(d.text, r.valueStart, r.end, r.name)
			if err == nil && len(nested) > 0 {
				return e.packRecords(d, nested, lim, depth+1, r.start)
			}
		}
	}

	from, to := d.lines.line(r.start), d.lines.line(r.end-1)
	if from == to {
		return d.runeWindows(r.start, r.end, lim.MaxChars, e.overlap, r.name)
	}
	return d.windowLines(from, to, domain.ChunkLimits{MaxChars: lim.MaxChars}, e.overlap, r.name)
}
