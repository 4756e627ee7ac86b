// Package plaintext decodes file bytes into UTF-8 text.
package plaintext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// binarySniffLen is how much of a file is inspected for NUL bytes.
const binarySniffLen = 8 << 10

var (
	// ErrBinary indicates content that is not text.
	ErrBinary = errors.New("binary content")

	// ErrUndecodable indicates content that no configured encoding accepts.
	ErrUndecodable = errors.New("undecodable content")
)

// Decoded is the result of decoding one file.
type Decoded struct {
	Text     string
	Encoding string
}

// Decoder converts file bytes to text.
//
// The order is: byte-order mark, then strict UTF-8, then the fallback
// encoding. Line endings are normalised to "\n".
type Decoder struct {
	fallback     encoding.Encoding
	fallbackName string
}

// NewDecoder creates a decoder with the given fallback encoding name
// ("windows-1252", "latin1", "shift_jis", ...). An empty name disables
// the fallback, so only UTF-8 input is accepted.
func NewDecoder(fallback string) (*Decoder, error) {
	d := &Decoder{}
	if fallback == "" {
		return d, nil
	}
	enc, err := htmlindex.Get(fallback)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", fallback, err)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = strings.ToLower(fallback)
	}
	d.fallback = enc
	d.fallbackName = name
	return d, nil
}

// FallbackName returns the canonical name of the fallback encoding.
func (d *Decoder) FallbackName() string {
	return d.fallbackName
}

// Decode converts data to text.
func (d *Decoder) Decode(data []byte) (Decoded, error) {
	if enc, name, n := sniffBOM(data); enc != nil {
		out, err := enc.NewDecoder().Bytes(data[n:])
		if err != nil {
			return Decoded{}, fmt.Errorf("%w: %s: %v", ErrUndecodable, name, err)
		}
		return Decoded{Text: normaliseNewlines(string(out)), Encoding: name}, nil
	}

	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return Decoded{}, ErrBinary
	}

	if utf8.Valid(data) {
		return Decoded{Text: normaliseNewlines(string(data)), Encoding: "utf-8"}, nil
	}

	if d.fallback == nil {
		return Decoded{}, fmt.Errorf("%w: not valid utf-8", ErrUndecodable)
	}
	out, err := d.fallback.NewDecoder().Bytes(data)
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %s: %v", ErrUndecodable, d.fallbackName, err)
	}
	return Decoded{Text: normaliseNewlines(string(out)), Encoding: d.fallbackName}, nil
}

// sniffBOM returns the encoding declared by a byte-order mark and the
// mark's length.
func sniffBOM(data []byte) (encoding.Encoding, string, int) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return unicode.UTF8, "utf-8", 3
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), "utf-16le", 2
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), "utf-16be", 2
	default:
		return nil, "", 0
	}
}

func normaliseNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
