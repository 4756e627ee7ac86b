// Package progress renders ingestion progress on a terminal.
package progress

import (
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
)

// Ensure Bar implements the interface.
var _ driven.ProgressReporter = (*Bar)(nil)

// Bar is a progressbar-backed driven.ProgressReporter. A disabled Bar, or one
// that was never started, ignores every call.
type Bar struct {
	mu      sync.Mutex
	out     io.Writer
	enabled bool
	bar     *progressbar.ProgressBar
}

// New creates a reporter writing to out.
func New(out io.Writer, enabled bool) *Bar {
	return &Bar{out: out, enabled: enabled}
}

// SetEnabled turns output on or off for the next Start.
func (b *Bar) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enabled
}

// Start begins a bar. A negative total shows a spinner with a running count,
// used while the number of documents is unknown.
func (b *Bar) Start(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.enabled {
		return
	}
	b.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(b.out),
		progressbar.OptionSetDescription("indexing"),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowIts(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// Add advances the bar.
func (b *Bar) Add(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar == nil {
		return
	}
	_ = b.bar.Add(n)
}

// Describe replaces the bar's label.
func (b *Bar) Describe(desc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar == nil {
		return
	}
	b.bar.Describe(desc)
}

// Finish clears the bar. Later calls are no-ops until the next Start.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar == nil {
		return
	}
	_ = b.bar.Finish()
	b.bar = nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
