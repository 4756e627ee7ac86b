// Package status renders the one-line bar under the result list: what the
// explorer is doing on the left, the keys that apply on the right.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/kimchi/internal/adapters/driving/cli/render"
	"github.com/custodia-labs/kimchi/internal/adapters/driving/tui/keymap"
)

// State is what the explorer is currently doing.
type State string

const (
	StateReady     State = "ready"
	StateSearching State = "searching"
	StateAsking    State = "asking"
	StateError     State = "error"
	StateResults   State = "results"
)

// Bar is the status line.
type Bar struct {
	styles *render.Styles
	keys   *keymap.KeyMap
	help   help.Model

	state   State
	message string
	hits    int
	width   int
}

// NewBar creates a bar in StateReady. Nil arguments take defaults.
func NewBar(s *render.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = render.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	h := help.New()
	h.Styles.ShortKey = s.Muted.Bold(true)
	h.Styles.ShortDesc = s.Muted
	h.Styles.ShortSeparator = s.Border
	return &Bar{styles: s, keys: km, help: h, state: StateReady, width: 80}
}

// View renders the bar at its width. Hints are truncated first when the
// line is too narrow.
func (b *Bar) View() string {
	left := b.summary()
	inner := b.width - b.styles.StatusBar.GetHorizontalFrameSize()

	b.help.Width = max(inner-lipgloss.Width(left)-1, 0)
	right := b.help.ShortHelpView(b.bindings())

	gap := max(inner-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return b.styles.StatusBar.Width(b.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (b *Bar) summary() string {
	switch b.state {
	case StateSearching:
		return b.styles.Muted.Render("Retrieving...")
	case StateAsking:
		return b.styles.Muted.Render("Asking the model...")
	case StateError:
		if b.message == "" {
			return b.styles.Error.Render("Error")
		}
		return b.styles.Error.Render("Error: " + b.message)
	}
	switch {
	case b.message != "":
		return b.styles.Normal.Render(b.message)
	case b.hits == 1:
		return b.styles.Normal.Render("1 passage")
	case b.hits > 0:
		return b.styles.Normal.Render(fmt.Sprintf("%d passages", b.hits))
	}
	return b.styles.Muted.Render("Ready")
}

func (b *Bar) bindings() []key.Binding {
	if b.state == StateResults && b.hits > 0 {
		return b.keys.ResultsHelp()
	}
	return b.keys.ShortHelp()
}

// SetState changes the state and keeps the message.
func (b *Bar) SetState(state State) {
	b.state = state
}

func (b *Bar) State() State {
	return b.state
}

// SetMessage replaces the default summary for the current state.
func (b *Bar) SetMessage(message string) {
	b.message = message
}

func (b *Bar) Message() string {
	return b.message
}

// SetResultCount sets the number of hits on display.
func (b *Bar) SetResultCount(n int) {
	b.hits = n
}

func (b *Bar) SetWidth(width int) {
	b.width = width
}

// Clear returns to StateReady with no message or hits.
func (b *Bar) Clear() {
	b.state, b.message, b.hits = StateReady, "", 0
}
