// Package passage shows one retrieved passage, or a synthesized answer
// with its sources, in a scrollable viewport.
package passage

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/kimchi/internal/adapters/driving/cli/render"
	"github.com/custodia-labs/kimchi/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/kimchi/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// chromeLines covers the title, rule, position line and help.
const chromeLines = 6

// View is the passage screen.
type View struct {
	styles *render.Styles
	keys   *keymap.KeyMap
	help   help.Model
	vp     viewport.Model

	title   string
	details []string
	content string
	lines   []string
	loading bool
	err     error
	width   int
	height  int
}

// NewView creates an empty passage screen. Nil arguments take defaults.
func NewView(s *render.Styles, km *keymap.KeyMap) *View {
	if s == nil {
		s = render.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	v := &View{styles: s, keys: km, help: help.New(), vp: viewport.New(80, 1)}
	v.SetDimensions(80, 24)
	return v
}

// SetHit shows a retrieved passage under its provenance.
func (v *View) SetHit(hit domain.ScoredRecord) {
	md := hit.Record.Metadata
	details := []string{fmt.Sprintf("strategy %s, score %.4f", md.Strategy, hit.Score)}
	if md.Section != "" {
		details = append(details, "section "+md.Section)
	}
	v.show(render.Provenance(md), details, hit.Record.Text)
}

// SetLoading shows a placeholder while the answer to query is produced.
func (v *View) SetLoading(query string) {
	v.show("Answer", []string{query}, "")
	v.loading = true
}

// SetAnswer shows an answer followed by its numbered sources.
func (v *View) SetAnswer(a *domain.Answer) {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(a.Text))
	if len(a.Sources) > 0 {
		b.WriteString("\n\nSources:\n")
		for i, src := range a.Sources {
			fmt.Fprintf(&b, "  [%d] %s (%.4f)\n", i+1, render.Provenance(src.Record.Metadata), src.Score)
		}
	}
	details := []string{a.Query}
	if a.Model != "" {
		details = append(details, "model "+a.Model)
	}
	v.show("Answer", details, b.String())
}

// SetError replaces the content with err.
func (v *View) SetError(err error) {
	v.loading = false
	v.err = err
}

func (v *View) show(title string, details []string, content string) {
	v.title, v.details, v.content = title, details, content
	v.loading, v.err = false, nil
	v.layout()
	v.vp.GotoTop()
}

func (v *View) Init() tea.Cmd {
	return nil
}

// Update scrolls on keys and fills in answers as they arrive.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case tea.KeyMsg:
		return v, v.onKey(msg)
	case messages.AnswerCompleted:
		if msg.Err != nil {
			v.SetError(msg.Err)
		} else {
			v.SetAnswer(msg.Answer)
		}
	case messages.ErrorOccurred:
		v.SetError(msg.Err)
	}
	return v, nil
}

func (v *View) onKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, v.keys.Back), key.Matches(msg, v.keys.Quit):
		return func() tea.Msg { return messages.ViewChanged{View: messages.ViewSearch} }
	case key.Matches(msg, v.keys.Top):
		v.vp.GotoTop()
	case key.Matches(msg, v.keys.Bottom):
		v.vp.GotoBottom()
	default:
		// line, half-page and page scrolling
		v.vp, _ = v.vp.Update(msg)
	}
	return nil
}

// reflow hard-wraps the content to the viewport width. Passages are mostly
// code, so lines are cut at the width rather than at word boundaries.
func (v *View) reflow() {
	v.lines = v.lines[:0]
	if v.content != "" {
		width := max(v.width-4, 20)
		for _, line := range strings.Split(strings.TrimRight(v.content, "\n"), "\n") {
			r := []rune(line)
			for len(r) > width {
				v.lines = append(v.lines, string(r[:width]))
				r = r[width:]
			}
			v.lines = append(v.lines, string(r))
		}
	}
	v.vp.SetContent(strings.Join(v.lines, "\n"))
}

// View renders the screen.
func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render(v.title) + "\n")
	for _, d := range v.details {
		b.WriteString(v.styles.Muted.Render(d) + "\n")
	}
	b.WriteString(v.styles.Border.Render(strings.Repeat("─", min(max(v.width-4, 1), 60))) + "\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Asking the model...") + "\n")
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: "+v.err.Error()) + "\n")
	case len(v.lines) == 0:
		b.WriteString(v.styles.Muted.Render("(No content)") + "\n")
	default:
		b.WriteString(v.vp.View() + "\n")
		if len(v.lines) > v.vp.Height {
			last := min(v.vp.YOffset+v.vp.Height, len(v.lines))
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  Line %d-%d of %d (%3.0f%%)",
				v.vp.YOffset+1, last, len(v.lines), v.vp.ScrollPercent()*100)) + "\n")
		}
	}

	b.WriteString("\n" + v.help.ShortHelpView(v.keys.PassageHelp()))
	return b.String()
}

// SetDimensions resizes the viewport and rewraps the content.
func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height
	v.help.Width = width
	v.layout()
}

// layout fits the viewport below the title and detail lines.
func (v *View) layout() {
	v.vp.Width = v.width
	v.vp.Height = max(v.height-chromeLines-len(v.details), 1)
	v.reflow()
}

func (v *View) Title() string {
	return v.title
}

// Content returns the text before wrapping.
func (v *View) Content() string {
	return v.content
}

// Loading reports whether an answer is pending.
func (v *View) Loading() bool {
	return v.loading
}

func (v *View) Err() error {
	return v.err
}
