// Package list renders ranked retrieval hits with a movable selection.
package list

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/kimchi/internal/adapters/driving/cli/render"
	"github.com/custodia-labs/kimchi/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// rowHeight is the heading, preview and blank line of one hit.
const rowHeight = 3

// ResultList shows hits in rank order, scrolled so the selection stays on
// screen.
type ResultList struct {
	styles *render.Styles
	keys   *keymap.KeyMap

	hits   []domain.ScoredRecord
	cursor int
	width  int
	height int
}

// NewResultList returns an empty list. Nil arguments take defaults.
func NewResultList(s *render.Styles, km *keymap.KeyMap) *ResultList {
	if s == nil {
		s = render.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &ResultList{styles: s, keys: km, width: 80, height: 10}
}

func (r *ResultList) Init() tea.Cmd {
	return nil
}

// Update moves the selection.
func (r *ResultList) Update(msg tea.Msg) (*ResultList, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return r, nil
	}
	switch {
	case key.Matches(km, r.keys.Up):
		r.MoveUp()
	case key.Matches(km, r.keys.Down):
		r.MoveDown()
	case key.Matches(km, r.keys.PageUp):
		r.SetSelected(max(r.cursor-r.rows(), 0))
	case key.Matches(km, r.keys.PageDown):
		r.SetSelected(min(r.cursor+r.rows(), len(r.hits)-1))
	case key.Matches(km, r.keys.Top):
		r.SetSelected(0)
	case key.Matches(km, r.keys.Bottom):
		r.SetSelected(len(r.hits) - 1)
	}
	return r, nil
}

// rows is how many hits fit below the heading.
func (r *ResultList) rows() int {
	return max((r.height-4)/rowHeight, 1)
}

// View renders the visible window of hits.
func (r *ResultList) View() string {
	if len(r.hits) == 0 {
		return r.styles.Muted.Render("No results")
	}

	first := max(r.cursor-r.rows()+1, 0)
	last := min(first+r.rows(), len(r.hits))

	var b strings.Builder
	b.WriteString(r.styles.Subtitle.Render(fmt.Sprintf("Passages (%d)", len(r.hits))))
	b.WriteString("\n")
	for i := first; i < last; i++ {
		b.WriteString("\n")
		b.WriteString(r.row(i))
	}
	return b.String()
}

// row renders hit i as its provenance and score over a one-line preview.
func (r *ResultList) row(i int) string {
	hit := r.hits[i]
	marker, style := "  ", r.styles.Normal
	if i == r.cursor {
		marker, style = "> ", r.styles.Selected
	}
	heading := style.Render(marker+truncate(render.Provenance(hit.Record.Metadata), max(r.width-20, 10))) +
		"  " + r.styles.Muted.Render(fmt.Sprintf("%.4f", hit.Score))
	preview := r.styles.Muted.Render("    " + truncate(firstLine(hit.Record.Text), max(r.width-6, 20)))
	return heading + "\n" + preview
}

func firstLine(text string) string {
	for line := range strings.SplitSeq(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}

// truncate shortens s to n runes, ending in an ellipsis when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// SetHits replaces the hits and selects the first.
func (r *ResultList) SetHits(hits []domain.ScoredRecord) {
	r.hits, r.cursor = hits, 0
}

func (r *ResultList) Hits() []domain.ScoredRecord {
	return r.hits
}

// Selected is the index of the selected hit.
func (r *ResultList) Selected() int {
	return r.cursor
}

// SetSelected moves the selection to i. Out-of-range values are ignored.
func (r *ResultList) SetSelected(i int) {
	if i >= 0 && i < len(r.hits) {
		r.cursor = i
	}
}

// SelectedHit returns the selected hit, or nil for an empty list.
func (r *ResultList) SelectedHit() *domain.ScoredRecord {
	if r.cursor >= len(r.hits) {
		return nil
	}
	return &r.hits[r.cursor]
}

func (r *ResultList) MoveUp() {
	r.SetSelected(r.cursor - 1)
}

func (r *ResultList) MoveDown() {
	r.SetSelected(r.cursor + 1)
}

func (r *ResultList) SetDimensions(width, height int) {
	r.width, r.height = width, height
}

func (r *ResultList) Count() int {
	return len(r.hits)
}
