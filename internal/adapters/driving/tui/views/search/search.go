// Package search is the explorer's main screen: a query line, the ranked
// hits and the status bar.
package search

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/kimchi/internal/adapters/driving/cli/render"
	"github.com/custodia-labs/kimchi/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/kimchi/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/kimchi/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/kimchi/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/kimchi/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driving"
)

// chromeLines is the height taken by everything except the hit list.
const chromeLines = 10

// View has two modes: typing a query, and browsing the hits of the last
// one. Submitting a query switches to browsing once hits arrive; n or esc
// switch back.
type View struct {
	styles *render.Styles
	keymap *keymap.KeyMap

	input  *input.QueryInput
	list   *list.ResultList
	status *status.Bar

	retrieval driving.RetrievalService
	k         int
	ctx       context.Context

	query  string
	err    error
	typing bool
	ready  bool
	width  int
	height int
}

// NewView creates the screen. Each query retrieves k passages.
func NewView(s *render.Styles, km *keymap.KeyMap, retrieval driving.RetrievalService, k int) *View {
	if s == nil {
		s = render.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:    s,
		keymap:    km,
		input:     input.NewQueryInput(s),
		list:      list.NewResultList(s, km),
		status:    status.NewBar(s, km),
		retrieval: retrieval,
		k:         k,
		ctx:       context.Background(),
		typing:    true,
		width:     80,
		height:    24,
	}
}

// WithContext sets the context retrieval runs under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update routes keys by mode and records retrieval results.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil
	case tea.KeyMsg:
		if v.typing {
			return v.typingKey(msg)
		}
		return v, v.browsingKey(msg)
	case messages.RetrieveCompleted:
		v.showHits(msg)
		return v, nil
	case messages.ErrorOccurred:
		v.fail(msg.Err)
		return v, nil
	}

	// cursor blink
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) typingKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keymap.Search):
		q := strings.TrimSpace(v.input.Value())
		if q == "" {
			return v, nil
		}
		v.query, v.err = q, nil
		v.status.SetMessage("")
		v.status.SetState(status.StateSearching)
		return v, v.retrieve(q)

	case key.Matches(msg, v.keymap.Back):
		if v.list.Count() > 0 {
			v.browse()
		}
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) browsingKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, v.keymap.Open):
		hit := v.list.SelectedHit()
		if hit == nil {
			return nil
		}
		selected := *hit
		return emit(messages.PassageSelected{Hit: selected})

	case key.Matches(msg, v.keymap.Ask):
		if v.query == "" {
			return nil
		}
		v.status.SetState(status.StateAsking)
		return emit(messages.AskRequested{Query: v.query})

	case key.Matches(msg, v.keymap.NewSearch):
		v.typing = true
		v.input.SetValue("")
		return v.input.Focus()

	case key.Matches(msg, v.keymap.Help):
		return emit(messages.ViewChanged{View: messages.ViewHelp})

	case key.Matches(msg, v.keymap.Quit):
		return emit(messages.Quit{})
	}

	v.list, _ = v.list.Update(msg)
	return nil
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// retrieve runs off the update loop and reports back as RetrieveCompleted.
func (v *View) retrieve(q string) tea.Cmd {
	ctx, svc, k := v.ctx, v.retrieval, v.k
	return func() tea.Msg {
		if svc == nil {
			return messages.ErrorOccurred{Err: ErrNoRetrievalService}
		}
		hits, err := svc.Retrieve(ctx, q, k)
		return messages.RetrieveCompleted{Query: q, Hits: hits, Err: err}
	}
}

func (v *View) showHits(msg messages.RetrieveCompleted) {
	if msg.Err != nil {
		v.fail(msg.Err)
		return
	}
	v.err = nil
	v.list.SetHits(msg.Hits)
	v.status.SetState(status.StateResults)
	v.status.SetResultCount(len(msg.Hits))
	v.browse()
}

// browse leaves the input showing the query the hits belong to.
func (v *View) browse() {
	v.typing = false
	v.input.Blur()
	v.input.SetValue(v.query)
}

func (v *View) fail(err error) {
	v.err = err
	v.status.SetState(status.StateError)
	v.status.SetMessage(err.Error())
}

// View renders the screen.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	parts := []string{v.styles.Title.Render("kimchi"), "", v.input.View(), ""}
	if v.err != nil {
		parts = append(parts, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}
	parts = append(parts, v.list.View(), "", v.status.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// SetDimensions resizes the input, list and status bar.
func (v *View) SetDimensions(width, height int) {
	v.width, v.height, v.ready = width, height, true
	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-chromeLines)
	v.status.SetWidth(width)
}

// SetStatus overrides the status bar, e.g. with the outcome of an answer.
func (v *View) SetStatus(state status.State, message string) {
	v.status.SetState(state)
	v.status.SetMessage(message)
}

func (v *View) Ready() bool {
	return v.ready
}

// Query returns the last submitted query.
func (v *View) Query() string {
	return v.query
}

func (v *View) Hits() []domain.ScoredRecord {
	return v.list.Hits()
}

func (v *View) SelectedHit() *domain.ScoredRecord {
	return v.list.SelectedHit()
}

func (v *View) Err() error {
	return v.err
}

// InputFocused reports whether keys go to the query line.
func (v *View) InputFocused() bool {
	return v.typing
}
