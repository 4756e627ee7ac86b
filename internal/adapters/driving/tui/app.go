package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/kimchi/internal/adapters/driving/cli/render"
	"github.com/custodia-labs/kimchi/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/kimchi/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/kimchi/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kimchi/internal/adapters/driving/tui/views/passage"
	"github.com/custodia-labs/kimchi/internal/adapters/driving/tui/views/search"
)

// App switches between the query, passage and help screens.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *render.Styles
	keys   *keymap.KeyMap
	help   help.Model

	searchView  *search.View
	passageView *passage.View
	current     messages.ViewType

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := render.DefaultStyles()
	km := keymap.DefaultKeyMap()
	return &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keys:        km,
		help:        help.New(),
		searchView:  search.NewView(s, km, ports.Retrieval, ports.K),
		passageView: passage.NewView(s, km),
		current:     messages.ViewSearch,
	}, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.searchView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("kimchi"),
		a.searchView.Init(),
	)
}

// Update routes keys to the active screen and results to the screen that
// asked for them.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
	case tea.KeyMsg:
		cmd = a.onKey(msg)
	case messages.RetrieveCompleted:
		a.searchView, cmd = a.searchView.Update(msg)
	case messages.PassageSelected:
		a.passageView.SetHit(msg.Hit)
		a.current = messages.ViewPassage
	case messages.AskRequested:
		cmd = a.ask(msg.Query)
	case messages.AnswerCompleted:
		a.passageView, cmd = a.passageView.Update(msg)
		if msg.Err != nil {
			a.searchView.SetStatus(status.StateError, msg.Err.Error())
		} else {
			a.searchView.SetStatus(status.StateResults, "")
		}
	case messages.ViewChanged:
		a.current = msg.View
	case messages.ErrorOccurred:
		if a.current == messages.ViewPassage {
			a.passageView, cmd = a.passageView.Update(msg)
		} else {
			a.searchView, cmd = a.searchView.Update(msg)
		}
	case messages.Quit:
		cmd = tea.Quit
	default:
		// cursor blink
		if a.current == messages.ViewSearch {
			a.searchView, cmd = a.searchView.Update(msg)
		}
	}
	return a, cmd
}

func (a *App) onKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}
	var cmd tea.Cmd
	switch a.current {
	case messages.ViewSearch:
		a.searchView, cmd = a.searchView.Update(msg)
	case messages.ViewPassage:
		a.passageView, cmd = a.passageView.Update(msg)
	case messages.ViewHelp:
		if key.Matches(msg, a.keys.Back, a.keys.Quit, a.keys.Help) {
			a.current = messages.ViewSearch
		}
	}
	return cmd
}

// ask opens the passage screen and requests an answer in the background.
func (a *App) ask(query string) tea.Cmd {
	if a.ports.Answer == nil {
		a.searchView.SetStatus(status.StateError, ErrNoLLM.Error())
		return nil
	}
	a.passageView.SetLoading(query)
	a.current = messages.ViewPassage
	ctx, svc, k := a.ctx, a.ports.Answer, a.ports.K
	return func() tea.Msg {
		answer, err := svc.Ask(ctx, query, k)
		return messages.AnswerCompleted{Answer: answer, Err: err}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}
	switch a.current {
	case messages.ViewPassage:
		return a.passageView.View()
	case messages.ViewHelp:
		return a.styles.Title.Render("Keys") + "\n\n" +
			a.help.FullHelpView(a.keys.FullHelp()) + "\n\n" +
			a.styles.Muted.Render("ctrl+c quits from any screen. Press esc to go back.")
	default:
		return a.searchView.View()
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.current
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width, a.height = width, height
	a.ready = true
	a.help.Width = width
	a.searchView.SetDimensions(width, height)
	a.passageView.SetDimensions(width, height)
}
