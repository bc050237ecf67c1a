// Package tui is the terminal front end of the dashboard. It renders a
// dashboard.Panel and turns key presses into controller actions.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/loykin/botpanel/internal/dashboard"
)

// Dispatcher runs a named dashboard action.
type Dispatcher interface {
	Dispatch(ctx context.Context, action dashboard.Action) error
}

// Key bindings
var keyActions = map[string]dashboard.Action{
	"s": dashboard.ActionStart,
	"x": dashboard.ActionStop,
	"p": dashboard.ActionPost,
	"e": dashboard.ActionEngage,
	"r": dashboard.ActionRefresh,
}

// buttons maps actions to the element that gates them. Refresh is always allowed.
var buttons = map[dashboard.Action]dashboard.Element{
	dashboard.ActionStart:  dashboard.ElementStartBot,
	dashboard.ActionStop:   dashboard.ElementStopBot,
	dashboard.ActionPost:   dashboard.ElementManualPost,
	dashboard.ActionEngage: dashboard.ElementManualEngage,
}

// Model is the bubbletea model.
type Model struct {
	ctx      context.Context
	title    string
	endpoint string
	dispatch Dispatcher
	panel    *dashboard.Panel
	changes  <-chan struct{}

	snap     dashboard.Snapshot
	log      viewport.Model
	spinner  spinner.Model
	spinning bool
	width    int
	height   int

	lastRefresh time.Time
}

// ModelConfig holds what the model needs to run.
type ModelConfig struct {
	Context    context.Context
	Title      string
	Endpoint   string
	Dispatcher Dispatcher
	Panel      *dashboard.Panel
	// Changes is signalled whenever the panel changes. May be nil in tests.
	Changes <-chan struct{}
}

// NewModel creates a new TUI model
func NewModel(cfg ModelConfig) Model {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	title := cfg.Title
	if title == "" {
		title = "Bot Dashboard"
	}

	log := viewport.New(80, 10)
	log.SetContent("No activity yet.")

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = loadingStyle

	m := Model{
		ctx:      ctx,
		title:    title,
		endpoint: cfg.Endpoint,
		dispatch: cfg.Dispatcher,
		panel:    cfg.Panel,
		changes:  cfg.Changes,
		log:      log,
		spinner:  spin,
	}
	m.refresh()
	return m
}

// Init waits for the first panel change and starts the clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.changes), tickCmd())
}

// changedMsg reports that the panel was updated.
type changedMsg struct{}

// actionDoneMsg is sent when a dispatched action returns.
type actionDoneMsg struct {
	Action dashboard.Action
	Err    error
}

// tickMsg refreshes the clock in the header.
type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForChange blocks until the panel signals a change.
func waitForChange(changes <-chan struct{}) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// dispatchCmd runs an action off the UI goroutine. Failures surface through
// the panel's alert, so the error is only carried for bookkeeping.
func (m Model) dispatchCmd(action dashboard.Action) tea.Cmd {
	d, ctx := m.dispatch, m.ctx
	return func() tea.Msg {
		return actionDoneMsg{Action: action, Err: d.Dispatch(ctx, action)}
	}
}

// enabled reports whether the element gating action accepts input.
func (m Model) enabled(action dashboard.Action) bool {
	el, ok := buttons[action]
	if !ok {
		return true
	}
	if m.panel != nil && !m.panel.Has(el) {
		return false
	}
	w := m.snap.Widget(el)
	return !w.Disabled && !w.Loading
}

// loading reports whether any button is busy.
func (m Model) loading() bool {
	for _, w := range m.snap.Widgets {
		if w.Loading {
			return true
		}
	}
	return false
}

// refresh copies the panel state into the model.
func (m *Model) refresh() {
	if m.panel == nil {
		return
	}
	m.snap = m.panel.Snapshot()
	if len(m.snap.Log) > 0 {
		m.log.SetContent(renderLog(m.snap.Log))
		m.log.GotoBottom()
	}
}
