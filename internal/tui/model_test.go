package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/loykin/botpanel/internal/dashboard"
	"github.com/loykin/botpanel/internal/logbuf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	actions []dashboard.Action
	err     error
}

func (r *recorder) Dispatch(_ context.Context, a dashboard.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
	return r.err
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(panel *dashboard.Panel, d Dispatcher) Model {
	return NewModel(ModelConfig{Dispatcher: d, Panel: panel, Endpoint: "http://localhost:5000/api"})
}

func press(t *testing.T, m Model, k string) (Model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(key(k))
	model := next.(Model)
	if cmd == nil {
		return model, nil
	}
	return model, cmd()
}

func TestKeysDispatchActions(t *testing.T) {
	panel := dashboard.NewPanel()
	rec := &recorder{}
	m := newTestModel(panel, rec)

	for _, k := range []string{"s", "x", "p", "e", "r"} {
		var msg tea.Msg
		m, msg = press(t, m, k)
		require.IsType(t, actionDoneMsg{}, msg, "key %s", k)
	}
	assert.Equal(t, []dashboard.Action{
		dashboard.ActionStart, dashboard.ActionStop, dashboard.ActionPost,
		dashboard.ActionEngage, dashboard.ActionRefresh,
	}, rec.actions)
}

func TestDisabledButtonIgnoresKey(t *testing.T) {
	panel := dashboard.NewPanel()
	panel.SetDisabled(dashboard.ElementStopBot, true)
	panel.SetLoading(dashboard.ElementManualPost, true)
	rec := &recorder{}
	m := newTestModel(panel, rec)

	_, msg := press(t, m, "x")
	assert.Nil(t, msg)
	_, msg = press(t, m, "p")
	assert.Nil(t, msg)
	assert.Empty(t, rec.actions)
}

func TestMissingButtonIgnoresKey(t *testing.T) {
	panel := dashboard.NewPanel(dashboard.ElementStatus, dashboard.ElementStartBot)
	rec := &recorder{}
	m := newTestModel(panel, rec)

	_, msg := press(t, m, "e")
	assert.Nil(t, msg)
	_, msg = press(t, m, "s")
	assert.NotNil(t, msg)
	assert.Equal(t, []dashboard.Action{dashboard.ActionStart}, rec.actions)
}

func TestQuit(t *testing.T) {
	m := newTestModel(dashboard.NewPanel(), &recorder{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestActionErrorDoesNotCrash(t *testing.T) {
	rec := &recorder{err: errors.New("boom")}
	m := newTestModel(dashboard.NewPanel(), rec)
	m, msg := press(t, m, "s")
	done, ok := msg.(actionDoneMsg)
	require.True(t, ok)
	assert.EqualError(t, done.Err, "boom")

	next, cmd := m.Update(done)
	assert.Nil(t, cmd)
	assert.IsType(t, Model{}, next)
}

func TestChangedMsgRefreshesView(t *testing.T) {
	panel := dashboard.NewPanel()
	changes := make(chan struct{}, 1)
	m := NewModel(ModelConfig{Dispatcher: &recorder{}, Panel: panel, Changes: changes})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	panel.SetText(dashboard.ElementStatus, "Running")
	panel.SetIndicator(dashboard.ElementStatus, "running")
	panel.SetText(dashboard.ElementPostsToday, "3")
	panel.RenderLog(dashboard.ElementLogContainer, []logbuf.Entry{{Stamp: "14:30:00", Message: "Bot started"}})
	panel.ShowAlert(dashboard.ElementAlert, dashboard.Alert{ID: "1", Message: "Bot started successfully", Severity: dashboard.SeveritySuccess})

	next, cmd := m.Update(changedMsg{})
	assert.NotNil(t, cmd, "keeps waiting for changes")
	m = next.(Model)

	view := m.View()
	assert.Contains(t, view, "Running")
	assert.Contains(t, view, "Bot started successfully")
	assert.Contains(t, view, "[14:30:00] Bot started")
	assert.Equal(t, "3", m.snap.Widget(dashboard.ElementPostsToday).Text)
}

func TestViewShowsButtonsAndHelp(t *testing.T) {
	panel := dashboard.NewPanel()
	m := newTestModel(panel, &recorder{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	view := next.(Model).View()

	for _, want := range []string{"Bot Dashboard", "[s] Start Bot", "[x] Stop Bot", "[p] Post Now", "[e] Engage Now", "q quit", "No activity yet."} {
		assert.True(t, strings.Contains(view, want), "view missing %q", want)
	}
}

func TestSpinnerOnlyWhileLoading(t *testing.T) {
	panel := dashboard.NewPanel()
	changes := make(chan struct{}, 1)
	m := NewModel(ModelConfig{Dispatcher: &recorder{}, Panel: panel, Changes: changes})

	panel.SetLoading(dashboard.ElementStartBot, true)
	next, _ := m.Update(changedMsg{})
	m = next.(Model)
	assert.True(t, m.spinning)
	assert.True(t, m.loading())

	panel.SetLoading(dashboard.ElementStartBot, false)
	next, _ = m.Update(changedMsg{})
	m = next.(Model)
	assert.False(t, m.loading())
}

func TestWindowResizeSizesLog(t *testing.T) {
	m := newTestModel(dashboard.NewPanel(), &recorder{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(Model)
	assert.Equal(t, 96, m.log.Width)
	assert.Equal(t, 40-chromeHeight, m.log.Height)
}
