package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// fixed rows taken by everything except the log
const chromeHeight = 14

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "down", "k", "j", "pgup", "pgdown":
			var cmd tea.Cmd
			m.log, cmd = m.log.Update(msg)
			return m, cmd
		default:
			action, ok := keyActions[key]
			if !ok || m.dispatch == nil || !m.enabled(action) {
				return m, nil
			}
			return m, m.dispatchCmd(action)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.log.Width = max(msg.Width-4, 20)
		m.log.Height = max(msg.Height-chromeHeight, 3)
		return m, nil

	case changedMsg:
		m.refresh()
		return m, tea.Batch(waitForChange(m.changes), m.startSpinner())

	case actionDoneMsg:
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.loading() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.lastRefresh = time.Time(msg)
		return m, tickCmd()
	}

	return m, nil
}

// startSpinner begins spinner ticks when a button turned busy.
func (m *Model) startSpinner() tea.Cmd {
	if m.spinning || !m.loading() {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}
