package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/loykin/botpanel/internal/dashboard"
	"github.com/loykin/botpanel/internal/logbuf"
)

var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Width(20)

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	stoppedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	disabledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(0, 1)

	successAlertStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("42")).
				Padding(0, 1)

	errorAlertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

type button struct {
	key    string
	label  string
	action dashboard.Action
}

var buttonRow = []button{
	{"s", "Start Bot", dashboard.ActionStart},
	{"x", "Stop Bot", dashboard.ActionStop},
	{"p", "Post Now", dashboard.ActionPost},
	{"e", "Engage Now", dashboard.ActionEngage},
}

// View renders the TUI
func (m Model) View() string {
	var b strings.Builder

	header := " " + m.title
	if m.endpoint != "" {
		header += " │ " + m.endpoint
	}
	if !m.lastRefresh.IsZero() {
		header += " │ " + m.lastRefresh.Format("15:04:05")
	}
	if m.width > 0 {
		b.WriteString(headerStyle.Width(m.width).Render(header))
	} else {
		b.WriteString(headerStyle.Render(header))
	}
	b.WriteString("\n")

	b.WriteString(m.section(m.renderStats()))
	b.WriteString("\n")
	b.WriteString(m.renderButtons())
	b.WriteString("\n")
	b.WriteString(m.renderAlert())
	b.WriteString("\n")
	b.WriteString(m.section("Activity Log\n" + m.log.View()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s start • x stop • p post • e engage • r refresh • ↑/↓ scroll • q quit"))

	return b.String()
}

func (m Model) section(content string) string {
	if m.width > 2 {
		return sectionStyle.Width(m.width - 2).Render(content)
	}
	return sectionStyle.Render(content)
}

func (m Model) renderStats() string {
	status := m.snap.Widget(dashboard.ElementStatus)
	rows := []string{
		row("Status", indicatorStyle(status.Indicator).Render("● ")+valueStyle.Render(orDash(status.Text))),
		row("Last Post", valueStyle.Render(orDash(m.snap.Widget(dashboard.ElementLastPost).Text))),
		row("Posts Today", valueStyle.Render(orDash(m.snap.Widget(dashboard.ElementPostsToday).Text))),
		row("Engagements Today", valueStyle.Render(orDash(m.snap.Widget(dashboard.ElementEngagementsToday).Text))),
	}
	if m.panel == nil || m.panel.Has(dashboard.ElementContentPool) {
		rows = append(rows, row("Content Pool", valueStyle.Render(orDash(m.snap.Widget(dashboard.ElementContentPool).Text))))
	}
	return strings.Join(rows, "\n")
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func (m Model) renderButtons() string {
	parts := make([]string, 0, len(buttonRow))
	for _, btn := range buttonRow {
		el := buttons[btn.action]
		if m.panel != nil && !m.panel.Has(el) {
			continue
		}
		w := m.snap.Widget(el)
		switch {
		case w.Loading:
			parts = append(parts, loadingStyle.Padding(0, 1).Render(m.spinner.View()+" "+btn.label))
		case w.Disabled:
			parts = append(parts, disabledStyle.Render(fmt.Sprintf("[%s] %s", btn.key, btn.label)))
		default:
			parts = append(parts, buttonStyle.Render(fmt.Sprintf("[%s] %s", btn.key, btn.label)))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderAlert() string {
	a := m.snap.Alert
	if a == nil {
		return ""
	}
	if a.Severity == dashboard.SeverityError {
		return errorAlertStyle.Render(a.Message)
	}
	return successAlertStyle.Render(a.Message)
}

func renderLog(entries []logbuf.Entry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}

func indicatorStyle(class string) lipgloss.Style {
	switch class {
	case "running":
		return runningStyle
	case "error":
		return errorStyle
	default:
		return stoppedStyle
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
