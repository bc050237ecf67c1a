package tui

import (
	"context"
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/loykin/botpanel/internal/dashboard"
)

// Options configures Run.
type Options struct {
	Title    string
	Endpoint string
	Input    io.Reader
	Output   io.Writer
	// AltScreen switches the terminal to the alternate buffer while running.
	AltScreen bool
}

// Run shows the panel until the user quits or ctx is done.
func Run(ctx context.Context, d Dispatcher, panel *dashboard.Panel, opts Options) error {
	changes := make(chan struct{}, 1)
	// coalesce: one pending signal is enough to trigger a repaint
	panel.OnChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer panel.OnChange(nil)

	model := NewModel(ModelConfig{
		Context:    ctx,
		Title:      opts.Title,
		Endpoint:   opts.Endpoint,
		Dispatcher: d,
		Panel:      panel,
		Changes:    changes,
	})

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}
	if opts.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}

	_, err := tea.NewProgram(model, progOpts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
