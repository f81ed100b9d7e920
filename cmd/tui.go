package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/desertthunder/spotbar/internal/ui"
	"github.com/urfave/cli/v3"
)

// Bar launches the live status display and the background poller feeding it.
func (r *Runner) Bar(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := r.config.Log.File
	if logPath == "" {
		logPath = "./tmp/spotbar.log"
	}
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}

	notices := ui.NewChannelNotifier(16)
	r.logger = fileLogger
	r.SetNotifier(notices)
	r.restore(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := r.poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("status poller stopped", "error", err)
		}
	}()

	model := ui.NewModel(ctx, ui.ModelOpts{
		Player:  r.player,
		Auth:    r.manager,
		Status:  r.poller,
		Notices: notices.Notices(),
	})
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running status display: %w", err)
	}

	return nil
}
