package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/voxup/internal/tasks"
	"github.com/desertthunder/voxup/internal/ui"
)

// runTUI drives the upload through the interactive monitor. Logs go to log.file to keep the screen clean.
func (r *Runner) runTUI(ctx context.Context, sess *session, events <-chan tasks.ProgressUpdate, only []string) error {
	model := ui.NewModel(ctx, sess.engine, sess.queue, events, ui.Options{Only: only})
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if err := model.Err(); err != nil {
		return err
	}
	if result := model.Result(); result != nil {
		r.writePlain("Uploaded %d of %d queued voice notes\n", result.Uploaded, result.Enqueued)
	}
	return nil
}
