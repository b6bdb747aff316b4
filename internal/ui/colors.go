package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/voxup/internal/tasks"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	box   lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		box:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(h)).Padding(0, 1),
	}
}

// Status colors an item status for the discovery list.
func (p *Palette) Status(status string) string {
	switch status {
	case tasks.StatusUploaded, tasks.StatusRemote:
		return p.ok.Render(status)
	case tasks.StatusUnhashable:
		return p.err.Render(status)
	default:
		return p.warn.Render(status)
	}
}

// Event colors a progress line by phase.
func (p *Palette) Event(u tasks.ProgressUpdate) string {
	switch u.Phase {
	case tasks.Uploaded:
		return p.ok.Render(u.Message)
	case tasks.Exhausted:
		return p.err.Render(u.Message)
	case tasks.Retry, tasks.Skipped:
		return p.warn.Render(u.Message)
	default:
		return p.help.Render(u.Message)
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
