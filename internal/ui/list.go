package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/voxup/internal/tasks"
)

var _ list.Item = noteItem{}

// noteItem wraps [tasks.ItemStatus] to implement [list.Item].
type noteItem struct {
	status tasks.ItemStatus
}

func (i noteItem) FilterValue() string { return i.status.Item.Name }
func (i noteItem) Title() string       { return i.status.Item.Name }
func (i noteItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.status.Status, formatSize(i.status.Item.Size))
	if !i.status.Item.ModTime.IsZero() {
		desc = fmt.Sprintf("%s • %s", desc, i.status.Item.ModTime.Local().Format(time.DateTime))
	}
	return desc
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
