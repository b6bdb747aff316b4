package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/voxup/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	DiscoverView ViewState = iota
	ItemListView
	ConfirmView
	UploadView
	ResultView
)

const (
	tickInterval = 250 * time.Millisecond
	maxEvents    = 8
)

// Engine is the part of [tasks.UploadEngine] the TUI drives.
type Engine interface {
	Discover(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.DiscoverResult, error)
	Upload(ctx context.Context, progress chan<- tasks.ProgressUpdate, discovery *tasks.DiscoverResult, only []string) (*tasks.RunResult, error)
}

// QueueView is the read-only queue snapshot polled while uploading.
type QueueView interface {
	Uploading() []string
	Stats() tasks.QueueStats
}

// Options tunes a [Model].
type Options struct {
	Only      []string // restrict the upload to these names or keys
	AutoStart bool     // skip the item list and confirmation
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	view   ViewState
	engine Engine
	queue  QueueView
	events <-chan tasks.ProgressUpdate
	opts   Options

	width  int
	height int

	items     list.Model
	discovery *tasks.DiscoverResult

	progressChan chan tasks.ProgressUpdate
	done         chan Msg
	last         tasks.ProgressUpdate
	log          []string
	total        int
	uploading    []string
	stats        tasks.QueueStats
	baseline     tasks.QueueStats

	result *tasks.RunResult
	err    error

	spinner spinner.Model
	bar     progress.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model. events carries queue progress and may be nil.
func NewModel(ctx context.Context, engine Engine, queue QueueView, events <-chan tasks.ProgressUpdate, opts Options) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return &Model{
		ctx:     ctx,
		view:    DiscoverView,
		engine:  engine,
		queue:   queue,
		events:  events,
		opts:    opts,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient()),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts discovery and begins listening for queue events.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.discover(), m.listenEvents())
}

// Err returns the error that ended the session, if any.
func (m *Model) Err() error {
	return m.err
}

// Result returns the upload summary once the run finished.
func (m *Model) Result() *tasks.RunResult {
	return m.result
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-8, 10)
		if m.discovery != nil {
			m.items.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgDiscovered:
		data := msg.data.(discoveredData)
		if data.err != nil {
			m.err = data.err
			m.view = ResultView
			return m, nil
		}
		m.setDiscovery(data.result)
		if m.opts.AutoStart {
			return m, m.startUpload()
		}
		m.view = ItemListView
		return m, nil

	case MsgProgressUpdate:
		m.record(msg.data.(tasks.ProgressUpdate))
		return m, m.waitForProgress()

	case MsgQueueEvent:
		m.record(msg.data.(tasks.ProgressUpdate))
		return m, m.listenEvents()

	case MsgTick:
		if m.view != UploadView {
			return m, nil
		}
		m.refresh()
		return m, tick()

	case MsgUploadComplete:
		data := msg.data.(uploadCompleteData)
		m.result = data.result
		m.err = data.err
		m.refresh()
		m.view = ResultView
		m.progressChan = nil
		m.done = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) && !(m.view == ItemListView && m.items.FilterState() == list.Filtering) {
		return m, tea.Quit
	}

	switch m.view {
	case ItemListView:
		if m.items.FilterState() != list.Filtering && key.Matches(msg, m.keys.upload) && m.discovery.Pending > 0 {
			m.view = ConfirmView
			return m, nil
		}
		var cmd tea.Cmd
		m.items, cmd = m.items.Update(msg)
		return m, cmd

	case ConfirmView:
		switch {
		case key.Matches(msg, m.keys.yes):
			return m, m.startUpload()
		case key.Matches(msg, m.keys.no):
			m.view = ItemListView
		}
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != ItemListView {
		return m, nil
	}
	var cmd tea.Cmd
	m.items, cmd = m.items.Update(msg)
	return m, cmd
}

func (m *Model) setDiscovery(result *tasks.DiscoverResult) {
	m.discovery = result

	items := make([]list.Item, len(result.Items))
	for i, s := range result.Items {
		items[i] = noteItem{status: s}
	}
	m.items = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.items.Title = fmt.Sprintf("Voice notes in %s", result.Root)
	m.items.SetSize(m.width-4, m.height-8)
}

// record keeps the latest update and a short rolling log of per-item events.
func (m *Model) record(u tasks.ProgressUpdate) {
	m.last = u
	if u.Phase == tasks.Enqueue {
		m.total = u.Total
	}
	if u.Key == "" || u.Phase == tasks.Dispatch {
		return
	}
	m.log = append(m.log, styles.Event(u))
	if len(m.log) > maxEvents {
		m.log = m.log[len(m.log)-maxEvents:]
	}
}

func (m *Model) refresh() {
	if m.queue == nil {
		return
	}
	m.uploading = m.queue.Uploading()
	m.stats = m.queue.Stats()
}

func (m *Model) percent() float64 {
	if m.total == 0 {
		return 0
	}
	finished := (m.stats.Uploaded - m.baseline.Uploaded) + (m.stats.Exhausted - m.baseline.Exhausted) + (m.stats.Skipped - m.baseline.Skipped)
	return min(float64(finished)/float64(m.total), 1)
}

func (m *Model) discover() tea.Cmd {
	return func() tea.Msg {
		result, err := m.engine.Discover(m.ctx, nil)
		return discoveredMsg(result, err)
	}
}

func (m *Model) startUpload() tea.Cmd {
	m.view = UploadView
	if m.queue != nil {
		m.baseline = m.queue.Stats()
	}
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.done = make(chan Msg, 1)

	ch, done, discovery := m.progressChan, m.done, m.discovery
	go func() {
		result, err := m.engine.Upload(m.ctx, ch, discovery, m.opts.Only)
		close(ch)
		done <- uploadCompleteMsg(result, err)
	}()

	return tea.Batch(m.waitForProgress(), tick())
}

func (m *Model) waitForProgress() tea.Cmd {
	ch, done := m.progressChan, m.done
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) listenEvents() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-events
		if !ok {
			return nil
		}
		return queueEventMsg(update)
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg() })
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case DiscoverView:
		return fmt.Sprintf("%s Scanning library and checking the server...\n", m.spinner.View())
	case ItemListView:
		return m.renderItemList()
	case ConfirmView:
		return m.renderConfirm()
	case UploadView:
		return m.renderUpload()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderItemList() string {
	summary := fmt.Sprintf("%d pending • %d uploaded • %d on server • %d unreadable",
		m.discovery.Pending, m.discovery.Uploaded, m.discovery.Remote, m.discovery.Unhashable)
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.upload, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", m.items.View(), styles.help.Render(summary), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Upload %d pending voice notes?", m.discovery.Pending))
	if len(m.opts.Only) > 0 {
		title = styles.title.Render(fmt.Sprintf("Upload %d selected voice notes?", len(m.opts.Only)))
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s", title, helpView)
}

func (m *Model) renderUpload() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("Uploading voice notes"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s\n\n", m.bar.ViewAs(m.percent()))
	fmt.Fprintf(&b, "%d uploaded • %d retrying • %d failed • %d pending\n\n",
		m.stats.Uploaded-m.baseline.Uploaded,
		m.stats.Failed-m.baseline.Failed-(m.stats.Exhausted-m.baseline.Exhausted),
		m.stats.Exhausted-m.baseline.Exhausted,
		m.stats.Pending)

	if len(m.uploading) > 0 {
		lines := make([]string, len(m.uploading))
		for i, k := range m.uploading {
			lines[i] = fmt.Sprintf("%s %s", m.spinner.View(), filepath.Base(k))
		}
		b.WriteString(styles.box.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}

	for _, line := range m.log {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})

	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Upload failed: %v", m.err)) + "\n\n" + helpView
	}
	if m.result == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	title := styles.ok.Render("✓ Upload Complete!")
	if m.result.Exhausted > 0 {
		title = styles.warn.Render(fmt.Sprintf("Upload finished with %d failures", m.result.Exhausted))
	}

	info := fmt.Sprintf("\nQueued: %d\nUploaded: %d\nFailed: %d\nSkipped: %d\nAlready on server: %d\nTook: %s",
		m.result.Enqueued,
		m.result.Uploaded,
		m.result.Exhausted,
		m.result.Skipped,
		m.result.Discovery.Remote,
		m.result.Duration.Round(time.Millisecond),
	)
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}
