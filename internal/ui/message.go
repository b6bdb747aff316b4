package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/voxup/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var _ tea.Msg = Msg{}

const (
	MsgDiscovered MsgKind = iota
	MsgProgressUpdate
	MsgQueueEvent
	MsgUploadComplete
	MsgTick
)

type discoveredData struct {
	result *tasks.DiscoverResult
	err    error
}

type uploadCompleteData struct {
	result *tasks.RunResult
	err    error
}

// discoveredMsg is the constructor for [MsgDiscovered]
func discoveredMsg(result *tasks.DiscoverResult, err error) Msg {
	return Msg{kind: MsgDiscovered, data: discoveredData{result, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// queueEventMsg is the constructor for [MsgQueueEvent]
func queueEventMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgQueueEvent, data: update}
}

// uploadCompleteMsg is the constructor for [MsgUploadComplete]
func uploadCompleteMsg(result *tasks.RunResult, err error) Msg {
	return Msg{kind: MsgUploadComplete, data: uploadCompleteData{result, err}}
}

func tickMsg() Msg {
	return Msg{kind: MsgTick}
}
