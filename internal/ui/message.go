package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotbar/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStatus MsgKind = iota
	MsgTick
	MsgNotice
	MsgCommandDone
	MsgAuthDone
)

// statusMsg is the constructor for [MsgStatus]
func statusMsg(update tasks.StatusUpdate) Msg {
	return Msg{kind: MsgStatus, data: update}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}

// noticeMsg is the constructor for [MsgNotice]
func noticeMsg(n Notice) Msg {
	return Msg{kind: MsgNotice, data: n}
}

// commandDoneMsg is the constructor for [MsgCommandDone]
func commandDoneMsg(err error) Msg {
	return Msg{kind: MsgCommandDone, data: err}
}

// authDoneMsg is the constructor for [MsgAuthDone]
func authDoneMsg(err error) Msg {
	return Msg{kind: MsgAuthDone, data: err}
}

func (m Msg) err() error {
	err, _ := m.data.(error)
	return err
}
