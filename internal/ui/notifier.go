package ui

import "github.com/desertthunder/spotbar/internal/shared"

var _ shared.Notifier = (*ChannelNotifier)(nil)

// Notice is a notification shown under the status line.
type Notice struct {
	Text  string
	Error bool
}

// ChannelNotifier forwards notifications to the status display. Sends never block; a full buffer drops the notice.
type ChannelNotifier struct {
	ch chan Notice
}

func NewChannelNotifier(size int) *ChannelNotifier {
	if size <= 0 {
		size = 8
	}
	return &ChannelNotifier{ch: make(chan Notice, size)}
}

func (n *ChannelNotifier) Info(msg string)  { n.send(Notice{Text: msg}) }
func (n *ChannelNotifier) Error(msg string) { n.send(Notice{Text: msg, Error: true}) }

// Notices returns the receiving end for the model.
func (n *ChannelNotifier) Notices() <-chan Notice {
	return n.ch
}

func (n *ChannelNotifier) send(notice Notice) {
	select {
	case n.ch <- notice:
	default:
	}
}
