package shared

import "github.com/charmbracelet/log"

// Notifier surfaces short user-facing messages. The CLI prints them, the status display flashes them.
type Notifier interface {
	Info(msg string)
	Error(msg string)
}

// LogNotifier writes notifications to a [log.Logger].
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Info(msg string)  { n.Logger.Info(msg) }
func (n LogNotifier) Error(msg string) { n.Logger.Error(msg) }
