package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotbar/internal/formatter"
	"github.com/desertthunder/spotbar/internal/services"
	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/desertthunder/spotbar/internal/tasks"
)

const (
	tickInterval = time.Second
	barWidth     = 30
)

// Controller is the subset of the playback facade the keys drive.
type Controller interface {
	Toggle(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
}

// Authenticator starts the browser login.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// StatusSource publishes playback snapshots. [tasks.Poller] satisfies it.
type StatusSource interface {
	Updates() <-chan tasks.StatusUpdate
	TriggerNow()
}

// ModelOpts contains the dependencies of a [Model].
type ModelOpts struct {
	Player  Controller
	Auth    Authenticator
	Status  StatusSource
	Notices <-chan Notice
	Now     func() time.Time
}

// Model represents the status display state.
type Model struct {
	ctx     context.Context
	player  Controller
	auth    Authenticator
	status  StatusSource
	notices <-chan Notice
	clock   func() time.Time

	state     *services.PlaybackState
	fetchedAt time.Time
	err       error
	loaded    bool
	now       time.Time
	notice    Notice
	busy      bool
	width     int
	help      help.Model
	keys      keyMap
}

// NewModel creates a new status display model with the provided dependencies.
func NewModel(ctx context.Context, opts ModelOpts) *Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Model{
		ctx:     ctx,
		player:  opts.Player,
		auth:    opts.Auth,
		status:  opts.Status,
		notices: opts.Notices,
		clock:   opts.Now,
		now:     opts.Now(),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts listening for status updates and notices and begins the local progress tick.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForStatus(), m.waitForNotice(), m.tick())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgStatus:
			update := msg.data.(tasks.StatusUpdate)
			m.state, m.err, m.fetchedAt, m.loaded = update.Snapshot, update.Err, update.FetchedAt, true
			m.now = m.clock()
			return m, m.waitForStatus()
		case MsgTick:
			m.now = msg.data.(time.Time)
			return m, m.tick()
		case MsgNotice:
			m.notice = msg.data.(Notice)
			return m, m.waitForNotice()
		case MsgCommandDone:
			m.busy = false
			if err := msg.err(); err != nil {
				m.notice = Notice{Text: err.Error(), Error: true}
			}
			return m, nil
		case MsgAuthDone:
			m.busy = false
			if err := msg.err(); err != nil {
				m.notice = Notice{Text: fmt.Sprintf("Authentication failed: %v", err), Error: true}
				return m, nil
			}
			m.status.TriggerNow()
			return m, nil
		}
	}

	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		m.status.TriggerNow()
		return m, nil
	case key.Matches(msg, m.keys.toggle):
		return m, m.command(m.player.Toggle)
	case key.Matches(msg, m.keys.next):
		return m, m.command(m.player.Next)
	case key.Matches(msg, m.keys.previous):
		return m, m.command(m.player.Previous)
	case key.Matches(msg, m.keys.auth):
		if m.busy || m.auth == nil {
			return m, nil
		}
		m.busy = true
		m.notice = Notice{Text: "Opening browser for Spotify authorization..."}
		return m, func() tea.Msg {
			return authDoneMsg(m.auth.Authenticate(m.ctx))
		}
	}
	return m, nil
}

func (m *Model) command(fn func(context.Context) error) tea.Cmd {
	m.busy = true
	return func() tea.Msg {
		return commandDoneMsg(fn(m.ctx))
	}
}

func (m *Model) waitForStatus() tea.Cmd {
	return func() tea.Msg {
		select {
		case update := <-m.status.Updates():
			return statusMsg(update)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) waitForNotice() tea.Cmd {
	if m.notices == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case n := <-m.notices:
			return noticeMsg(n)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// View renders the status line, track details, progress, and the last notification.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("spotbar"))
	b.WriteString("\n")

	if !m.loaded {
		b.WriteString(styles.muted.Render("Connecting to Spotify..."))
		b.WriteString("\n\n")
		b.WriteString(m.help.View(m.keys))
		return b.String()
	}

	status := formatter.StatusLine(m.state, m.err)
	switch {
	case !status.Connected:
		b.WriteString(styles.err.Render(status.Text))
	case status.Playing:
		b.WriteString(styles.playing.Render(status.Text))
	default:
		b.WriteString(styles.warn.Render(status.Text))
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(styles.muted.Render(m.errorHint()))
		b.WriteString("\n")
	} else if m.state.HasTrack() {
		track := m.state.Item
		b.WriteString(styles.muted.Render("from " + track.Album.Name))
		if m.state.Device.Name != "" {
			b.WriteString(styles.muted.Render(" on " + m.state.Device.Name))
		}
		b.WriteString("\n")

		progress := formatter.Interpolate(m.state, m.fetchedAt, m.now)
		fmt.Fprintf(&b, "%s %s %s\n",
			formatter.FormatDuration(progress),
			formatter.ProgressBar(progress, track.DurationMS, barWidth),
			formatter.FormatDuration(track.DurationMS),
		)
	}

	if m.notice.Text != "" {
		b.WriteString("\n")
		if m.notice.Error {
			b.WriteString(styles.err.Render(m.notice.Text))
		} else {
			b.WriteString(styles.ok.Render(m.notice.Text))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) errorHint() string {
	switch {
	case errors.Is(m.err, shared.ErrAuthRequired):
		return "Press a to authenticate with Spotify"
	case errors.Is(m.err, shared.ErrRateLimited):
		return "Rate limited, waiting before the next update"
	case errors.Is(m.err, shared.ErrNetwork), errors.Is(m.err, shared.ErrTimeout):
		return "Network problem, retrying"
	default:
		return m.err.Error()
	}
}
