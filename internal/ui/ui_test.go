package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotbar/internal/services"
	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/desertthunder/spotbar/internal/tasks"
)

type fakeController struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeController) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeController) Toggle(context.Context) error   { return f.record("toggle") }
func (f *fakeController) Next(context.Context) error     { return f.record("next") }
func (f *fakeController) Previous(context.Context) error { return f.record("previous") }

type fakeAuth struct{ err error }

func (f fakeAuth) Authenticate(context.Context) error { return f.err }

type fakeStatus struct {
	ch       chan tasks.StatusUpdate
	triggers int
}

func (f *fakeStatus) Updates() <-chan tasks.StatusUpdate { return f.ch }
func (f *fakeStatus) TriggerNow()                        { f.triggers++ }

func newTestModel(ctrl *fakeController, status *fakeStatus, now time.Time) *Model {
	return NewModel(context.Background(), ModelOpts{
		Player: ctrl,
		Auth:   fakeAuth{},
		Status: status,
		Now:    func() time.Time { return now },
	})
}

func keyPress(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func playing() *services.PlaybackState {
	return &services.PlaybackState{
		IsPlaying:  true,
		ProgressMS: 60000,
		Item: &services.Track{
			Name:       "Roygbiv",
			DurationMS: 150000,
			Artists:    []services.Artist{{Name: "Boards of Canada"}},
			Album:      services.Album{Name: "Music Has the Right to Children"},
		},
	}
}

func TestModelKeys(t *testing.T) {
	tc := []struct {
		key  string
		want string
	}{
		{key: " ", want: "toggle"},
		{key: "n", want: "next"},
		{key: "p", want: "previous"},
	}

	for _, tt := range tc {
		t.Run(tt.want, func(t *testing.T) {
			ctrl := &fakeController{}
			m := newTestModel(ctrl, &fakeStatus{}, time.Now())

			_, cmd := m.Update(keyPress(tt.key))
			if cmd == nil {
				t.Fatal("expected a command")
			}
			msg := cmd()
			if got, ok := msg.(Msg); !ok || got.kind != MsgCommandDone {
				t.Fatalf("expected command done message, got %#v", msg)
			}
			if len(ctrl.calls) != 1 || ctrl.calls[0] != tt.want {
				t.Errorf("expected %s, got %v", tt.want, ctrl.calls)
			}
		})
	}

	t.Run("refresh triggers the poller", func(t *testing.T) {
		status := &fakeStatus{}
		m := newTestModel(&fakeController{}, status, time.Now())
		m.Update(keyPress("r"))
		if status.triggers != 1 {
			t.Errorf("expected one trigger, got %d", status.triggers)
		}
	})

	t.Run("quit", func(t *testing.T) {
		m := newTestModel(&fakeController{}, &fakeStatus{}, time.Now())
		_, cmd := m.Update(keyPress("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})

	t.Run("authenticate then refresh", func(t *testing.T) {
		status := &fakeStatus{}
		m := newTestModel(&fakeController{}, status, time.Now())

		_, cmd := m.Update(keyPress("a"))
		if cmd == nil {
			t.Fatal("expected auth command")
		}
		m.Update(cmd())
		if status.triggers != 1 {
			t.Errorf("expected refresh after authentication, got %d triggers", status.triggers)
		}
	})

	t.Run("command errors become notices", func(t *testing.T) {
		m := newTestModel(&fakeController{err: shared.ErrPremiumRequired}, &fakeStatus{}, time.Now())
		_, cmd := m.Update(keyPress("n"))
		m.Update(cmd())

		if !m.notice.Error || !strings.Contains(m.notice.Text, "Premium") {
			t.Errorf("unexpected notice %+v", m.notice)
		}
	})
}

func TestModelView(t *testing.T) {
	fetched := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("before the first update", func(t *testing.T) {
		m := newTestModel(&fakeController{}, &fakeStatus{}, fetched)
		if !strings.Contains(m.View(), "Connecting to Spotify") {
			t.Error("expected connecting placeholder")
		}
	})

	t.Run("playing with interpolated progress", func(t *testing.T) {
		m := newTestModel(&fakeController{}, &fakeStatus{}, fetched)
		m.Update(statusMsg(tasks.StatusUpdate{Snapshot: playing(), FetchedAt: fetched}))
		m.Update(tickMsg(fetched.Add(5 * time.Second)))

		view := m.View()
		for _, want := range []string{"Roygbiv - Boards of Canada", "from Music Has the Right to Children", "1:05", "2:30"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected %q in view:\n%s", want, view)
			}
		}
	})

	t.Run("disconnected", func(t *testing.T) {
		m := newTestModel(&fakeController{}, &fakeStatus{}, fetched)
		m.Update(statusMsg(tasks.StatusUpdate{Err: shared.ErrAuthRequired, FetchedAt: fetched}))

		view := m.View()
		if !strings.Contains(view, "Spotify disconnected") || !strings.Contains(view, "Press a to authenticate") {
			t.Errorf("unexpected view:\n%s", view)
		}
	})

	t.Run("notice", func(t *testing.T) {
		m := newTestModel(&fakeController{}, &fakeStatus{}, fetched)
		m.Update(statusMsg(tasks.StatusUpdate{FetchedAt: fetched}))
		m.Update(noticeMsg(Notice{Text: "⏭️ Next track"}))

		if view := m.View(); !strings.Contains(view, "No music playing") || !strings.Contains(view, "⏭️ Next track") {
			t.Errorf("unexpected view:\n%s", view)
		}
	})
}

func TestChannelNotifier(t *testing.T) {
	n := NewChannelNotifier(1)
	n.Info("first")
	n.Error("dropped")

	got := <-n.Notices()
	if got.Text != "first" || got.Error {
		t.Errorf("unexpected notice %+v", got)
	}

	select {
	case extra := <-n.Notices():
		t.Errorf("expected the overflow to be dropped, got %+v", extra)
	default:
	}

	n.Error("boom")
	if got := <-n.Notices(); !got.Error || got.Text != "boom" {
		t.Errorf("unexpected notice %+v", got)
	}
}

func TestMsgErr(t *testing.T) {
	want := errors.New("x")
	if got := commandDoneMsg(want).err(); got != want {
		t.Errorf("expected wrapped error, got %v", got)
	}
	if got := commandDoneMsg(nil).err(); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
