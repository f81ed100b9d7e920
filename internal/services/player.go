package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotbar/internal/shared"
	"golang.org/x/time/rate"
)

const (
	playerEndpoint   = "/me/player"
	playEndpoint     = "/me/player/play"
	pauseEndpoint    = "/me/player/pause"
	nextEndpoint     = "/me/player/next"
	previousEndpoint = "/me/player/previous"

	DefaultCommandsPerSecond = 4.0
	DefaultToggleSettle      = 300 * time.Millisecond
	DefaultSkipSettle        = 500 * time.Millisecond
)

// PlayerOpts contains configuration for creating a [Player].
type PlayerOpts struct {
	Requester         Requester
	Notifier          shared.Notifier
	Logger            *log.Logger
	CommandsPerSecond float64
	ToggleSettle      time.Duration // delay before the follow-up refresh after play/pause
	SkipSettle        time.Duration // delay before the follow-up refresh after next/previous
}

// Player is the playback facade over the Web API.
type Player struct {
	requester    Requester
	notifier     shared.Notifier
	logger       *log.Logger
	limiter      *rate.Limiter
	toggleSettle time.Duration
	skipSettle   time.Duration

	mu       sync.Mutex
	onChange func()
}

// NewPlayer creates a Player with the provided configuration.
func NewPlayer(opts PlayerOpts) *Player {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Notifier == nil {
		opts.Notifier = shared.LogNotifier{Logger: opts.Logger}
	}
	if opts.CommandsPerSecond <= 0 {
		opts.CommandsPerSecond = DefaultCommandsPerSecond
	}
	if opts.ToggleSettle <= 0 {
		opts.ToggleSettle = DefaultToggleSettle
	}
	if opts.SkipSettle <= 0 {
		opts.SkipSettle = DefaultSkipSettle
	}
	return &Player{
		requester:    opts.Requester,
		notifier:     opts.Notifier,
		logger:       shared.WithLogger(opts.Logger, "component", "player"),
		limiter:      rate.NewLimiter(rate.Limit(opts.CommandsPerSecond), 2),
		toggleSettle: opts.ToggleSettle,
		skipSettle:   opts.SkipSettle,
	}
}

// OnChange registers fn to run once the provider has had time to apply a command.
func (p *Player) OnChange(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

func (p *Player) Play(ctx context.Context) error {
	return p.command(ctx, "Play", http.MethodPut, playEndpoint, "▶️ Playing", p.toggleSettle)
}

func (p *Player) Pause(ctx context.Context) error {
	return p.command(ctx, "Pause", http.MethodPut, pauseEndpoint, "⏸️ Paused", p.toggleSettle)
}

func (p *Player) Next(ctx context.Context) error {
	return p.command(ctx, "Next", http.MethodPost, nextEndpoint, "⏭️ Next track", p.skipSettle)
}

func (p *Player) Previous(ctx context.Context) error {
	return p.command(ctx, "Previous", http.MethodPost, previousEndpoint, "⏮️ Previous track", p.skipSettle)
}

// Toggle pauses when something is playing and resumes otherwise.
func (p *Player) Toggle(ctx context.Context) error {
	state, err := p.CurrentPlayback(ctx)
	if err != nil {
		return err
	}
	if state != nil && state.IsPlaying {
		return p.Pause(ctx)
	}
	return p.Play(ctx)
}

// CurrentPlayback returns the playback state, or nil when no device is active.
func (p *Player) CurrentPlayback(ctx context.Context) (*PlaybackState, error) {
	return ExecuteJSON[PlaybackState](ctx, p.requester, http.MethodGet, playerEndpoint, nil)
}

// ShowCurrentTrack notifies what is playing.
func (p *Player) ShowCurrentTrack(ctx context.Context) error {
	state, err := p.CurrentPlayback(ctx)
	if err != nil {
		p.notifier.Error(fmt.Sprintf("Failed to get current track: %v", err))
		return err
	}
	if !state.HasTrack() {
		p.notifier.Info("No track currently playing")
		return nil
	}

	track := state.Item
	p.notifier.Info(fmt.Sprintf("🎵 %s by %s (%s)", track.Name, track.ArtistNames(), track.Album.Name))
	return nil
}

func (p *Player) command(ctx context.Context, name, method, endpoint, done string, settle time.Duration) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	if _, err := p.requester.Execute(ctx, method, endpoint, nil); err != nil {
		if !transient(err) {
			p.notifier.Error(fmt.Sprintf("%s failed: %v", name, err))
			return err
		}
		p.logger.Warn("command failed", "command", name, "error", err)
		p.scheduleRefresh(settle)
		return nil
	}

	p.logger.Debug("command sent", "command", name)
	p.notifier.Info(done)
	p.scheduleRefresh(settle)
	return nil
}

// transient errors resolve themselves on the next poll.
func transient(err error) bool {
	return errors.Is(err, shared.ErrTimeout) || errors.Is(err, shared.ErrNoActiveDevice)
}

func (p *Player) scheduleRefresh(after time.Duration) {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()

	if fn != nil {
		time.AfterFunc(after, fn)
	}
}
