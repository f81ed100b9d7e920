package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotbar/internal/services"
	"github.com/desertthunder/spotbar/internal/shared"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultDebounce = 100 * time.Millisecond
)

// PlaybackSource fetches the current playback state. [services.Player] satisfies it.
type PlaybackSource interface {
	CurrentPlayback(ctx context.Context) (*services.PlaybackState, error)
}

// StatusUpdate is the result of one fetch.
type StatusUpdate struct {
	Snapshot  *services.PlaybackState // nil when nothing is playing or on error
	Err       error
	FetchedAt time.Time
}

// PollerOpts contains configuration for creating a [Poller].
type PollerOpts struct {
	Source   PlaybackSource
	Interval time.Duration
	Debounce time.Duration
	Logger   *log.Logger
	Now      func() time.Time
}

// Poller periodically fetches playback state.
type Poller struct {
	source   PlaybackSource
	interval time.Duration
	debounce time.Duration
	logger   *log.Logger
	now      func() time.Time

	updates    chan StatusUpdate
	trigger    chan struct{}
	inflight   atomic.Bool
	pauseUntil atomic.Int64 // unix nanos
}

// NewPoller creates a Poller with the provided configuration.
func NewPoller(opts PollerOpts) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Poller{
		source:   opts.Source,
		interval: opts.Interval,
		debounce: opts.Debounce,
		logger:   shared.WithLogger(opts.Logger, "component", "poller"),
		now:      opts.Now,
		updates:  make(chan StatusUpdate, 1),
		trigger:  make(chan struct{}, 1),
	}
}

// Updates returns the channel fetch results are published on.
func (p *Poller) Updates() <-chan StatusUpdate {
	return p.updates
}

// TriggerNow asks for a fetch as soon as the debounce window closes. It never blocks.
func (p *Poller) TriggerNow() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled. The first fetch happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var debounce *time.Timer
	var debounceC <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	p.logger.Debug("poller started", "interval", p.interval)
	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("poller stopped")
			return nil
		case <-ticker.C:
			if p.paused() {
				continue
			}
			p.tick(ctx)
		case <-p.trigger:
			if debounceC == nil {
				debounce = time.NewTimer(p.debounce)
				debounceC = debounce.C
			}
		case <-debounceC:
			debounceC = nil
			p.tick(ctx)
		}
	}
}

// tick starts a fetch unless one is already running.
func (p *Poller) tick(ctx context.Context) {
	if !p.inflight.CompareAndSwap(false, true) {
		p.logger.Debug("previous fetch still in flight, skipping tick")
		return
	}

	go func() {
		defer p.inflight.Store(false)

		state, err := p.source.CurrentPlayback(ctx)
		if ctx.Err() != nil {
			return
		}

		var apiErr *shared.APIError
		if errors.As(err, &apiErr) && errors.Is(err, shared.ErrRateLimited) && apiErr.RetryAfter > 0 {
			p.logger.Warn("rate limited, pausing", "retry_after", apiErr.RetryAfter)
			p.pauseUntil.Store(p.now().Add(apiErr.RetryAfter).UnixNano())
		}

		p.publish(StatusUpdate{Snapshot: state, Err: err, FetchedAt: p.now()})
	}()
}

func (p *Poller) paused() bool {
	return p.now().UnixNano() < p.pauseUntil.Load()
}

// publish replaces any unread update with u.
func (p *Poller) publish(u StatusUpdate) {
	select {
	case p.updates <- u:
		return
	default:
	}

	select {
	case <-p.updates:
	default:
	}

	select {
	case p.updates <- u:
	default:
	}
}
