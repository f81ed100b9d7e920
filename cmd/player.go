package main

import (
	"context"
	"time"

	"github.com/desertthunder/spotbar/internal/formatter"
	"github.com/urfave/cli/v3"
)

// Play resumes playback on the active device.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	return r.player.Play(ctx)
}

// Pause pauses playback on the active device.
func (r *Runner) Pause(ctx context.Context, cmd *cli.Command) error {
	return r.player.Pause(ctx)
}

// Toggle flips between playing and paused.
func (r *Runner) Toggle(ctx context.Context, cmd *cli.Command) error {
	return r.player.Toggle(ctx)
}

// Next skips to the next track.
func (r *Runner) Next(ctx context.Context, cmd *cli.Command) error {
	return r.player.Next(ctx)
}

// Previous returns to the previous track.
func (r *Runner) Previous(ctx context.Context, cmd *cli.Command) error {
	return r.player.Previous(ctx)
}

// Now notifies the current track.
func (r *Runner) Now(ctx context.Context, cmd *cli.Command) error {
	return r.player.ShowCurrentTrack(ctx)
}

// Status prints one status line for the current playback.
//
// Fetch failures still print the disconnected line so bar modules always get output.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	fetchedAt := time.Now()
	state, err := r.player.CurrentPlayback(ctx)
	if err != nil {
		r.logger.Warn("failed to fetch playback state", "error", err)
	}

	if cmd.Bool("json") {
		snap := formatter.NewSnapshot(state, fetchedAt)
		if err != nil {
			snap = formatter.Snapshot{
				Text:      formatter.StatusLine(nil, err).Text,
				Progress:  formatter.FormatDuration(0),
				Duration:  formatter.FormatDuration(0),
				FetchedAt: fetchedAt,
			}
		}
		return r.writeJSON(snap, cmd.Bool("pretty"))
	}

	status := formatter.StatusLine(state, err)
	if err := r.writePlain("%s\n", status.Text); err != nil {
		return err
	}
	if state.HasTrack() {
		track := state.Item
		return r.writePlain("%s / %s\n", formatter.FormatDuration(state.ProgressMS), formatter.FormatDuration(track.DurationMS))
	}
	return nil
}
