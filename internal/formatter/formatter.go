// package formatter turns playback snapshots into display strings and export formats
package formatter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/spotbar/internal/services"
)

const (
	IconPlaying = "▶️"
	IconPaused  = "⏸️"
	IconIdle    = "🎵"
)

// Status is a one-line rendering of the playback state plus its longer tooltip.
type Status struct {
	Text      string
	Tooltip   string
	Connected bool
	Playing   bool
}

// StatusLine renders the status bar text for a snapshot. Any error means the display is disconnected.
func StatusLine(state *services.PlaybackState, err error) Status {
	if err != nil {
		return Status{
			Text:    IconIdle + " Spotify disconnected",
			Tooltip: "Click to authenticate with Spotify",
		}
	}

	if !state.HasTrack() {
		return Status{
			Text:      IconIdle + " No music playing",
			Tooltip:   "No Spotify playback detected",
			Connected: true,
		}
	}

	track := state.Item
	artists := track.ArtistNames()
	icon := IconPaused
	if state.IsPlaying {
		icon = IconPlaying
	}

	return Status{
		Text:      fmt.Sprintf("%s %s - %s", icon, track.Name, artists),
		Tooltip:   fmt.Sprintf("%s\nby %s\nfrom %s", track.Name, artists, track.Album.Name),
		Connected: true,
		Playing:   state.IsPlaying,
	}
}

// Interpolate estimates the progress in milliseconds at now from a snapshot fetched at fetchedAt.
//
// Paused playback does not advance; the result never exceeds the track duration.
func Interpolate(state *services.PlaybackState, fetchedAt, now time.Time) int {
	if !state.HasTrack() {
		return 0
	}

	progress := state.ProgressMS
	if state.IsPlaying && now.After(fetchedAt) {
		progress += int(now.Sub(fetchedAt).Milliseconds())
	}
	if d := state.Item.DurationMS; d > 0 && progress > d {
		progress = d
	}
	if progress < 0 {
		progress = 0
	}
	return progress
}

// FormatDuration formats milliseconds as m:ss, or h:mm:ss past an hour.
func FormatDuration(ms int) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ProgressBar draws a width-cell bar for progress out of duration.
func ProgressBar(progress, duration, width int) string {
	if width <= 0 {
		return ""
	}

	filled := 0
	if duration > 0 {
		filled = min(max(progress*width/duration, 0), width)
	}
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}

// Snapshot is the JSON shape printed by `status --json`.
type Snapshot struct {
	Connected  bool      `json:"connected"`
	IsPlaying  bool      `json:"is_playing"`
	Track      string    `json:"track,omitempty"`
	Artists    []string  `json:"artists,omitempty"`
	Album      string    `json:"album,omitempty"`
	CoverURL   string    `json:"cover_url,omitempty"`
	Device     string    `json:"device,omitempty"`
	ProgressMS int       `json:"progress_ms"`
	DurationMS int       `json:"duration_ms"`
	Progress   string    `json:"progress"`
	Duration   string    `json:"duration"`
	Text       string    `json:"text"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// NewSnapshot flattens a playback state for export.
func NewSnapshot(state *services.PlaybackState, fetchedAt time.Time) Snapshot {
	status := StatusLine(state, nil)
	snap := Snapshot{
		Connected: true,
		Text:      status.Text,
		FetchedAt: fetchedAt,
		Progress:  FormatDuration(0),
		Duration:  FormatDuration(0),
	}
	if !state.HasTrack() {
		return snap
	}

	track := state.Item
	snap.IsPlaying = state.IsPlaying
	snap.Track = track.Name
	snap.Album = track.Album.Name
	snap.CoverURL = track.Album.CoverURL()
	snap.Device = state.Device.Name
	snap.ProgressMS = state.ProgressMS
	snap.DurationMS = track.DurationMS
	snap.Progress = FormatDuration(state.ProgressMS)
	snap.Duration = FormatDuration(track.DurationMS)
	for _, a := range track.Artists {
		snap.Artists = append(snap.Artists, a.Name)
	}
	return snap
}

// ToJSON marshals v, indented when pretty is set.
func ToJSON(v any, pretty bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}
