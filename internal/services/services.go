package services

import (
	"context"
	"strings"
)

// TokenProvider hands out bearer tokens. An empty token with a nil error means the user must authenticate.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
	// ForceRefresh replaces rejected, the token the API answered 401 to.
	ForceRefresh(ctx context.Context, rejected string) (string, error)
}

// Requester executes one Spotify Web API call and returns the raw body, nil for no content.
type Requester interface {
	Execute(ctx context.Context, method, endpoint string, body any) ([]byte, error)
}

// PlaybackState is the subset of GET /me/player the status display uses.
//
// See https://developer.spotify.com/documentation/web-api/reference/get-information-about-the-users-current-playback
type PlaybackState struct {
	IsPlaying  bool   `json:"is_playing"`
	Item       *Track `json:"item"`
	ProgressMS int    `json:"progress_ms"`
	Device     Device `json:"device"`
}

// Device is the active playback target.
type Device struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Volume int    `json:"volume_percent"`
}

// Track represents a Spotify track.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMS int      `json:"duration_ms"`
	URI        string   `json:"uri"`
}

// Artist represents a Spotify artist.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album represents a Spotify album.
type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// Image represents an image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// ArtistNames joins artist names with ", ".
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// CoverURL returns the first (largest) album image, if any.
func (a Album) CoverURL() string {
	if len(a.Images) == 0 {
		return ""
	}
	return a.Images[0].URL
}

// HasTrack reports whether something is loaded on the active device.
func (p *PlaybackState) HasTrack() bool {
	return p != nil && p.Item != nil
}
