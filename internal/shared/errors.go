package shared

import (
	"fmt"
	"net/http"
	"time"
)

var (
	// Configuration errors
	ErrConfiguration = fmt.Errorf("configuration error")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthRequired   = fmt.Errorf("authentication required")
	ErrAuthFailed     = fmt.Errorf("authentication failed")
	ErrAuthInProgress = fmt.Errorf("authentication already in progress")
	ErrListenerBind   = fmt.Errorf("callback listener unavailable")
	ErrInvalidState   = fmt.Errorf("invalid state parameter")
	ErrMissingCode    = fmt.Errorf("authorization code missing")
	ErrNoVerifier     = fmt.Errorf("no PKCE verifier outstanding")

	// Playback API errors
	ErrNoActiveDevice  = fmt.Errorf("no active playback device found")
	ErrPremiumRequired = fmt.Errorf("this action requires Spotify Premium")
	ErrRateLimited     = fmt.Errorf("rate limited")
	ErrProvider        = fmt.Errorf("spotify API error")

	// Transport errors
	ErrNetwork = fmt.Errorf("network error")
	ErrTimeout = fmt.Errorf("operation timed out")
)

// APIError is a classified, non-success response from the Spotify Web API.
//
// Kind is one of the sentinel errors above, so callers match with [errors.Is].
type APIError struct {
	Kind       error
	Status     int
	Reason     string        // provider reason code, e.g. PREMIUM_REQUIRED
	Message    string        // provider message, falls back to the status text
	RetryAfter time.Duration // set for [ErrRateLimited]
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%v: %s (retry after %s)", e.Kind, msg, e.RetryAfter)
	}
	if msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %s", e.Kind, msg)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}
