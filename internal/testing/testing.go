// package testing contains shared testing utilities
package testing

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// Notifier records notifications
type Notifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (n *Notifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

func (n *Notifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *Notifier) Infos() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.infos...)
}

func (n *Notifier) Errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.errors...)
}

// TokenServer is a fake OAuth token endpoint.
//
// Respond decides the reply for each parsed form; the zero value answers 500.
type TokenServer struct {
	*httptest.Server
	Respond func(form url.Values) (status int, body any)

	calls atomic.Int32
	mu    sync.Mutex
	forms []url.Values
}

// NewTokenServer starts a TokenServer closed at test cleanup.
func NewTokenServer(t *testing.T, respond func(form url.Values) (int, any)) *TokenServer {
	t.Helper()
	ts := &TokenServer{Respond: respond}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		ts.mu.Lock()
		ts.forms = append(ts.forms, r.PostForm)
		ts.mu.Unlock()

		status, body := http.StatusInternalServerError, any(map[string]string{"error": "server_error"})
		if ts.Respond != nil {
			status, body = ts.Respond(r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

// Calls returns the number of requests received.
func (ts *TokenServer) Calls() int {
	return int(ts.calls.Load())
}

// Forms returns every form posted so far.
func (ts *TokenServer) Forms() []url.Values {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]url.Values(nil), ts.forms...)
}

// TokenResponse builds a token endpoint JSON body. An empty refresh token is omitted.
func TokenResponse(access, refresh string) map[string]any {
	body := map[string]any{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if refresh != "" {
		body["refresh_token"] = refresh
	}
	return body
}

// GrantError builds an OAuth error body.
func GrantError(code string) map[string]string {
	return map[string]string{"error": code, "error_description": "rejected by test server"}
}
