package server

import (
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/desertthunder/spotbar/internal/shared"
)

// CallbackResult is the outcome of the single redirect a [CallbackHandler] accepts.
type CallbackResult struct {
	Code string
	Err  error
}

// CallbackHandler accepts the first OAuth redirect on its path and rejects the rest.
type CallbackHandler struct {
	path   string
	state  string
	result chan CallbackResult

	mu  sync.Mutex
	hit bool
}

// NewCallbackHandler creates a handler for path expecting the given state token.
func NewCallbackHandler(path, state string) *CallbackHandler {
	if path == "" {
		path = "/callback"
	}
	return &CallbackHandler{path: path, state: state, result: make(chan CallbackResult, 1)}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"GET " + h.path}
}

// Result receives exactly one value, then is closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.result
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	res := parseCallback(r, h.state)
	h.result <- res
	close(h.result)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if res.Err != nil {
		w.WriteHeader(http.StatusBadRequest)
		resultPage.Execute(w, pageData{
			Title:   "Authorization Failed",
			Message: res.Err.Error(),
			Class:   "failed",
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	resultPage.Execute(w, pageData{
		Title:   "✓ Authorization Successful",
		Message: "You can close this window and return to the terminal.",
		Class:   "ok",
	})
}

func parseCallback(r *http.Request, state string) CallbackResult {
	q := r.URL.Query()
	if q.Get("state") != state {
		return CallbackResult{Err: shared.ErrInvalidState}
	}
	if errParam := q.Get("error"); errParam != "" {
		if desc := q.Get("error_description"); desc != "" {
			errParam += " - " + desc
		}
		return CallbackResult{Err: fmt.Errorf("%w: %s", shared.ErrAuthFailed, errParam)}
	}
	code := q.Get("code")
	if code == "" {
		return CallbackResult{Err: shared.ErrMissingCode}
	}
	return CallbackResult{Code: code}
}

type pageData struct {
	Title   string
	Message string
	Class   string
}

var resultPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { margin: 0 0 1rem 0; }
        h1.ok { color: #1DB954; }
        h1.failed { color: #E22134; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1 class="{{.Class}}">{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))
