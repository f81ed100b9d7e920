package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotbar/internal/shared"
)

const (
	DefaultTimeout  = 2 * time.Minute
	shutdownTimeout = 5 * time.Second
)

// ListenerOpts contains configuration for creating a [CallbackListener].
type ListenerOpts struct {
	Addr        string // loopback host:port from the redirect URI
	Path        string // callback path, defaults to /callback
	Timeout     time.Duration
	OpenBrowser func(url string) error
	OnAuthURL   func(url string) // called with the URL when the browser could not be opened
	Logger      *log.Logger
}

// CallbackListener receives one authorization code per [CallbackListener.Receive] call.
type CallbackListener struct {
	addr        string
	path        string
	timeout     time.Duration
	openBrowser func(string) error
	onAuthURL   func(string)
	logger      *log.Logger

	busy atomic.Bool
}

// NewCallbackListener creates a listener; nothing is bound until Receive.
func NewCallbackListener(opts ListenerOpts) *CallbackListener {
	if opts.Path == "" {
		opts.Path = "/callback"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.OnAuthURL == nil {
		opts.OnAuthURL = func(string) {}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &CallbackListener{
		addr:        opts.Addr,
		path:        opts.Path,
		timeout:     opts.Timeout,
		openBrowser: opts.OpenBrowser,
		onAuthURL:   opts.OnAuthURL,
		logger:      shared.WithLogger(opts.Logger, "component", "callback"),
	}
}

// Receive serves the callback path, sends the user to authURL, and returns the code from the first redirect.
//
// The server is gone by the time Receive returns.
func (l *CallbackListener) Receive(ctx context.Context, authURL, state string) (string, error) {
	if !l.busy.CompareAndSwap(false, true) {
		return "", shared.ErrAuthInProgress
	}
	defer l.busy.Store(false)

	if l.addr == "" {
		return "", fmt.Errorf("%w: no loopback address configured", shared.ErrConfiguration)
	}

	ln, err := net.Listen("tcp4", l.addr)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", shared.ErrListenerBind, l.addr, err)
	}

	handler := NewCallbackHandler(l.path, state)
	router := NewBasicRouter()
	router.Use(Logging(l.logger))
	router.Handler(handler)

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer l.shutdown(srv)

	l.logger.Info("listening for authorization callback", "addr", ln.Addr().String(), "path", l.path)

	if err := l.openBrowser(authURL); err != nil {
		l.logger.Warn("failed to open browser automatically", "error", err)
		l.onAuthURL(authURL)
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case res := <-handler.Result():
		if res.Err != nil {
			return "", res.Err
		}
		return res.Code, nil
	case err := <-serveErr:
		return "", fmt.Errorf("callback server: %w", err)
	case <-timer.C:
		return "", fmt.Errorf("%w: no authorization after %s", shared.ErrTimeout, l.timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (l *CallbackListener) shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		l.logger.Warn("error shutting down callback server", "error", err)
	}
}
