package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotbar/internal/shared"
)

const (
	DefaultBaseURL        = "https://api.spotify.com/v1"
	DefaultRequestTimeout = 10 * time.Second

	reasonPremiumRequired = "PREMIUM_REQUIRED"
	maxErrorBody          = 64 << 10
)

// ExecutorOpts contains configuration for creating an [Executor].
type ExecutorOpts struct {
	BaseURL    string
	Tokens     TokenProvider
	HTTPClient *http.Client // defaults to [NewHTTPClient]
	Timeout    time.Duration
	Logger     *log.Logger
}

// Executor issues authenticated Web API calls and classifies every response.
type Executor struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
	logger     *log.Logger
}

// NewExecutor creates an Executor with the provided configuration.
func NewExecutor(opts ExecutorOpts) *Executor {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRequestTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient(opts.Timeout)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Executor{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		tokens:     opts.Tokens,
		httpClient: opts.HTTPClient,
		logger:     shared.WithLogger(opts.Logger, "component", "executor"),
	}
}

// NewHTTPClient returns a client with a bounded timeout that only dials IPv4.
//
// Some dual-stack resolvers stall on AAAA lookups for api.spotify.com long enough to blow the poll interval.
func NewHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = func(ctx context.Context, _, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp4", addr)
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Execute performs method on endpoint (relative to the API base URL) and returns the response body.
//
// A nil body with a nil error means the call succeeded without content.
func (e *Executor) Execute(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	token, err := e.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("%w: no stored credential", shared.ErrAuthRequired)
	}

	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	reqID := shared.GenerateID()
	logger := e.logger.With("request_id", reqID, "method", method, "endpoint", endpoint)

	resp, err := e.do(ctx, method, endpoint, payload, token)
	if err != nil {
		logger.Debug("request failed", "error", err)
		return nil, err
	}

	if resp.status == http.StatusUnauthorized {
		logger.Info("access token rejected, refreshing")
		token, err = e.tokens.ForceRefresh(ctx, token)
		if err != nil {
			if errors.Is(err, shared.ErrAuthRequired) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", shared.ErrAuthRequired, err)
		}
		if token == "" {
			return nil, fmt.Errorf("%w: refresh returned no token", shared.ErrAuthRequired)
		}

		if resp, err = e.do(ctx, method, endpoint, payload, token); err != nil {
			logger.Debug("retry failed", "error", err)
			return nil, err
		}
		if resp.status == http.StatusUnauthorized {
			return nil, &shared.APIError{Kind: shared.ErrAuthRequired, Status: resp.status, Message: providerMessage(resp.body)}
		}
	}

	logger.Debug("response", "status", resp.status)
	return classify(resp)
}

// ExecuteJSON runs a request and decodes the response into T. A response without content yields nil.
func ExecuteJSON[T any](ctx context.Context, r Requester, method, endpoint string, body any) (*T, error) {
	data, err := r.Execute(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", shared.ErrProvider, err)
	}
	return &out, nil
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (e *Executor) do(ctx context.Context, method, endpoint string, payload []byte, token string) (*response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

func classify(resp *response) ([]byte, error) {
	switch status := resp.status; {
	case status == http.StatusNoContent:
		return nil, nil
	case status == http.StatusNotFound:
		return nil, &shared.APIError{Kind: shared.ErrNoActiveDevice, Status: status, Message: providerMessage(resp.body)}
	case status == http.StatusForbidden:
		perr := parseProviderError(resp.body)
		if perr.Reason == reasonPremiumRequired {
			return nil, &shared.APIError{Kind: shared.ErrPremiumRequired, Status: status, Reason: perr.Reason, Message: perr.Message}
		}
		return nil, nil
	case status == http.StatusTooManyRequests:
		return nil, &shared.APIError{
			Kind:       shared.ErrRateLimited,
			Status:     status,
			Message:    providerMessage(resp.body),
			RetryAfter: retryAfter(resp.header.Get("Retry-After")),
		}
	case status >= http.StatusBadRequest:
		perr := parseProviderError(resp.body)
		return nil, &shared.APIError{Kind: shared.ErrProvider, Status: status, Reason: perr.Reason, Message: perr.Message}
	default:
		if len(resp.body) == 0 {
			return nil, nil
		}
		return resp.body, nil
	}
}

// providerError is the Web API's regular error object.
type providerError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

func parseProviderError(body []byte) providerError {
	var wrapper struct {
		Error json.RawMessage `json:"error"`
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	if err := json.Unmarshal(body, &wrapper); err != nil || len(wrapper.Error) == 0 {
		return providerError{}
	}

	var perr providerError
	if err := json.Unmarshal(wrapper.Error, &perr); err != nil {
		// the token endpoint style: {"error": "invalid_client"}
		var code string
		if json.Unmarshal(wrapper.Error, &code) == nil {
			perr.Message = code
		}
	}
	return perr
}

func providerMessage(body []byte) string {
	return parseProviderError(body).Message
}

// retryAfter parses the delay-seconds form of Retry-After.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", shared.ErrNetwork, err)
}
