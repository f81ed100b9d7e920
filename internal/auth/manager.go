package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotbar/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// State is the credential manager's lifecycle state.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
	RefreshPending
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case RefreshPending:
		return "refresh_pending"
	default:
		return ""
	}
}

const (
	flightAuthenticate = "authenticate"
	flightRefresh      = "refresh"

	// expiryLeeway refreshes a little before the provider's deadline.
	expiryLeeway = 10 * time.Second
)

// DefaultScopes are requested when the config does not list any.
var DefaultScopes = []string{
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopeUserReadRecentlyPlayed,
}

// CodeReceiver sends the user to authURL and waits for the authorization code redirected back with state.
type CodeReceiver interface {
	Receive(ctx context.Context, authURL, state string) (string, error)
}

// Credential is the in-memory token pair.
//
// Expiry is only known for tokens minted by this process; it is never persisted.
type Credential struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

func (c Credential) empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

func (c Credential) expired(now time.Time) bool {
	return !c.Expiry.IsZero() && now.Add(expiryLeeway).After(c.Expiry)
}

// Status is a read-only view of the manager for display.
type Status struct {
	State           State
	HasAccessToken  bool
	HasRefreshToken bool
	Expiry          time.Time
}

// ManagerOpts contains configuration for creating a [Manager].
type ManagerOpts struct {
	ClientID    string
	RedirectURI string
	Scopes      []string
	AuthURL     string // defaults to Spotify's authorize endpoint
	TokenURL    string // defaults to Spotify's token endpoint
	Store       SecretStore
	Receiver    CodeReceiver
	Notifier    shared.Notifier
	HTTPClient  *http.Client
	Logger      *log.Logger
	Timeout     time.Duration // per token endpoint call
	Now         func() time.Time
}

// Manager owns the access/refresh token state. All other components read tokens through it.
type Manager struct {
	oauth      *oauth2.Config
	store      SecretStore
	receiver   CodeReceiver
	notifier   shared.Notifier
	httpClient *http.Client
	logger     *log.Logger
	timeout    time.Duration
	now        func() time.Time

	flights singleflight.Group

	storeMu sync.Mutex // serializes store writes with credential replacement

	mu         sync.Mutex
	state      State
	cred       Credential
	verifier   string
	generation uint64 // bumped whenever cred is replaced or cleared
}

// NewManager creates a Manager with the provided configuration.
func NewManager(opts ManagerOpts) *Manager {
	if opts.AuthURL == "" {
		opts.AuthURL = spotifyauth.AuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyauth.TokenURL
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = DefaultScopes
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = shared.LogNotifier{Logger: opts.Logger}
	}

	return &Manager{
		oauth: &oauth2.Config{
			ClientID:    opts.ClientID,
			RedirectURL: opts.RedirectURI,
			Scopes:      opts.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		store:      opts.Store,
		receiver:   opts.Receiver,
		notifier:   opts.Notifier,
		httpClient: opts.HTTPClient,
		logger:     shared.WithLogger(opts.Logger, "component", "auth"),
		timeout:    opts.Timeout,
		now:        opts.Now,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns the current state and which tokens are held in memory.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:           m.state,
		HasAccessToken:  m.cred.AccessToken != "",
		HasRefreshToken: m.cred.RefreshToken != "",
		Expiry:          m.cred.Expiry,
	}
}

// Authenticate runs the PKCE authorization code flow.
//
// A call made while another attempt is pending joins it instead of binding a second listener.
func (m *Manager) Authenticate(ctx context.Context) error {
	if m.oauth.ClientID == "" {
		m.notifier.Error("Please set the Spotify client ID in the configuration")
		return fmt.Errorf("%w: spotify client id is not set", shared.ErrConfiguration)
	}
	if m.receiver == nil {
		return fmt.Errorf("%w: no callback receiver configured", shared.ErrConfiguration)
	}

	_, err, joined := m.flights.Do(flightAuthenticate, func() (any, error) {
		return nil, m.authenticate(ctx)
	})
	if joined {
		m.logger.Debug("joined in-flight authentication")
	}
	return err
}

func (m *Manager) authenticate(ctx context.Context) error {
	m.mu.Lock()
	m.state = Authenticating
	m.mu.Unlock()

	pkce, err := GeneratePKCE()
	if err != nil {
		return m.failAuth(err)
	}

	state := shared.GenerateID()
	m.mu.Lock()
	m.verifier = pkce.Verifier
	m.mu.Unlock()

	authURL := m.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", pkce.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	m.logger.Info("waiting for authorization", "redirect_uri", m.oauth.RedirectURL)
	code, err := m.receiver.Receive(ctx, authURL, state)
	if err != nil {
		return m.failAuth(err)
	}

	return m.exchange(ctx, code)
}

func (m *Manager) exchange(ctx context.Context, code string) error {
	m.mu.Lock()
	verifier := m.verifier
	m.verifier = ""
	m.mu.Unlock()

	if verifier == "" {
		return m.failAuth(shared.ErrNoVerifier)
	}

	tctx, cancel := m.tokenContext(ctx)
	defer cancel()

	token, err := m.oauth.Exchange(tctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return m.failAuth(fmt.Errorf("token exchange: %w", tokenError(err)))
	}

	m.storeMu.Lock()
	m.mu.Lock()
	m.cred = Credential{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken, Expiry: token.Expiry}
	m.generation++
	m.state = Authenticated
	m.mu.Unlock()

	m.persist(AccessTokenKey, token.AccessToken)
	m.persist(RefreshTokenKey, token.RefreshToken)
	m.storeMu.Unlock()

	m.logger.Info("authenticated", "expiry", token.Expiry)
	m.notifier.Info("Successfully authenticated with Spotify!")
	return nil
}

func (m *Manager) failAuth(err error) error {
	m.mu.Lock()
	m.verifier = ""
	m.state = Unauthenticated
	m.mu.Unlock()

	m.logger.Error("authentication failed", "error", err)
	m.notifier.Error("Failed to authenticate with Spotify")

	if errors.Is(err, shared.ErrListenerBind) || errors.Is(err, shared.ErrAuthInProgress) {
		return err
	}
	return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
}

// TryAutoAuthenticate loads stored tokens into memory. It reports whether any credential was found.
//
// Validity is not checked; the first real request finds out.
func (m *Manager) TryAutoAuthenticate(ctx context.Context) (bool, error) {
	loaded, err := m.load()
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if loaded.empty() {
		return false, nil
	}

	m.cred = loaded
	m.generation++
	if m.state == Unauthenticated {
		m.state = Authenticated
	}
	m.logger.Debug("restored credential", "access", loaded.AccessToken != "", "refresh", loaded.RefreshToken != "")
	return true, nil
}

// AccessToken returns a usable access token.
//
// An empty token with a nil error means no credential exists and the user must authenticate.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	cred, gen := m.snapshot()

	if cred.empty() {
		loaded, err := m.load()
		if err != nil {
			return "", err
		}

		m.mu.Lock()
		if m.cred.empty() && m.generation == gen && !loaded.empty() {
			m.cred = loaded
			if m.state == Unauthenticated {
				m.state = Authenticated
			}
		}
		cred, gen = m.cred, m.generation
		m.mu.Unlock()
	}

	if cred.AccessToken != "" && !cred.expired(m.now()) {
		return cred.AccessToken, nil
	}

	if cred.RefreshToken == "" {
		// Expired with nothing to refresh it with; let the API decide.
		return cred.AccessToken, nil
	}

	return m.refresh(ctx, gen)
}

// ForceRefresh mints a new access token to replace rejected, the token the provider turned down.
//
// When the held token already differs from rejected, another caller refreshed first and that token is returned.
// On failure both tokens are cleared and the error wraps [shared.ErrAuthRequired].
func (m *Manager) ForceRefresh(ctx context.Context, rejected string) (string, error) {
	cred, gen := m.snapshot()
	if rejected != "" && cred.AccessToken != "" && cred.AccessToken != rejected {
		m.logger.Debug("rejected token already replaced")
		return cred.AccessToken, nil
	}
	return m.refresh(ctx, gen)
}

// refresh runs one refresh for every caller that observed generation gen.
func (m *Manager) refresh(ctx context.Context, gen uint64) (string, error) {
	v, err, joined := m.flights.Do(flightRefresh, func() (any, error) {
		m.mu.Lock()
		if m.generation != gen && m.cred.AccessToken != "" {
			token := m.cred.AccessToken
			m.mu.Unlock()
			return token, nil
		}
		refreshToken := m.cred.RefreshToken
		started := m.generation
		m.state = RefreshPending
		m.mu.Unlock()

		if refreshToken == "" {
			m.clear()
			return "", fmt.Errorf("%w: no refresh token available", shared.ErrAuthRequired)
		}

		// Joiners share this call, so one caller's cancellation must not fail the rest.
		tctx, cancel := m.tokenContext(context.WithoutCancel(ctx))
		defer cancel()

		token, err := m.oauth.TokenSource(tctx, &oauth2.Token{RefreshToken: refreshToken}).Token()

		// storeMu keeps store writes in the same order as credential replacements.
		m.storeMu.Lock()
		defer m.storeMu.Unlock()

		m.mu.Lock()
		if m.generation != started {
			// Logout or a new login replaced the credential mid-flight; that result wins.
			current := m.cred.AccessToken
			m.mu.Unlock()
			m.logger.Debug("discarding refresh result for a replaced credential")
			if current == "" {
				return "", fmt.Errorf("%w: credential cleared during refresh", shared.ErrAuthRequired)
			}
			return current, nil
		}

		if err != nil {
			m.resetLocked()
			m.mu.Unlock()
			m.logger.Error("token refresh failed", "error", err)
			m.deleteStored()
			m.notifier.Error("Failed to refresh Spotify token")
			return "", fmt.Errorf("%w: token refresh failed: %v", shared.ErrAuthRequired, tokenError(err))
		}

		rotated := token.RefreshToken != "" && token.RefreshToken != refreshToken
		m.cred.AccessToken = token.AccessToken
		m.cred.Expiry = token.Expiry
		if rotated {
			m.cred.RefreshToken = token.RefreshToken
		}
		m.generation++
		m.state = Authenticated
		m.mu.Unlock()

		m.persist(AccessTokenKey, token.AccessToken)
		if rotated {
			m.persist(RefreshTokenKey, token.RefreshToken)
		}

		m.logger.Debug("access token refreshed", "rotated", rotated, "expiry", token.Expiry)
		return token.AccessToken, nil
	})
	if joined {
		m.logger.Debug("joined in-flight refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Logout forgets both tokens in memory and in the secret store.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.clear(); err != nil {
		return err
	}
	m.notifier.Info("Signed out of Spotify")
	return nil
}

func (m *Manager) clear() error {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()

	return m.deleteStored()
}

// resetLocked forgets the in-memory credential. m.mu must be held.
func (m *Manager) resetLocked() {
	m.cred = Credential{}
	m.verifier = ""
	m.generation++
	m.state = Unauthenticated
}

// deleteStored removes both keys. m.storeMu must be held.
func (m *Manager) deleteStored() error {
	var errs []error
	for _, key := range []string{AccessTokenKey, RefreshTokenKey} {
		if err := m.store.Delete(key); err != nil {
			m.logger.Error("failed to delete stored token", "key", key, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) snapshot() (Credential, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred, m.generation
}

func (m *Manager) load() (Credential, error) {
	access, _, err := m.store.Get(AccessTokenKey)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to load access token: %w", err)
	}
	refresh, _, err := m.store.Get(RefreshTokenKey)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to load refresh token: %w", err)
	}
	return Credential{AccessToken: access, RefreshToken: refresh}, nil
}

// persist mirrors one field to the store. A failed write keeps the in-memory token usable for this process.
func (m *Manager) persist(key, value string) {
	if value == "" {
		return
	}
	if err := m.store.Store(key, value); err != nil {
		m.logger.Warn("failed to persist token", "key", key, "error", err)
	}
}

func (m *Manager) tokenContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	return context.WithTimeout(ctx, m.timeout)
}

// tokenError unwraps the provider's error code from an [oauth2.RetrieveError].
func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode != "" {
		if re.ErrorDescription != "" {
			return fmt.Errorf("%s: %s", re.ErrorCode, re.ErrorDescription)
		}
		return errors.New(re.ErrorCode)
	}
	return err
}
