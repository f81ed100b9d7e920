package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotbar/internal/shared"
	tu "github.com/desertthunder/spotbar/internal/testing"
)

const testRedirect = "http://127.0.0.1:8888/callback"

// fakeReceiver answers with code after an optional gate is released.
type fakeReceiver struct {
	code    string
	err     error
	gate    chan struct{}
	started chan struct{}

	calls   atomic.Int32
	mu      sync.Mutex
	authURL string
	state   string
}

func (r *fakeReceiver) Receive(ctx context.Context, authURL, state string) (string, error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.authURL, r.state = authURL, state
	r.mu.Unlock()

	if r.started != nil {
		close(r.started)
	}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return r.code, r.err
}

func (r *fakeReceiver) lastURL(t *testing.T) *url.URL {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := url.Parse(r.authURL)
	if err != nil {
		t.Fatalf("invalid auth url %q: %v", r.authURL, err)
	}
	return u
}

type managerFixture struct {
	manager  *Manager
	store    *MemoryStore
	receiver *fakeReceiver
	notifier *tu.Notifier
	server   *tu.TokenServer
}

func newFixture(t *testing.T, respond func(url.Values) (int, any)) *managerFixture {
	t.Helper()
	f := &managerFixture{
		store:    NewMemoryStore(),
		receiver: &fakeReceiver{code: "ABC123"},
		notifier: &tu.Notifier{},
		server:   tu.NewTokenServer(t, respond),
	}
	f.manager = NewManager(ManagerOpts{
		ClientID:    "client-123",
		RedirectURI: testRedirect,
		AuthURL:     "https://accounts.example.com/authorize",
		TokenURL:    f.server.URL + "/api/token",
		Store:       f.store,
		Receiver:    f.receiver,
		Notifier:    f.notifier,
		HTTPClient:  f.server.Client(),
		Logger:      log.New(io.Discard),
	})
	return f
}

func exchangeOK(access, refresh string) func(url.Values) (int, any) {
	return func(url.Values) (int, any) {
		return http.StatusOK, tu.TokenResponse(access, refresh)
	}
}

func TestManagerAuthenticate(t *testing.T) {
	t.Run("fresh install stores issued tokens", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT1", "RT1"))

		if err := f.manager.Authenticate(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		values := f.store.Values()
		if values[AccessTokenKey] != "AT1" || values[RefreshTokenKey] != "RT1" {
			t.Errorf("unexpected stored tokens: %v", values)
		}
		if len(values) != 2 {
			t.Errorf("expected only the two token keys to be persisted, got %v", values)
		}
		if got := f.manager.State(); got != Authenticated {
			t.Errorf("expected authenticated, got %s", got)
		}
		if infos := f.notifier.Infos(); len(infos) != 1 || infos[0] != "Successfully authenticated with Spotify!" {
			t.Errorf("unexpected notifications: %v", infos)
		}

		token, err := f.manager.AccessToken(context.Background())
		if err != nil || token != "AT1" {
			t.Errorf("expected AT1, got %q (%v)", token, err)
		}
	})

	t.Run("authorization url and exchange carry the pkce pair", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT1", "RT1"))

		if err := f.manager.Authenticate(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		q := f.receiver.lastURL(t).Query()
		for key, want := range map[string]string{
			"client_id":             "client-123",
			"response_type":         "code",
			"redirect_uri":          testRedirect,
			"code_challenge_method": "S256",
		} {
			if got := q.Get(key); got != want {
				t.Errorf("auth url %s = %q, want %q", key, got, want)
			}
		}
		if q.Get("state") == "" || q.Get("state") != f.receiver.state {
			t.Errorf("state mismatch: url %q, receiver %q", q.Get("state"), f.receiver.state)
		}
		if q.Get("scope") == "" {
			t.Error("expected scopes in auth url")
		}

		forms := f.server.Forms()
		if len(forms) != 1 {
			t.Fatalf("expected one token request, got %d", len(forms))
		}
		form := forms[0]
		for key, want := range map[string]string{
			"grant_type":   "authorization_code",
			"code":         "ABC123",
			"redirect_uri": testRedirect,
			"client_id":    "client-123",
		} {
			if got := form.Get(key); got != want {
				t.Errorf("exchange %s = %q, want %q", key, got, want)
			}
		}

		verifier := form.Get("code_verifier")
		if len(verifier) != VerifierLength {
			t.Errorf("expected %d char verifier, got %q", VerifierLength, verifier)
		}
		if ChallengeFor(verifier) != q.Get("code_challenge") {
			t.Error("code_verifier does not match the code_challenge sent to the browser")
		}
		if form.Get("client_secret") != "" {
			t.Error("public client must not send a secret")
		}
	})

	t.Run("each attempt uses a fresh verifier", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT1", "RT1"))
		ctx := context.Background()

		_ = f.manager.Authenticate(ctx)
		_ = f.manager.Authenticate(ctx)

		forms := f.server.Forms()
		if len(forms) != 2 {
			t.Fatalf("expected two exchanges, got %d", len(forms))
		}
		if forms[0].Get("code_verifier") == forms[1].Get("code_verifier") {
			t.Error("verifier reused across attempts")
		}
	})

	t.Run("missing client id is a configuration error", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT1", "RT1"))
		f.manager.oauth.ClientID = ""

		err := f.manager.Authenticate(context.Background())
		if !errors.Is(err, shared.ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
		if f.receiver.calls.Load() != 0 {
			t.Error("receiver should not be used without a client id")
		}
		if len(f.notifier.Errors()) != 1 {
			t.Errorf("expected a notification, got %v", f.notifier.Errors())
		}
	})

	t.Run("receiver failure", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT1", "RT1"))
		f.receiver.err = shared.ErrInvalidState

		err := f.manager.Authenticate(context.Background())
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		if f.server.Calls() != 0 {
			t.Error("no exchange should happen after a failed callback")
		}
		if f.manager.State() != Unauthenticated {
			t.Errorf("expected unauthenticated, got %s", f.manager.State())
		}
		if errs := f.notifier.Errors(); len(errs) != 1 || errs[0] != "Failed to authenticate with Spotify" {
			t.Errorf("unexpected notifications: %v", errs)
		}
	})

	t.Run("listener bind failure passes through", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT1", "RT1"))
		f.receiver.err = shared.ErrListenerBind

		if err := f.manager.Authenticate(context.Background()); !errors.Is(err, shared.ErrListenerBind) {
			t.Errorf("expected ErrListenerBind, got %v", err)
		}
	})

	t.Run("rejected code", func(t *testing.T) {
		f := newFixture(t, func(url.Values) (int, any) {
			return http.StatusBadRequest, tu.GrantError("invalid_grant")
		})

		err := f.manager.Authenticate(context.Background())
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		if len(f.store.Values()) != 0 {
			t.Errorf("nothing should be stored, got %v", f.store.Values())
		}
	})

	t.Run("failed attempt keeps previous tokens", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT1", "RT1"))
		f.store.Store(AccessTokenKey, "OLD")
		f.store.Store(RefreshTokenKey, "OLDR")
		f.receiver.err = errors.New("user closed the browser")

		_ = f.manager.Authenticate(context.Background())

		if v := f.store.Values(); v[AccessTokenKey] != "OLD" || v[RefreshTokenKey] != "OLDR" {
			t.Errorf("stored tokens should survive a failed attempt, got %v", v)
		}
	})

	t.Run("overlapping calls share one attempt", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT1", "RT1"))
		f.receiver.gate = make(chan struct{})
		f.receiver.started = make(chan struct{})

		ctx := context.Background()
		errs := make(chan error, 2)
		go func() { errs <- f.manager.Authenticate(ctx) }()
		<-f.receiver.started
		go func() { errs <- f.manager.Authenticate(ctx) }()

		time.Sleep(50 * time.Millisecond)
		close(f.receiver.gate)

		for range 2 {
			if err := <-errs; err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		}
		if got := f.receiver.calls.Load(); got != 1 {
			t.Errorf("expected one listener attempt, got %d", got)
		}
		if got := f.server.Calls(); got != 1 {
			t.Errorf("expected one exchange, got %d", got)
		}
	})

	t.Run("state is authenticating while waiting", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT1", "RT1"))
		f.receiver.gate = make(chan struct{})
		f.receiver.started = make(chan struct{})

		done := make(chan error, 1)
		go func() { done <- f.manager.Authenticate(context.Background()) }()
		<-f.receiver.started

		if got := f.manager.State(); got != Authenticating {
			t.Errorf("expected authenticating, got %s", got)
		}
		close(f.receiver.gate)
		if err := <-done; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestManagerAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("no credential", func(t *testing.T) {
		f := newFixture(t, nil)

		token, err := f.manager.AccessToken(ctx)
		if err != nil || token != "" {
			t.Errorf("expected empty token and no error, got %q (%v)", token, err)
		}
		if f.server.Calls() != 0 {
			t.Error("no network call expected")
		}
	})

	t.Run("stored access token is used as is", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.Store(AccessTokenKey, "AT1")
		f.store.Store(RefreshTokenKey, "RT1")

		token, err := f.manager.AccessToken(ctx)
		if err != nil || token != "AT1" {
			t.Errorf("expected AT1, got %q (%v)", token, err)
		}
		if f.server.Calls() != 0 {
			t.Error("stored token should not trigger a refresh")
		}
	})

	t.Run("refresh keeps the old refresh token when none is returned", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT2", ""))
		f.store.Store(RefreshTokenKey, "RT1")

		token, err := f.manager.AccessToken(ctx)
		if err != nil || token != "AT2" {
			t.Fatalf("expected AT2, got %q (%v)", token, err)
		}

		form := f.server.Forms()[0]
		if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "RT1" || form.Get("client_id") != "client-123" {
			t.Errorf("unexpected refresh form: %v", form)
		}

		values := f.store.Values()
		if values[AccessTokenKey] != "AT2" || values[RefreshTokenKey] != "RT1" {
			t.Errorf("expected AT2/RT1 stored, got %v", values)
		}
		if f.manager.Status().HasRefreshToken != true {
			t.Error("refresh token should be retained in memory")
		}
	})

	t.Run("rotated refresh token is persisted", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT2", "RT2"))
		f.store.Store(RefreshTokenKey, "RT1")

		if _, err := f.manager.AccessToken(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.store.Values()[RefreshTokenKey]; got != "RT2" {
			t.Errorf("expected RT2, got %q", got)
		}
	})

	t.Run("concurrent callers share one refresh", func(t *testing.T) {
		f := newFixture(t, func(url.Values) (int, any) {
			time.Sleep(50 * time.Millisecond)
			return http.StatusOK, tu.TokenResponse("AT2", "")
		})
		f.store.Store(RefreshTokenKey, "RT1")

		var wg sync.WaitGroup
		tokens := make(chan string, 20)
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				token, err := f.manager.AccessToken(ctx)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				tokens <- token
			}()
		}
		wg.Wait()
		close(tokens)

		for token := range tokens {
			if token != "AT2" {
				t.Errorf("expected AT2, got %q", token)
			}
		}
		if got := f.server.Calls(); got != 1 {
			t.Errorf("expected exactly one refresh request, got %d", got)
		}
	})

	t.Run("failed refresh clears both tokens", func(t *testing.T) {
		f := newFixture(t, func(url.Values) (int, any) {
			return http.StatusBadRequest, tu.GrantError("invalid_grant")
		})
		f.store.Store(RefreshTokenKey, "RT1")

		_, err := f.manager.AccessToken(ctx)
		if !errors.Is(err, shared.ErrAuthRequired) {
			t.Fatalf("expected ErrAuthRequired, got %v", err)
		}
		if len(f.store.Values()) != 0 {
			t.Errorf("expected store to be empty, got %v", f.store.Values())
		}
		if f.manager.State() != Unauthenticated {
			t.Errorf("expected unauthenticated, got %s", f.manager.State())
		}
		if errs := f.notifier.Errors(); len(errs) != 1 || errs[0] != "Failed to refresh Spotify token" {
			t.Errorf("unexpected notifications: %v", errs)
		}

		token, err := f.manager.AccessToken(ctx)
		if err != nil || token != "" {
			t.Errorf("expected empty token after clearing, got %q (%v)", token, err)
		}
	})

	t.Run("expired token is refreshed proactively", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT2", ""))
		now := time.Now()
		f.manager.now = func() time.Time { return now }
		f.manager.cred = Credential{AccessToken: "AT1", RefreshToken: "RT1", Expiry: now.Add(5 * time.Second)}

		token, err := f.manager.AccessToken(ctx)
		if err != nil || token != "AT2" {
			t.Errorf("expected refreshed AT2, got %q (%v)", token, err)
		}
	})

	t.Run("cancelled caller does not fail the shared refresh", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT2", ""))
		f.store.Store(RefreshTokenKey, "RT1")

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		token, err := f.manager.AccessToken(cctx)
		if err != nil || token != "AT2" {
			t.Errorf("expected AT2, got %q (%v)", token, err)
		}
	})
}

func TestManagerForceRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces a valid token", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT2", ""))
		f.store.Store(AccessTokenKey, "AT1")
		f.store.Store(RefreshTokenKey, "RT1")
		if _, err := f.manager.TryAutoAuthenticate(ctx); err != nil {
			t.Fatal(err)
		}

		token, err := f.manager.ForceRefresh(ctx, "AT1")
		if err != nil || token != "AT2" {
			t.Errorf("expected AT2, got %q (%v)", token, err)
		}
	})

	t.Run("without refresh token", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.Store(AccessTokenKey, "AT1")
		_, _ = f.manager.TryAutoAuthenticate(ctx)

		if _, err := f.manager.ForceRefresh(ctx, "AT1"); !errors.Is(err, shared.ErrAuthRequired) {
			t.Errorf("expected ErrAuthRequired, got %v", err)
		}
		if f.server.Calls() != 0 {
			t.Error("no request expected without a refresh token")
		}
	})

	t.Run("stale caller reuses a newer token", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT2", ""))
		f.store.Store(AccessTokenKey, "AT1")
		f.store.Store(RefreshTokenKey, "RT1")
		_, _ = f.manager.TryAutoAuthenticate(ctx)

		_, gen := f.manager.snapshot()
		if _, err := f.manager.ForceRefresh(ctx, "AT1"); err != nil {
			t.Fatal(err)
		}

		token, err := f.manager.refresh(ctx, gen)
		if err != nil || token != "AT2" {
			t.Errorf("expected AT2, got %q (%v)", token, err)
		}
		if got := f.server.Calls(); got != 1 {
			t.Errorf("expected a single refresh request, got %d", got)
		}
	})
}

func TestManagerRefreshRaces(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected token already replaced", func(t *testing.T) {
		f := newFixture(t, exchangeOK("AT2", ""))
		f.store.Store(AccessTokenKey, "AT1")
		f.store.Store(RefreshTokenKey, "RT1")
		_, _ = f.manager.TryAutoAuthenticate(ctx)

		if _, err := f.manager.ForceRefresh(ctx, "AT1"); err != nil {
			t.Fatal(err)
		}

		// a second request that was sent with AT1 and rejected after the first refresh landed
		token, err := f.manager.ForceRefresh(ctx, "AT1")
		if err != nil || token != "AT2" {
			t.Errorf("expected AT2, got %q (%v)", token, err)
		}
		if got := f.server.Calls(); got != 1 {
			t.Errorf("expected a single refresh request, got %d", got)
		}
	})

	t.Run("logout during refresh is not undone", func(t *testing.T) {
		started, release := make(chan struct{}), make(chan struct{})
		var once sync.Once
		f := newFixture(t, func(url.Values) (int, any) {
			once.Do(func() { close(started) })
			<-release
			return http.StatusOK, tu.TokenResponse("AT2", "RT2")
		})
		f.store.Store(RefreshTokenKey, "RT1")

		done := make(chan error, 1)
		var token string
		go func() {
			var err error
			token, err = f.manager.AccessToken(ctx)
			done <- err
		}()

		<-started
		if err := f.manager.Logout(ctx); err != nil {
			t.Fatal(err)
		}
		close(release)

		if err := <-done; !errors.Is(err, shared.ErrAuthRequired) {
			t.Errorf("expected ErrAuthRequired, got %v", err)
		}
		if token != "" {
			t.Errorf("expected no token, got %q", token)
		}
		if len(f.store.Values()) != 0 {
			t.Errorf("expected empty store, got %v", f.store.Values())
		}
		if st := f.manager.Status(); st.HasAccessToken || st.HasRefreshToken || st.State != Unauthenticated {
			t.Errorf("expected logged out, got %+v", st)
		}
		if token, err := f.manager.AccessToken(ctx); err != nil || token != "" {
			t.Errorf("expected empty token, got %q (%v)", token, err)
		}
	})

	t.Run("failed refresh after logout does not notify", func(t *testing.T) {
		started, release := make(chan struct{}), make(chan struct{})
		var once sync.Once
		f := newFixture(t, func(url.Values) (int, any) {
			once.Do(func() { close(started) })
			<-release
			return http.StatusBadRequest, tu.GrantError("invalid_grant")
		})
		f.store.Store(RefreshTokenKey, "RT1")

		done := make(chan error, 1)
		go func() {
			_, err := f.manager.AccessToken(ctx)
			done <- err
		}()

		<-started
		f.manager.Logout(ctx)
		close(release)

		if err := <-done; !errors.Is(err, shared.ErrAuthRequired) {
			t.Errorf("expected ErrAuthRequired, got %v", err)
		}
		if errs := f.notifier.Errors(); len(errs) != 0 {
			t.Errorf("expected no refresh failure notice, got %v", errs)
		}
	})
}

func TestManagerDefaultNotifier(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(ManagerOpts{Receiver: &fakeReceiver{}, Logger: log.New(&buf)})

	if err := m.Authenticate(context.Background()); !errors.Is(err, shared.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if !strings.Contains(buf.String(), "Please set the Spotify client ID") {
		t.Errorf("expected the notice in the log, got %q", buf.String())
	}
}

func TestManagerTryAutoAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing stored", func(t *testing.T) {
		f := newFixture(t, nil)
		ok, err := f.manager.TryAutoAuthenticate(ctx)
		if err != nil || ok {
			t.Errorf("expected false, got %v (%v)", ok, err)
		}
		if f.manager.State() != Unauthenticated {
			t.Errorf("expected unauthenticated, got %s", f.manager.State())
		}
	})

	t.Run("refresh token only", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.Store(RefreshTokenKey, "RT1")

		ok, err := f.manager.TryAutoAuthenticate(ctx)
		if err != nil || !ok {
			t.Errorf("expected true, got %v (%v)", ok, err)
		}
		if f.manager.State() != Authenticated {
			t.Errorf("expected authenticated, got %s", f.manager.State())
		}
		if f.server.Calls() != 0 {
			t.Error("auto authentication must not touch the network")
		}
	})
}

func TestManagerLogout(t *testing.T) {
	f := newFixture(t, exchangeOK("AT1", "RT1"))
	ctx := context.Background()
	if err := f.manager.Authenticate(ctx); err != nil {
		t.Fatal(err)
	}

	if err := f.manager.Logout(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.store.Values()) != 0 {
		t.Errorf("expected empty store, got %v", f.store.Values())
	}

	status := f.manager.Status()
	if status.State != Unauthenticated || status.HasAccessToken || status.HasRefreshToken {
		t.Errorf("unexpected status after logout: %+v", status)
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{
		Unauthenticated: "unauthenticated",
		Authenticating:  "authenticating",
		Authenticated:   "authenticated",
		RefreshPending:  "refresh_pending",
	} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
