// Package auth owns the Spotify credential lifecycle.
//
// # PKCE
//
// [GeneratePKCE] returns a 64 character verifier drawn from crypto/rand and its S256 challenge.
// A verifier only lives between issuing the authorization URL and exchanging the code.
//
// # Secret Store
//
// Tokens are mirrored into a [SecretStore] one field at a time under [AccessTokenKey] and [RefreshTokenKey].
// [KeyringStore] keeps them in the OS keychain via go-keyring; [MemoryStore] keeps them for the current process.
//
// # Manager
//
// [Manager] moves through [Unauthenticated], [Authenticating], [Authenticated] and [RefreshPending].
//
//   - [Manager.Authenticate] runs the browser flow through a [CodeReceiver] and exchanges the code.
//   - [Manager.TryAutoAuthenticate] loads stored tokens without touching the network.
//   - [Manager.AccessToken] hydrates lazily and refreshes when only a refresh token is available.
//   - [Manager.ForceRefresh] mints a new access token; failure demotes to fully logged out.
//
// Authorization attempts and refreshes are single-flight: concurrent callers share the in-flight result,
// because Spotify rejects a second use of an authorization code or rotated refresh token.
package auth
