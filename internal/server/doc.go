// Package server hosts the loopback HTTP listener that receives the OAuth redirect.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns internally.
//
// # Callback Handler
//
// [CallbackHandler] validates the state parameter (CSRF protection) and extracts the authorization code.
// It answers exactly one redirect; any later request is rejected with 400 so a replayed URL cannot complete a login.
//
// # Callback Listener
//
// [CallbackListener] binds the redirect URI's loopback address only for the duration of one authorization attempt,
// opens the browser, and shuts the server down as soon as the redirect arrives, the attempt times out, or the caller
// gives up. Token exchange is not done here; the code is handed back to the credential manager which owns the verifier.
package server
