// Package services talks to the Spotify Web API on behalf of an authenticated user.
//
// # Executor
//
// [Executor] is the only place HTTP status codes are interpreted. It attaches the bearer token obtained from a
// [TokenProvider], retries exactly once after a forced refresh when the API answers 401, and turns every other
// non-success response into a [shared.APIError] whose Kind is one of the shared sentinels:
//   - [shared.ErrNoActiveDevice] : 404, nothing is playing anywhere
//   - [shared.ErrPremiumRequired] : 403 with reason PREMIUM_REQUIRED
//   - [shared.ErrRateLimited] : 429, RetryAfter carries the server's hint
//   - [shared.ErrProvider] : anything else at or above 400
//
// Other 403s are state warnings such as "already paused" and succeed with no data.
// Transport failures become [shared.ErrTimeout] or [shared.ErrNetwork].
//
// # Player
//
// [Player] is the playback facade. Mutating commands are rate limited, report through a [shared.Notifier], and
// schedule a follow-up refresh since Spotify's playback state lags the command. Timeouts and missing devices are
// logged and swallowed for commands; reads always return their error.
package services
