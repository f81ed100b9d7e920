// Package tasks runs the periodic background work behind the status display.
//
// # Poller
//
// [Poller] fetches the playback state on a fixed interval and publishes each result as a [StatusUpdate].
// It is a fire-and-forget periodic task:
//   - a tick that comes due while the previous fetch is still in flight is skipped
//   - [Poller.TriggerNow] requests an immediate fetch; bursts inside the debounce window collapse into one
//   - a [shared.ErrRateLimited] result suspends ticks until the server's Retry-After has passed
//
// # Updates
//
// Updates use a one-slot channel and select with default so a slow consumer never blocks the poller.
// When the slot is taken the older update is dropped in favour of the newer one.
package tasks
