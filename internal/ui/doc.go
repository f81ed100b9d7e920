// Package ui implements the status display using bubbletea's Elm architecture.
//
// The [Model] renders the poller's latest [tasks.StatusUpdate] as a single status line with album, device, and a
// progress bar that advances locally every second between polls. Playback keys call the facade in commands so the
// view never blocks on the network; notifications arrive on a channel fed by [ChannelNotifier].
//
// Keyboard bindings (space, n, p, r, a, ?, q) are listed with charmbracelet/bubbles/help.
package ui
