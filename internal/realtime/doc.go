// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

// Package realtime maintains live change subscriptions against the remote
// store and delivers debounced mutation events to caller-supplied handlers.
//
// The central type is [Registry], an explicit subscription registry owned by
// the application's composition root. Each watched collection gets one
// managed channel with the lifecycle
//
//	idle -> connecting -> subscribed -> disconnected -> (connecting | idle)
//
// Channel setup is debounced to absorb rapid mount/unmount cycles, and
// repeated setup failures trip a loop-protection cool-down instead of
// retrying forever. Event delivery is debounced per handler: bursts from
// bulk remote writes (e.g. a backup import) collapse into a single delivery
// carrying the most recent payload.
package realtime
