// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

// Package client implements the sync client runtime.
//
// It wires the local queue store, remote adapter, connectivity probe,
// session cache, realtime subscriptions, and background jobs into a single
// process lifecycle.
package client
