// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

// Package adapter provides transport-layer abstractions for communicating
// with the remote ledgerkeep store.
//
// The primary abstraction is [RemoteAdapter], which decouples the sync core
// from the underlying protocol. The package ships an HTTP/REST implementation
// ([NewHTTPRemoteAdapter]) that carries collection CRUD and session calls
// over resty and change subscriptions over a websocket.
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] for transport-agnostic
// error handling (e.g. [ErrConflict] for 409, [ErrUnauthorized] for 401).
package adapter
