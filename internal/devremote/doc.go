// Package devremote is a self-contained in-memory stand-in for the hosted
// ledgerkeep backend. It serves the same REST and websocket surface the
// client adapter talks to: generic collection CRUD under /api/collections,
// JWT session endpoints under /api/session, and a live change feed on
// /api/subscribe. State lives in process memory only.
//
// It exists for local development and end-to-end tests; it is not a
// production server.
package devremote
