package adapter

import "errors"

// Sentinel transport errors. mapHTTPError translates HTTP status codes into
// these values so callers can match with [errors.Is] regardless of the
// underlying protocol.
var (
	// ErrUnauthorized indicates the remote rejected the bearer token.
	ErrUnauthorized = errors.New("remote session unauthorized")

	// ErrNotFound indicates the target record or collection does not exist.
	ErrNotFound = errors.New("remote record not found")

	// ErrConflict indicates a remote-side write conflict.
	ErrConflict = errors.New("remote write conflict")

	// ErrUnavailable indicates the remote store could not be reached or
	// answered with a 5xx status. The connectivity monitor treats this as an
	// offline signal.
	ErrUnavailable = errors.New("remote store unavailable")
)
