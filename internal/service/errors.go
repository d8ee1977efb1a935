package service

import "errors"

var (
	// ErrInvalidRecord is returned by Enqueue when the mutation is missing a
	// record id, targets an unknown collection, or carries an unknown
	// operation.
	ErrInvalidRecord = errors.New("invalid sync record")

	// ErrOffline is returned by Flush when the remote store is known to be
	// unreachable. The queue is left untouched.
	ErrOffline = errors.New("remote store offline")
)
