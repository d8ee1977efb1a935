package devremote

import "errors"

var (
	errNotFound = errors.New("record not found")

	// ErrUnknownUser is returned by the session manager when neither the
	// login nor the password matches a registered user.
	ErrUnknownUser = errors.New("unknown login or wrong password")
)
