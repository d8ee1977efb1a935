package backup

import "errors"

// ErrInvalidBundle is returned when a bundle fails structural validation
// before import: nil bundle, unsupported format version, or an unknown
// collection name.
var ErrInvalidBundle = errors.New("invalid backup bundle")
