package sink

import "errors"

var (
	// ErrIndexRequired is returned when a sink is constructed without an index.
	ErrIndexRequired = errors.New("index required")

	// ErrInvalidMaxAttempts is returned when the retry attempt bound is not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")
)
