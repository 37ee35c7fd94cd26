package source

import "errors"

var (
	// ErrQueueRequired is returned when a poller is constructed without a queue.
	ErrQueueRequired = errors.New("queue required")
)
