package convoflow

import "errors"

var (
	// ErrQueueRequired is returned when NewPipeline is given a nil queue.
	ErrQueueRequired = errors.New("a queue is required")

	// ErrIndexRequired is returned when NewPipeline is given a nil index.
	ErrIndexRequired = errors.New("an index is required")

	// ErrInvalidSessionGap is returned when the session gap is not positive.
	ErrInvalidSessionGap = errors.New("session gap must be positive")

	// ErrInvalidLateGrace is returned when the late grace is negative.
	ErrInvalidLateGrace = errors.New("late grace must not be negative")

	// ErrInvalidBatchSize is returned when the target batch size is not positive.
	ErrInvalidBatchSize = errors.New("target batch size must be positive")

	// ErrInvalidPollInterval is returned when the poll interval is not positive.
	ErrInvalidPollInterval = errors.New("poll interval must be positive")

	// ErrPipelineClosed is returned by Submit and Run after Release.
	ErrPipelineClosed = errors.New("the pipeline has been closed")
)
