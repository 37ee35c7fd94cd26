package window

import "errors"

var (
	// ErrInvalidSessionGap is returned when the session gap is not positive.
	ErrInvalidSessionGap = errors.New("session gap must be positive")

	// ErrInvalidGrace is returned when the late-arrival grace is negative.
	ErrInvalidGrace = errors.New("late-arrival grace cannot be negative")

	// ErrNilClock is returned when a nil clock function is supplied.
	ErrNilClock = errors.New("clock function cannot be nil")
)
