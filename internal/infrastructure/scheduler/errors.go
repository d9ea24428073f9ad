package scheduler

import "errors"

var (
	// ErrCycleRunning is returned when a cycle of the same type is already in progress,
	// locally or on another instance
	ErrCycleRunning = errors.New("scheduler: sync cycle already running")

	// ErrInvalidWindow is returned when an inbound window does not satisfy start < end
	ErrInvalidWindow = errors.New("scheduler: invalid inbound window")

	// ErrCoordinatorClosed is returned after Shutdown
	ErrCoordinatorClosed = errors.New("scheduler: coordinator is shut down")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("scheduler: invalid configuration")
)
