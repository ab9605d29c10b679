package scheduler

import "errors"

var (
	// ErrSchedulerRunning is returned when jobs are added after Start
	ErrSchedulerRunning = errors.New("scheduler is already running")

	// ErrInvalidConfig is returned for a non-positive interval or a bad time of day
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
