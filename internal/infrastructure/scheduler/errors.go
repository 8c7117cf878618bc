package scheduler

import "errors"

var (
	// ErrSweeperRunning is returned when a manual sweep overlaps a scheduled one
	ErrSweeperRunning = errors.New("reservation sweep already in progress")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
