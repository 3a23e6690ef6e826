package scheduler

import "errors"

var (
	ErrDuplicateJob   = errors.New("job already registered")
	ErrInvalidJob     = errors.New("invalid job")
	ErrJobNotFound    = errors.New("job not found")
	ErrJobPanicked    = errors.New("job panicked")
	ErrAlreadyRunning = errors.New("scheduler already running")
)
