package control

import "errors"

var (
	// ErrLoopStopped is returned when submitting work to a loop that has exited.
	ErrLoopStopped = errors.New("control: loop stopped")

	// ErrFanNotFound is returned for an unknown fan ID.
	ErrFanNotFound = errors.New("control: fan not found")

	// ErrInvalidCommand is returned when a command is empty or malformed.
	ErrInvalidCommand = errors.New("control: invalid command")

	// ErrJobPanicked is returned when a submitted job panics.
	ErrJobPanicked = errors.New("control: job panicked")
)
