package frontend

import "errors"

// Domain-specific errors for the MQTT binding.
var (
	// ErrInvalidOptions is returned when required dependencies are missing.
	ErrInvalidOptions = errors.New("frontend: invalid options")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("frontend: already started")
)
