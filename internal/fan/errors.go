package fan

import "errors"

// Domain errors for the fan package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, fan.ErrUnknownSpeed) {
//	    // reject the command
//	}
var (
	// ErrUnknownSpeed is returned when a textual speed token is not recognised.
	ErrUnknownSpeed = errors.New("fan: unknown speed")

	// ErrNoPreferences is returned when loading or saving without a preference store.
	ErrNoPreferences = errors.New("fan: no preference store")

	// ErrCorruptPreferences is returned when a stored state blob cannot be decoded.
	ErrCorruptPreferences = errors.New("fan: corrupt preferences")
)
