package preferences

import "errors"

var (
	// ErrEmptyKey is returned when a key is empty.
	ErrEmptyKey = errors.New("preferences: empty key")
)
