package fan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Speed is the discrete speed of a fan.
type Speed int

// Speed values, ordered from slowest to fastest.
const (
	// SpeedOff means the motor is stopped. Combined with power on, the fan
	// should still be off.
	SpeedOff Speed = iota
	SpeedLow
	SpeedMedium
	SpeedHigh
)

// speedNames maps each speed to its textual token.
var speedNames = [...]string{
	SpeedOff:    "off",
	SpeedLow:    "low",
	SpeedMedium: "medium",
	SpeedHigh:   "high",
}

// AllSpeeds returns every valid speed in ascending order.
func AllSpeeds() []Speed {
	return []Speed{SpeedOff, SpeedLow, SpeedMedium, SpeedHigh}
}

// IsValid reports whether s is one of the four defined speeds.
func (s Speed) IsValid() bool {
	return s >= SpeedOff && s <= SpeedHigh
}

// String returns the textual token for the speed ("off", "low", "medium", "high").
func (s Speed) String() string {
	if !s.IsValid() {
		return fmt.Sprintf("speed(%d)", int(s))
	}
	return speedNames[s]
}

// ParseSpeed maps a textual token to a Speed.
//
// Matching is ASCII case-insensitive and ignores surrounding whitespace, so
// "Medium" and " medium " both map to SpeedMedium. Any other token returns
// ErrUnknownSpeed.
func ParseSpeed(token string) (Speed, error) {
	token = strings.TrimSpace(token)
	for i, name := range speedNames {
		if strings.EqualFold(token, name) {
			return Speed(i), nil
		}
	}
	return SpeedOff, fmt.Errorf("%w: %q", ErrUnknownSpeed, token)
}

// MarshalJSON encodes the speed as its textual token.
func (s Speed) MarshalJSON() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSpeed, int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a textual token into the speed.
func (s *Speed) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownSpeed, string(data))
	}
	parsed, err := ParseSpeed(token)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
