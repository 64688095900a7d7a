package fan

import (
	"context"
	"encoding/json"
	"fmt"
)

// Logger defines the logging interface used by State.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Preferences is the key/blob store a State persists itself into.
//
// Implementations live in internal/preferences.
type Preferences interface {
	// Load returns the blob stored under key. found is false when nothing
	// has been stored yet; that is not an error.
	Load(ctx context.Context, key string) (blob []byte, found bool, err error)

	// Save stores blob under key, replacing any previous value.
	Save(ctx context.Context, key string, blob []byte) error
}

// Snapshot is the persisted part of a fan's state.
type Snapshot struct {
	On          bool  `json:"state"`
	Oscillating bool  `json:"oscillating"`
	Speed       Speed `json:"speed"`
}

// State is the shared state of one fan: power, oscillation, speed, traits
// and the observers notified when any of the first three change.
//
// A new State is off, not oscillating, and at SpeedHigh. Speed and power are
// independent attributes, so a powered-off fan still reports a speed.
//
// Thread Safety:
//   - None. Callers must serialise all access (see package doc).
type State struct {
	name        string
	on          bool
	oscillating bool
	speed       Speed
	traits      Traits
	observers   []func()
	prefs       Preferences
	logger      Logger
}

// NewState creates a fan state with the given stable name.
//
// The name is used as the preference key and should not change for the
// lifetime of the device.
func NewState(name string) *State {
	return &State{
		name:   name,
		speed:  SpeedHigh,
		logger: noopLogger{},
	}
}

// Name returns the stable name of the fan.
func (s *State) Name() string {
	return s.name
}

// SetLogger sets the logger used for mutation and persistence messages.
func (s *State) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// SetPreferences sets the store used by LoadFromPreferences and SaveToPreferences.
func (s *State) SetPreferences(prefs Preferences) {
	s.prefs = prefs
}

// AddOnStateChangeCallback registers an observer that is called every time
// power, oscillation or speed is set. Observers are called in registration
// order and cannot be removed.
//
// Observers receive no arguments and must re-read whichever attributes they
// care about.
func (s *State) AddOnStateChangeCallback(callback func()) {
	s.observers = append(s.observers, callback)
}

// On reports whether the fan is powered on.
func (s *State) On() bool {
	return s.on
}

// SetOn sets the power state and notifies all observers, even if the value
// did not change.
func (s *State) SetOn(on bool) {
	s.on = on
	s.logger.Debug("fan power set", "fan", s.name, "on", on)
	s.notify()
}

// Oscillating reports whether oscillation is enabled.
func (s *State) Oscillating() bool {
	return s.oscillating
}

// SetOscillating sets oscillation and notifies all observers. It is accepted
// regardless of power state and traits.
func (s *State) SetOscillating(oscillating bool) {
	s.oscillating = oscillating
	s.logger.Debug("fan oscillation set", "fan", s.name, "oscillating", oscillating)
	s.notify()
}

// Speed returns the current speed.
func (s *State) Speed() Speed {
	return s.speed
}

// SetSpeed sets the speed and notifies all observers.
//
// A speed outside SpeedOff..SpeedHigh is logged and ignored; the state and
// observers are left untouched.
func (s *State) SetSpeed(speed Speed) {
	if !speed.IsValid() {
		s.logger.Warn("ignoring out-of-range fan speed", "fan", s.name, "speed", int(speed))
		return
	}
	s.speed = speed
	s.logger.Debug("fan speed set", "fan", s.name, "speed", speed.String())
	s.notify()
}

// SetSpeedString sets the speed from a textual token such as "medium".
//
// An unrecognised token returns ErrUnknownSpeed and leaves the state and
// observers untouched.
func (s *State) SetSpeedString(token string) error {
	speed, err := ParseSpeed(token)
	if err != nil {
		return err
	}
	s.SetSpeed(speed)
	return nil
}

// Traits returns the capability descriptor of the fan.
func (s *State) Traits() Traits {
	return s.traits
}

// SetTraits replaces the capability descriptor. Traits are metadata, so no
// observer is notified.
func (s *State) SetTraits(traits Traits) {
	s.traits = traits
}

// Snapshot returns the current power, oscillation and speed.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		On:          s.on,
		Oscillating: s.oscillating,
		Speed:       s.speed,
	}
}

// LoadFromPreferences restores power, oscillation and speed from the
// preference store, keyed by Name().
//
// A missing record is not an error; the current values are kept. Restoring
// does not notify observers.
//
// Returns:
//   - error: ErrNoPreferences without a store, ErrCorruptPreferences if the
//     stored blob cannot be decoded, or the store's error
func (s *State) LoadFromPreferences(ctx context.Context) error {
	if s.prefs == nil {
		return ErrNoPreferences
	}

	blob, found, err := s.prefs.Load(ctx, s.name)
	if err != nil {
		return fmt.Errorf("loading fan %q: %w", s.name, err)
	}
	if !found {
		s.logger.Debug("no stored fan state, keeping defaults", "fan", s.name)
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return fmt.Errorf("%w: fan %q: %w", ErrCorruptPreferences, s.name, err)
	}

	s.on = snap.On
	s.oscillating = snap.Oscillating
	s.speed = snap.Speed

	s.logger.Info("fan state restored",
		"fan", s.name,
		"on", snap.On,
		"oscillating", snap.Oscillating,
		"speed", snap.Speed.String(),
	)
	return nil
}

// SaveToPreferences writes power, oscillation and speed to the preference
// store, keyed by Name().
func (s *State) SaveToPreferences(ctx context.Context) error {
	if s.prefs == nil {
		return ErrNoPreferences
	}

	blob, err := json.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("encoding fan %q: %w", s.name, err)
	}

	if err := s.prefs.Save(ctx, s.name, blob); err != nil {
		return fmt.Errorf("saving fan %q: %w", s.name, err)
	}
	return nil
}

// notify calls every observer in registration order.
func (s *State) notify() {
	for _, observer := range s.observers {
		observer()
	}
}
