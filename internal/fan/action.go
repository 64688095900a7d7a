package fan

import "fmt"

// Action is a single state mutation executed with a context value of type T,
// the payload of whatever triggered the automation.
type Action[T any] interface {
	Play(x T) error
}

// TurnOnAction powers the fan on and optionally sets oscillation and speed.
type TurnOnAction[T any] struct {
	state       *State
	oscillating Value[T, bool]
	speed       Value[T, Speed]
}

// NewTurnOnAction creates a turn-on action bound to state.
// Oscillation and speed are left untouched until configured.
func NewTurnOnAction[T any](state *State) *TurnOnAction[T] {
	return &TurnOnAction[T]{state: state}
}

// SetOscillating configures a fixed oscillation value.
func (a *TurnOnAction[T]) SetOscillating(oscillating bool) *TurnOnAction[T] {
	a.oscillating = Fixed[T](oscillating)
	return a
}

// SetOscillatingFunc configures oscillation computed from the context.
func (a *TurnOnAction[T]) SetOscillatingFunc(fn func(T) bool) *TurnOnAction[T] {
	a.oscillating = Func(fn)
	return a
}

// SetOscillatingValue configures oscillation from a prepared Value.
func (a *TurnOnAction[T]) SetOscillatingValue(v Value[T, bool]) *TurnOnAction[T] {
	a.oscillating = v
	return a
}

// SetSpeed configures a fixed speed.
func (a *TurnOnAction[T]) SetSpeed(speed Speed) *TurnOnAction[T] {
	a.speed = Fixed[T](speed)
	return a
}

// SetSpeedFunc configures a speed computed from the context.
func (a *TurnOnAction[T]) SetSpeedFunc(fn func(T) Speed) *TurnOnAction[T] {
	a.speed = Func(fn)
	return a
}

// SetSpeedValue configures the speed from a prepared Value.
func (a *TurnOnAction[T]) SetSpeedValue(v Value[T, Speed]) *TurnOnAction[T] {
	a.speed = v
	return a
}

// Play turns the fan on, then applies the configured oscillation and speed.
//
// Power is always set first. If a context function fails or yields a speed
// outside SpeedOff..SpeedHigh, the mutations already made stay in effect and
// the error is returned.
func (a *TurnOnAction[T]) Play(x T) error {
	a.state.SetOn(true)

	if a.oscillating.HasValue() {
		oscillating, err := a.oscillating.Resolve(x)
		if err != nil {
			return fmt.Errorf("resolving oscillation: %w", err)
		}
		a.state.SetOscillating(oscillating)
	}

	if a.speed.HasValue() {
		speed, err := a.speed.Resolve(x)
		if err != nil {
			return fmt.Errorf("resolving speed: %w", err)
		}
		if !speed.IsValid() {
			return fmt.Errorf("resolving speed: %w: %d", ErrUnknownSpeed, int(speed))
		}
		a.state.SetSpeed(speed)
	}

	return nil
}

// TurnOffAction powers the fan off. Oscillation and speed are kept.
type TurnOffAction[T any] struct {
	state *State
}

// NewTurnOffAction creates a turn-off action bound to state.
func NewTurnOffAction[T any](state *State) *TurnOffAction[T] {
	return &TurnOffAction[T]{state: state}
}

// Play turns the fan off.
func (a *TurnOffAction[T]) Play(T) error {
	a.state.SetOn(false)
	return nil
}

// ToggleAction inverts the power state.
type ToggleAction[T any] struct {
	state *State
}

// NewToggleAction creates a toggle action bound to state.
func NewToggleAction[T any](state *State) *ToggleAction[T] {
	return &ToggleAction[T]{state: state}
}

// Play flips the power state.
func (a *ToggleAction[T]) Play(T) error {
	a.state.SetOn(!a.state.On())
	return nil
}

// Chain is an ordered sequence of actions played one after another with the
// same context value.
//
// Each action completes, including its observer notifications, before the
// next one starts. There is no rollback: when an action fails, the chain
// stops and earlier mutations remain.
type Chain[T any] []Action[T]

// NewChain creates a chain from the given actions.
func NewChain[T any](actions ...Action[T]) Chain[T] {
	return Chain[T](actions)
}

// Then returns the chain with a appended.
func (c Chain[T]) Then(a Action[T]) Chain[T] {
	return append(c, a)
}

// Len returns the number of actions in the chain.
func (c Chain[T]) Len() int {
	return len(c)
}

// Play runs every action in order with x.
func (c Chain[T]) Play(x T) error {
	for i, action := range c {
		if err := action.Play(x); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}
