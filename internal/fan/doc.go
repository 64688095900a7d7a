// Package fan provides the shared fan state and the automation actions that
// mutate it.
//
// A State is the single source of truth for one physical fan. It is shared by
// reference between the driver that moves air, the transport layer that
// renders the fan to users, and the preference store that restores it after a
// restart.
//
// Architecture:
//
//	┌──────────────┐  Play(x)  ┌───────────────────────────┐
//	│  Chain[T]    │──────────▶│ TurnOn / TurnOff / Toggle │
//	│ (action.go)  │           │        (action.go)        │
//	└──────────────┘           └─────────────┬─────────────┘
//	                                         │ SetOn / SetSpeed / ...
//	                                         ▼
//	                           ┌───────────────────────────┐
//	                           │       State (state.go)    │
//	                           │  observers run in order   │
//	                           └─────────────┬─────────────┘
//	                                         │ func()
//	                                         ▼
//	                           transport · persistence · UI
//
// # Key Types
//
//   - State: power, oscillation, speed, traits and change observers
//   - Speed: OFF, LOW, MEDIUM, HIGH
//   - Traits: which optional controls a fan supports
//   - Value: an action parameter that is absent, fixed, or computed from the
//     triggering context
//   - Action, Chain: ordered state mutations executed with a context value
//
// # Thread Safety
//
// State is NOT safe for concurrent use. Every setter runs its observers
// synchronously before returning, and the package does no locking. Hosts
// with more than one goroutine must confine all access to a single goroutine
// (see internal/control).
//
// # Usage
//
//	state := fan.NewState("bedroom_fan")
//	state.SetTraits(fan.Traits{Oscillation: true, Speed: true})
//	state.AddOnStateChangeCallback(func() {
//	    log.Info("fan changed", "on", state.On(), "speed", state.Speed())
//	})
//
//	on := fan.NewTurnOnAction[string](state)
//	on.SetSpeedFunc(func(x string) fan.Speed { ... })
//	chain := fan.NewChain[string](on, fan.NewToggleAction[string](state))
//	err := chain.Play("evening")
package fan
