package control

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
)

// Power tokens accepted in Command.State.
const (
	PowerOn     = "ON"
	PowerOff    = "OFF"
	PowerToggle = "TOGGLE"
)

// Command is a partial update of one fan. Nil fields are left unchanged.
//
// JSON form: {"state":"ON","oscillating":true,"speed":"medium"}
type Command struct {
	State       *string `json:"state,omitempty"`
	Oscillating *bool   `json:"oscillating,omitempty"`
	Speed       *string `json:"speed,omitempty"`
}

// ParseCommand decodes a JSON command or a bare ON, OFF or TOGGLE token.
func ParseCommand(payload []byte) (Command, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return Command{}, fmt.Errorf("%w: empty payload", ErrInvalidCommand)
	}

	if payload[0] != '{' {
		token := string(payload)
		return Command{State: &token}, nil
	}

	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return cmd, nil
}

// IsEmpty reports whether the command changes nothing.
func (c Command) IsEmpty() bool {
	return c.State == nil && c.Oscillating == nil && c.Speed == nil
}

// compiled is a validated command.
type compiled struct {
	power       string
	oscillating *bool
	speed       *fan.Speed
}

// compile validates the command without touching any state.
func (c Command) compile() (compiled, error) {
	if c.IsEmpty() {
		return compiled{}, fmt.Errorf("%w: no fields set", ErrInvalidCommand)
	}

	var out compiled
	if c.State != nil {
		out.power = strings.ToUpper(strings.TrimSpace(*c.State))
		switch out.power {
		case PowerOn, PowerOff, PowerToggle:
		default:
			return compiled{}, fmt.Errorf("%w: unknown state %q", ErrInvalidCommand, *c.State)
		}
	}
	if c.Speed != nil {
		speed, err := fan.ParseSpeed(*c.Speed)
		if err != nil {
			return compiled{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		out.speed = &speed
	}
	out.oscillating = c.Oscillating
	return out, nil
}

// chain builds the action chain applying the command to s.
//
// ON folds oscillation and speed into a single turn-on action. OFF, TOGGLE
// and attribute-only commands change power first, then the attributes,
// without powering the fan on.
func (c compiled) chain(s *fan.State) fan.Chain[Command] {
	if c.power == PowerOn {
		on := fan.NewTurnOnAction[Command](s)
		if c.oscillating != nil {
			on.SetOscillating(*c.oscillating)
		}
		if c.speed != nil {
			on.SetSpeed(*c.speed)
		}
		return fan.NewChain[Command](on)
	}

	chain := fan.NewChain[Command]()
	switch c.power {
	case PowerOff:
		chain = chain.Then(fan.NewTurnOffAction[Command](s))
	case PowerToggle:
		chain = chain.Then(fan.NewToggleAction[Command](s))
	}
	if c.oscillating != nil || c.speed != nil {
		chain = chain.Then(&attributesAction{state: s, oscillating: c.oscillating, speed: c.speed})
	}
	return chain
}

// attributesAction sets oscillation and speed without changing power.
type attributesAction struct {
	state       *fan.State
	oscillating *bool
	speed       *fan.Speed
}

func (a *attributesAction) Play(Command) error {
	if a.oscillating != nil {
		a.state.SetOscillating(*a.oscillating)
	}
	if a.speed != nil {
		a.state.SetSpeed(*a.speed)
	}
	return nil
}
