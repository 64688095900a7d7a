package automation

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
)

// templateFuncs are available to action value templates.
var templateFuncs = template.FuncMap{
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"trim":  strings.TrimSpace,
}

// Compile builds the action chain of a against state.
//
// Literal values are parsed once and become fixed values. Template values
// are parsed once and rendered on every Play; a render or parse failure
// stops the chain with the actions before it already applied.
//
// The returned chain mutates state and must only be played where state may
// be mutated (inside control.Manager.Do).
func Compile(a *Automation, state *fan.State) (fan.Chain[Event], error) {
	if a == nil || state == nil {
		return nil, ErrInvalidAutomation
	}

	chain := fan.NewChain[Event]()
	for i, spec := range a.Actions {
		action, err := compileAction(spec, state)
		if err != nil {
			return nil, fmt.Errorf("action[%d]: %w", i, err)
		}
		chain = chain.Then(action)
	}
	return chain, nil
}

func compileAction(spec ActionSpec, state *fan.State) (fan.Action[Event], error) {
	switch spec.Type {
	case ActionTurnOn:
		action := fan.NewTurnOnAction[Event](state)
		if spec.Oscillating != nil {
			v, err := compileValue(*spec.Oscillating, parseBool)
			if err != nil {
				return nil, fmt.Errorf("%w: oscillating: %w", ErrInvalidAction, err)
			}
			action.SetOscillatingValue(v)
		}
		if spec.Speed != nil {
			v, err := compileValue(*spec.Speed, fan.ParseSpeed)
			if err != nil {
				return nil, fmt.Errorf("%w: speed: %w", ErrInvalidAction, err)
			}
			action.SetSpeedValue(v)
		}
		return action, nil

	case ActionTurnOff, ActionToggle:
		if spec.Oscillating != nil || spec.Speed != nil {
			return nil, fmt.Errorf("%w: %s takes no oscillating or speed", ErrInvalidAction, spec.Type)
		}
		if spec.Type == ActionTurnOff {
			return fan.NewTurnOffAction[Event](state), nil
		}
		return fan.NewToggleAction[Event](state), nil

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidAction, spec.Type)
	}
}

// compileValue turns raw into a fan.Value. Text containing "{{" is a
// template over Event; anything else is a literal parsed now.
func compileValue[V any](raw string, parse func(string) (V, error)) (fan.Value[Event, V], error) {
	if !isTemplate(raw) {
		v, err := parse(raw)
		if err != nil {
			return fan.Value[Event, V]{}, err
		}
		return fan.Fixed[Event](v), nil
	}

	tmpl, err := template.New("value").Funcs(templateFuncs).Option("missingkey=error").Parse(raw)
	if err != nil {
		return fan.Value[Event, V]{}, fmt.Errorf("parsing template: %w", err)
	}

	return fan.FuncErr(func(ev Event) (V, error) {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, ev); err != nil {
			var zero V
			return zero, fmt.Errorf("rendering %q: %w", raw, err)
		}
		v, err := parse(buf.String())
		if err != nil {
			var zero V
			return zero, fmt.Errorf("rendered %q: %w", buf.String(), err)
		}
		return v, nil
	}), nil
}

func isTemplate(raw string) bool {
	return strings.Contains(raw, "{{")
}

func parseBool(s string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(s))
}
