package automation

import (
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
)

// Automation is a trigger plus the ordered fan actions it runs.
type Automation struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	FanID   string       `json:"fan_id"`
	Enabled bool         `json:"enabled"`
	Trigger Trigger      `json:"trigger"`
	Actions []ActionSpec `json:"actions"`
}

// TriggerType says what fires an automation.
type TriggerType string

const (
	// TriggerMQTT fires on every message received on Trigger.Topic.
	TriggerMQTT TriggerType = "mqtt"

	// TriggerInterval fires every Trigger.Interval.
	TriggerInterval TriggerType = "interval"

	// TriggerManual fires only through Engine.Fire (API, tests).
	TriggerManual TriggerType = "manual"
)

// Trigger describes what fires an automation.
type Trigger struct {
	Type     TriggerType   `json:"type"`
	Topic    string        `json:"topic,omitempty"`
	Interval time.Duration `json:"interval,omitempty"`
}

// ActionType selects the fan action an ActionSpec compiles to.
type ActionType string

const (
	ActionTurnOn  ActionType = "turn_on"
	ActionTurnOff ActionType = "turn_off"
	ActionToggle  ActionType = "toggle"
)

// ActionSpec is one step of an automation.
//
// Oscillating and Speed are only valid for turn_on. Each holds a literal
// ("true", "medium") or a text/template expression rendered against the
// triggering Event ("{{ .Payload.speed }}").
type ActionSpec struct {
	Type        ActionType `json:"type"`
	Oscillating *string    `json:"oscillating,omitempty"`
	Speed       *string    `json:"speed,omitempty"`
}

// Event is the context value passed through an automation's action chain.
type Event struct {
	AutomationID string         `json:"automation_id"`
	Source       string         `json:"source"`
	Topic        string         `json:"topic,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	Raw          string         `json:"raw,omitempty"`
	Time         time.Time      `json:"time"`
}

// Event sources recorded on executions.
const (
	SourceManual   = "manual"
	SourceAPI      = "api"
	SourceMQTT     = "mqtt"
	SourceInterval = "interval"
)

// Execution records a single firing of an automation.
type Execution struct {
	ID           string          `json:"id"`
	AutomationID string          `json:"automation_id"`
	FanID        string          `json:"fan_id"`
	Source       string          `json:"source"`
	Status       ExecutionStatus `json:"status"`
	Error        string          `json:"error,omitempty"`
	ActionsTotal int             `json:"actions_total"`
	FanState     *fan.Snapshot   `json:"fan_state,omitempty"`
	FiredAt      time.Time       `json:"fired_at"`
	DurationMS   int             `json:"duration_ms"`
}

// ExecutionStatus is the outcome of an execution.
type ExecutionStatus string

const (
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed" // Chain stopped; earlier mutations remain
)

// FromConfig converts a configured automation.
func FromConfig(c config.AutomationConfig) *Automation {
	a := &Automation{
		ID:      c.ID,
		Name:    c.Name,
		FanID:   c.FanID,
		Enabled: c.IsEnabled(),
		Trigger: Trigger{
			Type:     TriggerType(c.Trigger.Type),
			Topic:    c.Trigger.Topic,
			Interval: c.Trigger.Interval,
		},
	}
	if a.Trigger.Type == "" {
		a.Trigger.Type = TriggerManual
	}
	for _, ac := range c.Actions {
		a.Actions = append(a.Actions, ActionSpec{
			Type:        ActionType(ac.Type),
			Oscillating: cloneStringPtr(ac.Oscillating),
			Speed:       cloneStringPtr(ac.Speed),
		})
	}
	return a
}

// DeepCopy creates an independent copy of the Automation.
func (a *Automation) DeepCopy() *Automation {
	if a == nil {
		return nil
	}

	cpy := *a
	if a.Actions != nil {
		cpy.Actions = make([]ActionSpec, len(a.Actions))
		for i, spec := range a.Actions {
			cpy.Actions[i] = ActionSpec{
				Type:        spec.Type,
				Oscillating: cloneStringPtr(spec.Oscillating),
				Speed:       cloneStringPtr(spec.Speed),
			}
		}
	}
	return &cpy
}

// cloneStringPtr creates an independent copy of a *string.
func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
