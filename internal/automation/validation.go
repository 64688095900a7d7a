package automation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/mqtt"
)

// Validation constants.
const (
	maxNameLength = 100
	maxIDLength   = 64
	maxActions    = 50
	minInterval   = time.Second
	idPattern     = `^[a-z0-9]+(?:[_-][a-z0-9]+)*$`
)

var idRegex = regexp.MustCompile(idPattern)

// Validate checks an automation's structure, trigger and actions, including
// that every literal value parses and every template compiles. It does not
// check that the target fan exists; the Registry does.
//
// Returns an error describing the first validation failure found.
func Validate(a *Automation) error {
	if a == nil {
		return ErrInvalidAutomation
	}

	if err := ValidateID(a.ID); err != nil {
		return err
	}
	if len(a.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidAutomation, maxNameLength)
	}
	if a.FanID == "" {
		return fmt.Errorf("%w: fan is required", ErrInvalidAutomation)
	}

	if err := ValidateTrigger(a.Trigger); err != nil {
		return err
	}

	if len(a.Actions) == 0 {
		return fmt.Errorf("%w: no actions", ErrInvalidAutomation)
	}
	if len(a.Actions) > maxActions {
		return fmt.Errorf("%w: exceeds maximum of %d actions", ErrInvalidAction, maxActions)
	}
	for i, spec := range a.Actions {
		if err := ValidateAction(spec); err != nil {
			return fmt.Errorf("action[%d]: %w", i, err)
		}
	}
	return nil
}

// ValidateID checks an automation ID (lowercase slug, "_" or "-" separated).
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidAutomation)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidAutomation, maxIDLength)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: id %q must be lowercase alphanumeric with _ or -", ErrInvalidAutomation, id)
	}
	return nil
}

// ValidateTrigger checks a trigger's type-specific fields.
func ValidateTrigger(t Trigger) error {
	switch t.Type {
	case TriggerMQTT:
		if strings.TrimSpace(t.Topic) == "" {
			return fmt.Errorf("%w: mqtt trigger requires a topic", ErrInvalidTrigger)
		}
		// Firing publishes here, so subscribing to it would loop.
		if strings.HasPrefix(t.Topic, mqtt.TopicPrefixCore+"/automation/") {
			return fmt.Errorf("%w: topic %q is reserved for automation events", ErrInvalidTrigger, t.Topic)
		}
	case TriggerInterval:
		if t.Interval < minInterval {
			return fmt.Errorf("%w: interval must be at least %v", ErrInvalidTrigger, minInterval)
		}
	case TriggerManual:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTrigger, t.Type)
	}
	return nil
}

// ValidateAction checks an action spec by compiling it against a scratch
// state.
func ValidateAction(spec ActionSpec) error {
	_, err := compileAction(spec, fan.NewState(""))
	return err
}

// GenerateID creates a new UUID for an execution.
func GenerateID() string {
	return uuid.New().String()
}
