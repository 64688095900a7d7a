package automation

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
)

// fanMap implements FanLookup for testing.
type fanMap map[string]*fan.State

func (m fanMap) Fan(id string) (*fan.State, bool) {
	s, ok := m[id]
	return s, ok
}

func testFans() fanMap {
	return fanMap{
		"bedroom":     fan.NewState("bedroom"),
		"living_room": fan.NewState("living_room"),
	}
}

func TestRegistry_AddGet(t *testing.T) {
	r := NewRegistry(testFans())

	if err := r.Add(validAutomation()); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, err := r.Get("night_mode")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.FanID != "bedroom" || len(got.Actions) != 1 {
		t.Errorf("Get() = %+v", got)
	}

	// Mutating the copy does not affect the registry.
	*got.Actions[0].Speed = "high"
	again, _ := r.Get("night_mode")
	if *again.Actions[0].Speed != "low" {
		t.Errorf("registry copy mutated: speed = %q", *again.Actions[0].Speed)
	}
}

func TestRegistry_AddErrors(t *testing.T) {
	r := NewRegistry(testFans())
	if err := r.Add(validAutomation()); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := r.Add(validAutomation()); !errors.Is(err, ErrAutomationExists) {
		t.Errorf("duplicate Add() error = %v, want ErrAutomationExists", err)
	}

	unknownFan := validAutomation()
	unknownFan.ID = "garage"
	unknownFan.FanID = "garage"
	if err := r.Add(unknownFan); !errors.Is(err, ErrInvalidAutomation) {
		t.Errorf("unknown fan Add() error = %v, want ErrInvalidAutomation", err)
	}

	invalid := validAutomation()
	invalid.ID = "bad"
	invalid.Actions = nil
	if err := r.Add(invalid); !errors.Is(err, ErrInvalidAutomation) {
		t.Errorf("invalid Add() error = %v, want ErrInvalidAutomation", err)
	}

	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := NewRegistry(testFans())
	if _, err := r.Get("missing"); !errors.Is(err, ErrAutomationNotFound) {
		t.Errorf("Get() error = %v, want ErrAutomationNotFound", err)
	}
}

func TestRegistry_LoadConfig(t *testing.T) {
	disabled := false
	cfgs := []config.AutomationConfig{
		{
			ID:      "morning",
			FanID:   "living_room",
			Trigger: config.AutomationTriggerConfig{Type: "interval", Interval: time.Hour},
			Actions: []config.AutomationActionConfig{{Type: "turn_on", Speed: strPtr("medium")}},
		},
		{
			ID:      "broken",
			FanID:   "living_room",
			Actions: []config.AutomationActionConfig{{Type: "explode"}},
		},
		{
			ID:      "off_switch",
			FanID:   "bedroom",
			Enabled: &disabled,
			Actions: []config.AutomationActionConfig{{Type: "turn_off"}},
		},
	}

	r := NewRegistry(testFans())
	err := r.LoadConfig(cfgs)
	if !errors.Is(err, ErrInvalidAction) {
		t.Errorf("LoadConfig() error = %v, want ErrInvalidAction for the broken entry", err)
	}

	list := r.List()
	if len(list) != 2 || list[0].ID != "morning" || list[1].ID != "off_switch" {
		t.Fatalf("List() = %+v, want morning and off_switch in order", list)
	}
	if list[0].Trigger.Type != TriggerInterval || list[0].Trigger.Interval != time.Hour {
		t.Errorf("morning trigger = %+v", list[0].Trigger)
	}
	if list[1].Enabled {
		t.Error("off_switch enabled, want disabled")
	}
	// An empty trigger type defaults to manual.
	if list[1].Trigger.Type != TriggerManual {
		t.Errorf("off_switch trigger = %q, want manual", list[1].Trigger.Type)
	}
}

func TestRegistry_CompiledAgainstFanState(t *testing.T) {
	fans := testFans()
	r := NewRegistry(fans)
	if err := r.Add(validAutomation()); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	_, chain, err := r.compiled("night_mode")
	if err != nil {
		t.Fatalf("compiled() error = %v", err)
	}
	if err := chain.Play(Event{}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	if got := fans["bedroom"].Snapshot(); got != (fan.Snapshot{On: true, Speed: fan.SpeedLow}) {
		t.Errorf("bedroom = %+v", got)
	}
	if fans["living_room"].On() {
		t.Error("living_room was touched")
	}
}
