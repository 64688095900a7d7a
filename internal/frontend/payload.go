package frontend

import (
	"encoding/json"

	"github.com/nerrad567/gray-logic-fan/internal/control"
	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/mqtt"
)

// StatePayload is the retained state message of a fan.
type StatePayload struct {
	State       string `json:"state"`
	Oscillating bool   `json:"oscillating"`
	Speed       string `json:"speed"`
}

// NewStatePayload converts a snapshot into its wire form.
func NewStatePayload(snap fan.Snapshot) StatePayload {
	state := control.PowerOff
	if snap.On {
		state = control.PowerOn
	}
	return StatePayload{
		State:       state,
		Oscillating: snap.Oscillating,
		Speed:       snap.Speed.String(),
	}
}

// Home Assistant identifiers.
const (
	haManufacturer = "Gray Logic"
	haModel        = "Fan"

	oscillateOn  = "oscillate_on"
	oscillateOff = "oscillate_off"
)

// haDevice groups the entity under a device in Home Assistant.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// haAvailability points Home Assistant at the service status topic.
type haAvailability struct {
	Topic         string `json:"topic"`
	ValueTemplate string `json:"value_template"`
}

// discoveryPayload is a Home Assistant MQTT fan discovery message.
type discoveryPayload struct {
	Name               string           `json:"name"`
	UniqueID           string           `json:"unique_id"`
	Device             haDevice         `json:"device"`
	Availability       []haAvailability `json:"availability"`
	StateTopic         string           `json:"state_topic"`
	StateValueTemplate string           `json:"state_value_template"`
	CommandTopic       string           `json:"command_topic"`
	PayloadOn          string           `json:"payload_on"`
	PayloadOff         string           `json:"payload_off"`

	OscillationStateTopic      string `json:"oscillation_state_topic,omitempty"`
	OscillationValueTemplate   string `json:"oscillation_value_template,omitempty"`
	OscillationCommandTopic    string `json:"oscillation_command_topic,omitempty"`
	OscillationCommandTemplate string `json:"oscillation_command_template,omitempty"`
	PayloadOscillationOn       string `json:"payload_oscillation_on,omitempty"`
	PayloadOscillationOff      string `json:"payload_oscillation_off,omitempty"`

	PresetModes               []string `json:"preset_modes,omitempty"`
	PresetModeStateTopic      string   `json:"preset_mode_state_topic,omitempty"`
	PresetModeValueTemplate   string   `json:"preset_mode_value_template,omitempty"`
	PresetModeCommandTopic    string   `json:"preset_mode_command_topic,omitempty"`
	PresetModeCommandTemplate string   `json:"preset_mode_command_template,omitempty"`
}

// buildDiscoveryPayload describes one fan to Home Assistant. Speed is
// exposed as preset modes since the fan has three discrete speeds.
func buildDiscoveryPayload(id, name string, traits fan.Traits) ([]byte, error) {
	topics := mqtt.Topics{}
	stateTopic := topics.FanState(id)
	commandTopic := topics.FanCommand(id)
	if name == "" {
		name = id
	}

	p := discoveryPayload{
		Name:     name,
		UniqueID: "graylogic_fan_" + id,
		Device: haDevice{
			Identifiers:  []string{"graylogic_fan_" + id},
			Name:         name,
			Manufacturer: haManufacturer,
			Model:        haModel,
		},
		Availability: []haAvailability{{
			Topic:         topics.SystemStatus(),
			ValueTemplate: "{{ value_json.status }}",
		}},
		StateTopic:         stateTopic,
		StateValueTemplate: "{{ value_json.state }}",
		CommandTopic:       commandTopic,
		PayloadOn:          control.PowerOn,
		PayloadOff:         control.PowerOff,
	}

	if traits.Oscillation {
		p.OscillationStateTopic = stateTopic
		p.OscillationValueTemplate = "{{ '" + oscillateOn + "' if value_json.oscillating else '" + oscillateOff + "' }}"
		p.OscillationCommandTopic = commandTopic
		p.OscillationCommandTemplate = `{"oscillating": {{ 'true' if value == '` + oscillateOn + `' else 'false' }}}`
		p.PayloadOscillationOn = oscillateOn
		p.PayloadOscillationOff = oscillateOff
	}

	if traits.Speed {
		p.PresetModes = []string{
			fan.SpeedLow.String(),
			fan.SpeedMedium.String(),
			fan.SpeedHigh.String(),
		}
		p.PresetModeStateTopic = stateTopic
		p.PresetModeValueTemplate = "{{ value_json.speed }}"
		p.PresetModeCommandTopic = commandTopic
		p.PresetModeCommandTemplate = `{"speed": "{{ value }}"}`
	}

	return json.Marshal(p)
}
