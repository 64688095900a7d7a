package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Gray Logic fan service.
//
// Fan topics follow graylogic/fan/{fan_id}/{kind}, where kind is "state"
// (retained, published by the service) or "command" (published by clients).
const (
	// TopicPrefix is the root of every Gray Logic topic.
	TopicPrefix = "graylogic"

	// TopicPrefixFan is the base for per-fan topics.
	TopicPrefixFan = "graylogic/fan"

	// TopicPrefixCore is the base for core event topics.
	TopicPrefixCore = "graylogic/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"

	// DefaultDiscoveryPrefix is Home Assistant's default discovery prefix.
	DefaultDiscoveryPrefix = "homeassistant"
)

// Fan topic kinds.
const (
	KindState   = "state"
	KindCommand = "command"
)

// Topics provides builders for Gray Logic MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.FanState("living_room")
//	// Returns: "graylogic/fan/living_room/state"
type Topics struct{}

// FanState returns the retained state topic of a fan.
//
// Example: graylogic/fan/living_room/state
func (Topics) FanState(fanID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixFan, fanID, KindState)
}

// FanCommand returns the command topic of a fan.
//
// Example: graylogic/fan/living_room/command
func (Topics) FanCommand(fanID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixFan, fanID, KindCommand)
}

// AllFanCommands returns a wildcard matching every fan command topic.
func (Topics) AllFanCommands() string {
	return TopicPrefixFan + "/+/" + KindCommand
}

// AllFanStates returns a wildcard matching every fan state topic.
func (Topics) AllFanStates() string {
	return TopicPrefixFan + "/+/" + KindState
}

// CoreAutomationFired returns the topic announcing an automation firing.
//
// Example: graylogic/core/automation/night_mode/fired
func (Topics) CoreAutomationFired(automationID string) string {
	return fmt.Sprintf("%s/automation/%s/fired", TopicPrefixCore, automationID)
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// FanDiscovery returns the Home Assistant discovery config topic for a fan.
// An empty prefix selects DefaultDiscoveryPrefix.
//
// Example: homeassistant/fan/living_room/config
func (Topics) FanDiscovery(prefix, fanID string) string {
	if prefix == "" {
		prefix = DefaultDiscoveryPrefix
	}
	return fmt.Sprintf("%s/fan/%s/config", prefix, fanID)
}

// ParseFanTopic splits a topic of the form graylogic/fan/{id}/{kind}.
// ok is false for any other shape.
func ParseFanTopic(topic string) (fanID, kind string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixFan+"/")
	if !found {
		return "", "", false
	}
	fanID, kind, found = strings.Cut(rest, "/")
	if !found || fanID == "" || kind == "" || strings.Contains(kind, "/") {
		return "", "", false
	}
	return fanID, kind, true
}
