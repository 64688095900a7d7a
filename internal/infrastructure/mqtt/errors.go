package mqtt

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Failures on a specific topic arrive wrapped in a
// *TopicError; use errors.Is to test for these.
var (
	// ErrNotConnected is returned while the broker connection is down.
	// Fan state published in this window is republished on reconnect.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when the initial broker connection fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when the broker did not accept a state,
	// discovery or event message.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrPayloadTooLarge is returned for messages above maxPayloadSize.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")

	// ErrSubscribeFailed is returned when a command or trigger subscription fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when removing a subscription fails.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned for a QoS level other than 0, 1 or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)

// Broker operations reported in TopicError.Op.
const (
	OpPublishState = "publish state"
	OpPublishEvent = "publish event"
	OpSubscribe    = "subscribe"
	OpUnsubscribe  = "unsubscribe"
)

// TopicError reports a failed broker operation on one topic.
//
// FanID is filled in when the topic belongs to a single fan (its state,
// command or discovery topic) so callers can tell which fan's update was lost.
type TopicError struct {
	Op    string
	Topic string
	FanID string
	Err   error
}

func newTopicError(op, topic string, err error) *TopicError {
	return &TopicError{Op: op, Topic: topic, FanID: topicFanID(topic), Err: err}
}

func (e *TopicError) Error() string {
	if e.FanID != "" {
		return fmt.Sprintf("%s %q for fan %s: %v", e.Op, e.Topic, e.FanID, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Topic, e.Err)
}

func (e *TopicError) Unwrap() error {
	return e.Err
}

// topicFanID extracts the fan ID from graylogic/fan/{id}/{kind} and
// {discovery_prefix}/fan/{id}/config. Wildcard segments are not fan IDs.
func topicFanID(topic string) string {
	if id, _, ok := ParseFanTopic(topic); ok {
		if id == "+" {
			return ""
		}
		return id
	}
	parts := strings.Split(topic, "/")
	if len(parts) == 4 && parts[1] == "fan" && parts[3] == "config" && parts[2] != "" && parts[2] != "+" {
		return parts[2]
	}
	return ""
}
