package mqtt

import "fmt"

// maxPayloadSize caps a single message at 1MB. Fan state and discovery
// documents are a few hundred bytes.
const maxPayloadSize = 1 << 20

// PublishRetained publishes fan state or a discovery document. The broker
// keeps the last message per topic, so dashboards and Home Assistant see the
// current state as soon as they subscribe.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.publish(OpPublishState, topic, payload, true)
}

// PublishEvent publishes a non-retained message such as an automation firing.
func (c *Client) PublishEvent(topic string, payload []byte) error {
	return c.publish(OpPublishEvent, topic, payload, false)
}

// QoS returns the configured QoS level. Publishes use it, and the frontend
// and automation engine subscribe with it.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS)
}

func (c *Client) publish(op, topic string, payload []byte, retained bool) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case len(payload) > maxPayloadSize:
		return newTopicError(op, topic, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(payload), maxPayloadSize))
	case !c.IsConnected():
		return newTopicError(op, topic, ErrNotConnected)
	}

	token := c.client.Publish(topic, c.QoS(), retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return newTopicError(op, topic, fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout))
	}
	if err := token.Error(); err != nil {
		return newTopicError(op, topic, fmt.Errorf("%w: %w", ErrPublishFailed, err))
	}
	return nil
}
