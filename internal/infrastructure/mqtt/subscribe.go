package mqtt

import (
	"fmt"
	"sync"
)

// subscription is what resubscribe needs to replay a Subscribe call.
type subscription struct {
	qos     byte
	handler MessageHandler
}

// subscriptions remembers active subscriptions by topic. The broker forgets
// them with every clean-session reconnect.
type subscriptions struct {
	mu     sync.RWMutex
	topics map[string]subscription
}

func newSubscriptions() *subscriptions {
	return &subscriptions{topics: make(map[string]subscription)}
}

func (s *subscriptions) set(topic string, sub subscription) {
	s.mu.Lock()
	s.topics[topic] = sub
	s.mu.Unlock()
}

func (s *subscriptions) remove(topic string) {
	s.mu.Lock()
	delete(s.topics, topic)
	s.mu.Unlock()
}

func (s *subscriptions) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.topics)
}

// snapshot copies the tracked subscriptions so they can be replayed
// without holding the lock across broker round trips.
func (s *subscriptions) snapshot() map[string]subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]subscription, len(s.topics))
	for topic, sub := range s.topics {
		out[topic] = sub
	}
	return out
}

// Subscribe delivers messages on topic to handler and keeps doing so across
// reconnects. The frontend subscribes to Topics.AllFanCommands and the
// automation engine to its MQTT trigger topics.
//
// Subscribing again to the same topic replaces the handler.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return newTopicError(OpSubscribe, topic, ErrInvalidQoS)
	case handler == nil:
		return newTopicError(OpSubscribe, topic, fmt.Errorf("%w: nil handler", ErrSubscribeFailed))
	case !c.IsConnected():
		return newTopicError(OpSubscribe, topic, ErrNotConnected)
	}

	token := c.client.Subscribe(topic, qos, c.dispatch(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return newTopicError(OpSubscribe, topic, fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout))
	}
	if err := token.Error(); err != nil {
		return newTopicError(OpSubscribe, topic, fmt.Errorf("%w: %w", ErrSubscribeFailed, err))
	}

	c.subs.set(topic, subscription{qos: qos, handler: handler})
	return nil
}

// Unsubscribe stops delivery on topic. Messages already in flight may still
// reach the handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	// Forget the topic even when disconnected so a reconnect does not
	// revive it.
	c.subs.remove(topic)
	if !c.IsConnected() {
		return newTopicError(OpUnsubscribe, topic, ErrNotConnected)
	}

	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return newTopicError(OpUnsubscribe, topic, fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultPublishTimeout))
	}
	if err := token.Error(); err != nil {
		return newTopicError(OpUnsubscribe, topic, fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err))
	}
	return nil
}

// SubscriptionCount returns the number of topics restored on reconnect.
// Reported in the API metrics.
func (c *Client) SubscriptionCount() int {
	return c.subs.len()
}

// resubscribe replays every tracked subscription and returns how many the
// broker rejected. Tokens are not awaited; paho calls this from its connect
// goroutine.
func (c *Client) resubscribe() int {
	failed := 0
	for topic, sub := range c.subs.snapshot() {
		token := c.client.Subscribe(topic, sub.qos, c.dispatch(sub.handler))
		if token.WaitTimeout(0) && token.Error() != nil {
			c.log().Warn("resubscribe failed", "topic", topic, "fan", topicFanID(topic), "error", token.Error())
			failed++
		}
	}
	return failed
}
