package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-fan-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// mockLogger implements Logger for testing.
type mockLogger struct {
	infos    []string
	warns    []string
	errors   []string
	lastArgs map[string]any
	mu       sync.Mutex
}

func (l *mockLogger) record(list *[]string, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*list = append(*list, msg)
	l.lastArgs = make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			l.lastArgs[key] = args[i+1]
		}
	}
}

func (l *mockLogger) Info(msg string, args ...any)  { l.record(&l.infos, msg, args) }
func (l *mockLogger) Warn(msg string, args ...any)  { l.record(&l.warns, msg, args) }
func (l *mockLogger) Error(msg string, args ...any) { l.record(&l.errors, msg, args) }

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"FanState", topics.FanState("living_room"), "graylogic/fan/living_room/state"},
		{"FanCommand", topics.FanCommand("living_room"), "graylogic/fan/living_room/command"},
		{"AllFanCommands", topics.AllFanCommands(), "graylogic/fan/+/command"},
		{"AllFanStates", topics.AllFanStates(), "graylogic/fan/+/state"},
		{"CoreAutomationFired", topics.CoreAutomationFired("night"), "graylogic/core/automation/night/fired"},
		{"SystemStatus", topics.SystemStatus(), "graylogic/system/status"},
		{"FanDiscovery", topics.FanDiscovery("ha", "bedroom"), "ha/fan/bedroom/config"},
		{"FanDiscoveryDefault", topics.FanDiscovery("", "bedroom"), "homeassistant/fan/bedroom/config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestParseFanTopic(t *testing.T) {
	tests := []struct {
		topic    string
		wantID   string
		wantKind string
		wantOk   bool
	}{
		{"graylogic/fan/living_room/command", "living_room", "command", true},
		{"graylogic/fan/bedroom/state", "bedroom", "state", true},
		{"graylogic/fan//command", "", "", false},
		{"graylogic/fan/bedroom", "", "", false},
		{"graylogic/fan/bedroom/command/extra", "", "", false},
		{"graylogic/core/automation/x/fired", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, kind, ok := ParseFanTopic(tt.topic)
			if ok != tt.wantOk || id != tt.wantID || kind != tt.wantKind {
				t.Errorf("ParseFanTopic(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.topic, id, kind, ok, tt.wantID, tt.wantKind, tt.wantOk)
			}
		})
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "fan", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "graylogic-fan-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "fan" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig set without TLS enabled")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %v, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS 1.2 minimum not configured")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "graylogic-fan-test")

	if !opts.WillEnabled || !opts.WillRetained || opts.WillTopic != "graylogic/system/status" {
		t.Errorf("will = enabled:%v retained:%v topic:%q", opts.WillEnabled, opts.WillRetained, opts.WillTopic)
	}

	var status statusPayload
	if err := json.Unmarshal(opts.WillPayload, &status); err != nil {
		t.Fatalf("will payload not JSON: %v", err)
	}
	if status.Status != "offline" || status.Reason != "unexpected_disconnect" {
		t.Errorf("will payload = %+v", status)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	data := buildStatusPayload("client-1", "online", "")

	if strings.Contains(string(data), "reason") {
		t.Errorf("online payload carries empty reason: %s", data)
	}

	var status statusPayload
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if status.Status != "online" || status.ClientID != "client-1" || status.Timestamp == "" {
		t.Errorf("payload = %+v", status)
	}
}


// =============================================================================
// Error Context Tests
// =============================================================================

func TestTopicFanID(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{Topics{}.FanState("living_room"), "living_room"},
		{Topics{}.FanCommand("bedroom"), "bedroom"},
		{Topics{}.FanDiscovery("", "bedroom"), "bedroom"},
		{Topics{}.FanDiscovery("ha", "office"), "office"},
		{Topics{}.AllFanCommands(), ""},
		{Topics{}.CoreAutomationFired("night"), ""},
		{Topics{}.SystemStatus(), ""},
		{"homeassistant/fan//config", ""},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			if got := topicFanID(tt.topic); got != tt.want {
				t.Errorf("topicFanID(%q) = %q, want %q", tt.topic, got, tt.want)
			}
		})
	}
}

func TestTopicError(t *testing.T) {
	err := newTopicError(OpPublishState, Topics{}.FanState("bedroom"), ErrNotConnected)

	if !errors.Is(err, ErrNotConnected) {
		t.Error("errors.Is(err, ErrNotConnected) = false")
	}
	if err.FanID != "bedroom" {
		t.Errorf("FanID = %q, want bedroom", err.FanID)
	}
	want := `publish state "graylogic/fan/bedroom/state" for fan bedroom: mqtt: client not connected`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	event := newTopicError(OpPublishEvent, Topics{}.CoreAutomationFired("night"), ErrPublishFailed)
	if strings.Contains(event.Error(), "for fan") {
		t.Errorf("automation event error names a fan: %q", event.Error())
	}
}

// =============================================================================
// Publish and Subscribe Tests (no broker required)
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	c := newClient(testConfig())

	tests := []struct {
		name    string
		publish func(topic string, payload []byte) error
		topic   string
		payload []byte
		wantErr error
		wantOp  string
	}{
		{"retained empty topic", c.PublishRetained, "", nil, ErrInvalidTopic, ""},
		{"event empty topic", c.PublishEvent, "", nil, ErrInvalidTopic, ""},
		{"retained oversized", c.PublishRetained, Topics{}.FanState("bedroom"), make([]byte, maxPayloadSize+1), ErrPayloadTooLarge, OpPublishState},
		{"retained disconnected", c.PublishRetained, Topics{}.FanState("bedroom"), []byte(`{"state":"ON"}`), ErrNotConnected, OpPublishState},
		{"discovery disconnected", c.PublishRetained, Topics{}.FanDiscovery("", "bedroom"), []byte(`{}`), ErrNotConnected, OpPublishState},
		{"event disconnected", c.PublishEvent, Topics{}.CoreAutomationFired("night"), []byte(`{}`), ErrNotConnected, OpPublishEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.publish(tt.topic, tt.payload)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantOp == "" {
				return
			}
			var topicErr *TopicError
			if !errors.As(err, &topicErr) {
				t.Fatalf("error %T is not a *TopicError", err)
			}
			if topicErr.Op != tt.wantOp || topicErr.Topic != tt.topic {
				t.Errorf("TopicError = {Op:%q Topic:%q}, want {Op:%q Topic:%q}", topicErr.Op, topicErr.Topic, tt.wantOp, tt.topic)
			}
			if topicErr.FanID != topicFanID(tt.topic) {
				t.Errorf("FanID = %q", topicErr.FanID)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := newClient(testConfig())
	handler := func(string, []byte) error { return nil }
	commands := Topics{}.AllFanCommands()

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v", err)
	}
	if err := c.Subscribe(commands, 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v", err)
	}
	if err := c.Subscribe(commands, 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v", err)
	}

	err := c.Subscribe(Topics{}.FanCommand("bedroom"), c.QoS(), handler)
	var topicErr *TopicError
	if !errors.As(err, &topicErr) || !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Subscribe(disconnected) error = %v, want *TopicError wrapping ErrNotConnected", err)
	}
	if topicErr.Op != OpSubscribe || topicErr.FanID != "bedroom" {
		t.Errorf("TopicError = %+v", topicErr)
	}

	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, failed subscribe was tracked", c.SubscriptionCount())
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty) error = %v", err)
	}
}

func TestUnsubscribe_ForgetsTopicWhileDisconnected(t *testing.T) {
	c := newClient(testConfig())
	topic := Topics{}.AllFanCommands()
	c.subs.set(topic, subscription{qos: 1, handler: func(string, []byte) error { return nil }})

	if err := c.Unsubscribe(topic); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Error("topic still tracked; it would be restored on reconnect")
	}
}

func TestSubscriptions_Snapshot(t *testing.T) {
	s := newSubscriptions()
	s.set("a", subscription{qos: 0})
	s.set("b", subscription{qos: 1})
	s.set("a", subscription{qos: 2})

	snap := s.snapshot()
	if len(snap) != 2 || snap["a"].qos != 2 {
		t.Errorf("snapshot = %+v, want replaced entry for a", snap)
	}

	s.remove("b")
	if s.len() != 1 {
		t.Errorf("len() = %d, want 1", s.len())
	}
	if len(snap) != 2 {
		t.Error("snapshot shares storage with the live set")
	}
}

func TestClient_ZeroValue(t *testing.T) {
	c := &Client{}
	if c.IsConnected() {
		t.Error("IsConnected() = true for uninitialised client")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on uninitialised client error = %v", err)
	}
	if c.QoS() != 0 {
		t.Errorf("QoS() = %d, want 0", c.QoS())
	}
	if !errors.Is(c.HealthCheck(context.Background()), ErrNotConnected) {
		t.Error("HealthCheck() on uninitialised client did not report ErrNotConnected")
	}
}

func TestHealthCheck_CancelledContext(t *testing.T) {
	c := newClient(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Dispatch Tests
// =============================================================================

func TestDispatch_RecoversPanic(t *testing.T) {
	c := newClient(testConfig())
	logger := &mockLogger{}
	c.SetLogger(logger)

	wrapped := c.dispatch(func(string, []byte) error {
		panic("boom")
	})
	wrapped(nil, fakeMessage{topic: "graylogic/fan/x/command"})

	if len(logger.errors) != 1 {
		t.Errorf("logged errors = %v, want one panic entry", logger.errors)
	}
}

func TestDispatch_LogsHandlerErrorWithFan(t *testing.T) {
	c := newClient(testConfig())
	logger := &mockLogger{}
	c.SetLogger(logger)

	var gotTopic, gotPayload string
	wrapped := c.dispatch(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return errors.New("bad command")
	})
	wrapped(nil, fakeMessage{topic: "graylogic/fan/x/command", payload: []byte("ON")})

	if gotTopic != "graylogic/fan/x/command" || gotPayload != "ON" {
		t.Errorf("handler received (%q, %q)", gotTopic, gotPayload)
	}
	if len(logger.warns) != 1 {
		t.Fatalf("logged warnings = %v, want one", logger.warns)
	}
	if logger.lastArgs["fan"] != "x" {
		t.Errorf("fan attribute = %v, want x", logger.lastArgs["fan"])
	}
}

func TestDispatch_NilLogger(t *testing.T) {
	c := newClient(testConfig())
	c.SetLogger(nil)
	wrapped := c.dispatch(func(string, []byte) error {
		panic("boom")
	})
	// Must not panic with logging discarded.
	wrapped(nil, fakeMessage{topic: "t"})
}
