package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/audit"
	"github.com/nerrad567/gray-logic-fan/internal/control"
	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/mqtt"
)

// defaultCommandTimeout bounds how long a command waits for the control loop.
const defaultCommandTimeout = 5 * time.Second

// Logger defines the logging interface used by the frontend.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Broker is the subset of the MQTT client used by the binding.
// Satisfied by *mqtt.Client.
type Broker interface {
	// PublishRetained publishes a retained message at the default QoS.
	PublishRetained(topic string, payload []byte) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// Unsubscribe removes a subscription.
	Unsubscribe(topic string) error

	// QoS returns the configured default QoS.
	QoS() byte
}

// Fans is the subset of the fan manager used by the binding.
// Satisfied by *control.Manager.
type Fans interface {
	IDs() []string
	Config(id string) (config.FanConfig, bool)
	Snapshots(ctx context.Context) (map[string]fan.Snapshot, error)
	Apply(ctx context.Context, id string, cmd control.Command) (fan.Snapshot, error)
	AddListener(l control.Listener)
}

// Options configures an MQTT binding.
type Options struct {
	Fans   Fans
	Broker Broker

	// DiscoveryPrefix is the Home Assistant discovery prefix. Empty disables
	// discovery.
	DiscoveryPrefix string

	// CommandTimeout bounds a single command. Default: 5s
	CommandTimeout time.Duration

	// Audit records every parsed command. Optional.
	Audit audit.Repository

	Logger Logger
}

// MQTT publishes fan state and applies fan commands over MQTT.
//
// Thread Safety: All methods are safe for concurrent use.
type MQTT struct {
	fans            Fans
	broker          Broker
	discoveryPrefix string
	commandTimeout  time.Duration
	audit           audit.Repository
	logger          Logger

	// Publish queue: latest snapshot per fan, plus a full refresh flag.
	pending map[string]fan.Snapshot
	refresh bool
	queueMu sync.Mutex
	wake    chan struct{}

	ctx       context.Context
	ctxCancel context.CancelFunc
	started   bool
	startMu   sync.Mutex
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// New creates an MQTT binding. Nothing is published until Start.
func New(opts Options) (*MQTT, error) {
	if opts.Fans == nil {
		return nil, fmt.Errorf("%w: fans are required", ErrInvalidOptions)
	}
	if opts.Broker == nil {
		return nil, fmt.Errorf("%w: broker is required", ErrInvalidOptions)
	}

	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &MQTT{
		fans:            opts.Fans,
		broker:          opts.Broker,
		discoveryPrefix: opts.DiscoveryPrefix,
		commandTimeout:  timeout,
		audit:           opts.Audit,
		logger:          logger,
		pending:         make(map[string]fan.Snapshot),
		wake:            make(chan struct{}, 1),
	}, nil
}

// Start registers the binding as a fan listener, publishes discovery,
// subscribes to fan commands and publishes the current state of every fan.
//
// The binding runs until ctx is cancelled or Stop is called.
func (m *MQTT) Start(ctx context.Context) error {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true
	m.ctx, m.ctxCancel = context.WithCancel(ctx)

	// Registered before the first refresh so no change falls in between.
	m.fans.AddListener(m)

	if m.discoveryPrefix != "" {
		if err := m.PublishDiscovery(); err != nil {
			m.logger.Warn("publishing discovery failed", "error", err)
		}
	}

	topic := mqtt.Topics{}.AllFanCommands()
	if err := m.broker.Subscribe(topic, m.broker.QoS(), m.handleCommand); err != nil {
		m.ctxCancel()
		return fmt.Errorf("subscribe to commands: %w", err)
	}

	m.Republish()

	m.wg.Add(1)
	go m.publishLoop()

	m.logger.Info("mqtt frontend started",
		"fans", len(m.fans.IDs()),
		"commands", topic,
		"discovery", m.discoveryPrefix != "",
	)
	return nil
}

// Stop unsubscribes from commands and waits for the publisher to exit.
// Queued state that has not been published yet is dropped.
func (m *MQTT) Stop() {
	m.stopOnce.Do(func() {
		m.startMu.Lock()
		started := m.started
		m.startMu.Unlock()
		if !started {
			return
		}

		m.ctxCancel()
		m.wg.Wait()

		if err := m.broker.Unsubscribe(mqtt.Topics{}.AllFanCommands()); err != nil {
			m.logger.Warn("unsubscribing from commands failed", "error", err)
		}
		m.logger.Info("mqtt frontend stopped")
	})
}

// FanStateChanged queues the new state for publishing. It never blocks.
func (m *MQTT) FanStateChanged(fanID string, snap fan.Snapshot) {
	m.queueMu.Lock()
	m.pending[fanID] = snap
	m.queueMu.Unlock()
	m.signal()
}

// Republish queues the state of every fan, read fresh from the manager.
// Call it after a broker reconnect.
func (m *MQTT) Republish() {
	m.queueMu.Lock()
	m.refresh = true
	m.queueMu.Unlock()
	m.signal()
}

// PublishDiscovery publishes the Home Assistant config of every fan.
func (m *MQTT) PublishDiscovery() error {
	var errs []error
	for _, id := range m.fans.IDs() {
		cfg, _ := m.fans.Config(id)
		payload, err := buildDiscoveryPayload(id, cfg.Name, fan.NewTraits(cfg.Oscillation, cfg.SpeedControl))
		if err != nil {
			errs = append(errs, fmt.Errorf("fan %s: %w", id, err))
			continue
		}
		if err := m.broker.PublishRetained(mqtt.Topics{}.FanDiscovery(m.discoveryPrefix, id), payload); err != nil {
			errs = append(errs, fmt.Errorf("fan %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (m *MQTT) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// publishLoop publishes queued state until the binding stops.
func (m *MQTT) publishLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.wake:
			m.publishQueued()
		}
	}
}

// publishQueued drains the queue. A successful refresh supersedes every
// snapshot taken from the queue with it.
func (m *MQTT) publishQueued() {
	m.queueMu.Lock()
	refresh := m.refresh
	pending := m.pending
	m.refresh = false
	m.pending = make(map[string]fan.Snapshot)
	m.queueMu.Unlock()

	if refresh {
		snaps, err := m.fans.Snapshots(m.ctx)
		if err == nil {
			pending = snaps
		} else {
			m.logger.Warn("reading fan state for republish failed", "error", err)
		}
	}

	for _, id := range m.fans.IDs() {
		if snap, ok := pending[id]; ok {
			m.publishState(id, snap)
		}
	}
}

func (m *MQTT) publishState(id string, snap fan.Snapshot) {
	payload, err := json.Marshal(NewStatePayload(snap))
	if err != nil {
		m.logger.Error("encoding fan state failed", "fan", id, "error", err)
		return
	}
	if err := m.broker.PublishRetained(mqtt.Topics{}.FanState(id), payload); err != nil {
		m.logger.Warn("publishing fan state failed", "fan", id, "error", err)
		return
	}
	m.logger.Debug("fan state published", "fan", id, "payload", string(payload))
}

// handleCommand applies a command received on graylogic/fan/{id}/command.
// Returned errors are logged by the MQTT client.
func (m *MQTT) handleCommand(topic string, payload []byte) error {
	fanID, kind, ok := mqtt.ParseFanTopic(topic)
	if !ok || kind != mqtt.KindCommand {
		return fmt.Errorf("unexpected command topic %q", topic)
	}

	cmd, err := control.ParseCommand(payload)
	if err != nil {
		return fmt.Errorf("fan %s: %w", fanID, err)
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.commandTimeout)
	defer cancel()

	snap, err := m.fans.Apply(ctx, fanID, cmd)
	m.record(fanID, cmd, snap, err)
	if err != nil {
		return fmt.Errorf("fan %s: %w", fanID, err)
	}

	m.logger.Info("fan command applied",
		"fan", fanID,
		"on", snap.On,
		"oscillating", snap.Oscillating,
		"speed", snap.Speed.String(),
	)
	return nil
}

// record writes the command to the audit log, if one is configured.
func (m *MQTT) record(fanID string, cmd control.Command, snap fan.Snapshot, applyErr error) {
	if m.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), m.commandTimeout)
	defer cancel()

	entry := audit.NewEntry(fanID, audit.SourceMQTT, cmd, snap, applyErr)
	if err := m.audit.Create(ctx, entry); err != nil {
		m.logger.Warn("recording fan command failed", "fan", fanID, "error", err)
	}
}
