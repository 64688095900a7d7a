package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/mqtt"
)

// Fans runs a function with exclusive access to a fan's state.
// Satisfied by *control.Manager.
type Fans interface {
	Do(ctx context.Context, id string, fn func(s *fan.State) error) error
}

// Broker is the MQTT surface the engine needs: publishing fired events
// and subscribing to trigger topics. Satisfied by *mqtt.Client.
type Broker interface {
	PublishEvent(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	QoS() byte
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// Recorder receives execution telemetry. Satisfied by *influxdb.Client.
type Recorder interface {
	WriteAutomationExecution(automationID, fanID, status string, duration time.Duration, at time.Time)
}

// EventAutomationFired is the WebSocket channel for executions.
const EventAutomationFired = "automation.fired"

const (
	// maxExecutionTime bounds a single firing, including the wait for the
	// control loop.
	maxExecutionTime = 30 * time.Second

	// fireQueueSize bounds trigger firings waiting for the worker.
	fireQueueSize = 64

	// DefaultRetention is how long executions are kept.
	DefaultRetention = 30 * 24 * time.Hour

	pruneInterval = 6 * time.Hour
)

// EngineOptions configures an Engine. Registry and Fans are required; the
// rest are optional.
type EngineOptions struct {
	Registry   *Registry
	Fans       Fans
	Repository Repository
	Broker     Broker
	Hub        WSHub
	Recorder   Recorder
	Logger     Logger

	// Retention is how long executions are kept. Zero selects
	// DefaultRetention; negative disables pruning.
	Retention time.Duration
}

// fireRequest is a trigger firing queued for the worker.
type fireRequest struct {
	id    string
	event Event
}

// Engine fires automations: it plays their chains inside the control loop,
// records executions and runs the MQTT and interval triggers.
//
// Thread Safety: Fire is safe for concurrent use.
type Engine struct {
	registry  *Registry
	fans      Fans
	repo      Repository
	broker    Broker
	hub       WSHub
	recorder  Recorder
	logger    Logger
	retention time.Duration

	fires chan fireRequest

	ctx       context.Context
	ctxCancel context.CancelFunc
	started   bool
	startMu   sync.Mutex
	topics    []string
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// NewEngine creates an automation engine.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Registry == nil || opts.Fans == nil {
		return nil, fmt.Errorf("%w: registry and fans are required", ErrInvalidAutomation)
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	retention := opts.Retention
	if retention == 0 {
		retention = DefaultRetention
	}

	return &Engine{
		registry:  opts.Registry,
		fans:      opts.Fans,
		repo:      opts.Repository,
		broker:    opts.Broker,
		hub:       opts.Hub,
		recorder:  opts.Recorder,
		logger:    logger,
		retention: retention,
		fires:     make(chan fireRequest, fireQueueSize),
	}, nil
}

// Fire runs automation id with ev as the chain's context value.
//
// The returned Execution is non-nil whenever the chain was attempted, even
// when it failed part way; mutations made before the failure stay applied.
//
// Returns:
//   - *Execution: the recorded execution
//   - error: ErrAutomationNotFound, ErrAutomationDisabled, or the chain's
//     error wrapped with the automation ID
func (e *Engine) Fire(ctx context.Context, id string, ev Event) (*Execution, error) {
	ctx, cancel := context.WithTimeout(ctx, maxExecutionTime)
	defer cancel()

	a, chain, err := e.registry.compiled(id)
	if err != nil {
		return nil, err
	}
	if !a.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrAutomationDisabled, id)
	}

	ev.AutomationID = id
	if ev.Source == "" {
		ev.Source = SourceManual
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	exec := &Execution{
		ID:           GenerateID(),
		AutomationID: id,
		FanID:        a.FanID,
		Source:       ev.Source,
		Status:       StatusCompleted,
		ActionsTotal: chain.Len(),
		FiredAt:      ev.Time,
	}

	started := time.Now()
	runErr := e.fans.Do(ctx, a.FanID, func(s *fan.State) error {
		defer func() {
			snap := s.Snapshot()
			exec.FanState = &snap
		}()
		return chain.Play(ev)
	})
	duration := time.Since(started)
	exec.DurationMS = int(duration.Milliseconds())

	if runErr != nil {
		exec.Status = StatusFailed
		exec.Error = runErr.Error()
	}

	e.record(context.WithoutCancel(ctx), exec, duration)

	if runErr != nil {
		e.logger.Warn("automation failed",
			"automation_id", id,
			"execution_id", exec.ID,
			"source", exec.Source,
			"error", runErr,
		)
		return exec, fmt.Errorf("automation %s: %w", id, runErr)
	}

	e.logger.Info("automation fired",
		"automation_id", id,
		"execution_id", exec.ID,
		"fan", a.FanID,
		"source", exec.Source,
		"actions", exec.ActionsTotal,
		"duration_ms", exec.DurationMS,
	)
	return exec, nil
}

// record persists and announces an execution. Failures are logged; the
// firing itself already happened.
func (e *Engine) record(ctx context.Context, exec *Execution, duration time.Duration) {
	if e.repo != nil {
		if err := e.repo.CreateExecution(ctx, exec); err != nil {
			e.logger.Error("failed to record execution", "execution_id", exec.ID, "error", err)
		}
	}

	if e.broker != nil {
		payload, err := json.Marshal(exec)
		if err == nil {
			err = e.broker.PublishEvent(mqtt.Topics{}.CoreAutomationFired(exec.AutomationID), payload)
		}
		if err != nil {
			e.logger.Warn("failed to publish automation event", "execution_id", exec.ID, "error", err)
		}
	}

	if e.hub != nil {
		e.hub.Broadcast(EventAutomationFired, *exec)
	}

	if e.recorder != nil {
		e.recorder.WriteAutomationExecution(exec.AutomationID, exec.FanID, string(exec.Status), duration, exec.FiredAt)
	}
}

// Start subscribes the MQTT triggers, starts the interval triggers and the
// execution pruner. Automations disabled at start are never triggered.
//
// Firings from triggers are queued to a single worker, so trigger handlers
// never block on the control loop or the broker.
func (e *Engine) Start(ctx context.Context) error {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true
	e.ctx, e.ctxCancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go e.worker()

	byTopic := make(map[string][]string)
	var topics []string
	intervals := 0

	for _, a := range e.registry.List() {
		if !a.Enabled {
			continue
		}
		switch a.Trigger.Type {
		case TriggerMQTT:
			if _, seen := byTopic[a.Trigger.Topic]; !seen {
				topics = append(topics, a.Trigger.Topic)
			}
			byTopic[a.Trigger.Topic] = append(byTopic[a.Trigger.Topic], a.ID)
		case TriggerInterval:
			intervals++
			e.wg.Add(1)
			go e.runInterval(a.ID, a.Trigger.Interval)
		}
	}

	if len(topics) > 0 && e.broker == nil {
		e.logger.Warn("mqtt triggers configured without a broker, skipping", "topics", len(topics))
		topics = nil
	}
	for _, topic := range topics {
		if err := e.broker.Subscribe(topic, e.broker.QoS(), e.mqttHandler(byTopic[topic])); err != nil {
			e.shutdown()
			return fmt.Errorf("subscribe to trigger %s: %w", topic, err)
		}
		e.topics = append(e.topics, topic)
	}

	if e.repo != nil && e.retention > 0 {
		e.wg.Add(1)
		go e.runPruner()
	}

	e.logger.Info("automation engine started",
		"automations", e.registry.Count(),
		"mqtt_topics", len(e.topics),
		"intervals", intervals,
	)
	return nil
}

// Stop stops all triggers and waits for queued firings to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.startMu.Lock()
		defer e.startMu.Unlock()
		if !e.started {
			return
		}
		e.shutdown()
		e.logger.Info("automation engine stopped")
	})
}

// shutdown cancels the engine, waits for its goroutines and drops the
// trigger subscriptions. Called with startMu held.
func (e *Engine) shutdown() {
	e.ctxCancel()
	e.wg.Wait()

	for _, topic := range e.topics {
		if err := e.broker.Unsubscribe(topic); err != nil {
			e.logger.Warn("failed to unsubscribe trigger", "topic", topic, "error", err)
		}
	}
	e.topics = nil
}

// enqueue hands a firing to the worker without blocking.
func (e *Engine) enqueue(req fireRequest) error {
	select {
	case e.fires <- req:
		return nil
	default:
		return fmt.Errorf("fire queue full, dropping %s", req.id)
	}
}

// worker fires queued automations one at a time until the engine stops.
func (e *Engine) worker() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case req := <-e.fires:
			_, err := e.Fire(e.ctx, req.id, req.event)
			if errors.Is(err, ErrAutomationNotFound) || errors.Is(err, ErrAutomationDisabled) {
				e.logger.Warn("triggered automation not fired", "automation_id", req.id, "error", err)
			}
		}
	}
}

// mqttHandler fires ids, in order, for every message on a trigger topic.
// A JSON object payload is exposed as Event.Payload; the raw text is
// always kept in Event.Raw.
func (e *Engine) mqttHandler(ids []string) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		ev := Event{
			Source: SourceMQTT,
			Topic:  topic,
			Raw:    string(payload),
			Time:   time.Now().UTC(),
		}
		var obj map[string]any
		if err := json.Unmarshal(payload, &obj); err == nil {
			ev.Payload = obj
		}

		var errs []error
		for _, id := range ids {
			if err := e.enqueue(fireRequest{id: id, event: ev}); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// runInterval fires id every interval until the engine stops.
func (e *Engine) runInterval(id string, interval time.Duration) {
	defer e.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case t := <-ticker.C:
			ev := Event{Source: SourceInterval, Time: t.UTC()}
			if err := e.enqueue(fireRequest{id: id, event: ev}); err != nil {
				e.logger.Warn("interval trigger dropped", "automation_id", id, "error", err)
			}
		}
	}
}

// runPruner deletes expired executions at start and every pruneInterval.
func (e *Engine) runPruner() {
	defer e.wg.Done()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		n, err := e.repo.PruneExecutions(e.ctx, time.Now().Add(-e.retention))
		switch {
		case err != nil && e.ctx.Err() == nil:
			e.logger.Warn("failed to prune executions", "error", err)
		case n > 0:
			e.logger.Debug("pruned executions", "count", n)
		}

		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ListExecutions returns recent executions of an automation, newest first.
func (e *Engine) ListExecutions(ctx context.Context, id string, limit int) ([]Execution, error) {
	if _, err := e.registry.Get(id); err != nil {
		return nil, err
	}
	if e.repo == nil {
		return []Execution{}, nil
	}
	return e.repo.ListExecutions(ctx, id, limit)
}
