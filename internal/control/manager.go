package control

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
)

// Logger defines the logging interface used by the control package.
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

// Listener is told about every fan whose state was set during a job.
type Listener interface {
	FanStateChanged(fanID string, snap fan.Snapshot)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(fanID string, snap fan.Snapshot)

// FanStateChanged calls f.
func (f ListenerFunc) FanStateChanged(fanID string, snap fan.Snapshot) {
	f(fanID, snap)
}

// managedFan is a fan state plus its bookkeeping. dirty is only touched on
// the loop goroutine.
type managedFan struct {
	cfg   config.FanConfig
	state *fan.State
	dirty bool
}

// ManagerConfig holds the dependencies of a Manager.
type ManagerConfig struct {
	Fans []config.FanConfig

	// Preferences persists fans with RestoreState enabled. Nil disables
	// persistence for every fan.
	Preferences fan.Preferences

	Logger Logger
}

// Manager owns one fan.State per configured fan.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use. Fan state is only
//     touched on the Loop goroutine.
type Manager struct {
	loop   *Loop
	fans   map[string]*managedFan
	ids    []string
	prefs  fan.Preferences
	logger Logger

	listeners []Listener
	lmu       sync.RWMutex
}

// NewManager creates the fan states and restores persisted state for fans
// with RestoreState enabled.
//
// It must be called before loop.Run starts. Restore failures are logged and
// the affected fan keeps its defaults.
func NewManager(ctx context.Context, loop *Loop, cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	m := &Manager{
		loop:   loop,
		fans:   make(map[string]*managedFan, len(cfg.Fans)),
		prefs:  cfg.Preferences,
		logger: logger,
	}

	for _, fc := range cfg.Fans {
		state := fan.NewState(fc.ID)
		state.SetTraits(fan.NewTraits(fc.Oscillation, fc.SpeedControl))
		state.SetLogger(logger)

		mf := &managedFan{cfg: fc, state: state}
		state.AddOnStateChangeCallback(func() { mf.dirty = true })

		if m.persists(fc) {
			state.SetPreferences(m.prefs)
			if err := state.LoadFromPreferences(ctx); err != nil {
				logger.Warn("restoring fan state failed, using defaults",
					"fan", fc.ID,
					"error", err,
				)
			}
		}

		m.fans[fc.ID] = mf
		m.ids = append(m.ids, fc.ID)
	}

	logger.Info("fan manager ready", "fans", len(m.ids))
	return m
}

func (m *Manager) persists(fc config.FanConfig) bool {
	return m.prefs != nil && fc.ShouldRestore()
}

// AddListener registers l. Listeners are called in registration order.
func (m *Manager) AddListener(l Listener) {
	m.lmu.Lock()
	m.listeners = append(m.listeners, l)
	m.lmu.Unlock()
}

// IDs returns the configured fan IDs in configuration order.
func (m *Manager) IDs() []string {
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}

// Config returns the configuration of a fan.
func (m *Manager) Config(id string) (config.FanConfig, bool) {
	mf, ok := m.fans[id]
	if !ok {
		return config.FanConfig{}, false
	}
	return mf.cfg, true
}

// Fan returns the state of a fan for building action chains.
//
// The returned State may only be read or mutated inside Do.
func (m *Manager) Fan(id string) (*fan.State, bool) {
	mf, ok := m.fans[id]
	if !ok {
		return nil, false
	}
	return mf.state, true
}

// Snapshot returns the current state of a fan.
func (m *Manager) Snapshot(ctx context.Context, id string) (fan.Snapshot, error) {
	mf, ok := m.fans[id]
	if !ok {
		return fan.Snapshot{}, fmt.Errorf("%w: %s", ErrFanNotFound, id)
	}

	var snap fan.Snapshot
	err := m.loop.Do(ctx, func() error {
		snap = mf.state.Snapshot()
		return nil
	})
	return snap, err
}

// Snapshots returns the current state of every fan, keyed by ID.
func (m *Manager) Snapshots(ctx context.Context) (map[string]fan.Snapshot, error) {
	out := make(map[string]fan.Snapshot, len(m.fans))
	err := m.loop.Do(ctx, func() error {
		for id, mf := range m.fans {
			out[id] = mf.state.Snapshot()
		}
		return nil
	})
	return out, err
}

// Apply validates cmd, then plays it against the fan and returns the
// resulting state. An invalid command changes nothing.
func (m *Manager) Apply(ctx context.Context, id string, cmd Command) (fan.Snapshot, error) {
	c, err := cmd.compile()
	if err != nil {
		return fan.Snapshot{}, err
	}

	var snap fan.Snapshot
	err = m.Do(ctx, id, func(s *fan.State) error {
		if err := c.chain(s).Play(cmd); err != nil {
			return err
		}
		snap = s.Snapshot()
		return nil
	})
	return snap, err
}

// Do runs fn with exclusive access to the fan's state.
//
// Changes made by fn are persisted and reported to listeners after fn
// returns, whether or not it failed; partial changes are not rolled back.
func (m *Manager) Do(ctx context.Context, id string, fn func(s *fan.State) error) error {
	mf, ok := m.fans[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFanNotFound, id)
	}

	// Persistence must not be cut short by a caller that gives up waiting.
	flushCtx := context.WithoutCancel(ctx)

	return m.loop.Do(ctx, func() error {
		defer func() {
			r := recover()
			m.flush(flushCtx)
			if r != nil {
				panic(r)
			}
		}()
		return fn(mf.state)
	})
}

// flush persists and reports every dirty fan. Runs on the loop goroutine.
func (m *Manager) flush(ctx context.Context) {
	m.lmu.RLock()
	listeners := m.listeners
	m.lmu.RUnlock()

	for _, id := range m.ids {
		mf := m.fans[id]
		if !mf.dirty {
			continue
		}
		mf.dirty = false
		snap := mf.state.Snapshot()

		if m.persists(mf.cfg) {
			if err := mf.state.SaveToPreferences(ctx); err != nil && !errors.Is(err, fan.ErrNoPreferences) {
				m.logger.Error("persisting fan state failed", "fan", id, "error", err)
			}
		}

		m.logger.Debug("fan state changed",
			"fan", id,
			"on", snap.On,
			"oscillating", snap.Oscillating,
			"speed", snap.Speed.String(),
		)
		for _, l := range listeners {
			l.FanStateChanged(id, snap)
		}
	}
}
