package automation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
)

// Logger defines the logging interface used by the Registry and Engine.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// FanLookup resolves fan IDs to their state. Satisfied by *control.Manager.
type FanLookup interface {
	Fan(id string) (*fan.State, bool)
}

// entry is a registered automation and its compiled chain.
type entry struct {
	automation *Automation
	chain      fan.Chain[Event]
}

// Registry holds the validated, compiled automations.
//
// Chains are compiled once at registration against the target fan's state
// and reused for every firing.
//
// All public methods are thread-safe.
type Registry struct {
	fans    FanLookup
	entries map[string]*entry
	order   []string
	mu      sync.RWMutex
	logger  Logger
}

// NewRegistry creates an empty registry resolving fans through fans.
func NewRegistry(fans FanLookup) *Registry {
	return &Registry{
		fans:    fans,
		entries: make(map[string]*entry),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Add validates and compiles a, then registers it.
func (r *Registry) Add(a *Automation) error {
	if err := Validate(a); err != nil {
		return err
	}

	state, ok := r.fans.Fan(a.FanID)
	if !ok {
		return fmt.Errorf("%w: unknown fan %q", ErrInvalidAutomation, a.FanID)
	}

	chain, err := Compile(a, state)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[a.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAutomationExists, a.ID)
	}
	r.entries[a.ID] = &entry{automation: a.DeepCopy(), chain: chain}
	r.order = append(r.order, a.ID)

	r.logger.Debug("automation registered",
		"id", a.ID,
		"fan", a.FanID,
		"trigger", string(a.Trigger.Type),
		"actions", chain.Len(),
	)
	return nil
}

// LoadConfig registers every configured automation. All failures are
// reported together; valid automations are registered regardless.
func (r *Registry) LoadConfig(cfgs []config.AutomationConfig) error {
	var errs []error
	for i, c := range cfgs {
		if err := r.Add(FromConfig(c)); err != nil {
			errs = append(errs, fmt.Errorf("automations[%d] %q: %w", i, c.ID, err))
		}
	}

	r.logger.Info("automations loaded", "count", r.Count(), "failed", len(errs))
	return errors.Join(errs...)
}

// Get retrieves an automation by ID. The returned value is a deep copy.
func (r *Registry) Get(id string) (*Automation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAutomationNotFound, id)
	}
	return e.automation.DeepCopy(), nil
}

// List returns deep copies of every automation in registration order.
func (r *Registry) List() []Automation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Automation, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.entries[id].automation.DeepCopy())
	}
	return out
}

// Count returns the number of registered automations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// compiled returns the automation and its chain for firing.
func (r *Registry) compiled(id string) (*Automation, fan.Chain[Event], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrAutomationNotFound, id)
	}
	return e.automation, e.chain, nil
}
