// Package automation runs configured fan automations.
//
// An automation pairs a trigger with an ordered list of fan actions. At
// load time each automation is validated and compiled into a
// fan.Chain[Event] bound to its fan's state; firing plays that chain with
// the triggering Event as the context value.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                   Engine (engine.go)                      │
//	│  Triggers: mqtt topic · interval ticker · manual (API)    │
//	│        │                                                  │
//	│        ▼  fire queue → single worker                      │
//	│  ┌──────────────┐    ┌──────────────────────────────┐    │
//	│  │   Registry   │───▶│ control.Manager.Do(fan, play)│    │
//	│  │(registry.go) │    └──────────────────────────────┘    │
//	│  └──────────────┘                 │                       │
//	│                                   ▼                       │
//	│  Execution: Repository · MQTT event · WebSocket · InfluxDB │
//	└──────────────────────────────────────────────────────────┘
//
// # Action values
//
// turn_on actions may set oscillating and speed. Each is either a literal
// ("true", "medium") parsed once at load, or a text/template rendered
// against the Event on every firing:
//
//	actions:
//	  - type: turn_on
//	    speed: "{{ .Payload.speed }}"
//	    oscillating: "{{ if gt .Payload.temperature 26.0 }}true{{ else }}false{{ end }}"
//
// A template that fails to render or renders an unparsable value stops the
// chain. Actions already played stay applied; the execution is recorded as
// failed.
//
// # Thread Safety
//
// Registry and Engine are safe for concurrent use. Chains only ever play
// inside control.Manager.Do, on the control loop goroutine.
//
// # Usage
//
//	registry := automation.NewRegistry(manager)
//	if err := registry.LoadConfig(cfg.Automations); err != nil {
//	    return err
//	}
//
//	engine, err := automation.NewEngine(automation.EngineOptions{
//	    Registry:   registry,
//	    Fans:       manager,
//	    Repository: automation.NewSQLiteRepository(db.DB),
//	    Broker:     mqttClient,
//	})
//	exec, err := engine.Fire(ctx, "night_mode", automation.Event{Source: automation.SourceAPI})
package automation
