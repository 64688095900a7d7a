// Gray Logic Fan - fan control service
//
// This is the main entry point for the Gray Logic Fan service. It owns the
// state of every configured fan and exposes it through:
//   - MQTT state and command topics, with Home Assistant discovery
//   - A REST API and WebSocket event stream
//   - Configured automations fired by MQTT messages or intervals
//
// Fan state survives restarts through the SQLite preference store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-fan/migrations"

	"github.com/nerrad567/gray-logic-fan/internal/api"
	"github.com/nerrad567/gray-logic-fan/internal/audit"
	"github.com/nerrad567/gray-logic-fan/internal/automation"
	"github.com/nerrad567/gray-logic-fan/internal/control"
	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/frontend"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-fan/internal/preferences"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// healthCheckTimeout bounds the post-startup health check.
const healthCheckTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // sequential startup wiring
	log := logging.Default()
	log.Info("starting Gray Logic Fan",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "fans", len(cfg.Fans))

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Fan command audit log, pruned in the background.
	auditRepo := audit.NewSQLiteRepository(db.DB)
	pruneCtx, stopPrune := context.WithCancel(ctx)
	pruneDone := make(chan struct{})
	go func() {
		defer close(pruneDone)
		audit.RunPruner(pruneCtx, auditRepo, audit.PrunerOptions{Logger: log.Component("audit")})
	}()
	defer func() {
		stopPrune()
		<-pruneDone
	}()

	// Control loop. It outlives the signal context so that frontends can
	// drain through it during shutdown; it is stopped last.
	loop := control.NewLoop()
	manager := control.NewManager(ctx, loop, control.ManagerConfig{
		Fans:        cfg.Fans,
		Preferences: preferences.NewSQLiteStore(db.DB),
		Logger:      log.Component("control"),
	})

	loopCtx, stopLoop := context.WithCancel(context.WithoutCancel(ctx))
	go loop.Run(loopCtx)
	defer func() {
		stopLoop()
		<-loop.Stopped()
		log.Info("control loop stopped")
	}()

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	var recorder automation.Recorder
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		manager.AddListener(fanTelemetry(influxClient))
		recorder = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub, shared by the API server and the automation engine.
	var hub *api.Hub
	var engineHub automation.WSHub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log.Component("websocket"))
		go hub.Run(ctx)
		engineHub = hub
	}

	// MQTT (optional)
	var mqttClient *mqtt.Client
	var engineBroker automation.Broker
	var brokerStatus api.BrokerStatus
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		engineBroker = mqttClient
		brokerStatus = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		binding, bindErr := frontend.New(frontend.Options{
			Fans:            manager,
			Broker:          mqttClient,
			DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
			Audit:           auditRepo,
			Logger:          log.Component("frontend"),
		})
		if bindErr != nil {
			return fmt.Errorf("creating MQTT frontend: %w", bindErr)
		}
		if startErr := binding.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT frontend: %w", startErr)
		}
		defer binding.Stop()

		// Retained state and discovery may be lost with a broker restart.
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected, republishing fan state")
			if discErr := binding.PublishDiscovery(); discErr != nil {
				log.Warn("republishing discovery failed", "error", discErr)
			}
			binding.Republish()
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Automations
	registry := automation.NewRegistry(manager)
	registry.SetLogger(log.Component("automation"))
	if loadErr := registry.LoadConfig(cfg.Automations); loadErr != nil {
		return fmt.Errorf("loading automations: %w", loadErr)
	}

	engine, err := automation.NewEngine(automation.EngineOptions{
		Registry:   registry,
		Fans:       manager,
		Repository: automation.NewSQLiteRepository(db.DB),
		Broker:     engineBroker,
		Hub:        engineHub,
		Recorder:   recorder,
		Logger:     log.Component("automation"),
	})
	if err != nil {
		return fmt.Errorf("creating automation engine: %w", err)
	}
	if startErr := engine.Start(ctx); startErr != nil {
		return fmt.Errorf("starting automation engine: %w", startErr)
	}
	defer engine.Stop()

	// API server (optional)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Logger:      log.Component("api"),
			Fans:        manager,
			Automations: registry,
			Engine:      engine,
			Audit:       auditRepo,
			DB:          db,
			MQTT:        brokerStatus,
			ExternalHub: hub,
			Version:     version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	hcCtx, hcCancel := context.WithTimeout(ctx, healthCheckTimeout)
	if hcErr := healthCheck(hcCtx, db, mqttClient, influxClient); hcErr != nil {
		log.Warn("health check failed after startup", "error", hcErr)
	}
	hcCancel()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// GRAYLOGIC_CONFIG overrides the default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// fanTelemetry returns a listener recording every fan change in InfluxDB.
func fanTelemetry(client *influxdb.Client) control.Listener {
	return control.ListenerFunc(func(fanID string, snap fan.Snapshot) {
		client.WriteFanState(influxdb.FanStatePoint{
			FanID:       fanID,
			On:          snap.On,
			Oscillating: snap.Oscillating,
			Speed:       snap.Speed.String(),
			SpeedLevel:  int(snap.Speed),
			Time:        time.Now(),
		})
	})
}

// healthCheck verifies all infrastructure connections are healthy.
// MQTT and InfluxDB are skipped when disabled (nil).
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
