package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Fan.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site        SiteConfig         `yaml:"site"`
	Fans        []FanConfig        `yaml:"fans"`
	Automations []AutomationConfig `yaml:"automations"`
	Database    DatabaseConfig     `yaml:"database"`
	MQTT        MQTTConfig         `yaml:"mqtt"`
	API         APIConfig          `yaml:"api"`
	WebSocket   WebSocketConfig    `yaml:"websocket"`
	InfluxDB    InfluxDBConfig     `yaml:"influxdb"`
	Logging     LoggingConfig      `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// FanConfig describes one physical fan.
type FanConfig struct {
	// ID is the stable name of the fan. It keys persisted state and appears
	// in MQTT topics and API paths, so it must never change.
	ID string `yaml:"id"`

	// Name is the human-readable label shown in user interfaces.
	Name string `yaml:"name"`

	// Oscillation advertises oscillation control.
	Oscillation bool `yaml:"oscillation"`

	// SpeedControl advertises discrete speed control.
	SpeedControl bool `yaml:"speed_control"`

	// RestoreState loads the last state on startup and saves every change.
	// Default: true
	RestoreState *bool `yaml:"restore_state"`
}

// ShouldRestore reports whether the fan's state is persisted.
func (f FanConfig) ShouldRestore() bool {
	return f.RestoreState == nil || *f.RestoreState
}

// AutomationConfig defines a trigger and the fan actions it runs.
type AutomationConfig struct {
	ID      string                   `yaml:"id"`
	Name    string                   `yaml:"name"`
	FanID   string                   `yaml:"fan"`
	Enabled *bool                    `yaml:"enabled"`
	Trigger AutomationTriggerConfig  `yaml:"trigger"`
	Actions []AutomationActionConfig `yaml:"actions"`
}

// IsEnabled reports whether the automation is enabled (default true).
func (a AutomationConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// AutomationTriggerConfig describes what fires an automation.
type AutomationTriggerConfig struct {
	// Type is "mqtt", "interval" or "manual".
	Type string `yaml:"type"`

	// Topic is the MQTT topic for mqtt triggers.
	Topic string `yaml:"topic,omitempty"`

	// Interval is the period for interval triggers (e.g. "15m").
	Interval time.Duration `yaml:"interval,omitempty"`
}

// AutomationActionConfig is one step of an automation.
//
// Oscillating and Speed are optional. Each holds either a literal ("true",
// "medium") or a Go template rendered against the triggering event
// ("{{ .Payload.speed }}").
type AutomationActionConfig struct {
	Type        string  `yaml:"type"`
	Oscillating *string `yaml:"oscillating,omitempty"`
	Speed       *string `yaml:"speed,omitempty"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// DiscoveryPrefix is the Home Assistant discovery prefix.
	// Empty disables discovery. Default: "homeassistant"
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// idPattern restricts fan and automation IDs to values safe in MQTT topics
// and URL paths.
var idPattern = regexp.MustCompile(`^[a-z0-9]+(?:[_-][a-z0-9]+)*$`)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a validated Config from raw YAML.
func Parse(data []byte) (*Config, error) {
	cfg := defaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Database: DatabaseConfig{
			Path:        "./data/fancore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-fan",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			DiscoveryPrefix: "homeassistant",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Automation semantics (templates, action types) are validated by the
// automation package when the automations are compiled; this checks only
// structure and references.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Fans
	if len(c.Fans) == 0 {
		errs = append(errs, "at least one fan is required")
	}
	fanIDs := make(map[string]struct{}, len(c.Fans))
	for i, f := range c.Fans {
		if !idPattern.MatchString(f.ID) {
			errs = append(errs, fmt.Sprintf("fans[%d].id %q must be lowercase letters, digits, '_' or '-'", i, f.ID))
			continue
		}
		if _, dup := fanIDs[f.ID]; dup {
			errs = append(errs, fmt.Sprintf("fans[%d].id %q is duplicated", i, f.ID))
		}
		fanIDs[f.ID] = struct{}{}
	}

	// Automations
	autoIDs := make(map[string]struct{}, len(c.Automations))
	for i, a := range c.Automations {
		if !idPattern.MatchString(a.ID) {
			errs = append(errs, fmt.Sprintf("automations[%d].id %q is invalid", i, a.ID))
		}
		if _, dup := autoIDs[a.ID]; dup {
			errs = append(errs, fmt.Sprintf("automations[%d].id %q is duplicated", i, a.ID))
		}
		autoIDs[a.ID] = struct{}{}
		if _, ok := fanIDs[a.FanID]; !ok {
			errs = append(errs, fmt.Sprintf("automations[%d].fan %q is not a configured fan", i, a.FanID))
		}
	}

	// Database
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// FindFan returns the configuration of the fan with the given ID.
func (c *Config) FindFan(id string) (FanConfig, bool) {
	for _, f := range c.Fans {
		if f.ID == id {
			return f, true
		}
	}
	return FanConfig{}, false
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
