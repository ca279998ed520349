package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Bosun Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site              SiteConfig      `yaml:"site"`
	Database          DatabaseConfig  `yaml:"database"`
	MQTT              MQTTConfig      `yaml:"mqtt"`
	API               APIConfig       `yaml:"api"`
	WebSocket         WebSocketConfig `yaml:"websocket"`
	InfluxDB          InfluxDBConfig  `yaml:"influxdb"`
	Redis             RedisConfig     `yaml:"redis"`
	Logging           LoggingConfig   `yaml:"logging"`
	Security          SecurityConfig  `yaml:"security"`
	Ingest            IngestConfig    `yaml:"ingest"`
	Store             StoreConfig     `yaml:"store"`
	RulesFile         string          `yaml:"rules_file"`
	ManufacturersFile string          `yaml:"manufacturers_file"`
	Devices           []DeviceConfig  `yaml:"devices"`
	Environment       map[string]any  `yaml:"environment"`
}

// SiteConfig contains installation-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
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
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
	// SendBuffer is the per-subscriber outbound queue length.
	SendBuffer int `yaml:"send_buffer"`
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

// RedisConfig contains settings for the notification queue.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	// NotificationKey is the list that notify actions are pushed onto.
	NotificationKey string `yaml:"notification_key"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings for the write endpoints.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// IngestConfig controls how advertisements reach the pipeline.
type IngestConfig struct {
	// Topic is the MQTT subscription carrying scanner advertisements.
	Topic string `yaml:"topic"`
	// ActionQueue is the capacity of the rule action queue.
	ActionQueue int `yaml:"action_queue"`
}

// StoreConfig contains device store freshness settings.
type StoreConfig struct {
	// StaleAfter marks a device stale when it has not advertised for this long. 0 disables.
	StaleAfter time.Duration `yaml:"stale_after"`
	// MetricTTL expires individual metrics not refreshed for this long. 0 disables.
	MetricTTL time.Duration `yaml:"metric_ttl"`
	// SweepInterval is how often expiry runs when MetricTTL is set.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DeviceConfig provisions a device before it is first seen.
type DeviceConfig struct {
	Address string         `yaml:"address"`
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`
	Config  map[string]any `yaml:"config"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BOSUN_SECTION_KEY
// For example: BOSUN_DATABASE_PATH, BOSUN_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

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
			ID:   "vessel-001",
			Name: "Bosun",
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/bosun.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "bosun-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			SendBuffer:     256,
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			NotificationKey: "bosun:notifications",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Ingest: IngestConfig{
			Topic:       "bosun/ble/advertisement/+",
			ActionQueue: 128,
		},
		Store: StoreConfig{
			StaleAfter:    10 * time.Minute,
			SweepInterval: time.Minute,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BOSUN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("BOSUN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BOSUN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BOSUN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("BOSUN_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("BOSUN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("BOSUN_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}

	if v := os.Getenv("BOSUN_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	if v := os.Getenv("BOSUN_RULES_FILE"); v != "" {
		cfg.RulesFile = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.WebSocket.SendBuffer < 1 {
		errs = append(errs, "websocket.send_buffer must be positive")
	}

	if c.Ingest.ActionQueue < 1 {
		errs = append(errs, "ingest.action_queue must be positive")
	}

	if c.Store.StaleAfter < 0 || c.Store.MetricTTL < 0 {
		errs = append(errs, "store durations cannot be negative")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required when redis is enabled")
	}

	// The secret guards device key material, so short secrets are refused.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set BOSUN_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	seen := make(map[string]struct{}, len(c.Devices))
	for i, d := range c.Devices {
		addr := strings.ToUpper(strings.TrimSpace(d.Address))
		if addr == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].address is required", i))
			continue
		}
		if _, dup := seen[addr]; dup {
			errs = append(errs, fmt.Sprintf("devices[%d].address %s is duplicated", i, addr))
		}
		seen[addr] = struct{}{}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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
