package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for meshcore.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Redis     RedisConfig     `yaml:"redis"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// NodeConfig identifies this process within the coordination plane.
// ServerID is the value a device session records as its owning server,
// and the suffix of the accept topic this node's Message Handler subscribes to.
type NodeConfig struct {
	ServerID string `yaml:"server_id"`
}

// RedisConfig contains the coordination store connection settings.
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	DialTimeout  int    `yaml:"dial_timeout"`  // seconds
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
	PoolSize     int    `yaml:"pool_size"`
}

// DispatchConfig contains Message Sender timing settings.
type DispatchConfig struct {
	// MaxAwaitSeconds bounds how long Send waits for a reply before
	// resolving NO_REPLY. Mirrors the original's
	// device.message.await.max-seconds system property (default 30).
	MaxAwaitSeconds int `yaml:"max_await_seconds"`

	// SemaphoreGraceSeconds is added to MaxAwaitSeconds when setting the
	// reply semaphore's own expiry, so the semaphore always outlives the
	// acquire wait it is guarding.
	SemaphoreGraceSeconds int `yaml:"semaphore_grace_seconds"`

	// AliveCheckTimeoutSeconds bounds the session liveness probe, a
	// publish on the owning server's alive-check topic; a probe that
	// reaches no subscriber self-heals the session to offline.
	AliveCheckTimeoutSeconds int `yaml:"alive_check_timeout_seconds"`
}

// DatabaseConfig contains SQLite database settings for the audit trail.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains admin HTTP API server settings.
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

// APITimeoutConfig contains HTTP timeout settings (seconds).
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

// WebSocketConfig contains the admin event-stream server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for dispatch telemetry.
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

// SecurityConfig contains admin API security settings.
type SecurityConfig struct {
	JWT     JWTConfig    `yaml:"jwt"`
	Audit   AuditConfig  `yaml:"audit"`
	APIKeys APIKeyConfig `yaml:"api_keys"`
}

// JWTConfig contains JWT bearer-token settings for the admin API.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// AuditConfig toggles the durable audit trail.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// APIKeyConfig contains API key settings (reserved, not yet enforced).
type APIKeyConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MQTTConfig contains broker settings used only by cmd/gatewaydemo.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MESHCORE_SECTION_KEY.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
		Node: NodeConfig{
			ServerID: "node-001",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DB:           0,
			DialTimeout:  5,
			ReadTimeout:  3,
			WriteTimeout: 3,
			PoolSize:     10,
		},
		Dispatch: DispatchConfig{
			MaxAwaitSeconds:          30,
			SemaphoreGraceSeconds:    10,
			AliveCheckTimeoutSeconds: 3,
		},
		Database: DatabaseConfig{
			Path:        "./data/audit.db",
			WALMode:     true,
			BusyTimeout: 5,
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
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
			Audit: AuditConfig{
				Enabled: true,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "meshcore-gatewaydemo",
			},
			QoS: 1,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MESHCORE_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MESHCORE_NODE_SERVER_ID"); v != "" {
		cfg.Node.ServerID = v
	}
	if v := os.Getenv("MESHCORE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MESHCORE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MESHCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("MESHCORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("MESHCORE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("MESHCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("MESHCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
}

// Validate checks the configuration for obvious misconfiguration.
//
// Returns:
//   - error: describing the first invalid field found, or nil if valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Node.ServerID) == "" {
		return fmt.Errorf("node.server_id must not be empty")
	}
	if strings.TrimSpace(c.Redis.Addr) == "" {
		return fmt.Errorf("redis.addr must not be empty")
	}
	if c.Dispatch.MaxAwaitSeconds <= 0 {
		return fmt.Errorf("dispatch.max_await_seconds must be positive")
	}
	if c.Security.Audit.Enabled && strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path must not be empty when audit is enabled")
	}
	return nil
}

// DialTimeoutDuration returns the configured dial timeout as a duration.
func (c RedisConfig) DialTimeoutDuration() time.Duration {
	return time.Duration(c.DialTimeout) * time.Second
}

// ReadTimeoutDuration returns the configured read timeout as a duration.
func (c RedisConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the configured write timeout as a duration.
func (c RedisConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}

// MaxAwaitDuration returns MaxAwaitSeconds as a time.Duration.
func (c DispatchConfig) MaxAwaitDuration() time.Duration {
	return time.Duration(c.MaxAwaitSeconds) * time.Second
}

// SemaphoreExpiry returns the total expiry applied to a reply semaphore:
// the max await time plus its grace period.
func (c DispatchConfig) SemaphoreExpiry() time.Duration {
	return time.Duration(c.MaxAwaitSeconds+c.SemaphoreGraceSeconds) * time.Second
}

// AliveCheckTimeout returns AliveCheckTimeoutSeconds as a time.Duration.
func (c DispatchConfig) AliveCheckTimeout() time.Duration {
	return time.Duration(c.AliveCheckTimeoutSeconds) * time.Second
}
