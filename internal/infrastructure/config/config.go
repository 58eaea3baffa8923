package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Remote endpoints used when homeconnect.base_url is not set.
const (
	DefaultBaseURL   = "https://api.home-connect.com"
	SimulatorBaseURL = "https://simulator.home-connect.com"
)

// Config is the root configuration structure for homeconnect-core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	HomeConnect HomeConnectConfig `yaml:"homeconnect"`
	Stream      StreamConfig      `yaml:"stream"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	History     HistoryConfig     `yaml:"history"`
	Logging     LoggingConfig     `yaml:"logging"`
	Security    SecurityConfig    `yaml:"security"`
}

// HomeConnectConfig contains the cloud API account and OAuth2 client settings.
type HomeConnectConfig struct {
	BaseURL      string `yaml:"base_url"`
	Simulator    bool   `yaml:"simulator"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	Scope        string `yaml:"scope"`

	// RefreshToken seeds the token store. When empty, the last persisted
	// token in the database is used instead.
	RefreshToken string `yaml:"refresh_token"`

	// RequestTimeout bounds each REST call (seconds).
	RequestTimeout int `yaml:"request_timeout"`
}

// StreamConfig contains event stream and liveness settings.
type StreamConfig struct {
	// WatchdogTimeout is the silence interval after which the stream is
	// considered stalled (seconds).
	WatchdogTimeout int `yaml:"watchdog_timeout"`

	// ReadTimeout is the longest gap allowed between two reads on the
	// event stream connection (seconds). 0 disables it.
	ReadTimeout int `yaml:"read_timeout"`

	Reconnect StreamReconnectConfig `yaml:"reconnect"`

	// ReconnectOnWatchdog closes a stalled stream when the watchdog fires
	// so the reconnect path runs.
	ReconnectOnWatchdog bool `yaml:"reconnect_on_watchdog"`
}

// StreamReconnectConfig contains event stream reconnection settings.
type StreamReconnectConfig struct {
	Enabled      bool `yaml:"enabled"`
	InitialDelay int  `yaml:"initial_delay"`
	MaxDelay     int  `yaml:"max_delay"`
	MaxAttempts  int  `yaml:"max_attempts"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
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

// APITimeoutConfig contains HTTP timeout settings.
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

// HistoryConfig contains property history settings.
type HistoryConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings for the local API.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HOMECONNECT_SECTION_KEY
// For example: HOMECONNECT_CLIENT_ID, HOMECONNECT_DATABASE_PATH
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
		HomeConnect: HomeConnectConfig{
			Scope:          "IdentifyAppliance Monitor Control Settings",
			RequestTimeout: 30,
		},
		Stream: StreamConfig{
			WatchdogTimeout: 300,
			ReadTimeout:     120,
			Reconnect: StreamReconnectConfig{
				Enabled:      true,
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			ReconnectOnWatchdog: true,
		},
		Database: DatabaseConfig{
			Path:        "./data/homeconnect.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "homeconnect-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "homeconnect",
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
		History: HistoryConfig{
			RetentionDays: 30,
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
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HOMECONNECT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Home Connect account
	if v := os.Getenv("HOMECONNECT_BASE_URL"); v != "" {
		cfg.HomeConnect.BaseURL = v
	}
	if v := os.Getenv("HOMECONNECT_CLIENT_ID"); v != "" {
		cfg.HomeConnect.ClientID = v
	}
	if v := os.Getenv("HOMECONNECT_CLIENT_SECRET"); v != "" {
		cfg.HomeConnect.ClientSecret = v
	}
	if v := os.Getenv("HOMECONNECT_REFRESH_TOKEN"); v != "" {
		cfg.HomeConnect.RefreshToken = v
	}

	// Database
	if v := os.Getenv("HOMECONNECT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("HOMECONNECT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HOMECONNECT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HOMECONNECT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("HOMECONNECT_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("HOMECONNECT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("HOMECONNECT_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Home Connect account
	if c.HomeConnect.ClientID == "" {
		errs = append(errs, "homeconnect.client_id is required (set HOMECONNECT_CLIENT_ID environment variable)")
	}
	if c.HomeConnect.BaseURL != "" {
		if u, err := url.Parse(c.HomeConnect.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, "homeconnect.base_url must be an absolute URL")
		}
	}
	if c.HomeConnect.RequestTimeout < 0 {
		errs = append(errs, "homeconnect.request_timeout must not be negative")
	}

	// Stream
	if c.Stream.WatchdogTimeout <= 0 {
		errs = append(errs, "stream.watchdog_timeout must be positive")
	}
	if c.Stream.Reconnect.Enabled {
		if c.Stream.Reconnect.InitialDelay <= 0 {
			errs = append(errs, "stream.reconnect.initial_delay must be positive")
		}
		if c.Stream.Reconnect.MaxDelay < c.Stream.Reconnect.InitialDelay {
			errs = append(errs, "stream.reconnect.max_delay must be >= initial_delay")
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
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	// API
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// The API exposes appliance control, so a bearer secret is mandatory
	// whenever it is switched on.
	const minJWTSecretLength = 32
	if c.API.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set HOMECONNECT_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BaseURL returns the effective Home Connect API base URL without a trailing slash.
func (c *Config) BaseURL() string {
	switch {
	case c.HomeConnect.BaseURL != "":
		return strings.TrimRight(c.HomeConnect.BaseURL, "/")
	case c.HomeConnect.Simulator:
		return SimulatorBaseURL
	default:
		return DefaultBaseURL
	}
}

// GetRequestTimeout returns the REST request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.HomeConnect.RequestTimeout) * time.Second
}

// GetWatchdogTimeout returns the stream watchdog interval as a Duration.
func (c *Config) GetWatchdogTimeout() time.Duration {
	return time.Duration(c.Stream.WatchdogTimeout) * time.Second
}

// GetStreamReadTimeout returns the event stream read timeout as a Duration.
func (c *Config) GetStreamReadTimeout() time.Duration {
	return time.Duration(c.Stream.ReadTimeout) * time.Second
}

// GetReconnectInitialDelay returns the first stream reconnect delay.
func (c *Config) GetReconnectInitialDelay() time.Duration {
	return time.Duration(c.Stream.Reconnect.InitialDelay) * time.Second
}

// GetReconnectMaxDelay returns the cap on stream reconnect delays.
func (c *Config) GetReconnectMaxDelay() time.Duration {
	return time.Duration(c.Stream.Reconnect.MaxDelay) * time.Second
}

// GetHistoryRetention returns how long property history rows are kept.
func (c *Config) GetHistoryRetention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
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
