package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vitalops/vitalops/server/internal/store"
	"github.com/vitalops/vitalops/server/internal/vitals"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression over a reading field: "spo2 < 90",
	// "hr > 120", "hr <= 40".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultHTTPPort       = 8080
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultStreamInterval = 5 * time.Second
	DefaultMQTTPort       = 1883
	DefaultMQTTClientID   = "vitalops-server"
	DefaultMQTTTopic      = "vitalops/+/vitals"
	DefaultAuthHeader     = "x-api-key"
)

// DefaultAllowedOrigins is the CORS allow-list used when none is configured:
// the local dashboard dev servers and the hosted frontend.
var DefaultAllowedOrigins = []string{
	"http://localhost:5000",
	"http://127.0.0.1:5000",
	"http://localhost:3000",
	"https://vitalops.onrender.com",
}

// Config holds the configuration parsed from the `server:` section of config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	Log     LogConfig     `yaml:"log"`
	CORS    CORSConfig    `yaml:"cors"`
	Auth    AuthConfig    `yaml:"auth"`
	History HistoryConfig `yaml:"history"`
	Stream  StreamConfig  `yaml:"stream"`
	MQTT    MQTTConfig    `yaml:"mqtt"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is "json" for production or "text" for a colourised console.
	Format string `yaml:"format"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AuthConfig controls API key checks on the ingestion endpoint.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultAuthHeader
}

// HistoryConfig controls GET /api/vitals/history.
type HistoryConfig struct {
	// DefaultLimit is used when the request carries no limit parameter.
	DefaultLimit int `yaml:"default_limit"`
}

// StreamConfig controls the WebSocket broadcast of the latest reading.
type StreamConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// MQTTConfig configures the optional MQTT ingestion subscriber.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`

	// PasswordEnv is the name of the environment variable holding the broker password.
	PasswordEnv string `yaml:"password_env"`
}

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}
	return Parse(data)
}

// LoadOrDefault behaves like Load but returns the defaults when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes YAML config data on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config pre-populated with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Log: LogConfig{
				Level:  DefaultLogLevel,
				Format: DefaultLogFormat,
			},
			CORS: CORSConfig{
				AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
			},
			History: HistoryConfig{
				DefaultLimit: store.DefaultHistoryLimit,
			},
			Stream: StreamConfig{
				Interval: DefaultStreamInterval,
			},
			MQTT: MQTTConfig{
				Port:     DefaultMQTTPort,
				ClientID: DefaultMQTTClientID,
				Topic:    DefaultMQTTTopic,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log.level %q unknown: want debug|info|warn|error", s.Log.Level)
	}
	switch s.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("server.log.format %q unknown: want json|text", s.Log.Format)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.History.DefaultLimit < 1 {
		return fmt.Errorf("server.history.default_limit must be at least 1, got %d", s.History.DefaultLimit)
	}
	if s.Stream.Interval <= 0 {
		return fmt.Errorf("server.stream.interval must be positive")
	}
	if s.MQTT.Enabled {
		if s.MQTT.Broker == "" {
			return fmt.Errorf("server.mqtt.broker is required when mqtt is enabled")
		}
		if s.MQTT.Topic == "" {
			return fmt.Errorf("server.mqtt.topic is required when mqtt is enabled")
		}
		if s.MQTT.Port <= 0 || s.MQTT.Port > 65535 {
			return fmt.Errorf("server.mqtt.port %d is out of range [1, 65535]", s.MQTT.Port)
		}
	}
	for i, r := range s.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name is required", i)
		}
		if _, err := vitals.ParseCondition(r.Condition); err != nil {
			return fmt.Errorf("server.alerts.rules[%d] %q: %w", i, r.Name, err)
		}
	}
	for i, w := range s.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d]: type %q unknown: want slack|teams|http", i, w.Type)
		}
	}
	return nil
}
