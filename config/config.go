package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Tuya          TuyaConfig          `yaml:"tuya"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	HTTP          HTTPConfig          `yaml:"http"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Pushover      PushoverConfig      `yaml:"pushover"`
	Log           LogConfig           `yaml:"log"`
}

type TuyaConfig struct {
	ClientID      string `yaml:"client_id"`
	Secret        string `yaml:"secret"`
	Region        string `yaml:"region"`
	BaseURL       string `yaml:"base_url"`
	SyncInterval  string `yaml:"sync_interval"`
	RetryAttempts int    `yaml:"retry_attempts"`
}

type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Broker          string `yaml:"broker"`
	ClientID        string `yaml:"client_id"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	TLS             bool   `yaml:"tls"`
	QoS             int    `yaml:"qos"`
	TopicPrefix     string `yaml:"topic_prefix"`
	Discovery       bool   `yaml:"discovery"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

type HTTPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
	// RateLimit is the number of lock commands accepted per minute per
	// client. A negative value disables the limit; zero takes the default.
	RateLimit int `yaml:"rate_limit"`
	// AuthFailureLimit is the number of rejected tokens tolerated per
	// minute per client. A negative value disables the limit.
	AuthFailureLimit int `yaml:"auth_failure_limit"`
	// TrustProxyHeaders identifies clients by X-Forwarded-For / X-Real-IP.
	// Enable only behind a reverse proxy that sets them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

type HomeAssistantConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Title   string `yaml:"title"`
	Enabled bool   `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML document, expanding ${VAR} references from the
// environment first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Tuya.Region == "" {
		c.Tuya.Region = "us"
	}
	if c.Tuya.SyncInterval == "" {
		c.Tuya.SyncInterval = "5m"
	}
	if c.Tuya.RetryAttempts == 0 {
		c.Tuya.RetryAttempts = 3
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "smart-lock"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "smartlock"
	}
	if c.MQTT.DiscoveryPrefix == "" {
		c.MQTT.DiscoveryPrefix = "homeassistant"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RateLimit == 0 {
		c.HTTP.RateLimit = 30
	}
	if c.HTTP.AuthFailureLimit == 0 {
		c.HTTP.AuthFailureLimit = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Tuya.ClientID == "" {
		errs = append(errs, errors.New("tuya.client_id is required"))
	}
	if c.Tuya.Secret == "" {
		errs = append(errs, errors.New("tuya.secret is required"))
	}
	if _, err := c.SyncInterval(); err != nil {
		errs = append(errs, fmt.Errorf("tuya.sync_interval: %w", err))
	}
	if c.Tuya.RetryAttempts < 1 {
		errs = append(errs, errors.New("tuya.retry_attempts must be at least 1"))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	if c.HomeAssistant.Enabled && c.HomeAssistant.URL == "" {
		errs = append(errs, errors.New("homeassistant.url is required when enabled"))
	}

	return errors.Join(errs...)
}

// SyncInterval returns the parsed device sync interval. Zero disables
// periodic sync.
func (c *Config) SyncInterval() (time.Duration, error) {
	return time.ParseDuration(c.Tuya.SyncInterval)
}
