package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-lock/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TUYA_SECRET", "s3cret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tuya:
  client_id: abc
  secret: ${TUYA_SECRET}
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Tuya.Secret)
	assert.Equal(t, "us", cfg.Tuya.Region)
	assert.Equal(t, 3, cfg.Tuya.RetryAttempts)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "smartlock", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "homeassistant", cfg.MQTT.DiscoveryPrefix)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30, cfg.HTTP.RateLimit)
	assert.Equal(t, 10, cfg.HTTP.AuthFailureLimit)
	assert.False(t, cfg.HTTP.TrustProxyHeaders)
	assert.Equal(t, "info", cfg.Log.Level)

	interval, err := cfg.SyncInterval()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, interval)
}

func TestParse_Full(t *testing.T) {
	cfg, err := config.Parse([]byte(`
tuya:
  client_id: abc
  secret: def
  region: eu
  sync_interval: 30s
mqtt:
  enabled: true
  broker: ssl://broker:8883
  qos: 2
  discovery: true
http:
  enabled: true
  addr: 127.0.0.1:9000
  auth_token: tok
homeassistant:
  enabled: true
  url: http://ha.local:8123
  token: ha
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, "eu", cfg.Tuya.Region)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, 2, cfg.MQTT.QoS)
	assert.True(t, cfg.MQTT.Discovery)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.Equal(t, "http://ha.local:8123", cfg.HomeAssistant.URL)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_DisabledRateLimits(t *testing.T) {
	cfg, err := config.Parse([]byte(`
tuya:
  client_id: abc
  secret: def
http:
  rate_limit: -1
  auth_failure_limit: -1
  trust_proxy_headers: true
`))
	require.NoError(t, err)

	assert.Equal(t, -1, cfg.HTTP.RateLimit)
	assert.Equal(t, -1, cfg.HTTP.AuthFailureLimit)
	assert.True(t, cfg.HTTP.TrustProxyHeaders)
}

func TestParse_Invalid(t *testing.T) {
	_, err := config.Parse([]byte(`
tuya:
  sync_interval: soon
mqtt:
  qos: 3
homeassistant:
  enabled: true
`))
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "tuya.client_id")
	assert.Contains(t, msg, "tuya.secret")
	assert.Contains(t, msg, "tuya.sync_interval")
	assert.Contains(t, msg, "mqtt.qos")
	assert.Contains(t, msg, "homeassistant.url")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
