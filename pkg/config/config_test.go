package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 3001, c.Server.Port)
	assert.Equal(t, 9138.90, c.Dashboard.BasePrice)
	assert.Equal(t, 30*time.Second, c.Dashboard.TickInterval)
	assert.Equal(t, 2*time.Second, c.Dashboard.PredictionLatency)
	assert.Equal(t, "/ws", c.WebSocket.Path)
	assert.False(t, c.WebSocket.ForwardErrors)
	assert.True(t, c.Cache.Enabled)
	assert.False(t, c.Cache.Redis.Enabled)
	assert.False(t, c.Kafka.Enabled)
	assert.Equal(t, "findash.events", c.Kafka.Topic)
	assert.Empty(t, c.Scoring.URL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
server:
  port: 8080
dashboard:
  base_price: 100
  history_jitter: 5
  tick_interval: 5s
websocket:
  forward_errors: true
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 100.0, c.Dashboard.BasePrice)
	assert.Equal(t, 5*time.Second, c.Dashboard.TickInterval)
	assert.True(t, c.WebSocket.ForwardErrors)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	// untouched keys keep their defaults
	assert.Equal(t, 25, c.Dashboard.FeatureCount)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "server: [port"},
		{"port out of range", "server:\n  port: 70000\n"},
		{"jitter above base", "dashboard:\n  base_price: 10\n  history_jitter: 20\n"},
		{"negative base", "dashboard:\n  base_price: -1\n"},
		{"pong before ping", "websocket:\n  ping_interval: 30s\n  pong_timeout: 10s\n"},
		{"kafka without brokers", "kafka:\n  enabled: true\n"},
		{"bad scoring url", "scoring:\n  url: not a url\n"},
		{"unknown log level", "log:\n  level: verbose\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	env := map[string]string{
		"LOG_LEVEL":     "DEBUG",
		"HTTP_PORT":     "9000",
		"REDIS_ADDR":    "redis:6379",
		"KAFKA_BROKERS": "k1:9092, k2:9092,",
		"SCORING_URL":   "http://scoring:8000",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	require.NoError(t, c.applyEnv(lookup))

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 9000, c.Server.Port)
	assert.True(t, c.Cache.Redis.Enabled)
	assert.Equal(t, "redis:6379", c.Cache.Redis.Addr)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "http://scoring:8000", c.Scoring.URL)
	assert.NoError(t, c.Validate())
}

func TestApplyEnv_BadPort(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	err = c.applyEnv(func(k string) (string, bool) {
		if k == "HTTP_PORT" {
			return "http", true
		}
		return "", false
	})
	assert.Error(t, err)
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "4000")
	c, err := LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 4000, c.Server.Port)
}
