package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, BackendNone, c.Backend.Type)
	assert.Equal(t, CacheMemory, c.Cache.Type)
	assert.Equal(t, 5*time.Minute, c.Cache.TTL)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.Equal(t, []string{"5m", "15m", "1h", "4h", "1d"}, c.Analysis.Timeframes)
	assert.Equal(t, 50, c.Analysis.MaxIterations)
	assert.InDelta(t, 1e-6, c.Analysis.Tolerance, 1e-15)
	assert.False(t, c.Analysis.SyntheticFallback)
	assert.True(t, c.Stream.Enabled)
	assert.Equal(t, 5.0, c.Server.RateLimit.RPS)
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: production
backend:
  type: kafka
kafka:
  brokers: ["k1:9092", "k2:9092"]
analysis:
  synthetic_fallback: true
  timeframes: ["1h", "4h"]
stream:
  enabled: false
`))
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.True(t, c.UsesKafka())
	assert.False(t, c.UsesClickHouse())
	assert.Equal(t, []string{"1h", "4h"}, c.Analysis.Timeframes)
	assert.True(t, c.Analysis.SyntheticFallback)
	assert.False(t, c.Stream.Enabled)
	assert.Equal(t, "tokenscope.verdicts", c.Kafka.Topic, "unset fields keep defaults")
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad backend", "backend:\n  type: s3\n"},
		{"kafka without brokers", "backend:\n  type: kafka\n"},
		{"clickhouse backend disabled", "backend:\n  type: clickhouse\n"},
		{"bad timeframe", "analysis:\n  timeframes: [\"2h\"]\n"},
		{"bad cache", "cache:\n  type: disk\n"},
		{"bad environment", "environment: qa\n"},
		{"same topics", "kafka:\n  brokers: [\"k:9092\"]\n  topic: t\n  consumer:\n    enabled: true\n    topic: t\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	env := map[string]string{
		"TOKENSCOPE_ENV":       "staging",
		"KAFKA_BROKERS":        "a:1,b:2",
		"REDIS_ADDR":           "redis:6380",
		"CLICKHOUSE_HOST":      "ch",
		"DEXSCREENER_BASE_URL": "http://dex.local",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, []string{"a:1", "b:2"}, c.Kafka.Brokers)
	assert.Equal(t, "redis:6380", c.Redis.Addr)
	assert.Equal(t, "ch", c.ClickHouse.Host)
	assert.Equal(t, "http://dex.local", c.Market.DexScreenerURL)
	require.NoError(t, c.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
