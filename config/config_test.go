package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "option-greeks-engine", cfg.App.Name)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, 60*time.Second, cfg.API.WriteTimeout)
	assert.Equal(t, 10000, cfg.Pricing.NumSimulations)
	assert.Equal(t, 365, cfg.Pricing.TimeSteps)
	assert.Equal(t, "legacy", cfg.Pricing.SecondOrderMode)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "greeks.requests", cfg.Kafka.Topics.GreeksRequests)
	assert.Equal(t, 500*time.Millisecond, cfg.Kafka.Consumer.MaxWait)
	assert.Zero(t, cfg.Kafka.Consumer.RateLimit)
	assert.Equal(t, 10, cfg.Kafka.Consumer.RateBurst)
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := []byte("pricing:\n  num_simulations: 2000\n  second_order_mode: textbook\napi:\n  port: 9000\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	t.Setenv("GREEKS_PRICING_WORKERS", "6")
	t.Setenv("GREEKS_API_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.Pricing.NumSimulations)
	assert.Equal(t, "textbook", cfg.Pricing.SecondOrderMode)
	assert.Equal(t, 6, cfg.Pricing.Workers)
	assert.Equal(t, 9100, cfg.API.Port)
}

func TestLoadRejectsInvalidPricing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pricing:\n  time_steps: 0\n"), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "time_steps")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pricing: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("GREEKS_CONFIG_PATH", "")
	assert.Equal(t, "./config/config.yaml", GetConfigPath())

	t.Setenv("GREEKS_CONFIG_PATH", "/etc/greeks.yaml")
	assert.Equal(t, "/etc/greeks.yaml", GetConfigPath())
}
