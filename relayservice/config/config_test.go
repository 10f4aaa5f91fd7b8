package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testYaml = `
relay_port: "4001"
status_port: "8081"
token:
  initial_length: 5
  max_attempts: 50
  expiry_minutes: 15
channels:
  max_entries: 200
  entry_ttl_minutes: 30
hosts:
  max_public: 10
sweep_interval_seconds: 30
`

func TestNewConfigFromYaml(t *testing.T) {
	var yamlCfg YamlConfig
	require.NoError(t, yaml.Unmarshal([]byte(testYaml), &yamlCfg))

	cfg, err := NewConfigFromYaml(&yamlCfg)
	require.NoError(t, err)

	assert.Equal(t, "4001", cfg.RelayPort)
	assert.Equal(t, "8081", cfg.StatusPort)
	assert.Equal(t, 5, cfg.TokenLength)
	assert.Equal(t, 50, cfg.TokenMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.TokenExpiry)
	assert.Equal(t, 200, cfg.ChannelCapacity)
	assert.Equal(t, 30*time.Minute, cfg.ChannelTTL)
	assert.Equal(t, 10, cfg.MaxPublicHosts)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
}

func TestNewConfigFromYaml_DefaultsForMissingKnobs(t *testing.T) {
	var yamlCfg YamlConfig
	require.NoError(t, yaml.Unmarshal([]byte(`{relay_port: "4001", status_port: "8081"}`), &yamlCfg))

	cfg, err := NewConfigFromYaml(&yamlCfg)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.TokenLength)
	assert.Equal(t, 100, cfg.TokenMaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.TokenExpiry)
	assert.Equal(t, 100, cfg.ChannelCapacity)
	assert.Equal(t, 20*time.Minute, cfg.ChannelTTL)
	assert.Equal(t, 20, cfg.MaxPublicHosts)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	t.Setenv("RELAY_PORT", "5001")
	t.Setenv("TOKEN_EXPIRY_MINUTES", "5")
	t.Setenv("SWEEP_INTERVAL_SECONDS", "120")

	cfg := &AppConfig{RelayPort: "4001", StatusPort: "8081"}
	cfg, err := UpdateConfigWithEnvOverrides(cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "5001", cfg.RelayPort)
	assert.Equal(t, "8081", cfg.StatusPort)
	assert.Equal(t, 5*time.Minute, cfg.TokenExpiry)
	assert.Equal(t, 2*time.Minute, cfg.SweepInterval)
}

func TestUpdateConfigWithEnvOverrides_Validation(t *testing.T) {
	_, err := UpdateConfigWithEnvOverrides(&AppConfig{StatusPort: "8081"}, zerolog.Nop())
	assert.Error(t, err)

	t.Setenv("TOKEN_EXPIRY_MINUTES", "bogus")
	_, err = UpdateConfigWithEnvOverrides(&AppConfig{RelayPort: "4001", StatusPort: "8081"}, zerolog.Nop())
	assert.Error(t, err)
}
