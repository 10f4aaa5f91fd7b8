// --- File: relayservice/config/relay_service_config.go ---
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

// AppConfig is the canonical, validated configuration object used
// throughout the application. It is created by NewConfigFromYaml (Stage 1)
// and finalized by UpdateConfigWithEnvOverrides (Stage 2).
type AppConfig struct {
	RelayPort        string
	StatusPort       string
	TokenLength      int
	TokenMaxAttempts int
	TokenExpiry      time.Duration
	ChannelCapacity  int
	ChannelTTL       time.Duration
	MaxPublicHosts   int
	SweepInterval    time.Duration
}

// Settings maps the configuration onto the relay core's knobs.
func (c *AppConfig) Settings() relay.Settings {
	return relay.Settings{
		TokenLength:      c.TokenLength,
		TokenMaxAttempts: c.TokenMaxAttempts,
		TokenExpiry:      c.TokenExpiry,
		ChannelCapacity:  c.ChannelCapacity,
		ChannelTTL:       c.ChannelTTL,
		MaxPublicHosts:   c.MaxPublicHosts,
		SweepInterval:    c.SweepInterval,
	}
}

// UpdateConfigWithEnvOverrides takes the base configuration (created from
// YAML) and completes it by applying environment variables and final
// validation. This function completes "Stage 2" of configuration loading.
func UpdateConfigWithEnvOverrides(cfg *AppConfig, logger zerolog.Logger) (*AppConfig, error) {
	logger.Debug().Msg("Applying environment variable overrides...")

	if port := os.Getenv("RELAY_PORT"); port != "" {
		logger.Debug().Str("key", "RELAY_PORT").Str("source", "env").Msg("Overriding config value")
		cfg.RelayPort = port
	}
	if port := os.Getenv("STATUS_PORT"); port != "" {
		logger.Debug().Str("key", "STATUS_PORT").Str("source", "env").Msg("Overriding config value")
		cfg.StatusPort = port
	}
	if length := os.Getenv("TOKEN_LENGTH"); length != "" {
		val, err := strconv.Atoi(length)
		if err != nil || val < 1 {
			return nil, fmt.Errorf("invalid TOKEN_LENGTH %q", length)
		}
		logger.Debug().Str("key", "TOKEN_LENGTH").Str("source", "env").Msg("Overriding config value")
		cfg.TokenLength = val
	}
	if minutes := os.Getenv("TOKEN_EXPIRY_MINUTES"); minutes != "" {
		val, err := strconv.Atoi(minutes)
		if err != nil || val < 1 {
			return nil, fmt.Errorf("invalid TOKEN_EXPIRY_MINUTES %q", minutes)
		}
		logger.Debug().Str("key", "TOKEN_EXPIRY_MINUTES").Str("source", "env").Msg("Overriding config value")
		cfg.TokenExpiry = time.Duration(val) * time.Minute
	}
	if minutes := os.Getenv("CHANNEL_TTL_MINUTES"); minutes != "" {
		val, err := strconv.Atoi(minutes)
		if err != nil || val < 1 {
			return nil, fmt.Errorf("invalid CHANNEL_TTL_MINUTES %q", minutes)
		}
		logger.Debug().Str("key", "CHANNEL_TTL_MINUTES").Str("source", "env").Msg("Overriding config value")
		cfg.ChannelTTL = time.Duration(val) * time.Minute
	}
	if seconds := os.Getenv("SWEEP_INTERVAL_SECONDS"); seconds != "" {
		val, err := strconv.Atoi(seconds)
		if err != nil || val < 1 {
			return nil, fmt.Errorf("invalid SWEEP_INTERVAL_SECONDS %q", seconds)
		}
		logger.Debug().Str("key", "SWEEP_INTERVAL_SECONDS").Str("source", "env").Msg("Overriding config value")
		cfg.SweepInterval = time.Duration(val) * time.Second
	}

	if cfg.RelayPort == "" {
		return nil, fmt.Errorf("relay_port is not set in config or RELAY_PORT env var")
	}
	if cfg.StatusPort == "" {
		return nil, fmt.Errorf("status_port is not set in config or STATUS_PORT env var")
	}

	logger.Debug().Msg("Configuration finalized and validated successfully")
	return cfg, nil
}
