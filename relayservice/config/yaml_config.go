package config

import (
	"time"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

// --- YAML-Specific Structs ---

type YamlTokenConfig struct {
	InitialLength int `yaml:"initial_length"`
	MaxAttempts   int `yaml:"max_attempts"`
	ExpiryMinutes int `yaml:"expiry_minutes"`
}

type YamlChannelConfig struct {
	MaxEntries      int `yaml:"max_entries"`
	EntryTTLMinutes int `yaml:"entry_ttl_minutes"`
}

type YamlHostConfig struct {
	MaxPublic int `yaml:"max_public"`
}

// YamlConfig defines the structure for unmarshaling the embedded config.yaml file.
type YamlConfig struct {
	RelayPort            string            `yaml:"relay_port"`
	StatusPort           string            `yaml:"status_port"`
	Token                YamlTokenConfig   `yaml:"token"`
	Channels             YamlChannelConfig `yaml:"channels"`
	Hosts                YamlHostConfig    `yaml:"hosts"`
	SweepIntervalSeconds int               `yaml:"sweep_interval_seconds"`
}

// NewConfigFromYaml converts the raw unmarshaled data into a base AppConfig.
// Stage 1 of configuration loading: zero-valued knobs fall back to the
// relay defaults; environment overrides come in stage 2.
func NewConfigFromYaml(yamlCfg *YamlConfig) (*AppConfig, error) {
	defaults := relay.DefaultSettings()

	appCfg := &AppConfig{
		RelayPort:        yamlCfg.RelayPort,
		StatusPort:       yamlCfg.StatusPort,
		TokenLength:      orInt(yamlCfg.Token.InitialLength, defaults.TokenLength),
		TokenMaxAttempts: orInt(yamlCfg.Token.MaxAttempts, defaults.TokenMaxAttempts),
		TokenExpiry:      orMinutes(yamlCfg.Token.ExpiryMinutes, defaults.TokenExpiry),
		ChannelCapacity:  orInt(yamlCfg.Channels.MaxEntries, defaults.ChannelCapacity),
		ChannelTTL:       orMinutes(yamlCfg.Channels.EntryTTLMinutes, defaults.ChannelTTL),
		MaxPublicHosts:   orInt(yamlCfg.Hosts.MaxPublic, defaults.MaxPublicHosts),
		SweepInterval:    orSeconds(yamlCfg.SweepIntervalSeconds, defaults.SweepInterval),
	}

	return appCfg, nil
}

func orInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func orMinutes(v int, fallback time.Duration) time.Duration {
	if v > 0 {
		return time.Duration(v) * time.Minute
	}
	return fallback
}

func orSeconds(v int, fallback time.Duration) time.Duration {
	if v > 0 {
		return time.Duration(v) * time.Second
	}
	return fallback
}
