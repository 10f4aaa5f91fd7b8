/*
File: cmd/relayservice/main.go
Description: Process entry point. Loads the embedded configuration,
applies environment overrides, and wires up the relay core with its
WebSocket and status services.
*/
package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tinywideclouds/go-relay-service/cmd"
	"github.com/tinywideclouds/go-relay-service/internal/app"
	"github.com/tinywideclouds/go-relay-service/internal/engine"
	"github.com/tinywideclouds/go-relay-service/internal/realtime"
	"github.com/tinywideclouds/go-relay-service/relayservice"
	"github.com/tinywideclouds/go-relay-service/relayservice/config"
)

func main() {
	// 1. Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.With().Str("service", "go-relay-service").Logger()

	// 2. Load config.yaml and apply environment overrides
	cfg, err := cmd.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	cfg, err = config.UpdateConfigWithEnvOverrides(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to finalize configuration")
	}

	// 3. Create the relay core
	eng := engine.New(cfg.Settings(), engine.SystemClock(), logger.With().Str("component", "Engine").Logger())

	// 4. Create the two main services
	connManager, err := realtime.NewConnectionManager(cfg.RelayPort, eng, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Connection Manager")
	}

	statusService, err := relayservice.New(cfg, eng, logger.With().Str("component", "StatusService").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Status Service")
	}

	// 5. Run the application
	app.Run(context.Background(), logger, statusService, connManager)
}
