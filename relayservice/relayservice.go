/*
File: relayservice/relayservice.go
Description: Wires the relay core's background components: the periodic
cleaner and the read-only status HTTP server.
*/
package relayservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/internal/api"
	"github.com/tinywideclouds/go-relay-service/internal/engine"
	"github.com/tinywideclouds/go-relay-service/relayservice/config"
)

// Wrapper bundles the status server and the cleanup task behind one
// Start/Shutdown lifecycle.
type Wrapper struct {
	statusServer *http.Server
	cleaner      *engine.Cleaner
	cleanerDone  sync.WaitGroup
	logger       zerolog.Logger
}

// New creates and wires up the relay's supporting services.
func New(cfg *config.AppConfig, eng *engine.Engine, logger zerolog.Logger) (*Wrapper, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}

	mux := http.NewServeMux()
	apiHandler := api.NewAPI(eng, logger.With().Str("component", "API").Logger())
	apiHandler.Register(mux)

	return &Wrapper{
		statusServer: &http.Server{
			Addr:    ":" + cfg.StatusPort,
			Handler: mux,
		},
		cleaner: engine.NewCleaner(eng, cfg.SweepInterval, logger.With().Str("component", "Cleaner").Logger()),
		logger:  logger,
	}, nil
}

// Start runs the cleaner in the background and blocks serving the status
// endpoints until the server is shut down.
func (w *Wrapper) Start(ctx context.Context) error {
	w.cleanerDone.Add(1)
	go func() {
		defer w.cleanerDone.Done()
		w.cleaner.Run(ctx)
	}()

	w.logger.Info().Str("addr", w.statusServer.Addr).Msg("Status server starting...")
	if err := w.statusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the status server and waits for the cleaner to
// exit. The cleaner itself stops when the Start context is cancelled.
func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info().Msg("Shutting down status service...")
	var finalErr error

	if err := w.statusServer.Shutdown(ctx); err != nil {
		w.logger.Error().Err(err).Msg("Status server shutdown failed.")
		finalErr = err
	}

	w.cleanerDone.Wait()
	w.logger.Info().Msg("Status service shut down.")
	return finalErr
}
