/*
File: internal/api/status_handlers.go
Description: Read-only diagnostics endpoints over the engine's snapshot.
*/
// Package api defines the HTTP handlers for the relay's status surface.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/internal/engine"
)

// API holds the dependencies for the stateless status handlers.
type API struct {
	engine *engine.Engine
	logger zerolog.Logger
}

// NewAPI creates a new, stateless status handler.
func NewAPI(eng *engine.Engine, logger zerolog.Logger) *API {
	return &API{engine: eng, logger: logger}
}

// Register attaches the status routes to mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", a.HealthzHandler)
	mux.HandleFunc("GET /status", a.StatusHandler)
}

// HealthzHandler reports liveness.
func (a *API) HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusHandler returns the full diagnostics snapshot: active-session
// count, per-token metadata, and aggregate statistics. Pure query, no side
// effects.
func (a *API) StatusHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
