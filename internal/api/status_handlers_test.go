package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-relay-service/internal/engine"
	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

type nopTransport struct{}

func (nopTransport) Send(any) error { return nil }
func (nopTransport) Close() error   { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	eng := engine.New(relay.DefaultSettings(), engine.SystemClock(), zerolog.Nop())

	mux := http.NewServeMux()
	NewAPI(eng, zerolog.Nop()).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, eng
}

func TestHealthzHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestStatusHandler_Snapshot(t *testing.T) {
	srv, eng := newTestServer(t)

	token, err := eng.Connect("10.0.0.1", "", nopTransport{})
	require.NoError(t, err)
	eng.HandleFrame(token, []byte(`{"type":"set_mode","mode":"host","visibility":"public"}`))

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats relay.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 1, stats.Hosts)
	assert.Equal(t, 1, stats.PublicHosts)
	require.Contains(t, stats.Sessions, token)
	assert.Equal(t, "10.0.0.1", stats.Sessions[token].Address)
}
