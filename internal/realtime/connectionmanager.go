/*
File: internal/realtime/connectionmanager.go
Description: The websocket transport boundary. Upgrades connections,
gates token reclaim at connect time, feeds inbound frames to the engine,
and tears the session down when the read loop ends.
*/
// Package realtime provides components for managing real-time client connections.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/internal/engine"
	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

// ConnectionManager manages all active WebSocket connections. It runs its
// own dedicated HTTP server.
type ConnectionManager struct {
	server     *http.Server
	upgrader   websocket.Upgrader
	engine     *engine.Engine
	logger     zerolog.Logger
	instanceID string
}

// NewConnectionManager creates and wires up a new WebSocket connection manager.
func NewConnectionManager(port string, eng *engine.Engine, logger zerolog.Logger) (*ConnectionManager, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}

	instanceID := uuid.NewString()
	cmLogger := logger.With().Str("component", "ConnectionManager").Str("instance", instanceID).Logger()

	cm := &ConnectionManager{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: Implement a real origin check
				return true
			},
		},
		engine:     eng,
		logger:     cmLogger,
		instanceID: instanceID,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /connect", cm.connectHandler)
	cm.server = &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	return cm, nil
}

// Start runs the HTTP server for WebSocket connections.
func (cm *ConnectionManager) Start(ctx context.Context) error {
	cm.logger.Info().Str("addr", cm.server.Addr).Msg("WebSocket server starting...")
	if err := cm.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and closes every live peer.
func (cm *ConnectionManager) Shutdown(ctx context.Context) error {
	cm.logger.Info().Msg("Shutting down WebSocket service...")
	var finalErr error

	cm.engine.CloseAll()

	if err := cm.server.Shutdown(ctx); err != nil {
		cm.logger.Error().Err(err).Msg("WebSocket server shutdown failed.")
		finalErr = err
	}

	cm.logger.Info().Msg("WebSocket service shut down.")
	return finalErr
}

// connectHandler upgrades a new HTTP request to a WebSocket and manages its
// lifecycle. A peer may present a previously issued token as the "token"
// query parameter to reclaim its identity after a transient drop.
func (cm *ConnectionManager) connectHandler(w http.ResponseWriter, r *http.Request) {
	address := remoteAddress(r)
	presented := relay.Token(r.URL.Query().Get("token"))

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cm.logger.Error().Err(err).Msg("Failed to upgrade connection.")
		return
	}
	transport := newWSTransport(conn)
	defer func() {
		if err := transport.Close(); err != nil {
			cm.logger.Debug().Err(err).Msg("Error closing connection.")
		}
	}()

	token, err := cm.engine.Connect(address, presented, transport)
	if err != nil {
		// Authorization failure at connect time: no session exists to
		// address, so the connection closes without a frame.
		cm.logger.Warn().Err(err).Str("address", address).Str("presented", string(presented)).
			Msg("Connection rejected.")
		return
	}
	defer cm.engine.Disconnect(token)

	connLogger := cm.logger.With().Str("token", string(token)).Logger()
	connLogger.Debug().Str("address", address).Msg("Peer connected via WebSocket.")

	// Read loop: one text frame per inbound operation.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				connLogger.Debug().Err(err).Msg("Read loop ended abnormally.")
			}
			break
		}
		cm.engine.HandleFrame(token, data)
	}
}

// remoteAddress extracts the peer IP, dropping the ephemeral port so a
// reconnecting peer's address matches its original binding.
func remoteAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// wsTransport adapts a gorilla connection to relay.Transport. Gorilla
// permits one concurrent writer, so writes are serialized with a mutex.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Send(event any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteJSON(event)
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return t.conn.Close()
}
