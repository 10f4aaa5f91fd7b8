/*
File: internal/realtime/connectionmanager_test.go
Description: End-to-end websocket tests against a live httptest server:
connect handshake, message exchange, reconnection gating.
*/
package realtime

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-relay-service/internal/engine"
	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

type testFixture struct {
	cm       *ConnectionManager
	engine   *engine.Engine
	wsServer *httptest.Server
}

func setup(t *testing.T) *testFixture {
	t.Helper()
	eng := engine.New(relay.DefaultSettings(), engine.SystemClock(), zerolog.Nop())

	cm, err := NewConnectionManager("0", eng, zerolog.Nop())
	require.NoError(t, err, "NewConnectionManager failed")

	wsServer := httptest.NewServer(cm.server.Handler)
	t.Cleanup(wsServer.Close)

	return &testFixture{cm: cm, engine: eng, wsServer: wsServer}
}

func (fx *testFixture) wsURL(query string) string {
	return "ws" + strings.TrimPrefix(fx.wsServer.URL, "http") + "/connect" + query
}

// connectClient dials the test server and returns the connection plus the
// token from the greeting frame.
func (fx *testFixture) connectClient(t *testing.T) (*websocket.Conn, relay.Token) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(fx.wsURL(""), nil)
	require.NoError(t, err, "Failed to dial test WebSocket server")
	t.Cleanup(func() { _ = conn.Close() })

	greeting := readEvent(t, conn)
	require.Equal(t, relay.EventConnected, greeting["type"])
	token, ok := greeting["token"].(string)
	require.True(t, ok)
	return conn, relay.Token(token)
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event map[string]any
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestConnectAssignsToken(t *testing.T) {
	fx := setup(t)
	_, token := fx.connectClient(t)

	assert.Len(t, string(token), 4)
	assert.Equal(t, 1, fx.engine.Stats().ActiveSessions)
}

func TestDirectMessageBetweenClients(t *testing.T) {
	fx := setup(t)
	aConn, _ := fx.connectClient(t)
	bConn, bToken := fx.connectClient(t)

	err := aConn.WriteJSON(map[string]any{"to": string(bToken), "message": "over the wire"})
	require.NoError(t, err)

	ack := readEvent(t, aConn)
	assert.Equal(t, relay.EventMessageSent, ack["type"])
	assert.Equal(t, float64(1), ack["sent"])

	msg := readEvent(t, bConn)
	assert.Equal(t, relay.EventMessage, msg["type"])
	assert.Equal(t, "over the wire", msg["message"])
}

func TestMalformedFrameGetsErrorAndConnectionSurvives(t *testing.T) {
	fx := setup(t)
	conn, _ := fx.connectClient(t)

	err := conn.WriteMessage(websocket.TextMessage, []byte("{{{{"))
	require.NoError(t, err)

	event := readEvent(t, conn)
	assert.Equal(t, relay.EventError, event["type"])

	// Still connected and serviceable.
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "list_public_hosts"}))
	event = readEvent(t, conn)
	assert.Equal(t, relay.EventPublicHostsList, event["type"])
}

func TestReconnectReclaimsToken(t *testing.T) {
	fx := setup(t)
	conn, token := fx.connectClient(t)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return fx.engine.Stats().ActiveSessions == 0
	}, 2*time.Second, 10*time.Millisecond, "disconnect was not processed")

	reConn, _, err := websocket.DefaultDialer.Dial(fx.wsURL("?token="+string(token)), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reConn.Close() })

	greeting := readEvent(t, reConn)
	assert.Equal(t, relay.EventConnectionEstablished, greeting["type"])
	assert.Equal(t, string(token), greeting["token"])
}

func TestReconnectWithUnknownTokenIsClosedWithoutFrame(t *testing.T) {
	fx := setup(t)

	conn, _, err := websocket.DefaultDialer.Dial(fx.wsURL("?token=ZZZZ"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event map[string]any
	err = conn.ReadJSON(&event)
	require.Error(t, err, "rejected connection must close without sending a frame")
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure) || !websocket.IsUnexpectedCloseError(err))
}

func TestReconnectWithActiveTokenIsRejected(t *testing.T) {
	fx := setup(t)
	_, token := fx.connectClient(t)

	conn, _, err := websocket.DefaultDialer.Dial(fx.wsURL("?token="+string(token)), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event map[string]any
	require.Error(t, conn.ReadJSON(&event))

	// The original session is untouched.
	assert.Equal(t, 1, fx.engine.Stats().ActiveSessions)
}
