package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"peloton/internal/notifications"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startWSServer binds the test app to a real port so websocket clients can
// dial it. app.Test cannot carry an upgraded connection.
func (ts *testServer) startWSServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = ts.app.Listener(ln) }()
	t.Cleanup(func() { _ = ts.app.Shutdown() })
	return ln.Addr().String()
}

func (ts *testServer) mintTicket(t *testing.T, token string) string {
	t.Helper()
	resp := ts.request(t, http.MethodPost, "/api/ws/ticket", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Ticket string `json:"ticket"`
	}
	decodeData(t, resp, &out)
	return out.Ticket
}

func dialWS(t *testing.T, addr, ticket string) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://%s/api/ws?ticket=%s", addr, ticket)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readEvent reads frames until one of the wanted type arrives. Presence
// broadcasts can interleave with the frame under test.
func readEvent(t *testing.T, conn *websocket.Conn, wantType string) notifications.Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %q event", wantType)
		var event notifications.Event
		require.NoError(t, json.Unmarshal(raw, &event))
		if event.Type == wantType {
			return event
		}
	}
}

func TestWebsocket_ConnectWithTicket(t *testing.T) {
	ts := newTestServer(t)
	user, token := ts.createUser(t)
	addr := ts.startWSServer(t)

	conn := dialWS(t, addr, ts.mintTicket(t, token))

	event := readEvent(t, conn, "connected")
	payload, ok := event.Payload.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, user.ID, payload["user_id"])

	assert.True(t, ts.srv.hub.IsOnline(user.ID))
}

func TestWebsocket_DialWithoutTicketRejected(t *testing.T) {
	ts := newTestServer(t)
	addr := ts.startWSServer(t)

	url := fmt.Sprintf("ws://%s/api/ws?ticket=bogus", addr)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebsocket_TypingRelayBetweenFriends(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.createUser(t)
	bob, bobToken := ts.createUser(t)
	ts.befriend(t, alice, aliceToken, bob, bobToken)
	addr := ts.startWSServer(t)

	aliceConn := dialWS(t, addr, ts.mintTicket(t, aliceToken))
	readEvent(t, aliceConn, "connected")
	bobConn := dialWS(t, addr, ts.mintTicket(t, bobToken))
	readEvent(t, bobConn, "connected")

	frame, err := json.Marshal(map[string]any{
		"type":    notifications.EventTypingStart,
		"payload": map[string]any{"to_user_id": bob.ID},
	})
	require.NoError(t, err)
	require.NoError(t, aliceConn.WriteMessage(websocket.TextMessage, frame))

	event := readEvent(t, bobConn, notifications.EventTypingStart)
	payload, ok := event.Payload.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, alice.ID, payload["user_id"])
}

func TestWebsocket_TypingNotRelayedToStrangers(t *testing.T) {
	ts := newTestServer(t)
	_, aliceToken := ts.createUser(t)
	stranger, strangerToken := ts.createUser(t)
	addr := ts.startWSServer(t)

	aliceConn := dialWS(t, addr, ts.mintTicket(t, aliceToken))
	readEvent(t, aliceConn, "connected")
	strangerConn := dialWS(t, addr, ts.mintTicket(t, strangerToken))
	readEvent(t, strangerConn, "connected")

	frame, err := json.Marshal(map[string]any{
		"type":    notifications.EventTypingStart,
		"payload": map[string]any{"to_user_id": stranger.ID},
	})
	require.NoError(t, err)
	require.NoError(t, aliceConn.WriteMessage(websocket.TextMessage, frame))

	require.NoError(t, strangerConn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, raw, err := strangerConn.ReadMessage()
	if err == nil {
		var event notifications.Event
		require.NoError(t, json.Unmarshal(raw, &event))
		assert.NotEqual(t, notifications.EventTypingStart, event.Type,
			"typing indicators must stay between friends")
	}
}

func TestWebsocket_HeartbeatKeepsPresenceFresh(t *testing.T) {
	ts := newTestServer(t)
	user, token := ts.createUser(t)
	addr := ts.startWSServer(t)

	conn := dialWS(t, addr, ts.mintTicket(t, token))
	readEvent(t, conn, "connected")

	frame, err := json.Marshal(map[string]any{"type": notifications.EventHeartbeat})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	require.Eventually(t, func() bool {
		return ts.srv.hub.IsOnline(user.ID)
	}, 2*time.Second, 20*time.Millisecond)
}
