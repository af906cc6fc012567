package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/promptc/prompt"
)

func dialWS(t *testing.T, s *Server, header http.Header) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn, ts
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg ClientMessage) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.WriteJSON(msg))
	var resp ServerMessage
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestWebSocketOneResponsePerMessage(t *testing.T) {
	s := newTestServer(t, nil)
	conn, _ := dialWS(t, s, nil)

	resp := roundTrip(t, conn, ClientMessage{ID: "1", Prompt: "a ++(red) cat [blurry]"})
	assert.Equal(t, "1", resp.ID)
	assert.Equal(t, MessageResult, resp.Type)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "blurry", resp.Result.NegativeText)
	assert.Equal(t, prompt.KindConjunction, resp.Result.Positive.Kind)

	resp = roundTrip(t, conn, ClientMessage{ID: "2", Type: MessageLegacy, Prompt: "a cat:1 a dog:1"})
	assert.Equal(t, "2", resp.ID)
	assert.Equal(t, MessageLegacyResult, resp.Type)
	require.NotNil(t, resp.Legacy)
	assert.True(t, resp.Legacy.Applicable)

	resp = roundTrip(t, conn, ClientMessage{ID: "3", Type: MessagePing})
	assert.Equal(t, ServerMessage{ID: "3", Type: MessagePong}, resp)

	assert.Equal(t, 1, s.ClientCount())
}

func TestWebSocketErrors(t *testing.T) {
	s := newTestServer(t, nil)
	conn, _ := dialWS(t, s, nil)

	resp := roundTrip(t, conn, ClientMessage{ID: "bad", Prompt: `("a").blend(1, 2)`})
	assert.Equal(t, MessageError, resp.Type)
	assert.Equal(t, "bad", resp.ID)
	assert.Contains(t, resp.Error, "mismatched")
	require.NotNil(t, resp.Diagnostic)
	assert.Equal(t, prompt.OpBlend, resp.Diagnostic.Operator)

	resp = roundTrip(t, conn, ClientMessage{ID: "x", Type: "render"})
	assert.Equal(t, MessageError, resp.Type)
	assert.Contains(t, resp.Error, `unknown message type "render"`)
	assert.Nil(t, resp.Diagnostic)

	// The connection survives errors
	resp = roundTrip(t, conn, ClientMessage{ID: "ok", Prompt: "a cat"})
	assert.Equal(t, MessageResult, resp.Type)
}

func TestWebSocketMalformedMessage(t *testing.T) {
	s := newTestServer(t, nil)
	conn, _ := dialWS(t, s, nil)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var resp ServerMessage
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, MessageError, resp.Type)
	assert.Contains(t, resp.Error, "decode message")
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketAllowedOrigin(t *testing.T) {
	s := newTestServer(t, nil)
	conn, _ := dialWS(t, s, http.Header{"Origin": {"http://localhost:5173"}})

	resp := roundTrip(t, conn, ClientMessage{Prompt: "a cat"})
	assert.Equal(t, MessageResult, resp.Type)
}

func TestStopClosesClients(t *testing.T) {
	s, err := New(testConfig(t, nil))
	require.NoError(t, err)
	conn, _ := dialWS(t, s, nil)

	resp := roundTrip(t, conn, ClientMessage{Prompt: "a cat"})
	require.Equal(t, MessageResult, resp.Type)

	require.NoError(t, s.Stop())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Equal(t, ServerStateStopped, s.getState())
}
