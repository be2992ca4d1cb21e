package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dom/chess-lobby-client/internal/domain"
	"github.com/dom/chess-lobby-client/internal/protocol"
	"github.com/dom/chess-lobby-client/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsServer upgrades every request and hands the connection to the test
type wsServer struct {
	*httptest.Server
	conns    chan *websocket.Conn
	requests chan *http.Request
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()

	upgrader := websocket.Upgrader{}
	ws := &wsServer{
		conns:    make(chan *websocket.Conn, 4),
		requests: make(chan *http.Request, 4),
	}
	ws.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.requests <- r
		ws.conns <- conn
	}))
	t.Cleanup(ws.Close)
	return ws
}

func (ws *wsServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ws.URL, "http")
}

func (ws *wsServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-ws.conns:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for websocket connection")
		return nil
	}
}

func waitStatus(t *testing.T, s *transport.Socket, want bool) {
	t.Helper()
	for {
		select {
		case got, ok := <-s.StatusChanges():
			require.True(t, ok, "status channel closed while waiting for %v", want)
			if got == want {
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for status %v", want)
		}
	}
}

func TestSocketConnectAndReceive(t *testing.T) {
	srv := newWSServer(t)

	s := transport.NewSocket(srv.wsURL(), "test-token")
	require.NoError(t, s.Connect(context.Background(), "viewer-1"))
	defer s.Close()

	serverConn := srv.accept(t)
	defer serverConn.Close()

	waitStatus(t, s, true)

	r := <-srv.requests
	assert.Equal(t, "viewer-1", r.URL.Query().Get("userId"))
	assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

	require.NoError(t, serverConn.WriteJSON(protocol.Envelope{
		Type:      protocol.EventGameRemoved,
		Payload:   []byte(`{"gameId":"g1"}`),
		Timestamp: time.Now().UnixMilli(),
	}))

	select {
	case env := <-s.Events():
		assert.Equal(t, protocol.EventGameRemoved, env.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}

func TestSocketSend(t *testing.T) {
	srv := newWSServer(t)

	s := transport.NewSocket(srv.wsURL(), "")
	require.NoError(t, s.Connect(context.Background(), "viewer-1"))
	defer s.Close()

	serverConn := srv.accept(t)
	defer serverConn.Close()

	env, err := protocol.NewEnvelope(protocol.CommandJoinUserRoom, protocol.JoinUserRoomPayload{UserID: "viewer-1"})
	require.NoError(t, err)
	require.NoError(t, s.Send(env))

	var got protocol.Envelope
	serverConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, serverConn.ReadJSON(&got))
	assert.Equal(t, protocol.CommandJoinUserRoom, got.Type)
	assert.JSONEq(t, `{"userId":"viewer-1"}`, string(got.Payload))
}

func TestSocketSendBeforeConnect(t *testing.T) {
	s := transport.NewSocket("ws://localhost:1/games", "")

	env, err := protocol.NewEnvelope(protocol.CommandJoinUserRoom, protocol.JoinUserRoomPayload{UserID: "viewer-1"})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Send(env), domain.ErrNotConnected)
}

func TestSocketConnectFailsFast(t *testing.T) {
	s := transport.NewSocket("ws://localhost:1/games", "")

	err := s.Connect(context.Background(), "viewer-1")
	assert.Error(t, err)
}

func TestSocketInvalidURL(t *testing.T) {
	s := transport.NewSocket("://not-a-url", "")

	err := s.Connect(context.Background(), "viewer-1")
	assert.Error(t, err)
}

func TestSocketReconnects(t *testing.T) {
	srv := newWSServer(t)

	s := transport.NewSocket(srv.wsURL(), "")
	require.NoError(t, s.Connect(context.Background(), "viewer-1"))
	defer s.Close()

	first := srv.accept(t)
	waitStatus(t, s, true)

	// Drop the connection server-side; the socket must report the loss
	// and dial again on its own.
	first.Close()
	waitStatus(t, s, false)

	second := srv.accept(t)
	defer second.Close()
	waitStatus(t, s, true)

	// The fresh connection carries events end to end
	require.NoError(t, second.WriteJSON(protocol.Envelope{
		Type:    protocol.EventGameRemoved,
		Payload: []byte(`{"gameId":"g1"}`),
	}))

	select {
	case env := <-s.Events():
		assert.Equal(t, protocol.EventGameRemoved, env.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for envelope after reconnect")
	}
}

func TestSocketCloseShutsChannels(t *testing.T) {
	srv := newWSServer(t)

	s := transport.NewSocket(srv.wsURL(), "")
	require.NoError(t, s.Connect(context.Background(), "viewer-1"))

	serverConn := srv.accept(t)
	defer serverConn.Close()
	waitStatus(t, s, true)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-s.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel never closed")
		}
	}
}

func TestSocketDropsUnparseableMessages(t *testing.T) {
	srv := newWSServer(t)

	s := transport.NewSocket(srv.wsURL(), "")
	require.NoError(t, s.Connect(context.Background(), "viewer-1"))
	defer s.Close()

	serverConn := srv.accept(t)
	defer serverConn.Close()
	waitStatus(t, s, true)

	require.NoError(t, serverConn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, serverConn.WriteJSON(protocol.Envelope{
		Type:    protocol.EventGameRemoved,
		Payload: []byte(`{"gameId":"g1"}`),
	}))

	select {
	case env := <-s.Events():
		assert.Equal(t, protocol.EventGameRemoved, env.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the valid envelope")
	}
}
