package sync

import (
	"bufio"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEvent(t *testing.T, b []byte) TitleEvent {
	t.Helper()
	var ev TitleEvent
	require.NoError(t, json.Unmarshal(b, &ev))
	return ev
}

func TestTCPFeed(t *testing.T) {
	hub := NewHub()
	srv := NewServer("127.0.0.1:0", hub)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	require.Eventually(t, func() bool { return srv.ListenAddr() != nil }, 2*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", srv.ListenAddr().String())
	require.NoError(t, err)
	r := bufio.NewReader(conn)

	line, err := r.ReadBytes('\n')
	require.NoError(t, err)
	var hello welcome
	require.NoError(t, json.Unmarshal(line, &hello))
	assert.Equal(t, "welcome", hello.Type)
	assert.Equal(t, "tcp", hello.Transport)
	assert.Equal(t, 1, hub.Stats().TCPClients)

	hub.BroadcastJSON(TitleEvent{Type: EventTitleDelete, UserID: "u1", TitleID: 42})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err = r.ReadBytes('\n')
	require.NoError(t, err)
	ev := decodeEvent(t, line)
	assert.Equal(t, EventTitleDelete, ev.Type)
	assert.Equal(t, int64(42), ev.TitleID)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Stats().TCPClients == 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Close())
	require.NoError(t, <-errCh)
}

func TestServerCloseBeforeRun(t *testing.T) {
	srv := NewServer("127.0.0.1:0", NewHub())
	assert.NoError(t, srv.Close())
	assert.Nil(t, srv.ListenAddr())
}

func TestWebsocketFeed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws", WSHandler(hub))
	ts := httptest.NewServer(r)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	var hello welcome
	require.NoError(t, json.Unmarshal(msg, &hello))
	assert.Equal(t, "websocket", hello.Transport)

	require.Eventually(t, func() bool { return hub.Stats().WSClients == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastJSON(TitleEvent{
		Type:    EventTitleUpdate,
		UserID:  "u1",
		TitleID: 7,
		Season:  "2024年夏",
		Fields:  map[string]any{"rating": 5},
	})

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err = ws.ReadMessage()
	require.NoError(t, err)
	ev := decodeEvent(t, msg)
	assert.Equal(t, EventTitleUpdate, ev.Type)
	assert.Equal(t, "2024年夏", ev.Season)
	assert.EqualValues(t, 5, ev.Fields["rating"])

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return hub.Stats().WSClients == 0 }, 2*time.Second, 10*time.Millisecond)
}
