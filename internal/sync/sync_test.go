package sync

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"vrstore/pkg/models"
)

func quietLogger() *log.Logger { return log.New(io.Discard) }

func TestTCPFeed(t *testing.T) {
	hub := NewHub()
	srv := NewServer("", hub, quietLogger())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	rd := bufio.NewReader(conn)

	welcome, err := rd.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, welcome, `"type":"welcome"`)
	require.Eventually(t, func() bool { return hub.Stats().TCPClients == 1 }, 2*time.Second, 5*time.Millisecond)

	app := models.App{ID: "bs", Title: "Beat Saber", SourceStore: "Steam", Downloads: 4}
	hub.Publish(NewAppEvent(EventAppDownloaded, app))

	line, err := rd.ReadString('\n')
	require.NoError(t, err)
	var ev AppEvent
	require.NoError(t, json.Unmarshal([]byte(line), &ev))
	require.Equal(t, EventAppDownloaded, ev.Type)
	require.Equal(t, "bs", ev.AppID)
	require.Equal(t, "Steam", ev.Source)
	require.Equal(t, int64(4), ev.Downloads)
	st := hub.Stats()
	require.Equal(t, 1, st.Published)
	require.Equal(t, map[string]int{EventAppDownloaded: 1}, st.ByType)

	require.NoError(t, srv.Close())
	require.NoError(t, <-done)

	// clients are dropped once they hang up
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Stats().TCPClients == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebsocketFeed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws", WSHandler(hub, quietLogger()))
	ts := httptest.NewServer(r)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(msg), `"transport":"websocket"`)
	require.Eventually(t, func() bool { return hub.Stats().WSClients == 1 }, 2*time.Second, 5*time.Millisecond)

	ev := AppEvent{Type: EventAppMerged, AppID: "bs", Fields: []string{"title", "rating"}}
	hub.Publish(ev)

	_, msg, err = ws.ReadMessage()
	require.NoError(t, err)
	var got AppEvent
	require.NoError(t, json.Unmarshal(msg, &got))
	require.Equal(t, EventAppMerged, got.Type)
	require.Equal(t, []string{"title", "rating"}, got.Fields)
}

func TestHubStatsAndDrops(t *testing.T) {
	hub := NewHub()

	// the client reads its welcome line and hangs up
	server, client := net.Pipe()
	greeted := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(client).ReadString('\n')
		greeted <- line
		_ = client.Close()
	}()
	require.NoError(t, hub.AddTCP(server))
	require.Contains(t, <-greeted, `"transport":"tcp"`)
	require.Equal(t, 1, hub.Stats().TCPClients)

	hub.Publish(AppEvent{Type: EventAppCreated, AppID: "a"})
	hub.Publish(AppEvent{Type: EventAppUpdated, AppID: "a"})
	hub.Publish(AppEvent{Type: EventAppUpdated, AppID: "a"})

	st := hub.Stats()
	require.Equal(t, 0, st.TCPClients)
	require.Equal(t, 1, st.Dropped)
	require.Equal(t, 3, st.Published)
	require.Equal(t, map[string]int{EventAppCreated: 1, EventAppUpdated: 2}, st.ByType)
	require.NotNil(t, st.LastEventAt)
	require.False(t, st.LastEventAt.IsZero())

	// a client that is gone before the welcome is never subscribed
	dead, peer := net.Pipe()
	require.NoError(t, peer.Close())
	require.Error(t, hub.AddTCP(dead))
	require.Equal(t, 0, hub.Stats().TCPClients)
}

func TestNewAppEvent(t *testing.T) {
	ev := NewAppEvent(EventAppCreated, models.App{ID: "x", Title: "VRChat", SourceStore: "Steam"})
	require.Equal(t, EventAppCreated, ev.Type)
	require.Equal(t, "VRChat", ev.Title)
	require.False(t, ev.At.IsZero())
	require.Empty(t, ev.Fields)
}
