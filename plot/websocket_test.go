package plot

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcast_DoesNotBlockWhenQueueFull(t *testing.T) {
	// No broadcast loop drains this manager, so the queue fills after two
	// messages; the rest must be dropped instead of blocking the caller.
	m := &WebSocketManager{
		clients:       make(map[*websocket.Conn]bool),
		broadcastChan: make(chan WebSocketMessage, 2),
		log:           nopLogger{},
	}

	for i := 0; i < 10; i++ {
		m.BroadcastView(map[string]any{"n": i})
	}
	m.BroadcastError("service unavailable")

	assert.Len(t, m.broadcastChan, 2)
}

func TestHandleWebSocket_ServesSnapshotAndBroadcasts(t *testing.T) {
	chart, err := NewChart(nopLogger{})
	require.NoError(t, err)
	chart.RegisterHandlers(fakeServer{})
	require.NoError(t, chart.Apply(sampleView(), 1))

	manager := chart.GetWSManager()

	server := httptest.NewServer(http.HandlerFunc(manager.HandleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// The initial snapshot arrives once the client is registered
	var initial WebSocketMessage
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, "chartView", initial.Type)

	// Concurrent broadcasters share one connection with the snapshot
	// writer; every frame must still arrive intact
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				manager.BroadcastView(map[string]any{"ticker": "AAPL"})
			}
		}()
	}

	for i := 0; i < 10; i++ {
		var msg WebSocketMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "chartView", msg.Type)
	}

	wg.Wait()
}
