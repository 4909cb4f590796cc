package plot

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quantwise/chartsync/core"
)

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// WebSocketManager handles WebSocket connections
type WebSocketManager struct {
	sync.RWMutex
	clients       map[*websocket.Conn]bool
	upgrader      websocket.Upgrader
	broadcastChan chan WebSocketMessage
	writeMu       sync.Mutex
	log           core.Logger
	chart         *Chart // Reference to the chart instance
}

// NewWebSocketManager creates a new WebSocket manager
func NewWebSocketManager(log core.Logger, chart *Chart) *WebSocketManager {
	manager := &WebSocketManager{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		broadcastChan: make(chan WebSocketMessage, 100),
		log:           log,
		chart:         chart,
	}

	// Start broadcast handler
	go manager.handleBroadcasts()

	return manager
}

// writeJSON sends one message on a connection. The websocket library
// allows at most one concurrent writer per connection, and both the
// broadcast loop and the initial snapshot write here.
func (m *WebSocketManager) writeJSON(conn *websocket.Conn, msg WebSocketMessage) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// handleBroadcasts processes messages from the broadcast channel
func (m *WebSocketManager) handleBroadcasts() {
	for msg := range m.broadcastChan {
		m.RLock()
		for conn := range m.clients {
			if err := m.writeJSON(conn, msg); err != nil {
				m.log.Error("Error sending WebSocket message: ", err)
				conn.Close()
				// The connection is removed when the client handler
				// detects the closed connection
			}
		}
		m.RUnlock()
	}
}

// HandleWebSocket handles WebSocket connections
func (m *WebSocketManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP connection to WebSocket
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Error("Failed to upgrade connection to WebSocket: ", err)
		return
	}

	// Register client
	m.Lock()
	m.clients[conn] = true
	clientCount := len(m.clients)
	m.Unlock()

	m.log.Info("New WebSocket client connected, total: ", clientCount)

	// Send initial data
	go m.sendInitialData(conn)

	// Handle client messages
	go m.handleClient(conn)
}

// handleClient processes messages from a client
func (m *WebSocketManager) handleClient(conn *websocket.Conn) {
	defer func() {
		// Remove client on disconnect
		m.Lock()
		delete(m.clients, conn)
		m.log.Info("WebSocket client disconnected, remaining: ", len(m.clients))
		m.Unlock()
		conn.Close()
	}()

	// Keep connection alive with ping/pong
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte{}, time.Now().Add(10*time.Second))
	})

	// Read messages (we don't expect any, but need to handle disconnects)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.log.Error("WebSocket read error: ", err)
			}
			break
		}
	}
}

// sendInitialData sends the currently displayed view to a new client
func (m *WebSocketManager) sendInitialData(conn *websocket.Conn) {
	snapshot := m.chart.currentSnapshot()
	if snapshot == nil {
		return
	}

	msg := WebSocketMessage{
		Type:    "chartView",
		Payload: snapshot,
	}

	if err := m.writeJSON(conn, msg); err != nil {
		m.log.Error("Error sending initial data: ", err)
	}
}

// enqueue pushes a message for the broadcast loop without blocking. The
// callers hold chart state locks, so a full queue drops the message
// instead of stalling them; a reconnecting client recovers the latest
// state from its initial snapshot.
func (m *WebSocketManager) enqueue(msg WebSocketMessage) {
	select {
	case m.broadcastChan <- msg:
	default:
		m.log.Warn("WebSocket broadcast queue full, dropping ", msg.Type)
	}
}

// BroadcastView broadcasts a complete chart view to all clients. The
// browser page tears down its chart object and rebuilds it from the
// snapshot, mirroring the surface lifecycle.
func (m *WebSocketManager) BroadcastView(snapshot map[string]any) {
	m.enqueue(WebSocketMessage{
		Type:    "chartView",
		Payload: snapshot,
	})
}

// BroadcastError pushes a chart-level error message to all clients.
func (m *WebSocketManager) BroadcastError(message string) {
	m.enqueue(WebSocketMessage{
		Type: "chartError",
		Payload: map[string]any{
			"message": message,
		},
	})
}
