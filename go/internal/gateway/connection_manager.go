// Package gateway exposes draft session event streams over WebSocket. Each
// connection subscribes to the hub, receives a full snapshot frame first, then
// live events in sequence order.
package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/draftroom/go/internal/hub"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024, // 1KB max message size
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// ConnectionManager upgrades HTTP requests and bridges WebSocket connections
// to hub subscriptions.
type ConnectionManager struct {
	hub      *hub.Hub
	upgrader websocket.Upgrader
	config   ConnectionConfig

	mu          sync.RWMutex
	connections map[uuid.UUID]map[*Connection]bool
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID        string
	SessionID uuid.UUID
	Conn      *websocket.Conn
	Sub       *hub.Subscription
	Manager   *ConnectionManager

	// joinedSeq is the snapshot's event watermark. The subscription channel is
	// registered before the snapshot is taken, so events up to this sequence
	// number may land on the channel despite being in the snapshot already.
	joinedSeq uint64

	ConnectedAt time.Time
	LastPing    time.Time
}

// snapshotFrame is the first frame sent on every new connection. Live events
// follow as raw event envelopes distinguished by their own type field.
type snapshotFrame struct {
	Type         string                  `json:"type"`
	SubscriberID string                  `json:"subscriber_id"`
	Data         *models.SessionSnapshot `json:"data"`
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(h *hub.Hub, config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		connections: make(map[uuid.UUID]map[*Connection]bool),
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket, subscribes it to
// the session's event stream, and writes the snapshot frame before any events
// flow.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) error {
	snapshot, sub, err := cm.hub.Subscribe(sessionID)
	if err != nil {
		return err
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cm.hub.Unsubscribe(sessionID, sub.ID)
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return err
	}

	connection := &Connection{
		ID:          sub.ID.String(),
		SessionID:   sessionID,
		Conn:        conn,
		Sub:         sub,
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
		joinedSeq:   snapshot.Seq,
	}
	cm.registerConnection(connection)

	if err := connection.writeSnapshot(snapshot); err != nil {
		connection.teardown()
		return err
	}

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("session_id", sessionID.String()).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.connections[conn.SessionID] == nil {
		cm.connections[conn.SessionID] = make(map[*Connection]bool)
	}
	cm.connections[conn.SessionID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session_id", conn.SessionID.String()).
		Int("total_connections", len(cm.connections[conn.SessionID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.connections[conn.SessionID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			if len(connections) == 0 {
				delete(cm.connections, conn.SessionID)
			}

			log.Info().
				Str("connection_id", conn.ID).
				Str("session_id", conn.SessionID.String()).
				Msg("connection unregistered")
		}
	}
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	totalConnections := 0
	sessionCounts := make(map[string]int)

	for sessionID, connections := range cm.connections {
		count := len(connections)
		totalConnections += count
		sessionCounts[sessionID.String()] = count
	}

	return map[string]interface{}{
		"total_connections":   totalConnections,
		"active_sessions":     len(cm.connections),
		"session_connections": sessionCounts,
	}
}

func (c *Connection) writeSnapshot(snapshot *models.SessionSnapshot) error {
	frame, err := json.Marshal(snapshotFrame{Type: "snapshot", SubscriberID: c.ID, Data: snapshot})
	if err != nil {
		return err
	}
	c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
	return c.Conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Connection) teardown() {
	c.Manager.hub.Unsubscribe(c.SessionID, c.Sub.ID)
	c.Manager.unregisterConnection(c)
	c.Conn.Close()
}

// writePump forwards hub events to the WebSocket connection and keeps the
// connection alive with pings. The hub closes the subscription channel when
// the subscriber falls behind, which ends this pump.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.teardown()
	}()

	for {
		select {
		case event, ok := <-c.Sub.Events():
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if event.Seq <= c.joinedSeq {
				// Already reflected in the snapshot frame.
				continue
			}

			frame, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal event frame")
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump drains client frames to surface disconnects and keep the pong
// handler running. The stream is server-to-client; client frames are logged
// and discarded.
func (c *Connection) readPump() {
	defer c.teardown()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

func (c *Connection) handleClientMessage(message []byte) {
	log.Debug().
		Str("connection_id", c.ID).
		RawJSON("message", message).
		Msg("received client message")
}
