package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"ewaste-backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 2048

	locationTimeout = 5 * time.Second
)

// LocationSink stores volunteer positions sent over the socket.
type LocationSink interface {
	UpdateLocation(ctx context.Context, volunteerID string, u models.VolunteerLocationUpdate) (*models.Volunteer, error)
}

// Client represents a WebSocket client connection
type Client struct {
	UserID   string
	UserRole string
	AgencyID string
	conn     *websocket.Conn
	hub      *Hub
	send     chan []byte
	sink     LocationSink
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewClient creates a new WebSocket client
func NewClient(userID, userRole, agencyID string, conn *websocket.Conn, hub *Hub, sink LocationSink) *Client {
	return &Client{
		UserID:   userID,
		UserRole: userRole,
		AgencyID: agencyID,
		conn:     conn,
		hub:      hub,
		send:     make(chan []byte, 256),
		sink:     sink,
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Invalid message format: %v", err)
			continue
		}

		switch msg.Type {
		case "ping":
			c.reply(map[string]interface{}{
				"type":      "pong",
				"timestamp": time.Now().Format(time.RFC3339),
			})

		case "location_update":
			c.handleLocationUpdate(msg.Data)
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) reply(data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// handleLocationUpdate stores a volunteer position and relays it to the volunteer's
// agency.
func (c *Client) handleLocationUpdate(raw json.RawMessage) {
	if c.UserRole != models.RoleVolunteer || c.sink == nil {
		return
	}

	var update models.VolunteerLocationUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		log.Printf("❌ Invalid location_update from %s: %v", c.UserID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), locationTimeout)
	defer cancel()

	v, err := c.sink.UpdateLocation(ctx, c.UserID, update)
	if err != nil {
		log.Printf("❌ Error saving location for volunteer %s: %v", c.UserID, err)
		c.reply(map[string]interface{}{"type": "error", "error": err.Error()})
		return
	}

	c.hub.BroadcastToAgency(v.AgencyID, LocationBroadcast(v))
}

// LocationBroadcast is the message agency dashboards receive when a volunteer moves.
func LocationBroadcast(v *models.Volunteer) map[string]interface{} {
	return map[string]interface{}{
		"type": "volunteer_location_update",
		"data": map[string]interface{}{
			"volunteer_id": v.ID,
			"latitude":     v.Latitude,
			"longitude":    v.Longitude,
			"address":      v.Address,
			"status":       v.Status,
			"updated_at":   v.UpdatedAt,
		},
	}
}
