package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is the server-side handle for one live connection.
type Client struct {
	UserID int64
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

// trySend queues a payload without blocking. A full buffer or a closed
// handle drops the payload; durability lives in the store, not here.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		var ev Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("readPump error (user %d): %v", c.UserID, err)
			}
			break
		}

		switch ev.Type {
		case EventSendMessage:
			c.handleSendMessage(ev.Payload)
		default:
			c.sendError("Unknown event type")
		}
	}
}

// handleSendMessage is the direct live send path. It goes through the same
// Conversation Service as the REST path, so validation, persistence and
// delivery are shared.
func (c *Client) handleSendMessage(payload json.RawMessage) {
	var req SendMessagePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendError("Invalid sendMessage payload")
		return
	}

	msg, err := c.hub.Service.SendMessage(context.Background(), c.UserID, req.ReceiverID, req.Message.Text, req.Message.Image)
	if err != nil {
		log.Printf("live send failed (user %d): %v", c.UserID, err)
		c.sendError("Failed to send message")
		return
	}

	// Echo the saved message so the sender can reconcile its optimistic
	// insert with the store-assigned id and timestamp.
	if data, err := marshalEvent(EventMessageSent, msg); err == nil {
		c.trySend(data)
	}
}

func (c *Client) sendError(reason string) {
	if data, err := marshalEvent(EventError, reason); err == nil {
		c.trySend(data)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("writePump error (user %d): %v", c.UserID, err)
			return
		}
	}
}

// ServeWs upgrades the request and hands the connection to the hub. The
// caller has already resolved the authenticated user id.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := &Client{UserID: userID, hub: hub, conn: conn, send: make(chan []byte, 256)}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}
