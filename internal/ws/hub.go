package ws

import (
	"context"
	"log"

	"github.com/pliu/quickchat/internal/models"
)

// ConversationService is the slice of the chat service the live send path
// needs. Declared here to keep the dependency pointing one way.
type ConversationService interface {
	SendMessage(ctx context.Context, senderID, receiverID int64, text, image string) (*models.Message, error)
}

// Hub owns the presence registry and routes pushes to live connections.
type Hub struct {
	presence *Presence

	// Register requests from new connections.
	register chan *Client

	// Unregister requests from disconnecting clients.
	unregister chan *Client

	// Service handles the direct live send path; wired up in main after
	// the chat service is built.
	Service ConversationService
}

func NewHub() *Hub {
	return &Hub{
		presence:   NewPresence(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			if replaced := h.presence.Register(client.UserID, client); replaced != nil {
				// Last connection wins; shut the old handle down.
				replaced.close()
			}
			h.broadcastPresence()
		case client := <-h.unregister:
			removed := h.presence.Unregister(client.UserID, client)
			client.close()
			if removed {
				h.broadcastPresence()
			}
		}
	}
}

// Deliver pushes a newMessage event to the receiver's live connection, if
// there is one. Best effort, at most once: a miss returns false and the
// caller relies on the store write for durability.
func (h *Hub) Deliver(msg *models.Message) bool {
	client, ok := h.presence.Lookup(msg.ReceiverID)
	if !ok {
		return false
	}
	data, err := marshalEvent(EventNewMessage, msg)
	if err != nil {
		log.Printf("failed to encode message %d: %v", msg.ID, err)
		return false
	}
	return client.trySend(data)
}

// broadcastPresence pushes the current online set to every connected client.
func (h *Hub) broadcastPresence() {
	data, err := marshalEvent(EventOnlineUsers, h.presence.Online())
	if err != nil {
		log.Printf("failed to encode online users: %v", err)
		return
	}
	for _, client := range h.presence.Clients() {
		client.trySend(data)
	}
}

// Online reports the currently connected user ids.
func (h *Hub) Online() []int64 {
	return h.presence.Online()
}
