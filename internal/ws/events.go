package ws

import "encoding/json"

// Event is the envelope for everything crossing the live connection.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	// server -> all clients: list of online user ids
	EventOnlineUsers = "getOnlineUsers"
	// server -> one client: full message payload
	EventNewMessage = "newMessage"
	// client -> server: direct live send, bypassing the REST API
	EventSendMessage = "sendMessage"
	// server -> sender: echo of the saved message on the live send path
	EventMessageSent = "messageSent"
	// server -> sender: generic failure reason, no internal detail
	EventError = "error"
)

// SendMessagePayload is the client-to-server live send. The sender identity
// comes from the authenticated connection, not from the payload.
type SendMessagePayload struct {
	ReceiverID int64 `json:"receiverId"`
	Message    struct {
		Text  string `json:"text,omitempty"`
		Image string `json:"image,omitempty"`
	} `json:"message"`
}

func marshalEvent(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: eventType, Payload: raw})
}
