package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pliu/quickchat/internal/chat"
	"github.com/pliu/quickchat/internal/models"
	"github.com/pliu/quickchat/internal/store/sqlstore"
)

// readEventOfType skips over presence broadcasts until the wanted event
// arrives or the deadline hits.
func readEventOfType(t *testing.T, conn *websocket.Conn, eventType string) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("Failed waiting for %q event: %v", eventType, err)
		}
		if ev.Type == eventType {
			return ev
		}
	}
}

func dialTestClient(t *testing.T, server *httptest.Server, userID int64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?uid=" + strconv.FormatInt(userID, 10)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestLiveSendPath(t *testing.T) {
	st, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	alice := &models.User{Email: "a@example.com", FullName: "A", Password: "hash"}
	bob := &models.User{Email: "b@example.com", FullName: "B", Password: "hash"}
	st.CreateUser(ctx, alice)
	st.CreateUser(ctx, bob)

	hub := NewHub()
	go hub.Run()
	hub.Service = chat.New(st, hub, nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := strconv.ParseInt(r.URL.Query().Get("uid"), 10, 64)
		ServeWs(hub, w, r, userID)
	}))
	defer server.Close()

	sender := dialTestClient(t, server, alice.ID)
	receiver := dialTestClient(t, server, bob.ID)

	// Both sides hear about presence on connect
	readEventOfType(t, sender, EventOnlineUsers)
	readEventOfType(t, receiver, EventOnlineUsers)

	send := map[string]any{
		"type": EventSendMessage,
		"payload": map[string]any{
			"receiverId": bob.ID,
			"message":    map[string]string{"text": "hi"},
		},
	}
	if err := sender.WriteJSON(send); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}

	// Sender gets the echo with the store-assigned fields
	echo := readEventOfType(t, sender, EventMessageSent)
	var sent models.Message
	if err := json.Unmarshal(echo.Payload, &sent); err != nil {
		t.Fatalf("Failed to decode echo: %v", err)
	}
	if sent.ID == 0 || sent.Text != "hi" || sent.SenderID != alice.ID {
		t.Errorf("Unexpected echo: %+v", sent)
	}

	// Receiver gets the live push
	push := readEventOfType(t, receiver, EventNewMessage)
	var got models.Message
	if err := json.Unmarshal(push.Payload, &got); err != nil {
		t.Fatalf("Failed to decode push: %v", err)
	}
	if got.ID != sent.ID || got.Text != "hi" {
		t.Errorf("Unexpected push: %+v", got)
	}

	// And the message is durable regardless of the push
	messages, _ := st.GetConversation(ctx, alice.ID, bob.ID)
	if len(messages) != 1 || messages[0].Text != "hi" {
		t.Errorf("Expected the message in the store, got %+v", messages)
	}
}

func TestLiveSendPathRejectsEmptyMessage(t *testing.T) {
	st, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	hub := NewHub()
	go hub.Run()
	hub.Service = chat.New(st, hub, nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := strconv.ParseInt(r.URL.Query().Get("uid"), 10, 64)
		ServeWs(hub, w, r, userID)
	}))
	defer server.Close()

	sender := dialTestClient(t, server, 1)
	readEventOfType(t, sender, EventOnlineUsers)

	send := map[string]any{
		"type": EventSendMessage,
		"payload": map[string]any{
			"receiverId": 2,
			"message":    map[string]string{},
		},
	}
	if err := sender.WriteJSON(send); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}

	errEvent := readEventOfType(t, sender, EventError)
	var reason string
	json.Unmarshal(errEvent.Payload, &reason)
	if reason == "" {
		t.Error("Expected a generic error reason")
	}
	if strings.Contains(reason, "sql") {
		t.Error("Error event must not leak internal detail")
	}
}
