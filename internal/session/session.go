// Package session is the consumer side of the chat API: REST calls for
// history and sends, a websocket subscription for live pushes, and the
// reconciliation between the two.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pliu/quickchat/internal/models"
	"github.com/pliu/quickchat/internal/ws"
)

type Session struct {
	baseURL string
	client  *http.Client
	token   string
	user    *models.User
	conn    *websocket.Conn

	mu       sync.Mutex
	selected int64 // 0 means no conversation open
	messages []models.Message
	unseen   map[int64]int
	online   []int64

	// Optional hooks for a UI; called outside the session lock.
	OnMessage  func(models.Message)
	OnPresence func([]int64)
}

func New(baseURL string) *Session {
	return &Session{
		baseURL: baseURL,
		client:  &http.Client{},
		unseen:  make(map[int64]int),
	}
}

type apiResponse struct {
	Success        bool             `json:"success"`
	Message        string           `json:"message"`
	User           *models.User     `json:"user"`
	Token          string           `json:"token"`
	Users          []models.User    `json:"users"`
	UnseenMessages map[int64]int    `json:"unseenMessages"`
	Messages       []models.Message `json:"messages"`
	NewMessage     *models.Message  `json:"newMessage"`
}

func (s *Session) request(ctx context.Context, method, path string, body any) (*apiResponse, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("token", s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid response from %s: %w", path, err)
	}
	if !out.Success {
		return nil, fmt.Errorf("%s failed: %s", path, out.Message)
	}
	return &out, nil
}

func (s *Session) Login(ctx context.Context, email, password string) error {
	resp, err := s.request(ctx, "POST", "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	s.token = resp.Token
	s.user = resp.User
	return nil
}

// Connect dials the live connection. Run must be called to start consuming
// pushes.
func (s *Session) Connect(ctx context.Context) error {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {s.token}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// Run reads pushes until the connection drops.
func (s *Session) Run() error {
	for {
		var ev ws.Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			return err
		}
		s.handlePush(ev)
	}
}

func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Session) handlePush(ev ws.Event) {
	switch ev.Type {
	case ws.EventNewMessage:
		var msg models.Message
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			log.Printf("bad newMessage payload: %v", err)
			return
		}
		s.handleNewMessage(msg)
	case ws.EventOnlineUsers:
		var ids []int64
		if err := json.Unmarshal(ev.Payload, &ids); err != nil {
			log.Printf("bad getOnlineUsers payload: %v", err)
			return
		}
		s.mu.Lock()
		s.online = ids
		s.mu.Unlock()
		if s.OnPresence != nil {
			s.OnPresence(ids)
		}
	case ws.EventError:
		var reason string
		json.Unmarshal(ev.Payload, &reason)
		log.Printf("server error event: %s", reason)
	}
}

// handleNewMessage is the dual-path reconciliation. The selected partner is
// read here, at push-handling time, so switching conversations mid-session
// routes later pushes correctly.
func (s *Session) handleNewMessage(msg models.Message) {
	s.mu.Lock()
	inline := s.selected != 0 && msg.SenderID == s.selected
	if inline {
		msg.Seen = true
		s.messages = append(s.messages, msg)
	} else {
		s.unseen[msg.SenderID]++
	}
	s.mu.Unlock()

	if inline {
		// Fire and forget; a missed mark self-heals when the
		// conversation is next reopened.
		go s.markSeen(msg.ID)
	}
	if s.OnMessage != nil {
		s.OnMessage(msg)
	}
}

func (s *Session) markSeen(id int64) {
	path := fmt.Sprintf("/api/messages/mark/%d", id)
	if _, err := s.request(context.Background(), "PUT", path, nil); err != nil {
		log.Printf("failed to mark message %d seen: %v", id, err)
	}
}

// Partners fetches the sidebar and resets the local unseen counters to the
// server-computed values.
func (s *Session) Partners(ctx context.Context) ([]models.User, map[int64]int, error) {
	resp, err := s.request(ctx, "GET", "/api/messages/users", nil)
	if err != nil {
		return nil, nil, err
	}

	unseen := resp.UnseenMessages
	if unseen == nil {
		unseen = make(map[int64]int)
	}
	s.mu.Lock()
	s.unseen = unseen
	s.mu.Unlock()

	return resp.Users, unseen, nil
}

// Select opens a conversation: loads its history, makes the partner the
// push target for inline delivery and clears their unseen badge.
func (s *Session) Select(ctx context.Context, partnerID int64) error {
	resp, err := s.request(ctx, "GET", fmt.Sprintf("/api/messages/%d", partnerID), nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.selected = partnerID
	s.messages = resp.Messages
	delete(s.unseen, partnerID)
	s.mu.Unlock()
	return nil
}

// Send posts a message to the selected partner and appends the saved copy
// to the local view.
func (s *Session) Send(ctx context.Context, text, image string) (*models.Message, error) {
	s.mu.Lock()
	partnerID := s.selected
	s.mu.Unlock()
	if partnerID == 0 {
		return nil, fmt.Errorf("no conversation selected")
	}

	resp, err := s.request(ctx, "POST", fmt.Sprintf("/api/messages/send/%d", partnerID), map[string]string{
		"text":  text,
		"image": image,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.messages = append(s.messages, *resp.NewMessage)
	s.mu.Unlock()
	return resp.NewMessage, nil
}

func (s *Session) User() *models.User {
	return s.user
}

func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) Unseen() map[int64]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]int, len(s.unseen))
	for k, v := range s.unseen {
		out[k] = v
	}
	return out
}

func (s *Session) Online() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.online))
	copy(out, s.online)
	return out
}
