package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pliu/quickchat/internal/chat"
	"github.com/pliu/quickchat/internal/middleware"
)

type MessageHandler struct {
	Service *chat.Service
}

// GetUsers returns the sidebar: every other user plus unseen counts.
func (h *MessageHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	users, unseen, err := h.Service.ListPartners(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"users":          users,
		"unseenMessages": unseen,
	})
}

// GetMessages returns the conversation with the user in the path and, as a
// side effect, clears its unseen backlog.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	otherID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	messages, err := h.Service.FetchHistory(r.Context(), userID, otherID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"messages": messages,
	})
}

type sendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	senderID := middleware.UserID(r)
	receiverID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid receiver id")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.Service.SendMessage(r.Context(), senderID, receiverID, req.Text, req.Image)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"newMessage": msg,
	})
}

// MarkSeen marks one message seen. Idempotent; unknown ids succeed.
func (h *MessageHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	if err := h.Service.MarkSeen(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
