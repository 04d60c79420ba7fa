package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eldtechnologies/chatrix/internal/api/middleware"
	"github.com/eldtechnologies/chatrix/internal/metrics"
	"github.com/eldtechnologies/chatrix/internal/models"
)

// maxMessageBytes bounds a human-to-human message.
const maxMessageBytes = 4000

// conversationLimit is the number of recent messages returned per chat.
const conversationLimit = 200

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// GetUsers lists every other user as a chat contact.
func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if h.users == nil {
		h.Error(w, http.StatusServiceUnavailable, "user store not configured")
		return
	}

	users, err := h.users.ListUsersExcept(r.Context(), user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("list users")
		h.Error(w, http.StatusInternalServerError, "Failed to load users")
		return
	}

	h.JSON(w, http.StatusOK, users)
}

// GetMessages returns the conversation between the caller and {id}.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	peerID, ok := h.peerParam(w, r)
	if !ok {
		return
	}
	if h.messages == nil {
		h.Error(w, http.StatusServiceUnavailable, "message store not configured")
		return
	}

	msgs, err := h.messages.Conversation(r.Context(), user.ID.String(), peerID.String(), conversationLimit)
	if err != nil {
		h.logger.Error().Err(err).Msg("load conversation")
		h.Error(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}

	h.JSON(w, http.StatusOK, msgs)
}

// SendMessage stores a message to {id} and pushes it to the receiver.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sender := middleware.GetUserFromContext(r.Context())
	if sender == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	receiverID, ok := h.peerParam(w, r)
	if !ok {
		return
	}
	if receiverID == sender.ID {
		h.Error(w, http.StatusBadRequest, "cannot send a message to yourself")
		return
	}
	if h.users == nil || h.messages == nil {
		h.Error(w, http.StatusServiceUnavailable, "message store not configured")
		return
	}

	receiver, err := h.users.GetUserByID(r.Context(), receiverID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if receiver == nil {
		h.Error(w, http.StatusNotFound, "recipient not found")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	text := sanitizeText(req.Text)
	if text == "" {
		h.Error(w, http.StatusBadRequest, "text is required")
		return
	}
	if len(text) > maxMessageBytes {
		h.Error(w, http.StatusUnprocessableEntity, "text too long (max 4000 bytes)")
		return
	}

	msg := &models.Message{
		SenderID:   sender.ID.String(),
		ReceiverID: receiver.ID.String(),
		Text:       text,
	}
	if err := h.messages.SaveMessage(r.Context(), msg); err != nil {
		h.logger.Error().Err(err).Msg("store message")
		h.Error(w, http.StatusInternalServerError, "failed to store message")
		return
	}
	metrics.MessagesSent.Inc()

	if h.realtime != nil {
		h.realtime.Publish(msg.ReceiverID, models.Event{Type: models.EventNewMessage, Message: msg})
	}

	h.JSON(w, http.StatusCreated, msg)
}

// Realtime upgrades the caller to the realtime event stream.
func (h *Handler) Realtime(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if h.realtime == nil {
		h.Error(w, http.StatusServiceUnavailable, "realtime not configured")
		return
	}
	h.realtime.ServeWS(w, r, user.ID.String())
}

// peerParam parses the {id} URL parameter. The AI participant is rejected:
// its conversation lives only on the client.
func (h *Handler) peerParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	if raw == models.AIAssistantID {
		h.Error(w, http.StatusBadRequest, "AI conversations are not stored on the server")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return uuid.Nil, false
	}
	return id, true
}
