package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/relaychat/apiserver/internal/services"
	"github.com/relaychat/apiserver/internal/store"
)

// MessageHandler provides HTTP handlers for messages.
type MessageHandler struct {
	messageService *services.MessageService
}

// NewMessageHandler constructs a handler with the provided service.
func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// MessageRouter registers message routes on the given router. Every
// route sits behind the session resolver and the rate limiter.
func MessageRouter(
	r chi.Router,
	messageService *services.MessageService,
	authMiddleware func(http.Handler) http.Handler,
	rateLimitMiddleware func(http.Handler) http.Handler,
) {
	handler := NewMessageHandler(messageService)

	r.Use(authMiddleware)
	if rateLimitMiddleware != nil {
		r.Use(rateLimitMiddleware)
	}
	r.Post("/", handler.CreateMessage)
	r.Get("/", handler.ListMessages)
	r.Put("/{messageID}", handler.UpdateMessage)
}

type MessageRequest struct {
	ChatID  uuid.UUID  `json:"chat_id"`
	Content string     `json:"content"`
	Rating  int        `json:"rating"`
	Role    string     `json:"role"`
	SentAt  *time.Time `json:"sent_at,omitempty"`
}

// CreateMessage persists a message owned by the authenticated user. The
// owner always comes from the session, never from the payload.
func (h *MessageHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.ChatID == uuid.Nil || req.Content == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	_, err = h.messageService.Send(r.Context(), user.ID, services.NewMessage{
		ChatID:  req.ChatID,
		Content: req.Content,
		Rating:  req.Rating,
		Role:    req.Role,
		SentAt:  req.SentAt,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Message sent successfully"})
}

// ListMessages returns the caller's messages, oldest first. An empty
// list is a normal 200.
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	messages, err := h.messageService.ListForOwner(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// UpdateMessage mutates content, rating and role of one of the caller's
// messages. A message owned by another user gets the same 404 as a
// nonexistent one.
func (h *MessageHandler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	messageID, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	updated, err := h.messageService.Update(r.Context(), messageID, user.ID, req.Content, req.Rating, req.Role)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}
