package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/service"
	"github.com/vedran77/dmcore/internal/transport/http/middleware"
)

type ConversationHandler struct {
	conversations *service.ConversationService
	messages      *service.MessageService
	log           *zap.Logger
}

func NewConversationHandler(conversations *service.ConversationService, messages *service.MessageService, log *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		log:           log.With(zap.String("component", "conversation_handler")),
	}
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input struct {
		UserID         uuid.UUID `json:"user_id"`
		InitialMessage string    `json:"initial_message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		invalidJSON(w)
		return
	}

	conv, err := h.conversations.CreateConversation(r.Context(), service.CreateConversationInput{
		InitiatorID:    userID,
		ReceiverID:     input.UserID,
		InitialMessage: input.InitialMessage,
	})
	if err != nil {
		writeAppError(w, h.log, "create conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	writeJSON(w, http.StatusOK, h.conversations.ListForUser(r.Context(), userID))
}

func (h *ConversationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	writeJSON(w, http.StatusOK, h.conversations.Stats(r.Context(), userID))
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		invalidID(w, "conversation")
		return
	}

	conv, err := h.conversations.GetByID(r.Context(), convID, userID)
	if err != nil {
		writeAppError(w, h.log, "get conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		invalidID(w, "conversation")
		return
	}

	if err := h.conversations.Delete(r.Context(), convID, userID); err != nil {
		writeAppError(w, h.log, "delete conversation", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		invalidID(w, "conversation")
		return
	}

	n, err := h.messages.MarkConversationRead(r.Context(), convID, userID)
	if err != nil {
		writeAppError(w, h.log, "mark conversation read", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}
