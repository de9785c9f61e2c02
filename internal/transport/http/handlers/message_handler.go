package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/service"
	"github.com/vedran77/dmcore/internal/transport/http/middleware"
	"github.com/vedran77/dmcore/pkg/apperr"
)

type MessageHandler struct {
	messages      *service.MessageService
	conversations *service.ConversationService
	log           *zap.Logger
}

func NewMessageHandler(messages *service.MessageService, conversations *service.ConversationService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{
		messages:      messages,
		conversations: conversations,
		log:           log.With(zap.String("component", "message_handler")),
	}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		invalidID(w, "conversation")
		return
	}

	var input struct {
		Content          string             `json:"content"`
		MessageType      domain.MessageType `json:"message_type"`
		ReplyToMessageID *uuid.UUID         `json:"reply_to_message_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		invalidJSON(w)
		return
	}

	conv, err := h.conversations.Lookup(r.Context(), convID, userID)
	if err != nil {
		writeAppError(w, h.log, "send message", err)
		return
	}

	msg, err := h.messages.Send(r.Context(), service.SendMessageInput{
		ConversationID:   conv.ID,
		SenderID:         userID,
		ReceiverID:       conv.OtherParticipant(userID),
		Content:          input.Content,
		MessageType:      input.MessageType,
		ReplyToMessageID: input.ReplyToMessageID,
	})
	if err != nil {
		writeAppError(w, h.log, "send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		invalidID(w, "conversation")
		return
	}

	page, ok := queryInt(r, "page")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeValidation), "page must be a number")
		return
	}
	pageSize, ok := queryInt(r, "page_size")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeValidation), "page_size must be a number")
		return
	}
	since, ok := queryTime(r, "since")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeValidation), "since must be an RFC 3339 timestamp")
		return
	}
	until, ok := queryTime(r, "until")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeValidation), "until must be an RFC 3339 timestamp")
		return
	}

	resp, err := h.messages.ListByConversation(r.Context(), service.ListMessagesInput{
		ConversationID: convID,
		UserID:         userID,
		Page:           page,
		PageSize:       pageSize,
		Since:          since,
		Until:          until,
	})
	if err != nil {
		writeAppError(w, h.log, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		invalidID(w, "message")
		return
	}

	msg, err := h.messages.GetByID(r.Context(), messageID, userID)
	if err != nil {
		writeAppError(w, h.log, "get message", err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		invalidID(w, "message")
		return
	}

	if !h.messages.MarkRead(r.Context(), messageID, userID) {
		writeError(w, http.StatusConflict, string(apperr.CodeOperationFailed), "Message could not be marked as read")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		invalidID(w, "message")
		return
	}

	if err := h.messages.Delete(r.Context(), messageID, userID); err != nil {
		writeAppError(w, h.log, "delete message", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) Report(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		invalidID(w, "message")
		return
	}

	var input struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		invalidJSON(w)
		return
	}

	report, err := h.messages.Report(r.Context(), service.ReportMessageInput{
		MessageID:  messageID,
		ReporterID: userID,
		Reason:     input.Reason,
	})
	if err != nil {
		writeAppError(w, h.log, "report message", err)
		return
	}

	writeJSON(w, http.StatusCreated, report)
}

func (h *MessageHandler) Unread(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	msgs := h.messages.UnreadMessages(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(msgs),
		"messages": msgs,
	})
}

func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"count": h.messages.UnreadCount(r.Context(), userID)})
}
