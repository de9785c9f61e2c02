package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/domain"
)

const (
	EventMessageReceived     = "message.received"
	EventConversationUpdated = "conversation.updated"
	EventMessageDeleted      = "message.deleted"
	EventConversationRead    = "conversation.read"
)

const publishTimeout = 5 * time.Second

// Publisher pushes an event to every session subscribed to channelID.
// Channels are addressed by user id.
type Publisher interface {
	Publish(ctx context.Context, channelID, event string, payload any) error
}

type MessagePayload struct {
	ID               uuid.UUID          `json:"id"`
	ConversationID   uuid.UUID          `json:"conversation_id"`
	SenderID         uuid.UUID          `json:"sender_id"`
	ReceiverID       uuid.UUID          `json:"receiver_id"`
	Content          string             `json:"content"`
	MessageType      domain.MessageType `json:"message_type"`
	ReplyToMessageID *uuid.UUID         `json:"reply_to_message_id,omitempty"`
	IsRead           bool               `json:"is_read"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func NewMessagePayload(m *domain.Message) MessagePayload {
	return MessagePayload{
		ID:               m.ID,
		ConversationID:   m.ConversationID,
		SenderID:         m.SenderID,
		ReceiverID:       m.ReceiverID,
		Content:          m.Content,
		MessageType:      m.Type,
		ReplyToMessageID: m.ReplyToMessageID,
		IsRead:           m.IsRead,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

type ConversationUpdatedPayload struct {
	ConversationID       uuid.UUID       `json:"conversation_id"`
	UpdatedAt            time.Time       `json:"updated_at"`
	LastMessageTimestamp *time.Time      `json:"last_message_timestamp,omitempty"`
	LastMessage          *MessagePayload `json:"last_message,omitempty"`
}

type MessageDeletedPayload struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

type ConversationReadPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	ReaderID       uuid.UUID `json:"reader_id"`
	Count          int       `json:"count"`
}

// Broadcaster fans committed changes out to the participants' channels.
// Publish failures are logged and never returned.
type Broadcaster struct {
	pub Publisher
	log *zap.Logger
}

func NewBroadcaster(pub Publisher, log *zap.Logger) *Broadcaster {
	return &Broadcaster{pub: pub, log: log.With(zap.String("component", "broadcaster"))}
}

// NewMessage goes to the receiver and to the sender's other sessions.
func (b *Broadcaster) NewMessage(ctx context.Context, msg *domain.Message) {
	payload := NewMessagePayload(msg)
	for _, userID := range []uuid.UUID{msg.ReceiverID, msg.SenderID} {
		b.publish(ctx, userID, EventMessageReceived, payload, zap.String("message_id", msg.ID.String()))
	}
}

func (b *Broadcaster) ConversationUpdate(ctx context.Context, conv *domain.Conversation, last *domain.Message) {
	payload := ConversationUpdatedPayload{
		ConversationID:       conv.ID,
		UpdatedAt:            conv.UpdatedAt,
		LastMessageTimestamp: conv.LastMessageTimestamp,
	}
	if last != nil {
		p := NewMessagePayload(last)
		payload.LastMessage = &p
	}
	for _, userID := range []uuid.UUID{conv.InitiatorID, conv.ReceiverID} {
		b.publish(ctx, userID, EventConversationUpdated, payload, zap.String("conversation_id", conv.ID.String()))
	}
}

func (b *Broadcaster) MessageDeleted(ctx context.Context, msg *domain.Message) {
	payload := MessageDeletedPayload{ID: msg.ID, ConversationID: msg.ConversationID}
	for _, userID := range []uuid.UUID{msg.SenderID, msg.ReceiverID} {
		b.publish(ctx, userID, EventMessageDeleted, payload, zap.String("message_id", msg.ID.String()))
	}
}

// ConversationRead tells the other participant that reader caught up.
func (b *Broadcaster) ConversationRead(ctx context.Context, conv *domain.Conversation, reader uuid.UUID, count int) {
	payload := ConversationReadPayload{ConversationID: conv.ID, ReaderID: reader, Count: count}
	b.publish(ctx, conv.OtherParticipant(reader), EventConversationRead, payload, zap.String("conversation_id", conv.ID.String()))
}

func (b *Broadcaster) publish(ctx context.Context, userID uuid.UUID, event string, payload any, ref zap.Field) {
	if b.pub == nil {
		return
	}
	// The change is already committed; a caller hanging up must not stop the fan-out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.log.Error("publish panicked", zap.String("event", event), ref,
				zap.String("user_id", userID.String()), zap.String("panic", fmt.Sprint(r)))
		}
	}()

	if err := b.pub.Publish(ctx, userID.String(), event, payload); err != nil {
		b.log.Warn("publish failed", zap.String("event", event), ref,
			zap.String("user_id", userID.String()), zap.Error(err))
	}
}
