package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/repository"
	"github.com/vedran77/dmcore/pkg/apperr"
)

type CreateMessageParams struct {
	ConversationID   uuid.UUID
	SenderID         uuid.UUID
	Content          string
	MessageType      domain.MessageType
	ReplyToMessageID *uuid.UUID
}

// CreatedMessage is the outcome of one committed insert. First is true when
// the conversation had never carried a message before this one.
type CreatedMessage struct {
	Message      *domain.Message
	Conversation *domain.Conversation
	First        bool
}

// MessageCreator is the only writer of a conversation's last-message pointer
// together with the message row it points at.
type MessageCreator struct {
	tx  repository.Transactor
	log *zap.Logger
}

func NewMessageCreator(tx repository.Transactor, log *zap.Logger) *MessageCreator {
	return &MessageCreator{tx: tx, log: log.With(zap.String("component", "message_creator"))}
}

// Create inserts the message and moves the conversation pointer in one
// transaction. Content is stored as given.
func (c *MessageCreator) Create(ctx context.Context, p CreateMessageParams) (*CreatedMessage, error) {
	var out *CreatedMessage
	err := c.tx.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cv, err := tx.Conversations().GetByIDForUpdate(ctx, p.ConversationID)
		if err != nil {
			return err
		}
		if cv == nil {
			return apperr.ErrUnknownConversation
		}
		if !cv.HasParticipant(p.SenderID) {
			return apperr.ErrNotParticipant
		}

		// The pointer survives message deletes, so an empty one means nothing
		// was ever sent here.
		first := cv.LastMessageID == nil

		// Taken under the row lock so pointer timestamps never go backwards.
		at := now()
		m := &domain.Message{
			ID:               uuid.New(),
			ConversationID:   cv.ID,
			SenderID:         p.SenderID,
			ReceiverID:       cv.OtherParticipant(p.SenderID),
			Content:          p.Content,
			Type:             p.MessageType.OrDefault(),
			ReplyToMessageID: p.ReplyToMessageID,
			CreatedAt:        at,
			UpdatedAt:        at,
		}
		if err := tx.Messages().Create(ctx, m); err != nil {
			return err
		}
		if _, err := tx.Conversations().UpdateLastMessage(ctx, cv.ID, m.ID, at); err != nil {
			return err
		}

		msgID, ts := m.ID, at
		cv.LastMessageID = &msgID
		cv.LastMessageTimestamp = &ts
		cv.UpdatedAt = at
		out = &CreatedMessage{Message: m, Conversation: cv, First: first}
		return nil
	})
	if err != nil {
		var appErr *apperr.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		c.log.Error("create message",
			zap.String("conversation_id", p.ConversationID.String()),
			zap.String("sender_id", p.SenderID.String()),
			zap.Error(err))
		return nil, apperr.ErrStore("create message", err)
	}
	return out, nil
}
