package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vedran77/dmcore/internal/directory"
	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/repository"
	"github.com/vedran77/dmcore/pkg/apperr"
)

// InitialMessageSender delivers the optional first message of CreateConversation.
type InitialMessageSender interface {
	Send(ctx context.Context, in SendMessageInput) (*domain.Message, error)
}

type ConversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	directory     directory.Client
	sender        InitialMessageSender
	log           *zap.Logger

	pairs singleflight.Group
}

func NewConversationService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	dir directory.Client,
	log *zap.Logger,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		directory:     dir,
		log:           log.With(zap.String("component", "conversation_service")),
	}
}

func (s *ConversationService) SetMessageSender(sender InitialMessageSender) {
	s.sender = sender
}

type CreateConversationInput struct {
	InitiatorID    uuid.UUID `json:"-"`
	ReceiverID     uuid.UUID `json:"receiver_id"`
	InitialMessage string    `json:"initial_message,omitempty"`
}

// GetOrCreate returns the single conversation between requester and other,
// creating it or restoring it on requester's side as needed.
func (s *ConversationService) GetOrCreate(ctx context.Context, requester, other uuid.UUID) (*domain.Conversation, error) {
	if requester == uuid.Nil || other == uuid.Nil {
		return nil, apperr.ErrMissingParticipant
	}
	if requester == other {
		return nil, apperr.ErrSelfConversation
	}

	// Restoring depends on who asks, so the key is ordered.
	key := requester.String() + ">" + other.String()
	// The flight is shared, so it must outlive whichever caller started it.
	flight := context.WithoutCancel(ctx)
	ch := s.pairs.DoChan(key, func() (any, error) {
		return s.getOrCreate(flight, requester, other)
	})
	select {
	case <-ctx.Done():
		return nil, apperr.ErrStore("get conversation", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		conv := *res.Val.(*domain.Conversation)
		return &conv, nil
	}
}

func (s *ConversationService) getOrCreate(ctx context.Context, requester, other uuid.UUID) (*domain.Conversation, error) {
	log := s.log.With(zap.String("requester_id", requester.String()), zap.String("other_id", other.String()))

	conv, err := s.conversations.GetByPair(ctx, requester, other)
	if err != nil {
		log.Error("get conversation by pair", zap.Error(err))
		return nil, apperr.ErrStore("get conversation", err)
	}

	if conv == nil {
		at := now()
		conv = &domain.Conversation{
			ID:          uuid.New(),
			InitiatorID: requester,
			ReceiverID:  other,
			CreatedAt:   at,
			UpdatedAt:   at,
		}
		err := s.conversations.Create(ctx, conv)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, repository.ErrConversationExists) {
			log.Error("create conversation", zap.Error(err))
			return nil, apperr.ErrStore("create conversation", err)
		}

		// Lost the insert race: the row that won is the conversation.
		conv, err = s.conversations.GetByPair(ctx, requester, other)
		if err != nil || conv == nil {
			log.Error("re-read conversation after conflict", zap.Error(err))
			return nil, apperr.ErrStore("get conversation", err)
		}
	}

	if conv.Restore(requester) {
		conv.UpdatedAt = now()
		if err := s.conversations.Update(ctx, conv); err != nil {
			log.Error("restore conversation", zap.String("conversation_id", conv.ID.String()), zap.Error(err))
			return nil, apperr.ErrStore("restore conversation", err)
		}
	}
	return conv, nil
}

// CreateConversation resolves the pair and optionally sends an opening message.
func (s *ConversationService) CreateConversation(ctx context.Context, in CreateConversationInput) (*domain.Conversation, error) {
	conv, err := s.GetOrCreate(ctx, in.InitiatorID, in.ReceiverID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.InitialMessage) != "" && s.sender != nil {
		_, err := s.sender.Send(ctx, SendMessageInput{
			ConversationID: conv.ID,
			SenderID:       in.InitiatorID,
			ReceiverID:     in.ReceiverID,
			Content:        in.InitialMessage,
		})
		if err != nil {
			return nil, err
		}
		if fresh, err := s.conversations.GetByID(ctx, conv.ID); err != nil {
			s.log.Warn("reload conversation after initial message", zap.String("conversation_id", conv.ID.String()), zap.Error(err))
		} else if fresh != nil {
			conv = fresh
		}
	}

	s.enrich(ctx, conv, in.InitiatorID)
	return conv, nil
}

// GetByID hides conversations the user is not part of behind NotFound.
func (s *ConversationService) GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.Lookup(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	s.enrich(ctx, conv, userID)
	return conv, nil
}

// Lookup is GetByID without the display fields.
func (s *ConversationService) Lookup(ctx context.Context, id, userID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		s.log.Error("get conversation", zap.String("conversation_id", id.String()), zap.Error(err))
		return nil, apperr.ErrStore("get conversation", err)
	}
	if conv == nil || !conv.HasParticipant(userID) {
		return nil, apperr.ErrConversationNotFound
	}
	return conv, nil
}

// ListForUser returns the user's visible conversations, most recent activity first.
func (s *ConversationService) ListForUser(ctx context.Context, userID uuid.UUID) []domain.Conversation {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		s.log.Error("list conversations", zap.String("user_id", userID.String()), zap.Error(err))
		return []domain.Conversation{}
	}
	if convs == nil {
		return []domain.Conversation{}
	}
	for i := range convs {
		s.enrich(ctx, &convs[i], userID)
	}
	return convs
}

// Delete hides the conversation from userID only.
func (s *ConversationService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	log := s.log.With(zap.String("conversation_id", id.String()), zap.String("user_id", userID.String()))

	ok, err := s.conversations.UserCanAccess(ctx, id, userID)
	if err != nil {
		log.Error("check conversation access", zap.Error(err))
		return apperr.ErrStore("delete conversation", err)
	}
	if !ok {
		return apperr.ErrConversationNotFound
	}

	deleted, err := s.conversations.SoftDelete(ctx, id, userID, now())
	if err != nil {
		log.Error("soft delete conversation", zap.Error(err))
		return apperr.ErrStore("delete conversation", err)
	}
	if !deleted {
		return apperr.ErrConversationDeleteNoop
	}
	return nil
}

// Stats never fails; an unknown user or a store error yields zeros.
func (s *ConversationService) Stats(ctx context.Context, userID uuid.UUID) domain.ConversationStats {
	var (
		stats domain.ConversationStats
		err   error
	)
	if stats.TotalConversations, err = s.conversations.CountForUser(ctx, userID, true); err != nil {
		return s.zeroStats(userID, err)
	}
	if stats.ConversationsWithUnread, err = s.messages.CountConversationsWithUnread(ctx, userID); err != nil {
		return s.zeroStats(userID, err)
	}
	if stats.TotalMessages, err = s.messages.CountForUser(ctx, userID); err != nil {
		return s.zeroStats(userID, err)
	}
	if stats.TotalUnreadMessages, err = s.messages.CountUnreadForUser(ctx, userID); err != nil {
		return s.zeroStats(userID, err)
	}
	return stats
}

func (s *ConversationService) zeroStats(userID uuid.UUID, err error) domain.ConversationStats {
	s.log.Error("conversation stats", zap.String("user_id", userID.String()), zap.Error(err))
	return domain.ConversationStats{}
}

// UpdateLastMessagePointer points the conversation at messageID if that
// message is newer than the current pointer. Missing rows are a logged no-op;
// store failures are returned.
func (s *ConversationService) UpdateLastMessagePointer(ctx context.Context, conversationID, messageID uuid.UUID) error {
	log := s.log.With(zap.String("conversation_id", conversationID.String()), zap.String("message_id", messageID.String()))

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		log.Error("load message for pointer update", zap.Error(err))
		return apperr.ErrStore("update last message", err)
	}
	if msg == nil || msg.ConversationID != conversationID {
		log.Warn("pointer update skipped, message not in conversation")
		return nil
	}

	found, err := s.conversations.UpdateLastMessage(ctx, conversationID, msg.ID, msg.CreatedAt)
	if err != nil {
		log.Error("update last message pointer", zap.Error(err))
		return apperr.ErrStore("update last message", err)
	}
	if !found {
		log.Warn("pointer update skipped, conversation missing")
	}
	return nil
}

func (s *ConversationService) UserCanAccess(ctx context.Context, id, userID uuid.UUID) bool {
	ok, err := s.conversations.UserCanAccess(ctx, id, userID)
	if err != nil {
		s.log.Error("check conversation access",
			zap.String("conversation_id", id.String()), zap.String("user_id", userID.String()), zap.Error(err))
		return false
	}
	return ok
}

// enrich fills the viewer-relative display fields. Failures only log.
func (s *ConversationService) enrich(ctx context.Context, conv *domain.Conversation, viewer uuid.UUID) {
	conv.OtherUserID = conv.OtherParticipant(viewer)

	if s.directory != nil {
		other, err := s.directory.GetUserByID(ctx, conv.OtherUserID)
		if err != nil {
			s.log.Warn("enrich conversation", zap.String("conversation_id", conv.ID.String()), zap.Error(err))
		} else if other != nil {
			conv.OtherUserUsername = other.Username
			conv.OtherUserDisplayName = other.DisplayName
		}
	}

	unread, err := s.messages.CountUnreadInConversation(ctx, conv.ID, viewer)
	if err != nil {
		s.log.Warn("count unread", zap.String("conversation_id", conv.ID.String()), zap.Error(err))
		return
	}
	conv.UnreadCount = unread
}
