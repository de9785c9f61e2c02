package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/repository"
	"github.com/vedran77/dmcore/pkg/apperr"
	"github.com/vedran77/dmcore/pkg/validator"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 10000
)

type MessageService struct {
	messages      repository.MessageRepository
	reports       repository.ReportRepository
	convRepo      repository.ConversationRepository
	conversations *ConversationService
	creator       *MessageCreator
	broadcaster   *Broadcaster
	notifier      FirstContactNotifier
	log           *zap.Logger
}

func NewMessageService(
	messages repository.MessageRepository,
	reports repository.ReportRepository,
	convRepo repository.ConversationRepository,
	conversations *ConversationService,
	creator *MessageCreator,
	broadcaster *Broadcaster,
	log *zap.Logger,
) *MessageService {
	return &MessageService{
		messages:      messages,
		reports:       reports,
		convRepo:      convRepo,
		conversations: conversations,
		creator:       creator,
		broadcaster:   broadcaster,
		log:           log.With(zap.String("component", "message_service")),
	}
}

func (s *MessageService) SetNotifier(n FirstContactNotifier) {
	s.notifier = n
}

type SendMessageInput struct {
	ConversationID   uuid.UUID          `json:"conversation_id" validate:"required"`
	SenderID         uuid.UUID          `json:"-" validate:"required"`
	ReceiverID       uuid.UUID          `json:"receiver_id" validate:"required"`
	Content          string             `json:"content" validate:"notblank,max=4000"`
	MessageType      domain.MessageType `json:"message_type" validate:"omitempty,oneof=text image file audio video system"`
	ReplyToMessageID *uuid.UUID         `json:"reply_to_message_id,omitempty"`
}

type ListMessagesInput struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
	Page           int
	PageSize       int
	Since          *time.Time
	Until          *time.Time
}

type MessagePage struct {
	Messages []domain.Message `json:"messages"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Total    int              `json:"total"`
	HasMore  bool             `json:"has_more"`
}

type ReportMessageInput struct {
	MessageID  uuid.UUID `json:"-" validate:"required"`
	ReporterID uuid.UUID `json:"-" validate:"required"`
	Reason     string    `json:"reason" validate:"notblank,max=1000"`
}

// Send persists a message, then fans it out. Broadcast and notification
// failures never fail the send.
func (s *MessageService) Send(ctx context.Context, in SendMessageInput) (*domain.Message, error) {
	if errs := validator.Struct(in); errs.HasErrors() {
		return nil, apperr.Validation(errs.Error())
	}

	if !s.conversations.UserCanAccess(ctx, in.ConversationID, in.SenderID) {
		return nil, apperr.ErrNotParticipant
	}
	if in.ReplyToMessageID != nil && !s.canAccessMessage(ctx, *in.ReplyToMessageID, in.SenderID) {
		return nil, apperr.ErrReplyTargetForbidden
	}

	created, err := s.creator.Create(ctx, CreateMessageParams{
		ConversationID:   in.ConversationID,
		SenderID:         in.SenderID,
		Content:          in.Content,
		MessageType:      in.MessageType,
		ReplyToMessageID: in.ReplyToMessageID,
	})
	if err != nil {
		return nil, err
	}
	msg, conv := created.Message, created.Conversation

	if err := s.conversations.UpdateLastMessagePointer(ctx, conv.ID, msg.ID); err != nil {
		return nil, err
	}

	s.broadcaster.NewMessage(ctx, msg)
	s.broadcaster.ConversationUpdate(ctx, conv, msg)
	if created.First && s.notifier != nil && msg.SenderID == conv.InitiatorID {
		s.notifier.NotifyFirstContact(*conv, *msg)
	}

	return msg, nil
}

func (s *MessageService) GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Message, error) {
	if !s.canAccessMessage(ctx, id, userID) {
		return nil, apperr.ErrMessageNotFound
	}
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		s.log.Error("get message", zap.String("message_id", id.String()), zap.Error(err))
		return nil, apperr.ErrStore("get message", err)
	}
	if msg == nil {
		return nil, apperr.ErrMessageNotFound
	}
	return msg, nil
}

// ListByConversation returns one page in chronological order. Out-of-range
// paging input is clamped, not rejected.
func (s *MessageService) ListByConversation(ctx context.Context, in ListMessagesInput) (*MessagePage, error) {
	page, pageSize := clampPage(in.Page, in.PageSize)

	if !s.conversations.UserCanAccess(ctx, in.ConversationID, in.UserID) {
		return nil, apperr.ErrConversationNotFound
	}

	log := s.log.With(zap.String("conversation_id", in.ConversationID.String()))
	msgs, err := s.messages.List(ctx, in.ConversationID, repository.ListMessagesParams{
		Page:     page,
		PageSize: pageSize,
		Since:    in.Since,
		Until:    in.Until,
	})
	if err != nil {
		log.Error("list messages", zap.Error(err))
		return nil, apperr.ErrStore("list messages", err)
	}
	total, err := s.messages.Count(ctx, in.ConversationID)
	if err != nil {
		log.Error("count messages", zap.Error(err))
		return nil, apperr.ErrStore("list messages", err)
	}

	// Newest-first from the store; clients render oldest at the top.
	chronological := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		chronological[len(msgs)-1-i] = m
	}

	return &MessagePage{
		Messages: chronological,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		HasMore:  len(msgs) == pageSize && page*pageSize < total,
	}, nil
}

func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	// Keeps page*pageSize, and the store's offset, inside int.
	if maxPage := math.MaxInt / pageSize; page > maxPage {
		page = maxPage
	}
	return page, pageSize
}

// MarkRead reports false for a missing message, one addressed to someone
// else, or one that was already read.
func (s *MessageService) MarkRead(ctx context.Context, id, userID uuid.UUID) bool {
	ok, err := s.messages.MarkRead(ctx, id, userID, now())
	if err != nil {
		s.log.Error("mark message read", zap.String("message_id", id.String()), zap.Error(err))
		return false
	}
	return ok
}

// MarkConversationRead returns how many messages were flipped; zero is success.
func (s *MessageService) MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	log := s.log.With(zap.String("conversation_id", conversationID.String()), zap.String("user_id", userID.String()))

	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		log.Error("get conversation", zap.Error(err))
		return 0, apperr.ErrStore("mark conversation read", err)
	}
	if conv == nil || !conv.HasParticipant(userID) {
		return 0, apperr.ErrConversationNotFound
	}

	n, err := s.messages.MarkAllRead(ctx, conversationID, userID, now())
	if err != nil {
		log.Error("mark all read", zap.Error(err))
		return 0, apperr.ErrStore("mark conversation read", err)
	}
	if n > 0 {
		s.broadcaster.ConversationRead(ctx, conv, userID, n)
	}
	return n, nil
}

// Delete soft-deletes a message owned by userID.
func (s *MessageService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	log := s.log.With(zap.String("message_id", id.String()), zap.String("user_id", userID.String()))

	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		log.Error("get message", zap.Error(err))
		return apperr.ErrStore("delete message", err)
	}
	if msg == nil {
		return apperr.ErrMessageNotFound
	}

	owns, err := s.messages.UserOwns(ctx, id, userID)
	if err != nil {
		log.Error("check ownership", zap.Error(err))
		return apperr.ErrStore("delete message", err)
	}
	if !owns {
		return apperr.ErrNotMessageOwner
	}

	deleted, err := s.messages.SoftDelete(ctx, id, userID, now())
	if err != nil {
		log.Error("soft delete message", zap.Error(err))
		return apperr.ErrStore("delete message", err)
	}
	if !deleted {
		return apperr.ErrMessageDeleteNoop
	}

	s.broadcaster.MessageDeleted(ctx, msg)
	return nil
}

// Report flags a message for moderation. Reporting your own message is allowed.
func (s *MessageService) Report(ctx context.Context, in ReportMessageInput) (*domain.MessageReport, error) {
	if errs := validator.Struct(in); errs.HasErrors() {
		return nil, apperr.Validation(errs.Error())
	}
	if !s.canAccessMessage(ctx, in.MessageID, in.ReporterID) {
		return nil, apperr.ErrMessageNotFound
	}

	report := &domain.MessageReport{
		ID:         uuid.New(),
		MessageID:  in.MessageID,
		ReporterID: in.ReporterID,
		Reason:     in.Reason,
		CreatedAt:  now(),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		s.log.Error("create report", zap.String("message_id", in.MessageID.String()), zap.Error(err))
		return nil, apperr.ErrStore("report message", err)
	}
	return report, nil
}

func (s *MessageService) UnreadCount(ctx context.Context, userID uuid.UUID) int {
	n, err := s.messages.CountUnreadForUser(ctx, userID)
	if err != nil {
		s.log.Error("count unread", zap.String("user_id", userID.String()), zap.Error(err))
		return 0
	}
	return n
}

func (s *MessageService) UnreadMessages(ctx context.Context, userID uuid.UUID) []domain.Message {
	msgs, err := s.messages.ListUnreadForUser(ctx, userID)
	if err != nil {
		s.log.Error("list unread", zap.String("user_id", userID.String()), zap.Error(err))
		return []domain.Message{}
	}
	if msgs == nil {
		return []domain.Message{}
	}
	return msgs
}

func (s *MessageService) canAccessMessage(ctx context.Context, id, userID uuid.UUID) bool {
	ok, err := s.messages.UserCanAccess(ctx, id, userID)
	if err != nil {
		s.log.Error("check message access",
			zap.String("message_id", id.String()), zap.String("user_id", userID.String()), zap.Error(err))
		return false
	}
	return ok
}
