package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/dmcore/internal/domain"
)

// ErrConversationExists is returned by ConversationRepository.Create when the
// unordered participant pair already has a row.
var ErrConversationExists = errors.New("conversation for this pair already exists")

// Lookups return (nil, nil) when the row does not exist.
type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	GetByPair(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	Update(ctx context.Context, conv *domain.Conversation) error
	// UpdateLastMessage moves the pointer forward only; false when the conversation is missing.
	UpdateLastMessage(ctx context.Context, id, messageID uuid.UUID, at time.Time) (bool, error)
	SoftDelete(ctx context.Context, id, byUserID uuid.UUID, at time.Time) (bool, error)
	CountForUser(ctx context.Context, userID uuid.UUID, activeOnly bool) (int, error)
	UserCanAccess(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

type ListMessagesParams struct {
	Page     int
	PageSize int
	Since    *time.Time
	Until    *time.Time
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// List returns one page, newest first, of undeleted messages.
	List(ctx context.Context, conversationID uuid.UUID, params ListMessagesParams) ([]domain.Message, error)
	Count(ctx context.Context, conversationID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) (int, error)
	SoftDelete(ctx context.Context, id, byUserID uuid.UUID, at time.Time) (bool, error)
	UserCanAccess(ctx context.Context, id, userID uuid.UUID) (bool, error)
	UserOwns(ctx context.Context, id, userID uuid.UUID) (bool, error)

	CountUnreadInConversation(ctx context.Context, conversationID, userID uuid.UUID) (int, error)
	CountForUser(ctx context.Context, userID uuid.UUID) (int, error)
	CountUnreadForUser(ctx context.Context, userID uuid.UUID) (int, error)
	CountConversationsWithUnread(ctx context.Context, userID uuid.UUID) (int, error)
	ListUnreadForUser(ctx context.Context, userID uuid.UUID) ([]domain.Message, error)
	// ListUnread returns every undeleted unread message, oldest first.
	ListUnread(ctx context.Context) ([]domain.Message, error)
}

type ReportRepository interface {
	Create(ctx context.Context, report *domain.MessageReport) error
}

type ContactRequestRepository interface {
	Create(ctx context.Context, req *domain.ContactRequest) error
}

// Tx exposes repositories bound to one unit of work.
type Tx interface {
	Conversations() ConversationRepository
	Messages() MessageRepository
}

// Transactor runs fn atomically: every write made through tx commits together
// or not at all. A non-nil error from fn, or a cancelled ctx, rolls back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
