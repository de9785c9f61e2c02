package notification

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/domain"
)

var (
	ErrRecipientUnknown = errors.New("contact request recipient not found")
	ErrSenderUnknown    = errors.New("contact request sender not found")
)

// ContactNotifier emails a user the first time someone starts a conversation with them.
type ContactNotifier struct {
	dispatcher *Dispatcher
	enabled    bool
	baseURL    string
	log        *zap.Logger
}

func NewContactNotifier(d *Dispatcher, enabled bool, baseURL string, log *zap.Logger) *ContactNotifier {
	return &ContactNotifier{
		dispatcher: d,
		enabled:    enabled,
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log.With(zap.String("component", "notification.contact")),
	}
}

// NotifyFirstContact schedules the email and returns immediately. It returns
// nil when first-contact emails are disabled.
func (n *ContactNotifier) NotifyFirstContact(conv domain.Conversation, msg domain.Message) *Handle {
	if !n.enabled {
		return nil
	}
	return n.dispatcher.Submit("first_contact", func(ctx context.Context, scope *Scope) error {
		err := n.send(ctx, scope, conv, msg)
		if err != nil {
			n.log.Warn("first contact notification failed",
				zap.String("conversation_id", conv.ID.String()),
				zap.Error(err),
			)
		}
		return err
	})
}

// lookup treats a directory failure as an unknown user.
func (n *ContactNotifier) lookup(ctx context.Context, scope *Scope, id uuid.UUID) *domain.UserSummary {
	u, err := scope.Directory.GetUserByID(ctx, id)
	if err != nil {
		n.log.Warn("directory lookup failed", zap.String("user_id", id.String()), zap.Error(err))
		return nil
	}
	return u
}

func (n *ContactNotifier) send(ctx context.Context, scope *Scope, conv domain.Conversation, msg domain.Message) error {
	recipient := n.lookup(ctx, scope, msg.ReceiverID)
	if recipient == nil {
		return ErrRecipientUnknown
	}
	sender := n.lookup(ctx, scope, msg.SenderID)
	if sender == nil {
		return ErrSenderUnknown
	}

	req := domain.ContactRequestNotification{
		ConversationID: conv.ID,
		Recipient:      *recipient,
		Sender:         *sender,
		Preview:        msg.Content,
	}
	if n.baseURL != "" {
		req.ConversationURL = n.baseURL + "/messages/" + conv.ID.String()
	}

	sent, err := scope.Email.SendContactRequest(ctx, req)
	if err != nil {
		n.log.Warn("contact request email failed",
			zap.String("conversation_id", conv.ID.String()),
			zap.String("recipient_id", recipient.ID.String()),
			zap.Error(err),
		)
		sent = false
	}

	return scope.ContactRequests.Create(ctx, &domain.ContactRequest{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		EmailSent:      sent,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	})
}
