// Package email renders and delivers the messaging notifications.
package email

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/domain"
)

var ErrNoRecipientAddress = errors.New("recipient has no email address")

// Client delivers notification emails. The bool reports whether the provider
// accepted the message.
type Client interface {
	SendUnreadDigest(ctx context.Context, summary domain.UnreadNotificationSummary) (bool, error)
	SendContactRequest(ctx context.Context, n domain.ContactRequestNotification) (bool, error)
}

// Noop renders every email and logs it instead of sending. Used when no
// provider key is configured.
type Noop struct {
	log *zap.Logger
}

func NewNoop(log *zap.Logger) *Noop {
	return &Noop{log: log.With(zap.String("component", "email.noop"))}
}

func (n *Noop) SendUnreadDigest(_ context.Context, summary domain.UnreadNotificationSummary) (bool, error) {
	msg, err := renderDigest(summary, "")
	if err != nil {
		return false, err
	}
	n.log.Info("digest email not sent",
		zap.String("recipient_id", summary.Recipient.ID.String()),
		zap.String("subject", msg.Subject),
		zap.Int("unread", summary.UnreadCount),
	)
	return false, nil
}

func (n *Noop) SendContactRequest(_ context.Context, req domain.ContactRequestNotification) (bool, error) {
	msg, err := renderContactRequest(req)
	if err != nil {
		return false, err
	}
	n.log.Info("contact request email not sent",
		zap.String("conversation_id", req.ConversationID.String()),
		zap.String("recipient_id", req.Recipient.ID.String()),
		zap.String("subject", msg.Subject),
	)
	return false, nil
}

var _ Client = (*Noop)(nil)
