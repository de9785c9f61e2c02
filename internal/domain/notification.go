package domain

import (
	"time"

	"github.com/google/uuid"
)

// UnreadNotificationSummary groups one recipient's unread messages for the daily digest.
type UnreadNotificationSummary struct {
	Recipient   UserSummary
	UnreadCount int
	SenderNames []string
}

type ContactRequestNotification struct {
	ConversationID  uuid.UUID
	Recipient       UserSummary
	Sender          UserSummary
	Preview         string
	ConversationURL string
}

// ContactRequest is the persisted trace of a first-contact email.
type ContactRequest struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	ReceiverID     uuid.UUID `json:"receiver_id"`
	EmailSent      bool      `json:"email_sent"`
	CreatedAt      time.Time `json:"created_at"`
}
