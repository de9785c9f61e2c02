package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the single thread between two users. The unordered
// participant pair is unique; delete markers hide it from one side only.
type Conversation struct {
	ID                   uuid.UUID  `json:"id"`
	InitiatorID          uuid.UUID  `json:"initiator_id"`
	ReceiverID           uuid.UUID  `json:"receiver_id"`
	LastMessageID        *uuid.UUID `json:"last_message_id,omitempty"`
	LastMessageTimestamp *time.Time `json:"last_message_timestamp,omitempty"`
	InitiatorDeletedAt   *time.Time `json:"-"`
	ReceiverDeletedAt    *time.Time `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	// Joined fields for frontend
	OtherUserID          uuid.UUID `json:"other_user_id,omitempty"`
	OtherUserUsername    string    `json:"other_username,omitempty"`
	OtherUserDisplayName string    `json:"other_display_name,omitempty"`
	UnreadCount          int       `json:"unread_count"`
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.InitiatorID == userID || c.ReceiverID == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.InitiatorID == userID {
		return c.ReceiverID
	}
	return c.InitiatorID
}

func (c *Conversation) DeletedBy(userID uuid.UUID) bool {
	switch userID {
	case c.InitiatorID:
		return c.InitiatorDeletedAt != nil
	case c.ReceiverID:
		return c.ReceiverDeletedAt != nil
	}
	return false
}

// Restore clears userID's delete marker. It reports whether anything changed.
func (c *Conversation) Restore(userID uuid.UUID) bool {
	switch {
	case userID == c.InitiatorID && c.InitiatorDeletedAt != nil:
		c.InitiatorDeletedAt = nil
	case userID == c.ReceiverID && c.ReceiverDeletedAt != nil:
		c.ReceiverDeletedAt = nil
	default:
		return false
	}
	return true
}

// PairKey is the order-independent identity of a participant pair.
func PairKey(a, b uuid.UUID) string {
	if a.String() > b.String() {
		a, b = b, a
	}
	return a.String() + ":" + b.String()
}

type ConversationStats struct {
	TotalConversations      int `json:"total_conversations"`
	ConversationsWithUnread int `json:"conversations_with_unread"`
	TotalMessages           int `json:"total_messages"`
	TotalUnreadMessages     int `json:"total_unread_messages"`
}
