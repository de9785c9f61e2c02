package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeAudio  MessageType = "audio"
	MessageTypeVideo  MessageType = "video"
	MessageTypeSystem MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeAudio, MessageTypeVideo, MessageTypeSystem:
		return true
	}
	return false
}

// OrDefault maps the zero value to text.
func (t MessageType) OrDefault() MessageType {
	if t == "" {
		return MessageTypeText
	}
	return t
}

type Message struct {
	ID               uuid.UUID   `json:"id"`
	ConversationID   uuid.UUID   `json:"conversation_id"`
	SenderID         uuid.UUID   `json:"sender_id"`
	ReceiverID       uuid.UUID   `json:"receiver_id"`
	Content          string      `json:"content"`
	Type             MessageType `json:"message_type"`
	ReplyToMessageID *uuid.UUID  `json:"reply_to_message_id,omitempty"`
	IsRead           bool        `json:"is_read"`
	DeletedAt        *time.Time  `json:"-"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// MessageReport records a user flagging a message for moderation.
type MessageReport struct {
	ID         uuid.UUID `json:"id"`
	MessageID  uuid.UUID `json:"message_id"`
	ReporterID uuid.UUID `json:"reporter_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}
