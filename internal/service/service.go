package service

import (
	"time"

	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/notification"
)

// MaxMessageLength is counted in characters, not bytes.
const MaxMessageLength = 4000

// Stored timestamps are UTC with microsecond precision, matching postgres.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// FirstContactNotifier is told about the opening message of a conversation.
type FirstContactNotifier interface {
	NotifyFirstContact(conv domain.Conversation, msg domain.Message) *notification.Handle
}
