package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPairKey_OrderIndependent(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.Equal(t, PairKey(a, b), PairKey(b, a))
	assert.NotEqual(t, PairKey(a, b), PairKey(a, uuid.New()))
}

func TestConversation_Participants(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	c := Conversation{InitiatorID: a, ReceiverID: b}

	assert.True(t, c.HasParticipant(a))
	assert.True(t, c.HasParticipant(b))
	assert.False(t, c.HasParticipant(uuid.New()))

	assert.Equal(t, b, c.OtherParticipant(a))
	assert.Equal(t, a, c.OtherParticipant(b))
}

func TestConversation_DeleteMarkers(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	now := time.Now()
	c := Conversation{InitiatorID: a, ReceiverID: b, ReceiverDeletedAt: &now}

	assert.False(t, c.DeletedBy(a))
	assert.True(t, c.DeletedBy(b))
	assert.False(t, c.DeletedBy(uuid.New()))

	assert.False(t, c.Restore(a), "nothing to restore for a")
	assert.True(t, c.Restore(b))
	assert.Nil(t, c.ReceiverDeletedAt)
	assert.False(t, c.Restore(b))
}

func TestMessageType(t *testing.T) {
	assert.Equal(t, MessageTypeText, MessageType("").OrDefault())
	assert.Equal(t, MessageTypeImage, MessageTypeImage.OrDefault())

	for _, mt := range []MessageType{MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeAudio, MessageTypeVideo, MessageTypeSystem} {
		assert.True(t, mt.Valid(), mt)
	}
	assert.False(t, MessageType("sticker").Valid())
	assert.False(t, MessageType("").Valid())
}

func TestUserSummary_Name(t *testing.T) {
	u := UserSummary{Username: "sam"}
	assert.Equal(t, "sam", u.Name())
	u.DisplayName = "Sam S"
	assert.Equal(t, "Sam S", u.Name())
}
