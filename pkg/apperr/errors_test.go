package apperr

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	cause := errors.New("connection reset")

	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"validation", ErrSelfConversation, CodeValidation},
		{"not found", ErrMessageNotFound, CodeNotFound},
		{"unauthorized", ErrNotMessageOwner, CodeUnauthorized},
		{"operation failed", ErrConversationDeleteNoop, CodeOperationFailed},
		{"store", ErrStore("list messages", cause), CodeInfrastructure},
		{"wrapped app error", fmt.Errorf("ctx: %w", ErrNotParticipant), CodeUnauthorized},
		{"plain error", cause, CodeInfrastructure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CodeOf(tc.err))
		})
	}
}

func TestSentinelsMatchWithErrorsIs(t *testing.T) {
	err := pkgerrors.Wrap(NotFound("message not found"), "service")
	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.NotErrorIs(t, err, ErrConversationNotFound)
	assert.True(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(nil, CodeNotFound))
}

func TestMessageOfHidesCause(t *testing.T) {
	cause := errors.New("pq: relation messages does not exist")
	err := ErrStore("send message", cause)

	assert.Equal(t, "send message failed", MessageOf(err))
	assert.Contains(t, err.Error(), cause.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "something went wrong", MessageOf(cause))
}
