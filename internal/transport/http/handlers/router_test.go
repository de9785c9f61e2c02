package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/auth"
	"github.com/vedran77/dmcore/internal/directory"
	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/repository/memory"
	"github.com/vedran77/dmcore/internal/service"
	"github.com/vedran77/dmcore/pkg/apperr"
)

const testSecret = "handler-secret"

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, string, any) error { return nil }

type api struct {
	store *memory.Store
	h     http.Handler
	alice domain.UserSummary
	bob   domain.UserSummary
	carol domain.UserSummary
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := zap.NewNop()
	a := &api{
		store: memory.New(),
		alice: domain.UserSummary{ID: uuid.New(), Username: "alice", DisplayName: "Alice"},
		bob:   domain.UserSummary{ID: uuid.New(), Username: "bob", DisplayName: "Bob"},
		carol: domain.UserSummary{ID: uuid.New(), Username: "carol", DisplayName: "Carol"},
	}
	dir := directory.NewStatic(a.alice, a.bob, a.carol)

	convs := service.NewConversationService(a.store.Conversations(), a.store.Messages(), dir, log)
	msgs := service.NewMessageService(
		a.store.Messages(),
		a.store.Reports(),
		a.store.Conversations(),
		convs,
		service.NewMessageCreator(a.store, log),
		service.NewBroadcaster(nopPublisher{}, log),
		log,
	)
	convs.SetMessageSender(msgs)

	a.h = NewRouter(RouterConfig{
		Conversations:  convs,
		Messages:       msgs,
		Directory:      dir,
		JWTSecret:      testSecret,
		AllowedOrigins: []string{"http://localhost:3000"},
	}, log)
	return a
}

func (a *api) do(t *testing.T, as *domain.UserSummary, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if as != nil {
		tok, err := auth.Sign(as.ID, testSecret, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *api) startConversation(t *testing.T, from, to domain.UserSummary, first string) domain.Conversation {
	t.Helper()
	rec := a.do(t, &from, http.MethodPost, "/api/v1/conversations", map[string]string{
		"user_id":         to.ID.String(),
		"initial_message": first,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[domain.Conversation](t, rec)
}

func TestRouter_Health(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_RequiresToken(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, nil, http.MethodGet, "/api/v1/conversations", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConversationFlow(t *testing.T) {
	a := newAPI(t)

	conv := a.startConversation(t, a.alice, a.bob, "hello bob")
	assert.Equal(t, a.bob.ID, conv.OtherUserID)
	assert.Equal(t, "bob", conv.OtherUserUsername)
	require.NotNil(t, conv.LastMessageID)

	// Bob sees one unread conversation.
	rec := a.do(t, &a.bob, http.MethodGet, "/api/v1/conversations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]domain.Conversation](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].UnreadCount)

	// Bob replies.
	rec = a.do(t, &a.bob, http.MethodPost, "/api/v1/conversations/"+conv.ID.String()+"/messages", map[string]any{
		"content":             "hi alice",
		"reply_to_message_id": conv.LastMessageID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reply := decode[domain.Message](t, rec)
	assert.Equal(t, a.alice.ID, reply.ReceiverID)
	assert.Equal(t, conv.LastMessageID, reply.ReplyToMessageID)

	rec = a.do(t, &a.alice, http.MethodGet, "/api/v1/conversations/"+conv.ID.String()+"/messages?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[service.MessagePage](t, rec)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "hello bob", page.Messages[0].Content)
	assert.Equal(t, "hi alice", page.Messages[1].Content)
	assert.False(t, page.HasMore)

	rec = a.do(t, &a.bob, http.MethodPost, "/api/v1/conversations/"+conv.ID.String()+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":1}`, rec.Body.String())

	rec = a.do(t, &a.alice, http.MethodGet, "/api/v1/messages/unread/count", nil)
	assert.JSONEq(t, `{"count":1}`, rec.Body.String())
}

func TestConversation_ErrorMapping(t *testing.T) {
	a := newAPI(t)
	conv := a.startConversation(t, a.alice, a.bob, "")

	cases := []struct {
		name   string
		as     domain.UserSummary
		method string
		path   string
		body   any
		status int
		code   apperr.Code
	}{
		{"self conversation", a.alice, http.MethodPost, "/api/v1/conversations", map[string]string{"user_id": a.alice.ID.String()}, http.StatusBadRequest, apperr.CodeValidation},
		{"outsider get", a.carol, http.MethodGet, "/api/v1/conversations/" + conv.ID.String(), nil, http.StatusNotFound, apperr.CodeNotFound},
		{"outsider delete", a.carol, http.MethodDelete, "/api/v1/conversations/" + conv.ID.String(), nil, http.StatusNotFound, apperr.CodeNotFound},
		{"blank message", a.alice, http.MethodPost, "/api/v1/conversations/" + conv.ID.String() + "/messages", map[string]string{"content": "   "}, http.StatusBadRequest, apperr.CodeValidation},
		{"bad page", a.alice, http.MethodGet, "/api/v1/conversations/" + conv.ID.String() + "/messages?page=x", nil, http.StatusBadRequest, apperr.CodeValidation},
		{"bad since", a.alice, http.MethodGet, "/api/v1/conversations/" + conv.ID.String() + "/messages?since=yesterday", nil, http.StatusBadRequest, apperr.CodeValidation},
		{"bad id", a.alice, http.MethodGet, "/api/v1/conversations/nope", nil, http.StatusBadRequest, apperr.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := a.do(t, &tc.as, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, string(tc.code), decode[errorBody](t, rec).Error.Code)
		})
	}
}

func TestConversation_DeleteTwiceConflicts(t *testing.T) {
	a := newAPI(t)
	conv := a.startConversation(t, a.alice, a.bob, "")

	rec := a.do(t, &a.alice, http.MethodDelete, "/api/v1/conversations/"+conv.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, &a.alice, http.MethodDelete, "/api/v1/conversations/"+conv.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMessage_Lifecycle(t *testing.T) {
	a := newAPI(t)
	conv := a.startConversation(t, a.alice, a.bob, "first")
	msgPath := "/api/v1/messages/" + conv.LastMessageID.String()

	rec := a.do(t, &a.carol, http.MethodGet, msgPath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, &a.alice, http.MethodPost, msgPath+"/read", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "sender can't mark own message read")

	rec = a.do(t, &a.bob, http.MethodPost, msgPath+"/read", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, &a.bob, http.MethodPost, msgPath+"/report", map[string]string{"reason": "spam"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, a.store.ReportRecords(), 1)

	rec = a.do(t, &a.bob, http.MethodDelete, msgPath, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(apperr.CodeUnauthorized), decode[errorBody](t, rec).Error.Code)

	rec = a.do(t, &a.alice, http.MethodDelete, msgPath, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, &a.alice, http.MethodGet, msgPath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMessage_StoreFailureHidesCause(t *testing.T) {
	a := newAPI(t)
	conv := a.startConversation(t, a.alice, a.bob, "")
	a.store.FailOn("messages.List", assert.AnError)

	rec := a.do(t, &a.alice, http.MethodGet, "/api/v1/conversations/"+conv.ID.String()+"/messages", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, string(apperr.CodeInfrastructure), body.Error.Code)
	assert.NotContains(t, body.Error.Message, assert.AnError.Error())
}

func TestUserSearch_ExcludesCaller(t *testing.T) {
	a := newAPI(t)

	rec := a.do(t, &a.alice, http.MethodGet, "/api/v1/users/search?q=a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]domain.UserSummary](t, rec)

	var names []string
	for _, u := range users {
		names = append(names, u.Username)
	}
	assert.Equal(t, []string{"carol"}, names)

	rec = a.do(t, &a.alice, http.MethodGet, "/api/v1/users/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
