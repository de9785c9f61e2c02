package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/directory"
	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/notification"
	"github.com/vedran77/dmcore/internal/repository/memory"
	"github.com/vedran77/dmcore/internal/service/mocks"
)

type published struct {
	channel string
	event   string
	payload any
}

type eventLog struct {
	mu     sync.Mutex
	events []published
}

func (l *eventLog) add(p published) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, p)
}

func (l *eventLog) named(event string) []published {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []published
	for _, e := range l.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type firstContact struct {
	conv domain.Conversation
	msg  domain.Message
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []firstContact
}

func (n *fakeNotifier) NotifyFirstContact(conv domain.Conversation, msg domain.Message) *notification.Handle {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, firstContact{conv, msg})
	return nil
}

func (n *fakeNotifier) Calls() []firstContact {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]firstContact(nil), n.calls...)
}

type fixture struct {
	store    *memory.Store
	dir      *directory.Static
	events   *eventLog
	notifier *fakeNotifier
	convs    *ConversationService
	msgs     *MessageService
	creator  *MessageCreator

	alice domain.UserSummary
	bob   domain.UserSummary
	carol domain.UserSummary
}

func newUser(name string) domain.UserSummary {
	return domain.UserSummary{ID: uuid.New(), Email: name + "@test.dev", Username: name, DisplayName: name + " Display"}
}

// newFixture wires the services over the in-memory store. A non-nil pubErr
// makes every publish fail.
func newFixture(t *testing.T, pubErr error) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		store:    memory.New(),
		events:   &eventLog{},
		notifier: &fakeNotifier{},
		alice:    newUser("alice"),
		bob:      newUser("bob"),
		carol:    newUser("carol"),
	}
	f.dir = directory.NewStatic(f.alice, f.bob, f.carol)

	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().
		DoAndReturn(func(_ context.Context, channel, event string, payload any) error {
			f.events.add(published{channel, event, payload})
			return pubErr
		})

	log := zap.NewNop()
	f.convs = NewConversationService(f.store.Conversations(), f.store.Messages(), f.dir, log)
	f.creator = NewMessageCreator(f.store, log)
	f.msgs = NewMessageService(
		f.store.Messages(),
		f.store.Reports(),
		f.store.Conversations(),
		f.convs,
		f.creator,
		NewBroadcaster(pub, log),
		log,
	)
	f.msgs.SetNotifier(f.notifier)
	f.convs.SetMessageSender(f.msgs)
	return f
}

func (f *fixture) conversation(t *testing.T, a, b domain.UserSummary) *domain.Conversation {
	t.Helper()
	conv, err := f.convs.GetOrCreate(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	return conv
}

func (f *fixture) send(t *testing.T, conv *domain.Conversation, from domain.UserSummary, content string) *domain.Message {
	t.Helper()
	msg, err := f.msgs.Send(context.Background(), SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       from.ID,
		ReceiverID:     conv.OtherParticipant(from.ID),
		Content:        content,
	})
	require.NoError(t, err)
	return msg
}

// seed writes a message straight to the store with a fixed timestamp.
func (f *fixture) seed(t *testing.T, conv *domain.Conversation, from uuid.UUID, content string, at time.Time) *domain.Message {
	t.Helper()
	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       from,
		ReceiverID:     conv.OtherParticipant(from),
		Content:        content,
		Type:           domain.MessageTypeText,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	require.NoError(t, f.store.Messages().Create(context.Background(), msg))
	return msg
}

func (f *fixture) stored(t *testing.T, id uuid.UUID) *domain.Conversation {
	t.Helper()
	conv, err := f.store.Conversations().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, conv)
	return conv
}
