package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	dirmocks "github.com/vedran77/dmcore/internal/directory/mocks"
	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/repository"
	"github.com/vedran77/dmcore/internal/repository/memory"
	"github.com/vedran77/dmcore/pkg/apperr"
)

func TestGetOrCreate_PairIsUnordered(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.convs.GetOrCreate(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	again, err := f.convs.GetOrCreate(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	reversed, err := f.convs.GetOrCreate(ctx, f.bob.ID, f.alice.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.ID, reversed.ID)
	assert.Equal(t, f.alice.ID, reversed.InitiatorID)
	assert.Equal(t, f.bob.ID, reversed.ReceiverID)
	assert.Equal(t, 1, f.store.ConversationCount())
}

func TestGetOrCreate_ConcurrentCallersShareOneRow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 40)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := f.alice.ID, f.bob.ID
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := f.convs.GetOrCreate(ctx, a, b)
			if assert.NoError(t, err) {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, f.store.ConversationCount())
}

// staleReads hides existing rows from the first n GetByPair calls, as a
// concurrent inserter would.
type staleReads struct {
	repository.ConversationRepository
	remaining atomic.Int32
}

func (r *staleReads) GetByPair(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error) {
	if r.remaining.Add(-1) >= 0 {
		return nil, nil
	}
	return r.ConversationRepository.GetByPair(ctx, a, b)
}

func TestGetOrCreate_InsertConflictReturnsWinner(t *testing.T) {
	store := memory.New()
	alice, bob := uuid.New(), uuid.New()
	winner := &domain.Conversation{ID: uuid.New(), InitiatorID: bob, ReceiverID: alice, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	require.NoError(t, store.Conversations().Create(context.Background(), winner))

	repo := &staleReads{ConversationRepository: store.Conversations()}
	repo.remaining.Store(1)
	svc := NewConversationService(repo, store.Messages(), nil, zap.NewNop())

	conv, err := svc.GetOrCreate(context.Background(), alice, bob)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, conv.ID)
	assert.Equal(t, 1, store.ConversationCount())
}

func TestGetOrCreate_RestoresRequesterSide(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	conv := f.conversation(t, f.alice, f.bob)

	require.NoError(t, f.convs.Delete(ctx, conv.ID, f.alice.ID))
	require.NoError(t, f.convs.Delete(ctx, conv.ID, f.bob.ID))
	assert.Empty(t, f.convs.ListForUser(ctx, f.alice.ID))

	restored, err := f.convs.GetOrCreate(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, restored.ID)
	assert.Equal(t, 1, f.store.ConversationCount())

	stored := f.stored(t, conv.ID)
	assert.False(t, stored.DeletedBy(f.alice.ID))
	assert.True(t, stored.DeletedBy(f.bob.ID), "the other side keeps its marker")
	assert.Len(t, f.convs.ListForUser(ctx, f.alice.ID), 1)
	assert.Empty(t, f.convs.ListForUser(ctx, f.bob.ID))
}

func TestGetOrCreate_RejectsSelfAndMissingIDs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.convs.GetOrCreate(ctx, f.alice.ID, f.alice.ID)
	assert.ErrorIs(t, err, apperr.ErrSelfConversation)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	_, err = f.convs.GetOrCreate(ctx, uuid.Nil, f.bob.ID)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	assert.Zero(t, f.store.ConversationCount())
}

func TestGetOrCreate_StoreFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.store.FailOn("conversations.GetByPair", errors.New("connection refused"))

	_, err := f.convs.GetOrCreate(context.Background(), f.alice.ID, f.bob.ID)

	assert.True(t, apperr.IsCode(err, apperr.CodeInfrastructure))
	assert.NotContains(t, apperr.MessageOf(err), "connection refused")
}

func TestCreateConversation_WithInitialMessage(t *testing.T) {
	f := newFixture(t, nil)

	conv, err := f.convs.CreateConversation(context.Background(), CreateConversationInput{
		InitiatorID:    f.alice.ID,
		ReceiverID:     f.bob.ID,
		InitialMessage: "hello",
	})
	require.NoError(t, err)

	require.NotNil(t, conv.LastMessageID)
	assert.Equal(t, 1, f.store.MessageCount())
	assert.Equal(t, f.bob.ID, conv.OtherUserID)
	assert.Equal(t, "bob", conv.OtherUserUsername)
	assert.Equal(t, "bob Display", conv.OtherUserDisplayName)
}

func TestCreateConversation_EnrichmentFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := dirmocks.NewMockClient(ctrl)
	dir.EXPECT().GetUserByID(gomock.Any(), gomock.Any()).Return(nil, errors.New("directory unavailable")).AnyTimes()

	store := memory.New()
	svc := NewConversationService(store.Conversations(), store.Messages(), dir, zap.NewNop())
	alice, bob := uuid.New(), uuid.New()

	conv, err := svc.CreateConversation(context.Background(), CreateConversationInput{InitiatorID: alice, ReceiverID: bob})
	require.NoError(t, err)
	assert.Equal(t, bob, conv.OtherUserID)
	assert.Empty(t, conv.OtherUserUsername)
	assert.Equal(t, 1, store.ConversationCount())
}

func TestConversationGetByID(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	conv := f.conversation(t, f.alice, f.bob)
	f.seed(t, conv, f.alice.ID, "one", time.Now().UTC())
	f.seed(t, conv, f.alice.ID, "two", time.Now().UTC())

	got, err := f.convs.GetByID(ctx, conv.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, got.OtherUserID)
	assert.Equal(t, "alice Display", got.OtherUserDisplayName)
	assert.Equal(t, 2, got.UnreadCount)

	_, err = f.convs.GetByID(ctx, conv.ID, f.carol.ID)
	assert.ErrorIs(t, err, apperr.ErrConversationNotFound)

	_, err = f.convs.GetByID(ctx, uuid.New(), f.bob.ID)
	assert.ErrorIs(t, err, apperr.ErrConversationNotFound)
}

func TestConversationLookup_SkipsDirectory(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := memory.New()
	alice, bob, carol := newUser("alice"), newUser("bob"), newUser("carol")
	// No expectations: any directory call fails the test.
	svc := NewConversationService(store.Conversations(), store.Messages(), dirmocks.NewMockClient(ctrl), zap.NewNop())
	ctx := context.Background()

	conv, err := svc.GetOrCreate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	got, err := svc.Lookup(ctx, conv.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Empty(t, got.OtherUserDisplayName)

	_, err = svc.Lookup(ctx, conv.ID, carol.ID)
	assert.ErrorIs(t, err, apperr.ErrConversationNotFound)
}

func TestConversationDelete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	conv := f.conversation(t, f.alice, f.bob)

	err := f.convs.Delete(ctx, conv.ID, f.carol.ID)
	assert.ErrorIs(t, err, apperr.ErrConversationNotFound)

	err = f.convs.Delete(ctx, uuid.New(), f.alice.ID)
	assert.ErrorIs(t, err, apperr.ErrConversationNotFound)

	require.NoError(t, f.convs.Delete(ctx, conv.ID, f.alice.ID))

	err = f.convs.Delete(ctx, conv.ID, f.alice.ID)
	assert.ErrorIs(t, err, apperr.ErrConversationDeleteNoop)
	assert.True(t, apperr.IsCode(err, apperr.CodeOperationFailed))

	assert.True(t, f.convs.UserCanAccess(ctx, conv.ID, f.alice.ID), "delete only hides the conversation")
}

func TestListForUser_NewestActivityFirst(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	withBob := f.conversation(t, f.alice, f.bob)
	withCarol := f.conversation(t, f.alice, f.carol)

	f.send(t, withBob, f.bob, "older")
	time.Sleep(2 * time.Millisecond)
	f.send(t, withCarol, f.carol, "newer")

	list := f.convs.ListForUser(ctx, f.alice.ID)
	require.Len(t, list, 2)
	assert.Equal(t, withCarol.ID, list[0].ID)
	assert.Equal(t, withBob.ID, list[1].ID)
	assert.Equal(t, 1, list[0].UnreadCount)

	f.store.FailOn("conversations.ListForUser", errors.New("boom"))
	assert.NotNil(t, f.convs.ListForUser(ctx, f.alice.ID))
	assert.Empty(t, f.convs.ListForUser(ctx, f.alice.ID))
}

func TestConversationStats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	withBob := f.conversation(t, f.alice, f.bob)
	withCarol := f.conversation(t, f.carol, f.alice)

	f.send(t, withBob, f.bob, "hi")
	f.send(t, withBob, f.bob, "there")
	f.send(t, withBob, f.alice, "yo")
	f.send(t, withCarol, f.carol, "hey")

	stats := f.convs.Stats(ctx, f.alice.ID)
	assert.Equal(t, domain.ConversationStats{
		TotalConversations:      2,
		ConversationsWithUnread: 2,
		TotalMessages:           4,
		TotalUnreadMessages:     3,
	}, stats)

	assert.Zero(t, f.convs.Stats(ctx, uuid.New()))

	f.store.FailOn("messages.CountForUser", errors.New("boom"))
	assert.Zero(t, f.convs.Stats(ctx, f.alice.ID))
}

func TestUpdateLastMessagePointer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	conv := f.conversation(t, f.alice, f.bob)
	base := time.Now().UTC().Truncate(time.Microsecond)
	older := f.seed(t, conv, f.alice.ID, "older", base)
	newer := f.seed(t, conv, f.bob.ID, "newer", base.Add(time.Second))

	t.Run("sets the pointer", func(t *testing.T) {
		require.NoError(t, f.convs.UpdateLastMessagePointer(ctx, conv.ID, newer.ID))
		stored := f.stored(t, conv.ID)
		assert.Equal(t, newer.ID, *stored.LastMessageID)
		assert.True(t, newer.CreatedAt.Equal(*stored.LastMessageTimestamp))
	})

	t.Run("never moves backwards", func(t *testing.T) {
		require.NoError(t, f.convs.UpdateLastMessagePointer(ctx, conv.ID, older.ID))
		assert.Equal(t, newer.ID, *f.stored(t, conv.ID).LastMessageID)
	})

	t.Run("is idempotent", func(t *testing.T) {
		require.NoError(t, f.convs.UpdateLastMessagePointer(ctx, conv.ID, newer.ID))
		assert.Equal(t, newer.ID, *f.stored(t, conv.ID).LastMessageID)
	})

	t.Run("missing rows are a no-op", func(t *testing.T) {
		assert.NoError(t, f.convs.UpdateLastMessagePointer(ctx, conv.ID, uuid.New()))
		assert.NoError(t, f.convs.UpdateLastMessagePointer(ctx, uuid.New(), newer.ID))
		assert.Equal(t, newer.ID, *f.stored(t, conv.ID).LastMessageID)
	})

	t.Run("write failure is returned", func(t *testing.T) {
		f.store.FailOn("conversations.UpdateLastMessage", errors.New("deadlock detected"))
		defer f.store.ClearFailures()

		err := f.convs.UpdateLastMessagePointer(ctx, conv.ID, newer.ID)
		assert.True(t, apperr.IsCode(err, apperr.CodeInfrastructure))
	})
}

// gatedConversations holds GetByPair until released and then honours the
// caller's context the way a database driver would.
type gatedConversations struct {
	repository.ConversationRepository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedConversations) GetByPair(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.ConversationRepository.GetByPair(ctx, a, b)
}

func TestGetOrCreate_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store := memory.New()
	alice, bob := newUser("alice"), newUser("bob")
	gated := &gatedConversations{
		ConversationRepository: store.Conversations(),
		entered:                make(chan struct{}),
		release:                make(chan struct{}),
	}
	svc := NewConversationService(gated, store.Messages(), nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.GetOrCreate(ctx, alice.ID, bob.ID)
		firstErr <- err
	}()
	<-gated.entered

	type result struct {
		conv *domain.Conversation
		err  error
	}
	second := make(chan result, 1)
	go func() {
		conv, err := svc.GetOrCreate(context.Background(), alice.ID, bob.ID)
		second <- result{conv, err}
	}()

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(gated.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, alice.ID, res.conv.InitiatorID)
	assert.Equal(t, 1, store.ConversationCount())
}
