package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/repository"
)

type ConversationRepo struct {
	s    *Store
	undo *undoLog
}

func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "conversations.Create"); err != nil {
		return err
	}
	key := domain.PairKey(conv.InitiatorID, conv.ReceiverID)
	if _, taken := r.s.pairs[key]; taken {
		return repository.ErrConversationExists
	}
	r.undo.pair(r.s, key)
	r.undo.conversation(r.s, conv.ID)
	r.s.pairs[key] = conv.ID
	r.s.conversations[conv.ID] = *conv
	return nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "conversations.GetByID"); err != nil {
		return nil, err
	}
	return r.get(id), nil
}

// GetByIDForUpdate needs no row lock: WithinTx already serialises writers.
func (r *ConversationRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "conversations.GetByIDForUpdate"); err != nil {
		return nil, err
	}
	return r.get(id), nil
}

func (r *ConversationRepo) GetByPair(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "conversations.GetByPair"); err != nil {
		return nil, err
	}
	id, ok := r.s.pairs[domain.PairKey(userA, userB)]
	if !ok {
		return nil, nil
	}
	return r.get(id), nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "conversations.ListForUser"); err != nil {
		return nil, err
	}
	var convs []domain.Conversation
	for _, c := range r.s.conversations {
		if c.HasParticipant(userID) && !c.DeletedBy(userID) {
			convs = append(convs, c)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return activity(convs[i]).After(activity(convs[j]))
	})
	return convs, nil
}

func activity(c domain.Conversation) time.Time {
	if c.LastMessageTimestamp != nil {
		return *c.LastMessageTimestamp
	}
	return c.CreatedAt
}

func (r *ConversationRepo) Update(ctx context.Context, conv *domain.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "conversations.Update"); err != nil {
		return err
	}
	stored, ok := r.s.conversations[conv.ID]
	if !ok {
		return nil
	}
	stored.LastMessageID = conv.LastMessageID
	stored.LastMessageTimestamp = conv.LastMessageTimestamp
	stored.InitiatorDeletedAt = conv.InitiatorDeletedAt
	stored.ReceiverDeletedAt = conv.ReceiverDeletedAt
	stored.UpdatedAt = conv.UpdatedAt
	r.undo.conversation(r.s, conv.ID)
	r.s.conversations[conv.ID] = stored
	return nil
}

func (r *ConversationRepo) UpdateLastMessage(ctx context.Context, id, messageID uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "conversations.UpdateLastMessage"); err != nil {
		return false, err
	}
	c, ok := r.s.conversations[id]
	if !ok {
		return false, nil
	}
	if c.LastMessageTimestamp == nil || !c.LastMessageTimestamp.After(at) {
		mid, ts := messageID, at
		c.LastMessageID = &mid
		c.LastMessageTimestamp = &ts
	}
	if at.After(c.UpdatedAt) {
		c.UpdatedAt = at
	}
	r.undo.conversation(r.s, id)
	r.s.conversations[id] = c
	return true, nil
}

func (r *ConversationRepo) SoftDelete(ctx context.Context, id, byUserID uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "conversations.SoftDelete"); err != nil {
		return false, err
	}
	c, ok := r.s.conversations[id]
	if !ok || !c.HasParticipant(byUserID) || c.DeletedBy(byUserID) {
		return false, nil
	}
	ts := at
	if c.InitiatorID == byUserID {
		c.InitiatorDeletedAt = &ts
	} else {
		c.ReceiverDeletedAt = &ts
	}
	c.UpdatedAt = at
	r.undo.conversation(r.s, id)
	r.s.conversations[id] = c
	return true, nil
}

func (r *ConversationRepo) CountForUser(ctx context.Context, userID uuid.UUID, activeOnly bool) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "conversations.CountForUser"); err != nil {
		return 0, err
	}
	n := 0
	for _, c := range r.s.conversations {
		if !c.HasParticipant(userID) {
			continue
		}
		if activeOnly && c.DeletedBy(userID) {
			continue
		}
		n++
	}
	return n, nil
}

func (r *ConversationRepo) UserCanAccess(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "conversations.UserCanAccess"); err != nil {
		return false, err
	}
	c, ok := r.s.conversations[id]
	return ok && c.HasParticipant(userID), nil
}

// get must be called with r.s.mu held.
func (r *ConversationRepo) get(id uuid.UUID) *domain.Conversation {
	c, ok := r.s.conversations[id]
	if !ok {
		return nil
	}
	return &c
}

var _ repository.ConversationRepository = (*ConversationRepo)(nil)
