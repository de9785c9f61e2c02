package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/repository"
)

type MessageRepo struct {
	s    *Store
	undo *undoLog
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "messages.Create"); err != nil {
		return err
	}
	r.undo.message(r.s, msg.ID)
	r.s.messages[msg.ID] = *msg
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "messages.GetByID"); err != nil {
		return nil, err
	}
	msg, ok := r.s.messages[id]
	if !ok {
		return nil, nil
	}
	return &msg, nil
}

func (r *MessageRepo) List(ctx context.Context, conversationID uuid.UUID, params repository.ListMessagesParams) ([]domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "messages.List"); err != nil {
		return nil, err
	}
	all := r.filter(func(m domain.Message) bool {
		if m.ConversationID != conversationID || m.DeletedAt != nil {
			return false
		}
		if params.Since != nil && m.CreatedAt.Before(*params.Since) {
			return false
		}
		if params.Until != nil && m.CreatedAt.After(*params.Until) {
			return false
		}
		return true
	})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() > all[j].ID.String()
	})

	start := (params.Page - 1) * params.PageSize
	if start < 0 || start >= len(all) {
		return nil, nil
	}
	end := start + params.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (r *MessageRepo) Count(ctx context.Context, conversationID uuid.UUID) (int, error) {
	return r.count(ctx, "messages.Count", func(m domain.Message) bool {
		return m.ConversationID == conversationID && m.DeletedAt == nil
	})
}

func (r *MessageRepo) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "messages.MarkRead"); err != nil {
		return false, err
	}
	m, ok := r.s.messages[id]
	if !ok || !unreadFor(m, userID) {
		return false, nil
	}
	m.IsRead = true
	m.UpdatedAt = at
	r.undo.message(r.s, id)
	r.s.messages[id] = m
	return true, nil
}

func (r *MessageRepo) MarkAllRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "messages.MarkAllRead"); err != nil {
		return 0, err
	}
	n := 0
	for id, m := range r.s.messages {
		if m.ConversationID != conversationID || !unreadFor(m, userID) {
			continue
		}
		m.IsRead = true
		m.UpdatedAt = at
		r.undo.message(r.s, id)
		r.s.messages[id] = m
		n++
	}
	return n, nil
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id, byUserID uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "messages.SoftDelete"); err != nil {
		return false, err
	}
	m, ok := r.s.messages[id]
	if !ok || m.SenderID != byUserID || m.DeletedAt != nil {
		return false, nil
	}
	ts := at
	m.DeletedAt = &ts
	m.UpdatedAt = at
	r.undo.message(r.s, id)
	r.s.messages[id] = m
	return true, nil
}

func (r *MessageRepo) UserCanAccess(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "messages.UserCanAccess"); err != nil {
		return false, err
	}
	m, ok := r.s.messages[id]
	return ok && m.DeletedAt == nil && (m.SenderID == userID || m.ReceiverID == userID), nil
}

func (r *MessageRepo) UserOwns(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "messages.UserOwns"); err != nil {
		return false, err
	}
	m, ok := r.s.messages[id]
	return ok && m.SenderID == userID, nil
}

func (r *MessageRepo) CountUnreadInConversation(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	return r.count(ctx, "messages.CountUnreadInConversation", func(m domain.Message) bool {
		return m.ConversationID == conversationID && unreadFor(m, userID)
	})
}

func (r *MessageRepo) CountForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.count(ctx, "messages.CountForUser", func(m domain.Message) bool {
		return m.DeletedAt == nil && (m.SenderID == userID || m.ReceiverID == userID)
	})
}

func (r *MessageRepo) CountUnreadForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.count(ctx, "messages.CountUnreadForUser", func(m domain.Message) bool {
		return unreadFor(m, userID)
	})
}

func (r *MessageRepo) CountConversationsWithUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "messages.CountConversationsWithUnread"); err != nil {
		return 0, err
	}
	convs := make(map[uuid.UUID]struct{})
	for _, m := range r.s.messages {
		if unreadFor(m, userID) {
			convs[m.ConversationID] = struct{}{}
		}
	}
	return len(convs), nil
}

func (r *MessageRepo) ListUnreadForUser(ctx context.Context, userID uuid.UUID) ([]domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "messages.ListUnreadForUser"); err != nil {
		return nil, err
	}
	return oldestFirst(r.filter(func(m domain.Message) bool { return unreadFor(m, userID) })), nil
}

func (r *MessageRepo) ListUnread(ctx context.Context) ([]domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, "messages.ListUnread"); err != nil {
		return nil, err
	}
	return oldestFirst(r.filter(func(m domain.Message) bool { return !m.IsRead && m.DeletedAt == nil })), nil
}

func (r *MessageRepo) count(ctx context.Context, op string, match func(domain.Message) bool) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx, op); err != nil {
		return 0, err
	}
	return len(r.filter(match)), nil
}

// filter must be called with r.s.mu held.
func (r *MessageRepo) filter(match func(domain.Message) bool) []domain.Message {
	var out []domain.Message
	for _, m := range r.s.messages {
		if match(m) {
			out = append(out, m)
		}
	}
	return out
}

func unreadFor(m domain.Message, userID uuid.UUID) bool {
	return m.ReceiverID == userID && !m.IsRead && m.DeletedAt == nil
}

func oldestFirst(msgs []domain.Message) []domain.Message {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID.String() < msgs[j].ID.String()
	})
	return msgs
}

var _ repository.MessageRepository = (*MessageRepo)(nil)
