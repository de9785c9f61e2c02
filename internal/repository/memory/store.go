// Package memory is an in-process implementation of the messaging repositories.
// It keeps the unique participant pair and the forward-only last-message
// pointer. Transactions are serialised against each other but take no row
// locks, so plain writes can interleave with them. Used by tests and local runs.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/repository"
)

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	conversations   map[uuid.UUID]domain.Conversation
	pairs           map[string]uuid.UUID
	messages        map[uuid.UUID]domain.Message
	reports         []domain.MessageReport
	contactRequests []domain.ContactRequest
	failures        map[string]error
}

func New() *Store {
	return &Store{
		conversations: make(map[uuid.UUID]domain.Conversation),
		pairs:         make(map[string]uuid.UUID),
		messages:      make(map[uuid.UUID]domain.Message),
		failures:      make(map[string]error),
	}
}

func (s *Store) Conversations() *ConversationRepo     { return &ConversationRepo{s: s} }
func (s *Store) Messages() *MessageRepo               { return &MessageRepo{s: s} }
func (s *Store) Reports() *ReportRepo                 { return &ReportRepo{s: s} }
func (s *Store) ContactRequests() *ContactRequestRepo { return &ContactRequestRepo{s: s} }

// FailOn makes every call of op (e.g. "conversations.UpdateLastMessage") return err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *Store) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]error)
}

// check must be called with s.mu held.
func (s *Store) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.failures[op]
}

// undoLog records the prior state of every row a transaction writes, so a
// rollback leaves writes made outside the transaction alone.
type undoLog struct {
	steps []func()
}

// The record methods must be called with s.mu held, before the write.
func (u *undoLog) conversation(s *Store, id uuid.UUID) {
	if u == nil {
		return
	}
	prev, ok := s.conversations[id]
	u.steps = append(u.steps, func() {
		if ok {
			s.conversations[id] = prev
		} else {
			delete(s.conversations, id)
		}
	})
}

func (u *undoLog) pair(s *Store, key string) {
	if u == nil {
		return
	}
	prev, ok := s.pairs[key]
	u.steps = append(u.steps, func() {
		if ok {
			s.pairs[key] = prev
		} else {
			delete(s.pairs, key)
		}
	})
}

func (u *undoLog) message(s *Store, id uuid.UUID) {
	if u == nil {
		return
	}
	prev, ok := s.messages[id]
	u.steps = append(u.steps, func() {
		if ok {
			s.messages[id] = prev
		} else {
			delete(s.messages, id)
		}
	})
}

func (s *Store) rollback(u *undoLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(u.steps) - 1; i >= 0; i-- {
		u.steps[i]()
	}
}

type tx struct {
	s    *Store
	undo *undoLog
}

func (t tx) Conversations() repository.ConversationRepository {
	return &ConversationRepo{s: t.s, undo: t.undo}
}

func (t tx) Messages() repository.MessageRepository {
	return &MessageRepo{s: t.s, undo: t.undo}
}

// WithinTx serialises transactions and undoes the transaction's own writes
// when fn fails or ctx is cancelled before commit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	undo := &undoLog{}
	if err := fn(ctx, tx{s: s, undo: undo}); err != nil {
		s.rollback(undo)
		return err
	}
	if err := ctx.Err(); err != nil {
		s.rollback(undo)
		return err
	}
	return nil
}

// ConversationCount and MessageCount report stored rows, deleted or not.
func (s *Store) ConversationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

func (s *Store) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *Store) ReportRecords() []domain.MessageReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.MessageReport(nil), s.reports...)
}

func (s *Store) ContactRequestRecords() []domain.ContactRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ContactRequest(nil), s.contactRequests...)
}

var _ repository.Transactor = (*Store)(nil)
