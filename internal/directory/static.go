package directory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vedran77/dmcore/internal/domain"
)

// Static is a fixed, map-backed directory for local runs and tests.
type Static struct {
	mu    sync.RWMutex
	users map[uuid.UUID]domain.UserSummary
}

func NewStatic(users ...domain.UserSummary) *Static {
	s := &Static{users: make(map[uuid.UUID]domain.UserSummary, len(users))}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *Static) Put(u domain.UserSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Static) GetUserByID(_ context.Context, id uuid.UUID) (*domain.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Static) SearchUsers(_ context.Context, term string) ([]domain.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	term = strings.ToLower(term)
	users := []domain.UserSummary{}
	for _, u := range s.users {
		if strings.Contains(strings.ToLower(u.Username), term) || strings.Contains(strings.ToLower(u.DisplayName), term) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

var _ Client = (*Static)(nil)
