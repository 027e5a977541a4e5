package store

import (
	"context"
	"sync"

	"github.com/Yulian302/lfusys-services-handshake/apperror"
	"github.com/Yulian302/lfusys-services-handshake/auth/types"
)

// MemoryUserStore keeps users in process. It backs local runs without a
// DynamoDB table.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]types.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]types.User)}
}

func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	return &u, nil
}

func (s *MemoryUserStore) Create(ctx context.Context, user types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Email]; ok {
		return apperror.ErrUserAlreadyExists
	}
	s.users[user.Email] = user
	return nil
}

func (s *MemoryUserStore) IsReady(ctx context.Context) error {
	return nil
}

func (s *MemoryUserStore) Name() string {
	return "UserStore[memory]"
}
