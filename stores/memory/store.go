package memory

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// tokenStore keeps the token in process memory only; nothing survives exit.
type tokenStore struct {
	mu    sync.RWMutex
	token string
	set   bool
}

// NewStore creates an empty in-memory token store.
func NewStore() *tokenStore {
	return &tokenStore{}
}

func (s *tokenStore) Get(ctx context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.set, nil
}

func (s *tokenStore) Set(ctx context.Context, token string) error {
	s.mu.Lock()
	s.token = token
	s.set = true
	s.mu.Unlock()

	logrus.WithField("store", "memory").Debug("Token stored")
	return nil
}

func (s *tokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.set = false
	s.mu.Unlock()

	logrus.WithField("store", "memory").Debug("Token cleared")
	return nil
}
