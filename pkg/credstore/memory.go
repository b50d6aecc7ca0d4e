package credstore

import (
	"context"
	"sync"
)

// MemoryStore keeps the pair in process memory only. Besides rejecting an
// empty access token it never fails.
type MemoryStore struct {
	mu   sync.RWMutex
	pair *TokenPair
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Save(_ context.Context, pair TokenPair) error {
	if err := pair.Validate(); err != nil {
		return err
	}

	p := pair.clone()

	m.mu.Lock()
	m.pair = &p
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (*TokenPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.pair == nil {
		return nil, nil
	}
	p := m.pair.clone()
	return &p, nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.pair = nil
	m.mu.Unlock()
	return nil
}
