package store

import (
	"context"
	"sync"
)

// MemoryStore keeps the snapshot in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return nil, ErrNotFound
	}

	return append([]byte(nil), s.data...), nil
}

func (s *MemoryStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append(make([]byte, 0, len(data)), data...)

	return nil
}

func (s *MemoryStore) Close() error { return nil }
