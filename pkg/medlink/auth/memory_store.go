package auth

import (
	"context"
	"sync"
)

// MemoryStore keeps the record in process memory only
type MemoryStore struct {
	mu  sync.Mutex
	rec *Record
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec == nil {
		return nil, ErrNotFound
	}
	rec := *s.rec
	return &rec, nil
}

func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.rec = &cp
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rec = nil
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
