package repository

import (
	"context"
	"sync"
	"time"

	"github.com/lcollard/mergepace/internal/core/services"
)

var _ services.CodeStore = (*InMemoryCodeStore)(nil)

// InMemoryCodeStore holds sync codes in process memory. It backs local runs
// without Redis; codes do not survive a restart and expire lazily on read.
type InMemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]memoryCode
}

type memoryCode struct {
	payload   []byte
	expiresAt time.Time
}

func NewInMemoryCodeStore() *InMemoryCodeStore {
	return &InMemoryCodeStore{codes: make(map[string]memoryCode)}
}

func (s *InMemoryCodeStore) Save(_ context.Context, code string, payload []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(payload))
	copy(stored, payload)
	s.codes[code] = memoryCode{
		payload:   stored,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (s *InMemoryCodeStore) Load(_ context.Context, code string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[code]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(s.codes, code)
		return nil, services.ErrSyncCodeNotFound
	}
	return entry.payload, nil
}

func (s *InMemoryCodeStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, code)
	return nil
}
