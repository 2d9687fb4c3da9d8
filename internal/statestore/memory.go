package statestore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process store for local runs without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	items   map[string]memoryItem
	nowFunc func() time.Time
}

type memoryItem struct {
	value   []byte
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:   make(map[string]memoryItem),
		nowFunc: time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	if !item.expires.IsZero() && !s.nowFunc().Before(item.expires) {
		delete(s.items, key)
		return nil, nil
	}
	return item.value, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expires = s.nowFunc().Add(ttl)
	}
	s.items[key] = item
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}
