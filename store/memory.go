package store

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-process Store
type MemoryStore struct {
	data map[string]map[string]*Item
	mu   sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: map[string]map[string]*Item{},
	}
}

func (s *MemoryStore) Get(
	_ context.Context, ns []string, key string,
) (*Item, error) {
	if err := ValidateRef(ns, key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items, ok := s.data[joinNamespace(ns, "/")]
	if !ok {
		return nil, nil
	}
	item, ok := items[key]
	if !ok {
		return nil, nil
	}
	clone := *item
	return &clone, nil
}

func (s *MemoryStore) Put(
	_ context.Context, ns []string, key string, value json.RawMessage,
) error {
	if err := ValidateRef(ns, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nsKey := joinNamespace(ns, "/")
	items, ok := s.data[nsKey]
	if !ok {
		items = map[string]*Item{}
		s.data[nsKey] = items
	}

	now := time.Now().UTC()
	created := now
	if existing, ok := items[key]; ok {
		created = existing.CreatedAt
	}
	items[key] = &Item{
		Namespace: slices.Clone(ns),
		Key:       key,
		Value:     slices.Clone(value),
		CreatedAt: created,
		UpdatedAt: now,
	}
	return nil
}

func (s *MemoryStore) Delete(
	_ context.Context, ns []string, key string,
) error {
	if err := ValidateRef(ns, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if items, ok := s.data[joinNamespace(ns, "/")]; ok {
		delete(items, key)
	}
	return nil
}

func (s *MemoryStore) List(
	_ context.Context, ns []string,
) ([]*Item, error) {
	if len(ns) == 0 {
		return nil, ErrEmptyNamespace
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.data[joinNamespace(ns, "/")]
	result := make([]*Item, 0, len(items))
	for _, item := range items {
		clone := *item
		result = append(result, &clone)
	}
	slices.SortFunc(result, func(a, b *Item) int {
		return strings.Compare(a.Key, b.Key)
	})
	return result, nil
}
