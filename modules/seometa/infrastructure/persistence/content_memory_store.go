package persistence

import (
	"context"
	"sync"

	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/types"
)

// ContentMemoryStore keeps items and metadata in process memory.
type ContentMemoryStore struct {
	mu     sync.RWMutex
	items  map[int64]types.ContentItem
	meta   map[int64]map[string]string
	nextID int64
}

func NewContentMemoryStore() *ContentMemoryStore {
	return &ContentMemoryStore{
		items: make(map[int64]types.ContentItem),
		meta:  make(map[int64]map[string]string),
	}
}

// PutItem inserts or replaces item under its own id.
func (s *ContentMemoryStore) PutItem(item types.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	if item.ID > s.nextID {
		s.nextID = item.ID
	}
}

func (s *ContentMemoryStore) CreateItem(_ context.Context, kind string, authorID int64, status string) (types.ContentItem, error) {
	if status == "" {
		status = types.StatusDraft
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	item := types.ContentItem{ID: s.nextID, Kind: kind, AuthorID: authorID, Status: status}
	s.items[item.ID] = item
	return item, nil
}

func (s *ContentMemoryStore) GetItem(_ context.Context, id int64) (types.ContentItem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok, nil
}

func (s *ContentMemoryStore) GetMeta(_ context.Context, id int64, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta[id][key], nil
}

func (s *ContentMemoryStore) SetMeta(_ context.Context, id int64, key string, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	m := s.meta[id]
	if m == nil {
		m = make(map[string]string)
		s.meta[id] = m
	}
	if cur, ok := m[key]; ok && cur == value {
		return false, nil
	}
	m[key] = value
	return true, nil
}
