package storage

import (
	"context"
	"sync"
)

// MemoryMarkerStore хранит маркеры в памяти процесса.
// Подходит для пробных запусков: после перезапуска все маркеры теряются.
type MemoryMarkerStore struct {
	mu      sync.Mutex
	markers map[string]map[string]struct{}
}

func NewMemoryMarkerStore() *MemoryMarkerStore {
	return &MemoryMarkerStore{markers: make(map[string]map[string]struct{})}
}

func (s *MemoryMarkerStore) SetIfAbsent(_ context.Context, namespace, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.markers[namespace]
	if !ok {
		ns = make(map[string]struct{})
		s.markers[namespace] = ns
	}
	if _, seen := ns[key]; seen {
		return false, nil
	}
	ns[key] = struct{}{}
	return true, nil
}

func (s *MemoryMarkerStore) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers[namespace], key)
	return nil
}

func (s *MemoryMarkerStore) Close() error {
	return nil
}
