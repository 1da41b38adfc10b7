package service

import (
	"sync"
	"time"
)

type storedWorkspace struct {
	ws        *workspace
	touchedAt time.Time
}

// workspaceStore keeps one workspace per session and forgets sessions that
// have been idle longer than ttl.
type workspaceStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]storedWorkspace
}

func newWorkspaceStore(ttl time.Duration, now func() time.Time) *workspaceStore {
	if now == nil {
		now = time.Now
	}
	return &workspaceStore{
		ttl:   ttl,
		now:   now,
		items: make(map[string]storedWorkspace),
	}
}

// Get returns the live workspace for key and refreshes its idle timer.
func (s *workspaceStore) Get(key string) (*workspace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return nil, false
	}
	now := s.now()
	if s.ttl > 0 && now.Sub(item.touchedAt) > s.ttl {
		delete(s.items, key)
		return nil, false
	}
	item.touchedAt = now
	s.items[key] = item
	return item.ws, true
}

// GetOrCreate returns the workspace for key, building it with create when
// absent. created is true when create ran.
func (s *workspaceStore) GetOrCreate(key string, create func() *workspace) (ws *workspace, created bool) {
	if ws, ok := s.Get(key); ok {
		return ws, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[key]; ok {
		return item.ws, false
	}
	ws = create()
	s.items[key] = storedWorkspace{ws: ws, touchedAt: s.now()}
	return ws, true
}

func (s *workspaceStore) Delete(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Sweep evicts idle workspaces and returns how many remain.
func (s *workspaceStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttl > 0 {
		now := s.now()
		for key, item := range s.items {
			if now.Sub(item.touchedAt) > s.ttl {
				delete(s.items, key)
			}
		}
	}
	return len(s.items)
}

func (s *workspaceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
