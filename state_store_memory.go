package deploy

import (
	"context"
	"sync"
)

// MemoryStateStore keeps state in memory only. It is used for dry runs, where
// progress must never reach the real state file, and in tests.
type MemoryStateStore struct {
	mutex sync.Mutex
	state *State
	saves int
}

// NewMemoryStateStore returns a store seeded with a copy of initial, which may
// be nil.
func NewMemoryStateStore(initial *State) *MemoryStateStore {
	s := &MemoryStateStore{}
	if initial != nil {
		s.state = initial.Copy()
	}
	return s
}

func (s *MemoryStateStore) Load(ctx context.Context) (*State, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.state == nil {
		return nil, nil
	}
	return s.state.Copy(), nil
}

func (s *MemoryStateStore) Save(ctx context.Context, state *State) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.state = state.Copy()
	s.saves++
	return nil
}

func (s *MemoryStateStore) Delete(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.state = nil
	return nil
}

// Saves returns how many times Save was called.
func (s *MemoryStateStore) Saves() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.saves
}
