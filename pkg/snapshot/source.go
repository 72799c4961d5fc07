package snapshot

import "sync"

// Source gives read access to the latest host state.
type Source interface {
	Current() HostState
}

// Static is a Source that always returns the same state.
type Static HostState

func (s Static) Current() HostState {
	return HostState(s)
}

// Store keeps the most recent host state pushed by a dashboard tab.
type Store struct {
	mu    sync.RWMutex
	state HostState
}

func NewStore() *Store {
	return &Store{}
}

// Replace swaps the stored state wholesale.
func (s *Store) Replace(state HostState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Store) Current() HostState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}
