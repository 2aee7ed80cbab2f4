package session

import (
	"sync"

	"spoon/internal/logging"
)

// MemoryStore keeps turn history in process memory. It is the default store
// and the one the tests use.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]Turn)}
}

// AppendTurn records a turn at the end of a session's history.
func (s *MemoryStore) AppendTurn(sessionID string, t Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[sessionID] = append(s.turns[sessionID], t)
	logging.StoreDebug("memory: appended turn %d for session=%s", len(s.turns[sessionID]), sessionID)
	return nil
}

// RecentTurns returns up to n most recent turns, oldest first.
func (s *MemoryStore) RecentTurns(sessionID string, n int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.turns[sessionID]
	if n <= 0 || n > len(all) {
		n = len(all)
	}
	out := make([]Turn, n)
	copy(out, all[len(all)-n:])
	return out, nil
}
