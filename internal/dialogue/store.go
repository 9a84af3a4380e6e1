package dialogue

import (
	"context"
	"sync"

	"github.com/lexiqai/voice-reader/internal/observability"
)

// Store keeps the pending state of every conversation. Get on an unseen
// conversation id returns Idle(). Implementations must be safe for
// concurrent use across different conversation ids.
type Store interface {
	Get(ctx context.Context, conversationID string) (State, error)
	Set(ctx context.Context, conversationID string, state State) error
	Ping(ctx context.Context) error
	Close() error
}

// MemoryStore is a process-lifetime Store. Entries are never evicted and
// are lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]State),
	}
}

// Get implements Store
func (s *MemoryStore) Get(ctx context.Context, conversationID string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[conversationID]
	if !ok {
		return Idle(), nil
	}
	return state, nil
}

// Set implements Store
func (s *MemoryStore) Set(ctx context.Context, conversationID string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, seen := s.states[conversationID]
	s.states[conversationID] = state
	if !seen {
		observability.SetTrackedConversations(len(s.states))
	}
	return nil
}

// Len returns the number of conversations seen so far
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Ping implements Store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close implements Store
func (s *MemoryStore) Close() error {
	return nil
}
