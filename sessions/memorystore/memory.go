// Package memorystore provides an in-memory sessions.Store for tests and
// single-process deployments.
package memorystore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hostbridge/mcp-adapter/sessions"
)

// Store keeps each user's serialized session map in process memory. Values
// are stored in their JSON form so Load always hands back an independent
// copy, mirroring the copy semantics of a durable backend.
type Store struct {
	mu   sync.RWMutex
	data map[int64][]byte
}

var _ sessions.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[int64][]byte)}
}

// Load implements sessions.Store.
func (s *Store) Load(_ context.Context, userID int64) (*sessions.UserSessions, error) {
	s.mu.RLock()
	raw, ok := s.data[userID]
	s.mu.RUnlock()

	out := sessions.NewUserSessions()
	if !ok {
		return out, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode sessions for user %d: %w", userID, err)
	}
	return out, nil
}

// Save implements sessions.Store.
func (s *Store) Save(_ context.Context, userID int64, us *sessions.UserSessions) error {
	raw, err := json.Marshal(us)
	if err != nil {
		return fmt.Errorf("encode sessions for user %d: %w", userID, err)
	}
	s.mu.Lock()
	s.data[userID] = raw
	s.mu.Unlock()
	return nil
}
