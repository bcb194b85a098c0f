// Package sessions implements the adapter's session table: per-user, durable
// records binding an opaque token to an authenticated user across a sequence
// of transport requests. Storage is delegated to a Store implementation; the
// manager layers creation, validation, expiry, and bounded-count eviction on
// top of it.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidUser is returned when a session operation names a user id
	// that is non-positive or unknown to the user directory.
	ErrInvalidUser = errors.New("sessions: invalid user")
)

// Record is a single session's metadata. Timestamps are epoch seconds.
type Record struct {
	CreatedAt    int64           `json:"created_at"`
	LastActivity int64           `json:"last_activity"`
	ClientParams json.RawMessage `json:"client_params,omitempty"`
}

// UserSessions is an insertion-ordered map of session id to record. Insertion
// order equals creation order, which makes FIFO eviction a matter of dropping
// the first entry. The JSON form is an ordered array so the ordering survives
// the round trip through storage.
type UserSessions struct {
	order []string
	byID  map[string]*Record
}

// NewUserSessions returns an empty ordered session map.
func NewUserSessions() *UserSessions {
	return &UserSessions{byID: make(map[string]*Record)}
}

// Len reports the number of sessions.
func (s *UserSessions) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Get returns the record stored under id.
func (s *UserSessions) Get(id string) (*Record, bool) {
	if s == nil {
		return nil, false
	}
	rec, ok := s.byID[id]
	return rec, ok
}

// Put inserts or replaces a record. New ids are appended, preserving
// insertion order.
func (s *UserSessions) Put(id string, rec *Record) {
	if s.byID == nil {
		s.byID = make(map[string]*Record)
	}
	if _, exists := s.byID[id]; !exists {
		s.order = append(s.order, id)
	}
	s.byID[id] = rec
}

// Delete removes the record stored under id, reporting whether it existed.
func (s *UserSessions) Delete(id string) bool {
	if s == nil {
		return false
	}
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Oldest returns the id of the first-inserted session.
func (s *UserSessions) Oldest() (string, bool) {
	if s == nil || len(s.order) == 0 {
		return "", false
	}
	return s.order[0], true
}

// IDs returns the session ids in insertion order.
func (s *UserSessions) IDs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

type sessionEntry struct {
	ID string `json:"id"`
	Record
}

// MarshalJSON encodes the sessions as an ordered array of entries.
func (s *UserSessions) MarshalJSON() ([]byte, error) {
	entries := make([]sessionEntry, 0, s.Len())
	for _, id := range s.order {
		rec := s.byID[id]
		entries = append(entries, sessionEntry{ID: id, Record: *rec})
	}
	return json.Marshal(entries)
}

// UnmarshalJSON decodes the ordered array form.
func (s *UserSessions) UnmarshalJSON(data []byte) error {
	var entries []sessionEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode user sessions: %w", err)
	}
	s.order = s.order[:0]
	s.byID = make(map[string]*Record, len(entries))
	for _, e := range entries {
		rec := e.Record
		s.Put(e.ID, &rec)
	}
	return nil
}

// Store is the durable per-user key-value collaborator. Load returns an empty
// map (never nil) for users with no stored sessions. Implementations need
// only single-key write atomicity; the manager performs read-modify-write and
// accepts last-write-wins semantics under concurrent access.
type Store interface {
	Load(ctx context.Context, userID int64) (*UserSessions, error)
	Save(ctx context.Context, userID int64, sessions *UserSessions) error
}

// UserDirectory answers whether a user id exists. It is the adapter's view of
// the host's user system.
type UserDirectory interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// AllowAllUsers treats every positive user id as existing. Suitable when the
// transport authenticator already guarantees user validity.
type AllowAllUsers struct{}

func (AllowAllUsers) UserExists(_ context.Context, userID int64) (bool, error) {
	return userID > 0, nil
}
