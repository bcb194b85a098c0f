package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Config bounds session lifetime and count. Fields carry envdecode tags so
// deployments can tune them from the environment.
type Config struct {
	// MaxPerUser caps concurrent sessions per user; the oldest session is
	// evicted (FIFO) when a new one would exceed the cap.
	MaxPerUser int `env:"MCP_SESSION_MAX_PER_USER,default=10"`
	// InactivityTimeout invalidates sessions idle longer than this.
	InactivityTimeout time.Duration `env:"MCP_SESSION_INACTIVITY_TIMEOUT,default=24h"`
}

// DefaultConfig returns the stock limits: 10 sessions per user, 24h idle
// timeout.
func DefaultConfig() Config {
	return Config{MaxPerUser: 10, InactivityTimeout: 24 * time.Hour}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithConfig replaces the default limits.
func WithConfig(cfg Config) ManagerOption {
	return func(m *Manager) {
		if cfg.MaxPerUser > 0 {
			m.cfg.MaxPerUser = cfg.MaxPerUser
		}
		if cfg.InactivityTimeout > 0 {
			m.cfg.InactivityTimeout = cfg.InactivityTimeout
		}
	}
}

// WithUserDirectory sets the user-existence collaborator.
func WithUserDirectory(d UserDirectory) ManagerOption {
	return func(m *Manager) {
		if d != nil {
			m.users = d
		}
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager implements the session lifecycle over a Store. All dependencies are
// explicit: the caller supplies the user id on every operation rather than
// the manager reading an ambient current user.
type Manager struct {
	store Store
	users UserDirectory
	cfg   Config
	log   *slog.Logger
	now   func() time.Time
}

// NewManager builds a Manager over the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store: store,
		users: AllowAllUsers{},
		cfg:   DefaultConfig(),
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) checkUser(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrInvalidUser
	}
	exists, err := m.users.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("user lookup: %w", err)
	}
	if !exists {
		return ErrInvalidUser
	}
	return nil
}

// CreateSession mints a new session for userID, evicting the oldest session
// first when the user is at the configured cap. It returns the opaque session
// token.
func (m *Manager) CreateSession(ctx context.Context, userID int64, clientParams json.RawMessage) (string, error) {
	if err := m.checkUser(ctx, userID); err != nil {
		return "", err
	}

	all, err := m.store.Load(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load sessions: %w", err)
	}
	if all == nil {
		all = NewUserSessions()
	}

	for all.Len() >= m.cfg.MaxPerUser {
		oldest, ok := all.Oldest()
		if !ok {
			break
		}
		all.Delete(oldest)
		m.log.Info("session.evict", slog.Int64("user_id", userID), slog.String("session_id", oldest))
	}

	id := uuid.NewString()
	now := m.now().Unix()
	all.Put(id, &Record{CreatedAt: now, LastActivity: now, ClientParams: clientParams})

	if err := m.store.Save(ctx, userID, all); err != nil {
		return "", fmt.Errorf("save sessions: %w", err)
	}
	m.log.Info("session.create.ok", slog.Int64("user_id", userID), slog.String("session_id", id))
	return id, nil
}

// ValidateSession reports whether (userID, sessionID) names a live session.
// Validation refreshes the session's last-activity timestamp as a side
// effect, so a steadily active client never times out.
func (m *Manager) ValidateSession(ctx context.Context, userID int64, sessionID string) (bool, error) {
	if err := m.checkUser(ctx, userID); err != nil {
		return false, nil
	}

	all, err := m.store.Load(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load sessions: %w", err)
	}
	rec, ok := all.Get(sessionID)
	if !ok {
		return false, nil
	}

	now := m.now().Unix()
	if now-rec.LastActivity > int64(m.cfg.InactivityTimeout.Seconds()) {
		return false, nil
	}

	rec.LastActivity = now
	if err := m.store.Save(ctx, userID, all); err != nil {
		return false, fmt.Errorf("save sessions: %w", err)
	}
	return true, nil
}

// GetSession returns the session record, or nil when absent. It has no side
// effects.
func (m *Manager) GetSession(ctx context.Context, userID int64, sessionID string) (*Record, error) {
	if err := m.checkUser(ctx, userID); err != nil {
		return nil, nil
	}
	all, err := m.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	rec, ok := all.Get(sessionID)
	if !ok {
		return nil, nil
	}
	return rec, nil
}

// DeleteSession removes the session, reporting whether it existed.
func (m *Manager) DeleteSession(ctx context.Context, userID int64, sessionID string) (bool, error) {
	if err := m.checkUser(ctx, userID); err != nil {
		return false, nil
	}
	all, err := m.store.Load(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load sessions: %w", err)
	}
	if !all.Delete(sessionID) {
		return false, nil
	}
	if err := m.store.Save(ctx, userID, all); err != nil {
		return false, fmt.Errorf("save sessions: %w", err)
	}
	m.log.Info("session.delete.ok", slog.Int64("user_id", userID), slog.String("session_id", sessionID))
	return true, nil
}

// AllUserSessions returns the full ordered session map for userID. Invalid
// or unknown users yield an empty map.
func (m *Manager) AllUserSessions(ctx context.Context, userID int64) (*UserSessions, error) {
	if err := m.checkUser(ctx, userID); err != nil {
		return NewUserSessions(), nil
	}
	all, err := m.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	if all == nil {
		all = NewUserSessions()
	}
	return all, nil
}

// CleanupExpired removes every session of userID whose last activity exceeds
// the inactivity timeout, returning the count removed.
func (m *Manager) CleanupExpired(ctx context.Context, userID int64) (int, error) {
	if err := m.checkUser(ctx, userID); err != nil {
		return 0, nil
	}
	all, err := m.store.Load(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load sessions: %w", err)
	}

	cutoff := m.now().Unix() - int64(m.cfg.InactivityTimeout.Seconds())
	removed := 0
	for _, id := range all.IDs() {
		rec, ok := all.Get(id)
		if !ok {
			continue
		}
		if rec.LastActivity < cutoff {
			all.Delete(id)
			removed++
		}
	}
	if removed > 0 {
		if err := m.store.Save(ctx, userID, all); err != nil {
			return 0, fmt.Errorf("save sessions: %w", err)
		}
		m.log.Info("session.cleanup", slog.Int64("user_id", userID), slog.Int("removed", removed))
	}
	return removed, nil
}
