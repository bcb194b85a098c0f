// Package redisstore provides a Redis-backed sessions.Store. Each user's
// ordered session map is serialized under a single namespaced key, giving the
// single-key write atomicity the manager relies on.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/hostbridge/mcp-adapter/sessions"
)

// Config for the Redis session store. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all session keys. ENV: MCP_SESSIONS_KEY_PREFIX
	KeyPrefix string `env:"MCP_SESSIONS_KEY_PREFIX,default=mcp:sessions:"`
	// TTL bounds how long an untouched user entry survives in Redis. Zero
	// disables expiry; the manager's inactivity timeout still applies.
	TTL time.Duration `env:"MCP_SESSIONS_TTL,default=0"`
}

// Store implements sessions.Store over Redis.
type Store struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

var _ sessions.Store = (*Store)(nil)

// New builds a Store, connecting to Redis and verifying the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(cl, cfg), nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(cl *redis.Client, cfg Config) *Store {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "mcp:sessions:"
	}
	return &Store{client: cl, keyPrefix: prefix, ttl: cfg.TTL}
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv(ctx context.Context) (*Store, error) {
	var cfg Config
	// Defaults are provided via struct tags.
	_ = envdecode.Decode(&cfg)
	return New(ctx, cfg)
}

// Close closes the Redis client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) key(userID int64) string {
	return s.keyPrefix + "user:" + strconv.FormatInt(userID, 10)
}

// Load implements sessions.Store.
func (s *Store) Load(ctx context.Context, userID int64) (*sessions.UserSessions, error) {
	out := sessions.NewUserSessions()
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return out, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", s.key(userID), err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode sessions for user %d: %w", userID, err)
	}
	return out, nil
}

// Save implements sessions.Store.
func (s *Store) Save(ctx context.Context, userID int64, us *sessions.UserSessions) error {
	raw, err := json.Marshal(us)
	if err != nil {
		return fmt.Errorf("encode sessions for user %d: %w", userID, err)
	}
	if err := s.client.Set(ctx, s.key(userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key(userID), err)
	}
	return nil
}
