package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/docreview-backend/pkg/config"
	redisclient "github.com/angelmondragon/docreview-backend/pkg/redis"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a session id has no live Redis entry.
var ErrSessionNotFound = errors.New("review session not found")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	AccessSessionKey(sessionID string) string
}

// Manager stores reviewer sessions in Redis keyed by the JWT jti.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, sessionID string) (bool, error)
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return newManager(client, client, cfg.SessionTTL())
}

func newManager(store sessionStore, keyer sessionKeyer, ttl time.Duration) (*Manager, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &Manager{store: store, keyer: keyer, ttl: ttl}, nil
}

// TTL reports how long a session lives after Start.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Start records a new session for username and returns its id.
func (m *Manager) Start(ctx context.Context, username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("username is required")
	}
	sessionID := NewSessionID()
	if err := m.store.Set(ctx, m.keyer.AccessSessionKey(sessionID), username, m.ttl); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}
	return sessionID, nil
}

// Reviewer returns the username that owns the session.
func (m *Manager) Reviewer(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrSessionNotFound
	}
	username, err := m.store.Get(ctx, m.keyer.AccessSessionKey(sessionID))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	return username, nil
}

// Revoke deletes the session entry.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	return m.store.Del(ctx, m.keyer.AccessSessionKey(sessionID))
}

// HasSession reports whether the session is still live.
func (m *Manager) HasSession(ctx context.Context, sessionID string) (bool, error) {
	if _, err := m.Reviewer(ctx, sessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// NewSessionID produces the identifier used as the JWT jti and Redis key.
func NewSessionID() string {
	return uuid.NewString()
}
