package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/redis"
)

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AdminSessionKey(jti string) string
}

// AccessSessionChecker is the read-only surface used by the auth middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, jti string) (bool, error)
}

// Manager records issued admin access tokens so they can be revoked
// before they expire.
type Manager struct {
	store sessionStore
}

func NewManager(store sessionStore) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Manager{store: store}, nil
}

// Register marks jti live for ttl. The value is the subject for audit.
func (m *Manager) Register(ctx context.Context, jti, subject string, ttl time.Duration) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return errors.New("session id is required")
	}
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}
	return m.store.Set(ctx, m.store.AdminSessionKey(jti), subject, ttl)
}

func (m *Manager) Revoke(ctx context.Context, jti string) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	return m.store.Del(ctx, m.store.AdminSessionKey(jti))
}

func (m *Manager) HasSession(ctx context.Context, jti string) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, nil
	}
	_, err := m.store.Get(ctx, m.store.AdminSessionKey(jti))
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
