package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-client/pkg/config"
	"github.com/angelmondragon/storefront-client/pkg/redisconn"
)

// ErrNoToken is returned when no session token is stored.
var ErrNoToken = errors.New("no session token stored")

const redisTokenKey = "storefront:session:token"

// TokenStore persists the active session token between operations.
type TokenStore interface {
	Save(ctx context.Context, token string, ttl time.Duration) error
	Load(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// MemoryStore keeps the token in process memory; the default for a
// single-session client.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(ctx context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Load(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// RedisStore shares the session token across processes, e.g. between the CLI
// and a long-running dev shell.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore bootstraps the Redis-backed token store and verifies
// connectivity.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client, err := redisconn.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Save(ctx context.Context, token string, ttl time.Duration) error {
	return s.client.Set(ctx, redisTokenKey, token, ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context) (string, error) {
	value, err := s.client.Get(ctx, redisTokenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, redisTokenKey).Err()
}

// Close shuts down the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
