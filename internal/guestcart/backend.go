package guestcart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-client/pkg/config"
	"github.com/angelmondragon/storefront-client/pkg/redisconn"
	"github.com/angelmondragon/storefront-client/pkg/types"
)

const redisGuestKey = "storefront:guest:cart"

// Backend persists guest cart rows between sessions. Load returns an empty
// slice when nothing is stored.
type Backend interface {
	Load(ctx context.Context) ([]types.CartItem, error)
	Save(ctx context.Context, items []types.CartItem) error
	Clear(ctx context.Context) error
}

// MemoryBackend keeps the guest cart in process memory.
type MemoryBackend struct {
	mu    sync.RWMutex
	items []types.CartItem
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Load(ctx context.Context) ([]types.CartItem, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	items := make([]types.CartItem, len(b.items))
	copy(items, b.items)
	return items, nil
}

func (b *MemoryBackend) Save(ctx context.Context, items []types.CartItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = make([]types.CartItem, len(items))
	copy(b.items, items)
	return nil
}

func (b *MemoryBackend) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
	return nil
}

// RedisBackend persists the guest cart as a JSON blob so it survives process
// restarts before the shopper ever logs in.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(ctx context.Context, cfg config.RedisConfig) (*RedisBackend, error) {
	client, err := redisconn.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &RedisBackend{client: client}, nil
}

func (b *RedisBackend) Load(ctx context.Context) ([]types.CartItem, error) {
	raw, err := b.client.Get(ctx, redisGuestKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	var items []types.CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode guest cart: %w", err)
	}
	return items, nil
}

func (b *RedisBackend) Save(ctx context.Context, items []types.CartItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode guest cart: %w", err)
	}
	return b.client.Set(ctx, redisGuestKey, raw, 0).Err()
}

func (b *RedisBackend) Clear(ctx context.Context) error {
	return b.client.Del(ctx, redisGuestKey).Err()
}

// Close shuts down the underlying client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
