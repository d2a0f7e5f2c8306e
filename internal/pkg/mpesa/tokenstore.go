package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedToken is one stored access token with its absolute expiry.
type CachedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenStore persists access tokens keyed by credential-set key. Get returns
// (nil, nil) on a miss; callers decide whether a hit is still fresh.
type TokenStore interface {
	Get(ctx context.Context, key string) (*CachedToken, error)
	Put(ctx context.Context, key string, token CachedToken) error
}

const redisTokenKeyPrefix = "mpesa:token:"

type redisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore backs the token cache with Redis so tokens survive
// restarts and are shared between instances.
func NewRedisTokenStore(client *redis.Client) TokenStore {
	return &redisTokenStore{client: client}
}

func (s *redisTokenStore) Get(ctx context.Context, key string) (*CachedToken, error) {
	raw, err := s.client.Get(ctx, redisTokenKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var token CachedToken
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		// A corrupt entry is treated as a miss and overwritten on refresh.
		return nil, nil
	}
	return &token, nil
}

func (s *redisTokenStore) Put(ctx context.Context, key string, token CachedToken) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return err
	}
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, redisTokenKeyPrefix+key, raw, ttl).Err()
}

type memoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]CachedToken
}

// NewMemoryTokenStore keeps tokens in process memory; used when no Redis is
// configured and in tests.
func NewMemoryTokenStore() TokenStore {
	return &memoryTokenStore{tokens: make(map[string]CachedToken)}
}

func (s *memoryTokenStore) Get(ctx context.Context, key string) (*CachedToken, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[key]
	if !ok {
		return nil, nil
	}
	return &token, nil
}

func (s *memoryTokenStore) Put(ctx context.Context, key string, token CachedToken) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key] = token
	return nil
}
