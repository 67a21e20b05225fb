package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// expirySafetyMargin is subtracted from the upstream lifetime so a token is
// never used in its final seconds.
const expirySafetyMargin = 60 * time.Second

// ErrTokenNotCached signals the caller must mint a fresh token.
var ErrTokenNotCached = errors.New("calendar: token not cached")

// cachedToken is the stored form of an access token.
type cachedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (t cachedToken) expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenCache stores one access token per service-account identity. Get
// returns ErrTokenNotCached for both the unset and the expired case.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, accessToken string, lifetime time.Duration) error
}

// MemoryTokenCache keeps tokens in process memory.
type MemoryTokenCache struct {
	mu     sync.Mutex
	tokens map[string]cachedToken
	now    func() time.Time
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{tokens: map[string]cachedToken{}, now: time.Now}
}

func (c *MemoryTokenCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, ok := c.tokens[key]
	if !ok || tok.expired(c.now()) {
		delete(c.tokens, key)
		return "", ErrTokenNotCached
	}
	return tok.AccessToken, nil
}

func (c *MemoryTokenCache) Put(ctx context.Context, key, accessToken string, lifetime time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[key] = cachedToken{
		AccessToken: accessToken,
		ExpiresAt:   c.now().Add(lifetime - expirySafetyMargin),
	}
	return nil
}

// RedisTokenCache shares tokens across instances through Redis, letting the
// TTL handle expiry.
type RedisTokenCache struct {
	client *redis.Client
	prefix string
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	if client == nil {
		panic("calendar: redis client required")
	}
	return &RedisTokenCache{client: client, prefix: "calendar:token:"}
}

func (c *RedisTokenCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotCached
	}
	if err != nil {
		return "", fmt.Errorf("calendar: redis get token: %w", err)
	}
	return val, nil
}

func (c *RedisTokenCache) Put(ctx context.Context, key, accessToken string, lifetime time.Duration) error {
	ttl := lifetime - expirySafetyMargin
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.prefix+key, accessToken, ttl).Err(); err != nil {
		return fmt.Errorf("calendar: redis put token: %w", err)
	}
	return nil
}

// FileTokenCache persists tokens across process restarts. Single file, one
// JSON object per key.
type FileTokenCache struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewFileTokenCache(path string) *FileTokenCache {
	return &FileTokenCache{path: path, now: time.Now}
}

func (c *FileTokenCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tokens, err := c.load()
	if err != nil {
		return "", err
	}
	tok, ok := tokens[key]
	if !ok || tok.expired(c.now()) {
		return "", ErrTokenNotCached
	}
	return tok.AccessToken, nil
}

func (c *FileTokenCache) Put(ctx context.Context, key, accessToken string, lifetime time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tokens, err := c.load()
	if err != nil {
		return err
	}
	tokens[key] = cachedToken{
		AccessToken: accessToken,
		ExpiresAt:   c.now().Add(lifetime - expirySafetyMargin),
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("calendar: marshal token cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("calendar: write token cache: %w", err)
	}
	return nil
}

func (c *FileTokenCache) load() (map[string]cachedToken, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]cachedToken{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("calendar: read token cache: %w", err)
	}
	tokens := map[string]cachedToken{}
	if err := json.Unmarshal(data, &tokens); err != nil {
		// A corrupt cache file is not fatal, tokens can be re-minted.
		return map[string]cachedToken{}, nil
	}
	return tokens, nil
}
