package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vampirenirmal/bookmarketer/internal/storage"
)

// ResponseCache stores raw model answers keyed by prompt hash. Entries older
// than ttl are ignored.
type ResponseCache struct {
	storage storage.Storage
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

type CachedResponse struct {
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

func NewResponseCache(storage storage.Storage, ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		storage: storage,
		ttl:     ttl,
		now:     time.Now,
		logger:  slog.Default().With("component", "response_cache"),
	}
}

func cacheKey(prompt string, maxOutputTokens int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d\x00%s", maxOutputTokens, prompt)))
	return hex.EncodeToString(hash[:])
}

func cachePath(key string) string {
	return fmt.Sprintf("cache/responses/%s.json", key)
}

func (c *ResponseCache) Get(ctx context.Context, prompt string, maxOutputTokens int) (string, bool) {
	key := cacheKey(prompt, maxOutputTokens)
	data, err := c.storage.Load(ctx, cachePath(key))
	if err != nil {
		return "", false
	}

	var cached CachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Warn("cache miss - invalid data", "key", key, "error", err)
		return "", false
	}
	if age := c.now().Sub(cached.Timestamp); age > c.ttl {
		c.logger.Debug("cache miss - expired", "key", key, "age", age, "ttl", c.ttl)
		return "", false
	}
	c.logger.Debug("cache hit", "key", key, "response_length", len(cached.Response))
	return cached.Response, true
}

func (c *ResponseCache) Set(ctx context.Context, prompt string, maxOutputTokens int, response string) error {
	data, err := json.Marshal(CachedResponse{Response: response, Timestamp: c.now()})
	if err != nil {
		return fmt.Errorf("marshaling cached response: %w", err)
	}
	return c.storage.Save(ctx, cachePath(cacheKey(prompt, maxOutputTokens)), data)
}

// CachedClient serves repeated prompts from a ResponseCache. Failures are
// never cached.
type CachedClient struct {
	client AIClient
	cache  *ResponseCache
	logger *slog.Logger
}

func WithCache(client AIClient, cache *ResponseCache) *CachedClient {
	return &CachedClient{
		client: client,
		cache:  cache,
		logger: slog.Default().With("component", "cached_client"),
	}
}

func (c *CachedClient) Ask(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	if response, ok := c.cache.Get(ctx, prompt, maxOutputTokens); ok {
		return response, nil
	}

	response, err := c.client.Ask(ctx, prompt, maxOutputTokens)
	if err != nil {
		return "", err
	}
	if cacheErr := c.cache.Set(ctx, prompt, maxOutputTokens, response); cacheErr != nil {
		c.logger.Warn("failed to cache response", "error", cacheErr)
	}
	return response, nil
}
