package extract

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"horse.fit/convene/internal/globaltime"
	extractschema "horse.fit/convene/schema"
)

// Extractor is the contract the pipeline depends on. The cache and the
// resilient client both satisfy it.
type Extractor interface {
	Extract(ctx context.Context, text string) (*extractschema.Payload, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, text string) (*extractschema.Payload, error)

func (f ExtractorFunc) Extract(ctx context.Context, text string) (*extractschema.Payload, error) {
	return f(ctx, text)
}

type cacheEntry struct {
	payload   *extractschema.Payload
	expiresAt time.Time
}

// Cache memoizes successful extractions by content fingerprint. Concurrent
// requests for the same fingerprint collapse into a single upstream call.
// Failures are never cached: the next request retries upstream.
type Cache struct {
	upstream Extractor
	ttl      time.Duration
	logger   zerolog.Logger

	flight singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCache(upstream Extractor, ttl time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{
		upstream: upstream,
		ttl:      ttl,
		logger:   logger.With().Str("component", "extract_cache").Logger(),
		entries:  make(map[string]cacheEntry),
	}
}

// ExtractDocument resolves a preprocessed document through the cache.
func (c *Cache) ExtractDocument(ctx context.Context, doc Document) (*extractschema.Payload, error) {
	key := hex.EncodeToString(doc.Fingerprint)

	if payload, ok := c.lookup(key); ok {
		c.logger.Debug().Str("fingerprint", key).Msg("extraction cache hit")
		return payload, nil
	}

	result, err, shared := c.flight.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent leader may have
		// populated the entry between lookup and Do.
		if payload, ok := c.lookup(key); ok {
			return payload, nil
		}

		payload, err := c.upstream.Extract(ctx, doc.Text)
		if err != nil {
			return nil, err
		}
		c.store(key, payload)
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug().Str("fingerprint", key).Msg("extraction call shared across waiters")
	}
	return result.(*extractschema.Payload), nil
}

// Len reports live (unexpired) entries.
func (c *Cache) Len() int {
	now := globaltime.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, entry := range c.entries {
		if now.Before(entry.expiresAt) {
			count++
		}
	}
	return count
}

func (c *Cache) lookup(key string) (*extractschema.Payload, bool) {
	now := globaltime.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !now.Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.payload, true
}

func (c *Cache) store(key string, payload *extractschema.Payload) {
	now := globaltime.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for existing, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, existing)
		}
	}
	c.entries[key] = cacheEntry{payload: payload, expiresAt: now.Add(c.ttl)}
}
