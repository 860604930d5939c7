package activations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/keyward/licensing-backend/pkg/logger"
	"github.com/keyward/licensing-backend/pkg/metrics"
	pkgredis "github.com/keyward/licensing-backend/pkg/redis"
)

type cacheClient interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	StatusCacheKey(digest string) string
}

type keyDecrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// StatusCache is the read-through cache for license status projections. Keys
// are derived from a one-way digest of the normalized raw key, so neither the
// plaintext nor the stored ciphertext appears in the cache index. The cache
// only ever serves status reads; seat enforcement always goes to the DB.
type StatusCache struct {
	client  cacheClient
	codec   keyDecrypter
	ttl     time.Duration
	metrics *metrics.LicensingMetrics
	logg    *logger.Logger
}

// DefaultStatusTTL bounds staleness when no TTL is configured.
const DefaultStatusTTL = 20 * time.Minute

// NewStatusCache builds the status cache. A nil client yields a cache that
// always misses, which keeps dev setups without Redis functional.
func NewStatusCache(client cacheClient, codec keyDecrypter, ttl time.Duration, m *metrics.LicensingMetrics, logg *logger.Logger) *StatusCache {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusCache{client: client, codec: codec, ttl: ttl, metrics: m, logg: logg}
}

// Get returns the cached projection payload for a normalized key.
func (c *StatusCache) Get(ctx context.Context, normalizedKey string) (string, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	payload, err := c.client.Get(ctx, c.client.StatusCacheKey(Digest(normalizedKey)))
	if err != nil {
		if errors.Is(err, pkgredis.Nil) {
			c.metrics.IncStatusCache("miss")
			return "", false
		}
		c.metrics.IncStatusCache("error")
		if c.logg != nil {
			c.logg.Warn(ctx, "status cache read failed")
		}
		return "", false
	}
	c.metrics.IncStatusCache("hit")
	return payload, true
}

// Put stores the projection payload under the key's digest with the
// configured TTL. Failures are logged and swallowed; the cache is advisory.
func (c *StatusCache) Put(ctx context.Context, normalizedKey, payload string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, c.client.StatusCacheKey(Digest(normalizedKey)), payload, c.ttl); err != nil && c.logg != nil {
		c.logg.Warn(ctx, "status cache write failed")
	}
}

// Invalidate drops the cached projection for a normalized key.
func (c *StatusCache) Invalidate(ctx context.Context, normalizedKey string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, c.client.StatusCacheKey(Digest(normalizedKey))); err != nil && c.logg != nil {
		c.logg.Warn(ctx, "status cache invalidation failed")
	}
}

// InvalidateCiphertext invalidates by stored ciphertext, recovering the
// normalized key via the codec. Mutation paths that hold only the DB row
// (provision, lifecycle updates) use this entry point.
func (c *StatusCache) InvalidateCiphertext(ctx context.Context, keyCiphertext string) {
	if c == nil || c.client == nil {
		return
	}
	plain, err := c.codec.Decrypt(keyCiphertext)
	if err != nil {
		if c.logg != nil {
			c.logg.Error(ctx, "decrypt key for cache invalidation", err)
		}
		return
	}
	c.Invalidate(ctx, plain)
}

// Digest returns the hex sha256 of the normalized key.
func Digest(normalizedKey string) string {
	sum := sha256.Sum256([]byte(normalizedKey))
	return hex.EncodeToString(sum[:])
}
