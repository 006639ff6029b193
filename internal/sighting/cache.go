package sighting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/oryza-labs/cat-explorer/internal/geo"
)

// DefaultCacheTTL is how long list results stay cached. Short on purpose:
// a stale map view self-heals within seconds and mutations invalidate
// eagerly anyway.
const DefaultCacheTTL = 30 * time.Second

// listVersionKey tracks a monotonically increasing generation number.
// Every mutation bumps it, which orphans all list entries of the previous
// generation without needing SCAN.
const listVersionKey = "sightings:list:version"

// CachedRepository wraps a Repository with a Redis read-through cache for
// the two list queries. Entries are CBOR-encoded for compactness. All
// cache failures are logged and treated as misses; the cache never makes
// a request fail.
type CachedRepository struct {
	inner  Repository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRepository creates a CachedRepository around inner.
func NewCachedRepository(inner Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRepository{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Create delegates to the inner repository and invalidates list caches.
func (c *CachedRepository) Create(ctx context.Context, rec *Record) (*Record, error) {
	stored, err := c.inner.Create(ctx, rec)
	if err != nil {
		return nil, err
	}
	c.bumpVersion(ctx)
	return stored, nil
}

// GetByID is not cached; single-document reads are already one indexed
// round trip.
func (c *CachedRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	return c.inner.GetByID(ctx, id)
}

// ListRecent serves from cache when possible.
func (c *CachedRepository) ListRecent(ctx context.Context, limit int) ([]*Record, error) {
	key := fmt.Sprintf("recent:%d", normalizeRecentLimit(limit))
	return c.listThrough(ctx, key, func() ([]*Record, error) {
		return c.inner.ListRecent(ctx, limit)
	})
}

// ListNear serves from cache when possible. The key quantizes the query
// point to ~11 m so indistinguishable viewports share an entry.
func (c *CachedRepository) ListNear(ctx context.Context, point geo.Point, radiusKm float64, limit int) ([]*Record, error) {
	key := fmt.Sprintf("near:%.4f:%.4f:%.1f:%d", point.Lat, point.Lng, radiusKm, normalizeNearLimit(limit))
	return c.listThrough(ctx, key, func() ([]*Record, error) {
		return c.inner.ListNear(ctx, point, radiusKm, limit)
	})
}

// Update delegates and invalidates list caches.
func (c *CachedRepository) Update(ctx context.Context, id string, patch *Patch) (*Record, error) {
	updated, err := c.inner.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	c.bumpVersion(ctx)
	return updated, nil
}

// Delete delegates and invalidates list caches.
func (c *CachedRepository) Delete(ctx context.Context, id string) error {
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}
	c.bumpVersion(ctx)
	return nil
}

// listThrough implements the read-through: versioned key lookup, CBOR
// decode on hit, load-and-store on miss.
func (c *CachedRepository) listThrough(ctx context.Context, key string, load func() ([]*Record, error)) ([]*Record, error) {
	fullKey := c.versionedKey(ctx, key)

	if fullKey != "" {
		data, err := c.client.Get(ctx, fullKey).Bytes()
		if err == nil {
			var records []*Record
			if err := cbor.Unmarshal(data, &records); err == nil {
				return records, nil
			}
			c.logger.Warn("failed to decode cached sighting list",
				slog.String("key", fullKey))
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Warn("sighting cache read failed",
				slog.String("key", fullKey),
				slog.String("error", err.Error()))
		}
	}

	records, err := load()
	if err != nil {
		return nil, err
	}

	if fullKey != "" {
		if data, err := cbor.Marshal(records); err == nil {
			if err := c.client.Set(ctx, fullKey, data, c.ttl).Err(); err != nil {
				c.logger.Warn("sighting cache write failed",
					slog.String("key", fullKey),
					slog.String("error", err.Error()))
			}
		}
	}

	return records, nil
}

// versionedKey prefixes key with the current list generation. Returns ""
// when Redis is unreachable, which disables caching for this request.
func (c *CachedRepository) versionedKey(ctx context.Context, key string) string {
	version, err := c.client.Get(ctx, listVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("sighting cache version read failed",
			slog.String("error", err.Error()))
		return ""
	}
	return fmt.Sprintf("sightings:list:v%d:%s", version, key)
}

// bumpVersion advances the list generation after a mutation. Failures are
// logged only; the next TTL expiry bounds staleness.
func (c *CachedRepository) bumpVersion(ctx context.Context) {
	if err := c.client.Incr(ctx, listVersionKey).Err(); err != nil {
		c.logger.Warn("sighting cache invalidation failed",
			slog.String("error", err.Error()))
	}
}
