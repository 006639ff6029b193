package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements RateLimitStore on Redis so limits hold
// across API replicas. Fixed-window counters via INCR + EXPIRE.
//
// Fail-open: if Redis is unreachable the request is allowed and the
// error counted, so a cache outage never takes the API down with it.
type RedisRateLimitStore struct {
	client  *redis.Client
	logger  *slog.Logger
	metrics *Metrics
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store.
// metrics may be nil.
func NewRedisRateLimitStore(client *redis.Client, logger *slog.Logger, metrics *Metrics) *RedisRateLimitStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRateLimitStore{
		client:  client,
		logger:  logger,
		metrics: metrics,
	}
}

// Allow implements the RateLimitStore interface.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	redisKey := "ratelimit:" + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, config.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("rate limit check failed, allowing request",
			slog.String("key", key),
			slog.String("error", err.Error()))
		if s.metrics != nil {
			s.metrics.IncRateLimitStoreErrors()
		}
		return true, 0
	}

	if incr.Val() <= int64(config.RequestsPerWindow) {
		return true, 0
	}

	ttl, err := s.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = config.WindowDuration
	}
	retryAfter := int(ttl / time.Second)
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, retryAfter
}
