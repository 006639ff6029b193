//go:build integration

// Integration tests for the Redis list cache. Run with:
//
//	REDIS_URL=redis://localhost:6379/0 go test -tags=integration -v ./internal/sighting/...
package sighting_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oryza-labs/cat-explorer/internal/sighting"
)

func redisTestClient(t *testing.T) *redis.Client {
	t.Helper()

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("failed to parse REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to ping redis: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("failed to flush test database: %v", err)
	}
	return client
}

// TestCacheServesStaleList shows the cache actually serves entries: a
// write that bypasses the wrapper is invisible until the TTL passes.
func TestCacheServesStaleList(t *testing.T) {
	client := redisTestClient(t)
	inner := sighting.NewInMemoryRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cached := sighting.NewCachedRepository(inner, client, time.Minute, logger)
	ctx := context.Background()

	if _, err := cached.Create(ctx, seedRecord("first", 139.70, 35.69)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	before, err := cached.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(before) != 1 {
		t.Fatalf("ListRecent() returned %d records, want 1", len(before))
	}

	// Write directly to the inner repository so no invalidation fires.
	if _, err := inner.Create(ctx, seedRecord("hidden", 139.70, 35.69)); err != nil {
		t.Fatalf("inner Create() error = %v", err)
	}

	after, err := cached.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(after) != 1 {
		t.Errorf("ListRecent() returned %d records, want cached 1", len(after))
	}
}

// TestCacheInvalidatesOnMutation verifies every wrapper mutation makes
// the next list read reflect current state.
func TestCacheInvalidatesOnMutation(t *testing.T) {
	client := redisTestClient(t)
	inner := sighting.NewInMemoryRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cached := sighting.NewCachedRepository(inner, client, time.Minute, logger)
	ctx := context.Background()

	first, err := cached.Create(ctx, seedRecord("first", 139.70, 35.69))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := cached.ListRecent(ctx, 0); err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}

	if _, err := cached.Create(ctx, seedRecord("second", 139.70, 35.69)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	records, err := cached.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecent() after create error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("ListRecent() after create returned %d records, want 2", len(records))
	}

	if err := cached.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	records, err = cached.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecent() after delete error = %v", err)
	}
	if len(records) != 1 || records[0].Name != "second" {
		t.Errorf("ListRecent() after delete = %v, want just second", records)
	}
}
