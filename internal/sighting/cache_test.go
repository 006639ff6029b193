package sighting

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oryza-labs/cat-explorer/internal/geo"
)

// unreachableRedis returns a client whose every command fails fast. The
// cache must treat that as a miss, never as a request failure.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCachedRepositoryFailOpen(t *testing.T) {
	inner := NewInMemoryRepository()
	cached := NewCachedRepository(inner, unreachableRedis(t), 0, quietLogger())
	ctx := t.Context()

	stored, err := cached.Create(ctx, recordAt("mochi", 139.70, 35.69))
	if err != nil {
		t.Fatalf("Create() with redis down error = %v", err)
	}

	if got, err := cached.GetByID(ctx, stored.ID); err != nil || got.Name != "mochi" {
		t.Errorf("GetByID() with redis down = %+v, %v", got, err)
	}

	recent, err := cached.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecent() with redis down error = %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("ListRecent() returned %d records, want 1", len(recent))
	}

	near, err := cached.ListNear(ctx, geo.Point{Lat: 35.69, Lng: 139.70}, 10, 0)
	if err != nil {
		t.Fatalf("ListNear() with redis down error = %v", err)
	}
	if len(near) != 1 {
		t.Errorf("ListNear() returned %d records, want 1", len(near))
	}

	name := "Mochi II"
	if _, err := cached.Update(ctx, stored.ID, &Patch{Name: &name}); err != nil {
		t.Errorf("Update() with redis down error = %v", err)
	}
	if err := cached.Delete(ctx, stored.ID); err != nil {
		t.Errorf("Delete() with redis down error = %v", err)
	}
}

func TestCachedRepositoryPropagatesInnerErrors(t *testing.T) {
	inner := NewInMemoryRepository()
	cached := NewCachedRepository(inner, unreachableRedis(t), 0, quietLogger())
	ctx := t.Context()

	if _, err := cached.GetByID(ctx, uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(absent) error = %v, want ErrNotFound", err)
	}
	if err := cached.Delete(ctx, "not-a-uuid"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Delete(malformed) error = %v, want ErrInvalidID", err)
	}
}
