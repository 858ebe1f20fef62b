package media

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kapu/adgenius-go/internal/domain"
	"github.com/kapu/adgenius-go/internal/service/cache"
	"github.com/kapu/adgenius-go/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func sample(id string) domain.MediaObject {
	return domain.MediaObject{
		ID:        id,
		MIMEType:  "video/mp4",
		Data:      []byte("fake-mp4-bytes"),
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if err := store.Put(ctx, sample("v1"), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Data) != "fake-mp4-bytes" || got.MIMEType != "video/mp4" {
		t.Fatalf("unexpected object %+v", got)
	}

	if err := store.Delete(ctx, "v1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = store.Get(ctx, "v1")
	if errors.StatusCodeOf(err) != http.StatusNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	_ = store.Put(context.Background(), sample("a"), time.Minute)
	_ = store.Put(context.Background(), sample("b"), 0)

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(context.Background(), "a"); err == nil {
		t.Fatalf("expired entry should not be served")
	}
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected one swept entry, got %d", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("entry without ttl should remain")
	}
}

func TestMemoryStoreTouch(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Put(ctx, sample("clip"), time.Minute)
	for i := 0; i < 3; i++ {
		now = now.Add(50 * time.Second)
		if err := store.Touch(ctx, "clip", time.Minute); err != nil {
			t.Fatalf("Touch #%d: %v", i, err)
		}
	}
	if _, err := store.Get(ctx, "clip"); err != nil {
		t.Fatalf("touched media should outlive its first ttl: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if err := store.Touch(ctx, "clip", time.Minute); errors.StatusCodeOf(err) != http.StatusNotFound {
		t.Fatalf("expired media must not be revived, got %v", err)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(cache.NewCacheServiceFromClient(client, "adgenius:", zap.NewNop()))
	exerciseStore(t, store)

	_ = store.Put(context.Background(), sample("ttl"), time.Minute)
	mr.FastForward(2 * time.Minute)
	if _, err := store.Get(context.Background(), "ttl"); err == nil {
		t.Fatalf("expired media should be gone")
	}

	_ = store.Put(context.Background(), sample("kept"), time.Minute)
	mr.FastForward(50 * time.Second)
	if err := store.Touch(context.Background(), "kept", time.Minute); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	mr.FastForward(50 * time.Second)
	if _, err := store.Get(context.Background(), "kept"); err != nil {
		t.Fatalf("touched media should survive: %v", err)
	}
	if err := store.Touch(context.Background(), "missing", time.Minute); errors.StatusCodeOf(err) != http.StatusNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestURLFor(t *testing.T) {
	if URLFor("", "abc") != "/media/abc" {
		t.Fatalf("unexpected relative url %q", URLFor("", "abc"))
	}
	if URLFor("https://ads.example", "abc") != "https://ads.example/media/abc" {
		t.Fatalf("unexpected absolute url")
	}
}
