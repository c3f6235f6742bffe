package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) (*CacheRepo, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := NewClient(srv.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	return NewCacheRepo(client), srv
}

func TestCacheRepoSetAndGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	if _, ok, err := cache.Get(ctx, "q=go"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := cache.Set(ctx, "q=go", []byte(`[{"id":1}]`), time.Minute); err != nil {
		t.Fatalf("set cache entry: %v", err)
	}

	payload, ok, err := cache.Get(ctx, "q=go")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(payload) != `[{"id":1}]` {
		t.Fatalf("unexpected payload: %s", payload)
	}
}

func TestCacheRepoEntriesExpire(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "q=db", []byte(`[]`), time.Second); err != nil {
		t.Fatalf("set cache entry: %v", err)
	}

	srv.FastForward(2 * time.Second)

	if _, ok, err := cache.Get(ctx, "q=db"); err != nil || ok {
		t.Fatalf("expected expired miss, got ok=%v err=%v", ok, err)
	}
}

func TestCacheRepoInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "q=a", []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("set cache entry: %v", err)
	}
	if err := cache.Set(ctx, "q=b", []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("set cache entry: %v", err)
	}

	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate cache: %v", err)
	}

	if _, ok, _ := cache.Get(ctx, "q=a"); ok {
		t.Fatalf("entry q=a survived invalidation")
	}
	if _, ok, _ := cache.Get(ctx, "q=b"); ok {
		t.Fatalf("entry q=b survived invalidation")
	}
}
