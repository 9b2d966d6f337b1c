package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	// Create a mini Redis server for testing
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	// Parse host and port
	cache, err := NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create cache: %v", err)
	}

	return cache, mr
}

func TestNewCache(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	if cache == nil {
		t.Fatal("Cache should not be nil")
	}

	// Test ping
	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewCacheUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	host, port := mr.Host(), mr.Server().Addr().Port
	mr.Close()

	if _, err := NewCache(host, port, "", 0); err == nil {
		t.Error("Expected error connecting to a closed server")
	}
}

func TestCache_DiffOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	// Miss
	_, found, err := cache.GetDiff(ctx, "vid", 1, 2)
	if err != nil {
		t.Fatalf("GetDiff failed: %v", err)
	}
	if found {
		t.Error("Expected cache miss")
	}

	if err := cache.SetDiff(ctx, "vid", 1, 2, "--- v1.srt\n+++ v2.srt\n", time.Minute); err != nil {
		t.Fatalf("SetDiff failed: %v", err)
	}
	if err := cache.SetDiff(ctx, "other", 1, 2, "x", time.Minute); err != nil {
		t.Fatalf("SetDiff failed: %v", err)
	}

	text, found, err := cache.GetDiff(ctx, "vid", 1, 2)
	if err != nil {
		t.Fatalf("GetDiff failed: %v", err)
	}
	if !found || text != "--- v1.srt\n+++ v2.srt\n" {
		t.Errorf("Unexpected cached diff %q (found=%v)", text, found)
	}

	// TTL expiry
	mr.FastForward(2 * time.Minute)
	if _, found, _ := cache.GetDiff(ctx, "vid", 1, 2); found {
		t.Error("Expected diff to expire")
	}
}

func TestCache_InvalidateDiffs(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	_ = cache.SetDiff(ctx, "vid", 1, 2, "a", 0)
	_ = cache.SetDiff(ctx, "vid", 2, 3, "b", 0)
	_ = cache.SetDiff(ctx, "other", 1, 2, "c", 0)

	if err := cache.InvalidateDiffs(ctx, "vid"); err != nil {
		t.Fatalf("InvalidateDiffs failed: %v", err)
	}

	if mr.Exists("diff:vid:1:2") || mr.Exists("diff:vid:2:3") {
		t.Error("Expected diffs for vid to be removed")
	}
	if !mr.Exists("diff:other:1:2") {
		t.Error("Expected diffs for other videos to survive")
	}
}

func TestCache_Allow(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	ok, err := cache.Allow(ctx, "corrections:user-1", 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("Expected first call to be allowed, got %v, %v", ok, err)
	}

	ok, _ = cache.Allow(ctx, "corrections:user-1", 10*time.Second)
	if ok {
		t.Error("Expected second call inside the window to be refused")
	}

	ok, _ = cache.Allow(ctx, "corrections:user-2", 10*time.Second)
	if !ok {
		t.Error("Expected other users to be unaffected")
	}

	mr.FastForward(11 * time.Second)
	ok, _ = cache.Allow(ctx, "corrections:user-1", 10*time.Second)
	if !ok {
		t.Error("Expected call after the window to be allowed")
	}
}
