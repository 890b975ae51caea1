package cache

import (
	"context"
	"testing"
	"time"

	"github.com/ki1r0y/gallery/common/logger"
)

func TestMemoryCache_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(logger.Discard())
	defer c.Close()

	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Fatal("empty cache must miss")
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	value, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(value) != "v" {
		t.Fatalf("Get = %q, %v, %v; want v, true, nil", value, hit, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("deleted key must miss")
	}
}

func TestMemoryCache_ExpiredEntryMisses(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(logger.Discard())
	defer c.Close()

	if err := c.Set(ctx, "k", []byte("v"), -time.Second); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry must miss")
	}
}

func TestMemoryCache_UseAfterClose(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(logger.Discard())
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	// None of these may panic once the cache is closed.
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Errorf("Set after Close: %v", err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("Get after Close = %v, %v; want miss", hit, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete after Close: %v", err)
	}
}
