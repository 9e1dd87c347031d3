package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"repolens/internal/cache/memory"
)

func TestResultCacheEvictsOldestInsertion(t *testing.T) {
	ctx := context.Background()
	c := New(memory.New(), 2, time.Minute)

	c.Set(ctx, "a", []byte("aa"), 0)
	c.Set(ctx, "b", []byte("bb"), 0)
	c.Set(ctx, "c", []byte("cc"), 0)

	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("expected a to be trimmed")
	}
	if raw, ok := c.Get(ctx, "b"); !ok || string(raw) != "bb" {
		t.Fatalf("expected b to remain: ok=%v raw=%q", ok, raw)
	}
	if raw, ok := c.Get(ctx, "c"); !ok || string(raw) != "cc" {
		t.Fatalf("expected c to remain: ok=%v raw=%q", ok, raw)
	}
	if got := c.Len(); got != 2 {
		t.Fatalf("expected 2 tracked entries, got %d", got)
	}
}

func TestResultCacheGetDoesNotRefreshOrder(t *testing.T) {
	ctx := context.Background()
	c := New(memory.New(), 2, time.Minute)

	c.Set(ctx, "a", []byte("aa"), 0)
	c.Set(ctx, "b", []byte("bb"), 0)
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatalf("expected a before trim")
	}
	c.Set(ctx, "c", []byte("cc"), 0)

	// a stays the oldest insertion even though it was just read.
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("expected a to be trimmed despite recent read")
	}
	if _, ok := c.Get(ctx, "b"); !ok {
		t.Fatalf("expected b to remain")
	}
	if _, ok := c.Get(ctx, "c"); !ok {
		t.Fatalf("expected c to remain")
	}
}

func TestResultCacheOverwriteReusesSlot(t *testing.T) {
	ctx := context.Background()
	c := New(memory.New(), 2, time.Minute)

	c.Set(ctx, "a", []byte("v1"), 0)
	c.Set(ctx, "a", []byte("v2"), 0)
	c.Set(ctx, "b", []byte("bb"), 0)

	if raw, ok := c.Get(ctx, "a"); !ok || string(raw) != "v2" {
		t.Fatalf("expected overwritten a: ok=%v raw=%q", ok, raw)
	}
	if _, ok := c.Get(ctx, "b"); !ok {
		t.Fatalf("expected b to remain")
	}
	if got := c.Len(); got != 2 {
		t.Fatalf("expected 2 tracked entries, got %d", got)
	}
}

func TestResultCacheAppliesDefaultTTL(t *testing.T) {
	ctx := context.Background()
	c := New(memory.New(), 10, 30*time.Millisecond)

	c.Set(ctx, "k", []byte("v"), 0)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatalf("expected hit before expiry")
	}
	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after default ttl")
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend down")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("backend down")
}

func (failingStore) Delete(context.Context, string) error { return errors.New("backend down") }
func (failingStore) Clear(context.Context) error          { return errors.New("backend down") }

func TestResultCacheDegradesWhenStoreFails(t *testing.T) {
	ctx := context.Background()
	c := New(failingStore{}, 2, time.Minute)

	c.Set(ctx, "a", []byte("aa"), 0)
	if got := c.Len(); got != 0 {
		t.Fatalf("failed set must not be tracked, got %d entries", got)
	}
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("expected degraded get to miss")
	}
	c.Delete(ctx, "a")
	c.Clear(ctx)
}

func TestResultCacheNilReceiver(t *testing.T) {
	ctx := context.Background()
	var c *ResultCache

	c.Set(ctx, "a", []byte("aa"), 0)
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("nil cache must miss")
	}
	if got := c.Len(); got != 0 {
		t.Fatalf("nil cache len = %d", got)
	}
}
