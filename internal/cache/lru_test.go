package cache

import (
	"testing"
	"time"
)

func TestLRUGetSet(t *testing.T) {
	c := NewLRU[int](2, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("unexpected hit")
	}

	c.Set("a", 1)
	c.Set("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("got %d ok=%v", v, ok)
	}

	// "a" was just used, so adding "c" evicts "b".
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a retained")
	}
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRU[string](10, time.Millisecond)
	c.Set("k", "v")
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestLRUPurge(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}
