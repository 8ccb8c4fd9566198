package ttlcache

import (
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := New[int]()
	c.Set("a", 42, time.Minute)

	v, ok := c.Get("a")
	if !ok || v != 42 {
		t.Errorf("Get(a) = %d, %v; want 42, true", v, ok)
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New[string]()
	c.Set("k", "v", 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("Get(k) after expiry = ok, want miss")
	}
	if c.Len() != 0 {
		t.Errorf("Len() after lazy eviction = %d, want 0", c.Len())
	}
}

func TestCache_ZeroTTLNotStored(t *testing.T) {
	c := New[int]()
	c.Set("k", 1, 0)

	if _, ok := c.Get("k"); ok {
		t.Error("Get(k) with zero TTL = ok, want miss")
	}
}

func TestCache_Sweep(t *testing.T) {
	c := New[int]()
	c.Set("expired", 1, time.Millisecond)
	c.Set("fresh", 2, time.Minute)

	time.Sleep(5 * time.Millisecond)

	evicted := c.Sweep()
	if evicted != 1 {
		t.Errorf("Sweep() evicted = %d, want 1", evicted)
	}
	if c.Len() != 1 {
		t.Errorf("Len() after sweep = %d, want 1", c.Len())
	}
}

func TestCache_Delete(t *testing.T) {
	c := New[int]()
	c.Set("k", 1, time.Minute)
	c.Delete("k")

	if _, ok := c.Get("k"); ok {
		t.Error("Get(k) after Delete = ok, want miss")
	}

	// Delete on a missing key is a no-op.
	c.Delete("missing")
}
