package cache

import (
	"testing"
	"time"
)

func TestGetSetBasic(t *testing.T) {
	c := New[string, int](10, time.Hour)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Set("a", 1)
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v; want 1, true", v, ok)
	}
	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("stats = %+v, want 1 hit 1 miss", stats)
	}
}

func TestExpiry(t *testing.T) {
	c := New[string, int](10, 10*time.Millisecond)
	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expired entry to be a miss")
	}
}

func TestAliases(t *testing.T) {
	c := New[string, string](10, time.Hour)
	c.Set("primary", "intent-value", "alias1", "alias2")
	for _, k := range []string{"primary", "alias1", "alias2"} {
		v, ok := c.Get(k)
		if !ok || v != "intent-value" {
			t.Fatalf("Get(%s) = %v, %v; want intent-value, true", k, v, ok)
		}
	}
}

func TestHitRate(t *testing.T) {
	c := New[string, int](10, time.Hour)
	if c.HitRate() != 0 {
		t.Fatal("expected 0 hit rate with no lookups")
	}
	c.Set("a", 1)
	c.Get("a")
	c.Get("missing")
	if rate := c.HitRate(); rate != 0.5 {
		t.Fatalf("HitRate() = %v, want 0.5", rate)
	}
}

func TestClearResetsCounters(t *testing.T) {
	c := New[string, int](10, time.Hour)
	c.Set("a", 1)
	c.Get("a")
	c.Clear()
	if stats := c.Stats(); stats.Entries != 0 || stats.Hits != 0 || stats.Misses != 0 {
		t.Fatalf("stats after Clear = %+v, want all zero", stats)
	}
}
