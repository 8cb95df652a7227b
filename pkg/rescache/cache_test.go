package rescache

import (
	"fmt"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestGetMissThenHit(t *testing.T) {
	c := New[string]()

	if _, ok := c.Get("k"); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.Set("k", "v", nil, 0)
	v, ok := c.Get("k")
	if !ok || v != "v" {
		t.Fatalf("Get(k) = %q, %v; want v, true", v, ok)
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Sets != 1 {
		t.Fatalf("stats = %+v; want 1 hit, 1 miss, 1 set", s)
	}
}

func TestTTLExpiryIsAMiss(t *testing.T) {
	clock := newFakeClock()
	c := New[string](WithDefaultTTL(time.Minute), WithClock(clock.Now))

	c.Set("k", "v", nil, 0)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	clock.Advance(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after TTL elapsed, even without physical eviction")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not collected by Get: len=%d", c.Len())
	}
}

func TestTTLOverridePerEntry(t *testing.T) {
	clock := newFakeClock()
	c := New[string](WithDefaultTTL(time.Hour), WithClock(clock.Now))

	c.Set("short", "v", nil, time.Second)
	c.Set("long", "v", nil, 0)

	clock.Advance(2 * time.Second)
	if _, ok := c.Get("short"); ok {
		t.Fatal("short-TTL entry should have expired")
	}
	if _, ok := c.Get("long"); !ok {
		t.Fatal("default-TTL entry should still be live")
	}
}

func TestLRUEviction(t *testing.T) {
	c := New[int](WithCapacity(3))

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i, nil, 0)
	}
	// Touch k0 so k1 becomes least recently used.
	if _, ok := c.Get("k0"); !ok {
		t.Fatal("expected k0 hit")
	}
	c.Set("k3", 3, nil, 0)

	if _, ok := c.Get("k1"); ok {
		t.Fatal("k1 should have been evicted as least recently used")
	}
	for _, k := range []string{"k0", "k2", "k3"} {
		if !c.Has(k) {
			t.Fatalf("%s should have survived eviction", k)
		}
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Fatalf("evictions = %d, want 1", got)
	}
}

func TestInvalidateByTagExact(t *testing.T) {
	c := New[string]()

	c.Set("a1", "v", []string{"student:alpha"}, 0)
	c.Set("a2", "v", []string{"student:alpha", "scope:analytics"}, 0)
	c.Set("b1", "v", []string{"student:beta"}, 0)

	removed := c.InvalidateByTag("student:alpha")
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if c.Has("a1") || c.Has("a2") {
		t.Fatal("alpha-tagged entries survived invalidation")
	}
	if !c.Has("b1") {
		t.Fatal("beta-tagged entry was removed by alpha invalidation")
	}
	if got := c.Stats().Invalidations; got != 2 {
		t.Fatalf("invalidations = %d, want 2", got)
	}
}

func TestInvalidateUnknownTag(t *testing.T) {
	c := New[string]()
	c.Set("k", "v", []string{"student:alpha"}, 0)
	if removed := c.InvalidateByTag("student:nobody"); removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
}

func TestTagIndexSurvivesOverwrite(t *testing.T) {
	c := New[string]()

	c.Set("k", "v1", []string{"student:alpha"}, 0)
	c.Set("k", "v2", []string{"student:beta"}, 0)

	// The old tag registration must be gone.
	if removed := c.InvalidateByTag("student:alpha"); removed != 0 {
		t.Fatalf("stale tag still indexed: removed %d", removed)
	}
	if removed := c.InvalidateByTag("student:beta"); removed != 1 {
		t.Fatalf("current tag not indexed: removed %d", removed)
	}
}

func TestSchemaVersionMismatchIsAMiss(t *testing.T) {
	c := New[string](WithVersion(SchemaVersion))
	c.Set("k", "v", nil, 0)

	// Same backing store read by a cache expecting a newer schema.
	c.version = SchemaVersion + 1
	if _, ok := c.Get("k"); ok {
		t.Fatal("stale-version entry served as a hit")
	}
	if c.Len() != 0 {
		t.Fatal("stale-version entry not removed on read")
	}
}

func TestClearKeepsCounters(t *testing.T) {
	c := New[string]()
	c.Set("k", "v", []string{"t"}, 0)
	c.Get("k")
	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("len after clear = %d", c.Len())
	}
	s := c.Stats()
	if s.Hits != 1 || s.Sets != 1 {
		t.Fatalf("counters reset by Clear: %+v", s)
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry survived Clear")
	}
	if removed := c.InvalidateByTag("t"); removed != 0 {
		t.Fatalf("tag index survived Clear: removed %d", removed)
	}
}

func TestHasDoesNotTouchCounters(t *testing.T) {
	c := New[string]()
	c.Set("k", "v", nil, 0)

	before := c.Stats()
	c.Has("k")
	c.Has("missing")
	after := c.Stats()

	if before.Hits != after.Hits || before.Misses != after.Misses {
		t.Fatalf("Has moved counters: before %+v after %+v", before, after)
	}
}

func TestHitRate(t *testing.T) {
	c := New[string]()
	c.Set("k", "v", nil, 0)
	c.Get("k")
	c.Get("k")
	c.Get("missing")

	if got := c.Stats().HitRate; got < 0.66 || got > 0.67 {
		t.Fatalf("hit rate = %v, want ~2/3", got)
	}
}
