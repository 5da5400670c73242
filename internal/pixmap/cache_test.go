package pixmap

import (
	"testing"

	"github.com/justyntemme/pixcore/internal/codec"
)

func buf(n int) codec.Buffer {
	return codec.Buffer{Width: n, Height: 1, Stride: n * 3, Pix: make([]byte, n*3)}
}

func TestGetMissThenHit(t *testing.T) {
	c := New(4, 0)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Put("a", buf(10))
	got, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Width != 10 {
		t.Errorf("got width %d, want 10", got.Width)
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, 0)
	c.Put("a", buf(1))
	c.Put("b", buf(1))
	c.Get("a") // touch a, making b the LRU victim
	c.Put("c", buf(1))

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c present")
	}
	if c.Len() > 2 {
		t.Errorf("cache exceeded cap: len=%d", c.Len())
	}
}

func TestStrategySwitchClearsVisibility(t *testing.T) {
	c := New(20, 0)
	for _, p := range []string{"a", "b", "c", "d", "e"} {
		c.Put(p, buf(1))
	}

	c.BumpGeneration()

	for _, p := range []string{"a", "b", "c", "d", "e"} {
		if _, ok := c.Get(p); ok {
			t.Errorf("expected miss for %q after generation bump", p)
		}
	}

	// Entries still occupy LRU slots until evicted or overwritten.
	if c.Len() != 5 {
		t.Errorf("expected stale entries to remain in list, len=%d", c.Len())
	}

	c.Put("a", buf(1))
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to be visible again after Put under new generation")
	}
}

func TestByteBudgetEviction(t *testing.T) {
	c := New(100, 10) // entry cap high, byte budget tight
	c.Put("a", buf(2))
	c.Put("b", buf(2))
	c.Put("c", buf(2))

	if c.bytes > 10 {
		t.Errorf("byte budget violated: %d > 10", c.bytes)
	}
}

func TestRemoveAndClear(t *testing.T) {
	c := New(4, 0)
	c.Put("a", buf(1))
	c.Remove("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected removed entry to miss")
	}

	c.Put("x", buf(1))
	c.Put("y", buf(1))
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Clear, len=%d", c.Len())
	}
}
