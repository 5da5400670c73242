package scheduler

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justyntemme/pixcore/internal/codec"
)

func writeTestPNG(t *testing.T, w, h int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x + y), A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRapidRequestsOnSamePathDeliverOnlyLatest(t *testing.T) {
	s := New(2, 2)
	defer s.Shutdown(time.Second)

	path := writeTestPNG(t, 64, 64)

	var lastID RequestID
	for i := 0; i < 5; i++ {
		lastID = s.Request(path, 0, 0, codec.ModeFull, PriorityForeground)
	}

	deadline := time.After(2 * time.Second)
	seen := map[RequestID]bool{}
	for {
		select {
		case ev := <-s.Events:
			if ev.Path != path {
				t.Fatalf("unexpected path in event: %q", ev.Path)
			}
			seen[ev.ID] = true
			if ev.ID != lastID {
				t.Errorf("delivered stale id %d, want latest %d", ev.ID, lastID)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestIgnoreDropsInFlightCompletion(t *testing.T) {
	s := New(2, 2)
	defer s.Shutdown(time.Second)

	// A large image biases decode time well above the channel
	// round-trip cost of the subsequent Ignore call.
	path := writeTestPNG(t, 1200, 1200)

	s.Request(path, 0, 0, codec.ModeFull, PriorityForeground)
	s.Ignore(path)

	select {
	case ev := <-s.Events:
		t.Fatalf("expected no event after ignore, got %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestCancelMarksInFlightStale(t *testing.T) {
	s := New(2, 2)
	defer s.Shutdown(time.Second)

	path := writeTestPNG(t, 1200, 1200)
	s.Request(path, 0, 0, codec.ModeFull, PriorityForeground)
	s.Cancel(path)

	select {
	case ev := <-s.Events:
		t.Fatalf("expected no event after cancel, got %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDistinctPathsEachDeliver(t *testing.T) {
	s := New(4, 4)
	defer s.Shutdown(time.Second)

	pathA := writeTestPNG(t, 32, 32)
	pathB := writeTestPNG(t, 32, 32)

	idA := s.Request(pathA, 0, 0, codec.ModeFull, PriorityForeground)
	idB := s.Request(pathB, 0, 0, codec.ModeFull, PriorityForeground)

	got := map[string]RequestID{}
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-s.Events:
			got[ev.Path] = ev.ID
		case <-deadline:
			t.Fatalf("timed out, got %d of 2 events", len(got))
		}
	}
	if got[pathA] != idA || got[pathB] != idB {
		t.Errorf("got %+v, want {%q:%d, %q:%d}", got, pathA, idA, pathB, idB)
	}
}
