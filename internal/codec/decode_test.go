package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestFitWithin(t *testing.T) {
	cases := []struct {
		srcW, srcH, tw, th, wantW, wantH int
	}{
		{1, 1, 100, 100, 1, 1}, // never upscale
		{4000, 3000, 400, 300, 400, 300},
		{4000, 3000, 400, 0, 400, 300},
		{3000, 4000, 0, 400, 300, 400},
		{100, 100, 0, 0, 100, 100}, // no constraint
	}
	for _, c := range cases {
		w, h := fitWithin(c.srcW, c.srcH, c.tw, c.th)
		if w != c.wantW || h != c.wantH {
			t.Errorf("fitWithin(%d,%d,%d,%d) = (%d,%d), want (%d,%d)",
				c.srcW, c.srcH, c.tw, c.th, w, h, c.wantW, c.wantH)
		}
	}
}

func TestBlendClamps(t *testing.T) {
	if v := blend(-10, 0, 1); v != 0 {
		t.Errorf("blend underflow: got %d, want 0", v)
	}
	if v := blend(300, 0, 1); v != 255 {
		t.Errorf("blend overflow: got %d, want 255", v)
	}
}

func TestDecodeNotFound(t *testing.T) {
	_, err := Decode(Request{Path: "/nonexistent/path/image.png", Mode: ModeFull})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	var cerr *Error
	if !asCodecError(err, &cerr) {
		t.Fatalf("expected *codec.Error, got %T", err)
	}
	if cerr.Kind != KindNotFound {
		t.Errorf("expected KindNotFound, got %s", cerr.Kind)
	}
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Decode(Request{Path: path, Mode: ModeFull})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestDecodeThumbnailNoUpscale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.png")
	writePNG(t, path, 1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	buf, err := Decode(Request{Path: path, Mode: ModeThumbnail, TargetW: 100, TargetH: 100})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if buf.Width != 1 || buf.Height != 1 {
		t.Errorf("expected 1x1 buffer, got %dx%d", buf.Width, buf.Height)
	}
}

func TestDecodeFullIgnoresTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "full.png")
	writePNG(t, path, 20, 10, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	buf, err := Decode(Request{Path: path, Mode: ModeFull, TargetW: 5, TargetH: 5})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if buf.Width != 20 || buf.Height != 10 {
		t.Errorf("expected 20x10 (full decode ignores target), got %dx%d", buf.Width, buf.Height)
	}
	if buf.Stride != buf.Width*3 {
		t.Errorf("stride mismatch: got %d, want %d", buf.Stride, buf.Width*3)
	}
}

func TestDecodeDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "det.png")
	writePNG(t, path, 8, 8, color.RGBA{R: 5, G: 6, B: 7, A: 255})

	b1, err := Decode(Request{Path: path, Mode: ModeFull})
	if err != nil {
		t.Fatal(err)
	}
	b2, err := Decode(Request{Path: path, Mode: ModeFull})
	if err != nil {
		t.Fatal(err)
	}
	if b1.Width != b2.Width || b1.Height != b2.Height {
		t.Errorf("decode not deterministic: %dx%d vs %dx%d", b1.Width, b1.Height, b2.Width, b2.Height)
	}
}

func writePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func asCodecError(err error, out **Error) bool {
	ce, ok := err.(*Error)
	if !ok {
		return false
	}
	*out = ce
	return true
}
