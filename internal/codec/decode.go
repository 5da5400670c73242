package codec

import (
	"image"
	"image/color"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Mode selects how Decode sizes its output.
type Mode int

const (
	// ModeThumbnail decodes to approximately the target box using the
	// fastest downscaling path. Either target dimension may be zero to
	// constrain on the other axis only.
	ModeThumbnail Mode = iota
	// ModeFull decodes at the source file's native resolution, ignoring
	// any target box.
	ModeFull
)

// Request describes one decode. It is built only from serializable
// fields so it can cross a worker-process boundary.
type Request struct {
	Path    string
	TargetW int // 0 means unconstrained on this axis
	TargetH int
	Mode    Mode
	// Background is used to flatten alpha; the zero value is mid-gray
	// (128, 128, 128), matching the package default.
	Background color.RGBA
}

var defaultBackground = color.RGBA{R: 128, G: 128, B: 128, A: 255}

// Decode decodes the file at req.Path into an RGB24 buffer. It either
// returns a fully valid Buffer or a non-nil *Error; it never partially
// returns.
func Decode(req Request) (Buffer, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Buffer{}, newErr(KindNotFound, req.Path, err)
		}
		return Buffer{}, newErr(KindIOFailed, req.Path, err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(req.Path))
	if ext == ".heic" || ext == ".heif" {
		if !heicSupported() {
			return Buffer{}, newErr(KindUnsupportedFormat, req.Path, errHEICUnsupported)
		}
		src, err := decodeHEIC(f)
		if err != nil {
			return Buffer{}, newErr(KindCorruptData, req.Path, err)
		}
		return finishDecode(req, src)
	}

	src, format, err := decodeFirstFrame(f)
	if err != nil {
		return Buffer{}, classifyDecodeErr(req.Path, format, err)
	}
	return finishDecode(req, src)
}

func finishDecode(req Request, src image.Image) (Buffer, error) {
	bg := req.Background
	if bg == (color.RGBA{}) {
		bg = defaultBackground
	}

	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= 0 || srcH <= 0 {
		return Buffer{}, newErr(KindCorruptData, req.Path, nil)
	}

	dstW, dstH := srcW, srcH
	if req.Mode == ModeThumbnail {
		dstW, dstH = fitWithin(srcW, srcH, req.TargetW, req.TargetH)
	}

	out := newBuffer(dstW, dstH)
	flattenInto(out, src, bg)
	if dstW != srcW || dstH != srcH {
		scaled := newBuffer(dstW, dstH)
		draw.BiLinear.Scale(asRGBAImage(scaled), image.Rect(0, 0, dstW, dstH), asRGBAImage(out), image.Rect(0, 0, srcW, srcH), draw.Src, nil)
		scaled.OrigWidth, scaled.OrigHeight = srcW, srcH
		return scaled, nil
	}
	out.OrigWidth, out.OrigHeight = srcW, srcH
	return out, nil
}

// decodeFirstFrame decodes the first frame of any registered format,
// including multi-frame GIF containers.
func decodeFirstFrame(f *os.File) (image.Image, string, error) {
	// GIF needs special handling to grab only the first frame; every
	// other registered format is a single still image already.
	peek := make([]byte, 6)
	n, _ := f.Read(peek)
	f.Seek(0, 0)
	if n >= 6 && string(peek[:3]) == "GIF" {
		g, err := gif.DecodeAll(f)
		if err != nil {
			return nil, "gif", err
		}
		if len(g.Image) == 0 {
			return nil, "gif", errEmptyGIF
		}
		return g.Image[0], "gif", nil
	}
	return image.Decode(f)
}

var (
	errEmptyGIF        = simpleErr("gif container has no frames")
	errHEICUnsupported = simpleErr("HEIC decoding is not available on this platform")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func classifyDecodeErr(path, format string, err error) *Error {
	if err == image.ErrFormat {
		return newErr(KindUnsupportedFormat, path, err)
	}
	return newErr(KindCorruptData, path, err)
}

// fitWithin computes output dimensions that fit within the target box
// without upscaling, preserving aspect ratio, using the tighter
// constraint when both axes are given.
func fitWithin(srcW, srcH, targetW, targetH int) (int, int) {
	if targetW <= 0 && targetH <= 0 {
		return srcW, srcH
	}

	scale := 1.0
	haveW := targetW > 0
	haveH := targetH > 0

	if haveW {
		ws := float64(targetW) / float64(srcW)
		if ws < scale {
			scale = ws
		}
	}
	if haveH {
		hs := float64(targetH) / float64(srcH)
		if hs < scale {
			scale = hs
		}
	}

	if scale >= 1.0 {
		// Never upscale.
		return srcW, srcH
	}

	w := int(float64(srcW) * scale)
	h := int(float64(srcH) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// flattenInto converts src to sRGB and flattens any alpha against bg,
// writing the result into dst (which must already be sized to src's
// bounds).
func flattenInto(dst Buffer, src image.Image, bg color.RGBA) {
	bounds := src.Bounds()
	for y := 0; y < dst.Height; y++ {
		rowOff := y * dst.Stride
		for x := 0; x < dst.Width; x++ {
			r, g, b, a := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// r,g,b,a are alpha-premultiplied 16-bit; un-premultiply and
			// flatten against bg in 8-bit space.
			var cr, cg, cb uint8
			if a == 0 {
				cr, cg, cb = bg.R, bg.G, bg.B
			} else {
				ar := float64(r) / float64(a)
				ag := float64(g) / float64(a)
				ab := float64(b) / float64(a)
				af := float64(a) / 0xffff
				cr = blend(ar*0xff, float64(bg.R), af)
				cg = blend(ag*0xff, float64(bg.G), af)
				cb = blend(ab*0xff, float64(bg.B), af)
			}
			off := rowOff + x*3
			dst.Pix[off] = cr
			dst.Pix[off+1] = cg
			dst.Pix[off+2] = cb
		}
	}
}

func blend(fg, bg, alpha float64) uint8 {
	v := fg*alpha + bg*(1-alpha)
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v + 0.5)
}

// asRGBAImage wraps a Buffer as a draw.Image so it can be used as a
// scaling source/destination without an intermediate copy. Alpha is
// always opaque since Buffer never carries one.
func asRGBAImage(b Buffer) draw.Image {
	return &rgb24Image{b: b}
}

type rgb24Image struct{ b Buffer }

func (r *rgb24Image) ColorModel() color.Model { return color.RGBAModel }
func (r *rgb24Image) Bounds() image.Rectangle { return image.Rect(0, 0, r.b.Width, r.b.Height) }
func (r *rgb24Image) At(x, y int) color.Color {
	off := y*r.b.Stride + x*3
	return color.RGBA{R: r.b.Pix[off], G: r.b.Pix[off+1], B: r.b.Pix[off+2], A: 0xff}
}
func (r *rgb24Image) Set(x, y int, c color.Color) {
	cr, cg, cb, _ := c.RGBA()
	off := y*r.b.Stride + x*3
	r.b.Pix[off] = uint8(cr >> 8)
	r.b.Pix[off+1] = uint8(cg >> 8)
	r.b.Pix[off+2] = uint8(cb >> 8)
}
