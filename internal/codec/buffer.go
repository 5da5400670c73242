// Package codec decodes image files into display-ready RGB24 pixel
// buffers. It is a stateless, pure function with respect to its
// filesystem input: no package-level mutable state, safe to invoke from
// any goroutine (or, per the scheduler's worker pool, any worker).
package codec

// Buffer is an immutable 24-bit RGB pixel buffer. Alpha has already been
// flattened against a background color by Decode; Buffer never carries an
// alpha channel.
type Buffer struct {
	Width  int
	Height int
	Stride int // always Width*3
	Pix    []byte

	// OrigWidth/OrigHeight are the source image's dimensions before any
	// thumbnail downscaling; they equal Width/Height when mode=full.
	OrigWidth  int
	OrigHeight int
}

// Dims reports the buffer's width and height.
func (b Buffer) Dims() (w, h int) {
	return b.Width, b.Height
}

func newBuffer(w, h int) Buffer {
	stride := w * 3
	return Buffer{
		Width:  w,
		Height: h,
		Stride: stride,
		Pix:    make([]byte, stride*h),
	}
}
