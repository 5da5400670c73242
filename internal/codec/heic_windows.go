//go:build windows

package codec

import (
	"image"
	"io"
)

// decodeHEIC is a stub: goheif has no pure-Go decode path on Windows,
// matching the teacher's own platform split.
func decodeHEIC(r io.Reader) (image.Image, error) {
	return nil, errHEICUnsupported
}

func heicSupported() bool { return false }
