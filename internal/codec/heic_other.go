//go:build !linux && !windows

package codec

import (
	"image"
	"io"
)

// decodeHEIC is a stub on platforms other than linux, matching the
// teacher's goheif support which is linux-only.
func decodeHEIC(r io.Reader) (image.Image, error) {
	return nil, errHEICUnsupported
}

func heicSupported() bool { return false }
