package engine

import "github.com/justyntemme/pixcore/internal/codec"

// Strategy selects how a UI intent ("show me this path") is turned
// into a decode request: a cheap thumbnail-sized decode for rapid
// browsing, or a full native-resolution decode for detail viewing.
type Strategy int

const (
	// StrategyFastView decodes to the viewport box with no HQ
	// downscale support, matching C1's thumbnail mode.
	StrategyFastView Strategy = iota
	// StrategyFull decodes at native resolution, unconstrained by any
	// target box, and supports high-quality downscale in the caller.
	StrategyFull
)

func (s Strategy) mode() codec.Mode {
	if s == StrategyFull {
		return codec.ModeFull
	}
	return codec.ModeThumbnail
}

func (s Strategy) supportsHQ() bool {
	return s == StrategyFull
}

// targetSize resolves the decode target box for viewport (vw, vh)
// under this strategy. StrategyFull is unconstrained: the codec
// ignores target dimensions in mode=full.
func (s Strategy) targetSize(vw, vh int) (int, int) {
	if s == StrategyFull {
		return 0, 0
	}
	return vw, vh
}
