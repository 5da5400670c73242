package folder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"

	"github.com/justyntemme/pixcore/internal/codec"
	"github.com/justyntemme/pixcore/internal/debug"
	"github.com/justyntemme/pixcore/internal/scheduler"
	"github.com/justyntemme/pixcore/internal/thumbstore"
)

// loaderChunkSize is how many rows runLoader batches into a single
// RowsUpdated event when flushing thumbnail-store hits, so a large
// folder doesn't deliver one event per row on first load.
const loaderChunkSize = 64

// runLoader is the Batch Thumbnail Loader (C6): it resolves every file
// in files against the thumbnail store with a single GetBatch call,
// publishes chunked RowsUpdated events for hits, and submits a
// background decode for every miss. gen is the snapshot generation
// files was enumerated under; results for a stale generation are
// dropped by HandleDecoded.
func (m *Model) runLoader(gen int, files []FileInfo) {
	if m.store == nil || len(files) == 0 {
		return
	}

	items := make([]thumbstore.Item, len(files))
	for i, f := range files {
		items[i] = thumbstore.Item{
			Path: f.Path,
			Stat: thumbstore.Stat{MTime: f.ModTime.Unix(), Size: f.Size},
			Box:  m.box,
		}
	}

	results, err := m.store.GetBatch(context.Background(), items)
	if err != nil {
		debug.Log(debug.FOLDER, "batch thumbnail lookup failed: %v", err)
		return
	}

	chunkRows := make([]Row, 0, loaderChunkSize)
	chunkIdx := make([]int, 0, loaderChunkSize)
	var misses []FileInfo

	flushChunk := func() {
		if len(chunkRows) == 0 {
			return
		}
		m.Events <- ModelEvent{Kind: EventRowsUpdated, Rows: chunkRows, Indices: chunkIdx}
		chunkRows = make([]Row, 0, loaderChunkSize)
		chunkIdx = make([]int, 0, loaderChunkSize)
	}

	for i, f := range files {
		res := results[i]
		if !m.stillCurrent(gen) {
			return
		}
		if res.Hit {
			m.mu.Lock()
			idx, ok := m.byPath[f.Path]
			if ok {
				m.rows[idx].OrigW = res.OrigW
				m.rows[idx].OrigH = res.OrigH
				m.rows[idx].Thumb = res.PNG
			}
			row := Row{}
			if ok {
				row = m.rows[idx]
			}
			m.mu.Unlock()
			if ok {
				chunkRows = append(chunkRows, row)
				chunkIdx = append(chunkIdx, idx)
				if len(chunkRows) >= loaderChunkSize {
					flushChunk()
				}
			}
			continue
		}
		misses = append(misses, f)
	}
	flushChunk()

	if m.sched == nil || len(misses) == 0 {
		return
	}

	m.mu.Lock()
	for _, f := range misses {
		m.pendingThumbs[f.Path] = gen
	}
	m.mu.Unlock()

	for _, f := range misses {
		if !m.stillCurrent(gen) {
			return
		}
		m.sched.RequestWithBackground(f.Path, m.box.W, m.box.H, codec.ModeThumbnail, scheduler.PriorityBackground, color.RGBA{})
	}
}

func (m *Model) stillCurrent(gen int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadGen == gen
}

// encodePNG encodes an RGB24 codec.Buffer as PNG bytes for storage in
// the thumbnail database.
func encodePNG(buf codec.Buffer) ([]byte, error) {
	img := &rgb24PNGImage{buf: buf}
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// rgb24PNGImage is a minimal read-only image.Image wrapper over a
// codec.Buffer, local to this package since codec's own wrapper is
// unexported.
type rgb24PNGImage struct{ buf codec.Buffer }

func (r *rgb24PNGImage) ColorModel() color.Model { return color.RGBAModel }
func (r *rgb24PNGImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.buf.Width, r.buf.Height)
}
func (r *rgb24PNGImage) At(x, y int) color.Color {
	off := y*r.buf.Stride + x*3
	return color.RGBA{R: r.buf.Pix[off], G: r.buf.Pix[off+1], B: r.buf.Pix[off+2], A: 0xff}
}
