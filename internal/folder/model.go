// Package folder implements the Folder Model (C5): a row-oriented view
// of a single directory's image files, reactive to filesystem changes,
// backed by the Batch Thumbnail Loader (C6).
package folder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/justyntemme/pixcore/internal/codec"
	"github.com/justyntemme/pixcore/internal/natsort"
	"github.com/justyntemme/pixcore/internal/scheduler"
	"github.com/justyntemme/pixcore/internal/thumbstore"
)

// Row is one displayed entry: a file plus whatever resolution/thumbnail
// data has been resolved for it so far.
type Row struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	OrigW   int
	OrigH   int
	Thumb   []byte // nil until resolved
}

// EventKind tags a ModelEvent variant.
type EventKind int

const (
	EventRowsChanged EventKind = iota
	EventRowsUpdated
	EventPathsRemoved
)

// ModelEvent is the tagged-variant notification the Model emits.
type ModelEvent struct {
	Kind         EventKind
	Rows         []Row // full snapshot for RowsChanged, touched rows for RowsUpdated
	Indices      []int // indices aligned with Rows, for RowsUpdated
	RemovedPaths []string
}

// Model owns a single folder's row snapshot. It holds a weak
// (non-owning) reference to the scheduler for miss-decoding and to the
// thumbnail store for cache probes; the Engine Facade owns both.
type Model struct {
	mu     sync.RWMutex
	root   string
	rows   []Row
	byPath map[string]int

	sched *scheduler.Scheduler
	store *thumbstore.Store
	box   thumbstore.Box

	loadGen       int
	pendingThumbs map[string]int // path -> generation it was submitted under

	updMu          sync.Mutex
	pendingUpdates map[string]bool
	flushScheduled bool

	watcher *watcher

	Events chan ModelEvent
}

// coalesceWindow is the last-writer-wins window C6 uses to batch
// bursts of row updates rather than emitting one event per path.
const coalesceWindow = 16 * time.Millisecond

// New creates a Model bound to sched (decode submission) and store
// (thumbnail probes), resolving thumbnails to box on each snapshot.
func New(sched *scheduler.Scheduler, store *thumbstore.Store, box thumbstore.Box) *Model {
	return &Model{
		sched:         sched,
		store:         store,
		box:           box,
		byPath:        make(map[string]int),
		pendingThumbs: make(map[string]int),
		Events:        make(chan ModelEvent, 64),
	}
}

// SetRoot scans root, publishes a new row snapshot with stable indices
// for unchanged rows, and kicks off a batch thumbnail resolution pass.
func (m *Model) SetRoot(root string) error {
	files, err := scanDir(root)
	if err != nil {
		return err
	}

	sort.Slice(files, func(i, j int) bool { return natsort.Less(files[i].Name, files[j].Name) })

	m.mu.Lock()
	oldByPath := m.byPath
	oldRows := m.rows

	newRows := make([]Row, len(files))
	newByPath := make(map[string]int, len(files))
	for i, f := range files {
		row := Row{Path: f.Path, Name: f.Name, Size: f.Size, ModTime: f.ModTime}
		if oi, ok := oldByPath[f.Path]; ok {
			old := oldRows[oi]
			if old.Size == f.Size && old.ModTime.Equal(f.ModTime) {
				row.OrigW, row.OrigH, row.Thumb = old.OrigW, old.OrigH, old.Thumb
			}
		}
		newRows[i] = row
		newByPath[f.Path] = i
	}

	var departed []string
	for p := range oldByPath {
		if _, ok := newByPath[p]; !ok {
			departed = append(departed, p)
		}
	}

	m.root = root
	m.rows = newRows
	m.byPath = newByPath
	m.loadGen++
	gen := m.loadGen
	m.pendingThumbs = make(map[string]int)
	m.mu.Unlock()

	if m.sched != nil {
		for _, p := range departed {
			m.sched.Ignore(p)
		}
	}

	m.restartWatcher(root)

	snapshot := make([]Row, len(newRows))
	copy(snapshot, newRows)
	m.Events <- ModelEvent{Kind: EventRowsChanged, Rows: snapshot}
	if len(departed) > 0 {
		m.Events <- ModelEvent{Kind: EventPathsRemoved, RemovedPaths: departed}
	}

	go m.runLoader(gen, files)
	return nil
}

func (m *Model) restartWatcher(root string) {
	if m.watcher != nil {
		m.watcher.close()
		m.watcher = nil
	}
	w, err := newWatcher(root)
	if err != nil {
		return
	}
	m.watcher = w
	go m.watchLoop(w, root)
}

func (m *Model) watchLoop(w *watcher, root string) {
	for range w.notify {
		m.mu.RLock()
		current := m.root
		m.mu.RUnlock()
		if current != root {
			return
		}
		m.SetRoot(root)
	}
}

// RowCount returns the number of rows in the current snapshot.
func (m *Model) RowCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// RowAt returns the row at index, or false if out of range.
func (m *Model) RowAt(index int) (Row, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if index < 0 || index >= len(m.rows) {
		return Row{}, false
	}
	return m.rows[index], true
}

// ResolveIndex returns the index of path in the current snapshot.
func (m *Model) ResolveIndex(path string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byPath[path]
	return i, ok
}

// HandleDecoded feeds a scheduler decode completion back into the
// model. It returns false if the completion doesn't belong to the
// model's current loader generation (stale snapshot or unrelated
// path), in which case the caller should not treat it as consumed.
func (m *Model) HandleDecoded(path string, buf codec.Buffer, err error) bool {
	m.mu.Lock()
	gen, ok := m.pendingThumbs[path]
	if !ok || gen != m.loadGen {
		m.mu.Unlock()
		return false
	}
	delete(m.pendingThumbs, path)
	m.mu.Unlock()

	if err != nil {
		return true
	}

	png, encErr := encodePNG(buf)
	if encErr != nil {
		return true
	}

	m.store.Upsert(context.Background(), thumbstore.Record{
		Path:  path,
		Stat:  thumbstore.Stat{MTime: statMTimeFor(m, path), Size: statSizeFor(m, path)},
		OrigW: buf.OrigWidth, OrigH: buf.OrigHeight,
		ThumbW: buf.Width, ThumbH: buf.Height,
		PNG:       png,
		CreatedAt: time.Now().Unix(),
	})

	m.applyRowUpdate(path, buf.OrigWidth, buf.OrigHeight, png)
	return true
}

func (m *Model) applyRowUpdate(path string, origW, origH int, thumb []byte) {
	m.mu.Lock()
	i, ok := m.byPath[path]
	if !ok {
		m.mu.Unlock()
		return
	}
	m.rows[i].OrigW = origW
	m.rows[i].OrigH = origH
	m.rows[i].Thumb = thumb
	m.mu.Unlock()

	m.queueCoalescedUpdate(path)
}

// queueCoalescedUpdate marks path as touched and, if no flush is
// already pending, schedules one coalesceWindow from now. Bursts of
// updates to the same or different paths within the window collapse
// into a single RowsUpdated event, last-writer-wins per path.
func (m *Model) queueCoalescedUpdate(path string) {
	m.updMu.Lock()
	defer m.updMu.Unlock()
	if m.pendingUpdates == nil {
		m.pendingUpdates = make(map[string]bool)
	}
	m.pendingUpdates[path] = true
	if m.flushScheduled {
		return
	}
	m.flushScheduled = true
	time.AfterFunc(coalesceWindow, m.flushUpdates)
}

func (m *Model) flushUpdates() {
	m.updMu.Lock()
	touched := m.pendingUpdates
	m.pendingUpdates = make(map[string]bool)
	m.flushScheduled = false
	m.updMu.Unlock()

	if len(touched) == 0 {
		return
	}

	m.mu.RLock()
	rows := make([]Row, 0, len(touched))
	indices := make([]int, 0, len(touched))
	for p := range touched {
		i, ok := m.byPath[p]
		if !ok {
			continue
		}
		rows = append(rows, m.rows[i])
		indices = append(indices, i)
	}
	m.mu.RUnlock()

	if len(rows) == 0 {
		return
	}
	m.Events <- ModelEvent{Kind: EventRowsUpdated, Rows: rows, Indices: indices}
}

func statMTimeFor(m *Model, path string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i, ok := m.byPath[path]; ok {
		return m.rows[i].ModTime.Unix()
	}
	return 0
}

func statSizeFor(m *Model, path string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i, ok := m.byPath[path]; ok {
		return m.rows[i].Size
	}
	return 0
}

// Close stops the folder watcher.
func (m *Model) Close() {
	m.mu.Lock()
	w := m.watcher
	m.watcher = nil
	m.mu.Unlock()
	if w != nil {
		w.close()
	}
}
