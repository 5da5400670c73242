// Package engine implements the Engine Facade (C7): the sole public
// surface a presentation layer uses. It owns every other component
// (codec is stateless, so nothing to own there; scheduler, pixmap
// cache, thumbnail store, folder model) and translates UI intent —
// open a folder, show a path, prefetch neighbors — into component
// calls, playing the role the teacher's Orchestrator plays over
// fs/store/config/ui.
package engine

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/justyntemme/pixcore/internal/codec"
	"github.com/justyntemme/pixcore/internal/config"
	"github.com/justyntemme/pixcore/internal/debug"
	"github.com/justyntemme/pixcore/internal/folder"
	"github.com/justyntemme/pixcore/internal/pixmap"
	"github.com/justyntemme/pixcore/internal/scheduler"
	"github.com/justyntemme/pixcore/internal/thumbstore"
)

// thumbDBName is the per-folder thumbnail database filename; a leading
// dot hides it on platforms where that's the convention, and
// thumbstore.Open additionally sets the Windows hidden attribute.
const thumbDBName = ".pixcore_thumbs.db"

// Facade is the engine's top-level handle. All methods are safe to
// call from any goroutine; mutation of shared state is serialized
// internally.
type Facade struct {
	cfg   config.Config
	sched *scheduler.Scheduler
	cache *pixmap.Cache

	mu       sync.Mutex
	store    *thumbstore.Store
	model    *folder.Model
	strategy Strategy
	root     string
	current  string // path most recently requested via RequestDecode

	forwardDone chan struct{} // stops the active model-event forwarder on folder switch

	Events chan Event

	shutdownOnce sync.Once
}

// New constructs a Facade from cfg. It returns an *Error with
// KindInvalidConfig if cfg names a non-positive pool size or cache
// cap, matching spec.md §7's facade startup error kind.
func New(cfg config.Config) (*Facade, error) {
	if cfg.WorkerPoolSize <= 0 || cfg.IOPoolSize <= 0 || cfg.CacheCapEntries <= 0 {
		return nil, newErr(KindInvalidConfig, nil)
	}

	f := &Facade{
		cfg:      cfg,
		sched:    scheduler.New(cfg.WorkerPoolSize, cfg.IOPoolSize),
		cache:    pixmap.New(cfg.CacheCapEntries, cfg.CacheCapBytes),
		strategy: StrategyFastView,
		Events:   make(chan Event, 256),
	}
	go f.runSchedulerLoop()
	return f, nil
}

// OpenFolder creates or updates the Folder Model's root to path,
// opening (or reopening) that folder's thumbnail database. It emits
// an EventFolderChanged event before any EventRowsUpdated event, per
// spec.md §8's ordering invariant.
func (f *Facade) OpenFolder(path string) (bool, error) {
	dbPath := filepath.Join(path, thumbDBName)
	store, err := thumbstore.Open(dbPath)
	if err != nil {
		return false, err
	}
	store.SetMetrics(f)

	box := thumbstore.Box{W: f.cfg.ThumbBoxW, H: f.cfg.ThumbBoxH}
	model := folder.New(f.sched, store, box)

	done := make(chan struct{})

	f.mu.Lock()
	oldStore, oldModel, oldDone := f.store, f.model, f.forwardDone
	f.store, f.model, f.forwardDone, f.root = store, model, done, path
	f.mu.Unlock()

	if oldDone != nil {
		close(oldDone)
	}
	if oldModel != nil {
		oldModel.Close()
	}
	if oldStore != nil {
		oldStore.Close()
	}

	go f.forwardModelEvents(model, done)

	if err := model.SetRoot(path); err != nil {
		debug.Log(debug.ENGINE, "open_folder %q: %v", path, err)
		return false, err
	}
	return true, nil
}

func (f *Facade) forwardModelEvents(m *folder.Model, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-m.Events:
			if !ok {
				return
			}
			if ev.Kind == folder.EventPathsRemoved {
				for _, p := range ev.RemovedPaths {
					f.cache.Remove(p)
				}
			}
			f.Events <- modelEventToFacade(ev)
		}
	}
}

func modelEventToFacade(ev folder.ModelEvent) Event {
	switch ev.Kind {
	case folder.EventRowsChanged:
		return Event{Kind: EventFolderChanged, Rows: ev.Rows}
	case folder.EventPathsRemoved:
		return Event{Kind: EventPathsRemoved, RemovedPaths: ev.RemovedPaths}
	default:
		return Event{Kind: EventRowsUpdated, Rows: ev.Rows, Indices: ev.Indices}
	}
}

// RequestDecode routes a decode for path through the active strategy
// at foreground priority, cancelling any in-flight decode for the
// previously requested path first (rapid-navigation staleness, spec.md
// §8 scenario 1: stale decodes for paths navigated away from must
// never deliver).
func (f *Facade) RequestDecode(path string, viewportW, viewportH int) {
	f.mu.Lock()
	strat := f.strategy
	prev := f.current
	f.current = path
	f.mu.Unlock()

	if prev != "" && prev != path {
		f.sched.Cancel(prev)
	}

	w, h := strat.targetSize(viewportW, viewportH)
	f.sched.Request(path, w, h, strat.mode(), scheduler.PriorityForeground)
}

// Prefetch issues background-priority decodes for every path not
// already cache-resident.
func (f *Facade) Prefetch(paths []string, viewportW, viewportH int) {
	f.mu.Lock()
	strat := f.strategy
	f.mu.Unlock()

	w, h := strat.targetSize(viewportW, viewportH)
	for _, p := range paths {
		if _, hit := f.cache.Get(p); hit {
			continue
		}
		f.sched.Request(p, w, h, strat.mode(), scheduler.PriorityBackground)
	}
}

// GetCached returns the cached decode for path, if any.
func (f *Facade) GetCached(path string) (codec.Buffer, bool) {
	return f.cache.Get(path)
}

// RemoveFromCache evicts path's cached decode, if present.
func (f *Facade) RemoveFromCache(path string) {
	f.cache.Remove(path)
}

// SetStrategy switches the active decode strategy and bumps the
// pixmap cache generation, making every previously cached buffer
// invisible (not evicted) until overwritten — spec.md §8 scenario 5.
func (f *Facade) SetStrategy(s Strategy) {
	f.mu.Lock()
	f.strategy = s
	f.mu.Unlock()
	f.cache.BumpGeneration()
	debug.Log(debug.ENGINE, "strategy switched to %d", s)
}

// Ignore suppresses delivery of path's decode completion, if any
// arrives; Unignore reverses it.
func (f *Facade) Ignore(path string)   { f.sched.Ignore(path) }
func (f *Facade) Unignore(path string) { f.sched.Unignore(path) }

// Shutdown stops the scheduler (waiting up to deadline for in-flight
// workers), then closes the current folder model and store.
func (f *Facade) Shutdown(deadline time.Duration) {
	f.shutdownOnce.Do(func() {
		f.sched.Shutdown(deadline)

		f.mu.Lock()
		model, store, done := f.model, f.store, f.forwardDone
		f.mu.Unlock()

		if done != nil {
			close(done)
		}
		if model != nil {
			model.Close()
		}
		if store != nil {
			store.Close()
		}
	})
}

// Op implements thumbstore.MetricsSink, forwarding per-operation
// metrics as facade events.
func (f *Facade) Op(m thumbstore.OpMetric) {
	f.Events <- Event{Kind: EventOpMetric, OpMetric: m}
}

// Migration implements thumbstore.MetricsSink, forwarding schema
// migration metrics as facade events.
func (f *Facade) Migration(m thumbstore.MigrationMetric) {
	f.Events <- Event{Kind: EventMigrationMetric, MigrationMetric: m}
}

// runSchedulerLoop is the single consumer of f.sched.Events (spec.md
// §4.3's single-consumer requirement). It first offers each completion
// to the current folder model (the batch thumbnail loader's own
// pending-miss bookkeeping); if the model doesn't claim it, the
// completion belongs to a RequestDecode/Prefetch call and is cached
// and forwarded as EventImageReady, then used to slide the prefetch
// window.
func (f *Facade) runSchedulerLoop() {
	for ev := range f.sched.Events {
		f.mu.Lock()
		model := f.model
		f.mu.Unlock()

		if model != nil && model.HandleDecoded(ev.Path, ev.Buffer, ev.Err) {
			continue
		}

		if ev.Err == nil {
			f.cache.Put(ev.Path, ev.Buffer)
		}
		f.Events <- Event{Kind: EventImageReady, Path: ev.Path, Buffer: ev.Buffer, Err: ev.Err}

		f.mu.Lock()
		isCurrent := f.current == ev.Path
		f.mu.Unlock()
		if isCurrent && ev.Err == nil {
			f.slidePrefetchWindow(ev.Path)
		}
	}
}

// slidePrefetchWindow computes [i-back, i+ahead] around path's index
// in the current folder snapshot and prefetches any non-cached
// neighbor, per spec.md §4.7.
func (f *Facade) slidePrefetchWindow(path string) {
	f.mu.Lock()
	model := f.model
	back, ahead := f.cfg.PrefetchBack, f.cfg.PrefetchAhead
	f.mu.Unlock()
	if model == nil {
		return
	}

	idx, ok := model.ResolveIndex(path)
	if !ok {
		return
	}
	count := model.RowCount()

	var neighbors []string
	for i := idx - back; i <= idx+ahead; i++ {
		if i < 0 || i >= count || i == idx {
			continue
		}
		row, ok := model.RowAt(i)
		if !ok {
			continue
		}
		neighbors = append(neighbors, row.Path)
	}
	if len(neighbors) > 0 {
		f.Prefetch(neighbors, f.cfg.ThumbBoxW, f.cfg.ThumbBoxH)
	}
}
