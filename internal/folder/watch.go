package folder

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/justyntemme/pixcore/internal/debug"
)

const watchDebounce = 50 * time.Millisecond

// watcher watches exactly one, non-recursive folder and notifies on a
// debounced channel when its contents may have changed. Narrowed from
// the teacher's DirectoryWatcher (arbitrary tree, many watched dirs) to
// a single folder, matching the Folder Model's one-root responsibility.
type watcher struct {
	fsw    *fsnotify.Watcher
	notify chan struct{}
	done   chan struct{}
}

func newWatcher(dir string) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &watcher{
		fsw:    fsw,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *watcher) run() {
	var mu sync.Mutex
	pending := false
	var lastEvent time.Time
	ticker := time.NewTicker(watchDebounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Write) {
				mu.Lock()
				pending = true
				lastEvent = time.Now()
				mu.Unlock()
				debug.Log(debug.FOLDER, "watch event: %s on %s", event.Op, event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			debug.Log(debug.FOLDER, "watch error: %v", err)
		case <-ticker.C:
			mu.Lock()
			ready := pending && time.Since(lastEvent) >= watchDebounce
			if ready {
				pending = false
			}
			mu.Unlock()
			if ready {
				select {
				case w.notify <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (w *watcher) close() error {
	close(w.done)
	return w.fsw.Close()
}
