// Command pixcore is a minimal diagnostic driver for the engine: it
// opens a folder, decodes its first entry, and logs every facade event
// until interrupted. The presentation layer is out of scope; this
// binary exists to exercise the engine end-to-end, not to be a viewer.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/justyntemme/pixcore/internal/config"
	"github.com/justyntemme/pixcore/internal/engine"
)

func main() {
	startPath := flag.String("path", "", "Folder to open (defaults to user home)")
	flag.Parse()

	path := *startPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "pixcore: %v\n", err)
			os.Exit(1)
		}
		path = home
	}

	cfgMgr := config.NewManager()
	if err := cfgMgr.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "pixcore: config load: %v\n", err)
	}
	if err := cfgMgr.ParseError(); err != nil {
		fmt.Fprintf(os.Stderr, "pixcore: config: %v (using defaults)\n", err)
	}

	f, err := engine.New(cfgMgr.Get())
	if err != nil {
		fmt.Fprintf(os.Stderr, "pixcore: engine init: %v\n", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		f.Shutdown(5 * time.Second)
		os.Exit(0)
	}()

	if ok, err := f.OpenFolder(path); err != nil || !ok {
		fmt.Fprintf(os.Stderr, "pixcore: open_folder %q: %v\n", path, err)
		os.Exit(1)
	}

	requestedFirst := false
	for ev := range f.Events {
		switch ev.Kind {
		case engine.EventFolderChanged:
			fmt.Printf("folder_changed: %d entries\n", len(ev.Rows))
			if !requestedFirst && len(ev.Rows) > 0 {
				requestedFirst = true
				f.RequestDecode(ev.Rows[0].Path, cfgMgr.Get().ThumbBoxW, cfgMgr.Get().ThumbBoxH)
			}
		case engine.EventRowsUpdated:
			fmt.Printf("rows_updated: %d row(s)\n", len(ev.Rows))
		case engine.EventPathsRemoved:
			fmt.Printf("paths_removed: %d\n", len(ev.RemovedPaths))
		case engine.EventImageReady:
			if ev.Err != nil {
				fmt.Printf("image_ready: %s: %v\n", ev.Path, ev.Err)
			} else {
				fmt.Printf("image_ready: %s (%dx%d)\n", ev.Path, ev.Buffer.Width, ev.Buffer.Height)
			}
		case engine.EventOpMetric:
			fmt.Printf("metrics: op=%s duration=%s retries=%d\n", ev.OpMetric.Operation, ev.OpMetric.Duration, ev.OpMetric.Retries)
		case engine.EventMigrationMetric:
			fmt.Printf("metrics: migration %d->%d outcome=%s\n", ev.MigrationMetric.From, ev.MigrationMetric.To, ev.MigrationMetric.Outcome)
		}
	}
}
