package engine

import (
	"github.com/justyntemme/pixcore/internal/codec"
	"github.com/justyntemme/pixcore/internal/folder"
	"github.com/justyntemme/pixcore/internal/thumbstore"
)

// EventKind tags an Event variant (§9 redesign: dynamic typing of
// events replaced by a closed tagged union instead of string dispatch).
type EventKind int

const (
	EventImageReady EventKind = iota
	EventFolderChanged
	EventRowsUpdated
	EventPathsRemoved
	EventOpMetric
	EventMigrationMetric
)

// Event is the Facade's single outward notification type. Only the
// fields relevant to Kind are populated; callers switch on Kind first.
type Event struct {
	Kind EventKind

	// EventImageReady
	Path   string
	Buffer codec.Buffer
	Err    error

	// EventFolderChanged / EventRowsUpdated
	Rows    []folder.Row
	Indices []int

	// EventPathsRemoved
	RemovedPaths []string

	// EventOpMetric / EventMigrationMetric
	OpMetric        thumbstore.OpMetric
	MigrationMetric thumbstore.MigrationMetric
}
