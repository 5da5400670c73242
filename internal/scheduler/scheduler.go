// Package scheduler implements the decode scheduler (C3): a priority
// request queue over the codec, with per-path staleness tracking,
// backpressure, and crash-contained worker dispatch.
package scheduler

import (
	"image/color"
	"sync"
	"time"

	"github.com/justyntemme/pixcore/internal/codec"
	"github.com/justyntemme/pixcore/internal/debug"
)

// RequestID is a per-path monotonic identifier; only the newest id for
// a path is ever allowed to produce a delivered event.
type RequestID uint64

// Priority selects dispatch order when the worker pool is saturated.
type Priority int

const (
	PriorityBackground Priority = iota
	PriorityForeground
)

// Event is the single-consumer completion notification. Err is nil on
// success.
type Event struct {
	Path   string
	ID     RequestID
	Buffer codec.Buffer
	Err    error
}

// reqInfo is the live request state tracked per path. valid=false
// marks a cancellation tombstone: the id is newer than any real work,
// so a completion carrying an older id is stale and nothing gets
// redispatched.
type reqInfo struct {
	id         RequestID
	valid      bool
	path       string
	targetW    int
	targetH    int
	mode       codec.Mode
	background color.RGBA
	priority   Priority
}

type completion struct {
	info reqInfo
	buf  codec.Buffer
	err  error
}

// command is the internal dispatch-loop message shape, mirroring the
// teacher's Request/RequestChan dispatch pattern generalized to five
// verbs.
type command struct {
	kind       cmdKind
	path       string
	targetW    int
	targetH    int
	mode       codec.Mode
	background color.RGBA
	priority   Priority
	resultID   chan RequestID
	done       chan struct{}
}

type cmdKind int

const (
	cmdRequest cmdKind = iota
	cmdCancel
	cmdIgnore
	cmdUnignore
	cmdShutdown
)

// Scheduler dispatches decode work and emits Events to a single
// consumer. All public methods are safe to call from any goroutine.
type Scheduler struct {
	Events chan Event

	commands    chan command
	completions chan completion
	pool        *pool

	counters map[string]RequestID
	latest   map[string]reqInfo
	inflight map[string]RequestID
	ignored  map[string]bool

	shutdownOnce sync.Once
	stopped      chan struct{} // closed once every pool worker has exited
}

// New creates a Scheduler with a CPU worker pool of workerCount
// goroutines (crash-contained via per-worker recover) and a small
// fixed I/O lane of ioCount goroutines for submission/pickup.
func New(workerCount, ioCount int) *Scheduler {
	if workerCount < 1 {
		workerCount = 1
	}
	if ioCount < 1 {
		ioCount = 4
	}

	s := &Scheduler{
		Events:      make(chan Event, 64),
		commands:    make(chan command, 64),
		completions: make(chan completion, 64),
		counters:    make(map[string]RequestID),
		latest:      make(map[string]reqInfo),
		inflight:    make(map[string]RequestID),
		ignored:     make(map[string]bool),
		stopped:     make(chan struct{}),
	}
	s.pool = newPool(workerCount, ioCount, s.completions)
	go s.run()
	return s
}

func (s *Scheduler) run() {
	for {
		select {
		case cmd := <-s.commands:
			s.handleCommand(cmd)
			if cmd.kind == cmdShutdown {
				return
			}
		case c := <-s.completions:
			s.handleCompletion(c)
		}
	}
}

func (s *Scheduler) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdRequest:
		s.counters[cmd.path]++
		id := s.counters[cmd.path]
		info := reqInfo{
			id: id, valid: true, path: cmd.path,
			targetW: cmd.targetW, targetH: cmd.targetH,
			mode: cmd.mode, background: cmd.background, priority: cmd.priority,
		}
		s.latest[cmd.path] = info
		debug.Log(debug.SCHED, "request path=%q id=%d priority=%d", cmd.path, id, cmd.priority)
		if _, busy := s.inflight[cmd.path]; !busy {
			s.dispatch(info)
		}
		cmd.resultID <- id
		close(cmd.done)

	case cmdCancel:
		s.counters[cmd.path]++
		id := s.counters[cmd.path]
		s.latest[cmd.path] = reqInfo{id: id, valid: false, path: cmd.path}
		debug.Log(debug.SCHED, "cancel path=%q tombstone id=%d", cmd.path, id)
		close(cmd.done)

	case cmdIgnore:
		s.ignored[cmd.path] = true
		close(cmd.done)

	case cmdUnignore:
		delete(s.ignored, cmd.path)
		close(cmd.done)

	case cmdShutdown:
		poolDone := s.pool.shutdown()
		go func() {
			<-poolDone
			close(s.stopped)
		}()
	}
}

func (s *Scheduler) dispatch(info reqInfo) {
	s.inflight[info.path] = info.id
	s.pool.submit(info)
}

func (s *Scheduler) handleCompletion(c completion) {
	path := c.info.path
	if s.inflight[path] == c.info.id {
		delete(s.inflight, path)
	}

	latest, ok := s.latest[path]
	if !ok || latest.id != c.info.id {
		debug.Log(debug.SCHED, "completion path=%q id=%d stale (latest=%d)", path, c.info.id, latest.id)
		if ok && latest.valid {
			if _, busy := s.inflight[path]; !busy {
				s.dispatch(latest)
			}
		}
		return
	}

	if s.ignored[path] {
		debug.Log(debug.SCHED, "completion path=%q id=%d ignored", path, c.info.id)
		return
	}

	s.Events <- Event{Path: path, ID: c.info.id, Buffer: c.buf, Err: c.err}
}

func (s *Scheduler) exec(cmd command) {
	cmd.done = make(chan struct{})
	s.commands <- cmd
	<-cmd.done
}

// Request enqueues a decode for path at the given target box and mode.
// If a decode is already in flight for path, this supersedes any
// pending (not-yet-dispatched) request without cancelling the running
// one; the running worker's stale result is discarded on completion.
func (s *Scheduler) Request(path string, targetW, targetH int, mode codec.Mode, priority Priority) RequestID {
	return s.RequestWithBackground(path, targetW, targetH, mode, priority, color.RGBA{})
}

// RequestWithBackground is Request with an explicit alpha-flatten
// background color.
func (s *Scheduler) RequestWithBackground(path string, targetW, targetH int, mode codec.Mode, priority Priority, bg color.RGBA) RequestID {
	cmd := command{
		kind: cmdRequest, path: path, targetW: targetW, targetH: targetH,
		mode: mode, priority: priority, background: bg,
		resultID: make(chan RequestID, 1),
	}
	cmd.done = make(chan struct{})
	s.commands <- cmd
	<-cmd.done
	return <-cmd.resultID
}

// Cancel marks the existing in-flight work for path as stale; its
// result, when it arrives, is discarded.
func (s *Scheduler) Cancel(path string) {
	s.exec(command{kind: cmdCancel, path: path})
}

// Ignore registers path so future decode completions for it are
// dropped instead of delivered.
func (s *Scheduler) Ignore(path string) {
	s.exec(command{kind: cmdIgnore, path: path})
}

// Unignore removes path from the ignore set.
func (s *Scheduler) Unignore(path string) {
	s.exec(command{kind: cmdUnignore, path: path})
}

// Shutdown initiates an orderly stop, waiting for in-flight workers up
// to deadline before returning.
func (s *Scheduler) Shutdown(deadline time.Duration) {
	s.shutdownOnce.Do(func() {
		s.commands <- command{kind: cmdShutdown}
		select {
		case <-s.stopped:
		case <-time.After(deadline):
		}
	})
}
