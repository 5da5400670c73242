package scheduler

import (
	"fmt"
	"sync"

	"github.com/justyntemme/pixcore/internal/codec"
	"github.com/justyntemme/pixcore/internal/debug"
)

// pool implements the two-pool internal model: a CPU pool sized to
// hardware parallelism runs the actual (crash-contained) decode work,
// and a small fixed I/O lane picks up finished results and forwards
// them to the scheduler's single completions channel. True
// process-level isolation would need RPC plumbing this codebase
// doesn't carry, so per-worker panic recovery stands in for it: a
// codec panic becomes a worker-died completion instead of taking down
// the process.
type pool struct {
	fgJobs chan reqInfo
	bgJobs chan reqInfo
	pickup chan completion
	quit   chan struct{}
	wg     sync.WaitGroup
}

func newPool(workerCount, ioCount int, completions chan<- completion) *pool {
	p := &pool{
		fgJobs: make(chan reqInfo, 64),
		bgJobs: make(chan reqInfo, 64),
		pickup: make(chan completion, 64),
		quit:   make(chan struct{}),
	}

	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.cpuWorker(i)
	}
	for i := 0; i < ioCount; i++ {
		p.wg.Add(1)
		go p.ioWorker(completions)
	}
	return p
}

func (p *pool) submit(info reqInfo) {
	if info.priority == PriorityForeground {
		p.fgJobs <- info
	} else {
		p.bgJobs <- info
	}
}

// cpuWorker prefers foreground jobs: it never leaves a queued
// foreground item waiting behind a newly arriving background one, but
// it never interrupts a decode already running.
func (p *pool) cpuWorker(id int) {
	defer p.wg.Done()
	for {
		select {
		case info := <-p.fgJobs:
			p.runOne(id, info)
			continue
		default:
		}

		select {
		case info := <-p.fgJobs:
			p.runOne(id, info)
		case info := <-p.bgJobs:
			p.runOne(id, info)
		case <-p.quit:
			return
		}
	}
}

func (p *pool) runOne(workerID int, info reqInfo) {
	buf, err := decodeContained(info)
	debug.Log(debug.SCHED_WORKER, "worker=%d path=%q id=%d err=%v", workerID, info.path, info.id, err)
	select {
	case p.pickup <- completion{info: info, buf: buf, err: err}:
	case <-p.quit:
	}
}

// decodeContained runs codec.Decode with panic recovery, turning a
// codec crash into a worker-died error rather than a process crash.
func decodeContained(info reqInfo) (buf codec.Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker-died: %v", r)
		}
	}()
	return codec.Decode(codec.Request{
		Path: info.path, TargetW: info.targetW, TargetH: info.targetH,
		Mode: info.mode, Background: info.background,
	})
}

func (p *pool) ioWorker(completions chan<- completion) {
	defer p.wg.Done()
	for {
		select {
		case c := <-p.pickup:
			completions <- c
		case <-p.quit:
			return
		}
	}
}

// shutdown signals every worker to stop and returns a channel that
// closes once they've all exited, so a caller can wait (with a
// deadline) for in-flight decodes to actually finish.
func (p *pool) shutdown() <-chan struct{} {
	close(p.quit)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	return done
}
