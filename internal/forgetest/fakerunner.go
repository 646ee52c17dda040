// Package forgetest exercises the engine end to end: manifest parsing,
// scanning, planning, and building, the way a real invocation composes
// them, without shelling out to real commands.
package forgetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"forge/internal/graph"
	"forge/internal/subprocess"
)

// fakeRunner simulates command execution without exec'ing anything: each
// started edge runs its effect function on a goroutine (mirroring
// subprocess.Real's start-then-await shape) and reports back through a
// channel, so genuine overlap between StartCommand calls is observable
// the same way it would be with real child processes. Effects run
// concurrently with each other; an effect touching shared state (a
// disk.Virtual) relies on that state being safe for concurrent use.
type fakeRunner struct {
	parallelism int
	effect      func(*graph.Edge)
	failToStart map[string]bool // output path -> StartCommand returns an error instead of running.
	results     chan *subprocess.Result

	mu      sync.Mutex
	active  int
	maxSeen int32
}

func newFakeRunner(parallelism int, effect func(*graph.Edge)) *fakeRunner {
	return &fakeRunner{parallelism: parallelism, effect: effect, results: make(chan *subprocess.Result, 64)}
}

func (f *fakeRunner) CanRunMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active < f.parallelism
}

func (f *fakeRunner) ActiveEdges() []*graph.Edge { return nil }

func (f *fakeRunner) StartCommand(ctx context.Context, edge *graph.Edge, useConsole bool) error {
	if len(edge.Outputs) > 0 && f.failToStart[edge.Outputs[0].Path] {
		return fmt.Errorf("fakeRunner: forced start failure for %s", edge.Outputs[0].Path)
	}

	f.mu.Lock()
	f.active++
	if int32(f.active) > atomic.LoadInt32(&f.maxSeen) {
		atomic.StoreInt32(&f.maxSeen, int32(f.active))
	}
	f.mu.Unlock()

	go func() {
		if f.effect != nil {
			f.effect(edge)
		}
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
		f.results <- &subprocess.Result{Edge: edge, Status: subprocess.StatusSuccess}
	}()
	return nil
}

func (f *fakeRunner) WaitForCommand() (*subprocess.Result, bool) {
	r, ok := <-f.results
	return r, ok
}

func (f *fakeRunner) Abort() { close(f.results) }

// maxConcurrent reports the highest number of edges this runner ever had
// active at once, for asserting pool-depth enforcement end to end.
func (f *fakeRunner) maxConcurrent() int { return int(atomic.LoadInt32(&f.maxSeen)) }
