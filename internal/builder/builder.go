// Package builder implements C8: the outer driver loop that pumps ready
// edges through the subprocess runner, applies results to the build and
// deps logs, and drives the plan to completion.
package builder

import (
	"context"
	"fmt"
	"time"

	"forge/internal/buildlog"
	"forge/internal/builderrors"
	"forge/internal/depfile"
	"forge/internal/depslog"
	"forge/internal/disk"
	"forge/internal/graph"
	"forge/internal/plan"
	"forge/internal/pool"
	"forge/internal/scan"
	"forge/internal/subprocess"
)

// Builder orchestrates a single build invocation for a set of requested
// targets.
type Builder struct {
	state    *graph.State
	disk     disk.Interface
	buildLog *buildlog.Log
	depsLog  *depslog.Log
	scan     *scan.DependencyScan
	plan     *plan.Plan
	pools    *pool.Registry
	runner   subprocess.Runner
	config   Config
	status   StatusSink

	startTime time.Time
	failures  int
	stopErr   error // first failure seen, by any path; returned from Build.

	edgeStartMS map[*graph.Edge]int32
}

// New constructs a Builder. runner may be a subprocess.Real or
// subprocess.DryRun (the latter if cfg.DryRun is set, conventionally).
func New(state *graph.State, d disk.Interface, bl *buildlog.Log, dl *depslog.Log, cfg Config, runner subprocess.Runner, status StatusSink) *Builder {
	return &Builder{
		state:       state,
		disk:        d,
		buildLog:    bl,
		depsLog:     dl,
		scan:        scan.New(state, d, bl, dl),
		plan:        plan.New(state, bl),
		pools:       pool.NewRegistry(),
		runner:      runner,
		config:      cfg,
		status:      status,
		edgeStartMS: map[*graph.Edge]int32{},
	}
}

// AddTargetName resolves name to a node (suggesting a spelling
// correction on miss), scans it for dirtiness, and adds it to the plan.
// Any validation nodes reachable from name's producing edge are added
// too (scan.RecomputeDirty and plan.AddTarget both walk edge.Validations
// alongside edge.Inputs), so callers never need to add them separately.
func (b *Builder) AddTargetName(name string) (*graph.Node, error) {
	node := b.state.LookupNode(name)
	if node == nil {
		if suggestion := b.state.Spellcheck(name); suggestion != "" {
			return nil, &builderrors.GraphError{Msg: fmt.Sprintf("unknown target '%s', did you mean '%s'?", name, suggestion)}
		}
		return nil, &builderrors.GraphError{Msg: fmt.Sprintf("unknown target '%s'", name)}
	}
	if err := b.scan.RecomputeDirty(node); err != nil {
		return nil, err
	}
	b.plan.AddTarget(node)
	return node, nil
}

// AlreadyUpToDate reports whether the plan has nothing left to build.
func (b *Builder) AlreadyUpToDate() bool { return !b.plan.MoreToDo() }

// Build runs the main loop until the plan is satisfied, a non-recoverable
// failure occurs, or ctx is cancelled.
func (b *Builder) Build(ctx context.Context) error {
	b.startTime = time.Now()
	if b.status != nil {
		b.status.BuildStarted()
		b.status.PlanHasTotalEdges(b.plan.TotalWanted())
		defer b.status.BuildFinished()
	}

	inFlight := 0

	for b.plan.MoreToDo() || inFlight > 0 {
		if b.stopErr == nil || b.config.FailuresAllowed < 0 || b.failures < b.config.FailuresAllowed {
			started := b.dispatchReady(ctx)
			inFlight += started
		}

		if inFlight == 0 {
			break
		}

		result, ok := b.runner.WaitForCommand()
		if !ok {
			break
		}
		inFlight--

		released, err := b.applyResult(ctx, result)
		inFlight += released
		if err != nil {
			if err == builderrors.Interrupted {
				return err
			}
			b.recordFailure(err)
		}
	}

	return b.stopErr
}

// recordFailure applies a failed edge's result to the shared failure
// count and remembers the first error as the build's overall result.
// Every path that can fail an edge without going through Build's own
// WaitForCommand branch — currently just a command that fails to even
// start, in startEdge — calls this directly instead of threading the
// error back up through several layers of return values.
func (b *Builder) recordFailure(err error) {
	b.failures++
	if b.stopErr == nil {
		b.stopErr = err
	}
	// Once the failure count reaches FailuresAllowed (never, if it is
	// negative), Build stops calling dispatchReady (it keeps draining
	// inFlight work); the budget counts failures the same way regardless
	// of which path recorded them.
}

// dispatchReady pulls as much ready work as pool depth and global
// parallelism allow, starting each admitted edge's command. Returns how
// many commands are now in flight and awaiting a WaitForCommand result.
func (b *Builder) dispatchReady(ctx context.Context) int {
	started := 0
	for b.runner.CanRunMore() {
		edge, ok := b.plan.FindWork()
		if !ok {
			break
		}
		if edge.Pool == nil {
			started += b.startEdge(ctx, edge)
			continue
		}
		sched := b.pools.For(edge.Pool)
		if sched.CanAdmit(edge.Weight) {
			sched.EdgeScheduled(edge)
			started += b.startEdge(ctx, edge)
		} else {
			sched.Delay(edge, b.plan.CriticalTime(edge))
		}
	}
	return started
}

// startEdge marks edge in flight and starts its command. If the process
// itself never starts (as opposed to running and exiting nonzero), no
// await goroutine will ever report a result for it, so the failure is
// applied synchronously through the same applyResult path a completed
// command's failure takes, and recorded via recordFailure, rather than
// touching the runner at all. Returns how many commands must now be
// waited for via WaitForCommand on edge's behalf: 1 for an edge that is
// actually running, or however many a pool released as a side effect of
// a start failure (edge itself needs no further waiting).
func (b *Builder) startEdge(ctx context.Context, edge *graph.Edge) int {
	b.plan.MarkInFlight(edge)
	b.edgeStartMS[edge] = nowMS(b.startTime)
	useConsole := edge.Pool != nil && edge.Pool.Name == graph.ConsolePoolName
	startErr := b.runner.StartCommand(ctx, edge, useConsole)
	if b.status != nil {
		b.status.EdgeStarted(edge, time.Since(b.startTime).Milliseconds())
	}
	if startErr != nil {
		released, applyErr := b.applyResult(ctx, &subprocess.Result{
			Edge:     edge,
			Status:   subprocess.StatusFailure,
			ExitCode: -1,
			Output:   []byte(startErr.Error()),
		})
		if applyErr != nil {
			b.recordFailure(applyErr)
		}
		return released
	}
	return 1
}

// releaseFromPool frees edge's pool weight and admits any now-fitting
// delayed edges directly (they were already marked Ready by the plan;
// only pool depth was holding them back). Returns how many commands it
// newly started, so the caller can fold them into the same in-flight
// count dispatchReady feeds — a delayed edge admitted here is exactly as
// in-flight as one admitted from the ready queue, and Build's loop must
// keep waiting for it the same way.
func (b *Builder) releaseFromPool(ctx context.Context, edge *graph.Edge) int {
	if edge.Pool == nil {
		return 0
	}
	sched := b.pools.For(edge.Pool)
	sched.EdgeFinished(edge)
	started := 0
	for _, released := range sched.RetrieveReadyEdges() {
		started += b.startEdge(ctx, released)
	}
	return started
}

func nowMS(start time.Time) int32 {
	return int32(time.Since(start).Milliseconds())
}

// depfileInputs resolves the discovered-dependency inputs for a
// just-finished edge, per its "deps" binding: "gcc" reads a depfile
// path, "msvc" would parse captured stdout (not modeled here since the
// MSVC /showIncludes prefix convention is a Windows-toolchain detail
// outside this engine's test surface).
func (b *Builder) depfileInputs(edge *graph.Edge) ([]string, error) {
	mode := edge.Binding("deps")
	if mode != "gcc" {
		return nil, nil
	}
	path := edge.Binding("depfile")
	if path == "" {
		return nil, nil
	}
	data, err := b.disk.ReadFile(path)
	if err != nil {
		if err == disk.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	_, inputs, err := depfile.Parse(data)
	return inputs, err
}
