// Package scan implements C5: computing which edges are dirty (must
// run) by walking the graph, consulting the build log and deps log, and
// stat'ing files through C1.
package scan

import (
	"fmt"
	"strings"

	"forge/internal/builderrors"
	"forge/internal/buildlog"
	"forge/internal/depslog"
	"forge/internal/disk"
	"forge/internal/graph"
	"forge/internal/murmur"
)

// DependencyScan computes dirtiness against a fixed graph, build log,
// and deps log.
type DependencyScan struct {
	state    *graph.State
	disk     disk.Interface
	buildLog *buildlog.Log
	depsLog  *depslog.Log
}

// New constructs a scan over state, backed by d, buildLog, and depsLog.
// Either log may be nil (an empty build is treated as "everything
// dirty").
func New(state *graph.State, d disk.Interface, buildLog *buildlog.Log, depsLog *depslog.Log) *DependencyScan {
	return &DependencyScan{state: state, disk: d, buildLog: buildLog, depsLog: depsLog}
}

// RecomputeDirty computes Status for node and every node/edge
// transitively reachable as an input, memoizing per-node so shared
// subgraphs are stat'd once.
//
// Cycle detection uses Edge.Mark: entering an in-stack edge is an error
// naming the cycle (§4.2). The walk uses an explicit work stack rather
// than native recursion so wide real-world graphs cannot blow the call
// stack (§9 design note).
func (s *DependencyScan) RecomputeDirty(node *graph.Node) error {
	return s.walk(node)
}

// walk runs the work-stack traversal from node; loadDyndep shares it to
// recompute dirtiness for a dyndep file node before reading it.
func (s *DependencyScan) walk(node *graph.Node) error {
	stack := []*visitFrame{{node: node}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if !top.entered {
			done, err := s.enterFrame(top, stack)
			if err != nil {
				return err
			}
			if done {
				stack = stack[:len(stack)-1]
				continue
			}
		}

		if top.nextInput < len(top.edge.Inputs) {
			child := top.edge.Inputs[top.nextInput]
			top.nextInput++
			stack = append(stack, &visitFrame{node: child})
			continue
		}

		// Validation nodes are classified the same as any other node
		// (stat'd, their own producing edge recursed into) so the plan
		// can later decide whether they need building — but they never
		// participate in this edge's own dirtiness decision, the way
		// computeEdgeDirty only ever looks at edge.Inputs.
		if top.nextValidation < len(top.edge.Validations) {
			child := top.edge.Validations[top.nextValidation]
			top.nextValidation++
			stack = append(stack, &visitFrame{node: child})
			continue
		}

		if err := s.leaveFrame(top); err != nil {
			return err
		}
		stack = stack[:len(stack)-1]
	}
	return nil
}

// visitFrame is one node's position on RecomputeDirty's work stack: its
// producing edge (once known) and how far through that edge's inputs
// and validation outputs the walk has pushed children.
type visitFrame struct {
	node           *graph.Node
	edge           *graph.Edge
	entered        bool
	nextInput      int
	nextValidation int
}

// enterFrame is the pre-order half of visiting a node: stat it, resolve
// its producing edge, and detect cycles/memoized subgraphs before any
// of its inputs are pushed. done reports that the frame needs no
// further work (it should be popped without calling leaveFrame).
func (s *DependencyScan) enterFrame(f *visitFrame, stack []*visitFrame) (done bool, err error) {
	f.entered = true

	if f.node.Status != graph.StatusUnknown {
		return true, nil
	}
	if err := s.statNode(f.node); err != nil {
		return false, err
	}

	edge := f.node.InEdge
	if edge == nil {
		// Source file: classified clean even when missing. Only a phony
		// consumer treats a missing input as dirty (computeEdgeDirty);
		// rule (b) looks at an edge's outputs, not its inputs.
		f.node.Status = graph.StatusClean
		return true, nil
	}

	if edge.Mark == graph.MarkInStack {
		// The work stack is the current DFS path: name every node from the
		// frame that entered edge up to f, which closes the cycle.
		var cycle []string
		for _, fr := range stack {
			if fr.edge == edge || len(cycle) > 0 {
				cycle = append(cycle, fr.node.Path)
			}
		}
		if len(cycle) == 0 {
			cycle = []string{f.node.Path}
		}
		return false, &builderrors.GraphError{Msg: fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> "))}
	}
	if edge.Mark == graph.MarkDone {
		return true, nil
	}
	edge.Mark = graph.MarkInStack

	if edge.Dyndep != nil && !edge.DepsLoaded {
		if err := s.loadDyndep(edge); err != nil {
			return false, err
		}
	}

	f.edge = edge
	return false, nil
}

// leaveFrame is the post-order half: every input has been visited, so
// the edge's own dirtiness can finally be decided and propagated to its
// outputs.
func (s *DependencyScan) leaveFrame(f *visitFrame) error {
	dirty, err := s.computeEdgeDirty(f.edge)
	if err != nil {
		return err
	}
	f.edge.Mark = graph.MarkDone

	for _, out := range f.edge.Outputs {
		if out.Status == graph.StatusUnknown {
			if dirty {
				out.Status = graph.StatusDirty
			} else {
				out.Status = graph.StatusClean
			}
		}
	}
	return nil
}

func (s *DependencyScan) statNode(n *graph.Node) error {
	if n.Statted() {
		return nil
	}
	ts, err := s.disk.Stat(n.Path)
	if err != nil {
		return err
	}
	n.MarkStatted(ts)
	return nil
}

// computeEdgeDirty applies the six dirtiness rules from §4.2 (a)-(f) plus
// phony propagation.
func (s *DependencyScan) computeEdgeDirty(e *graph.Edge) (bool, error) {
	if e.Phony {
		for _, in := range e.Inputs {
			if in.Status == graph.StatusDirty || in.MTime == graph.Missing {
				return true, nil
			}
		}
		return false, nil
	}

	var entry *buildlog.Entry
	if s.buildLog != nil && len(e.Outputs) > 0 {
		entry = s.buildLog.Lookup(e.Outputs[0].Path)
	}
	if entry == nil {
		return true, nil // (a) no recorded build-log entry.
	}

	var newestInput graph.TimeStamp
	for _, in := range e.ExplicitInputsSlice() {
		if in.Status == graph.StatusDirty {
			return true, nil // (e) transitive dirtiness.
		}
		if in.MTime > newestInput {
			newestInput = in.MTime
		}
	}
	for _, in := range e.ImplicitInputsSlice() {
		if in.Status == graph.StatusDirty {
			return true, nil
		}
		if in.MTime > newestInput {
			newestInput = in.MTime
		}
	}
	// Order-only inputs gate scheduling order only (enforced by the plan's
	// unready count); they never participate in this decision (§4.2).

	for _, out := range e.Outputs {
		if out.MTime == graph.Missing {
			return true, nil // (b) missing output.
		}
		if out.MTime < newestInput {
			return true, nil // (c) output predates an input.
		}
	}

	hash := murmur.HashString(e.EvaluateCommand())
	if hash != entry.CommandHash {
		return true, nil // (d) command changed.
	}

	if depsMode := e.Binding("deps"); depsMode != "" {
		dirty, err := s.depsLogDirty(e, newestInput)
		if err != nil {
			return false, err
		}
		if dirty {
			return true, nil // (f) deps-log entry absent/stale.
		}
	}

	return false, nil
}

func (s *DependencyScan) depsLogDirty(e *graph.Edge, newestInput graph.TimeStamp) (bool, error) {
	if s.depsLog == nil || len(e.Outputs) == 0 {
		return true, nil
	}
	outID, ok := s.depsLog.IDForPath(e.Outputs[0].Path)
	if !ok {
		return true, nil
	}
	d := s.depsLog.Lookup(outID)
	if d == nil {
		return true, nil
	}
	if d.MTime < e.Outputs[0].MTime {
		return true, nil
	}
	for _, id := range d.Inputs {
		path := s.depsLog.PathForID(id)
		n := s.state.LookupNode(path)
		if n == nil {
			continue
		}
		if err := s.statNode(n); err != nil {
			return false, err
		}
		if n.MTime > e.Outputs[0].MTime {
			return true, nil
		}
	}
	return false, nil
}
