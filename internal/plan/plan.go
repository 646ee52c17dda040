// Package plan implements C6: the frontier of wanted edges, the
// critical-time-ordered ready queue, and completion propagation.
package plan

import (
	"container/heap"

	"forge/internal/buildlog"
	"forge/internal/graph"
)

// EdgeState is an edge's position in the plan's state machine:
// NotInPlan -> Want -> Ready -> InFlight -> Done.
type EdgeState int

const (
	NotInPlan EdgeState = iota
	Want
	Ready
	InFlight
	Done
)

// Result classifies how a dispatched edge finished.
type Result int

const (
	Succeeded Result = iota
	SucceededButUnchanged
	Failed
)

type entry struct {
	state        EdgeState
	unready      int
	criticalTime int64 // milliseconds, longest recorded path to a root.
	heapIndex    int
}

// Plan tracks every edge reachable from the requested targets that is
// not yet known to be up to date.
type Plan struct {
	state    *graph.State
	buildLog *buildlog.Log

	entries map[*graph.Edge]*entry
	order   []*graph.Edge // discovery order: every producer before its consumers.
	ready   readyHeap

	wantedCount int
}

// New constructs an empty plan backed by buildLog for critical-time
// estimates (may be nil: all durations are then treated as 0).
func New(state *graph.State, buildLog *buildlog.Log) *Plan {
	return &Plan{state: state, buildLog: buildLog, entries: map[*graph.Edge]*entry{}}
}

// MoreToDo reports whether any wanted edge has not yet finished.
func (p *Plan) MoreToDo() bool { return p.wantedCount > 0 }

// TotalWanted returns the number of edges currently tracked by the plan,
// for a status printer's "%t" (total edges) placeholder.
func (p *Plan) TotalWanted() int { return len(p.entries) }

// AddTarget traverses from node's producing edge (and transitively its
// inputs), inserting into the plan every edge whose output is dirty and
// reachable. It assumes RecomputeDirty has already classified every
// node's Status. Returns whether node's producing edge (if any) was
// newly wanted.
func (p *Plan) AddTarget(node *graph.Node) bool {
	edge := node.InEdge
	if edge == nil {
		return false
	}
	added := p.addEdge(edge)
	p.computeCriticalTimes()
	p.promotePending()
	return added
}

func (p *Plan) addEdge(edge *graph.Edge) bool {
	if e, ok := p.entries[edge]; ok {
		return e.state != NotInPlan
	}

	// Validation outputs are scheduled alongside the build regardless of
	// whether edge itself turns out dirty, and never count toward edge's
	// own unready total: they must not gate readiness of edge or of
	// anything waiting on edge's outputs.
	for _, v := range edge.Validations {
		if v.InEdge != nil {
			p.addEdge(v.InEdge)
		}
	}

	dirty := false
	for _, out := range edge.Outputs {
		if out.Status == graph.StatusDirty {
			dirty = true
			break
		}
	}
	if !dirty {
		p.entries[edge] = &entry{state: Done}
		return false
	}

	e := &entry{state: Want}
	p.entries[edge] = e
	p.wantedCount++

	unready := 0
	for _, in := range edge.Inputs {
		if in.InEdge != nil && p.addEdge(in.InEdge) {
			unready++
		}
	}
	e.unready = unready

	// Appended after recursing into inputs, so order ends up with every
	// producer ahead of its consumers — the same topological order a
	// plain DFS topo-sort would produce, and exactly what
	// computeCriticalTimes needs to relax consumers before producers.
	p.order = append(p.order, edge)
	return true
}

// computeCriticalTimes assigns every entry its critical time: the
// longest path, summing edge durations, from that edge to any root (a
// final target with no further consumer in the plan). It resets every
// entry to its own duration and then relaxes backward from consumers to
// producers, so an edge's critical time already reflects the slowest
// chain of everything waiting downstream of it by the time its
// producers are visited.
func (p *Plan) computeCriticalTimes() {
	for _, edge := range p.order {
		p.entries[edge].criticalTime = p.durationMS(edge)
	}
	for i := len(p.order) - 1; i >= 0; i-- {
		edge := p.order[i]
		consumerTime := p.entries[edge].criticalTime
		for _, in := range edge.Inputs {
			producer := in.InEdge
			if producer == nil {
				continue
			}
			pe, ok := p.entries[producer]
			if !ok {
				continue
			}
			if candidate := consumerTime + p.durationMS(producer); candidate > pe.criticalTime {
				pe.criticalTime = candidate
			}
		}
	}
}

// promotePending moves every still-Want entry with no unfinished input
// to Ready, now that computeCriticalTimes has given it its final
// ordering key.
func (p *Plan) promotePending() {
	for _, edge := range p.order {
		e := p.entries[edge]
		if e.state == Want && e.unready == 0 {
			p.promoteReady(edge, e)
		}
	}
}

func (p *Plan) durationMS(edge *graph.Edge) int64 {
	if p.buildLog == nil || len(edge.Outputs) == 0 {
		return 0
	}
	rec := p.buildLog.Lookup(edge.Outputs[0].Path)
	if rec == nil {
		return 0
	}
	return int64(rec.EndMS - rec.StartMS)
}

func (p *Plan) promoteReady(edge *graph.Edge, e *entry) {
	e.state = Ready
	heap.Push(&p.ready, readyItem{edge: edge, criticalTime: e.criticalTime})
}

// FindWork pops the highest-critical-time ready edge (ties broken by
// edge id), or ok=false if none is ready.
func (p *Plan) FindWork() (edge *graph.Edge, ok bool) {
	if p.ready.Len() == 0 {
		return nil, false
	}
	item := heap.Pop(&p.ready).(readyItem)
	return item.edge, true
}

// MarkInFlight transitions edge from Ready to InFlight, called once the
// pool scheduler admits it.
func (p *Plan) MarkInFlight(edge *graph.Edge) {
	p.entries[edge].state = InFlight
}

// EdgeFinished applies a dispatch result: decrements the unready count
// of every consumer, promoting any that reach zero to Ready. If result
// is SucceededButUnchanged, consumers that end up with no other source
// of dirtiness are pruned from the plan entirely rather than scheduled.
func (p *Plan) EdgeFinished(edge *graph.Edge, result Result) {
	e := p.entries[edge]
	e.state = Done
	p.wantedCount--
	edge.OutputsReady = result != Failed

	if result == SucceededButUnchanged {
		for _, out := range edge.Outputs {
			out.Status = graph.StatusClean
		}
	}

	for _, out := range edge.Outputs {
		for _, consumer := range out.OutEdges {
			ce, ok := p.entries[consumer]
			if !ok || ce.state != Want {
				continue
			}
			ce.unready--
			if ce.unready == 0 {
				if result == SucceededButUnchanged && p.allInputsClean(consumer) {
					p.pruneFromPlan(consumer, ce)
				} else {
					p.promoteReady(consumer, ce)
				}
			}
		}
	}
}

func (p *Plan) allInputsClean(edge *graph.Edge) bool {
	for _, in := range edge.Inputs {
		if in.Status == graph.StatusDirty {
			return false
		}
	}
	return true
}

// pruneFromPlan removes an edge that turned out not to need building
// after a restat-unchanged upstream result, recursively applying the
// same pruning to its own consumers.
func (p *Plan) pruneFromPlan(edge *graph.Edge, e *entry) {
	e.state = Done
	p.wantedCount--
	for _, out := range edge.Outputs {
		out.Status = graph.StatusClean
		for _, consumer := range out.OutEdges {
			ce, ok := p.entries[consumer]
			if !ok || ce.state != Want {
				continue
			}
			ce.unready--
			if ce.unready == 0 {
				if p.allInputsClean(consumer) {
					p.pruneFromPlan(consumer, ce)
				} else {
					p.promoteReady(consumer, ce)
				}
			}
		}
	}
}

// State returns edge's current EdgeState, or NotInPlan if it was never
// considered.
func (p *Plan) State(edge *graph.Edge) EdgeState {
	if e, ok := p.entries[edge]; ok {
		return e.state
	}
	return NotInPlan
}

// CriticalTime returns the critical-time value edge was promoted to
// Ready with, for pool schedulers that need the same ordering key.
func (p *Plan) CriticalTime(edge *graph.Edge) int64 {
	if e, ok := p.entries[edge]; ok {
		return e.criticalTime
	}
	return 0
}
