// Package pool implements C7: per-pool weighted admission control over
// edges the plan has already marked ready.
package pool

import (
	"container/heap"

	"forge/internal/graph"
)

// Scheduler wraps a graph.Pool with a delayed set of edges that became
// ready but could not immediately be admitted because the pool was at
// depth.
type Scheduler struct {
	Pool    *graph.Pool
	delayed delayedHeap
}

// New constructs a scheduler over pool.
func New(pool *graph.Pool) *Scheduler {
	return &Scheduler{Pool: pool}
}

// CanAdmit reports whether an edge of the given weight fits within the
// pool's depth right now. Depth 0 means unlimited: everything fits.
func (s *Scheduler) CanAdmit(weight int) bool {
	if s.Pool.IsUnlimited() {
		return true
	}
	return s.Pool.CurrentUse+weight <= s.Pool.Depth
}

// EdgeScheduled admits edge, accounting for its weight.
func (s *Scheduler) EdgeScheduled(edge *graph.Edge) {
	s.Pool.CurrentUse += edge.Weight
}

// EdgeFinished releases edge's weight back to the pool.
func (s *Scheduler) EdgeFinished(edge *graph.Edge) {
	s.Pool.CurrentUse -= edge.Weight
}

// Delay records edge as ready-but-not-yet-admitted, keyed by the same
// (critical-time, id) ordering the plan's ready queue uses, so delayed
// release preserves determinism too.
func (s *Scheduler) Delay(edge *graph.Edge, criticalTime int64) {
	heap.Push(&s.delayed, delayedItem{edge: edge, criticalTime: criticalTime})
}

// RetrieveReadyEdges drains the delayed set, admitting as many edges as
// fit within the pool's remaining depth, and returns them in admission
// order.
func (s *Scheduler) RetrieveReadyEdges() []*graph.Edge {
	var out []*graph.Edge
	for s.delayed.Len() > 0 {
		next := s.delayed[0].edge
		if !s.CanAdmit(next.Weight) {
			break
		}
		item := heap.Pop(&s.delayed).(delayedItem)
		s.EdgeScheduled(item.edge)
		out = append(out, item.edge)
	}
	return out
}

// Pending reports how many edges are waiting in the delayed set.
func (s *Scheduler) Pending() int { return s.delayed.Len() }
