package plan

import "forge/internal/graph"

// readyItem is one entry in the ready heap: an edge plus the critical
// time it was promoted with (entries don't change after promotion, so
// this is a stable snapshot).
type readyItem struct {
	edge         *graph.Edge
	criticalTime int64
}

// readyHeap orders by descending critical time (longest remaining chain
// dispatched first), tie-broken by ascending edge id for determinism —
// two builds of the same graph must spawn edges in the same order.
type readyHeap []readyItem

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	if h[i].criticalTime != h[j].criticalTime {
		return h[i].criticalTime > h[j].criticalTime
	}
	return h[i].edge.ID() < h[j].edge.ID()
}

func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readyHeap) Push(x any) { *h = append(*h, x.(readyItem)) }

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
