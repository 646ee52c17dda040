package pool

import "forge/internal/graph"

type delayedItem struct {
	edge         *graph.Edge
	criticalTime int64
}

// delayedHeap mirrors plan's ready-queue ordering so pool release order
// is as deterministic as initial dispatch order.
type delayedHeap []delayedItem

func (h delayedHeap) Len() int { return len(h) }

func (h delayedHeap) Less(i, j int) bool {
	if h[i].criticalTime != h[j].criticalTime {
		return h[i].criticalTime > h[j].criticalTime
	}
	return h[i].edge.ID() < h[j].edge.ID()
}

func (h delayedHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *delayedHeap) Push(x any) { *h = append(*h, x.(delayedItem)) }

func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
