package builder

import "forge/internal/graph"

// StatusSink is the external status/printer collaborator (§6):
// plan_has_total_edges, edge_started, edge_finished, build_started,
// build_finished. A nil sink is valid; Builder checks before calling.
type StatusSink interface {
	PlanHasTotalEdges(n int)
	EdgeStarted(edge *graph.Edge, elapsedMS int64)
	EdgeFinished(edge *graph.Edge, elapsedMS int64, ok bool, output []byte)
	BuildStarted()
	BuildFinished()
}
