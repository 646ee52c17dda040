package pool

import "forge/internal/graph"

// Registry holds one Scheduler per graph.Pool referenced by the graph,
// created lazily on first use.
type Registry struct {
	schedulers map[*graph.Pool]*Scheduler
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{schedulers: map[*graph.Pool]*Scheduler{}}
}

// For returns the Scheduler for p, creating it if this is the first
// reference.
func (r *Registry) For(p *graph.Pool) *Scheduler {
	if s, ok := r.schedulers[p]; ok {
		return s
	}
	s := New(p)
	r.schedulers[p] = s
	return s
}
