// Package graph implements the in-memory dependency graph: Node, Edge,
// Rule, Pool, and the State that owns all of them.
//
// Neither Node nor Edge owns the other: State is the sole arena. Cross
// references (Node.InEdge, Node.OutEdges, Edge.Inputs/Outputs) are plain
// pointers into that arena, valid for the lifetime of the State.
package graph

import (
	"fmt"
	"sort"

	"forge/internal/builderrors"
)

// State owns every Node, Edge, Rule, and Pool in a single build's graph.
type State struct {
	nodes    map[string]*Node
	edges    []*Edge
	rules    map[string]*Rule
	pools    map[string]*Pool
	defaults []*Node

	nextNodeID int
}

// NewState constructs an empty graph with the built-in phony rule and
// the reserved console pool preregistered.
func NewState() *State {
	s := &State{
		nodes: map[string]*Node{},
		rules: map[string]*Rule{},
		pools: map[string]*Pool{},
	}
	s.rules["phony"] = NewRule("phony")
	s.pools[ConsolePoolName] = NewConsolePool()
	return s
}

// GetNode returns the node for path, creating it (with the next
// sequential ID) if this is the first reference.
func (s *State) GetNode(path string) *Node {
	path = CanonicalizePath(path)
	if n, ok := s.nodes[path]; ok {
		return n
	}
	n := &Node{Path: path, id: s.nextNodeID}
	s.nextNodeID++
	s.nodes[path] = n
	return n
}

// LookupNode returns the node for path if one has already been
// referenced, or nil.
func (s *State) LookupNode(path string) *Node {
	return s.nodes[CanonicalizePath(path)]
}

// AddRule registers rule for later lookup by the manifest parser.
func (s *State) AddRule(r *Rule) { s.rules[r.Name] = r }

// LookupRule returns the named rule, or nil.
func (s *State) LookupRule(name string) *Rule { return s.rules[name] }

// AddPool registers pool for later lookup by the manifest parser.
func (s *State) AddPool(p *Pool) { s.pools[p.Name] = p }

// LookupPool returns the named pool, or nil.
func (s *State) LookupPool(name string) *Pool { return s.pools[name] }

// AddEdge creates and registers a new edge using rule, assigning it the
// next sequential ID.
func (s *State) AddEdge(rule *Rule, env *Env) *Edge {
	e := NewEdge(rule, env)
	e.id = len(s.edges)
	s.edges = append(s.edges, e)
	return e
}

// AddOutput attaches node as an output of edge, enforcing the
// single-producer invariant (P1): a node already produced by a different
// edge is a graph error ("dupbuild").
func (s *State) AddOutput(edge *Edge, node *Node, explicit bool) error {
	if node.InEdge != nil && node.InEdge != edge {
		return &builderrors.GraphError{
			Msg: fmt.Sprintf("multiple rules generate %s", node.Path),
		}
	}
	edge.AddOutput(node, explicit)
	return nil
}

// Edges returns every edge in creation order.
func (s *State) Edges() []*Edge { return s.edges }

// AddDefault marks path as a declared default target.
func (s *State) AddDefault(path string) error {
	n := s.LookupNode(path)
	if n == nil {
		return &builderrors.GraphError{Msg: fmt.Sprintf("unknown target '%s' in default", path)}
	}
	s.defaults = append(s.defaults, n)
	return nil
}

// RootNodes returns every node with no consuming edge: the natural
// "build everything" frontier absent explicit defaults.
func (s *State) RootNodes() []*Node {
	var roots []*Node
	for _, path := range s.SortedNodePaths() {
		n := s.nodes[path]
		if len(n.OutEdges) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// DefaultNodes returns the declared defaults, or RootNodes if none were
// declared.
func (s *State) DefaultNodes() []*Node {
	if len(s.defaults) > 0 {
		return s.defaults
	}
	return s.RootNodes()
}

// SortedNodePaths returns every known node path in deterministic sorted
// order, since map iteration order must never leak into output (spec
// design note: hash-map iteration determinism).
func (s *State) SortedNodePaths() []string {
	paths := make([]string, 0, len(s.nodes))
	for p := range s.nodes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Reset clears all per-build state (node status/mtime, edge marks,
// outputs-ready, deps-loaded) while preserving graph topology, ready for
// a fresh recompute_dirty pass — e.g. after a manifest rebuild.
func (s *State) Reset() {
	for _, n := range s.nodes {
		n.ResetBuildState()
	}
	for _, e := range s.edges {
		e.ResetBuildState()
	}
}
