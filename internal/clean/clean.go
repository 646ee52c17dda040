// Package clean implements C9: given the graph and build log, enumerate
// and remove generated files.
package clean

import (
	"sort"

	"forge/internal/buildlog"
	"forge/internal/disk"
	"forge/internal/graph"
)

// Mode selects which files Clean considers for removal.
type Mode int

const (
	// ModeAll removes every non-phony, non-generator edge's outputs.
	ModeAll Mode = iota
	// ModeTargets removes the outputs of the edges reachable from a
	// specific set of requested targets.
	ModeTargets
	// ModeRules removes the outputs of edges using a specific set of
	// rule names.
	ModeRules
	// ModeDead removes build-log outputs with no corresponding live
	// node, or whose node has neither a producing nor a consuming edge.
	ModeDead
)

// Options configures a single Clean invocation.
type Options struct {
	Mode Mode

	// Targets selects edges for ModeTargets: the node itself plus every
	// edge transitively reachable as a producer of one of its inputs.
	Targets []*graph.Node

	// RuleNames selects edges for ModeRules.
	RuleNames map[string]bool

	// IncludeGenerator, if false (the default), skips edges whose rule
	// is flagged "generator = 1" even in modes that would otherwise
	// include them.
	IncludeGenerator bool

	// DryRun reports what would be removed without unlinking anything.
	DryRun bool
}

// Result reports what Clean did.
type Result struct {
	Removed []string
}

// Cleaner drives removal against a graph and disk.
type Cleaner struct {
	state    *graph.State
	disk     disk.Interface
	buildLog *buildlog.Log
}

// New constructs a Cleaner. buildLog may be nil for modes that don't
// need it (ModeDead requires one).
func New(state *graph.State, d disk.Interface, buildLog *buildlog.Log) *Cleaner {
	return &Cleaner{state: state, disk: d, buildLog: buildLog}
}

// Clean executes opts and returns the set of files removed (or that
// would be removed, under DryRun).
func (c *Cleaner) Clean(opts Options) Result {
	switch opts.Mode {
	case ModeDead:
		return c.cleanDead(opts)
	case ModeRules:
		return c.cleanEdges(c.edgesByRule(opts.RuleNames), opts)
	case ModeTargets:
		return c.cleanEdges(c.edgesReachableFrom(opts.Targets), opts)
	default:
		return c.cleanEdges(c.state.Edges(), opts)
	}
}

func (c *Cleaner) edgesByRule(names map[string]bool) []*graph.Edge {
	var out []*graph.Edge
	for _, e := range c.state.Edges() {
		if names[e.Rule.Name] {
			out = append(out, e)
		}
	}
	return out
}

func (c *Cleaner) edgesReachableFrom(targets []*graph.Node) []*graph.Edge {
	seen := map[*graph.Edge]bool{}
	var out []*graph.Edge
	var visit func(n *graph.Node)
	visit = func(n *graph.Node) {
		e := n.InEdge
		if e == nil || seen[e] {
			return
		}
		seen[e] = true
		out = append(out, e)
		for _, in := range e.Inputs {
			visit(in)
		}
	}
	for _, t := range targets {
		visit(t)
	}
	return out
}

func (c *Cleaner) cleanEdges(edges []*graph.Edge, opts Options) Result {
	var removedSet = map[string]bool{}
	for _, e := range edges {
		if e.Phony {
			continue
		}
		if e.Generator && !opts.IncludeGenerator {
			continue
		}
		for _, out := range e.Outputs {
			c.removeFile(out.Path, opts.DryRun, removedSet)
		}
		for _, aux := range []string{e.Binding("depfile"), e.Binding("rspfile")} {
			if aux != "" {
				c.removeFile(aux, opts.DryRun, removedSet)
			}
		}
	}
	return sortedResult(removedSet)
}

func (c *Cleaner) cleanDead(opts Options) Result {
	if c.buildLog == nil {
		return Result{}
	}
	removedSet := map[string]bool{}
	for output := range c.buildLog.Entries() {
		node := c.state.LookupNode(output)
		dead := node == nil || (node.InEdge == nil && len(node.OutEdges) == 0)
		if dead {
			c.removeFile(output, opts.DryRun, removedSet)
		}
	}
	return sortedResult(removedSet)
}

func (c *Cleaner) removeFile(path string, dryRun bool, removedSet map[string]bool) {
	if path == "" || removedSet[path] {
		return
	}
	if dryRun {
		removedSet[path] = true
		return
	}
	if c.disk.RemoveFile(path) == disk.RemoveRemoved {
		removedSet[path] = true
	}
}

func sortedResult(set map[string]bool) Result {
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return Result{Removed: paths}
}
