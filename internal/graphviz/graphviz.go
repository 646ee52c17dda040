// Package graphviz renders a build graph as Graphviz DOT, for the
// "-t graph" subtool.
package graphviz

import (
	"fmt"
	"io"

	"forge/internal/graph"
)

// Write emits a DOT graph of every edge reachable from roots (or the
// whole state's edges if roots is empty) to w.
func Write(w io.Writer, state *graph.State, roots []*graph.Node) error {
	fmt.Fprintln(w, "digraph forge {")
	fmt.Fprintln(w, `rankdir="LR"`)
	fmt.Fprintln(w, `node [fontsize=10, shape=box, height=0.25]`)
	fmt.Fprintln(w, `edge [fontsize=10]`)

	edges := reachableEdges(state, roots)
	seenNodes := map[*graph.Node]bool{}

	for _, e := range edges {
		if e.Phony {
			for _, in := range e.Inputs {
				for _, out := range e.Outputs {
					declareNode(w, out, seenNodes)
					declareNode(w, in, seenNodes)
					fmt.Fprintf(w, "\"%s\" -> \"%s\" [style=dotted]\n", in.Path, out.Path)
				}
			}
			continue
		}

		edgeID := fmt.Sprintf("edge%d", e.ID())
		fmt.Fprintf(w, "\"%s\" [label=\"%s\", shape=ellipse]\n", edgeID, e.Rule.Name)

		for _, in := range e.Inputs {
			declareNode(w, in, seenNodes)
			fmt.Fprintf(w, "\"%s\" -> \"%s\"\n", in.Path, edgeID)
		}
		for _, out := range e.Outputs {
			declareNode(w, out, seenNodes)
			fmt.Fprintf(w, "\"%s\" -> \"%s\"\n", edgeID, out.Path)
		}
	}

	fmt.Fprintln(w, "}")
	return nil
}

func declareNode(w io.Writer, n *graph.Node, seen map[*graph.Node]bool) {
	if seen[n] {
		return
	}
	seen[n] = true
	shape := "box"
	if n.Status != graph.StatusClean {
		shape = "box, style=filled, fillcolor=lightyellow"
	}
	fmt.Fprintf(w, "\"%s\" [label=\"%s\", shape=%s]\n", n.Path, n.Path, shape)
}

func reachableEdges(state *graph.State, roots []*graph.Node) []*graph.Edge {
	if len(roots) == 0 {
		return state.Edges()
	}
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
	for _, r := range roots {
		visit(r)
	}
	return out
}
