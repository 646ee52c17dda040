package graph

// Status is a node's tri-state staleness classification within a single
// build. It is reset to unknown at the start of every build (State.Reset).
type Status int

const (
	StatusUnknown Status = iota
	StatusClean
	StatusDirty
)

// Node is a path in the dependency graph. Exactly one Edge may produce a
// non-source node (InEdge); any number may consume it (OutEdges).
type Node struct {
	Path string
	id   int

	MTime  TimeStamp
	Status Status

	InEdge        *Edge
	OutEdges      []*Edge
	ValidationOut []*Edge

	// DyndepPending marks a node that is itself a dyndep manifest still
	// awaiting resolution.
	DyndepPending bool

	// statted records whether MTime has been populated by a Stat call
	// during the current build, distinguishing "never checked" from
	// "checked and missing".
	statted bool
}

// ID returns the node's stable integer identifier, assigned on first
// reference (State.GetNode / deps log load order).
func (n *Node) ID() int { return n.id }

// Statted reports whether this node has been stat'd during the current
// build.
func (n *Node) Statted() bool { return n.statted }

// MarkStatted records that MTime now reflects a real stat result (or the
// Missing sentinel for a confirmed-absent file).
func (n *Node) MarkStatted(ts TimeStamp) {
	n.MTime = ts
	n.statted = true
}

// ResetBuildState clears everything that is scoped to a single build
// invocation, leaving ID and Path (identity) untouched.
func (n *Node) ResetBuildState() {
	n.Status = StatusUnknown
	n.statted = false
	n.MTime = Missing
	n.DyndepPending = false
}
