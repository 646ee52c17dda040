package subprocess

import (
	"context"

	"forge/internal/graph"
)

// DryRun is a Runner that never spawns anything: it immediately reports
// every started edge as succeeded, for "forge build --dry-run".
type DryRun struct {
	finished []*graph.Edge
}

// NewDryRun constructs a no-op runner.
func NewDryRun() *DryRun { return &DryRun{} }

func (d *DryRun) CanRunMore() bool { return true }

func (d *DryRun) StartCommand(ctx context.Context, edge *graph.Edge, useConsole bool) error {
	d.finished = append(d.finished, edge)
	return nil
}

func (d *DryRun) WaitForCommand() (*Result, bool) {
	if len(d.finished) == 0 {
		return nil, false
	}
	edge := d.finished[0]
	d.finished = d.finished[1:]
	return &Result{Edge: edge, Status: StatusSuccess}, true
}

func (d *DryRun) ActiveEdges() []*graph.Edge { return nil }

func (d *DryRun) Abort() {}
