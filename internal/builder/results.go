package builder

import (
	"context"
	"time"

	"forge/internal/builderrors"
	"forge/internal/buildlog"
	"forge/internal/graph"
	"forge/internal/plan"
	"forge/internal/subprocess"
)

// applyResult is invoked once per completed (or interrupted) command: it
// updates the build log, the deps log, restat bookkeeping, and notifies
// the plan so downstream edges can become ready. It returns the number
// of additional commands releaseFromPool started on edge's behalf, which
// the caller must add to its own in-flight count — these are edges the
// caller never dispatched itself and would otherwise never wait for.
func (b *Builder) applyResult(ctx context.Context, result *subprocess.Result) (int, error) {
	edge := result.Edge
	released := b.releaseFromPool(ctx, edge)

	if b.status != nil {
		b.status.EdgeFinished(edge, time.Since(b.startTime).Milliseconds(), result.Status == subprocess.StatusSuccess, result.Output)
	}

	switch result.Status {
	case subprocess.StatusInterrupted:
		b.plan.EdgeFinished(edge, plan.Failed)
		return released, builderrors.Interrupted

	case subprocess.StatusFailure:
		b.plan.EdgeFinished(edge, plan.Failed)
		return released, &builderrors.CommandError{
			EdgeDescription: edge.Description(),
			ExitCode:        result.ExitCode,
			Output:          string(result.Output),
		}
	}

	outcome, err := b.recordSuccess(edge)
	if err != nil {
		return released, err
	}
	b.plan.EdgeFinished(edge, outcome)
	return released, nil
}

// recordSuccess stats every output, applies the restat rule, appends a
// build-log entry per output, and — for rules with dependency discovery
// — appends a deps-log entry. In a dry run neither log is written.
func (b *Builder) recordSuccess(edge *graph.Edge) (plan.Result, error) {
	var newestInput graph.TimeStamp
	for _, in := range edge.Inputs {
		if in.MTime > newestInput {
			newestInput = in.MTime
		}
	}

	hash := buildlog.HashCommand(edge.EvaluateCommand())
	start := b.edgeStartMS[edge]
	end := nowMS(b.startTime)
	delete(b.edgeStartMS, edge)

	unchanged := edge.Restat
	for _, out := range edge.Outputs {
		ts, err := b.disk.Stat(out.Path)
		if err != nil {
			return plan.Failed, err
		}
		out.MarkStatted(ts)
		if ts > newestInput {
			unchanged = false
		}
		if b.config.DryRun {
			continue
		}
		if err := b.buildLog.Record(out.Path, hash, start, end, ts); err != nil {
			return plan.Failed, err
		}
	}

	if depsMode := edge.Binding("deps"); depsMode != "" && b.depsLog != nil && !b.config.DryRun {
		if err := b.recordDeps(edge); err != nil {
			return plan.Failed, err
		}
	}

	if edge.Restat && unchanged {
		return plan.SucceededButUnchanged, nil
	}
	return plan.Succeeded, nil
}

func (b *Builder) recordDeps(edge *graph.Edge) error {
	inputs, err := b.depfileInputs(edge)
	if err != nil {
		return err
	}
	if inputs == nil {
		return nil
	}
	for _, out := range edge.Outputs {
		outID, err := b.depsLog.RecordPath(out.Path)
		if err != nil {
			return err
		}
		inputIDs := make([]int, 0, len(inputs))
		for _, p := range inputs {
			id, err := b.depsLog.RecordPath(p)
			if err != nil {
				return err
			}
			inputIDs = append(inputIDs, id)
		}
		if err := b.depsLog.RecordDeps(outID, out.MTime, inputIDs); err != nil {
			return err
		}
	}
	return nil
}
