package scan

import (
	"forge/internal/builderrors"
	"forge/internal/graph"
	"forge/internal/manifest"
)

// loadDyndep resolves edge's dyndep node (producing it first if needed),
// parses its contents, and splices the discovered implicit
// inputs/outputs (and optional restat override) into edge. Idempotent:
// guarded by edge.DepsLoaded so a diamond-shaped graph only pays the
// parse cost once.
func (s *DependencyScan) loadDyndep(edge *graph.Edge) error {
	dd := edge.Dyndep
	if err := s.walk(dd); err != nil {
		return err
	}

	data, err := s.disk.ReadFile(dd.Path)
	if err != nil {
		return &builderrors.IOError{Op: "read-dyndep", Path: dd.Path, Err: err}
	}

	records, err := manifest.ParseDyndep(string(data))
	if err != nil {
		return err
	}

	byOutput := map[string]*graph.Edge{}
	for _, out := range edge.Outputs {
		byOutput[out.Path] = edge
	}

	for _, rec := range records {
		target, ok := byOutput[rec.Output]
		if !ok {
			continue // a dyndep file may describe edges outside this walk.
		}
		for _, path := range rec.ImplicitInputs {
			target.InsertImplicitInput(s.state.GetNode(path))
		}
		for _, path := range rec.ImplicitOutputs {
			target.InsertImplicitOutput(s.state.GetNode(path))
		}
		if rec.HasRestatOverride {
			target.Restat = rec.RestatOverride
		}
	}

	edge.DepsLoaded = true
	return nil
}
