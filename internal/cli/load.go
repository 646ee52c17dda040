package cli

import (
	"os"

	"forge/internal/builderrors"
	"forge/internal/config"
	"forge/internal/disk"
	"forge/internal/graph"
	"forge/internal/manifest"
)

// loadedBuild bundles the parsed manifest state with the ambient config
// every subcommand needs.
type loadedBuild struct {
	state  *graph.State
	config config.File
}

func loadBuild(manifestPath string) (*loadedBuild, error) {
	cfg, err := config.Load("forge.yaml")
	if err != nil {
		return nil, wrapExit(ExitConfigError, "loading forge.yaml", err)
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, wrapExit(ExitInvalidInvocation, "reading manifest "+manifestPath, err)
	}

	state := graph.NewState()
	p := manifest.New(state, manifestPath, nil)
	if err := p.Parse(string(data)); err != nil {
		var pe *builderrors.ParseError
		if asParseError(err, &pe) {
			return nil, wrapExit(ExitInvalidInvocation, "parsing manifest", pe)
		}
		return nil, wrapExit(ExitInvalidInvocation, "parsing manifest", err)
	}

	return &loadedBuild{state: state, config: cfg}, nil
}

// isPathDead reports whether path is safe to drop on log recompaction: a
// node with a current producing edge is always live (its next build
// still needs the record), and a node that no longer has one is kept
// only if it still exists on disk (a generator output the manifest
// stopped describing, not yet cleaned).
func isPathDead(state *graph.State, d disk.Interface, path string) bool {
	if n := state.LookupNode(path); n != nil && n.InEdge != nil {
		return false
	}
	ts, err := d.Stat(path)
	if err != nil {
		return true
	}
	return ts == graph.Missing
}

func asParseError(err error, target **builderrors.ParseError) bool {
	pe, ok := err.(*builderrors.ParseError)
	if ok {
		*target = pe
	}
	return ok
}

// resolveTargets maps names to nodes, falling back to the manifest's
// declared defaults (or every root node) when names is empty.
func resolveTargets(state *graph.State, names []string) ([]*graph.Node, error) {
	if len(names) == 0 {
		if defaults := state.DefaultNodes(); len(defaults) > 0 {
			return defaults, nil
		}
		return state.RootNodes(), nil
	}

	nodes := make([]*graph.Node, 0, len(names))
	for _, name := range names {
		node := state.LookupNode(name)
		if node == nil {
			if suggestion := state.Spellcheck(name); suggestion != "" {
				return nil, wrapExit(ExitInvalidInvocation, "", &builderrors.GraphError{
					Msg: "unknown target '" + name + "', did you mean '" + suggestion + "'?",
				})
			}
			return nil, wrapExit(ExitInvalidInvocation, "", &builderrors.GraphError{Msg: "unknown target '" + name + "'"})
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
