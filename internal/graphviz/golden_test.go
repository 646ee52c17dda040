package graphviz

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"forge/internal/graph"
	"forge/internal/manifest"
)

// TestWriteMatchesGoldenDOT pins the exact DOT text emitted for a small,
// fixed graph, the same way a wire-format test pins exact bytes rather
// than just checking for substrings. Regenerate with `go test -update`
// after a deliberate change to the DOT layout.
func TestWriteMatchesGoldenDOT(t *testing.T) {
	state := graph.NewState()
	require.NoError(t, manifest.New(state, "build.forge", nil).Parse(
		"rule cc\n  command = gcc -c $in -o $out\nbuild out.o: cc in.c\n",
	))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, state, nil))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "graph_simple", buf.Bytes())
}
