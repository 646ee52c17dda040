package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizePathBoundaryCases(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"/":         "",
		"./.":       ".",
		"foo/..":    ".",
		"../../a":   "../../a",
		"foo//bar":  "foo/bar",
		"a/b/c":     "a/b/c",
		"a/./b":     "a/b",
		"a/b/../c":  "a/c",
	}
	for in, want := range cases {
		require.Equal(t, want, CanonicalizePath(in), "input %q", in)
	}
}

func TestCanonicalizePathIdempotent(t *testing.T) {
	inputs := []string{"", "/", "./.", "foo/..", "../../a", "foo//bar", "a/b/../../c/d"}
	for _, in := range inputs {
		once := CanonicalizePath(in)
		twice := CanonicalizePath(once)
		require.Equal(t, once, twice, "not idempotent for %q", in)
	}
}

func TestAddOutputSetsInEdgeAndOutEdges(t *testing.T) {
	s := NewState()
	rule := NewRule("cat")
	rule.Bindings["command"] = "cat $in > $out"
	env := NewEnv(nil)

	edge := s.AddEdge(rule, env)
	out := s.GetNode("out")
	in := s.GetNode("in")

	require.NoError(t, s.AddOutput(edge, out, true))
	edge.AddInput(in, InputExplicit)

	// P1
	require.Same(t, edge, out.InEdge)
	// P2
	require.Contains(t, in.OutEdges, edge)
}

func TestAddOutputDuplicateIsGraphError(t *testing.T) {
	s := NewState()
	rule := NewRule("cat")
	env := NewEnv(nil)

	e1 := s.AddEdge(rule, env)
	e2 := s.AddEdge(rule, env)
	out := s.GetNode("out")

	require.NoError(t, s.AddOutput(e1, out, true))
	err := s.AddOutput(e2, out, true)
	require.Error(t, err)
}

func TestSpellcheckFindsCloseMatch(t *testing.T) {
	s := NewState()
	s.GetNode("foo")
	s.GetNode("bar")

	require.Equal(t, "foo", s.Spellcheck("fo"))
}

func TestSpellcheckNoMatchBeyondMaxDistance(t *testing.T) {
	s := NewState()
	s.GetNode("completely_different_path")

	require.Equal(t, "", s.Spellcheck("xy"))
}
