package cli_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"forge/internal/cli"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(prev) })
}

const simpleManifest = `
rule touch
  command = sh -c "touch $out"

build out.txt: touch in.txt
`

func TestBuildRunsAndProducesOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.forge"), []byte(simpleManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in.txt"), []byte("x"), 0o644))
	chdir(t, dir)

	root := cli.NewRootCommand()
	root.SetArgs([]string{"build", "out.txt"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	_, err := os.Stat(filepath.Join(dir, "out.txt"))
	require.NoError(t, err, "build should have produced out.txt")
}

func TestGraphEmitsDOTForRequestedTargets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.forge"), []byte(simpleManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in.txt"), []byte("x"), 0o644))
	chdir(t, dir)

	var out bytes.Buffer
	root := cli.NewRootCommand()
	root.SetArgs([]string{"graph", "out.txt"})
	root.SetOut(&out)
	require.NoError(t, root.ExecuteContext(context.Background()))
	require.Contains(t, out.String(), "digraph forge")
}

// TestBuildRecompactsBloatedBuildLog seeds .forge_log with many records
// for an output path no longer named by any edge, past the
// recompaction threshold (>100 records, >3x the unique-output count).
// A real build invocation must recompact before recording its own
// entries, dropping the dead path rather than leaving it to grow
// forever across invocations.
func TestBuildRecompactsBloatedBuildLog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.forge"), []byte(simpleManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in.txt"), []byte("x"), 0o644))

	var log strings.Builder
	log.WriteString("# ninja log v5\n")
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&log, "0\t1\t1\tdup.txt\t1\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".forge_log"), []byte(log.String()), 0o644))

	chdir(t, dir)

	root := cli.NewRootCommand()
	root.SetArgs([]string{"build", "out.txt"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, ".forge_log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.False(t, strings.Contains(string(data), "dup.txt"), "recompaction should have dropped the dead output")
	require.Len(t, lines, 2, "header plus the single out.txt entry recorded by this build")
	require.Contains(t, lines[1], "out.txt")
}

func TestTargetsUnknownManifestReportsInvalidInvocation(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	root := cli.NewRootCommand()
	root.SetArgs([]string{"targets"})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	require.Equal(t, cli.ExitInvalidInvocation, cli.ExitCodeOf(err))
}
