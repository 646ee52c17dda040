package disk

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"forge/internal/builderrors"
	"forge/internal/graph"
)

func TestRealStatReturnsMissingForAbsentPath(t *testing.T) {
	r := NewReal()
	ts, err := r.Stat(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	require.Equal(t, graph.Missing, ts)
}

func TestRealWriteThenStatAdvancesAndReadRoundTrips(t *testing.T) {
	r := NewReal()
	path := filepath.Join(t.TempDir(), "out")

	require.NoError(t, r.WriteFile(path, []byte("hello")))

	data, err := r.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)

	ts, err := r.Stat(path)
	require.NoError(t, err)
	require.NotEqual(t, graph.Missing, ts)
}

func TestRealReadFileMissingReturnsErrNotFound(t *testing.T) {
	r := NewReal()
	_, err := r.ReadFile(filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRealWriteFileWrapsUnderlyingErrorInIOError(t *testing.T) {
	r := NewReal()
	// Writing under a path that doesn't exist as a directory should fail,
	// and the failure should surface as a typed IOError.
	err := r.WriteFile(filepath.Join(t.TempDir(), "missing-dir", "out"), []byte("x"))
	require.Error(t, err)
	var ioErr *builderrors.IOError
	require.True(t, errors.As(err, &ioErr))
	require.Equal(t, "write", ioErr.Op)
}

func TestRealMakeDirSucceedsIfAlreadyExists(t *testing.T) {
	r := NewReal()
	dir := filepath.Join(t.TempDir(), "sub")
	require.NoError(t, r.MakeDir(dir))
	require.NoError(t, r.MakeDir(dir))
}

func TestRealMakeDirsCreatesMissingParents(t *testing.T) {
	r := NewReal()
	path := filepath.Join(t.TempDir(), "a", "b", "c", "out")
	require.NoError(t, r.MakeDirs(path))

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestRealRemoveFileClassifiesOutcome(t *testing.T) {
	r := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "out")

	require.Equal(t, RemoveNotFound, r.RemoveFile(path))

	require.NoError(t, r.WriteFile(path, []byte("x")))
	require.Equal(t, RemoveRemoved, r.RemoveFile(path))
	require.Equal(t, RemoveNotFound, r.RemoveFile(path))
}

func TestWriteFileAtomicReplacesExistingContentAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log")

	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	committed, err := WriteFileAtomic(path, []byte("new"))
	require.NoError(t, err)
	require.True(t, committed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "the temp file must not survive a committed atomic write")
}

func TestVirtualStatIsMissingUntilDeclared(t *testing.T) {
	v := NewVirtual()
	ts, err := v.Stat("out")
	require.NoError(t, err)
	require.Equal(t, graph.Missing, ts)
}

func TestVirtualDeclareThenStatAndReadFile(t *testing.T) {
	v := NewVirtual()
	v.Declare("out", 7, []byte("payload"))

	ts, err := v.Stat("out")
	require.NoError(t, err)
	require.Equal(t, graph.TimeStamp(7), ts)

	data, err := v.ReadFile("out")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
}

func TestVirtualReadFileMissingReturnsErrNotFound(t *testing.T) {
	v := NewVirtual()
	_, err := v.ReadFile("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVirtualSuccessiveWriteFileCallsStrictlyAdvanceMTime(t *testing.T) {
	v := NewVirtual()
	require.NoError(t, v.WriteFile("out", []byte("first")))
	ts1, err := v.Stat("out")
	require.NoError(t, err)

	require.NoError(t, v.WriteFile("out", []byte("second")))
	ts2, err := v.Stat("out")
	require.NoError(t, err)

	require.Less(t, ts1, ts2)
}

func TestVirtualUnlinkRemovesPath(t *testing.T) {
	v := NewVirtual()
	v.Declare("out", 1, nil)
	v.Unlink("out")

	ts, err := v.Stat("out")
	require.NoError(t, err)
	require.Equal(t, graph.Missing, ts)
}

func TestVirtualRemoveFileClassifiesOutcome(t *testing.T) {
	v := NewVirtual()
	require.Equal(t, RemoveNotFound, v.RemoveFile("out"))

	v.Declare("out", 1, nil)
	require.Equal(t, RemoveRemoved, v.RemoveFile("out"))
	require.Equal(t, RemoveNotFound, v.RemoveFile("out"))
}

func TestVirtualTickIsStrictlyIncreasing(t *testing.T) {
	v := NewVirtual()
	a := v.Tick()
	b := v.Tick()
	require.Less(t, a, b)
}

func TestVirtualPathsReturnsSortedDeclaredPaths(t *testing.T) {
	v := NewVirtual()
	v.Declare("b", 1, nil)
	v.Declare("a", 1, nil)
	v.Declare("c", 1, nil)

	require.Equal(t, []string{"a", "b", "c"}, v.Paths())
}

func TestVirtualMakeDirsRegistersEveryParentLevelButNotTheLeaf(t *testing.T) {
	v := NewVirtual()
	require.NoError(t, v.MakeDirs("a/b/c/out"))
	require.True(t, v.dirs["a"])
	require.True(t, v.dirs["a/b"])
	require.True(t, v.dirs["a/b/c"])
	require.False(t, v.dirs["a/b/c/out"], "out is a file name, not a directory level")
}
