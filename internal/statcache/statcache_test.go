package statcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"forge/internal/disk"
	"forge/internal/graph"
)

// countingDisk wraps a Virtual and counts Stat calls, so tests can tell
// a cache hit from a fallthrough to the wrapped disk.
type countingDisk struct {
	*disk.Virtual
	statCalls int
}

func (c *countingDisk) Stat(path string) (graph.TimeStamp, error) {
	c.statCalls++
	return c.Virtual.Stat(path)
}

func TestStatMemoizesAcrossCalls(t *testing.T) {
	d := &countingDisk{Virtual: disk.NewVirtual()}
	d.Declare("out", 5, nil)

	c := New(d, 0)
	ts1, err := c.Stat("out")
	require.NoError(t, err)
	require.Equal(t, graph.TimeStamp(5), ts1)

	ts2, err := c.Stat("out")
	require.NoError(t, err)
	require.Equal(t, graph.TimeStamp(5), ts2)
	require.Equal(t, 1, d.statCalls, "second Stat should hit the cache, not the wrapped disk")
}

func TestWriteFileInvalidatesCachedEntry(t *testing.T) {
	d := &countingDisk{Virtual: disk.NewVirtual()}
	d.Declare("out", 100, nil)

	c := New(d, 0)
	_, err := c.Stat("out")
	require.NoError(t, err)
	require.Equal(t, 1, d.statCalls)

	require.NoError(t, c.WriteFile("out", []byte("new")))

	ts, err := c.Stat("out")
	require.NoError(t, err)
	require.Equal(t, 2, d.statCalls, "write should have invalidated the cached mtime")
	require.NotEqual(t, graph.TimeStamp(100), ts)
}

func TestInvalidateDropsEntryWithoutTouchingDisk(t *testing.T) {
	d := &countingDisk{Virtual: disk.NewVirtual()}
	d.Declare("out", 1, nil)

	c := New(d, 0)
	_, err := c.Stat("out")
	require.NoError(t, err)

	c.Invalidate("out")
	_, err = c.Stat("out")
	require.NoError(t, err)
	require.Equal(t, 2, d.statCalls)
}

func TestRemoveFileInvalidatesCachedEntry(t *testing.T) {
	d := &countingDisk{Virtual: disk.NewVirtual()}
	d.Declare("out", 1, nil)

	c := New(d, 0)
	_, err := c.Stat("out")
	require.NoError(t, err)

	require.Equal(t, disk.RemoveRemoved, c.RemoveFile("out"))

	ts, err := c.Stat("out")
	require.NoError(t, err)
	require.Equal(t, graph.Missing, ts)
	require.Equal(t, 2, d.statCalls)
}
