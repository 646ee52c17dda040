package query

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"forge/internal/buildlog"
	"forge/internal/depslog"
)

func TestIngestAndSlowestEdges(t *testing.T) {
	bl := buildlog.New(".ninja_log")
	require.NoError(t, bl.Record("slow.o", 1, 0, 500, 500))
	require.NoError(t, bl.Record("fast.o", 2, 0, 10, 10))

	s, err := Open(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ingest(bl, nil))

	rows, err := s.SlowestEdges(1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "slow.o", rows[0].Output)
	require.Equal(t, int32(500), rows[0].DurationMS)
}

func TestWhyDirtyReturnsRecordedInputs(t *testing.T) {
	dl := depslog.New(filepath.Join(t.TempDir(), ".forge_deps"))
	outID, err := dl.RecordPath("app.o")
	require.NoError(t, err)
	inID, err := dl.RecordPath("app.h")
	require.NoError(t, err)
	require.NoError(t, dl.RecordDeps(outID, 1, []int{inID}))

	s, err := Open(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ingest(buildlog.New(".ninja_log"), dl))

	inputs, err := s.WhyDirty("app.o")
	require.NoError(t, err)
	require.Equal(t, []string{"app.h"}, inputs)
}
