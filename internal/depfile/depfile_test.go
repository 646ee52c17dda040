package depfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSimpleSingleLine(t *testing.T) {
	output, inputs, err := Parse([]byte("out.o: a.h b.h\n"))
	require.NoError(t, err)
	require.Equal(t, "out.o", output)
	require.Equal(t, []string{"a.h", "b.h"}, inputs)
}

func TestParseSplicesBackslashContinuations(t *testing.T) {
	output, inputs, err := Parse([]byte("out.o: a.h \\\n  b.h \\\n  c.h\n"))
	require.NoError(t, err)
	require.Equal(t, "out.o", output)
	require.Equal(t, []string{"a.h", "b.h", "c.h"}, inputs)
}

func TestParsePreservesEscapedSpaceWithinAToken(t *testing.T) {
	_, inputs, err := Parse([]byte(`out.o: foo\ bar.h plain.h` + "\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"foo bar.h", "plain.h"}, inputs)
}

func TestParseUnescapesHash(t *testing.T) {
	_, inputs, err := Parse([]byte(`out.o: a\#1.h` + "\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"a#1.h"}, inputs)
}

func TestParseMissingColonIsError(t *testing.T) {
	_, _, err := Parse([]byte("not a depfile\n"))
	require.Error(t, err)
}
