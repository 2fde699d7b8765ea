package errcode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/srcinfo"
)

func TestArgumentMessageShape(t *testing.T) {
	err := Argument(2, "tile_size", "divide_dim", "must be positive")
	require.Equal(t, "argument 2, 'tile_size' to divide_dim: must be positive", err.Message)
	require.Equal(t, ArgumentType, err.Kind)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(PreconditionUnmet, cause, "legality check failed")
	require.ErrorIs(t, err, cause)
}

func TestIsMatchesKind(t *testing.T) {
	err := New(CursorKind, "expected a Node cursor")
	require.True(t, Is(err, CursorKind))
	require.False(t, Is(err, Bug))
}

func TestReporterFormatsWithAndWithoutPosition(t *testing.T) {
	r := NewReporter("kernel.exo", "for i in 0..4:\n  x[i] = 0\n")
	err := New(PreconditionUnmet, "out of bounds access")

	withPos := r.Format(err, srcinfo.Position{Line: 2, Col: 3})
	require.Contains(t, withPos, "error[PreconditionUnmet]")
	require.Contains(t, withPos, "kernel.exo:2:3")
	require.Contains(t, withPos, "x[i] = 0")

	noPos := r.Format(err, srcinfo.Position{})
	require.NotContains(t, noPos, "-->")
}
