package argcheck

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/cursor"
	"exo/internal/loopir"
)

func sampleProc() *loopir.Proc {
	n := loopir.CI(4)
	body := loopir.SeqS("i", n,
		loopir.AssignS("out", []loopir.Expr{loopir.RD("i")}, loopir.RD("in", loopir.RD("i"))),
	)
	return loopir.NewProc("copy", []loopir.Arg{
		loopir.A("in", loopir.Array(loopir.TypeF32, loopir.CI(4))),
		loopir.A("out", loopir.Array(loopir.TypeF32, loopir.CI(4))),
	}, nil, []loopir.Stmt{body})
}

func TestForSeqCursorByName(t *testing.T) {
	p := sampleProc()
	c, err := ForSeqCursor(p, 0, "loop", "reorder", "i")
	require.NoError(t, err)
	require.Equal(t, cursor.KindNode, c.Kind())
}

func TestForSeqCursorPassesThroughCursor(t *testing.T) {
	p := sampleProc()
	found, err := ForSeqCursor(p, 0, "loop", "reorder", "i")
	require.NoError(t, err)
	c, err := ForSeqCursor(p, 0, "loop", "reorder", found)
	require.NoError(t, err)
	require.Equal(t, found, c)
}

func TestForSeqCursorUnknownNameFails(t *testing.T) {
	p := sampleProc()
	_, err := ForSeqCursor(p, 0, "loop", "reorder", "nope")
	require.Error(t, err)
}

func TestAssignOrReduceCursorByName(t *testing.T) {
	p := sampleProc()
	c, err := AssignOrReduceCursor(p, 0, "target", "inline_assign", "out")
	require.NoError(t, err)
	require.Equal(t, cursor.KindNode, c.Kind())
}

func TestBlockCursorRejectsNodeKind(t *testing.T) {
	p := sampleProc()
	c, err := ForSeqCursor(p, 0, "loop", "reorder", "i")
	require.NoError(t, err)
	_, err = BlockCursor(0, "block", "fuse", c)
	require.Error(t, err)
}
