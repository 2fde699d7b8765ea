package cursor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/cursor"
	"exo/internal/loopir"
)

func sampleProc() *loopir.Proc {
	n := loopir.A("n", loopir.Scalar(loopir.TypeSize))
	x := loopir.A("x", loopir.Array(loopir.TypeF32, loopir.RD("n")))
	body := []loopir.Stmt{
		loopir.ForAllS("i", loopir.RD("n"),
			loopir.AssignS("x", []loopir.Expr{loopir.RD("i")}, loopir.CF(0)),
		),
		loopir.IfS(loopir.Lt(loopir.RD("n"), loopir.CI(10)),
			loopir.AssignS("x", []loopir.Expr{loopir.CI(0)}, loopir.CF(1)),
		),
	}
	return loopir.NewProc("foo", []loopir.Arg{n, x}, nil, body)
}

func TestRootAndAt(t *testing.T) {
	p := sampleProc()
	root := cursor.Root(p)
	require.Equal(t, cursor.KindBlock, root.Kind())
	require.Equal(t, 2, root.Len())

	first, err := root.At(0)
	require.NoError(t, err)
	require.Equal(t, cursor.KindNode, first.Kind())
	s, err := first.Stmt()
	require.NoError(t, err)
	_, ok := s.(*loopir.ForAll)
	require.True(t, ok)
}

func TestLoopViewAndBeforeAfter(t *testing.T) {
	p := sampleProc()
	root := cursor.Root(p)
	loopC, err := root.At(0)
	require.NoError(t, err)

	lv, err := loopC.AsLoop()
	require.NoError(t, err)
	require.Equal(t, "i", lv.Iter())
	require.Equal(t, loopir.LoopForAll, lv.Kind())

	body, err := lv.Body()
	require.NoError(t, err)
	require.Equal(t, 1, body.Len())

	gap, err := loopC.After(1)
	require.NoError(t, err)
	require.Equal(t, cursor.KindGap, gap.Kind())

	back, err := gap.Before(1)
	require.NoError(t, err)
	s, err := back.Stmt()
	require.NoError(t, err)
	_, ok := s.(*loopir.ForAll)
	require.True(t, ok)
}

func TestParentAtTopFails(t *testing.T) {
	p := sampleProc()
	root := cursor.Root(p)
	first, err := root.At(0)
	require.NoError(t, err)
	_, err = first.Parent()
	require.ErrorIs(t, err, cursor.ErrNoParent)
}

func TestIfViewOrelse(t *testing.T) {
	p := sampleProc()
	root := cursor.Root(p)
	ifC, err := root.At(1)
	require.NoError(t, err)
	iv, err := ifC.AsIf()
	require.NoError(t, err)
	_, has, err := iv.Orelse()
	require.NoError(t, err)
	require.False(t, has)

	body, err := iv.Body()
	require.NoError(t, err)
	require.Equal(t, 1, body.Len())
}

func TestForwardingIdentityPassThrough(t *testing.T) {
	p := sampleProc()
	root := cursor.Root(p)
	first, err := root.At(0)
	require.NoError(t, err)

	fwd := cursor.NewForwardingMap()
	forwarded, ok := first.Forward(fwd, p)
	require.True(t, ok)
	require.Equal(t, first.Path(), forwarded.Path())
}

func TestForwardingDrop(t *testing.T) {
	p := sampleProc()
	root := cursor.Root(p)
	first, err := root.At(0)
	require.NoError(t, err)

	fwd := cursor.NewForwardingMap()
	fwd.Drop(first.Path())
	_, ok := first.Forward(fwd, p)
	require.False(t, ok)
}
