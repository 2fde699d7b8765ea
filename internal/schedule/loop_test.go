package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/cursor"
	"exo/internal/loopir"
)

func divideLoopProc(n int) *loopir.Proc {
	return loopir.NewProc("p", []loopir.Arg{
		loopir.A("x", loopir.Array(loopir.TypeF32, loopir.CI(n))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(n),
			loopir.AssignS("x", []loopir.Expr{loopir.RD("i")}, loopir.CI(1))),
	})
}

func loopCursor(t *testing.T, p *loopir.Proc) cursor.Cursor {
	t.Helper()
	c, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)
	return c
}

func TestDivideLoopCutSplitsPerfectly(t *testing.T) {
	p := divideLoopProc(12)
	c := loopCursor(t, p)
	np, fwd, err := DivideLoop(p, c, 4, "io", "ii", "cut", true)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	require.Len(t, np.Body, 2)

	outer, ok := np.Body[0].(*loopir.ForAll)
	require.True(t, ok)
	require.Equal(t, "io", outer.Iter)
	inner, ok := outer.Body[0].(*loopir.ForAll)
	require.True(t, ok)
	require.Equal(t, "ii", inner.Iter)

	rem, ok := np.Body[1].(*loopir.ForAll)
	require.True(t, ok)
	require.Equal(t, 0, rem.Hi.(*loopir.Const).Value)
}

func TestDivideLoopPerfectRejectsNonDivisor(t *testing.T) {
	p := divideLoopProc(10)
	c := loopCursor(t, p)
	_, _, err := DivideLoop(p, c, 4, "io", "ii", "cut", true)
	require.Error(t, err)
}

func TestDivideLoopGuardWrapsBody(t *testing.T) {
	p := divideLoopProc(10)
	c := loopCursor(t, p)
	np, _, err := DivideLoop(p, c, 4, "io", "ii", "guard", false)
	require.NoError(t, err)
	require.Len(t, np.Body, 1)
	outer := np.Body[0].(*loopir.ForAll)
	inner := outer.Body[0].(*loopir.ForAll)
	_, isIf := inner.Body[0].(*loopir.If)
	require.True(t, isIf)
}

func TestMultLoopsInvertsDivideLoop(t *testing.T) {
	p := divideLoopProc(12)
	c := loopCursor(t, p)
	np, _, err := DivideLoop(p, c, 4, "io", "ii", "cut", true)
	require.NoError(t, err)

	outerC, err := cursor.NewNode(np, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)
	np2, fwd, err := MultLoops(np, outerC, "i")
	require.NoError(t, err)
	require.NotNil(t, fwd)
	require.Len(t, np2.Body, 2)
	merged, ok := np2.Body[0].(*loopir.ForAll)
	require.True(t, ok)
	require.Equal(t, "i", merged.Iter)
	require.Equal(t, 12, merged.Hi.(*loopir.Const).Value)
}

func TestCutLoopSplitsRange(t *testing.T) {
	p := divideLoopProc(10)
	c := loopCursor(t, p)
	np, fwd, err := CutLoop(p, c, 3)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	require.Len(t, np.Body, 2)
	first := np.Body[0].(*loopir.ForAll)
	require.Equal(t, 3, first.Hi.(*loopir.Const).Value)
	second := np.Body[1].(*loopir.ForAll)
	require.Equal(t, 7, second.Hi.(*loopir.Const).Value)
}

func TestCutLoopRejectsOutOfRangeK(t *testing.T) {
	p := divideLoopProc(10)
	c := loopCursor(t, p)
	_, _, err := CutLoop(p, c, 20)
	require.Error(t, err)
}

func reorderableProc() *loopir.Proc {
	return loopir.NewProc("p", []loopir.Arg{
		loopir.A("x", loopir.Array(loopir.TypeF32, loopir.CI(3), loopir.CI(4))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(3),
			loopir.ForAllS("j", loopir.CI(4),
				loopir.AssignS("x", []loopir.Expr{loopir.RD("i"), loopir.RD("j")}, loopir.CI(1)))),
	})
}

func TestReorderLoopsSwapsNesting(t *testing.T) {
	p := reorderableProc()
	c := loopCursor(t, p)
	np, fwd, err := ReorderLoops(p, c)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	outer := np.Body[0].(*loopir.ForAll)
	require.Equal(t, "j", outer.Iter)
	inner := outer.Body[0].(*loopir.ForAll)
	require.Equal(t, "i", inner.Iter)
}

func TestReorderLoopsRejectsCarriedDependence(t *testing.T) {
	p := loopir.NewProc("p", []loopir.Arg{
		loopir.A("x", loopir.Array(loopir.TypeF32, loopir.CI(3))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(3),
			loopir.ForAllS("j", loopir.CI(3),
				loopir.AssignS("x", []loopir.Expr{loopir.RD("i")}, loopir.CI(1)))),
	})
	c := loopCursor(t, p)
	_, _, err := ReorderLoops(p, c)
	require.Error(t, err)
}

func adjacentLoopsProc() *loopir.Proc {
	loop1 := loopir.ForAllS("i", loopir.CI(5),
		loopir.AssignS("x", []loopir.Expr{loopir.RD("i")}, loopir.CI(1)))
	loop2 := loopir.ForAllS("k", loopir.CI(5),
		loopir.AssignS("y", []loopir.Expr{loopir.RD("k")}, loopir.RD("x", loopir.RD("k"))))
	return loopir.NewProc("p", []loopir.Arg{
		loopir.A("x", loopir.Array(loopir.TypeF32, loopir.CI(5))),
		loopir.A("y", loopir.Array(loopir.TypeF32, loopir.CI(5))),
	}, nil, []loopir.Stmt{loop1, loop2})
}

func TestFuseMergesAdjacentLoops(t *testing.T) {
	p := adjacentLoopsProc()
	c1, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)
	c2, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 1}})
	require.NoError(t, err)
	np, fwd, err := Fuse(p, c1, c2)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	require.Len(t, np.Body, 1)
	merged := np.Body[0].(*loopir.ForAll)
	require.Len(t, merged.Body, 2)
}

func TestFuseRejectsDifferentBounds(t *testing.T) {
	p := loopir.NewProc("p", []loopir.Arg{
		loopir.A("x", loopir.Array(loopir.TypeF32, loopir.CI(5))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(5),
			loopir.AssignS("x", []loopir.Expr{loopir.RD("i")}, loopir.CI(1))),
		loopir.ForAllS("j", loopir.CI(6),
			loopir.AssignS("x", []loopir.Expr{loopir.RD("j")}, loopir.CI(2))),
	})
	c1, _ := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	c2, _ := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 1}})
	_, _, err := Fuse(p, c1, c2)
	require.Error(t, err)
}

func fissionableProc() *loopir.Proc {
	return loopir.NewProc("p", []loopir.Arg{
		loopir.A("x", loopir.Array(loopir.TypeF32, loopir.CI(5))),
		loopir.A("y", loopir.Array(loopir.TypeF32, loopir.CI(5))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(5),
			loopir.AssignS("x", []loopir.Expr{loopir.RD("i")}, loopir.CI(1)),
			loopir.AssignS("y", []loopir.Expr{loopir.RD("i")}, loopir.CI(2)),
		),
	})
}

func TestFissionSplitsLoopAtGap(t *testing.T) {
	p := fissionableProc()
	anchor := cursor.Anchor{Path: cursor.Path{{Field: cursor.FieldBody, Index: 0}}, Field: cursor.FieldBody}
	gap, err := cursor.NewGap(p, anchor, 1)
	require.NoError(t, err)

	np, fwd, err := Fission(p, gap, 1)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	require.Len(t, np.Body, 2)
	first := np.Body[0].(*loopir.ForAll)
	require.Len(t, first.Body, 1)
	second := np.Body[1].(*loopir.ForAll)
	require.Len(t, second.Body, 1)
}

func TestRemoveLoopDropsIdempotentLoop(t *testing.T) {
	p := loopir.NewProc("p", []loopir.Arg{
		loopir.A("x", loopir.Array(loopir.TypeF32, loopir.CI(1))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(5),
			loopir.AssignS("x", []loopir.Expr{loopir.CI(0)}, loopir.CI(1))),
	})
	c := loopCursor(t, p)
	np, fwd, err := RemoveLoop(p, c)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	require.Len(t, np.Body, 1)
	_, isAssign := np.Body[0].(*loopir.Assign)
	require.True(t, isAssign)
}

func TestRemoveLoopRejectsIteratorDependence(t *testing.T) {
	p := loopir.NewProc("p", []loopir.Arg{
		loopir.A("x", loopir.Array(loopir.TypeF32, loopir.CI(5))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(5),
			loopir.AssignS("x", []loopir.Expr{loopir.RD("i")}, loopir.CI(1))),
	})
	c := loopCursor(t, p)
	_, _, err := RemoveLoop(p, c)
	require.Error(t, err)
}

func TestUnrollLoopSplicesLiteralCopies(t *testing.T) {
	p := loopir.NewProc("p", []loopir.Arg{
		loopir.A("x", loopir.Array(loopir.TypeF32, loopir.CI(3))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(3),
			loopir.AssignS("x", []loopir.Expr{loopir.RD("i")}, loopir.CI(1))),
	})
	c := loopCursor(t, p)
	np, fwd, err := UnrollLoop(p, c)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	require.Len(t, np.Body, 3)
	for i, s := range np.Body {
		a := s.(*loopir.Assign)
		require.Equal(t, i, a.Idx[0].(*loopir.Const).Value)
	}
}

func TestUnrollLoopZeroBoundBecomesPass(t *testing.T) {
	p := loopir.NewProc("p", []loopir.Arg{
		loopir.A("x", loopir.Array(loopir.TypeF32, loopir.CI(1))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(0),
			loopir.AssignS("x", []loopir.Expr{loopir.RD("i")}, loopir.CI(1))),
	})
	c := loopCursor(t, p)
	np, _, err := UnrollLoop(p, c)
	require.NoError(t, err)
	require.Len(t, np.Body, 1)
	_, isPass := np.Body[0].(*loopir.Pass)
	require.True(t, isPass)
}

func TestAddLoopGuardWrapsBlock(t *testing.T) {
	p := loopir.NewProc("p", []loopir.Arg{
		loopir.A("x", loopir.Array(loopir.TypeF32, loopir.CI(1))),
	}, nil, []loopir.Stmt{
		loopir.AssignS("x", []loopir.Expr{loopir.CI(0)}, loopir.CI(1)),
	})
	c, err := cursor.NewBlock(p, cursor.Anchor{Field: cursor.FieldBody}, 0, 1)
	require.NoError(t, err)
	np, fwd, err := AddLoop(p, c, "t", loopir.CI(4), true, true)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	require.Len(t, np.Body, 1)
	loop := np.Body[0].(*loopir.ForAll)
	require.Equal(t, "t", loop.Iter)
	_, isIf := loop.Body[0].(*loopir.If)
	require.True(t, isIf)
}
