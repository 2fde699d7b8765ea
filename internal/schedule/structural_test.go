package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/cursor"
	"exo/internal/loopir"
)

func copyProc() *loopir.Proc {
	body := loopir.SeqS("i", loopir.CI(4),
		loopir.AssignS("out", []loopir.Expr{loopir.RD("i")}, loopir.RD("in", loopir.RD("i"))),
	)
	return loopir.NewProc("copy", []loopir.Arg{
		loopir.A("in", loopir.Array(loopir.TypeF32, loopir.CI(4))),
		loopir.A("out", loopir.Array(loopir.TypeF32, loopir.CI(4))),
	}, nil, []loopir.Stmt{body})
}

func TestRename(t *testing.T) {
	p := copyProc()
	np, fwd, err := Rename(p, "copy2")
	require.NoError(t, err)
	require.Equal(t, "copy2", np.Name)
	require.Equal(t, "copy", p.Name)
	_, ok := fwd.Forward(cursor.Path{{Field: cursor.FieldBody, Index: 0}}, true)
	require.True(t, ok)
}

func TestSimplifyFoldsConstants(t *testing.T) {
	p := loopir.NewProc("fold", nil, nil, []loopir.Stmt{
		loopir.AssignS("out", nil, loopir.Add(loopir.CI(2), loopir.CI(3))),
	})
	np, _, err := Simplify(p)
	require.NoError(t, err)
	a := np.Body[0].(*loopir.Assign)
	c := a.Rhs.(*loopir.Const)
	require.Equal(t, 5, c.Value)
}

func TestSimplifyDropsZeroTripLoop(t *testing.T) {
	p := loopir.NewProc("zero", nil, nil, []loopir.Stmt{
		loopir.SeqS("i", loopir.CI(0), loopir.AssignS("out", nil, loopir.CI(1))),
		loopir.AssignS("done", nil, loopir.CI(1)),
	})
	np, _, err := Simplify(p)
	require.NoError(t, err)
	require.Len(t, np.Body, 1)
	require.Equal(t, "done", np.Body[0].(*loopir.Assign).Name)
}

func TestSimplifyCollapsesIf(t *testing.T) {
	p := loopir.NewProc("branch", nil, nil, []loopir.Stmt{
		loopir.IfS(loopir.CB(true), loopir.AssignS("out", nil, loopir.CI(1))),
	})
	np, _, err := Simplify(p)
	require.NoError(t, err)
	require.Len(t, np.Body, 1)
	require.Equal(t, "out", np.Body[0].(*loopir.Assign).Name)
}

func TestInsertAndDeletePass(t *testing.T) {
	p := loopir.NewProc("p", nil, nil, []loopir.Stmt{
		loopir.AssignS("out", nil, loopir.CI(1)),
	})
	gap, err := cursor.NewGap(p, cursor.Anchor{Field: cursor.FieldBody}, 1)
	require.NoError(t, err)
	np, fwd, err := InsertPass(p, gap)
	require.NoError(t, err)
	require.Len(t, np.Body, 2)
	_, ok := np.Body[1].(*loopir.Pass)
	require.True(t, ok)
	require.NotNil(t, fwd)

	passCursor, err := cursor.NewNode(np, cursor.Path{{Field: cursor.FieldBody, Index: 1}})
	require.NoError(t, err)
	np2, _, err := DeletePass(np, passCursor)
	require.NoError(t, err)
	require.Len(t, np2.Body, 1)
}

func TestReorderStmtsCommuting(t *testing.T) {
	p := loopir.NewProc("p", nil, nil, []loopir.Stmt{
		loopir.AssignS("a", nil, loopir.CI(1)),
		loopir.AssignS("b", nil, loopir.CI(2)),
	})
	b, err := cursor.NewBlock(p, cursor.Anchor{Field: cursor.FieldBody}, 0, 2)
	require.NoError(t, err)
	np, _, err := ReorderStmts(p, b)
	require.NoError(t, err)
	require.Equal(t, "b", np.Body[0].(*loopir.Assign).Name)
	require.Equal(t, "a", np.Body[1].(*loopir.Assign).Name)
}

func TestReorderStmtsRejectsHazard(t *testing.T) {
	p := loopir.NewProc("p", nil, nil, []loopir.Stmt{
		loopir.AssignS("a", nil, loopir.CI(1)),
		loopir.AssignS("a", nil, loopir.CI(2)),
	})
	b, err := cursor.NewBlock(p, cursor.Anchor{Field: cursor.FieldBody}, 0, 2)
	require.NoError(t, err)
	_, _, err = ReorderStmts(p, b)
	require.Error(t, err)
}

func TestCommuteExprTopLevel(t *testing.T) {
	p := loopir.NewProc("p", nil, nil, []loopir.Stmt{
		loopir.AssignS("out", nil, loopir.Add(loopir.RD("x"), loopir.RD("y"))),
	})
	c, err := cursor.NewNode(p, cursor.Path{
		{Field: cursor.FieldBody, Index: 0},
		{Field: cursor.FieldRhs, Index: -1},
	})
	require.NoError(t, err)
	np, _, err := CommuteExpr(p, c)
	require.NoError(t, err)
	bo := np.Body[0].(*loopir.Assign).Rhs.(*loopir.BinOp)
	require.Equal(t, "y", bo.Lhs.(*loopir.Read).Name)
	require.Equal(t, "x", bo.Rhs.(*loopir.Read).Name)
}

func TestCommuteExprNested(t *testing.T) {
	// out = z + (x + y): commute the inner (x + y), leaving z + (y + x).
	p := loopir.NewProc("p", nil, nil, []loopir.Stmt{
		loopir.AssignS("out", nil, loopir.Add(loopir.RD("z"), loopir.Add(loopir.RD("x"), loopir.RD("y")))),
	})
	c, err := cursor.NewNode(p, cursor.Path{
		{Field: cursor.FieldBody, Index: 0},
		{Field: cursor.FieldRhs, Index: -1},
		{Field: cursor.FieldRhs, Index: -1},
	})
	require.NoError(t, err)
	np, _, err := CommuteExpr(p, c)
	require.NoError(t, err)
	outer := np.Body[0].(*loopir.Assign).Rhs.(*loopir.BinOp)
	require.Equal(t, "z", outer.Lhs.(*loopir.Read).Name)
	inner := outer.Rhs.(*loopir.BinOp)
	require.Equal(t, "y", inner.Lhs.(*loopir.Read).Name)
	require.Equal(t, "x", inner.Rhs.(*loopir.Read).Name)
	// Original tree untouched.
	origInner := p.Body[0].(*loopir.Assign).Rhs.(*loopir.BinOp).Rhs.(*loopir.BinOp)
	require.Equal(t, "x", origInner.Lhs.(*loopir.Read).Name)
}

func TestCommuteExprRejectsNonCommutative(t *testing.T) {
	p := loopir.NewProc("p", nil, nil, []loopir.Stmt{
		loopir.AssignS("out", nil, loopir.Sub(loopir.RD("x"), loopir.RD("y"))),
	})
	c, err := cursor.NewNode(p, cursor.Path{
		{Field: cursor.FieldBody, Index: 0},
		{Field: cursor.FieldRhs, Index: -1},
	})
	require.NoError(t, err)
	_, _, err = CommuteExpr(p, c)
	require.Error(t, err)
}
