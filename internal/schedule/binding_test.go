package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/cursor"
	"exo/internal/loopir"
)

func bindExprProc() *loopir.Proc {
	body := loopir.SeqS("i", loopir.CI(4),
		loopir.AssignS("out", []loopir.Expr{loopir.RD("i")}, loopir.Add(loopir.RD("x"), loopir.RD("y"))),
		loopir.AssignS("out2", []loopir.Expr{loopir.RD("i")}, loopir.Add(loopir.RD("x"), loopir.RD("y"))),
	)
	return loopir.NewProc("twosum", []loopir.Arg{
		loopir.A("x", loopir.Scalar(loopir.TypeF32)),
		loopir.A("y", loopir.Scalar(loopir.TypeF32)),
		loopir.A("out", loopir.Array(loopir.TypeF32, loopir.CI(4))),
		loopir.A("out2", loopir.Array(loopir.TypeF32, loopir.CI(4))),
	}, nil, []loopir.Stmt{body})
}

func exprCursorAt(t *testing.T, p *loopir.Proc, path cursor.Path) cursor.Cursor {
	t.Helper()
	c, err := cursor.NewNode(p, path)
	require.NoError(t, err)
	return c
}

func TestBindExprSingleOccurrence(t *testing.T) {
	p := bindExprProc()
	c := exprCursorAt(t, p, cursor.Path{
		{Field: cursor.FieldBody, Index: 0},
		{Field: cursor.FieldBody, Index: 0},
		{Field: cursor.FieldRhs, Index: -1},
	})
	np, _, err := BindExpr(p, c, "tmp", false)
	require.NoError(t, err)
	loop := np.Body[0].(*loopir.Seq)
	require.IsType(t, &loopir.Alloc{}, loop.Body[0])
	assign := loop.Body[1].(*loopir.Assign)
	require.Equal(t, "tmp", assign.Name)
	out := loop.Body[2].(*loopir.Assign)
	require.Equal(t, "tmp", out.Rhs.(*loopir.Read).Name)
	// the second, unrelated occurrence is untouched
	out2 := loop.Body[3].(*loopir.Assign)
	_, isBin := out2.Rhs.(*loopir.BinOp)
	require.True(t, isBin)
}

func TestBindExprCSEReplacesLaterOccurrence(t *testing.T) {
	p := bindExprProc()
	c := exprCursorAt(t, p, cursor.Path{
		{Field: cursor.FieldBody, Index: 0},
		{Field: cursor.FieldBody, Index: 0},
		{Field: cursor.FieldRhs, Index: -1},
	})
	np, _, err := BindExpr(p, c, "tmp", true)
	require.NoError(t, err)
	loop := np.Body[0].(*loopir.Seq)
	out := loop.Body[2].(*loopir.Assign)
	require.Equal(t, "tmp", out.Rhs.(*loopir.Read).Name)
	out2 := loop.Body[3].(*loopir.Assign)
	require.Equal(t, "tmp", out2.Rhs.(*loopir.Read).Name)
}

func TestBindExprCSEStopsAtKill(t *testing.T) {
	body := loopir.SeqS("i", loopir.CI(4),
		loopir.AssignS("out", []loopir.Expr{loopir.RD("i")}, loopir.Add(loopir.RD("x"), loopir.RD("y"))),
		loopir.AssignS("x", nil, loopir.CI(9)),
		loopir.AssignS("out2", []loopir.Expr{loopir.RD("i")}, loopir.Add(loopir.RD("x"), loopir.RD("y"))),
	)
	p := loopir.NewProc("twosum", []loopir.Arg{
		loopir.A("x", loopir.Scalar(loopir.TypeF32)),
		loopir.A("y", loopir.Scalar(loopir.TypeF32)),
		loopir.A("out", loopir.Array(loopir.TypeF32, loopir.CI(4))),
		loopir.A("out2", loopir.Array(loopir.TypeF32, loopir.CI(4))),
	}, nil, []loopir.Stmt{body})
	c := exprCursorAt(t, p, cursor.Path{
		{Field: cursor.FieldBody, Index: 0},
		{Field: cursor.FieldBody, Index: 0},
		{Field: cursor.FieldRhs, Index: -1},
	})
	np, _, err := BindExpr(p, c, "tmp", true)
	require.NoError(t, err)
	loop := np.Body[0].(*loopir.Seq)
	out2 := loop.Body[4].(*loopir.Assign)
	_, isBin := out2.Rhs.(*loopir.BinOp)
	require.True(t, isBin, "occurrence after the write to x must stay unbound")
}
