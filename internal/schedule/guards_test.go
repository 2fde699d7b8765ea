package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/cursor"
	"exo/internal/loopir"
)

func specializeProc() *loopir.Proc {
	return loopir.NewProc("p", []loopir.Arg{
		loopir.A("x", loopir.Array(loopir.TypeF32, loopir.CI(10))),
	}, nil, []loopir.Stmt{
		loopir.AssignS("x", []loopir.Expr{loopir.CI(0)}, loopir.CI(1)),
	})
}

func TestSpecializeBuildsIfCascade(t *testing.T) {
	p := specializeProc()
	block, err := cursor.NewBlock(p, cursor.Anchor{Field: cursor.FieldBody}, 0, 1)
	require.NoError(t, err)

	conds := []loopir.Expr{
		loopir.Bin(loopir.OpEq, loopir.RD("x"), loopir.CI(0)),
		loopir.Bin(loopir.OpEq, loopir.RD("x"), loopir.CI(1)),
	}
	np, fwd, err := Specialize(p, block, conds)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	require.Len(t, np.Body, 1)

	outer, ok := np.Body[0].(*loopir.If)
	require.True(t, ok)
	require.Len(t, outer.Body, 1)
	require.Len(t, outer.Orelse, 1)

	middle, ok := outer.Orelse[0].(*loopir.If)
	require.True(t, ok)
	require.Len(t, middle.Body, 1)
	require.Len(t, middle.Orelse, 1)
}

func TestSpecializeRejectsEmptyConds(t *testing.T) {
	p := specializeProc()
	block, err := cursor.NewBlock(p, cursor.Anchor{Field: cursor.FieldBody}, 0, 1)
	require.NoError(t, err)
	_, _, err = Specialize(p, block, nil)
	require.Error(t, err)
}

func assertIfProc(cond loopir.Expr) *loopir.Proc {
	ifStmt := loopir.IfS(cond,
		loopir.AssignS("x", []loopir.Expr{loopir.CI(0)}, loopir.CI(1)))
	ifStmt.Orelse = []loopir.Stmt{
		loopir.AssignS("x", []loopir.Expr{loopir.CI(0)}, loopir.CI(2)),
	}
	return loopir.NewProc("p", []loopir.Arg{
		loopir.A("x", loopir.Array(loopir.TypeF32, loopir.CI(10))),
	}, nil, []loopir.Stmt{ifStmt})
}

func TestAssertIfTrueTakesBody(t *testing.T) {
	p := assertIfProc(loopir.CB(true))
	c, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)

	np, fwd, err := AssertIf(p, c, true)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	require.Len(t, np.Body, 1)

	assign, ok := np.Body[0].(*loopir.Assign)
	require.True(t, ok)
	require.Equal(t, 1, assign.Rhs.(*loopir.Const).Value)
}

func TestAssertIfFalseTakesOrelse(t *testing.T) {
	p := assertIfProc(loopir.CB(false))
	c, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)

	np, _, err := AssertIf(p, c, false)
	require.NoError(t, err)
	require.Len(t, np.Body, 1)

	assign, ok := np.Body[0].(*loopir.Assign)
	require.True(t, ok)
	require.Equal(t, 2, assign.Rhs.(*loopir.Const).Value)
}

func TestAssertIfRejectsUndecidableCondition(t *testing.T) {
	p := assertIfProc(loopir.Bin(loopir.OpEq, loopir.RD("x"), loopir.CI(0)))
	c, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)
	_, _, err = AssertIf(p, c, true)
	require.Error(t, err)
}

func TestAssertIfRejectsWrongLiteral(t *testing.T) {
	p := assertIfProc(loopir.Bin(loopir.OpLt, loopir.CI(1), loopir.CI(2)))
	c, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)
	_, _, err = AssertIf(p, c, false)
	require.Error(t, err)
}

func mergeWritesProc(first, second loopir.Stmt) *loopir.Proc {
	return loopir.NewProc("p", []loopir.Arg{
		loopir.A("a", loopir.Array(loopir.TypeF32, loopir.CI(10))),
	}, nil, []loopir.Stmt{first, second})
}

func TestMergeWritesAssignThenAssignKeepsSecond(t *testing.T) {
	p := mergeWritesProc(
		loopir.AssignS("a", []loopir.Expr{loopir.CI(0)}, loopir.CI(1)),
		loopir.AssignS("a", []loopir.Expr{loopir.CI(0)}, loopir.CI(2)),
	)
	c, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)

	np, fwd, err := MergeWrites(p, c)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	require.Len(t, np.Body, 1)
	assign, ok := np.Body[0].(*loopir.Assign)
	require.True(t, ok)
	require.Equal(t, 2, assign.Rhs.(*loopir.Const).Value)
}

func TestMergeWritesAssignThenReduceSumsRhs(t *testing.T) {
	p := mergeWritesProc(
		loopir.AssignS("a", []loopir.Expr{loopir.CI(0)}, loopir.CI(1)),
		loopir.ReduceS("a", []loopir.Expr{loopir.CI(0)}, loopir.CI(2)),
	)
	c, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)

	np, _, err := MergeWrites(p, c)
	require.NoError(t, err)
	assign, ok := np.Body[0].(*loopir.Assign)
	require.True(t, ok)
	bin, ok := assign.Rhs.(*loopir.BinOp)
	require.True(t, ok)
	require.Equal(t, loopir.OpAdd, bin.Op)
}

func TestMergeWritesRejectsDifferentLocations(t *testing.T) {
	p := mergeWritesProc(
		loopir.AssignS("a", []loopir.Expr{loopir.CI(0)}, loopir.CI(1)),
		loopir.AssignS("a", []loopir.Expr{loopir.CI(1)}, loopir.CI(2)),
	)
	c, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)
	_, _, err = MergeWrites(p, c)
	require.Error(t, err)
}

func liftReduceConstantProc() *loopir.Proc {
	loop := loopir.ForAllS("i", loopir.CI(10),
		loopir.ReduceS("x", nil, loopir.Mul(loopir.RD("c"), loopir.RD("a", loopir.RD("i")))))
	return loopir.NewProc("p", []loopir.Arg{
		loopir.A("a", loopir.Array(loopir.TypeF32, loopir.CI(10))),
		loopir.A("c", loopir.Scalar(loopir.TypeF32)),
		loopir.A("x", loopir.Scalar(loopir.TypeF32)),
	}, nil, []loopir.Stmt{
		loopir.AssignS("x", nil, loopir.CI(0)),
		loop,
	})
}

func TestLiftReduceConstantFactorsOutInvariant(t *testing.T) {
	p := liftReduceConstantProc()
	c, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)

	np, fwd, err := LiftReduceConstant(p, c)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	require.Len(t, np.Body, 3)

	loop, ok := np.Body[1].(*loopir.ForAll)
	require.True(t, ok)
	require.Len(t, loop.Body, 1)
	red, ok := loop.Body[0].(*loopir.Reduce)
	require.True(t, ok)
	_, isBin := red.Rhs.(*loopir.BinOp)
	require.False(t, isBin)

	post, ok := np.Body[2].(*loopir.Assign)
	require.True(t, ok)
	bin, ok := post.Rhs.(*loopir.BinOp)
	require.True(t, ok)
	require.Equal(t, loopir.OpMul, bin.Op)
}

func TestLiftReduceConstantRejectsNonZeroInit(t *testing.T) {
	loop := loopir.ForAllS("i", loopir.CI(10),
		loopir.ReduceS("x", nil, loopir.Mul(loopir.RD("c"), loopir.RD("a", loopir.RD("i")))))
	p := loopir.NewProc("p", []loopir.Arg{
		loopir.A("a", loopir.Array(loopir.TypeF32, loopir.CI(10))),
		loopir.A("c", loopir.Scalar(loopir.TypeF32)),
		loopir.A("x", loopir.Scalar(loopir.TypeF32)),
	}, nil, []loopir.Stmt{
		loopir.AssignS("x", nil, loopir.CI(1)),
		loop,
	})
	c, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)
	_, _, err = LiftReduceConstant(p, c)
	require.Error(t, err)
}
