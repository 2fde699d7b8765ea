package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/cursor"
	"exo/internal/loopir"
)

func extractCandidateProc() *loopir.Proc {
	loop := loopir.SeqS("i", loopir.CI(4),
		loopir.AssignS("out", []loopir.Expr{loopir.RD("i")}, loopir.RD("in", loopir.RD("i"))),
	)
	return loopir.NewProc("copy", []loopir.Arg{
		loopir.A("in", loopir.Array(loopir.TypeF32, loopir.CI(4))),
		loopir.A("out", loopir.Array(loopir.TypeF32, loopir.CI(4))),
	}, nil, []loopir.Stmt{loop})
}

func TestExtractSubprocClosesOverFreeBuffers(t *testing.T) {
	p := extractCandidateProc()
	c, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)

	np, subproc, fwd, err := ExtractSubproc(p, c, "copy_inner")
	require.NoError(t, err)
	require.NotNil(t, fwd)

	require.Len(t, np.Body, 1)
	call := np.Body[0].(*loopir.Call)
	require.Same(t, subproc, call.Callee)
	require.Len(t, call.Args, 2)
	require.Equal(t, "in", call.Args[0].(*loopir.Read).Name)
	require.Equal(t, "out", call.Args[1].(*loopir.Read).Name)

	require.Equal(t, "copy_inner", subproc.Name)
	require.Len(t, subproc.Args, 2)
	require.Equal(t, "in", subproc.Args[0].Name)
	require.Equal(t, "out", subproc.Args[1].Name)
	require.Len(t, subproc.Body, 1)
	_, isSeq := subproc.Body[0].(*loopir.Seq)
	require.True(t, isSeq)

	// the original procedure is untouched
	require.Len(t, p.Body, 1)
	_, stillSeq := p.Body[0].(*loopir.Seq)
	require.True(t, stillSeq)
}

func TestInlineSubstitutesBufferAndScalarParams(t *testing.T) {
	callee := loopir.NewProc("addone", []loopir.Arg{
		loopir.A("buf", loopir.Array(loopir.TypeF32, loopir.CI(4))),
		loopir.A("c", loopir.Scalar(loopir.TypeF32)),
	}, nil, []loopir.Stmt{
		loopir.SeqS("k", loopir.CI(4),
			loopir.AssignS("buf", []loopir.Expr{loopir.RD("k")}, loopir.Add(loopir.RD("buf", loopir.RD("k")), loopir.RD("c")))),
	})
	call := &loopir.Call{Callee: callee, Args: []loopir.Expr{loopir.RD("data"), loopir.CI(5)}}
	p := loopir.NewProc("caller", []loopir.Arg{
		loopir.A("data", loopir.Array(loopir.TypeF32, loopir.CI(4))),
	}, nil, []loopir.Stmt{call})

	c, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)

	np, fwd, err := Inline(p, c)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	require.Len(t, np.Body, 1)

	loop := np.Body[0].(*loopir.Seq)
	require.Equal(t, "addone$k", loop.Iter)
	assign := loop.Body[0].(*loopir.Assign)
	require.Equal(t, "data", assign.Name)
	require.Equal(t, "addone$k", assign.Idx[0].(*loopir.Read).Name)
	rhs := assign.Rhs.(*loopir.BinOp)
	lhsRead := rhs.Lhs.(*loopir.Read)
	require.Equal(t, "data", lhsRead.Name)
	require.Equal(t, "addone$k", lhsRead.Idx[0].(*loopir.Read).Name)
	rhsConst := rhs.Rhs.(*loopir.Const)
	require.Equal(t, 5, rhsConst.Value)

	// callee is untouched
	require.Equal(t, "k", callee.Body[0].(*loopir.Seq).Iter)
}

func TestInlineRejectsNonPlainBufferActual(t *testing.T) {
	callee := loopir.NewProc("addone", []loopir.Arg{
		loopir.A("buf", loopir.Array(loopir.TypeF32, loopir.CI(4))),
	}, nil, []loopir.Stmt{
		loopir.AssignS("buf", []loopir.Expr{loopir.CI(0)}, loopir.CI(1)),
	})
	call := &loopir.Call{Callee: callee, Args: []loopir.Expr{loopir.CI(0)}}
	p := loopir.NewProc("caller", nil, nil, []loopir.Stmt{call})
	c, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)
	_, _, err = Inline(p, c)
	require.Error(t, err)
}

func vadd4Proc() *loopir.Proc {
	return loopir.NewProc("vadd4",
		[]loopir.Arg{
			loopir.A("A", loopir.Array(loopir.TypeF32, loopir.CI(4))),
			loopir.A("B", loopir.Array(loopir.TypeF32, loopir.CI(4))),
			loopir.A("C", loopir.Array(loopir.TypeF32, loopir.CI(4))),
		},
		nil,
		[]loopir.Stmt{
			loopir.ForAllS("k", loopir.CI(4),
				loopir.AssignS("C", []loopir.Expr{loopir.RD("k")}, loopir.Add(loopir.RD("A", loopir.RD("k")), loopir.RD("B", loopir.RD("k"))))),
		},
	)
}

func TestReplaceRewritesMatchingBlockIntoCall(t *testing.T) {
	block := loopir.ForAllS("t", loopir.CI(4),
		loopir.AssignS("Z", []loopir.Expr{loopir.RD("t")}, loopir.Add(loopir.RD("X", loopir.RD("t")), loopir.RD("Y", loopir.RD("t")))))
	p := loopir.NewProc("outer", []loopir.Arg{
		loopir.A("X", loopir.Array(loopir.TypeF32, loopir.CI(4))),
		loopir.A("Y", loopir.Array(loopir.TypeF32, loopir.CI(4))),
		loopir.A("Z", loopir.Array(loopir.TypeF32, loopir.CI(4))),
	}, nil, []loopir.Stmt{block})

	b, err := cursor.NewBlock(p, cursor.Anchor{Field: cursor.FieldBody}, 0, 1)
	require.NoError(t, err)
	subproc := vadd4Proc()
	np, fwd, err := Replace(p, b, subproc, false)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	require.Len(t, np.Body, 1)
	call := np.Body[0].(*loopir.Call)
	require.Same(t, subproc, call.Callee)
	require.Equal(t, "X", call.Args[0].(*loopir.Read).Name)
	require.Equal(t, "Y", call.Args[1].(*loopir.Read).Name)
	require.Equal(t, "Z", call.Args[2].(*loopir.Read).Name)
}

func TestReplaceQuietFailureIsNoOp(t *testing.T) {
	block := loopir.AssignS("Z", nil, loopir.CI(1))
	p := loopir.NewProc("outer", nil, nil, []loopir.Stmt{block})
	b, err := cursor.NewBlock(p, cursor.Anchor{Field: cursor.FieldBody}, 0, 1)
	require.NoError(t, err)
	np, _, err := Replace(p, b, vadd4Proc(), true)
	require.NoError(t, err)
	require.Len(t, np.Body, 1)
	_, stillAssign := np.Body[0].(*loopir.Assign)
	require.True(t, stillAssign)
}

func TestReplaceLoudFailureErrors(t *testing.T) {
	block := loopir.AssignS("Z", nil, loopir.CI(1))
	p := loopir.NewProc("outer", nil, nil, []loopir.Stmt{block})
	b, err := cursor.NewBlock(p, cursor.Anchor{Field: cursor.FieldBody}, 0, 1)
	require.NoError(t, err)
	_, _, err = Replace(p, b, vadd4Proc(), false)
	require.Error(t, err)
}

func TestCallEqvSwapsCallee(t *testing.T) {
	slow := loopir.NewProc("slow_add", []loopir.Arg{
		loopir.A("a", loopir.Scalar(loopir.TypeF32)),
		loopir.A("b", loopir.Scalar(loopir.TypeF32)),
	}, nil, []loopir.Stmt{loopir.AssignS("a", nil, loopir.Add(loopir.RD("a"), loopir.RD("b")))})
	fast := loopir.NewProc("fast_add", []loopir.Arg{
		loopir.A("a", loopir.Scalar(loopir.TypeF32)),
		loopir.A("b", loopir.Scalar(loopir.TypeF32)),
	}, nil, []loopir.Stmt{loopir.AssignS("a", nil, loopir.Add(loopir.RD("a"), loopir.RD("b")))})

	call := &loopir.Call{Callee: slow, Args: []loopir.Expr{loopir.RD("x"), loopir.RD("y")}}
	p := loopir.NewProc("caller", nil, nil, []loopir.Stmt{call})
	c, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)

	np, fwd, err := CallEqv(p, c, fast)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	newCall := np.Body[0].(*loopir.Call)
	require.Same(t, fast, newCall.Callee)
	require.Equal(t, "x", newCall.Args[0].(*loopir.Read).Name)
}

func TestCallEqvRejectsArityMismatch(t *testing.T) {
	slow := loopir.NewProc("slow_add", []loopir.Arg{
		loopir.A("a", loopir.Scalar(loopir.TypeF32)),
	}, nil, []loopir.Stmt{loopir.AssignS("a", nil, loopir.CI(1))})
	mismatched := loopir.NewProc("bad", []loopir.Arg{
		loopir.A("a", loopir.Scalar(loopir.TypeF32)),
		loopir.A("b", loopir.Scalar(loopir.TypeF32)),
	}, nil, []loopir.Stmt{loopir.AssignS("a", nil, loopir.CI(1))})

	call := &loopir.Call{Callee: slow, Args: []loopir.Expr{loopir.RD("x")}}
	p := loopir.NewProc("caller", nil, nil, []loopir.Stmt{call})
	c, err := cursor.NewNode(p, cursor.Path{{Field: cursor.FieldBody, Index: 0}})
	require.NoError(t, err)
	_, _, err = CallEqv(p, c, mismatched)
	require.Error(t, err)
}
