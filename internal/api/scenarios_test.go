package api_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/api"
	"exo/internal/config"
	"exo/internal/cursor"
	"exo/internal/loopir"
)

// Six rewrite sessions driven entirely through the Procedure façade, each
// exercising a different combination of primitives end to end.

func TestScenarioSplitAndReorder(t *testing.T) {
	const n, m = 8, 10
	p := loopir.NewProc("axpy2d", []loopir.Arg{
		loopir.A("A", loopir.Array(loopir.TypeF32, loopir.CI(n))),
		loopir.A("B", loopir.Array(loopir.TypeF32, loopir.CI(m))),
		loopir.A("C", loopir.Array(loopir.TypeF32, loopir.CI(n), loopir.CI(m))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(n),
			loopir.ForAllS("j", loopir.CI(m),
				loopir.ReduceS("C", []loopir.Expr{loopir.RD("i"), loopir.RD("j")},
					loopir.Mul(loopir.RD("A", loopir.RD("i")), loopir.RD("B", loopir.RD("j")))))),
	})

	pr := api.New(p)

	jLoop, err := pr.Find("for j in _: _")
	require.NoError(t, err)
	pr2, err := pr.DivideLoop(jLoop, 4, "jo", "ji", "guard", false)
	require.NoError(t, err)

	iLoop, err := pr2.Find("for i in _: _")
	require.NoError(t, err)
	pr3, err := pr2.ReorderLoops(iLoop)
	require.NoError(t, err)

	outer := pr3.IR().Body[0].(*loopir.ForAll)
	require.Equal(t, "jo", outer.Iter)
	mid := outer.Body[0].(*loopir.ForAll)
	require.Equal(t, "i", mid.Iter)
	inner := mid.Body[0].(*loopir.ForAll)
	require.Equal(t, "ji", inner.Iter)
	_, guarded := inner.Body[0].(*loopir.If)
	require.True(t, guarded)

	require.Equal(t, []string{"divide_loop", "reorder_loops"}, pr3.Provenance())
}

func TestScenarioRankKReduceStaging(t *testing.T) {
	const ni, nj, nk = 6, 16, 8
	p := loopir.NewProc("rankk", []loopir.Arg{
		loopir.A("A", loopir.Array(loopir.TypeF32, loopir.CI(ni), loopir.CI(nk))),
		loopir.A("B", loopir.Array(loopir.TypeF32, loopir.CI(nk), loopir.CI(nj))),
		loopir.A("C", loopir.Array(loopir.TypeF32, loopir.CI(ni), loopir.CI(nj))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("k", loopir.CI(nk),
			loopir.ForAllS("i", loopir.CI(ni),
				loopir.ForAllS("j", loopir.CI(nj),
					loopir.ReduceS("C", []loopir.Expr{loopir.RD("i"), loopir.RD("j")},
						loopir.Mul(loopir.RD("A", loopir.RD("i"), loopir.RD("k")), loopir.RD("B", loopir.RD("k"), loopir.RD("j"))))))),
	})

	pr := api.New(p)

	jLoop, err := pr.Find("for j in _: _")
	require.NoError(t, err)
	pr2, err := pr.DivideLoop(jLoop, 4, "jo", "ji", "cut", true)
	require.NoError(t, err)

	kLoop, err := pr2.Find("for k in _: _")
	require.NoError(t, err)
	win := &loopir.WindowExpr{Name: "C", WAccess: []loopir.WAccess{
		loopir.Interval{Lo: loopir.CI(0), Hi: loopir.CI(ni)},
		loopir.Interval{Lo: loopir.CI(0), Hi: loopir.CI(nj)},
	}}
	pr3, err := pr2.StageMem(kLoop, win, "C_reg", false)
	require.NoError(t, err)

	pr4, err := pr3.Simplify()
	require.NoError(t, err)

	body := pr4.IR().Body
	require.Len(t, body, 5)

	alloc, ok := body[0].(*loopir.Alloc)
	require.True(t, ok)
	require.Equal(t, "C_reg", alloc.Name)

	_, isCopyIn := body[1].(*loopir.ForAll)
	require.True(t, isCopyIn)

	kloop, ok := body[2].(*loopir.ForAll)
	require.True(t, ok)
	require.Equal(t, "k", kloop.Iter)

	iloop := kloop.Body[0].(*loopir.ForAll)
	joloop := iloop.Body[0].(*loopir.ForAll)
	jiloop := joloop.Body[0].(*loopir.ForAll)
	reduce, ok := jiloop.Body[0].(*loopir.Reduce)
	require.True(t, ok)
	require.Equal(t, "C_reg", reduce.Name)

	_, isCopyOut := body[3].(*loopir.ForAll)
	require.True(t, isCopyOut)
	_, isFree := body[4].(*loopir.Free)
	require.True(t, isFree)
}

func TestScenarioIdempotentRemove(t *testing.T) {
	p := loopir.NewProc("zero", nil, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(10),
			loopir.AssignS("x", nil, loopir.CI(0))),
	})
	p.Body = append([]loopir.Stmt{&loopir.Alloc{Name: "x", Typ: loopir.Scalar(loopir.TypeF32)}}, p.Body...)

	pr := api.New(p)
	loop, err := pr.Find("for i in _: _")
	require.NoError(t, err)
	pr2, err := pr.RemoveLoop(loop)
	require.NoError(t, err)

	assign, ok := pr2.IR().Body[1].(*loopir.Assign)
	require.True(t, ok)
	require.Equal(t, "x", assign.Name)
	require.Equal(t, 0, assign.Rhs.(*loopir.Const).Value)
}

func TestScenarioReplaceViaUnification(t *testing.T) {
	vadd4 := loopir.NewProc("vadd4", []loopir.Arg{
		loopir.A("A", loopir.Array(loopir.TypeF32, loopir.CI(4))),
		loopir.A("B", loopir.Array(loopir.TypeF32, loopir.CI(4))),
		loopir.A("C", loopir.Array(loopir.TypeF32, loopir.CI(4))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("k", loopir.CI(4),
			loopir.AssignS("C", []loopir.Expr{loopir.RD("k")}, loopir.Add(loopir.RD("A", loopir.RD("k")), loopir.RD("B", loopir.RD("k"))))),
	})
	subproc := api.New(vadd4)

	p := loopir.NewProc("caller", []loopir.Arg{
		loopir.A("X", loopir.Array(loopir.TypeF32, loopir.CI(4))),
		loopir.A("Y", loopir.Array(loopir.TypeF32, loopir.CI(4))),
		loopir.A("Z", loopir.Array(loopir.TypeF32, loopir.CI(4))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("t", loopir.CI(4),
			loopir.AssignS("Z", []loopir.Expr{loopir.RD("t")}, loopir.Add(loopir.RD("X", loopir.RD("t")), loopir.RD("Y", loopir.RD("t"))))),
	})
	pr := api.New(p)

	block, err := cursor.NewBlock(p, cursor.Anchor{Field: cursor.FieldBody}, 0, 1)
	require.NoError(t, err)
	pr2, err := pr.Replace(block, subproc, false)
	require.NoError(t, err)

	require.Len(t, pr2.IR().Body, 1)
	call, ok := pr2.IR().Body[0].(*loopir.Call)
	require.True(t, ok)
	require.Same(t, vadd4, call.Callee)
	require.Equal(t, "X", call.Args[0].(*loopir.Read).Name)
	require.Equal(t, "Y", call.Args[1].(*loopir.Read).Name)
	require.Equal(t, "Z", call.Args[2].(*loopir.Read).Name)
}

func TestScenarioConfigBinding(t *testing.T) {
	cfg := config.New("prec_cfg").WithField("p", config.FieldIndex)
	p := loopir.NewProc("scaled_copy", []loopir.Arg{
		loopir.A("p", loopir.Scalar(loopir.TypeIndex)),
		loopir.A("out", loopir.Array(loopir.TypeF32, loopir.RD("p"))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.RD("p"),
			loopir.AssignS("out", []loopir.Expr{loopir.RD("i")}, loopir.RD("p"))),
	})
	pr := api.New(p)

	ePath := cursor.Path{
		{Field: cursor.FieldBody, Index: 0},
		{Field: cursor.FieldBody, Index: 0},
		{Field: cursor.FieldRhs, Index: -1},
	}
	e, err := cursor.NewNode(p, ePath)
	require.NoError(t, err)

	pr2, err := pr.BindConfig(e, cfg, "p")
	require.NoError(t, err)

	loopBody := pr2.IR().Body[0].(*loopir.ForAll).Body
	require.Len(t, loopBody, 2)
	write, ok := loopBody[0].(*loopir.WriteConfig)
	require.True(t, ok)
	require.Equal(t, "prec_cfg", write.Cfg.Name)
	require.Equal(t, "p", write.Field)

	assign := loopBody[1].(*loopir.Assign)
	rc, ok := assign.Rhs.(*loopir.ReadConfig)
	require.True(t, ok)
	require.Equal(t, "prec_cfg", rc.Cfg.Name)
	require.Equal(t, "p", rc.Field)
}

func TestScenarioDivideThenMultDim(t *testing.T) {
	p := loopir.NewProc("p", []loopir.Arg{
		loopir.A("x", loopir.Array(loopir.TypeF32, loopir.CI(12))),
	}, nil, []loopir.Stmt{
		loopir.AssignS("x", []loopir.Expr{loopir.CI(7)}, loopir.CI(1)),
	})
	pr := api.New(p)

	pr2, err := pr.DivideDim("x", 0, 4)
	require.NoError(t, err)
	require.Len(t, pr2.IR().Args[0].Typ.Dims, 2)

	pr3, err := pr2.MultDim("x", 0, 1)
	require.NoError(t, err)
	require.Len(t, pr3.IR().Args[0].Typ.Dims, 1)
	require.Equal(t, 12, pr3.IR().Args[0].Typ.Dims[0].(*loopir.Const).Value)

	assign := pr3.IR().Body[0].(*loopir.Assign)
	require.Len(t, assign.Idx, 1)
	combined := assign.Idx[0].(*loopir.BinOp)
	require.Equal(t, loopir.OpAdd, combined.Op)
}
