package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/cursor"
	"exo/internal/loopir"
)

func liftAllocProc() *loopir.Proc {
	return loopir.NewProc("p", []loopir.Arg{
		loopir.A("out", loopir.Array(loopir.TypeF32, loopir.CI(4))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(4),
			&loopir.Alloc{Name: "tmp", Typ: loopir.Scalar(loopir.TypeF32)},
			loopir.AssignS("tmp", nil, loopir.CI(1)),
			loopir.AssignS("out", []loopir.Expr{loopir.RD("i")}, loopir.RD("tmp")),
			&loopir.Free{Name: "tmp"},
		),
	})
}

func TestLiftAllocMovesPairOutward(t *testing.T) {
	p := liftAllocProc()
	allocPath := cursor.Path{{Field: cursor.FieldBody, Index: 0}, {Field: cursor.FieldBody, Index: 0}}
	c, err := cursor.NewNode(p, allocPath)
	require.NoError(t, err)

	np, fwd, err := LiftAlloc(p, c, 1)
	require.NoError(t, err)
	require.NotNil(t, fwd)

	require.Len(t, np.Body, 3)
	_, isAlloc := np.Body[0].(*loopir.Alloc)
	require.True(t, isAlloc)
	loop, ok := np.Body[1].(*loopir.ForAll)
	require.True(t, ok)
	require.Len(t, loop.Body, 2)
	_, isFree := np.Body[2].(*loopir.Free)
	require.True(t, isFree)
}

func TestLiftAllocRejectsDependentExtent(t *testing.T) {
	p := loopir.NewProc("p", []loopir.Arg{
		loopir.A("out", loopir.Array(loopir.TypeF32, loopir.CI(4))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(4),
			&loopir.Alloc{Name: "tmp", Typ: loopir.Array(loopir.TypeF32, loopir.RD("i"))},
			loopir.AssignS("out", []loopir.Expr{loopir.CI(0)}, loopir.CI(1)),
		),
	})
	allocPath := cursor.Path{{Field: cursor.FieldBody, Index: 0}, {Field: cursor.FieldBody, Index: 0}}
	c, err := cursor.NewNode(p, allocPath)
	require.NoError(t, err)
	_, _, err = LiftAlloc(p, c, 1)
	require.Error(t, err)
}

func TestReuseBufferSubstitutesDeadBuffer(t *testing.T) {
	p := loopir.NewProc("p", []loopir.Arg{
		loopir.A("out", loopir.Array(loopir.TypeF32, loopir.CI(4))),
	}, nil, []loopir.Stmt{
		&loopir.Alloc{Name: "x", Typ: loopir.Scalar(loopir.TypeF32)},
		loopir.AssignS("x", nil, loopir.CI(1)),
		loopir.AssignS("out", []loopir.Expr{loopir.CI(0)}, loopir.RD("x")),
		&loopir.Free{Name: "x"},
		&loopir.Alloc{Name: "y", Typ: loopir.Scalar(loopir.TypeF32)},
		loopir.AssignS("y", nil, loopir.CI(2)),
		loopir.AssignS("out", []loopir.Expr{loopir.CI(1)}, loopir.RD("y")),
		&loopir.Free{Name: "y"},
	})
	np, fwd, err := ReuseBuffer(p, "x", "y")
	require.NoError(t, err)
	require.NotNil(t, fwd)

	for _, s := range np.Body {
		if a, ok := s.(*loopir.Alloc); ok {
			require.NotEqual(t, "y", a.Name)
		}
	}
	found := false
	for _, s := range np.Body {
		if asn, ok := s.(*loopir.Assign); ok && asn.Name == "x" {
			if c, ok := asn.Rhs.(*loopir.Const); ok && c.Value == 2 {
				found = true
			}
		}
	}
	require.True(t, found, "expected y's write to now target x")
}

func TestReuseBufferRejectsLiveOverlap(t *testing.T) {
	p := loopir.NewProc("p", []loopir.Arg{
		loopir.A("out", loopir.Array(loopir.TypeF32, loopir.CI(4))),
	}, nil, []loopir.Stmt{
		&loopir.Alloc{Name: "x", Typ: loopir.Scalar(loopir.TypeF32)},
		loopir.AssignS("x", nil, loopir.CI(1)),
		&loopir.Alloc{Name: "y", Typ: loopir.Scalar(loopir.TypeF32)},
		loopir.AssignS("y", nil, loopir.CI(2)),
		loopir.AssignS("out", []loopir.Expr{loopir.CI(0)}, loopir.Add(loopir.RD("x"), loopir.RD("y"))),
		&loopir.Free{Name: "x"},
		&loopir.Free{Name: "y"},
	})
	_, _, err := ReuseBuffer(p, "x", "y")
	require.Error(t, err)
}

func stageMemProc() *loopir.Proc {
	return loopir.NewProc("p", []loopir.Arg{
		loopir.A("b", loopir.Array(loopir.TypeF32, loopir.CI(10))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(3),
			loopir.AssignS("b", []loopir.Expr{loopir.Add(loopir.CI(2), loopir.RD("i"))}, loopir.CI(1))),
	})
}

func TestStageMemInsertsCopyInAndCopyOut(t *testing.T) {
	p := stageMemProc()
	loopPath := cursor.Path{{Field: cursor.FieldBody, Index: 0}}
	c, err := cursor.NewNode(p, loopPath)
	require.NoError(t, err)

	win := &loopir.WindowExpr{Name: "b", WAccess: []loopir.WAccess{
		loopir.Interval{Lo: loopir.CI(2), Hi: loopir.CI(5)},
	}}
	np, fwd, err := StageMem(p, c, win, "stage", false)
	require.NoError(t, err)
	require.NotNil(t, fwd)

	require.Len(t, np.Body, 5)
	alloc, ok := np.Body[0].(*loopir.Alloc)
	require.True(t, ok)
	require.Equal(t, "stage", alloc.Name)
	require.Equal(t, 3, alloc.Typ.Dims[0].(*loopir.Const).Value)

	_, isCopyIn := np.Body[1].(*loopir.ForAll)
	require.True(t, isCopyIn)
	_, isCopyOut := np.Body[3].(*loopir.ForAll)
	require.True(t, isCopyOut)
	_, isFree := np.Body[4].(*loopir.Free)
	require.True(t, isFree)
}
