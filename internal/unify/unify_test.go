package unify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/loopir"
)

func vadd4() *loopir.Proc {
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

func matchingBlock() []loopir.Stmt {
	return []loopir.Stmt{
		loopir.ForAllS("t", loopir.CI(4),
			loopir.AssignS("Z", []loopir.Expr{loopir.RD("t")}, loopir.Add(loopir.RD("X", loopir.RD("t")), loopir.RD("Y", loopir.RD("t"))))),
	}
}

func TestUnifyVaddScenario(t *testing.T) {
	subst, err := Unify(vadd4(), matchingBlock())
	require.NoError(t, err)
	require.Equal(t, "X", subst.Buffers["A"])
	require.Equal(t, "Y", subst.Buffers["B"])
	require.Equal(t, "Z", subst.Buffers["C"])
	require.Equal(t, "t", subst.Iters["k"])

	actuals, err := subst.Actuals(vadd4())
	require.NoError(t, err)
	require.Len(t, actuals, 3)
	require.Equal(t, "X", actuals[0].(*loopir.Read).Name)
	require.Equal(t, "Y", actuals[1].(*loopir.Read).Name)
	require.Equal(t, "Z", actuals[2].(*loopir.Read).Name)
}

func TestUnifyMismatchedOpFails(t *testing.T) {
	block := []loopir.Stmt{
		loopir.ForAllS("t", loopir.CI(4),
			loopir.AssignS("Z", []loopir.Expr{loopir.RD("t")}, loopir.Sub(loopir.RD("X", loopir.RD("t")), loopir.RD("Y", loopir.RD("t"))))),
	}
	_, err := Unify(vadd4(), block)
	require.Error(t, err)
}

func TestUnifyInconsistentBufferBindingFails(t *testing.T) {
	// The first statement binds A->X; the second reads A's counterpart from
	// Z instead, so binding A a second time to a different buffer must be
	// caught.
	subproc := loopir.NewProc("cp2",
		[]loopir.Arg{
			loopir.A("A", loopir.Array(loopir.TypeF32, loopir.CI(2))),
			loopir.A("B", loopir.Array(loopir.TypeF32, loopir.CI(2))),
		},
		nil,
		[]loopir.Stmt{
			loopir.AssignS("B", []loopir.Expr{loopir.CI(0)}, loopir.RD("A", loopir.CI(0))),
			loopir.AssignS("B", []loopir.Expr{loopir.CI(1)}, loopir.RD("A", loopir.CI(1))),
		},
	)
	block := []loopir.Stmt{
		loopir.AssignS("Y", []loopir.Expr{loopir.CI(0)}, loopir.RD("X", loopir.CI(0))),
		loopir.AssignS("Y", []loopir.Expr{loopir.CI(1)}, loopir.RD("Z", loopir.CI(1))),
	}
	_, err := Unify(subproc, block)
	require.Error(t, err)
}

func TestUnifyAffineReorderingEquivalent(t *testing.T) {
	subproc := loopir.NewProc("shift1",
		[]loopir.Arg{loopir.A("A", loopir.Array(loopir.TypeF32, loopir.CI(4)))},
		nil,
		[]loopir.Stmt{
			loopir.ForAllS("i", loopir.CI(3),
				loopir.AssignS("A", []loopir.Expr{loopir.Add(loopir.RD("i"), loopir.CI(1))}, loopir.CF(0))),
		},
	)
	block := []loopir.Stmt{
		loopir.ForAllS("j", loopir.CI(3),
			loopir.AssignS("X", []loopir.Expr{loopir.Add(loopir.CI(1), loopir.RD("j"))}, loopir.CF(0))),
	}
	subst, err := Unify(subproc, block)
	require.NoError(t, err)
	require.Equal(t, "X", subst.Buffers["A"])
	require.Equal(t, "j", subst.Iters["i"])
}
