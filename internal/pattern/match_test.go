package pattern_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/loopir"
	"exo/internal/pattern"
)

func sampleProc() *loopir.Proc {
	n := loopir.A("n", loopir.Scalar(loopir.TypeSize))
	x := loopir.A("x", loopir.Array(loopir.TypeF32, loopir.RD("n")))
	body := []loopir.Stmt{
		loopir.ForAllS("i", loopir.RD("n"),
			loopir.AssignS("x", []loopir.Expr{loopir.RD("i")}, loopir.CF(0)),
		),
		loopir.SeqS("j", loopir.RD("n"),
			loopir.ReduceS("x", []loopir.Expr{loopir.RD("j")}, loopir.CF(1)),
		),
		loopir.IfS(loopir.Lt(loopir.RD("n"), loopir.CI(10)),
			loopir.AssignS("x", []loopir.Expr{loopir.CI(0)}, loopir.CF(2)),
		),
	}
	return loopir.NewProc("foo", []loopir.Arg{n, x}, nil, body)
}

func TestFindForLoop(t *testing.T) {
	p := sampleProc()
	c, err := pattern.Find(p, "for i in _: _")
	require.NoError(t, err)
	s, err := c.Stmt()
	require.NoError(t, err)
	fa, ok := s.(*loopir.ForAll)
	require.True(t, ok)
	require.Equal(t, "i", fa.Iter)
}

func TestFindAllAssignOccurrences(t *testing.T) {
	p := sampleProc()
	matches, err := pattern.FindAll(p, "x = _")
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func TestFindReduceDistinctFromAssign(t *testing.T) {
	p := sampleProc()
	matches, err := pattern.FindAll(p, "x += _")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	s, err := matches[0].Stmt()
	require.NoError(t, err)
	_, ok := s.(*loopir.Reduce)
	require.True(t, ok)
}

func TestFindOccurrenceSelector(t *testing.T) {
	p := sampleProc()
	c, err := pattern.Find(p, "x = _ #2")
	require.NoError(t, err)
	s, err := c.Stmt()
	require.NoError(t, err)
	a, ok := s.(*loopir.Assign)
	require.True(t, ok)
	rhs, ok := a.Rhs.(*loopir.Const)
	require.True(t, ok)
	require.InDelta(t, 2.0, rhs.Value, 0.0001) // the second `x = _` is the one inside the if
}

func TestFindIdentExpr(t *testing.T) {
	p := sampleProc()
	matches, err := pattern.FindAll(p, "n")
	require.NoError(t, err)
	require.True(t, len(matches) >= 1)
}
