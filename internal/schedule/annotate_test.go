package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/loopir"
	"exo/internal/memory"
)

func annotateProc() *loopir.Proc {
	return loopir.NewProc("p", []loopir.Arg{
		loopir.A("x", loopir.Array(loopir.TypeF32, loopir.CI(4))),
	}, nil, []loopir.Stmt{
		&loopir.Alloc{Name: "tmp", Typ: loopir.Array(loopir.TypeF32, loopir.CI(4)), Mem: memory.DRAM},
		loopir.AssignS("tmp", []loopir.Expr{loopir.CI(0)}, loopir.RD("x", loopir.CI(0))),
	})
}

func TestSetPrecisionUpdatesArg(t *testing.T) {
	p := annotateProc()
	np, fwd, err := SetPrecision(p, "x", loopir.TypeF64)
	require.NoError(t, err)
	require.NotNil(t, fwd)
	require.Equal(t, loopir.TypeF64, np.Args[0].Typ.Base)
	require.Equal(t, loopir.TypeF32, p.Args[0].Typ.Base)
}

func TestSetPrecisionUpdatesAlloc(t *testing.T) {
	p := annotateProc()
	np, _, err := SetPrecision(p, "tmp", loopir.TypeF64)
	require.NoError(t, err)
	alloc := np.Body[0].(*loopir.Alloc)
	require.Equal(t, loopir.TypeF64, alloc.Typ.Base)
}

func TestSetPrecisionUnknownBufferFails(t *testing.T) {
	p := annotateProc()
	_, _, err := SetPrecision(p, "nope", loopir.TypeF64)
	require.Error(t, err)
}

func TestSetWindowTogglesFlag(t *testing.T) {
	p := annotateProc()
	np, _, err := SetWindow(p, "tmp", true)
	require.NoError(t, err)
	alloc := np.Body[0].(*loopir.Alloc)
	require.True(t, alloc.Typ.Window)
}

func TestSetMemoryUpdatesAlloc(t *testing.T) {
	p := annotateProc()
	np, _, err := SetMemory(p, "tmp", memory.Neon)
	require.NoError(t, err)
	alloc := np.Body[0].(*loopir.Alloc)
	require.Same(t, memory.Neon, alloc.Mem)
}

func TestSetMemoryRejectsArg(t *testing.T) {
	p := annotateProc()
	_, _, err := SetMemory(p, "x", memory.Neon)
	require.Error(t, err)
}
