package fragment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/config"
	"exo/internal/loopir"
)

func TestParseArithmetic(t *testing.T) {
	scope := NewScope().WithVar("n", loopir.Scalar(loopir.TypeIndex))
	e, err := Parse("n + 1 * 2", scope, nil)
	require.NoError(t, err)
	bin, ok := e.(*loopir.BinOp)
	require.True(t, ok)
	require.Equal(t, loopir.OpAdd, bin.Op)
	rhs, ok := bin.Rhs.(*loopir.BinOp)
	require.True(t, ok)
	require.Equal(t, loopir.OpMul, rhs.Op)
}

func TestParseConfigField(t *testing.T) {
	cfg := config.New("tile").WithField("size", config.FieldIndex)
	scope := NewScope().WithConfig("tile", cfg)
	e, err := Parse("tile.size", scope, nil)
	require.NoError(t, err)
	rc, ok := e.(*loopir.ReadConfig)
	require.True(t, ok)
	require.Equal(t, "size", rc.Field)
	require.Equal(t, "tile", rc.Cfg.Name)
}

func TestParseHoleSplice(t *testing.T) {
	scope := NewScope().WithVar("x", loopir.Array(loopir.TypeF32, loopir.CI(4)))
	hole := loopir.RD("x", loopir.CI(0))
	e, err := Parse("$0 + 1", scope, []loopir.Expr{hole})
	require.NoError(t, err)
	bin, ok := e.(*loopir.BinOp)
	require.True(t, ok)
	require.Same(t, hole, bin.Lhs)
}

func TestParseUnknownIdentFails(t *testing.T) {
	scope := NewScope()
	_, err := Parse("missing + 1", scope, nil)
	require.Error(t, err)
}

func TestParseIndexedRead(t *testing.T) {
	scope := NewScope().WithVar("a", loopir.Array(loopir.TypeF32, loopir.CI(10)))
	e, err := Parse("a[3]", scope, nil)
	require.NoError(t, err)
	r, ok := e.(*loopir.Read)
	require.True(t, ok)
	require.Equal(t, "a", r.Name)
	require.Len(t, r.Idx, 1)
}

func TestParseBoolMixTypeError(t *testing.T) {
	scope := NewScope().
		WithVar("flag", loopir.Scalar(loopir.TypeBool)).
		WithVar("n", loopir.Scalar(loopir.TypeIndex))
	_, err := Parse("flag + n", scope, nil)
	require.Error(t, err)
}

func TestParseComparison(t *testing.T) {
	scope := NewScope().WithVar("i", loopir.Scalar(loopir.TypeIndex))
	e, err := Parse("i <= 4", scope, nil)
	require.NoError(t, err)
	bin, ok := e.(*loopir.BinOp)
	require.True(t, ok)
	require.Equal(t, loopir.OpLe, bin.Op)
}

func TestParseBuiltinCall(t *testing.T) {
	scope := NewScope().
		WithVar("a", loopir.Scalar(loopir.TypeF32)).
		WithVar("b", loopir.Scalar(loopir.TypeF32))
	e, err := Parse("max(a, b)", scope, nil)
	require.NoError(t, err)
	call, ok := e.(*loopir.BuiltIn)
	require.True(t, ok)
	require.Equal(t, "max", call.Fn)
	require.Len(t, call.Args, 2)
}

func TestParseUnknownBuiltinFails(t *testing.T) {
	scope := NewScope().WithVar("a", loopir.Scalar(loopir.TypeF32))
	_, err := Parse("bogus(a)", scope, nil)
	require.Error(t, err)
}

func TestParseHoleOutOfRange(t *testing.T) {
	scope := NewScope()
	_, err := Parse("$0", scope, nil)
	require.Error(t, err)
}
