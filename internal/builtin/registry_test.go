package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/loopir"
)

func TestCheckMaxAgrees(t *testing.T) {
	typ, err := Check("max", []loopir.Type{loopir.Scalar(loopir.TypeF32), loopir.Scalar(loopir.TypeF32)})
	require.NoError(t, err)
	require.Equal(t, loopir.TypeF32, typ.Base)
}

func TestCheckSelectRequiresBoolCond(t *testing.T) {
	_, err := Check("select", []loopir.Type{loopir.Scalar(loopir.TypeF32), loopir.Scalar(loopir.TypeF32), loopir.Scalar(loopir.TypeF32)})
	require.Error(t, err)
}

func TestCheckSelectOK(t *testing.T) {
	typ, err := Check("select", []loopir.Type{loopir.Scalar(loopir.TypeBool), loopir.Scalar(loopir.TypeF32), loopir.Scalar(loopir.TypeF32)})
	require.NoError(t, err)
	require.Equal(t, loopir.TypeF32, typ.Base)
}

func TestCheckUnknownFunction(t *testing.T) {
	_, err := Check("bogus", nil)
	require.Error(t, err)
}

func TestCheckArityMismatch(t *testing.T) {
	_, err := Check("sin", []loopir.Type{loopir.Scalar(loopir.TypeF32), loopir.Scalar(loopir.TypeF32)})
	require.Error(t, err)
}

func TestReluRejectsBool(t *testing.T) {
	_, err := Check("relu", []loopir.Type{loopir.Scalar(loopir.TypeBool)})
	require.Error(t, err)
}
