package argcheck

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/config"
	"exo/internal/loopir"
)

func TestNameValidAndInvalid(t *testing.T) {
	_, err := Name(0, "new_name", "rename", "tile_i")
	require.NoError(t, err)

	_, err = Name(0, "new_name", "rename", "3bad")
	require.Error(t, err)
	require.Contains(t, err.Error(), "argument 0, 'new_name' to rename")
}

func TestNameCountDefaultsToOne(t *testing.T) {
	name, occ, err := NameCount(1, "loop", "reorder", "i")
	require.NoError(t, err)
	require.Equal(t, "i", name)
	require.Equal(t, 1, occ)
}

func TestNameCountParsesOccurrence(t *testing.T) {
	name, occ, err := NameCount(1, "loop", "reorder", "i #3")
	require.NoError(t, err)
	require.Equal(t, "i", name)
	require.Equal(t, 3, occ)
}

func TestNameCountRejectsGarbage(t *testing.T) {
	_, _, err := NameCount(1, "loop", "reorder", "!!!")
	require.Error(t, err)
}

func TestPosIntRejectsZeroAndNegative(t *testing.T) {
	_, err := PosInt(0, "factor", "divide_loop", 0)
	require.Error(t, err)
	_, err = PosInt(0, "factor", "divide_loop", -2)
	require.Error(t, err)
	v, err := PosInt(0, "factor", "divide_loop", 4)
	require.NoError(t, err)
	require.Equal(t, 4, v)
}

func TestInRange(t *testing.T) {
	_, err := InRange(0, "dim", "expand_dim", 2, 0, 2)
	require.Error(t, err)
	v, err := InRange(0, "dim", "expand_dim", 1, 0, 2)
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestEnum(t *testing.T) {
	_, err := Enum(0, "kind", "set_precision", "f16", []string{"f32", "f64"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "'f32', 'f64'")

	v, err := Enum(0, "kind", "set_precision", "f32", []string{"f32", "f64"})
	require.NoError(t, err)
	require.Equal(t, "f32", v)
}

func TestTypeAbbrev(t *testing.T) {
	bt, err := TypeAbbrev(0, "typ", "set_precision", "f32")
	require.NoError(t, err)
	require.Equal(t, loopir.TypeF32, bt)

	_, err = TypeAbbrev(0, "typ", "set_precision", "bogus")
	require.Error(t, err)
}

func TestMemorySpace(t *testing.T) {
	sp, err := MemorySpace(0, "mem", "set_memory", "Neon")
	require.NoError(t, err)
	require.Equal(t, "Neon", sp.String())

	_, err = MemorySpace(0, "mem", "set_memory", "GPU")
	require.Error(t, err)
}

func TestConfigField(t *testing.T) {
	cfg := config.New("tuning").WithField("block_size", config.FieldSize)

	ft, err := ConfigField(0, "field", "bind_config", cfg, "block_size")
	require.NoError(t, err)
	require.Equal(t, config.FieldSize, ft)

	_, err = ConfigField(0, "field", "bind_config", cfg, "nope")
	require.Error(t, err)
	require.Contains(t, err.Error(), "tuning")
}

func TestOptionalAppliesCheckWhenPresent(t *testing.T) {
	v := 5
	out, err := Optional(&v, func(n int) (int, error) { return PosInt(0, "n", "op", n) })
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Equal(t, 5, *out)

	out, err = Optional[int](nil, func(n int) (int, error) { return PosInt(0, "n", "op", n) })
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestListValidatesEveryElement(t *testing.T) {
	out, err := List([]int{1, 2, 3}, func(i, v int) (int, error) { return PosInt(i, "n", "op", v) })
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, out)

	_, err = List([]int{1, -2, 3}, func(i, v int) (int, error) { return PosInt(i, "n", "op", v) })
	require.Error(t, err)
}

func TestListOrElemNormalizes(t *testing.T) {
	check := func(i, v int) (int, error) { return PosInt(i, "n", "op", v) }

	out, err := ListOrElem[int](0, "n", "op", 4, check)
	require.NoError(t, err)
	require.Equal(t, []int{4}, out)

	out, err = ListOrElem[int](0, "n", "op", []int{1, 2}, check)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, out)

	_, err = ListOrElem[int](0, "n", "op", "nope", check)
	require.Error(t, err)
}
