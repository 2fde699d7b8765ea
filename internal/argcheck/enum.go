package argcheck

import (
	"exo/internal/errcode"
	"exo/internal/loopir"
	"exo/internal/memory"
)

// Enum validates that v is one of allowed, reporting every legal choice in
// the error when it is not (ArgumentProcessor EnumA).
func Enum(i int, argName, op, v string, allowed []string) (string, error) {
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", errcode.Argument(i, argName, op, "expected one of "+joinQuoted(allowed))
}

func joinQuoted(vs []string) string {
	out := ""
	for idx, v := range vs {
		if idx > 0 {
			out += ", "
		}
		out += "'" + v + "'"
	}
	return out
}

var typeAbbrevs = map[string]loopir.BaseType{
	"R":      loopir.TypeR,
	"f32":    loopir.TypeF32,
	"f64":    loopir.TypeF64,
	"i8":     loopir.TypeI8,
	"i32":    loopir.TypeI32,
	"bool":   loopir.TypeBool,
	"index":  loopir.TypeIndex,
	"size":   loopir.TypeSize,
	"stride": loopir.TypeStride,
}

// TypeAbbrev resolves a short type-name token such as "f32" or "index" into
// its loopir.BaseType (ArgumentProcessor TypeAbbrevA), used by scheduling ops
// that accept a target element type as a string argument (e.g. a precision
// cast).
func TypeAbbrev(i int, argName, op, v string) (loopir.BaseType, error) {
	bt, ok := typeAbbrevs[v]
	if !ok {
		return 0, errcode.Argument(i, argName, op, "unrecognized type abbreviation '"+v+"'")
	}
	return bt, nil
}

var memorySpaces = map[string]*memory.Space{
	"DRAM": memory.DRAM,
	"Neon": memory.Neon,
	"AVX2": memory.AVX2,
}

// MemorySpace resolves a memory-space name to its token (ArgumentProcessor
// MemoryA), used by set_memory and allocation-targeting ops.
func MemorySpace(i int, argName, op, v string) (*memory.Space, error) {
	sp, ok := memorySpaces[v]
	if !ok {
		return nil, errcode.Argument(i, argName, op, "unrecognized memory space '"+v+"'")
	}
	return sp, nil
}
