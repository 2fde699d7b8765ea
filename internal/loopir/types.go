// Package loopir implements the typed imperative intermediate representation
// scheduled by the Exo engine.
package loopir

import (
	"fmt"
	"strings"
)

// BaseType enumerates the scalar, index, and boolean base types. Array and
// window types are Type values with one or more Dims over a BaseType.
type BaseType int

const (
	TypeR BaseType = iota
	TypeF32
	TypeF64
	TypeI8
	TypeI32
	TypeBool
	TypeIndex
	TypeSize
	TypeStride
)

func (b BaseType) String() string {
	switch b {
	case TypeR:
		return "R"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	case TypeI8:
		return "i8"
	case TypeI32:
		return "i32"
	case TypeBool:
		return "bool"
	case TypeIndex:
		return "index"
	case TypeSize:
		return "size"
	case TypeStride:
		return "stride"
	default:
		return "?"
	}
}

// Type is a scalar, array (T[d1,...,dn]), or window ([T][d1,...,dn]) type.
// Indexable, real-scalar, and bool categories are disjoint.
type Type struct {
	Base   BaseType
	Dims   []Expr // nil for scalar types
	Window bool   // true for window types; requires len(Dims) > 0
}

// Scalar builds a bare scalar type.
func Scalar(b BaseType) Type { return Type{Base: b} }

// Array builds an array type of the given dimensions.
func Array(b BaseType, dims ...Expr) Type { return Type{Base: b, Dims: dims} }

// WindowType builds a window type of the given dimensions.
func WindowType(b BaseType, dims ...Expr) Type { return Type{Base: b, Dims: dims, Window: true} }

func (t Type) IsIndexable() bool {
	return len(t.Dims) == 0 && (t.Base == TypeIndex || t.Base == TypeSize || t.Base == TypeStride)
}

func (t Type) IsBool() bool {
	return len(t.Dims) == 0 && t.Base == TypeBool
}

// IsRealScalar reports whether t is a bare numeric scalar (not an index
// type, not bool, not an array/window).
func (t Type) IsRealScalar() bool {
	if len(t.Dims) != 0 {
		return false
	}
	switch t.Base {
	case TypeR, TypeF32, TypeF64, TypeI8, TypeI32:
		return true
	default:
		return false
	}
}

func (t Type) IsArray() bool  { return len(t.Dims) > 0 && !t.Window }
func (t Type) IsWindow() bool { return len(t.Dims) > 0 && t.Window }

// Rank returns the number of declared dimensions (0 for scalars).
func (t Type) Rank() int { return len(t.Dims) }

// ElemType returns the scalar type obtained by dropping all dimensions.
func (t Type) ElemType() Type { return Type{Base: t.Base} }

// WithDims returns a copy of t with its dimensions replaced.
func (t Type) WithDims(dims []Expr) Type {
	t2 := t
	t2.Dims = dims
	return t2
}

func (t Type) String() string {
	if len(t.Dims) == 0 {
		return t.Base.String()
	}
	parts := make([]string, len(t.Dims))
	for i, d := range t.Dims {
		parts[i] = d.String()
	}
	dims := strings.Join(parts, ",")
	if t.Window {
		return fmt.Sprintf("[%s][%s]", t.Base, dims)
	}
	return fmt.Sprintf("%s[%s]", t.Base, dims)
}

// Equal reports structural type equality, comparing dimension expressions
// syntactically (callers that need affine equivalence of dims should use
// internal/effects instead).
func (t Type) Equal(o Type) bool {
	if t.Base != o.Base || t.Window != o.Window || len(t.Dims) != len(o.Dims) {
		return false
	}
	for i := range t.Dims {
		if t.Dims[i].String() != o.Dims[i].String() {
			return false
		}
	}
	return true
}
