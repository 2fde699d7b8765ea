package fragment

import (
	"fmt"

	"exo/internal/builtin"
	"exo/internal/config"
	"exo/internal/loopir"
)

// TypeError reports a fragment that parsed but does not type-check against
// its Scope.
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string { return fmt.Sprintf("fragment: %s", e.Message) }

// Typecheck walks e and verifies every operator is applied to operands of a
// compatible type, inferring a type or returning the first error found —
// there is no surrounding analyzer state to accumulate diagnostics into.
func Typecheck(e loopir.Expr, scope *Scope) error {
	_, err := inferType(e, scope)
	return err
}

func inferType(e loopir.Expr, scope *Scope) (loopir.Type, error) {
	switch n := e.(type) {
	case *loopir.Const:
		return n.Typ, nil
	case *loopir.Read:
		return inferRead(n, scope)
	case *loopir.ReadConfig:
		return inferReadConfig(n)
	case *loopir.USub:
		t, err := inferType(n.Arg, scope)
		if err != nil {
			return loopir.Type{}, err
		}
		if !t.IsRealScalar() && !t.IsIndexable() {
			return loopir.Type{}, &TypeError{fmt.Sprintf("cannot negate a value of type %s", t)}
		}
		return t, nil
	case *loopir.BinOp:
		return inferBinOp(n, scope)
	case *loopir.BuiltIn:
		return inferBuiltIn(n, scope)
	default:
		return loopir.Type{}, &TypeError{fmt.Sprintf("unsupported expression kind %T in a fragment", e)}
	}
}

func inferRead(n *loopir.Read, scope *Scope) (loopir.Type, error) {
	t, ok := scope.LookupVar(n.Name)
	if !ok {
		return loopir.Type{}, &TypeError{fmt.Sprintf("%q is not in scope", n.Name)}
	}
	if len(n.Idx) == 0 {
		return t, nil
	}
	if !t.IsArray() && !t.IsWindow() {
		return loopir.Type{}, &TypeError{fmt.Sprintf("%q is a scalar and cannot be indexed", n.Name)}
	}
	if len(n.Idx) != t.Rank() {
		return loopir.Type{}, &TypeError{fmt.Sprintf("%q has rank %d, but %d indices were given", n.Name, t.Rank(), len(n.Idx))}
	}
	for i, idx := range n.Idx {
		it, err := inferType(idx, scope)
		if err != nil {
			return loopir.Type{}, err
		}
		if !it.IsIndexable() {
			return loopir.Type{}, &TypeError{fmt.Sprintf("index %d of %q has non-index type %s", i, n.Name, it)}
		}
	}
	return t.ElemType(), nil
}

func inferReadConfig(n *loopir.ReadConfig) (loopir.Type, error) {
	ft, err := n.Cfg.Lookup(n.Field)
	if err != nil {
		return loopir.Type{}, &TypeError{err.Error()}
	}
	return loopir.Scalar(fieldTypeToBase(ft)), nil
}

func fieldTypeToBase(ft config.FieldType) loopir.BaseType {
	switch ft {
	case config.FieldBool:
		return loopir.TypeBool
	case config.FieldIndex:
		return loopir.TypeIndex
	case config.FieldSize:
		return loopir.TypeSize
	case config.FieldStride:
		return loopir.TypeStride
	case config.FieldF64:
		return loopir.TypeF64
	case config.FieldI8:
		return loopir.TypeI8
	case config.FieldI32:
		return loopir.TypeI32
	default:
		return loopir.TypeF32
	}
}

func inferBinOp(n *loopir.BinOp, scope *Scope) (loopir.Type, error) {
	lt, err := inferType(n.Lhs, scope)
	if err != nil {
		return loopir.Type{}, err
	}
	rt, err := inferType(n.Rhs, scope)
	if err != nil {
		return loopir.Type{}, err
	}
	switch n.Op {
	case loopir.OpAnd, loopir.OpOr:
		if !lt.IsBool() || !rt.IsBool() {
			return loopir.Type{}, &TypeError{fmt.Sprintf("%q requires bool operands, got %s and %s", n.Op, lt, rt)}
		}
		return loopir.Scalar(loopir.TypeBool), nil
	case loopir.OpLt, loopir.OpGt, loopir.OpLe, loopir.OpGe, loopir.OpEq:
		if !numericCompatible(lt, rt) {
			return loopir.Type{}, &TypeError{fmt.Sprintf("cannot compare %s with %s", lt, rt)}
		}
		return loopir.Scalar(loopir.TypeBool), nil
	default: // arithmetic
		if lt.IsBool() || rt.IsBool() {
			return loopir.Type{}, &TypeError{fmt.Sprintf("%q is not defined on bool operands", n.Op)}
		}
		if !numericCompatible(lt, rt) {
			return loopir.Type{}, &TypeError{fmt.Sprintf("%q requires compatible numeric operands, got %s and %s", n.Op, lt, rt)}
		}
		if lt.IsRealScalar() {
			return lt, nil
		}
		return rt, nil
	}
}

// numericCompatible allows mixing real-scalar and indexable operands (an
// index used in an address computation alongside a real constant is common
// in fragment sources), but never a bool with either.
func numericCompatible(a, b loopir.Type) bool {
	okA := a.IsRealScalar() || a.IsIndexable()
	okB := b.IsRealScalar() || b.IsIndexable()
	return okA && okB
}

func inferBuiltIn(n *loopir.BuiltIn, scope *Scope) (loopir.Type, error) {
	argTypes := make([]loopir.Type, len(n.Args))
	for i, a := range n.Args {
		t, err := inferType(a, scope)
		if err != nil {
			return loopir.Type{}, err
		}
		argTypes[i] = t
	}
	t, err := builtin.Check(n.Fn, argTypes)
	if err != nil {
		return loopir.Type{}, &TypeError{err.Error()}
	}
	return t, nil
}
