// Package builtin catalogs the pure functions usable from a LoopIR
// BuiltIn expression ("BuiltIn(fn, args)"): select, max, min, sin, relu.
// It is a single flat registry of fixed-arity numeric functions, since
// BuiltIn has no module qualification and every built-in here operates
// purely over real-scalar/indexable operands.
package builtin

import (
	"fmt"

	"exo/internal/loopir"
)

// Signature describes one built-in function's arity and the type rule used
// to both validate a call's arguments and infer its result type.
type Signature struct {
	Name  string
	Arity int
	// Check validates argument types (as inferred by the caller, with no
	// prior per-argument filtering) and returns the call's
	// result type, or an error naming the violated constraint.
	Check func(args []loopir.Type) (loopir.Type, error)
}

var registry = map[string]Signature{
	"select": {
		Name:  "select",
		Arity: 3,
		Check: func(args []loopir.Type) (loopir.Type, error) {
			if !args[0].IsBool() {
				return loopir.Type{}, fmt.Errorf("builtin: select's first argument must be bool, got %s", args[0])
			}
			if !sameNumericKind(args[1], args[2]) {
				return loopir.Type{}, fmt.Errorf("builtin: select's branches must agree in type, got %s and %s", args[1], args[2])
			}
			return args[1], nil
		},
	},
	"max": {Name: "max", Arity: 2, Check: binNumeric},
	"min": {Name: "min", Arity: 2, Check: binNumeric},
	"sin": {Name: "sin", Arity: 1, Check: unaryReal},
	"relu": {
		Name:  "relu",
		Arity: 1,
		Check: func(args []loopir.Type) (loopir.Type, error) {
			if !args[0].IsRealScalar() {
				return loopir.Type{}, fmt.Errorf("builtin: relu requires a real-scalar argument, got %s", args[0])
			}
			return args[0], nil
		},
	},
}

func binNumeric(args []loopir.Type) (loopir.Type, error) {
	if !sameNumericKind(args[0], args[1]) {
		return loopir.Type{}, fmt.Errorf("builtin: expected two operands of compatible numeric type, got %s and %s", args[0], args[1])
	}
	if args[0].IsRealScalar() {
		return args[0], nil
	}
	return args[1], nil
}

func unaryReal(args []loopir.Type) (loopir.Type, error) {
	if !args[0].IsRealScalar() {
		return loopir.Type{}, fmt.Errorf("builtin: expected a real-scalar argument, got %s", args[0])
	}
	return args[0], nil
}

func sameNumericKind(a, b loopir.Type) bool {
	numeric := func(t loopir.Type) bool { return t.IsRealScalar() || t.IsIndexable() }
	return numeric(a) && numeric(b)
}

// Lookup returns fn's signature, or ok=false if fn is not a recognized
// built-in; an unrecognized name is a PreconditionUnmet-class error at the
// call site.
func Lookup(fn string) (Signature, bool) {
	s, ok := registry[fn]
	return s, ok
}

// Check validates a BuiltIn call's argument types and returns its result
// type.
func Check(fn string, args []loopir.Type) (loopir.Type, error) {
	sig, ok := Lookup(fn)
	if !ok {
		return loopir.Type{}, fmt.Errorf("builtin: %q is not a recognized built-in function", fn)
	}
	if len(args) != sig.Arity {
		return loopir.Type{}, fmt.Errorf("builtin: %s expects %d argument(s), got %d", fn, sig.Arity, len(args))
	}
	return sig.Check(args)
}

// Names returns the sorted set of recognized built-in function names, used
// by error messages and the LSP completion provider.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}
