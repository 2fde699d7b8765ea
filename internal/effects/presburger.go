package effects

import (
	"errors"
	"fmt"

	"exo/internal/loopir"
)

// ErrUndecidable is returned by the solver when a fragment falls outside
// the affine integer-linear-arithmetic fragment this system supports — not
// full Presburger arithmetic, an integer linear-arithmetic decision
// procedure over bounded domains.
var ErrUndecidable = errors.New("effects: undecidable under the affine fragment supported here")

// LinExpr is an affine integer expression: sum(coeff_i * var_i) + const.
type LinExpr struct {
	Coeffs map[string]int64
	Const  int64
}

func constLin(c int64) LinExpr { return LinExpr{Const: c} }

func varLin(name string) LinExpr { return LinExpr{Coeffs: map[string]int64{name: 1}} }

// Affine attempts to express e as a LinExpr. It succeeds for Const, Read of
// a scalar (treated as a free variable), USub, and BinOp over {+,-,*} where
// at least one side of * is a constant. Division, mod, comparisons, and
// reads of a BuiltIn result are not affine and report ok=false.
func Affine(e loopir.Expr) (LinExpr, bool) {
	switch n := e.(type) {
	case *loopir.Const:
		iv, ok := toInt(n.Value)
		if !ok {
			return LinExpr{}, false
		}
		return constLin(iv), true
	case *loopir.Read:
		if len(n.Idx) != 0 {
			return LinExpr{}, false
		}
		return varLin(n.Name), true
	case *loopir.USub:
		a, ok := Affine(n.Arg)
		if !ok {
			return LinExpr{}, false
		}
		return a.scale(-1), true
	case *loopir.BinOp:
		l, lok := Affine(n.Lhs)
		r, rok := Affine(n.Rhs)
		switch n.Op {
		case loopir.OpAdd:
			if lok && rok {
				return l.add(r), true
			}
		case loopir.OpSub:
			if lok && rok {
				return l.add(r.scale(-1)), true
			}
		case loopir.OpMul:
			if lok && rok && l.isConst() {
				return r.scale(l.Const), true
			}
			if lok && rok && r.isConst() {
				return l.scale(r.Const), true
			}
		}
		return LinExpr{}, false
	default:
		return LinExpr{}, false
	}
}

func (l LinExpr) isConst() bool { return len(l.Coeffs) == 0 }

func (l LinExpr) add(o LinExpr) LinExpr {
	out := LinExpr{Coeffs: map[string]int64{}, Const: l.Const + o.Const}
	for k, v := range l.Coeffs {
		out.Coeffs[k] += v
	}
	for k, v := range o.Coeffs {
		out.Coeffs[k] += v
	}
	return out.normalize()
}

func (l LinExpr) scale(k int64) LinExpr {
	out := LinExpr{Coeffs: map[string]int64{}, Const: l.Const * k}
	for n, v := range l.Coeffs {
		out.Coeffs[n] = v * k
	}
	return out.normalize()
}

func (l LinExpr) normalize() LinExpr {
	for k, v := range l.Coeffs {
		if v == 0 {
			delete(l.Coeffs, k)
		}
	}
	return l
}

// Eval evaluates l under a concrete assignment of its free variables. It
// panics if a referenced variable is unbound; callers only call Eval after
// Vars() has been checked against the assignment.
func (l LinExpr) Eval(env map[string]int64) int64 {
	v := l.Const
	for name, coeff := range l.Coeffs {
		val, ok := env[name]
		if !ok {
			panic(fmt.Sprintf("effects: unbound variable %q in LinExpr.Eval", name))
		}
		v += coeff * val
	}
	return v
}

// Vars returns the free variable names l depends on.
func (l LinExpr) Vars() []string {
	out := make([]string, 0, len(l.Coeffs))
	for k := range l.Coeffs {
		out = append(out, k)
	}
	return out
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	default:
		return 0, false
	}
}

// domainCap bounds how many total points the bounded enumeration fallback
// will visit before giving up with ErrUndecidable — this is a scaffold
// decision procedure, not a production Omega solver.
const domainCap = 20000

// Domain describes the finite integer range assumed for one variable while
// searching for a counterexample.
type Domain struct {
	Name   string
	Lo, Hi int64 // inclusive lo, exclusive hi
}

// enumerate visits every point of the Cartesian product of doms, calling
// visit(env) for each; it stops and returns false if the product would
// exceed domainCap points.
func enumerate(doms []Domain, visit func(map[string]int64) bool) (completed bool) {
	total := int64(1)
	for _, d := range doms {
		n := d.Hi - d.Lo
		if n <= 0 {
			return true
		}
		total *= n
		if total > domainCap {
			return false
		}
	}
	env := map[string]int64{}
	var rec func(i int) bool
	rec = func(i int) bool {
		if i == len(doms) {
			return visit(env)
		}
		d := doms[i]
		for v := d.Lo; v < d.Hi; v++ {
			env[d.Name] = v
			if !rec(i + 1) {
				return false
			}
		}
		return true
	}
	rec(0)
	return true
}

// BinderDomain resolves a Binder to a concrete finite Domain [lo,hi) when
// both bounds are affine in already-bound outer variables; it returns
// ok=false when the bound is genuinely symbolic (e.g. a procedure
// parameter of type size with no further constraint), in which case callers
// substitute a small representative sample instead (see SampleSizes).
func BinderDomain(b Binder, outer map[string]int64) (Domain, bool) {
	lo, lok := Affine(b.Lo)
	hi, hok := Affine(b.Hi)
	if !lok || !hok {
		return Domain{}, false
	}
	for _, v := range lo.Vars() {
		if _, ok := outer[v]; !ok {
			return Domain{}, false
		}
	}
	for _, v := range hi.Vars() {
		if _, ok := outer[v]; !ok {
			return Domain{}, false
		}
	}
	return Domain{Name: b.Name, Lo: lo.Eval(outer), Hi: hi.Eval(outer)}, true
}

// SampleSizes is the fallback set of representative extents substituted for
// a symbolic loop bound (e.g. a procedure parameter N of type size) when
// searching for a counterexample. It is intentionally small and odd/even
// mixed so off-by-one and parity bugs in a rewrite are likely to surface.
var SampleSizes = []int64{1, 2, 3, 4, 5, 7, 8, 16}
