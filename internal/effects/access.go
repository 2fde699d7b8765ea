// Package effects implements the effect/bounds analyzer: given an IR
// fragment and its enclosing binders, it derives read/write/reduce access
// sets and answers the legality questions ("does rewrite R preserve
// semantics here?") that rewrite primitives need to discharge.
package effects

import "exo/internal/loopir"

// AccessKind classifies how a statement touches a buffer.
type AccessKind int

const (
	AccessRead AccessKind = iota
	AccessWrite
	AccessReduce
	AccessConfigRead
	AccessConfigWrite
)

// Access records one read/write/reduce of buffer Buf at index Idx, or one
// config read/write of Field on Cfg.
type Access struct {
	Buf   string
	Kind  AccessKind
	Idx   []loopir.Expr
	Cfg   string // config name, set only for AccessConfig{Read,Write}
	Field string
}

// Binder is one enclosing iteration variable or scalar binding together
// with the range it is known to range over (Hi may be symbolic).
type Binder struct {
	Name string
	Lo   loopir.Expr
	Hi   loopir.Expr
}

// Env is the set of enclosing binders, declared allocations, and assumed
// predicates under which a fragment is being analyzed.
type Env struct {
	Binders []Binder
	Preds   []loopir.Expr
}

// WithBinder returns a copy of e with one more enclosing binder.
func (e Env) WithBinder(name string, lo, hi loopir.Expr) Env {
	e2 := e
	e2.Binders = append(append([]Binder(nil), e.Binders...), Binder{name, lo, hi})
	return e2
}

// WithPred returns a copy of e with one more assumed predicate.
func (e Env) WithPred(p loopir.Expr) Env {
	e2 := e
	e2.Preds = append(append([]loopir.Expr(nil), e.Preds...), p)
	return e2
}

// AccessesOfStmt returns the direct accesses performed by one statement
// (not recursing into nested loop/if bodies — callers that need the whole
// sub-tree's accesses should use AccessesOfBlock).
func AccessesOfStmt(s loopir.Stmt) []Access {
	switch n := s.(type) {
	case *loopir.Assign:
		out := append(indexAccesses(n.Idx), exprAccesses(n.Rhs)...)
		return append(out, Access{Buf: n.Name, Kind: AccessWrite, Idx: n.Idx})
	case *loopir.Reduce:
		out := append(indexAccesses(n.Idx), exprAccesses(n.Rhs)...)
		return append(out, Access{Buf: n.Name, Kind: AccessReduce, Idx: n.Idx})
	case *loopir.WriteConfig:
		return append(exprAccesses(n.Rhs), Access{Kind: AccessConfigWrite, Cfg: n.Cfg.Name, Field: n.Field})
	case *loopir.Free, *loopir.Pass, *loopir.Alloc:
		return nil
	case *loopir.Call:
		var out []Access
		for _, a := range n.Args {
			out = append(out, exprAccesses(a)...)
		}
		out = append(out, calleeAccesses(n)...)
		return out
	case *loopir.WindowStmt:
		return exprAccesses(n.WinExpr)
	default:
		return nil
	}
}

// calleeAccesses approximates a Call's effect on the caller's buffers by the
// callee's declared reads/writes translated through actual arguments by
// position (buffer-for-buffer substitution); non-buffer arguments cannot
// introduce aliasing and are skipped.
func calleeAccesses(c *loopir.Call) []Access {
	var out []Access
	for i, arg := range c.Callee.Args {
		if i >= len(c.Args) {
			break
		}
		actualRead, ok := c.Args[i].(*loopir.Read)
		if !ok || !arg.Typ.IsArray() && !arg.Typ.IsWindow() {
			continue
		}
		kind := inferParamAccess(c.Callee, arg.Name)
		out = append(out, Access{Buf: actualRead.Name, Kind: kind})
	}
	return out
}

// inferParamAccess scans a callee's body for the dominant access kind of one
// of its own parameters, used to approximate effects across a Call.
func inferParamAccess(p *loopir.Proc, param string) AccessKind {
	kind := AccessRead
	var walk func(ss []loopir.Stmt)
	walk = func(ss []loopir.Stmt) {
		for _, s := range ss {
			for _, a := range AccessesOfStmt(s) {
				if a.Buf == param && (a.Kind == AccessWrite || a.Kind == AccessReduce) {
					kind = a.Kind
				}
			}
			switch n := s.(type) {
			case *loopir.If:
				walk(n.Body)
				walk(n.Orelse)
			case *loopir.Seq:
				walk(n.Body)
			case *loopir.ForAll:
				walk(n.Body)
			}
		}
	}
	walk(p.Body)
	return kind
}

func indexAccesses(idx []loopir.Expr) []Access {
	var out []Access
	for _, e := range idx {
		out = append(out, exprAccesses(e)...)
	}
	return out
}

// exprAccesses returns the reads (of buffers and config fields) performed
// while evaluating e.
func exprAccesses(e loopir.Expr) []Access {
	switch n := e.(type) {
	case *loopir.Read:
		out := indexAccesses(n.Idx)
		return append(out, Access{Buf: n.Name, Kind: AccessRead, Idx: n.Idx})
	case *loopir.Const:
		return nil
	case *loopir.USub:
		return exprAccesses(n.Arg)
	case *loopir.BinOp:
		return append(exprAccesses(n.Lhs), exprAccesses(n.Rhs)...)
	case *loopir.BuiltIn:
		var out []Access
		for _, a := range n.Args {
			out = append(out, exprAccesses(a)...)
		}
		return out
	case *loopir.WindowExpr:
		var out []Access
		for _, a := range n.WAccess {
			switch w := a.(type) {
			case loopir.Point:
				out = append(out, exprAccesses(w.E)...)
			case loopir.Interval:
				out = append(out, exprAccesses(w.Lo)...)
				out = append(out, exprAccesses(w.Hi)...)
			}
		}
		return append(out, Access{Buf: n.Name, Kind: AccessRead})
	case *loopir.StrideExpr:
		return []Access{{Buf: n.Name, Kind: AccessRead}}
	case *loopir.ReadConfig:
		return []Access{{Kind: AccessConfigRead, Cfg: n.Cfg.Name, Field: n.Field}}
	default:
		return nil
	}
}

// AccessesOfBlock flattens every access performed anywhere in body,
// recursing into If/Seq/ForAll. Loop bodies contribute their accesses once,
// indexed by the loop's own iterator — callers that need per-iteration
// comparison (e.g. Independent) re-derive bounds via Env themselves.
func AccessesOfBlock(body []loopir.Stmt) []Access {
	var out []Access
	for _, s := range body {
		out = append(out, AccessesOfStmt(s)...)
		switch n := s.(type) {
		case *loopir.If:
			out = append(out, AccessesOfBlock(n.Body)...)
			out = append(out, AccessesOfBlock(n.Orelse)...)
		case *loopir.Seq:
			out = append(out, AccessesOfBlock(n.Body)...)
		case *loopir.ForAll:
			out = append(out, AccessesOfBlock(n.Body)...)
		}
	}
	return out
}
