package loopir

import "fmt"

// InvariantError reports a violation of one of LoopIR's structural
// invariants. It is a plain Go error (not an errcode.Error) because Check
// is a tree-wide sanity pass run by tests and by rewrites on their result,
// not a user-facing scheduling operation in its own right.
type InvariantError struct {
	Rule    string
	Message string
}

func (e *InvariantError) Error() string { return fmt.Sprintf("invariant %s: %s", e.Rule, e.Message) }

type scope struct {
	names map[string]Type
	outer *scope
}

func newScope(outer *scope) *scope { return &scope{names: map[string]Type{}, outer: outer} }

func (s *scope) declare(name string, t Type) *InvariantError {
	for sc := s; sc != nil; sc = sc.outer {
		if _, ok := sc.names[name]; ok {
			return &InvariantError{"name-hygiene", fmt.Sprintf("%q is declared more than once in its scope chain", name)}
		}
	}
	s.names[name] = t
	return nil
}

func (s *scope) lookup(name string) (Type, bool) {
	for sc := s; sc != nil; sc = sc.outer {
		if t, ok := sc.names[name]; ok {
			return t, true
		}
	}
	return Type{}, false
}

// Check validates a procedure's structural invariants: name hygiene, shape
// consistency of indexed accesses against declared dimensionality, and
// scope correctness of every Read/Assign/Reduce/Free.
// It does not re-derive a full type judgement (that precision lives in
// internal/effects, which several rewrites consult directly); it is a fast,
// always-on sanity net.
func Check(p *Proc) error {
	root := newScope(nil)
	for _, a := range p.Args {
		if err := root.declare(a.Name, a.Typ); err != nil {
			return err
		}
	}
	for _, pr := range p.Preds {
		if err := checkExpr(pr, root); err != nil {
			return err
		}
		if !isKnownBool(pr, root) {
			// predicates are not re-typechecked precisely here; only scope is enforced
			continue
		}
	}
	return checkBlock(p.Body, root)
}

func checkBlock(body []Stmt, sc *scope) error {
	for _, s := range body {
		if err := checkStmt(s, sc); err != nil {
			return err
		}
	}
	return nil
}

func checkStmt(s Stmt, sc *scope) error {
	switch n := s.(type) {
	case *Assign:
		return checkTarget(n.Name, n.Idx, sc)
	case *Reduce:
		return checkTarget(n.Name, n.Idx, sc)
	case *WriteConfig:
		if !n.Cfg.HasField(n.Field) {
			return &InvariantError{"config-determinism", fmt.Sprintf("config %s has no field %s", n.Cfg.Name, n.Field)}
		}
		return checkExpr(n.Rhs, sc)
	case *Pass:
		return nil
	case *If:
		if err := checkExpr(n.Cond, sc); err != nil {
			return err
		}
		if err := checkBlock(n.Body, newScope(sc)); err != nil {
			return err
		}
		return checkBlock(n.Orelse, newScope(sc))
	case *Seq:
		if err := checkExpr(n.Hi, sc); err != nil {
			return err
		}
		inner := newScope(sc)
		if err := inner.declare(n.Iter, Scalar(TypeIndex)); err != nil {
			return err
		}
		return checkBlock(n.Body, inner)
	case *ForAll:
		if err := checkExpr(n.Hi, sc); err != nil {
			return err
		}
		inner := newScope(sc)
		if err := inner.declare(n.Iter, Scalar(TypeIndex)); err != nil {
			return err
		}
		return checkBlock(n.Body, inner)
	case *Alloc:
		for _, d := range n.Typ.Dims {
			if err := checkExpr(d, sc); err != nil {
				return err
			}
		}
		return sc.declare(n.Name, n.Typ)
	case *Free:
		if _, ok := sc.lookup(n.Name); !ok {
			return &InvariantError{"scope-correctness", fmt.Sprintf("free of undeclared name %q", n.Name)}
		}
		return nil
	case *Call:
		if len(n.Args) != len(n.Callee.Args) {
			return &InvariantError{"shape-consistency", fmt.Sprintf("call to %s passes %d args, expects %d", n.Callee.Name, len(n.Args), len(n.Callee.Args))}
		}
		for _, a := range n.Args {
			if err := checkExpr(a, sc); err != nil {
				return err
			}
		}
		return nil
	case *WindowStmt:
		if err := checkExpr(n.WinExpr, sc); err != nil {
			return err
		}
		return sc.declare(n.Name, Type{Base: TypeR, Dims: make([]Expr, n.WinExpr.Rank()), Window: true})
	default:
		return &InvariantError{"bug", "unknown statement variant in Check"}
	}
}

func checkTarget(name string, idx []Expr, sc *scope) error {
	t, ok := sc.lookup(name)
	if !ok {
		return &InvariantError{"scope-correctness", fmt.Sprintf("assignment to undeclared name %q", name)}
	}
	if t.Rank() > 0 && len(idx) != t.Rank() {
		return &InvariantError{"shape-consistency", fmt.Sprintf("%q has rank %d but is indexed with %d subscripts", name, t.Rank(), len(idx))}
	}
	for _, e := range idx {
		if err := checkExpr(e, sc); err != nil {
			return err
		}
	}
	return nil
}

func checkExpr(e Expr, sc *scope) error {
	switch n := e.(type) {
	case *Read:
		return checkTarget(n.Name, n.Idx, sc)
	case *Const:
		return nil
	case *USub:
		return checkExpr(n.Arg, sc)
	case *BinOp:
		if err := checkExpr(n.Lhs, sc); err != nil {
			return err
		}
		return checkExpr(n.Rhs, sc)
	case *BuiltIn:
		for _, a := range n.Args {
			if err := checkExpr(a, sc); err != nil {
				return err
			}
		}
		return nil
	case *WindowExpr:
		t, ok := sc.lookup(n.Name)
		if !ok {
			return &InvariantError{"scope-correctness", fmt.Sprintf("window of undeclared name %q", n.Name)}
		}
		if t.Rank() != 0 && len(n.WAccess) != t.Rank() {
			return &InvariantError{"shape-consistency", fmt.Sprintf("window of %q has %d coordinates, expected rank %d", n.Name, len(n.WAccess), t.Rank())}
		}
		for _, a := range n.WAccess {
			switch w := a.(type) {
			case Point:
				if err := checkExpr(w.E, sc); err != nil {
					return err
				}
			case Interval:
				if err := checkExpr(w.Lo, sc); err != nil {
					return err
				}
				if err := checkExpr(w.Hi, sc); err != nil {
					return err
				}
			}
		}
		return nil
	case *StrideExpr:
		if _, ok := sc.lookup(n.Name); !ok {
			return &InvariantError{"scope-correctness", fmt.Sprintf("stride of undeclared name %q", n.Name)}
		}
		return nil
	case *ReadConfig:
		if !n.Cfg.HasField(n.Field) {
			return &InvariantError{"config-determinism", fmt.Sprintf("config %s has no field %s", n.Cfg.Name, n.Field)}
		}
		return nil
	default:
		return &InvariantError{"bug", "unknown expression variant in Check"}
	}
}

func isKnownBool(e Expr, sc *scope) bool {
	if c, ok := e.(*Const); ok {
		return c.Typ.IsBool()
	}
	return true
}
