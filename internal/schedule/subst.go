package schedule

import "exo/internal/loopir"

// SubstExpr replaces every bare Read(old) (no indices) inside e with repl,
// recursing through every expression form. Used, through SubstBlock, by
// inline and by the loop rewrites in loop.go to splice a substitute term in
// place of a scalar name.
func SubstExpr(e loopir.Expr, old string, repl loopir.Expr) loopir.Expr {
	switch n := e.(type) {
	case *loopir.Read:
		if n.Name == old && len(n.Idx) == 0 {
			return loopir.CloneExpr(repl)
		}
		c := *n
		c.Idx = substExprs(n.Idx, old, repl)
		return &c
	case *loopir.Const:
		return n
	case *loopir.USub:
		c := *n
		c.Arg = SubstExpr(n.Arg, old, repl)
		return &c
	case *loopir.BinOp:
		c := *n
		c.Lhs = SubstExpr(n.Lhs, old, repl)
		c.Rhs = SubstExpr(n.Rhs, old, repl)
		return &c
	case *loopir.BuiltIn:
		c := *n
		c.Args = substExprs(n.Args, old, repl)
		return &c
	case *loopir.WindowExpr:
		c := *n
		c.WAccess = make([]loopir.WAccess, len(n.WAccess))
		for i, a := range n.WAccess {
			switch w := a.(type) {
			case loopir.Point:
				c.WAccess[i] = loopir.Point{E: SubstExpr(w.E, old, repl)}
			case loopir.Interval:
				c.WAccess[i] = loopir.Interval{Lo: SubstExpr(w.Lo, old, repl), Hi: SubstExpr(w.Hi, old, repl)}
			}
		}
		return &c
	default:
		return loopir.CloneExpr(e)
	}
}

func substExprs(es []loopir.Expr, old string, repl loopir.Expr) []loopir.Expr {
	if es == nil {
		return nil
	}
	out := make([]loopir.Expr, len(es))
	for i, e := range es {
		out[i] = SubstExpr(e, old, repl)
	}
	return out
}

// SubstBlock recursively substitutes old for repl in every expression
// position of every statement in stmts, including nested blocks. Buffer
// names that are the *target* of an Assign/Reduce/Alloc are never rewritten
// by this function; only read positions (index expressions and right-hand
// sides) are. Callers renaming a buffer's declaration itself (e.g.
// reuse_buffer) do that separately.
func SubstBlock(stmts []loopir.Stmt, old string, repl loopir.Expr) []loopir.Stmt {
	out := make([]loopir.Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = substStmt(s, old, repl)
	}
	return out
}

func substStmt(s loopir.Stmt, old string, repl loopir.Expr) loopir.Stmt {
	switch n := s.(type) {
	case *loopir.Assign:
		c := *n
		c.Idx = substExprs(n.Idx, old, repl)
		c.Rhs = SubstExpr(n.Rhs, old, repl)
		return &c
	case *loopir.Reduce:
		c := *n
		c.Idx = substExprs(n.Idx, old, repl)
		c.Rhs = SubstExpr(n.Rhs, old, repl)
		return &c
	case *loopir.WriteConfig:
		c := *n
		c.Rhs = SubstExpr(n.Rhs, old, repl)
		return &c
	case *loopir.If:
		c := *n
		c.Cond = SubstExpr(n.Cond, old, repl)
		c.Body = SubstBlock(n.Body, old, repl)
		c.Orelse = SubstBlock(n.Orelse, old, repl)
		return &c
	case *loopir.Seq:
		c := *n
		c.Hi = SubstExpr(n.Hi, old, repl)
		c.Body = SubstBlock(n.Body, old, repl)
		return &c
	case *loopir.ForAll:
		c := *n
		c.Hi = SubstExpr(n.Hi, old, repl)
		c.Body = SubstBlock(n.Body, old, repl)
		return &c
	case *loopir.Alloc:
		c := *n
		c.Typ = n.Typ.WithDims(substExprs(n.Typ.Dims, old, repl))
		return &c
	case *loopir.Call:
		c := *n
		c.Args = substExprs(n.Args, old, repl)
		return &c
	case *loopir.WindowStmt:
		c := *n
		we := SubstExpr(n.WinExpr, old, repl).(*loopir.WindowExpr)
		c.WinExpr = we
		return &c
	default:
		return loopir.CloneStmt(s)
	}
}

// RenameIter alpha-renames every bound occurrence of iterator old to new
// within a single loop's body (the loop's own Iter field is renamed by the
// caller; this only rewrites reads inside the body), stopping at any nested
// loop that rebinds old (shadowing takes precedence, matching lexical
// scoping).
func RenameIter(body []loopir.Stmt, old, new string) []loopir.Stmt {
	out := make([]loopir.Stmt, len(body))
	for i, s := range body {
		out[i] = renameIterStmt(s, old, new)
	}
	return out
}

func renameIterStmt(s loopir.Stmt, old, new string) loopir.Stmt {
	switch n := s.(type) {
	case *loopir.Seq:
		if n.Iter == old {
			return loopir.CloneStmt(s)
		}
		c := *n
		c.Hi = renameIterExpr(n.Hi, old, new)
		c.Body = RenameIter(n.Body, old, new)
		return &c
	case *loopir.ForAll:
		if n.Iter == old {
			return loopir.CloneStmt(s)
		}
		c := *n
		c.Hi = renameIterExpr(n.Hi, old, new)
		c.Body = RenameIter(n.Body, old, new)
		return &c
	default:
		return substStmt(s, old, loopir.RD(new))
	}
}

func renameIterExpr(e loopir.Expr, old, new string) loopir.Expr {
	return SubstExpr(e, old, loopir.RD(new))
}
