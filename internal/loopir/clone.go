package loopir

// CloneStmts deep-copies a statement list, recursing into every nested
// block so mutation of the copy never aliases the original tree.
func CloneStmts(ss []Stmt) []Stmt {
	if ss == nil {
		return nil
	}
	out := make([]Stmt, len(ss))
	for i, s := range ss {
		out[i] = CloneStmt(s)
	}
	return out
}

// CloneStmt deep-copies a single statement.
func CloneStmt(s Stmt) Stmt {
	switch n := s.(type) {
	case *Assign:
		c := *n
		c.Idx = cloneExprs(n.Idx)
		c.Rhs = CloneExpr(n.Rhs)
		return &c
	case *Reduce:
		c := *n
		c.Idx = cloneExprs(n.Idx)
		c.Rhs = CloneExpr(n.Rhs)
		return &c
	case *WriteConfig:
		c := *n
		c.Rhs = CloneExpr(n.Rhs)
		return &c
	case *Pass:
		c := *n
		return &c
	case *If:
		c := *n
		c.Cond = CloneExpr(n.Cond)
		c.Body = CloneStmts(n.Body)
		c.Orelse = CloneStmts(n.Orelse)
		return &c
	case *Seq:
		c := *n
		c.Hi = CloneExpr(n.Hi)
		c.Body = CloneStmts(n.Body)
		return &c
	case *ForAll:
		c := *n
		c.Hi = CloneExpr(n.Hi)
		c.Body = CloneStmts(n.Body)
		return &c
	case *Alloc:
		c := *n
		c.Typ = n.Typ.WithDims(cloneExprs(n.Typ.Dims))
		return &c
	case *Free:
		c := *n
		return &c
	case *Call:
		c := *n
		c.Args = cloneExprs(n.Args)
		return &c
	case *WindowStmt:
		c := *n
		we := CloneExpr(n.WinExpr).(*WindowExpr)
		c.WinExpr = we
		return &c
	default:
		panic("loopir: CloneStmt: unknown statement variant")
	}
}

// CloneExpr deep-copies a single expression.
func CloneExpr(e Expr) Expr {
	switch n := e.(type) {
	case *Read:
		c := *n
		c.Idx = cloneExprs(n.Idx)
		return &c
	case *Const:
		c := *n
		return &c
	case *USub:
		c := *n
		c.Arg = CloneExpr(n.Arg)
		return &c
	case *BinOp:
		c := *n
		c.Lhs = CloneExpr(n.Lhs)
		c.Rhs = CloneExpr(n.Rhs)
		return &c
	case *BuiltIn:
		c := *n
		c.Args = cloneExprs(n.Args)
		return &c
	case *WindowExpr:
		c := *n
		c.WAccess = make([]WAccess, len(n.WAccess))
		for i, a := range n.WAccess {
			c.WAccess[i] = cloneWAccess(a)
		}
		return &c
	case *StrideExpr:
		c := *n
		return &c
	case *ReadConfig:
		c := *n
		return &c
	default:
		panic("loopir: CloneExpr: unknown expression variant")
	}
}

func cloneWAccess(a WAccess) WAccess {
	switch w := a.(type) {
	case Point:
		return Point{E: CloneExpr(w.E)}
	case Interval:
		return Interval{Lo: CloneExpr(w.Lo), Hi: CloneExpr(w.Hi)}
	default:
		panic("loopir: cloneWAccess: unknown waccess variant")
	}
}

func cloneExprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = CloneExpr(e)
	}
	return out
}
