package schedule

import (
	"exo/internal/config"
	"exo/internal/cursor"
	"exo/internal/effects"
	"exo/internal/errcode"
	"exo/internal/loopir"
	"exo/internal/memory"
)

// buildEnv reconstructs the type environment visible at stmtPath: every
// procedure argument, plus every Alloc and loop iterator that lexically
// dominates the statement stmtPath names. It mirrors loopir.Check's own
// scope-building walk but is scoped to one path instead of the whole tree,
// since bind_expr only needs to type one expression, not re-validate the
// procedure.
func buildEnv(p *loopir.Proc, stmtPath cursor.Path) map[string]loopir.Type {
	env := map[string]loopir.Type{}
	for _, a := range p.Args {
		env[a.Name] = a.Typ
	}
	stmts := p.Body
	for i, sel := range stmtPath {
		if sel.Index < 0 || sel.Index >= len(stmts) {
			break
		}
		for j := 0; j < sel.Index; j++ {
			if alloc, ok := stmts[j].(*loopir.Alloc); ok {
				env[alloc.Name] = alloc.Typ
			}
		}
		node := stmts[sel.Index]
		switch n := node.(type) {
		case *loopir.Seq:
			env[n.Iter] = loopir.Scalar(loopir.TypeIndex)
		case *loopir.ForAll:
			env[n.Iter] = loopir.Scalar(loopir.TypeIndex)
		}
		if i+1 >= len(stmtPath) {
			break
		}
		block, err := stmtBlockField(node, stmtPath[i+1].Field)
		if err != nil {
			break
		}
		stmts = block
	}
	return env
}

// exprType infers e's type under env, to the precision bind_expr needs:
// comparisons and booleans produce bool, every other BinOp takes its left
// operand's type (both operands of an arithmetic BinOp are required to
// already agree), and a Read/WindowExpr/BuiltIn looks up or propagates the
// type of what it reads.
func exprType(e loopir.Expr, env map[string]loopir.Type) (loopir.Type, bool) {
	switch n := e.(type) {
	case *loopir.Const:
		return n.Typ, true
	case *loopir.Read:
		t, ok := env[n.Name]
		if !ok {
			return loopir.Type{}, false
		}
		if len(n.Idx) > 0 {
			return t.ElemType(), true
		}
		return t, true
	case *loopir.USub:
		return exprType(n.Arg, env)
	case *loopir.BinOp:
		switch n.Op {
		case loopir.OpLt, loopir.OpGt, loopir.OpLe, loopir.OpGe, loopir.OpEq, loopir.OpAnd, loopir.OpOr:
			return loopir.Scalar(loopir.TypeBool), true
		default:
			return exprType(n.Lhs, env)
		}
	case *loopir.BuiltIn:
		if len(n.Args) == 0 {
			return loopir.Type{}, false
		}
		return exprType(n.Args[0], env)
	case *loopir.WindowExpr:
		t, ok := env[n.Name]
		if !ok {
			return loopir.Type{}, false
		}
		return t.ElemType(), true
	case *loopir.StrideExpr:
		return loopir.Scalar(loopir.TypeStride), true
	case *loopir.ReadConfig:
		ft, err := n.Cfg.Lookup(n.Field)
		if err != nil {
			return loopir.Type{}, false
		}
		return loopir.Scalar(configFieldBase(ft)), true
	default:
		return loopir.Type{}, false
	}
}

func configFieldBase(ft config.FieldType) loopir.BaseType {
	switch ft {
	case config.FieldBool:
		return loopir.TypeBool
	case config.FieldIndex:
		return loopir.TypeIndex
	case config.FieldSize:
		return loopir.TypeSize
	case config.FieldStride:
		return loopir.TypeStride
	case config.FieldF32:
		return loopir.TypeF32
	case config.FieldF64:
		return loopir.TypeF64
	case config.FieldI8:
		return loopir.TypeI8
	case config.FieldI32:
		return loopir.TypeI32
	default:
		return loopir.TypeR
	}
}

// BindExpr introduces a fresh scalar buffer name holding the value of the
// expression e names, assigned immediately before its dominating statement,
// and substitutes reads. With cse, every syntactically identical later
// expression in the rest of the enclosing block is replaced too, as long
// as it depends only on state that
// is still live (no intervening write to any buffer or config field the
// expression reads).
func BindExpr(p *loopir.Proc, e cursor.Cursor, name string, cse bool) (*loopir.Proc, *cursor.ForwardingMap, error) {
	expr, err := e.Expr()
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	stmtPath, err := ownerStmtPath(e.Path())
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "bind_expr")
	}
	env := buildEnv(p, stmtPath)
	et, ok := exprType(expr, env)
	if !ok {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "bind_expr: could not determine the bound expression's type")
	}
	parentPath, sel, ok := stmtPath.Parent()
	if !ok {
		return nil, nil, errcode.New(errcode.Bug, "bind_expr: statement has no enclosing block")
	}
	anchor := cursor.Anchor{Path: parentPath, Field: sel.Field}
	idx := sel.Index
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}

	alloc := &loopir.Alloc{Name: name, Typ: loopir.Scalar(et.Base), Mem: memory.DRAM}
	assign := &loopir.Assign{Name: name, Rhs: loopir.CloneExpr(expr)}

	var newTail []loopir.Stmt
	if cse {
		newTail = substTailEqual(block[idx:], expr.String(), freeVars(expr), name)
	} else {
		ownerStmt := block[idx]
		rest := e.Path()[len(stmtPath):]
		newOwnerAny, err := setAtPath(ownerStmt, rest, loopir.RD(name))
		if err != nil {
			return nil, nil, errcode.Wrap(errcode.Bug, err, "bind_expr")
		}
		newTail = append([]loopir.Stmt{newOwnerAny.(loopir.Stmt)}, loopir.CloneStmts(block[idx+1:])...)
	}

	replacement := append([]loopir.Stmt{alloc, assign}, newTail...)
	np, err := ReplaceRange(p, anchor, idx, len(block), replacement)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "bind_expr failed")
	}

	fwd := cursor.NewForwardingMap()
	for i := 0; i < idx; i++ {
		old := anchor.Path.Child(anchor.Field, i)
		fwd.Set(old, old)
	}
	for i := idx; i < len(block); i++ {
		old := anchor.Path.Child(anchor.Field, i)
		fwd.Set(old, anchor.Path.Child(anchor.Field, i+2))
	}
	return np, fwd, nil
}

// substTailEqual replaces every subexpression of stmts that is syntactically
// identical to targetStr with a read of name, stopping (for statements
// after the first) once a write or config-write touches one of the
// expression's free variables.
func substTailEqual(stmts []loopir.Stmt, targetStr string, free map[string]bool, name string) []loopir.Stmt {
	out := make([]loopir.Stmt, len(stmts))
	killed := false
	for i, s := range stmts {
		if !killed {
			out[i] = substStmtEqual(s, targetStr, loopir.RD(name))
		} else {
			out[i] = loopir.CloneStmt(s)
		}
		for _, acc := range effects.AccessesOfStmt(s) {
			switch acc.Kind {
			case effects.AccessWrite, effects.AccessReduce:
				if free[acc.Buf] {
					killed = true
				}
			case effects.AccessConfigWrite:
				if free["cfg:"+acc.Cfg+"."+acc.Field] {
					killed = true
				}
			}
		}
	}
	return out
}

func exprEqualReplace(e loopir.Expr, targetStr string, repl loopir.Expr) loopir.Expr {
	if e.String() == targetStr {
		return loopir.CloneExpr(repl)
	}
	switch n := e.(type) {
	case *loopir.Read:
		c := *n
		c.Idx = exprsEqualReplace(n.Idx, targetStr, repl)
		return &c
	case *loopir.Const:
		return n
	case *loopir.USub:
		c := *n
		c.Arg = exprEqualReplace(n.Arg, targetStr, repl)
		return &c
	case *loopir.BinOp:
		c := *n
		c.Lhs = exprEqualReplace(n.Lhs, targetStr, repl)
		c.Rhs = exprEqualReplace(n.Rhs, targetStr, repl)
		return &c
	case *loopir.BuiltIn:
		c := *n
		c.Args = exprsEqualReplace(n.Args, targetStr, repl)
		return &c
	case *loopir.WindowExpr:
		c := *n
		c.WAccess = make([]loopir.WAccess, len(n.WAccess))
		for i, a := range n.WAccess {
			switch w := a.(type) {
			case loopir.Point:
				c.WAccess[i] = loopir.Point{E: exprEqualReplace(w.E, targetStr, repl)}
			case loopir.Interval:
				c.WAccess[i] = loopir.Interval{
					Lo: exprEqualReplace(w.Lo, targetStr, repl),
					Hi: exprEqualReplace(w.Hi, targetStr, repl),
				}
			}
		}
		return &c
	default:
		return loopir.CloneExpr(e)
	}
}

func exprsEqualReplace(es []loopir.Expr, targetStr string, repl loopir.Expr) []loopir.Expr {
	if es == nil {
		return nil
	}
	out := make([]loopir.Expr, len(es))
	for i, e := range es {
		out[i] = exprEqualReplace(e, targetStr, repl)
	}
	return out
}

func substStmtEqual(s loopir.Stmt, targetStr string, repl loopir.Expr) loopir.Stmt {
	switch n := s.(type) {
	case *loopir.Assign:
		c := *n
		c.Idx = exprsEqualReplace(n.Idx, targetStr, repl)
		c.Rhs = exprEqualReplace(n.Rhs, targetStr, repl)
		return &c
	case *loopir.Reduce:
		c := *n
		c.Idx = exprsEqualReplace(n.Idx, targetStr, repl)
		c.Rhs = exprEqualReplace(n.Rhs, targetStr, repl)
		return &c
	case *loopir.WriteConfig:
		c := *n
		c.Rhs = exprEqualReplace(n.Rhs, targetStr, repl)
		return &c
	case *loopir.If:
		c := *n
		c.Cond = exprEqualReplace(n.Cond, targetStr, repl)
		c.Body = substBlockEqual(n.Body, targetStr, repl)
		c.Orelse = substBlockEqual(n.Orelse, targetStr, repl)
		return &c
	case *loopir.Seq:
		c := *n
		c.Hi = exprEqualReplace(n.Hi, targetStr, repl)
		c.Body = substBlockEqual(n.Body, targetStr, repl)
		return &c
	case *loopir.ForAll:
		c := *n
		c.Hi = exprEqualReplace(n.Hi, targetStr, repl)
		c.Body = substBlockEqual(n.Body, targetStr, repl)
		return &c
	case *loopir.Call:
		c := *n
		c.Args = exprsEqualReplace(n.Args, targetStr, repl)
		return &c
	case *loopir.WindowStmt:
		c := *n
		c.WinExpr = exprEqualReplace(n.WinExpr, targetStr, repl).(*loopir.WindowExpr)
		return &c
	default:
		return loopir.CloneStmt(s)
	}
}

func substBlockEqual(body []loopir.Stmt, targetStr string, repl loopir.Expr) []loopir.Stmt {
	out := make([]loopir.Stmt, len(body))
	for i, s := range body {
		out[i] = substStmtEqual(s, targetStr, repl)
	}
	return out
}

// freeVars collects the buffer/config names an expression reads, used by
// bind_expr's cse mode to decide when a later occurrence stops being
// substitutable.
func freeVars(e loopir.Expr) map[string]bool {
	out := map[string]bool{}
	var walk func(loopir.Expr)
	walk = func(e loopir.Expr) {
		switch n := e.(type) {
		case *loopir.Read:
			out[n.Name] = true
			for _, i := range n.Idx {
				walk(i)
			}
		case *loopir.USub:
			walk(n.Arg)
		case *loopir.BinOp:
			walk(n.Lhs)
			walk(n.Rhs)
		case *loopir.BuiltIn:
			for _, a := range n.Args {
				walk(a)
			}
		case *loopir.WindowExpr:
			out[n.Name] = true
			for _, a := range n.WAccess {
				switch w := a.(type) {
				case loopir.Point:
					walk(w.E)
				case loopir.Interval:
					walk(w.Lo)
					walk(w.Hi)
				}
			}
		case *loopir.StrideExpr:
			out[n.Name] = true
		case *loopir.ReadConfig:
			out["cfg:"+n.Cfg.Name+"."+n.Field] = true
		}
	}
	walk(e)
	return out
}
