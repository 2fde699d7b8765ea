package schedule

import (
	"fmt"

	"exo/internal/cursor"
	"exo/internal/effects"
	"exo/internal/errcode"
	"exo/internal/loopir"
)

// Rename replaces the procedure's own name, leaving every call site's own
// bookkeeping (internal/api's Eqv provenance) to record the rename
// separately.
func Rename(p *loopir.Proc, name string) (*loopir.Proc, *cursor.ForwardingMap, error) {
	np := p.Clone()
	np.Name = name
	return np, cursor.Identity(), nil
}

// Simplify constant-folds integer arithmetic and comparisons, drops
// `if True`/`if False` branches, and removes zero-trip loops, iterating to
// a fixpoint — the one primitive in this package that is genuinely
// iterative; everything else here is a single-site rewrite. It does not
// push loop-invariant conditions into branches: an If whose condition does
// not fold to a literal is kept as it is.
func Simplify(p *loopir.Proc) (*loopir.Proc, *cursor.ForwardingMap, error) {
	np := p.Clone()
	for {
		newBody, changed := simplifyBlock(np.Body)
		np.Body = newBody
		if !changed {
			break
		}
	}
	// Simplify may change the statement count at arbitrary depth, so unlike
	// every other primitive it does not attempt a precise forwarding map;
	// callers needing a cursor across a simplify pass re-resolve it by
	// pattern instead (documented in internal/api).
	return np, cursor.Identity(), nil
}

func simplifyBlock(stmts []loopir.Stmt) ([]loopir.Stmt, bool) {
	var out []loopir.Stmt
	changed := false
	for _, s := range stmts {
		s, stmtChanged := simplifyStmt(s)
		changed = changed || stmtChanged
		switch n := s.(type) {
		case *loopir.Seq:
			if isZeroTrip(n.Hi) {
				changed = true
				continue
			}
		case *loopir.ForAll:
			if isZeroTrip(n.Hi) {
				changed = true
				continue
			}
		case *loopir.If:
			if c, ok := n.Cond.(*loopir.Const); ok {
				if b, isBool := c.Value.(bool); isBool {
					changed = true
					if b {
						out = append(out, n.Body...)
					} else {
						out = append(out, n.Orelse...)
					}
					continue
				}
			}
		}
		out = append(out, s)
	}
	return out, changed
}

func isZeroTrip(hi loopir.Expr) bool {
	c, ok := hi.(*loopir.Const)
	if !ok {
		return false
	}
	n, ok := toInt(c.Value)
	return ok && n <= 0
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func simplifyStmt(s loopir.Stmt) (loopir.Stmt, bool) {
	switch n := s.(type) {
	case *loopir.Assign:
		e, ch := simplifyExpr(n.Rhs)
		c := *n
		c.Rhs = e
		c.Idx = simplifyExprs(n.Idx)
		return &c, ch
	case *loopir.Reduce:
		e, ch := simplifyExpr(n.Rhs)
		c := *n
		c.Rhs = e
		c.Idx = simplifyExprs(n.Idx)
		return &c, ch
	case *loopir.If:
		cond, ch1 := simplifyExpr(n.Cond)
		body, ch2 := simplifyBlock(n.Body)
		orelse, ch3 := simplifyBlock(n.Orelse)
		c := *n
		c.Cond, c.Body, c.Orelse = cond, body, orelse
		return &c, ch1 || ch2 || ch3
	case *loopir.Seq:
		hi, ch1 := simplifyExpr(n.Hi)
		body, ch2 := simplifyBlock(n.Body)
		c := *n
		c.Hi, c.Body = hi, body
		return &c, ch1 || ch2
	case *loopir.ForAll:
		hi, ch1 := simplifyExpr(n.Hi)
		body, ch2 := simplifyBlock(n.Body)
		c := *n
		c.Hi, c.Body = hi, body
		return &c, ch1 || ch2
	default:
		return s, false
	}
}

func simplifyExprs(es []loopir.Expr) []loopir.Expr {
	out := make([]loopir.Expr, len(es))
	for i, e := range es {
		out[i], _ = simplifyExpr(e)
	}
	return out
}

// simplifyExpr folds constants bottom-up: a BinOp whose operands are both
// integer literals (arithmetic or comparison, via foldConst), and the
// negation of an int or float literal. BinOps over float or bool literals
// are left unfolded.
func simplifyExpr(e loopir.Expr) (loopir.Expr, bool) {
	switch n := e.(type) {
	case *loopir.BinOp:
		lhs, ch1 := simplifyExpr(n.Lhs)
		rhs, ch2 := simplifyExpr(n.Rhs)
		lc, lok := lhs.(*loopir.Const)
		rc, rok := rhs.(*loopir.Const)
		if lok && rok {
			if folded, ok := foldConst(n.Op, lc, rc); ok {
				return folded, true
			}
		}
		c := *n
		c.Lhs, c.Rhs = lhs, rhs
		return &c, ch1 || ch2
	case *loopir.USub:
		arg, ch := simplifyExpr(n.Arg)
		if ac, ok := arg.(*loopir.Const); ok {
			if i, ok := toInt(ac.Value); ok {
				return &loopir.Const{Value: int(-i), Typ: ac.Typ}, true
			}
			if f, ok := ac.Value.(float64); ok {
				return &loopir.Const{Value: -f, Typ: ac.Typ}, true
			}
		}
		c := *n
		c.Arg = arg
		return &c, ch
	default:
		return e, false
	}
}

func foldConst(op loopir.BinOpKind, l, r *loopir.Const) (*loopir.Const, bool) {
	li, lok := toInt(l.Value)
	ri, rok := toInt(r.Value)
	if !lok || !rok {
		return nil, false
	}
	switch op {
	case loopir.OpAdd:
		return &loopir.Const{Value: int(li + ri), Typ: l.Typ}, true
	case loopir.OpSub:
		return &loopir.Const{Value: int(li - ri), Typ: l.Typ}, true
	case loopir.OpMul:
		return &loopir.Const{Value: int(li * ri), Typ: l.Typ}, true
	case loopir.OpDiv:
		if ri == 0 {
			return nil, false
		}
		return &loopir.Const{Value: int(li / ri), Typ: l.Typ}, true
	case loopir.OpMod:
		if ri == 0 {
			return nil, false
		}
		return &loopir.Const{Value: int(li % ri), Typ: l.Typ}, true
	case loopir.OpLt:
		return &loopir.Const{Value: li < ri, Typ: loopir.Scalar(loopir.TypeBool)}, true
	case loopir.OpGt:
		return &loopir.Const{Value: li > ri, Typ: loopir.Scalar(loopir.TypeBool)}, true
	case loopir.OpLe:
		return &loopir.Const{Value: li <= ri, Typ: loopir.Scalar(loopir.TypeBool)}, true
	case loopir.OpGe:
		return &loopir.Const{Value: li >= ri, Typ: loopir.Scalar(loopir.TypeBool)}, true
	case loopir.OpEq:
		return &loopir.Const{Value: li == ri, Typ: loopir.Scalar(loopir.TypeBool)}, true
	default:
		return nil, false
	}
}

// InsertPass inserts a Pass statement at the gap cursor.
func InsertPass(p *loopir.Proc, gap cursor.Cursor) (*loopir.Proc, *cursor.ForwardingMap, error) {
	if gap.Kind() != cursor.KindGap {
		return nil, nil, errcode.Wrap(errcode.CursorKind, cursor.ErrWrongKind, "insert_pass requires a Gap cursor")
	}
	at, _ := gap.Range()
	anchor := gap.Anchor()
	np, err := ReplaceRange(p, anchor, at, at, []loopir.Stmt{&loopir.Pass{}})
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "insert_pass failed")
	}
	blockLen, _ := anchor.StmtBlock(p)
	return np, shiftForwarding(anchor, at, at, 1, len(blockLen)), nil
}

// DeletePass removes a Pass statement named by a Node cursor.
func DeletePass(p *loopir.Proc, c cursor.Cursor) (*loopir.Proc, *cursor.ForwardingMap, error) {
	s, err := c.Stmt()
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	if _, ok := s.(*loopir.Pass); !ok {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "delete_pass: cursor does not point to a pass statement")
	}
	anchor, idx, err := nodeAnchor(c)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	np, err := ReplaceRange(p, anchor, idx, idx+1, nil)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "delete_pass failed")
	}
	block, _ := anchor.StmtBlock(p)
	return np, shiftForwarding(anchor, idx, idx+1, 0, len(block)), nil
}

// ReorderStmts swaps b.stmts[0] and b.stmts[1], a two-statement Block
// cursor, when their effect sets commute in both directions (no
// RAW/WAR/WAW in either direction).
func ReorderStmts(p *loopir.Proc, b cursor.Cursor) (*loopir.Proc, *cursor.ForwardingMap, error) {
	if b.Kind() != cursor.KindBlock {
		return nil, nil, errcode.Wrap(errcode.CursorKind, cursor.ErrWrongKind, "reorder_stmts requires a Block cursor")
	}
	lo, hi := b.Range()
	if hi-lo != 2 {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "reorder_stmts requires a block of exactly two statements")
	}
	stmts, err := b.Block()
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	s0, s1 := stmts[0], stmts[1]
	if !commutes(s0, s1) {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "reorder_stmts: statements do not commute")
	}
	anchor := b.Anchor()
	np, err := ReplaceRange(p, anchor, lo, hi, []loopir.Stmt{s1, s0})
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "reorder_stmts failed")
	}
	fwd := cursor.NewForwardingMap()
	fwd.Set(anchor.Path.Child(anchor.Field, lo), anchor.Path.Child(anchor.Field, lo+1))
	fwd.Set(anchor.Path.Child(anchor.Field, lo+1), anchor.Path.Child(anchor.Field, lo))
	return np, fwd, nil
}

// commutes reports whether swapping s0, s1 preserves semantics: every
// access the pair performs must be free of a RAW/WAR/WAW hazard between the
// two statements, checked via effects.AccessesOfStmt's read/write sets.
func commutes(s0, s1 loopir.Stmt) bool {
	a0 := effects.AccessesOfStmt(s0)
	a1 := effects.AccessesOfStmt(s1)
	isWrite := func(a effects.Access) bool {
		return a.Kind == effects.AccessWrite || a.Kind == effects.AccessReduce || a.Kind == effects.AccessConfigWrite
	}
	for _, x := range a0 {
		for _, y := range a1 {
			if !isWrite(x) && !isWrite(y) {
				continue
			}
			if x.Buf != "" && x.Buf == y.Buf {
				return false
			}
			if x.Cfg != "" && x.Cfg == y.Cfg && x.Field == y.Field {
				return false
			}
		}
	}
	return true
}

// CommuteExpr swaps the operands of a commutative (+ or ×) BinOp named by
// an expression cursor.
func CommuteExpr(p *loopir.Proc, e cursor.Cursor) (*loopir.Proc, *cursor.ForwardingMap, error) {
	expr, err := e.Expr()
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	b, ok := expr.(*loopir.BinOp)
	if !ok || !b.Op.IsCommutative() {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "commute_expr requires a + or * expression")
	}
	swapped := &loopir.BinOp{Op: b.Op, Lhs: b.Rhs, Rhs: b.Lhs}
	np, err := replaceExprAt(p, e, swapped)
	if err != nil {
		return nil, nil, err
	}
	return np, cursor.Identity(), nil
}

// replaceExprAt splices newExpr in at a Node cursor pointing to an
// expression, rebuilding the statement that owns it (at whatever depth
// inside its expression tree) and the path above it.
func replaceExprAt(p *loopir.Proc, c cursor.Cursor, newExpr loopir.Expr) (*loopir.Proc, error) {
	if c.Kind() != cursor.KindNode {
		return nil, errcode.Wrap(errcode.CursorKind, cursor.ErrWrongKind, "expected a Node cursor")
	}
	path := c.Path()
	stmtPath, err := ownerStmtPath(path)
	if err != nil {
		return nil, err
	}
	owner, err := cursor.Resolve(p, stmtPath)
	if err != nil {
		return nil, err
	}
	ownerStmt, isStmt := owner.(loopir.Stmt)
	if !isStmt {
		return nil, fmt.Errorf("schedule: expression owner is not a statement")
	}
	rest := path[len(stmtPath):]
	newOwnerAny, err := setAtPath(ownerStmt, rest, newExpr)
	if err != nil {
		return nil, err
	}
	newOwner, ok := newOwnerAny.(loopir.Stmt)
	if !ok {
		return nil, fmt.Errorf("schedule: rebuilt owner is not a statement")
	}
	np := p.Clone()
	newBody, err := replaceNodeAtPath(np.Body, stmtPath, newOwner)
	if err != nil {
		return nil, err
	}
	np.Body = newBody
	return np, nil
}

// setAtPath descends from node (a Stmt, or an Expr reached while
// recursing) along path, one field-selector at a time, and returns a
// rebuilt copy of node with the leaf position path denotes replaced by
// value. It is the write-side counterpart of cursor's private
// childField/resolveNode, scoped to the expression-rewrite primitives in
// this file (commute_expr, and any rewrite that swaps one subexpression for
// another without touching the surrounding statement shape).
func setAtPath(node any, path cursor.Path, value loopir.Expr) (any, error) {
	if len(path) == 0 {
		return value, nil
	}
	sel := path[0]
	child, err := getChildExpr(node, sel)
	if err != nil {
		return nil, err
	}
	newChild, err := setAtPath(child, path[1:], value)
	if err != nil {
		return nil, err
	}
	return withChildExpr(node, sel, newChild.(loopir.Expr))
}

// getChildExpr reads the single Expr denoted by sel on node (a scalar
// field directly, or one element of a slice field at sel.Index).
func getChildExpr(node any, sel cursor.Sel) (loopir.Expr, error) {
	get := func(scalar loopir.Expr, slice []loopir.Expr) (loopir.Expr, error) {
		if sel.Index < 0 {
			return scalar, nil
		}
		if sel.Index >= len(slice) {
			return nil, fmt.Errorf("schedule: index %d out of range", sel.Index)
		}
		return slice[sel.Index], nil
	}
	switch n := node.(type) {
	case *loopir.Assign:
		switch sel.Field {
		case cursor.FieldRhs:
			return get(n.Rhs, nil)
		case cursor.FieldIdx:
			return get(nil, n.Idx)
		}
	case *loopir.Reduce:
		switch sel.Field {
		case cursor.FieldRhs:
			return get(n.Rhs, nil)
		case cursor.FieldIdx:
			return get(nil, n.Idx)
		}
	case *loopir.If:
		if sel.Field == cursor.FieldCond {
			return get(n.Cond, nil)
		}
	case *loopir.Seq:
		if sel.Field == cursor.FieldHi {
			return get(n.Hi, nil)
		}
	case *loopir.ForAll:
		if sel.Field == cursor.FieldHi {
			return get(n.Hi, nil)
		}
	case *loopir.WriteConfig:
		if sel.Field == cursor.FieldRhs {
			return get(n.Rhs, nil)
		}
	case *loopir.Read:
		if sel.Field == cursor.FieldIdx {
			return get(nil, n.Idx)
		}
	case *loopir.USub:
		if sel.Field == cursor.FieldArg {
			return get(n.Arg, nil)
		}
	case *loopir.BinOp:
		switch sel.Field {
		case cursor.FieldLhs:
			return get(n.Lhs, nil)
		case cursor.FieldRhs:
			return get(n.Rhs, nil)
		}
	case *loopir.BuiltIn:
		if sel.Field == cursor.FieldArgs {
			return get(nil, n.Args)
		}
	case *loopir.Call:
		if sel.Field == cursor.FieldArgs {
			return get(nil, n.Args)
		}
	case *loopir.WindowStmt:
		if sel.Field == cursor.FieldRhs {
			return get(n.WinExpr, nil)
		}
	}
	return nil, fmt.Errorf("schedule: %T has no expression field %q", node, sel.Field)
}

// withChildExpr returns a shallow copy of node with the position sel
// denotes replaced by value.
func withChildExpr(node any, sel cursor.Sel, value loopir.Expr) (any, error) {
	setSlice := func(es []loopir.Expr) []loopir.Expr {
		out := append([]loopir.Expr(nil), es...)
		out[sel.Index] = value
		return out
	}
	switch n := node.(type) {
	case *loopir.Assign:
		c := *n
		if sel.Field == cursor.FieldRhs {
			c.Rhs = value
		} else {
			c.Idx = setSlice(n.Idx)
		}
		return &c, nil
	case *loopir.Reduce:
		c := *n
		if sel.Field == cursor.FieldRhs {
			c.Rhs = value
		} else {
			c.Idx = setSlice(n.Idx)
		}
		return &c, nil
	case *loopir.If:
		c := *n
		c.Cond = value
		return &c, nil
	case *loopir.Seq:
		c := *n
		c.Hi = value
		return &c, nil
	case *loopir.ForAll:
		c := *n
		c.Hi = value
		return &c, nil
	case *loopir.WriteConfig:
		c := *n
		c.Rhs = value
		return &c, nil
	case *loopir.Read:
		c := *n
		c.Idx = setSlice(n.Idx)
		return &c, nil
	case *loopir.USub:
		c := *n
		c.Arg = value
		return &c, nil
	case *loopir.BinOp:
		c := *n
		if sel.Field == cursor.FieldLhs {
			c.Lhs = value
		} else {
			c.Rhs = value
		}
		return &c, nil
	case *loopir.BuiltIn:
		c := *n
		c.Args = setSlice(n.Args)
		return &c, nil
	case *loopir.Call:
		c := *n
		c.Args = setSlice(n.Args)
		return &c, nil
	case *loopir.WindowStmt:
		c := *n
		we, ok := value.(*loopir.WindowExpr)
		if !ok {
			return nil, fmt.Errorf("schedule: *WindowStmt's expression field must be a window expression")
		}
		c.WinExpr = we
		return &c, nil
	default:
		return nil, fmt.Errorf("schedule: %T has no settable expression field", node)
	}
}
