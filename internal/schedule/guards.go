package schedule

import (
	"exo/internal/cursor"
	"exo/internal/errcode"
	"exo/internal/loopir"
)

// Specialize produces an if/elif/.../else cascade over len(conds)+1 copies
// of block: exactly one copy runs at any given point, so the rewrite is
// unconditionally semantics-preserving and needs no dependence
// precondition, unlike every primitive in loop.go.
func Specialize(p *loopir.Proc, block cursor.Cursor, conds []loopir.Expr) (*loopir.Proc, *cursor.ForwardingMap, error) {
	if len(conds) == 0 {
		return nil, nil, errcode.New(errcode.ArgumentType, "specialize: conds must be non-empty")
	}
	anchor, lo, hi, err := blockRange(block)
	if err != nil {
		return nil, nil, err
	}
	blk, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	body := blk[lo:hi]

	cascade := loopir.CloneStmts(body)
	for i := len(conds) - 1; i >= 0; i-- {
		cascade = []loopir.Stmt{&loopir.If{
			Cond:   loopir.CloneExpr(conds[i]),
			Body:   loopir.CloneStmts(body),
			Orelse: cascade,
		}}
	}

	np, err := ReplaceRange(p, anchor, lo, hi, cascade)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "specialize failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "specialize: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

// evalBoolConst tries to decide an expression's truth value within this
// engine's Presburger-lite scope: literal bool constants, literal integer
// comparisons, and conjunctions/disjunctions of either.
// Anything else is undecidable here and reported as such.
func evalBoolConst(e loopir.Expr) (bool, bool) {
	switch n := e.(type) {
	case *loopir.Const:
		if b, ok := n.Value.(bool); ok {
			return b, true
		}
		return false, false
	case *loopir.BinOp:
		switch n.Op {
		case loopir.OpAnd:
			l, lok := evalBoolConst(n.Lhs)
			r, rok := evalBoolConst(n.Rhs)
			if !lok || !rok {
				return false, false
			}
			return l && r, true
		case loopir.OpOr:
			l, lok := evalBoolConst(n.Lhs)
			r, rok := evalBoolConst(n.Rhs)
			if !lok || !rok {
				return false, false
			}
			return l || r, true
		case loopir.OpLt, loopir.OpGt, loopir.OpLe, loopir.OpGe, loopir.OpEq:
			l, lok := toIntValue(constValue(n.Lhs))
			r, rok := toIntValue(constValue(n.Rhs))
			if !lok || !rok {
				return false, false
			}
			switch n.Op {
			case loopir.OpLt:
				return l < r, true
			case loopir.OpGt:
				return l > r, true
			case loopir.OpLe:
				return l <= r, true
			case loopir.OpGe:
				return l >= r, true
			case loopir.OpEq:
				return l == r, true
			}
		}
	}
	return false, false
}

// AssertIf replaces an If by whichever branch b names, provided the
// condition provably evaluates to b; unlike
// specialize this does change which code runs, so it is gated on
// evalBoolConst actually deciding the condition rather than merely
// restructuring always-equivalent code.
func AssertIf(p *loopir.Proc, c cursor.Cursor, b bool) (*loopir.Proc, *cursor.ForwardingMap, error) {
	anchor, idx, err := nodeAnchor(c)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.CursorKind, err, "assert_if")
	}
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	if idx < 0 || idx >= len(block) {
		return nil, nil, errcode.New(errcode.InvalidCursor, "cursor does not resolve to a statement")
	}
	ifStmt, ok := block[idx].(*loopir.If)
	if !ok {
		return nil, nil, errcode.New(errcode.ArgumentType, "assert_if: expected an If, got %T", block[idx])
	}
	val, decided := evalBoolConst(ifStmt.Cond)
	if !decided || val != b {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "assert_if: condition is not provably %v", b)
	}
	var replacement []loopir.Stmt
	if b {
		replacement = loopir.CloneStmts(ifStmt.Body)
	} else {
		replacement = loopir.CloneStmts(ifStmt.Orelse)
	}

	np, err := ReplaceRange(p, anchor, idx, idx+1, replacement)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "assert_if failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "assert_if: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

func idxListEqual(a, b []loopir.Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].String() != b[i].String() {
			return false
		}
	}
	return true
}

// MergeWrites merges two adjacent writes to the same buffer location,
// using the package's established .String()-based syntactic-equality
// convention (binding.go's exprEqualReplace) to decide "same location"
// for the index lists.
func MergeWrites(p *loopir.Proc, c cursor.Cursor) (*loopir.Proc, *cursor.ForwardingMap, error) {
	anchor, idx, err := nodeAnchor(c)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.CursorKind, err, "merge_writes")
	}
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	if idx < 0 || idx+1 >= len(block) {
		return nil, nil, errcode.New(errcode.InvalidCursor, "merge_writes: cursor does not name a statement with a following sibling")
	}

	name1, idx1, rhs1, isReduce1, ok1 := writeShape(block[idx])
	name2, idx2, rhs2, isReduce2, ok2 := writeShape(block[idx+1])
	if !ok1 || !ok2 {
		return nil, nil, errcode.New(errcode.ArgumentType, "merge_writes: both statements must be Assign or Reduce")
	}
	if name1 != name2 || !idxListEqual(idx1, idx2) {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "merge_writes: statements do not write the same location")
	}

	var merged loopir.Stmt
	switch {
	case !isReduce1 && !isReduce2:
		merged = loopir.AssignS(name1, cloneExprs(idx2), loopir.CloneExpr(rhs2))
	case isReduce1 && !isReduce2:
		merged = loopir.AssignS(name1, cloneExprs(idx2), loopir.CloneExpr(rhs2))
	case !isReduce1 && isReduce2:
		merged = loopir.AssignS(name1, cloneExprs(idx1), loopir.Add(loopir.CloneExpr(rhs1), loopir.CloneExpr(rhs2)))
	default: // both reduce
		merged = &loopir.Reduce{Name: name1, Idx: cloneExprs(idx1), Rhs: loopir.Add(loopir.CloneExpr(rhs1), loopir.CloneExpr(rhs2))}
	}

	np, err := ReplaceRange(p, anchor, idx, idx+2, []loopir.Stmt{merged})
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "merge_writes failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "merge_writes: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

func writeShape(s loopir.Stmt) (name string, idx []loopir.Expr, rhs loopir.Expr, isReduce, ok bool) {
	switch n := s.(type) {
	case *loopir.Assign:
		return n.Name, n.Idx, n.Rhs, false, true
	case *loopir.Reduce:
		return n.Name, n.Idx, n.Rhs, true, true
	default:
		return "", nil, nil, false, false
	}
}

// LiftReduceConstant factors a loop-invariant multiplicand out of an
// accumulation loop: a zero-init followed by a loop whose sole statement
// is `x += c * f(i)`, with c
// independent of the iterator, becomes the loop reducing `f(i)` alone
// followed by a single `x = c * x`. freeVars (binding.go) — already used
// for bind_expr's cse substitutability checks — is reused here to confirm
// c (and the accumulator's own index expressions) do not mention the
// iterator.
func LiftReduceConstant(p *loopir.Proc, initC cursor.Cursor) (*loopir.Proc, *cursor.ForwardingMap, error) {
	anchor, idx, err := nodeAnchor(initC)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.CursorKind, err, "lift_reduce_constant")
	}
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	if idx < 0 || idx+1 >= len(block) {
		return nil, nil, errcode.New(errcode.InvalidCursor, "lift_reduce_constant: cursor does not name a statement with a following sibling")
	}
	initStmt, ok := block[idx].(*loopir.Assign)
	if !ok {
		return nil, nil, errcode.New(errcode.ArgumentType, "lift_reduce_constant: expected a zero-init Assign, got %T", block[idx])
	}
	if v, litOk := toIntValue(constValue(initStmt.Rhs)); !litOk || v != 0 {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "lift_reduce_constant: init statement does not assign zero")
	}

	iter, _, loopBody, _, isLoop := loopHiAndIter(block[idx+1])
	if !isLoop {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "lift_reduce_constant: expected a loop after the init")
	}
	if len(loopBody) != 1 {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "lift_reduce_constant: loop body must be a single reduction")
	}
	red, ok := loopBody[0].(*loopir.Reduce)
	if !ok || red.Name != initStmt.Name {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "lift_reduce_constant: loop body must reduce into the initialized buffer")
	}
	mul, ok := red.Rhs.(*loopir.BinOp)
	if !ok || mul.Op != loopir.OpMul {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "lift_reduce_constant: reduction rhs must be a product")
	}

	var cExpr, fExpr loopir.Expr
	if !freeVars(mul.Lhs)[iter] {
		cExpr, fExpr = mul.Lhs, mul.Rhs
	} else if !freeVars(mul.Rhs)[iter] {
		cExpr, fExpr = mul.Rhs, mul.Lhs
	} else {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "lift_reduce_constant: neither factor is loop-invariant")
	}
	for _, ix := range red.Idx {
		if freeVars(ix)[iter] {
			return nil, nil, errcode.New(errcode.PreconditionUnmet, "lift_reduce_constant: accumulator index must not depend on the iterator")
		}
	}

	newRed := &loopir.Reduce{Name: red.Name, Idx: cloneExprs(red.Idx), Rhs: loopir.CloneExpr(fExpr)}

	var loopOut loopir.Stmt
	switch n := block[idx+1].(type) {
	case *loopir.Seq:
		loopOut = &loopir.Seq{Iter: n.Iter, Hi: loopir.CloneExpr(n.Hi), Body: []loopir.Stmt{newRed}}
	case *loopir.ForAll:
		loopOut = &loopir.ForAll{Iter: n.Iter, Hi: loopir.CloneExpr(n.Hi), Body: []loopir.Stmt{newRed}}
	}

	postScale := loopir.AssignS(red.Name, cloneExprs(red.Idx), loopir.Mul(loopir.CloneExpr(cExpr), loopir.RD(red.Name, cloneExprs(red.Idx)...)))

	replacement := []loopir.Stmt{&loopir.Assign{Name: initStmt.Name, Idx: cloneExprs(initStmt.Idx), Rhs: loopir.CloneExpr(initStmt.Rhs)}, loopOut, postScale}

	np, err := ReplaceRange(p, anchor, idx, idx+2, replacement)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "lift_reduce_constant failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "lift_reduce_constant: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

// AddUnsafeGuard wraps block in `if cond: <block>` without discharging any
// legality obligation: the caller is asserting the guard is sound, not
// asking this package to prove it. It fails only when block does not name
// a block or the guarded procedure no longer passes loopir.Check.
func AddUnsafeGuard(p *loopir.Proc, block cursor.Cursor, cond loopir.Expr) (*loopir.Proc, *cursor.ForwardingMap, error) {
	anchor, lo, hi, err := blockRange(block)
	if err != nil {
		return nil, nil, err
	}
	blk, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	guarded := []loopir.Stmt{loopir.IfS(loopir.CloneExpr(cond), loopir.CloneStmts(blk[lo:hi])...)}
	np, err := ReplaceRange(p, anchor, lo, hi, guarded)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "add_unsafe_guard failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "add_unsafe_guard: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}
