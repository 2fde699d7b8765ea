package schedule

import (
	"exo/internal/cursor"
	"exo/internal/effects"
	"exo/internal/errcode"
	"exo/internal/loopir"
)

// loopHiAndIter reports the iterator, bound, and body of a Seq/ForAll node,
// plus whether it is a ForAll (parallel) rather than a Seq (sequential) —
// every primitive in this file reads the loop kind off the node itself
// rather than taking a separate kind parameter, per the Seq-vs-ForAll Open
// Question resolution already recorded for this package.
func loopHiAndIter(s loopir.Stmt) (iter string, hi loopir.Expr, body []loopir.Stmt, isForAll, ok bool) {
	switch n := s.(type) {
	case *loopir.Seq:
		return n.Iter, n.Hi, n.Body, false, true
	case *loopir.ForAll:
		return n.Iter, n.Hi, n.Body, true, true
	default:
		return "", nil, nil, false, false
	}
}

func rebuildLoop(isForAll bool, iter string, hi loopir.Expr, body []loopir.Stmt) loopir.Stmt {
	if isForAll {
		return &loopir.ForAll{Iter: iter, Hi: hi, Body: body}
	}
	return &loopir.Seq{Iter: iter, Hi: hi, Body: body}
}

func filterWrites(accs []effects.Access) []effects.Access {
	out := make([]effects.Access, 0, len(accs))
	for _, a := range accs {
		if a.Kind == effects.AccessWrite || a.Kind == effects.AccessReduce {
			out = append(out, a)
		}
	}
	return out
}

// linExprEqual compares two affine forms for exact structural equality —
// sufficient (not merely necessary) for the loop-splitting legality checks
// in this file, which all reduce to "does this index evaluate the same way
// for every value of the shared iterator."
func linExprEqual(a, b effects.LinExpr) bool {
	if a.Const != b.Const {
		return false
	}
	seen := map[string]bool{}
	for k := range a.Coeffs {
		seen[k] = true
	}
	for k := range b.Coeffs {
		seen[k] = true
	}
	for k := range seen {
		if a.Coeffs[k] != b.Coeffs[k] {
			return false
		}
	}
	return true
}

func affineIdxList(idx []loopir.Expr) ([]effects.LinExpr, bool) {
	out := make([]effects.LinExpr, len(idx))
	for i, e := range idx {
		l, ok := effects.Affine(e)
		if !ok {
			return nil, false
		}
		out[i] = l
	}
	return out, true
}

// noCrossDependence reports whether every read of a buffer written in
// writes sees an index that is affinely identical to that buffer's write
// index, for every value of the shared iterator. This is the same
// "same-location-every-iteration" sufficient condition fuse and
// fission/autofission both rest their dependence precondition on: it is
// the only shape of cross-statement buffer dependence that a reordering of
// whole iteration ranges (splitting one loop into two, or merging two
// loops into one) cannot disturb.
func noCrossDependence(writes []effects.Access, readBlock []loopir.Stmt) bool {
	byBuf := map[string][]effects.LinExpr{}
	for _, w := range writes {
		lin, ok := affineIdxList(w.Idx)
		if !ok {
			byBuf[w.Buf] = nil
			continue
		}
		if existing, seen := byBuf[w.Buf]; seen {
			if existing == nil || !linListEqual(existing, lin) {
				byBuf[w.Buf] = nil
			}
			continue
		}
		byBuf[w.Buf] = lin
	}
	for _, r := range effects.AccessesOfBlock(readBlock) {
		if r.Kind != effects.AccessRead {
			continue
		}
		lin, touched := byBuf[r.Buf]
		if !touched {
			continue
		}
		if lin == nil {
			return false
		}
		rLin, ok := affineIdxList(r.Idx)
		if !ok || !linListEqual(lin, rLin) {
			return false
		}
	}
	return true
}

func linListEqual(a, b []effects.LinExpr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !linExprEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// DivideLoop is the core loop split: given bound N, produce an outer loop
// of N/q nesting an inner loop of q, body indexed by q*hi+lo. The three
// tail strategies use the following closed forms: cut emits a trailing
// remainder loop of length N mod q; guard emits a
// single ceil(N/q) outer loop with the inner body wrapped in a bounds
// guard; cut_and_guard folds the remainder into one extra length-1 outer
// trip containing a guarded inner loop, so every outer trip (including the
// last) has the same inner shape.
func DivideLoop(p *loopir.Proc, c cursor.Cursor, q int, hiName, loName, tail string, perfect bool) (*loopir.Proc, *cursor.ForwardingMap, error) {
	if q <= 0 {
		return nil, nil, errcode.New(errcode.ArgumentType, "divide_loop: q must be positive, got %d", q)
	}
	switch tail {
	case "cut", "guard", "cut_and_guard":
	default:
		return nil, nil, errcode.New(errcode.ArgumentType, "divide_loop: tail must be %q, %q, or %q, got %q", "cut", "guard", "cut_and_guard", tail)
	}
	anchor, idx, err := nodeAnchor(c)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.CursorKind, err, "divide_loop")
	}
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	if idx < 0 || idx >= len(block) {
		return nil, nil, errcode.New(errcode.InvalidCursor, "cursor does not resolve to a statement")
	}
	iter, hi, body, isForAll, ok := loopHiAndIter(block[idx])
	if !ok {
		return nil, nil, errcode.New(errcode.ArgumentType, "divide_loop: expected a loop, got %T", block[idx])
	}

	if perfect {
		if hv, litOk := toIntValue(constValue(hi)); litOk {
			if hv%q != 0 {
				return nil, nil, errcode.New(errcode.PreconditionUnmet, "divide_loop: %d does not evenly divide bound %d", q, hv)
			}
		} else {
			return nil, nil, errcode.New(errcode.PreconditionUnmet, "divide_loop: cannot verify perfect=True against a non-literal bound")
		}
	}

	qE := loopir.CI(q)
	combinedIdx := loopir.Add(loopir.Mul(loopir.CloneExpr(qE), loopir.RD(hiName)), loopir.RD(loName))
	newBody := SubstBlock(body, iter, combinedIdx)

	var replacement []loopir.Stmt
	switch tail {
	case "cut":
		outerHi := foldConstBound(loopir.Div(loopir.CloneExpr(hi), loopir.CloneExpr(qE)))
		inner := rebuildLoop(isForAll, loName, loopir.CloneExpr(qE), newBody)
		outer := rebuildLoop(isForAll, hiName, outerHi, []loopir.Stmt{inner})

		remIter := freshStageIter(loName, 1)
		remIdx := loopir.Add(loopir.Mul(loopir.CloneExpr(qE), loopir.Div(loopir.CloneExpr(hi), loopir.CloneExpr(qE))), loopir.RD(remIter))
		remBody := SubstBlock(loopir.CloneStmts(body), iter, remIdx)
		remHi := foldConstBound(loopir.Mod(loopir.CloneExpr(hi), loopir.CloneExpr(qE)))
		remLoop := rebuildLoop(isForAll, remIter, remHi, remBody)
		replacement = []loopir.Stmt{outer, remLoop}

	case "guard":
		outerHi := foldConstBound(loopir.Div(loopir.Add(loopir.CloneExpr(hi), loopir.CI(q-1)), loopir.CloneExpr(qE)))
		guard := loopir.IfS(loopir.Lt(loopir.CloneExpr(combinedIdx), loopir.CloneExpr(hi)), newBody...)
		inner := rebuildLoop(isForAll, loName, loopir.CloneExpr(qE), []loopir.Stmt{guard})
		outer := rebuildLoop(isForAll, hiName, outerHi, []loopir.Stmt{inner})
		replacement = []loopir.Stmt{outer}

	case "cut_and_guard":
		outerHi := foldConstBound(loopir.Div(loopir.CloneExpr(hi), loopir.CloneExpr(qE)))
		inner := rebuildLoop(isForAll, loName, loopir.CloneExpr(qE), newBody)
		outer := rebuildLoop(isForAll, hiName, outerHi, []loopir.Stmt{inner})

		remInnerIter := freshStageIter(loName, 2)
		remIdx := loopir.Add(loopir.Mul(loopir.CloneExpr(qE), loopir.Div(loopir.CloneExpr(hi), loopir.CloneExpr(qE))), loopir.RD(remInnerIter))
		remBody := SubstBlock(loopir.CloneStmts(body), iter, remIdx)
		remGuard := loopir.IfS(loopir.Lt(loopir.RD(remInnerIter), foldConstBound(loopir.Mod(loopir.CloneExpr(hi), loopir.CloneExpr(qE)))), remBody...)
		remInner := rebuildLoop(isForAll, remInnerIter, loopir.CloneExpr(qE), []loopir.Stmt{remGuard})
		extraOuterIter := freshStageIter(hiName, 1)
		remOuter := rebuildLoop(isForAll, extraOuterIter, loopir.CI(1), []loopir.Stmt{remInner})
		replacement = []loopir.Stmt{outer, remOuter}
	}

	np, err := ReplaceRange(p, anchor, idx, idx+1, replacement)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "divide_loop failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "divide_loop: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

// BoundAndGuard is divide_loop's tail="guard" variant immediately
// simplified: Simplify folds the constant arithmetic of the new outer
// bound. The inner bounds guard stays in place even when q divides the
// bound, since Simplify drops an If only when its condition folds to a
// literal and this one reads both new iterators.
func BoundAndGuard(p *loopir.Proc, c cursor.Cursor, q int, hiName, loName string) (*loopir.Proc, *cursor.ForwardingMap, error) {
	np, fwd1, err := DivideLoop(p, c, q, hiName, loName, "guard", false)
	if err != nil {
		return nil, nil, err
	}
	np, fwd2, err := Simplify(np)
	if err != nil {
		return nil, nil, err
	}
	return np, cursor.Compose(fwd1, fwd2), nil
}

func constValue(e loopir.Expr) any {
	if c, ok := e.(*loopir.Const); ok {
		return c.Value
	}
	return nil
}

// foldConstBound evaluates a newly-built bound expression down to a literal
// *loopir.Const when both its operands are already literal, the same
// literal-folding discipline allocgeom.go's DivideDim/MultDim apply to
// computed extents: a loop bound is a shape value computed once, not a
// per-iteration index, so there is no reason to leave arithmetic on two
// known constants as an unevaluated BinOp.
func foldConstBound(e loopir.Expr) loopir.Expr {
	b, ok := e.(*loopir.BinOp)
	if !ok {
		return e
	}
	l, lok := toIntValue(constValue(b.Lhs))
	r, rok := toIntValue(constValue(b.Rhs))
	if !lok || !rok {
		return e
	}
	switch b.Op {
	case loopir.OpAdd:
		return loopir.CI(l + r)
	case loopir.OpSub:
		return loopir.CI(l - r)
	case loopir.OpMul:
		return loopir.CI(l * r)
	case loopir.OpDiv:
		if r == 0 {
			return e
		}
		return loopir.CI(l / r)
	case loopir.OpMod:
		if r == 0 {
			return e
		}
		return loopir.CI(l % r)
	default:
		return e
	}
}

// MultLoops is divide_loop's inverse: the cursor
// must name an outer loop whose entire body is a single inner loop of the
// same kind with a literal bound; the two are collapsed into one loop
// named name with the combined bound, recovering the original iterators by
// division and modulus.
func MultLoops(p *loopir.Proc, c cursor.Cursor, name string) (*loopir.Proc, *cursor.ForwardingMap, error) {
	anchor, idx, err := nodeAnchor(c)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.CursorKind, err, "mult_loops")
	}
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	if idx < 0 || idx >= len(block) {
		return nil, nil, errcode.New(errcode.InvalidCursor, "cursor does not resolve to a statement")
	}
	outerIter, outerHi, outerBody, isForAll, ok := loopHiAndIter(block[idx])
	if !ok {
		return nil, nil, errcode.New(errcode.ArgumentType, "mult_loops: expected a loop, got %T", block[idx])
	}
	if len(outerBody) != 1 {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "mult_loops: outer loop's body must be exactly one nested loop")
	}
	innerIter, innerHi, innerBody, innerIsForAll, ok2 := loopHiAndIter(outerBody[0])
	if !ok2 {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "mult_loops: outer loop's sole statement must be a loop, got %T", outerBody[0])
	}
	if innerIsForAll != isForAll {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "mult_loops: inner and outer loop kinds must match")
	}
	cLit, litOk := toIntValue(constValue(innerHi))
	if !litOk || cLit <= 0 {
		return nil, nil, errcode.New(errcode.ArgumentType, "mult_loops: inner loop must have a positive literal bound")
	}

	combinedHi := foldConstBound(loopir.Mul(loopir.CloneExpr(outerHi), loopir.CI(cLit)))
	newBody := SubstBlock(innerBody, innerIter, loopir.Mod(loopir.RD(name), loopir.CI(cLit)))
	newBody = SubstBlock(newBody, outerIter, loopir.Div(loopir.RD(name), loopir.CI(cLit)))
	newLoop := rebuildLoop(isForAll, name, combinedHi, newBody)

	np, err := ReplaceRange(p, anchor, idx, idx+1, []loopir.Stmt{newLoop})
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "mult_loops failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "mult_loops: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

// CutLoop splits [0,N) into [0,k) and [k,N): integer k only, no
// perfect/tail machinery — the simpler sibling of
// divide_loop that DivideLoop's tail="cut" path generalizes.
func CutLoop(p *loopir.Proc, c cursor.Cursor, k int) (*loopir.Proc, *cursor.ForwardingMap, error) {
	if k < 0 {
		return nil, nil, errcode.New(errcode.ArgumentType, "cut_loop: k must be >= 0, got %d", k)
	}
	anchor, idx, err := nodeAnchor(c)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.CursorKind, err, "cut_loop")
	}
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	if idx < 0 || idx >= len(block) {
		return nil, nil, errcode.New(errcode.InvalidCursor, "cursor does not resolve to a statement")
	}
	iter, hi, body, isForAll, ok := loopHiAndIter(block[idx])
	if !ok {
		return nil, nil, errcode.New(errcode.ArgumentType, "cut_loop: expected a loop, got %T", block[idx])
	}
	if hv, litOk := toIntValue(constValue(hi)); litOk && k > hv {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "cut_loop: k=%d exceeds loop bound %d", k, hv)
	}

	firstLoop := rebuildLoop(isForAll, iter, loopir.CI(k), body)

	secondIter := freshStageIter(iter, 1)
	secondBody := SubstBlock(loopir.CloneStmts(body), iter, loopir.Add(loopir.CI(k), loopir.RD(secondIter)))
	secondHi := foldConstBound(loopir.Sub(loopir.CloneExpr(hi), loopir.CI(k)))
	secondLoop := rebuildLoop(isForAll, secondIter, secondHi, secondBody)

	np, err := ReplaceRange(p, anchor, idx, idx+1, []loopir.Stmt{firstLoop, secondLoop})
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "cut_loop failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "cut_loop: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

// ReorderLoops swaps two perfectly-nested loops. The dependence
// precondition ("admits swap") is discharged conservatively via
// effects.Independent, the same
// write-disjointness obligation every ForAll must already satisfy: if the
// inner body's writes are independent across either iterator individually,
// no pair of iterations can observe a different result under either
// nesting order.
func ReorderLoops(p *loopir.Proc, c cursor.Cursor) (*loopir.Proc, *cursor.ForwardingMap, error) {
	anchor, idx, err := nodeAnchor(c)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.CursorKind, err, "reorder_loops")
	}
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	if idx < 0 || idx >= len(block) {
		return nil, nil, errcode.New(errcode.InvalidCursor, "cursor does not resolve to a statement")
	}
	outerIter, outerHi, outerBody, outerIsForAll, ok := loopHiAndIter(block[idx])
	if !ok {
		return nil, nil, errcode.New(errcode.ArgumentType, "reorder_loops: expected a loop, got %T", block[idx])
	}
	if len(outerBody) != 1 {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "reorder_loops: outer loop must be perfectly nested (single inner statement)")
	}
	innerIter, innerHi, innerBody, innerIsForAll, ok2 := loopHiAndIter(outerBody[0])
	if !ok2 {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "reorder_loops: outer loop's sole statement must be a loop, got %T", outerBody[0])
	}

	writes := filterWrites(effects.AccessesOfBlock(innerBody))
	env := effects.Env{}.WithBinder(outerIter, loopir.CI(0), outerHi).WithBinder(innerIter, loopir.CI(0), innerHi)
	for _, iter := range []string{outerIter, innerIter} {
		indep, cex, ierr := effects.Independent(writes, iter, env)
		if ierr != nil {
			return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, ierr, "reorder_loops: dependence undecidable")
		}
		if !indep {
			return nil, nil, errcode.New(errcode.PreconditionUnmet, "reorder_loops: %s", cex)
		}
	}

	newInner := rebuildLoop(outerIsForAll, outerIter, outerHi, innerBody)
	newOuter := rebuildLoop(innerIsForAll, innerIter, innerHi, []loopir.Stmt{newInner})

	np, err := ReplaceRange(p, anchor, idx, idx+1, []loopir.Stmt{newOuter})
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "reorder_loops failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "reorder_loops: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

// Fuse merges two adjacent loops of the same kind and bound, or two
// adjacent Ifs with syntactically identical conditions. The
// no-backward-dependence precondition is noCrossDependence,
// checked after renaming s2's iterator to s1's so both bodies share one
// name to reason about.
func Fuse(p *loopir.Proc, s1, s2 cursor.Cursor) (*loopir.Proc, *cursor.ForwardingMap, error) {
	anchor1, idx1, err := nodeAnchor(s1)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.CursorKind, err, "fuse")
	}
	anchor2, idx2, err := nodeAnchor(s2)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.CursorKind, err, "fuse")
	}
	if anchor1.Field != anchor2.Field || anchor1.Path.String() != anchor2.Path.String() {
		return nil, nil, errcode.New(errcode.CursorKind, "fuse: s1 and s2 must be siblings in the same block")
	}
	if idx2 != idx1+1 {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "fuse: s1 and s2 must be adjacent")
	}
	block, err := anchor1.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	a, b := block[idx1], block[idx2]

	var fused loopir.Stmt
	switch n1 := a.(type) {
	case *loopir.Seq, *loopir.ForAll:
		iter1, hi1, body1, isForAll1, _ := loopHiAndIter(a)
		iter2, hi2, body2, isForAll2, ok2 := loopHiAndIter(b)
		if !ok2 {
			return nil, nil, errcode.New(errcode.ArgumentType, "fuse: both statements must be loops, got %T and %T", a, b)
		}
		if isForAll1 != isForAll2 {
			return nil, nil, errcode.New(errcode.PreconditionUnmet, "fuse: loop kinds differ")
		}
		if hi1.String() != hi2.String() {
			return nil, nil, errcode.New(errcode.PreconditionUnmet, "fuse: loop bounds differ")
		}
		body2Renamed := RenameIter(body2, iter2, iter1)
		writes1 := filterWrites(effects.AccessesOfBlock(body1))
		if !noCrossDependence(writes1, body2Renamed) {
			return nil, nil, errcode.New(errcode.PreconditionUnmet, "fuse: s2 may read a location s1 writes at a different iteration")
		}
		merged := append(append([]loopir.Stmt{}, body1...), body2Renamed...)
		fused = rebuildLoop(isForAll1, iter1, hi1, merged)

	case *loopir.If:
		n2, ok2 := b.(*loopir.If)
		if !ok2 {
			return nil, nil, errcode.New(errcode.ArgumentType, "fuse: both statements must be Ifs, got %T and %T", a, b)
		}
		if n1.Cond.String() != n2.Cond.String() {
			return nil, nil, errcode.New(errcode.PreconditionUnmet, "fuse: If conditions differ")
		}
		writes1 := filterWrites(effects.AccessesOfBlock(n1.Body))
		if !noCrossDependence(writes1, n2.Body) {
			return nil, nil, errcode.New(errcode.PreconditionUnmet, "fuse: s2's body may read a location s1's body writes")
		}
		fused = &loopir.If{
			Cond:   loopir.CloneExpr(n1.Cond),
			Body:   append(append([]loopir.Stmt{}, n1.Body...), n2.Body...),
			Orelse: append(append([]loopir.Stmt{}, n1.Orelse...), n2.Orelse...),
		}

	default:
		return nil, nil, errcode.New(errcode.ArgumentType, "fuse: expected two loops or two Ifs, got %T", a)
	}

	np, err := ReplaceRange(p, anchor1, idx1, idx2+1, []loopir.Stmt{fused})
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "fuse failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "fuse: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

// fissionOnce splits one enclosing level (the statement owning the gap's
// block) into two copies, one holding the statements before the gap and
// one holding the statements after, and splices both into the grandparent
// block in the enclosing statement's place. For an If, the branch not
// being split is carried whole by the "before" copy and left empty in the
// "after" copy, so it still executes exactly once regardless of which
// branch the original condition takes.
func fissionOnce(p *loopir.Proc, anchor cursor.Anchor, at int) (*loopir.Proc, cursor.Anchor, int, error) {
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, cursor.Anchor{}, 0, errcode.FromCursor(err)
	}
	before := block[:at]
	after := block[at:]

	if len(anchor.Path) == 0 {
		return nil, cursor.Anchor{}, 0, errcode.New(errcode.PreconditionUnmet, "fission: already at the top of the procedure")
	}
	grandParentPath, grandSel, _ := anchor.Path.Parent()
	encStmt := nodeAt(p, anchor.Path)

	var beforeStmt, afterStmt loopir.Stmt
	switch n := encStmt.(type) {
	case *loopir.Seq:
		writes := filterWrites(effects.AccessesOfBlock(before))
		if !noCrossDependence(writes, after) {
			return nil, cursor.Anchor{}, 0, errcode.New(errcode.PreconditionUnmet, "fission: a dependence crosses the split")
		}
		beforeStmt = &loopir.Seq{Iter: n.Iter, Hi: loopir.CloneExpr(n.Hi), Body: before}
		afterIter := freshStageIter(n.Iter, 3)
		afterBody := RenameIter(after, n.Iter, afterIter)
		afterStmt = &loopir.Seq{Iter: afterIter, Hi: loopir.CloneExpr(n.Hi), Body: afterBody}
	case *loopir.ForAll:
		writes := filterWrites(effects.AccessesOfBlock(before))
		if !noCrossDependence(writes, after) {
			return nil, cursor.Anchor{}, 0, errcode.New(errcode.PreconditionUnmet, "fission: a dependence crosses the split")
		}
		beforeStmt = &loopir.ForAll{Iter: n.Iter, Hi: loopir.CloneExpr(n.Hi), Body: before}
		afterIter := freshStageIter(n.Iter, 3)
		afterBody := RenameIter(after, n.Iter, afterIter)
		afterStmt = &loopir.ForAll{Iter: afterIter, Hi: loopir.CloneExpr(n.Hi), Body: afterBody}
	case *loopir.If:
		switch anchor.Field {
		case cursor.FieldBody:
			beforeStmt = &loopir.If{Cond: loopir.CloneExpr(n.Cond), Body: before, Orelse: loopir.CloneStmts(n.Orelse)}
			afterStmt = &loopir.If{Cond: loopir.CloneExpr(n.Cond), Body: after, Orelse: nil}
		case cursor.FieldOrelse:
			beforeStmt = &loopir.If{Cond: loopir.CloneExpr(n.Cond), Body: loopir.CloneStmts(n.Body), Orelse: before}
			afterStmt = &loopir.If{Cond: loopir.CloneExpr(n.Cond), Body: nil, Orelse: after}
		default:
			return nil, cursor.Anchor{}, 0, errcode.New(errcode.Bug, "fission: unexpected If field %q", anchor.Field)
		}
	default:
		return nil, cursor.Anchor{}, 0, errcode.New(errcode.PreconditionUnmet, "fission: enclosing statement must be a loop or an If, got %T", encStmt)
	}

	var grandBlock []loopir.Stmt
	if len(grandParentPath) == 0 {
		grandBlock = p.Body
	} else {
		grandBlock, err = stmtBlockField(nodeAt(p, grandParentPath), grandSel.Field)
		if err != nil {
			return nil, cursor.Anchor{}, 0, err
		}
	}
	encIdx := grandSel.Index
	if encIdx < 0 || encIdx >= len(grandBlock) {
		return nil, cursor.Anchor{}, 0, errcode.New(errcode.InvalidCursor, "cursor no longer resolves")
	}

	np, err := ReplaceRange(p, cursor.Anchor{Path: grandParentPath, Field: grandSel.Field}, encIdx, encIdx+1, []loopir.Stmt{beforeStmt, afterStmt})
	if err != nil {
		return nil, cursor.Anchor{}, 0, errcode.Wrap(errcode.Bug, err, "fission failed")
	}
	return np, cursor.Anchor{Path: grandParentPath, Field: grandSel.Field}, encIdx, nil
}

// Fission splits the gap's n enclosing loop/if levels into two copies
// each: the statements before the gap and the statements after.
// autofission additionally removes any resulting loop whose body became
// empty, or is idempotent and independent of the loop's iterator (the same
// add_loop/remove_loop idempotence notion, reused here for the cleanup
// pass).
func Fission(p *loopir.Proc, gap cursor.Cursor, n int) (*loopir.Proc, *cursor.ForwardingMap, error) {
	return fission(p, gap, n, false)
}

func AutoFission(p *loopir.Proc, gap cursor.Cursor, n int) (*loopir.Proc, *cursor.ForwardingMap, error) {
	return fission(p, gap, n, true)
}

func fission(p *loopir.Proc, gap cursor.Cursor, n int, auto bool) (*loopir.Proc, *cursor.ForwardingMap, error) {
	if n < 1 {
		return nil, nil, errcode.New(errcode.ArgumentType, "fission: n must be >= 1, got %d", n)
	}
	if gap.Kind() != cursor.KindGap {
		return nil, nil, errcode.New(errcode.CursorKind, "fission: expected a Gap cursor, got %s", gap.Kind())
	}
	anchor := gap.Anchor()
	at, _ := gap.Range()

	np := p
	for level := 0; level < n; level++ {
		next, nextAnchor, nextIdx, err := fissionOnce(np, anchor, at)
		if err != nil {
			return nil, nil, err
		}
		np = next
		anchor = nextAnchor
		at = nextIdx + 1
	}

	if auto {
		block, err := anchor.StmtBlock(np)
		if err != nil {
			return nil, nil, errcode.FromCursor(err)
		}
		cleaned := autoCleanBlock(block)
		np, err = setBlock(np, anchor, cleaned)
		if err != nil {
			return nil, nil, errcode.Wrap(errcode.Bug, err, "autofission cleanup failed")
		}
	}

	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "fission: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

// autoCleanBlock drops any Seq/ForAll in stmts whose body is empty or
// idempotent-and-independent-of-its-iterator, recursing into surviving
// nested blocks — autofission's extra cleanup over plain fission.
func autoCleanBlock(stmts []loopir.Stmt) []loopir.Stmt {
	out := make([]loopir.Stmt, 0, len(stmts))
	for _, s := range stmts {
		switch n := s.(type) {
		case *loopir.Seq:
			body := autoCleanBlock(n.Body)
			if loopRemovable(n.Iter, body) {
				out = append(out, body...)
				continue
			}
			c := *n
			c.Body = body
			out = append(out, &c)
		case *loopir.ForAll:
			body := autoCleanBlock(n.Body)
			if loopRemovable(n.Iter, body) {
				out = append(out, body...)
				continue
			}
			c := *n
			c.Body = body
			out = append(out, &c)
		default:
			out = append(out, s)
		}
	}
	return out
}

func loopRemovable(iter string, body []loopir.Stmt) bool {
	if len(body) == 0 {
		return true
	}
	if ok, _ := effects.Idempotent(body); !ok {
		return false
	}
	return !freeVarsOfBlock(body)[iter]
}

func freeVarsOfBlock(body []loopir.Stmt) map[string]bool {
	out := map[string]bool{}
	var walk func([]loopir.Stmt)
	walk = func(stmts []loopir.Stmt) {
		for _, s := range stmts {
			switch n := s.(type) {
			case *loopir.Assign:
				for name := range freeVars(n.Rhs) {
					out[name] = true
				}
				for _, e := range n.Idx {
					for name := range freeVars(e) {
						out[name] = true
					}
				}
			case *loopir.Reduce:
				for name := range freeVars(n.Rhs) {
					out[name] = true
				}
				for _, e := range n.Idx {
					for name := range freeVars(e) {
						out[name] = true
					}
				}
			case *loopir.If:
				for name := range freeVars(n.Cond) {
					out[name] = true
				}
				walk(n.Body)
				walk(n.Orelse)
			case *loopir.Seq:
				for name := range freeVars(n.Hi) {
					out[name] = true
				}
				walk(n.Body)
			case *loopir.ForAll:
				for name := range freeVars(n.Hi) {
					out[name] = true
				}
				walk(n.Body)
			}
		}
	}
	walk(body)
	return out
}

// RemoveLoop drops the surrounding loop when its body is idempotent and
// independent of the iterator.
func RemoveLoop(p *loopir.Proc, c cursor.Cursor) (*loopir.Proc, *cursor.ForwardingMap, error) {
	anchor, idx, err := nodeAnchor(c)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.CursorKind, err, "remove_loop")
	}
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	if idx < 0 || idx >= len(block) {
		return nil, nil, errcode.New(errcode.InvalidCursor, "cursor does not resolve to a statement")
	}
	iter, _, body, _, ok := loopHiAndIter(block[idx])
	if !ok {
		return nil, nil, errcode.New(errcode.ArgumentType, "remove_loop: expected a loop, got %T", block[idx])
	}
	if ok, why := effects.Idempotent(body); !ok {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "remove_loop: body is not idempotent: %s", why)
	}
	if freeVarsOfBlock(body)[iter] {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "remove_loop: body depends on iterator %q", iter)
	}

	np, err := ReplaceRange(p, anchor, idx, idx+1, loopir.CloneStmts(body))
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "remove_loop failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "remove_loop: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

// AddLoop wraps a block in a new loop. Without guard it requires the same
// idempotence proof remove_loop's inverse needs; with guard=True it
// instead wraps the block in `if name == 0`, trading the proof obligation
// for a runtime check. isForAll chooses the new loop's kind — unlike the ops above,
// add_loop's cursor names a block, not an existing loop, so there is no
// node to read a kind off of and it must be an explicit parameter.
func AddLoop(p *loopir.Proc, c cursor.Cursor, name string, hi loopir.Expr, guard, isForAll bool) (*loopir.Proc, *cursor.ForwardingMap, error) {
	anchor, lo, hi2, err := blockRange(c)
	if err != nil {
		return nil, nil, err
	}
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	body := block[lo:hi2]

	var newLoop loopir.Stmt
	if guard {
		guarded := loopir.IfS(loopir.Bin(loopir.OpEq, loopir.RD(name), loopir.CI(0)), body...)
		newLoop = rebuildLoop(isForAll, name, loopir.CloneExpr(hi), []loopir.Stmt{guarded})
	} else {
		if ok, why := effects.Idempotent(body); !ok {
			return nil, nil, errcode.New(errcode.PreconditionUnmet, "add_loop: body is not idempotent: %s", why)
		}
		newLoop = rebuildLoop(isForAll, name, loopir.CloneExpr(hi), body)
	}

	np, err := ReplaceRange(p, anchor, lo, hi2, []loopir.Stmt{newLoop})
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "add_loop failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "add_loop: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

// UnrollLoop splices hi copies of a literal-bound loop's body, iterator
// substituted by each constant; bound 0 becomes Pass.
func UnrollLoop(p *loopir.Proc, c cursor.Cursor) (*loopir.Proc, *cursor.ForwardingMap, error) {
	anchor, idx, err := nodeAnchor(c)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.CursorKind, err, "unroll_loop")
	}
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	if idx < 0 || idx >= len(block) {
		return nil, nil, errcode.New(errcode.InvalidCursor, "cursor does not resolve to a statement")
	}
	iter, hi, body, _, ok := loopHiAndIter(block[idx])
	if !ok {
		return nil, nil, errcode.New(errcode.ArgumentType, "unroll_loop: expected a loop, got %T", block[idx])
	}
	n, litOk := toIntValue(constValue(hi))
	if !litOk || n < 0 {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "unroll_loop: loop bound must be a non-negative literal")
	}

	var replacement []loopir.Stmt
	if n == 0 {
		replacement = []loopir.Stmt{&loopir.Pass{}}
	} else {
		replacement = make([]loopir.Stmt, 0, n*len(body))
		for i := 0; i < n; i++ {
			replacement = append(replacement, SubstBlock(loopir.CloneStmts(body), iter, loopir.CI(i))...)
		}
	}

	np, err := ReplaceRange(p, anchor, idx, idx+1, replacement)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "unroll_loop failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "unroll_loop: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

// LiftScope hoists an If or Seq one level outward, duplicating the
// statements that sat alongside it into its branches/body as needed so
// every reachable interleaving is preserved.
// Reuses allocLiftTargets, the same path-resolution helper lift_alloc is
// built on, since both operations share the same "splice this statement
// out of its enclosing block and back into the grandparent block" shape —
// lift_scope just moves the statement whole rather than moving an
// Alloc/Free pair while leaving everything else behind.
func LiftScope(p *loopir.Proc, c cursor.Cursor) (*loopir.Proc, *cursor.ForwardingMap, error) {
	path := c.Path()
	encStmt, ownerSel, childBlock, grandParentPath, grandSel, grandBlock, err := allocLiftTargets(p, path)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "lift_scope")
	}
	idx := ownerSel.Index
	if idx < 0 || idx >= len(childBlock) {
		return nil, nil, errcode.New(errcode.InvalidCursor, "cursor no longer resolves")
	}
	target := childBlock[idx]
	before := childBlock[:idx]
	after := childBlock[idx+1:]

	var lifted []loopir.Stmt
	switch t := target.(type) {
	case *loopir.Seq:
		switch encStmt.(type) {
		case *loopir.Seq, *loopir.ForAll:
			eIter, eHi, _, eIsForAll, _ := loopHiAndIter(encStmt)
			wrap := func(stmts []loopir.Stmt) []loopir.Stmt {
				if len(stmts) == 0 {
					return nil
				}
				return []loopir.Stmt{rebuildLoop(eIsForAll, eIter, loopir.CloneExpr(eHi), stmts)}
			}
			newBody := append(append(wrap(before), loopir.CloneStmts(t.Body)...), wrap(after)...)
			lifted = []loopir.Stmt{&loopir.Seq{Iter: t.Iter, Hi: t.Hi, Body: newBody}}
		default:
			return nil, nil, errcode.New(errcode.PreconditionUnmet, "lift_scope: enclosing statement must be a loop, got %T", encStmt)
		}
	case *loopir.If:
		switch encStmt.(type) {
		case *loopir.Seq, *loopir.ForAll:
			eIter, eHi, _, eIsForAll, _ := loopHiAndIter(encStmt)
			wrap := func(stmts []loopir.Stmt) []loopir.Stmt {
				if len(stmts) == 0 {
					return nil
				}
				return []loopir.Stmt{rebuildLoop(eIsForAll, eIter, loopir.CloneExpr(eHi), stmts)}
			}
			newIf := &loopir.If{
				Cond:   t.Cond,
				Body:   append(append(wrap(before), loopir.CloneStmts(t.Body)...), wrap(after)...),
				Orelse: append(append(wrap(before), loopir.CloneStmts(t.Orelse)...), wrap(after)...),
			}
			lifted = []loopir.Stmt{newIf}
		default:
			return nil, nil, errcode.New(errcode.PreconditionUnmet, "lift_scope: enclosing statement must be a loop, got %T", encStmt)
		}
	default:
		return nil, nil, errcode.New(errcode.ArgumentType, "lift_scope: expected an If or Seq, got %T", target)
	}

	encIdx := grandSel.Index
	if encIdx < 0 || encIdx >= len(grandBlock) {
		return nil, nil, errcode.New(errcode.InvalidCursor, "cursor no longer resolves")
	}
	np, err := ReplaceRange(p, cursor.Anchor{Path: grandParentPath, Field: grandSel.Field}, encIdx, encIdx+1, lifted)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "lift_scope failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "lift_scope: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}
