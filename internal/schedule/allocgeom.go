package schedule

import (
	"exo/internal/cursor"
	"exo/internal/effects"
	"exo/internal/errcode"
	"exo/internal/loopir"
)

// ExpandDim adds a new outermost dimension of extent sizeExpr to buf, and
// threads idxExpr through as the new leading coordinate of every existing
// access. This implementation always prepends the new dimension outermost:
// there is no position argument to pick between outermost and innermost
// placement, and prepending matches how every other buffer/loop-introducing
// primitive in this package orders new structure (ExtractSubproc's
// closed-over parameters, divide_loop's outer-then-inner nesting) —
// recorded as an Open-Question resolution in DESIGN.md.
//
// Precondition checking is necessarily partial: "size_expr > 0 and
// 0 <= idx_expr < size_expr on every path reaching each use" is, in
// general, a question about symbolic expressions under whatever binders
// enclose each call site, outside the affine fragment this engine commits
// to deciding everywhere. When both expressions are literal constants the
// bound is checked directly; otherwise the caller's obligation is trusted,
// matching how set_precision's re-typecheck is the only check this package
// performs on symbolic type arguments.
func ExpandDim(p *loopir.Proc, buf string, sizeExpr, idxExpr loopir.Expr) (*loopir.Proc, *cursor.ForwardingMap, error) {
	if err := checkLiteralBound(sizeExpr, idxExpr); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "expand_dim")
	}
	np := p.Clone()
	np.Body = rewriteBufAccesses(np.Body, buf, func(idx []loopir.Expr) []loopir.Expr {
		return append([]loopir.Expr{loopir.CloneExpr(idxExpr)}, cloneExprs(idx)...)
	})
	if err := setDeclDims(np, buf, func(dims []loopir.Expr) []loopir.Expr {
		return append([]loopir.Expr{loopir.CloneExpr(sizeExpr)}, dims...)
	}); err != nil {
		return nil, nil, err
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "expand_dim: %q no longer typechecks", buf)
	}
	return np, cursor.Identity(), nil
}

// checkLiteralBound verifies 0 <= idx < size when both expressions are
// literal constants, and validates size > 0 whenever it is one.
func checkLiteralBound(sizeExpr, idxExpr loopir.Expr) error {
	if sc, ok := sizeExpr.(*loopir.Const); ok {
		sv, ok := toIntValue(sc.Value)
		if ok && sv <= 0 {
			return errcode.New(errcode.PreconditionUnmet, "size_expr must be > 0, got %d", sv)
		}
		if ic, ok2 := idxExpr.(*loopir.Const); ok && ok2 {
			iv, ok3 := toIntValue(ic.Value)
			if ok3 && (iv < 0 || iv >= sv) {
				return errcode.New(errcode.PreconditionUnmet, "idx_expr %d out of range [0,%d)", iv, sv)
			}
		}
	}
	return nil
}

func toIntValue(v any) (int, bool) {
	iv, ok := v.(int)
	return iv, ok
}

// RearrangeDim permutes buf's declared dimensions by perm and rewrites
// every access's index list the same way. perm[k] names which original
// dimension now sits at position k.
func RearrangeDim(p *loopir.Proc, buf string, perm []int) (*loopir.Proc, *cursor.ForwardingMap, error) {
	rank, dims, err := bufDims(p, buf)
	if err != nil {
		return nil, nil, err
	}
	if err := validatePermutation(perm, rank); err != nil {
		return nil, nil, errcode.New(errcode.ArgumentType, "rearrange_dim: %v", err)
	}
	np := p.Clone()
	np.Body = rewriteBufAccesses(np.Body, buf, func(idx []loopir.Expr) []loopir.Expr {
		out := make([]loopir.Expr, len(perm))
		for k, src := range perm {
			out[k] = loopir.CloneExpr(idx[src])
		}
		return out
	})
	newDims := make([]loopir.Expr, rank)
	for k, src := range perm {
		newDims[k] = dims[src]
	}
	if err := setDeclDims(np, buf, func([]loopir.Expr) []loopir.Expr { return newDims }); err != nil {
		return nil, nil, err
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "rearrange_dim: %q no longer typechecks", buf)
	}
	return np, cursor.Identity(), nil
}

func validatePermutation(perm []int, rank int) error {
	if len(perm) != rank {
		return errcode.New(errcode.ArgumentType, "permutation has length %d, buffer has rank %d", len(perm), rank)
	}
	seen := make([]bool, rank)
	for _, v := range perm {
		if v < 0 || v >= rank || seen[v] {
			return errcode.New(errcode.ArgumentType, "not a permutation of {0,...,%d}", rank-1)
		}
		seen[v] = true
	}
	return nil
}

// BoundAlloc tightens buf's declared extents; every existing access must
// remain in-bounds under the new extents. newExtents must have one entry
// per existing dimension; a nil entry keeps that dimension's current
// extent unchanged.
func BoundAlloc(p *loopir.Proc, buf string, newExtents []loopir.Expr) (*loopir.Proc, *cursor.ForwardingMap, error) {
	rank, dims, err := bufDims(p, buf)
	if err != nil {
		return nil, nil, err
	}
	if len(newExtents) != rank {
		return nil, nil, errcode.New(errcode.ArgumentType, "bound_alloc: expected %d extents, got %d", rank, len(newExtents))
	}
	finalDims := make([]loopir.Expr, rank)
	for i, e := range newExtents {
		if e == nil {
			finalDims[i] = dims[i]
		} else {
			finalDims[i] = e
		}
	}
	if ok, reason := allAccessesInBounds(p.Body, buf, finalDims, effects.Env{}); !ok {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "bound_alloc: %s", reason)
	}
	np := p.Clone()
	if err := setDeclDims(np, buf, func([]loopir.Expr) []loopir.Expr { return finalDims }); err != nil {
		return nil, nil, err
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "bound_alloc: %q no longer typechecks", buf)
	}
	return np, cursor.Identity(), nil
}

// DivideDim splits dimension i of buf (which must have a literal extent Q)
// into two dimensions of extents ceil(Q/q) (outer) and q (inner); an
// access e at dimension i becomes (e/q, e%q).
func DivideDim(p *loopir.Proc, buf string, i, q int) (*loopir.Proc, *cursor.ForwardingMap, error) {
	if q <= 1 {
		return nil, nil, errcode.New(errcode.ArgumentType, "divide_dim: q must be > 1, got %d", q)
	}
	rank, dims, err := bufDims(p, buf)
	if err != nil {
		return nil, nil, err
	}
	if i < 0 || i >= rank {
		return nil, nil, errcode.New(errcode.ArgumentType, "divide_dim: dimension %d out of range for rank %d", i, rank)
	}
	extConst, ok := dims[i].(*loopir.Const)
	if !ok {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "divide_dim: dimension %d's extent must be a literal", i)
	}
	Q, ok := toIntValue(extConst.Value)
	if !ok {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "divide_dim: dimension %d's extent is not an integer literal", i)
	}
	outerExt := (Q + q - 1) / q

	np := p.Clone()
	np.Body = rewriteBufAccesses(np.Body, buf, func(idx []loopir.Expr) []loopir.Expr {
		out := make([]loopir.Expr, 0, len(idx)+1)
		out = append(out, idx[:i]...)
		e := idx[i]
		out = append(out, loopir.Div(loopir.CloneExpr(e), loopir.CI(q)), loopir.Mod(loopir.CloneExpr(e), loopir.CI(q)))
		out = append(out, idx[i+1:]...)
		return out
	})
	if err := setDeclDims(np, buf, func(old []loopir.Expr) []loopir.Expr {
		out := make([]loopir.Expr, 0, len(old)+1)
		out = append(out, old[:i]...)
		out = append(out, loopir.CI(outerExt), loopir.CI(q))
		out = append(out, old[i+1:]...)
		return out
	}); err != nil {
		return nil, nil, err
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "divide_dim: %q no longer typechecks", buf)
	}
	return np, cursor.Identity(), nil
}

// MultDim is divide_dim's inverse: dim lo (which must have literal extent
// c) is folded back into dim hi, replacing it with extent c*extent(hi) and
// rewriting access to c*e_hi + e_lo. hi and lo must be adjacent with hi
// immediately before lo, matching the
// shape divide_dim always produces and the only shape the access-rewrite
// rule "c*e_hi + e_lo" is unambiguous for.
func MultDim(p *loopir.Proc, buf string, hi, lo int) (*loopir.Proc, *cursor.ForwardingMap, error) {
	rank, dims, err := bufDims(p, buf)
	if err != nil {
		return nil, nil, err
	}
	if lo != hi+1 || hi < 0 || lo >= rank {
		return nil, nil, errcode.New(errcode.ArgumentType, "mult_dim: lo (%d) must immediately follow hi (%d)", lo, hi)
	}
	loConst, ok := dims[lo].(*loopir.Const)
	if !ok {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "mult_dim: dimension %d's extent must be a literal", lo)
	}
	c, ok := toIntValue(loConst.Value)
	if !ok {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "mult_dim: dimension %d's extent is not an integer literal", lo)
	}

	np := p.Clone()
	np.Body = rewriteBufAccesses(np.Body, buf, func(idx []loopir.Expr) []loopir.Expr {
		out := make([]loopir.Expr, 0, len(idx)-1)
		out = append(out, idx[:hi]...)
		eHi, eLo := idx[hi], idx[lo]
		out = append(out, loopir.Add(loopir.Mul(loopir.CI(c), loopir.CloneExpr(eHi)), loopir.CloneExpr(eLo)))
		out = append(out, idx[lo+1:]...)
		return out
	})
	if err := setDeclDims(np, buf, func(old []loopir.Expr) []loopir.Expr {
		out := make([]loopir.Expr, 0, len(old)-1)
		out = append(out, old[:hi]...)
		var ext loopir.Expr = loopir.Mul(loopir.CI(c), old[hi])
		if hiConst, ok := old[hi].(*loopir.Const); ok {
			if hv, ok := toIntValue(hiConst.Value); ok {
				ext = loopir.CI(c * hv)
			}
		}
		out = append(out, ext)
		out = append(out, old[lo+1:]...)
		return out
	}); err != nil {
		return nil, nil, err
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "mult_dim: %q no longer typechecks", buf)
	}
	return np, cursor.Identity(), nil
}

// bufDims looks up buf's declared rank and dimension expressions, searching
// procedure arguments then Allocs at any depth.
func bufDims(p *loopir.Proc, buf string) (int, []loopir.Expr, error) {
	for _, a := range p.Args {
		if a.Name == buf {
			return a.Typ.Rank(), a.Typ.Dims, nil
		}
	}
	if t, ok := findAllocType(p.Body, buf); ok {
		return t.Rank(), t.Dims, nil
	}
	return 0, nil, errcode.New(errcode.PreconditionUnmet, "no declaration of buffer %q", buf)
}

func findAllocType(stmts []loopir.Stmt, name string) (loopir.Type, bool) {
	for _, s := range stmts {
		switch n := s.(type) {
		case *loopir.Alloc:
			if n.Name == name {
				return n.Typ, true
			}
		case *loopir.If:
			if t, ok := findAllocType(n.Body, name); ok {
				return t, ok
			}
			if t, ok := findAllocType(n.Orelse, name); ok {
				return t, ok
			}
		case *loopir.Seq:
			if t, ok := findAllocType(n.Body, name); ok {
				return t, ok
			}
		case *loopir.ForAll:
			if t, ok := findAllocType(n.Body, name); ok {
				return t, ok
			}
		}
	}
	return loopir.Type{}, false
}

// setDeclDims locates buf's declaration (Arg or Alloc) and replaces its
// Dims via edit.
func setDeclDims(np *loopir.Proc, buf string, edit func([]loopir.Expr) []loopir.Expr) error {
	for i := range np.Args {
		if np.Args[i].Name == buf {
			np.Args[i].Typ.Dims = edit(np.Args[i].Typ.Dims)
			return nil
		}
	}
	body, ok := updateAlloc(np.Body, buf, func(a *loopir.Alloc) { a.Typ.Dims = edit(a.Typ.Dims) })
	if !ok {
		return errcode.New(errcode.PreconditionUnmet, "no declaration of buffer %q", buf)
	}
	np.Body = body
	return nil
}

func cloneExprs(es []loopir.Expr) []loopir.Expr {
	out := make([]loopir.Expr, len(es))
	for i, e := range es {
		out[i] = loopir.CloneExpr(e)
	}
	return out
}

// rewriteBufAccesses returns a copy of stmts with every Read/Assign/Reduce
// index list against buf transformed by editIdx; reads and writes of other
// buffers are left untouched. WindowExpr access-lists are out of scope of
// the allocation-geometry primitives, which operate only on declared array
// extents (a window is always a view onto a separately declared array, so
// rebasing the underlying array's geometry does not by itself change what
// the window's own WAccess coordinates mean).
func rewriteBufAccesses(stmts []loopir.Stmt, buf string, editIdx func([]loopir.Expr) []loopir.Expr) []loopir.Stmt {
	out := make([]loopir.Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = rewriteBufAccessesStmt(s, buf, editIdx)
	}
	return out
}

func rewriteBufAccessesStmt(s loopir.Stmt, buf string, editIdx func([]loopir.Expr) []loopir.Expr) loopir.Stmt {
	switch n := s.(type) {
	case *loopir.Assign:
		c := *n
		c.Rhs = rewriteBufAccessesExpr(n.Rhs, buf, editIdx)
		if n.Name == buf {
			c.Idx = editIdx(n.Idx)
		} else {
			c.Idx = rewriteBufAccessesExprs(n.Idx, buf, editIdx)
		}
		return &c
	case *loopir.Reduce:
		c := *n
		c.Rhs = rewriteBufAccessesExpr(n.Rhs, buf, editIdx)
		if n.Name == buf {
			c.Idx = editIdx(n.Idx)
		} else {
			c.Idx = rewriteBufAccessesExprs(n.Idx, buf, editIdx)
		}
		return &c
	case *loopir.If:
		c := *n
		c.Cond = rewriteBufAccessesExpr(n.Cond, buf, editIdx)
		c.Body = rewriteBufAccesses(n.Body, buf, editIdx)
		c.Orelse = rewriteBufAccesses(n.Orelse, buf, editIdx)
		return &c
	case *loopir.Seq:
		c := *n
		c.Hi = rewriteBufAccessesExpr(n.Hi, buf, editIdx)
		c.Body = rewriteBufAccesses(n.Body, buf, editIdx)
		return &c
	case *loopir.ForAll:
		c := *n
		c.Hi = rewriteBufAccessesExpr(n.Hi, buf, editIdx)
		c.Body = rewriteBufAccesses(n.Body, buf, editIdx)
		return &c
	case *loopir.Call:
		c := *n
		c.Args = rewriteBufAccessesExprs(n.Args, buf, editIdx)
		return &c
	case *loopir.WriteConfig:
		c := *n
		c.Rhs = rewriteBufAccessesExpr(n.Rhs, buf, editIdx)
		return &c
	default:
		return loopir.CloneStmt(s)
	}
}

func rewriteBufAccessesExpr(e loopir.Expr, buf string, editIdx func([]loopir.Expr) []loopir.Expr) loopir.Expr {
	switch n := e.(type) {
	case *loopir.Read:
		c := *n
		if n.Name == buf {
			c.Idx = editIdx(n.Idx)
		} else {
			c.Idx = rewriteBufAccessesExprs(n.Idx, buf, editIdx)
		}
		return &c
	case *loopir.USub:
		c := *n
		c.Arg = rewriteBufAccessesExpr(n.Arg, buf, editIdx)
		return &c
	case *loopir.BinOp:
		c := *n
		c.Lhs = rewriteBufAccessesExpr(n.Lhs, buf, editIdx)
		c.Rhs = rewriteBufAccessesExpr(n.Rhs, buf, editIdx)
		return &c
	case *loopir.BuiltIn:
		c := *n
		c.Args = rewriteBufAccessesExprs(n.Args, buf, editIdx)
		return &c
	default:
		return loopir.CloneExpr(e)
	}
}

func rewriteBufAccessesExprs(es []loopir.Expr, buf string, editIdx func([]loopir.Expr) []loopir.Expr) []loopir.Expr {
	if es == nil {
		return nil
	}
	out := make([]loopir.Expr, len(es))
	for i, e := range es {
		out[i] = rewriteBufAccessesExpr(e, buf, editIdx)
	}
	return out
}

// allAccessesInBounds walks body (extending env with every enclosing
// Seq/ForAll binder) and checks each access of buf against newDims via
// effects.SafeAccess, failing closed (as a legality violation, not a pass)
// whenever the affine solver reports undecidable — this precondition
// offers no fallback for symbolic cases it cannot decide.
func allAccessesInBounds(stmts []loopir.Stmt, buf string, newDims []loopir.Expr, env effects.Env) (bool, string) {
	for _, s := range stmts {
		if ok, reason := checkStmtInBounds(s, buf, newDims, env); !ok {
			return false, reason
		}
		switch n := s.(type) {
		case *loopir.If:
			if ok, reason := allAccessesInBounds(n.Body, buf, newDims, env); !ok {
				return false, reason
			}
			if ok, reason := allAccessesInBounds(n.Orelse, buf, newDims, env); !ok {
				return false, reason
			}
		case *loopir.Seq:
			inner := env.WithBinder(n.Iter, loopir.CI(0), n.Hi)
			if ok, reason := allAccessesInBounds(n.Body, buf, newDims, inner); !ok {
				return false, reason
			}
		case *loopir.ForAll:
			inner := env.WithBinder(n.Iter, loopir.CI(0), n.Hi)
			if ok, reason := allAccessesInBounds(n.Body, buf, newDims, inner); !ok {
				return false, reason
			}
		}
	}
	return true, ""
}

func checkStmtInBounds(s loopir.Stmt, buf string, newDims []loopir.Expr, env effects.Env) (bool, string) {
	switch n := s.(type) {
	case *loopir.Assign:
		if n.Name == buf {
			if ok, reason := safeAccessReason(n.Idx, newDims, env); !ok {
				return false, reason
			}
		}
		return checkExprInBounds(n.Rhs, buf, newDims, env)
	case *loopir.Reduce:
		if n.Name == buf {
			if ok, reason := safeAccessReason(n.Idx, newDims, env); !ok {
				return false, reason
			}
		}
		return checkExprInBounds(n.Rhs, buf, newDims, env)
	case *loopir.If:
		return checkExprInBounds(n.Cond, buf, newDims, env)
	case *loopir.Seq:
		return checkExprInBounds(n.Hi, buf, newDims, env)
	case *loopir.ForAll:
		return checkExprInBounds(n.Hi, buf, newDims, env)
	case *loopir.Call:
		for _, a := range n.Args {
			if ok, reason := checkExprInBounds(a, buf, newDims, env); !ok {
				return false, reason
			}
		}
	case *loopir.WriteConfig:
		return checkExprInBounds(n.Rhs, buf, newDims, env)
	}
	return true, ""
}

func checkExprInBounds(e loopir.Expr, buf string, newDims []loopir.Expr, env effects.Env) (bool, string) {
	switch n := e.(type) {
	case *loopir.Read:
		if n.Name == buf {
			if ok, reason := safeAccessReason(n.Idx, newDims, env); !ok {
				return false, reason
			}
		}
		for _, i := range n.Idx {
			if ok, reason := checkExprInBounds(i, buf, newDims, env); !ok {
				return false, reason
			}
		}
	case *loopir.USub:
		return checkExprInBounds(n.Arg, buf, newDims, env)
	case *loopir.BinOp:
		if ok, reason := checkExprInBounds(n.Lhs, buf, newDims, env); !ok {
			return false, reason
		}
		return checkExprInBounds(n.Rhs, buf, newDims, env)
	case *loopir.BuiltIn:
		for _, a := range n.Args {
			if ok, reason := checkExprInBounds(a, buf, newDims, env); !ok {
				return false, reason
			}
		}
	}
	return true, ""
}

func safeAccessReason(idx, shape []loopir.Expr, env effects.Env) (bool, string) {
	ok, cex, err := effects.SafeAccess(idx, shape, env)
	if err != nil {
		return false, err.Error()
	}
	if !ok {
		return false, cex.String()
	}
	return true, ""
}
