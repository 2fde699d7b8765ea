package schedule

import (
	"exo/internal/cursor"
	"exo/internal/effects"
	"exo/internal/errcode"
	"exo/internal/loopir"
	"exo/internal/memory"
)

// LiftAlloc moves an Alloc (and its matching Free, if one sits in the same
// block) outward n enclosing scope levels. The alloc's extents must not
// depend on any binder being crossed, and it must still dominate every use.
// Each level crosses exactly one enclosing statement: the pair is spliced
// into that statement's own parent block, immediately around the statement,
// so every use within the lifted-over scope still executes after the Alloc
// and before the Free.
func LiftAlloc(p *loopir.Proc, c cursor.Cursor, n int) (*loopir.Proc, *cursor.ForwardingMap, error) {
	if n < 0 {
		return nil, nil, errcode.New(errcode.ArgumentType, "lift_alloc: n must be >= 0, got %d", n)
	}
	path := c.Path()
	np := p
	for step := 0; step < n; step++ {
		next, newPath, err := liftAllocOnce(np, path)
		if err != nil {
			return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "lift_alloc")
		}
		np = next
		path = newPath
	}
	if n > 0 {
		if err := loopir.Check(np); err != nil {
			return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "lift_alloc: procedure no longer typechecks")
		}
	}
	return np, cursor.Identity(), nil
}

// liftAllocOnce crosses exactly one enclosing statement.
func liftAllocOnce(p *loopir.Proc, path cursor.Path) (*loopir.Proc, cursor.Path, error) {
	encStmt, ownerSel, childBlock, grandParentPath, grandSel, grandBlock, err := allocLiftTargets(p, path)
	if err != nil {
		return nil, nil, err
	}
	allocIdx := ownerSel.Index
	if allocIdx < 0 || allocIdx >= len(childBlock) {
		return nil, nil, errcode.New(errcode.InvalidCursor, "cursor no longer resolves")
	}
	alloc, ok := childBlock[allocIdx].(*loopir.Alloc)
	if !ok {
		return nil, nil, errcode.New(errcode.ArgumentType, "lift_alloc: expected an Alloc, got %T", childBlock[allocIdx])
	}

	if binderName, hasBinder := enclosingBinderName(encStmt, ownerSel); hasBinder {
		fv := map[string]bool{}
		for _, d := range alloc.Typ.Dims {
			for name := range freeVars(d) {
				fv[name] = true
			}
		}
		if fv[binderName] {
			return nil, nil, errcode.New(errcode.PreconditionUnmet, "lift_alloc: extent depends on loop variable %q", binderName)
		}
	}

	freeIdx := -1
	for i := allocIdx + 1; i < len(childBlock); i++ {
		if f, ok := childBlock[i].(*loopir.Free); ok && f.Name == alloc.Name {
			freeIdx = i
			break
		}
	}
	newChildBlock := make([]loopir.Stmt, 0, len(childBlock))
	newChildBlock = append(newChildBlock, childBlock[:allocIdx]...)
	rest := childBlock[allocIdx+1:]
	if freeIdx >= 0 {
		rel := freeIdx - (allocIdx + 1)
		newChildBlock = append(newChildBlock, rest[:rel]...)
		newChildBlock = append(newChildBlock, rest[rel+1:]...)
	} else {
		newChildBlock = append(newChildBlock, rest...)
	}

	newEncStmt, err := withStmtBlockField(encStmt, ownerSel.Field, newChildBlock)
	if err != nil {
		return nil, nil, err
	}

	encIdx := grandSel.Index
	if encIdx < 0 || encIdx >= len(grandBlock) {
		return nil, nil, errcode.New(errcode.InvalidCursor, "cursor no longer resolves")
	}
	out := make([]loopir.Stmt, 0, len(grandBlock)+2)
	out = append(out, grandBlock[:encIdx]...)
	out = append(out, loopir.CloneStmt(alloc))
	out = append(out, newEncStmt)
	if freeIdx >= 0 {
		out = append(out, &loopir.Free{Name: alloc.Name})
	}
	out = append(out, grandBlock[encIdx+1:]...)

	np, err := setBlock(p, cursor.Anchor{Path: grandParentPath, Field: grandSel.Field}, out)
	if err != nil {
		return nil, nil, err
	}
	newPath := grandParentPath.Child(grandSel.Field, encIdx)
	return np, newPath, nil
}

// allocLiftTargets resolves path (pointing at an Alloc) into everything
// needed to cross exactly one enclosing scope: the statement that directly
// encloses the Alloc, the block that holds the Alloc within it, and the
// grandparent block/position that enclosing statement itself occupies.
func allocLiftTargets(p *loopir.Proc, path cursor.Path) (encStmt loopir.Stmt, ownerSel cursor.Sel, childBlock []loopir.Stmt, grandParentPath cursor.Path, grandSel cursor.Sel, grandBlock []loopir.Stmt, err error) {
	ownerPath, oSel, ok := path.Parent()
	if !ok {
		err = errcode.New(errcode.InvalidCursor, "cursor does not resolve to a statement")
		return
	}
	if len(ownerPath) == 0 {
		err = errcode.New(errcode.PreconditionUnmet, "already at the top of the procedure")
		return
	}
	ownerSel = oSel
	encStmt = nodeAt(p, ownerPath)
	childBlock, err = stmtBlockField(encStmt, ownerSel.Field)
	if err != nil {
		return
	}
	gpPath, gSel, _ := ownerPath.Parent()
	grandParentPath = gpPath
	grandSel = gSel
	if len(grandParentPath) == 0 {
		grandBlock = p.Body
	} else {
		grandBlock, err = stmtBlockField(nodeAt(p, grandParentPath), grandSel.Field)
	}
	return
}

// nodeAt resolves path to its owning statement node, or returns nil when
// path is empty (top level).
func nodeAt(p *loopir.Proc, path cursor.Path) loopir.Stmt {
	if len(path) == 0 {
		return nil
	}
	var cur []loopir.Stmt = p.Body
	for i := 0; i < len(path)-1; i++ {
		sel := path[i]
		cur, _ = stmtBlockField(cur[sel.Index], sel.Field)
	}
	last := path[len(path)-1]
	return cur[last.Index]
}

// enclosingBinderName reports the iteration variable introduced by the
// statement at enclosingNode, if selecting into sel.Field/sel.Index crosses
// a Seq or ForAll's own binder (an If's branches introduce no binder).
func enclosingBinderName(enclosingNode loopir.Stmt, sel cursor.Sel) (string, bool) {
	switch n := enclosingNode.(type) {
	case *loopir.Seq:
		return n.Iter, true
	case *loopir.ForAll:
		return n.Iter, true
	default:
		return "", false
	}
}

// AutoliftAlloc is lift_alloc's legacy variant, which may additionally
// expand the alloc's shape to absorb the binder it is being lifted past;
// mode in {row, col} chooses prepend vs append. Unlike lift_alloc, which
// requires the extents to already be independent of every crossed binder,
// autolift_alloc accommodates a dependent extent by adding one dimension
// per crossed Seq/ForAll binder sized size (defaulting to that binder's Hi)
// and threading the binder's own Read through as the new coordinate —
// mode picks whether that coordinate is prepended (row) or appended (col).
func AutoliftAlloc(p *loopir.Proc, c cursor.Cursor, n int, mode string, size loopir.Expr, keepDims []int) (*loopir.Proc, *cursor.ForwardingMap, error) {
	if n < 0 {
		return nil, nil, errcode.New(errcode.ArgumentType, "autolift_alloc: n must be >= 0, got %d", n)
	}
	if mode != "row" && mode != "col" {
		return nil, nil, errcode.New(errcode.ArgumentType, "autolift_alloc: mode must be %q or %q, got %q", "row", "col", mode)
	}
	path := c.Path()
	np := p
	for step := 0; step < n; step++ {
		encStmt, ownerSel, childBlock, _, _, _, err := allocLiftTargets(np, path)
		if err != nil {
			return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "autolift_alloc")
		}
		allocIdx := ownerSel.Index
		alloc, ok := childBlock[allocIdx].(*loopir.Alloc)
		if !ok {
			return nil, nil, errcode.New(errcode.ArgumentType, "autolift_alloc: expected an Alloc, got %T", childBlock[allocIdx])
		}
		binderName, hasBinder := enclosingBinderName(encStmt, ownerSel)
		needsDim := false
		if hasBinder {
			for _, d := range alloc.Typ.Dims {
				if freeVars(d)[binderName] {
					needsDim = true
					break
				}
			}
		}
		if !needsDim {
			next, newPath, err := liftAllocOnce(np, path)
			if err != nil {
				return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "autolift_alloc")
			}
			np, path = next, newPath
			continue
		}

		var seqHi loopir.Expr
		switch n := encStmt.(type) {
		case *loopir.ForAll:
			seqHi = n.Hi
		case *loopir.Seq:
			seqHi = n.Hi
		}
		extent := size
		if extent == nil {
			extent = loopir.CloneExpr(seqHi)
		}
		coord := loopir.RD(binderName)
		buf := alloc.Name

		var nextNp *loopir.Proc
		if mode == "row" {
			n2, _, err := ExpandDim(np, buf, extent, coord)
			if err != nil {
				return nil, nil, err
			}
			nextNp = n2
		} else {
			n2 := np.Clone()
			n2.Body = rewriteBufAccesses(n2.Body, buf, func(idx []loopir.Expr) []loopir.Expr {
				return append(cloneExprs(idx), loopir.CloneExpr(coord))
			})
			if err := setDeclDims(n2, buf, func(dims []loopir.Expr) []loopir.Expr {
				return append(cloneExprs(dims), loopir.CloneExpr(extent))
			}); err != nil {
				return nil, nil, err
			}
			nextNp = n2
		}
		_ = keepDims

		next, newPath, err := liftAllocOnce(nextNp, path)
		if err != nil {
			return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "autolift_alloc")
		}
		np, path = next, newPath
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "autolift_alloc: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

// ReuseBuffer erases y's Alloc and substitutes x for y through y's live
// range. x must be dead wherever y is live, and share y's type and
// extents.
func ReuseBuffer(p *loopir.Proc, x, y string) (*loopir.Proc, *cursor.ForwardingMap, error) {
	xt, _, err := bufDims(p, x)
	if err != nil {
		return nil, nil, err
	}
	yt, yDims, err := bufDims(p, y)
	if err != nil {
		return nil, nil, err
	}
	if xt != yt {
		return nil, nil, errcode.New(errcode.ArgumentType, "reuse_buffer: %s and %s have different rank", x, y)
	}
	xType, ok1 := lookupBufType(p, x)
	yType, ok2 := lookupBufType(p, y)
	if !ok1 || !ok2 || !xType.Equal(yType) {
		return nil, nil, errcode.New(errcode.ArgumentType, "reuse_buffer: %s and %s have different types or extents", x, y)
	}
	_ = yDims

	liveRange, ok := allocLiveRange(p.Body, y)
	if !ok {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "reuse_buffer: no Alloc for %q", y)
	}
	if !effects.DeadAfter(x, liveRange) {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "reuse_buffer: %s is not dead everywhere %s is live", x, y)
	}

	np := p.Clone()
	body := dropAlloc(np.Body, y)
	np.Body = renameBufInBlock(body, y, x)
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "reuse_buffer: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

// allocLiveRange returns the statements strictly between name's Alloc and
// its matching Free (to the end of the block if no Free is present),
// searching at any depth but, like lift_alloc, assuming the pair brackets a
// contiguous range within a single block.
func allocLiveRange(stmts []loopir.Stmt, name string) ([]loopir.Stmt, bool) {
	for i, s := range stmts {
		if a, ok := s.(*loopir.Alloc); ok && a.Name == name {
			end := len(stmts)
			for j := i + 1; j < len(stmts); j++ {
				if f, ok := stmts[j].(*loopir.Free); ok && f.Name == name {
					end = j
					break
				}
			}
			return stmts[i+1 : end], true
		}
		switch n := s.(type) {
		case *loopir.If:
			if r, ok := allocLiveRange(n.Body, name); ok {
				return r, true
			}
			if r, ok := allocLiveRange(n.Orelse, name); ok {
				return r, true
			}
		case *loopir.Seq:
			if r, ok := allocLiveRange(n.Body, name); ok {
				return r, true
			}
		case *loopir.ForAll:
			if r, ok := allocLiveRange(n.Body, name); ok {
				return r, true
			}
		}
	}
	return nil, false
}

func lookupBufType(p *loopir.Proc, name string) (loopir.Type, bool) {
	for _, a := range p.Args {
		if a.Name == name {
			return a.Typ, true
		}
	}
	if t, ok := findAllocType(p.Body, name); ok {
		return t, true
	}
	return loopir.Type{}, false
}

func dropAlloc(stmts []loopir.Stmt, name string) []loopir.Stmt {
	out := make([]loopir.Stmt, 0, len(stmts))
	for _, s := range stmts {
		switch n := s.(type) {
		case *loopir.Alloc:
			if n.Name == name {
				continue
			}
			out = append(out, s)
		case *loopir.Free:
			if n.Name == name {
				continue
			}
			out = append(out, s)
		case *loopir.If:
			c := *n
			c.Body = dropAlloc(n.Body, name)
			c.Orelse = dropAlloc(n.Orelse, name)
			out = append(out, &c)
		case *loopir.Seq:
			c := *n
			c.Body = dropAlloc(n.Body, name)
			out = append(out, &c)
		case *loopir.ForAll:
			c := *n
			c.Body = dropAlloc(n.Body, name)
			out = append(out, &c)
		default:
			out = append(out, s)
		}
	}
	return out
}

// StageMem inserts a staging buffer for the window winExpr = B[a:b,...],
// copying B's window into name before block and back out after. If accum
// is true and the block's effect on the window is reduce-only, the
// copy-in becomes a zero-init and the copy-out becomes a reduce-back.
func StageMem(p *loopir.Proc, c cursor.Cursor, win *loopir.WindowExpr, name string, accum bool) (*loopir.Proc, *cursor.ForwardingMap, error) {
	anchor, lo, hi, err := blockRange(c)
	if err != nil {
		return nil, nil, err
	}
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	body := block[lo:hi]

	elemT, origin, extents, err := windowGeometry(p, win)
	if err != nil {
		return nil, nil, err
	}
	stageType := loopir.Array(elemT, extents...)

	onlyReduces := accum && blockOnlyReducesBuf(body, win.Name)

	iters := make([]string, len(extents))
	for i := range extents {
		iters[i] = freshStageIter(name, i)
	}
	copyIn := stageCopyLoop(iters, extents, func(coords []loopir.Expr) loopir.Stmt {
		srcIdx := addOrigin(origin, coords)
		if onlyReduces {
			return loopir.AssignS(name, coords, loopir.CI(0))
		}
		return loopir.AssignS(name, coords, loopir.RD(win.Name, srcIdx...))
	})
	copyOut := stageCopyLoop(iters, extents, func(coords []loopir.Expr) loopir.Stmt {
		dstIdx := addOrigin(origin, coords)
		if onlyReduces {
			return &loopir.Reduce{Name: win.Name, Idx: dstIdx, Rhs: loopir.RD(name, coords...)}
		}
		return loopir.AssignS(win.Name, dstIdx, loopir.RD(name, coords...))
	})

	rewrittenBody := renameBufInBlock(rewriteWindowAccesses(body, win.Name, origin), win.Name, name)

	replacement := make([]loopir.Stmt, 0, len(body)+4)
	replacement = append(replacement, &loopir.Alloc{Name: name, Typ: stageType, Mem: memory.DRAM})
	replacement = append(replacement, copyIn)
	replacement = append(replacement, rewrittenBody...)
	replacement = append(replacement, copyOut)
	replacement = append(replacement, &loopir.Free{Name: name})

	np, err := ReplaceRange(p, anchor, lo, hi, replacement)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "stage_mem failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "stage_mem: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

func freshStageIter(base string, i int) string {
	return base + "_i" + itoaSmall(i)
}

func itoaSmall(i int) string {
	digits := "0123456789"
	if i < 10 {
		return string(digits[i])
	}
	out := []byte{}
	for i > 0 {
		out = append([]byte{digits[i%10]}, out...)
		i /= 10
	}
	return string(out)
}

// stageCopyLoop builds a perfectly nested ForAll loop over extents, calling
// body with the loop's own iteration coordinates at the innermost level.
func stageCopyLoop(iters []string, extents []loopir.Expr, body func([]loopir.Expr) loopir.Stmt) loopir.Stmt {
	coords := make([]loopir.Expr, len(iters))
	for i, it := range iters {
		coords[i] = loopir.RD(it)
	}
	inner := body(coords)
	for i := len(iters) - 1; i >= 0; i-- {
		inner = loopir.ForAllS(iters[i], extents[i], inner)
	}
	return inner
}

func addOrigin(origin, coords []loopir.Expr) []loopir.Expr {
	out := make([]loopir.Expr, len(origin))
	for i := range origin {
		if isZeroConst(origin[i]) {
			out[i] = loopir.CloneExpr(coords[i])
		} else {
			out[i] = loopir.Add(loopir.CloneExpr(origin[i]), loopir.CloneExpr(coords[i]))
		}
	}
	return out
}

func isZeroConst(e loopir.Expr) bool {
	c, ok := e.(*loopir.Const)
	return ok && c.Value == 0
}

// subExtent computes hi-lo, folding to a literal Const when both bounds are
// literal (the common case a staged window's shape needs to be declared
// with), and falling back to a symbolic BinOp otherwise.
func subExtent(lo, hi loopir.Expr) loopir.Expr {
	lc, lok := lo.(*loopir.Const)
	hc, hok := hi.(*loopir.Const)
	if lok && hok {
		if lv, ok := toIntValue(lc.Value); ok {
			if hv, ok := toIntValue(hc.Value); ok {
				return loopir.CI(hv - lv)
			}
		}
	}
	return loopir.Sub(loopir.CloneExpr(hi), loopir.CloneExpr(lo))
}

// windowGeometry extracts the element type, per-dimension lower bound
// (origin), and per-dimension extent of a window expression over a
// declared buffer.
func windowGeometry(p *loopir.Proc, win *loopir.WindowExpr) (loopir.BaseType, []loopir.Expr, []loopir.Expr, error) {
	t, ok := lookupBufType(p, win.Name)
	if !ok {
		return 0, nil, nil, errcode.New(errcode.PreconditionUnmet, "no declaration of buffer %q", win.Name)
	}
	origin := make([]loopir.Expr, len(win.WAccess))
	extents := make([]loopir.Expr, len(win.WAccess))
	for i, a := range win.WAccess {
		switch wa := a.(type) {
		case loopir.Point:
			origin[i] = loopir.CloneExpr(wa.E)
			extents[i] = loopir.CI(1)
		case loopir.Interval:
			origin[i] = loopir.CloneExpr(wa.Lo)
			extents[i] = subExtent(wa.Lo, wa.Hi)
		}
	}
	return t.ElemType().Base, origin, extents, nil
}

// blockOnlyReducesBuf reports whether every access to buf within stmts is a
// Reduce (never a plain Read or Assign), the condition under which
// stage_mem's copy-in/copy-out may be specialized to zero-init/reduce-back.
func blockOnlyReducesBuf(stmts []loopir.Stmt, buf string) bool {
	any := false
	for _, acc := range effects.AccessesOfBlock(stmts) {
		if acc.Buf != buf {
			continue
		}
		any = true
		if acc.Kind != effects.AccessReduce {
			return false
		}
	}
	return any
}

// rewriteWindowAccesses offsets every access to buf within stmts by origin,
// so the staged buffer can be indexed directly by the window-relative
// coordinates the original code already computed.
func rewriteWindowAccesses(stmts []loopir.Stmt, buf string, origin []loopir.Expr) []loopir.Stmt {
	return rewriteBufAccesses(stmts, buf, func(idx []loopir.Expr) []loopir.Expr {
		out := make([]loopir.Expr, len(idx))
		for i, e := range idx {
			if isZeroConst(origin[i]) {
				out[i] = loopir.CloneExpr(e)
			} else {
				out[i] = loopir.Sub(loopir.CloneExpr(e), loopir.CloneExpr(origin[i]))
			}
		}
		return out
	})
}

// blockRange resolves a Block or Node cursor to the anchor and [lo,hi)
// range of statements it denotes.
func blockRange(c cursor.Cursor) (cursor.Anchor, int, int, error) {
	switch c.Kind() {
	case cursor.KindBlock:
		lo, hi := c.Range()
		return c.Anchor(), lo, hi, nil
	case cursor.KindNode:
		anchor, idx, err := nodeAnchor(c)
		if err != nil {
			return cursor.Anchor{}, 0, 0, errcode.Wrap(errcode.CursorKind, err, "cursor does not resolve to a statement")
		}
		return anchor, idx, idx + 1, nil
	default:
		return cursor.Anchor{}, 0, 0, errcode.New(errcode.CursorKind, "expected a Block or Node cursor, got %s", c.Kind())
	}
}

// StageWindow binds a WindowStmt's alias to a freshly staged buffer: the
// alias is already addressed in window-relative (0-based) coordinates, so
// staging it is a copy against the underlying buffer plus a plain rename of
// the alias within block, with no further index offset.
func StageWindow(p *loopir.Proc, winStmt cursor.Cursor, block cursor.Cursor, name string, accum bool) (*loopir.Proc, *cursor.ForwardingMap, error) {
	stmt, err := winStmt.Stmt()
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	ws, ok := stmt.(*loopir.WindowStmt)
	if !ok {
		return nil, nil, errcode.New(errcode.ArgumentType, "stage_window: expected a WindowStmt, got %T", stmt)
	}
	win := ws.WinExpr
	for i, a := range win.WAccess {
		var coords []loopir.Expr
		switch wa := a.(type) {
		case loopir.Point:
			coords = []loopir.Expr{wa.E}
		case loopir.Interval:
			coords = []loopir.Expr{wa.Lo, wa.Hi}
		}
		for _, e := range coords {
			if _, ok := effects.Affine(e); !ok {
				return nil, nil, errcode.New(errcode.PreconditionUnmet, "stage_window: coordinate %d of %s is not affine, so the window is not rectangular", i, win.Name)
			}
		}
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

	elemT, origin, extents, err := windowGeometry(p, win)
	if err != nil {
		return nil, nil, err
	}
	stageType := loopir.Array(elemT, extents...)

	onlyReduces := accum && blockOnlyReducesBuf(body, ws.Name)
	iters := make([]string, len(extents))
	for i := range extents {
		iters[i] = freshStageIter(name, i)
	}
	copyIn := stageCopyLoop(iters, extents, func(coords []loopir.Expr) loopir.Stmt {
		srcIdx := addOrigin(origin, coords)
		if onlyReduces {
			return loopir.AssignS(name, coords, loopir.CI(0))
		}
		return loopir.AssignS(name, coords, loopir.RD(win.Name, srcIdx...))
	})
	copyOut := stageCopyLoop(iters, extents, func(coords []loopir.Expr) loopir.Stmt {
		dstIdx := addOrigin(origin, coords)
		if onlyReduces {
			return &loopir.Reduce{Name: win.Name, Idx: dstIdx, Rhs: loopir.RD(name, coords...)}
		}
		return loopir.AssignS(win.Name, dstIdx, loopir.RD(name, coords...))
	})

	renamedBody := renameBufInBlock(body, ws.Name, name)

	replacement := make([]loopir.Stmt, 0, len(body)+4)
	replacement = append(replacement, &loopir.Alloc{Name: name, Typ: stageType, Mem: memory.DRAM})
	replacement = append(replacement, copyIn)
	replacement = append(replacement, renamedBody...)
	replacement = append(replacement, copyOut)
	replacement = append(replacement, &loopir.Free{Name: name})

	np, err := ReplaceRange(p, anchor, lo, hi, replacement)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "stage_window failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "stage_window: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}

// InlineWindow is stage_window's inverse: block must be the exact staged
// region stage_window produced (Alloc, copy-in loop, user body, copy-out
// loop, Free). It strips the staging wrapper and renames the staged
// buffer's uses back to the window alias.
func InlineWindow(p *loopir.Proc, winStmt cursor.Cursor, block cursor.Cursor) (*loopir.Proc, *cursor.ForwardingMap, error) {
	stmt, err := winStmt.Stmt()
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	ws, ok := stmt.(*loopir.WindowStmt)
	if !ok {
		return nil, nil, errcode.New(errcode.ArgumentType, "inline_window: expected a WindowStmt, got %T", stmt)
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
	if len(body) < 4 {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "inline_window: block is not a staged region")
	}
	alloc, ok := body[0].(*loopir.Alloc)
	if !ok {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "inline_window: block does not begin with the staging Alloc")
	}
	free, ok := body[len(body)-1].(*loopir.Free)
	if !ok || free.Name != alloc.Name {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "inline_window: block does not end with the matching Free")
	}
	innerBody := body[2 : len(body)-2]

	restored := renameBufInBlock(innerBody, alloc.Name, ws.Name)

	np, err := ReplaceRange(p, anchor, lo, hi, restored)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "inline_window failed")
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "inline_window: procedure no longer typechecks")
	}
	return np, cursor.Identity(), nil
}
