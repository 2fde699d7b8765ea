package schedule

import (
	"exo/internal/cursor"
	"exo/internal/effects"
	"exo/internal/errcode"
	"exo/internal/loopir"
	"exo/internal/unify"
)

// ExtractSubproc pulls the statement or contiguous statement range c names
// out into a freestanding procedure, closing over every name the region
// reads or writes that it does not itself declare as arguments, and
// replacing the region with a Call. The region's own Allocs and loop
// iterators are never closed over — they stay local to the new
// procedure's body.
//
// Unlike every other primitive in this package, extraction produces two
// procedures: the rewritten caller and the freshly minted callee. Both are
// returned; internal/api is responsible for registering the new procedure
// alongside the one it schedules.
func ExtractSubproc(p *loopir.Proc, c cursor.Cursor, name string) (*loopir.Proc, *loopir.Proc, *cursor.ForwardingMap, error) {
	var anchor cursor.Anchor
	var lo, hi int
	switch c.Kind() {
	case cursor.KindNode:
		a, idx, err := nodeAnchor(c)
		if err != nil {
			return nil, nil, nil, errcode.FromCursor(err)
		}
		anchor, lo, hi = a, idx, idx+1
	case cursor.KindBlock:
		anchor = c.Anchor()
		lo, hi = c.Range()
	default:
		return nil, nil, nil, errcode.New(errcode.CursorKind, "extract_subproc: expected a Node or Block cursor")
	}

	fullBlock, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, nil, errcode.FromCursor(err)
	}
	region := fullBlock[lo:hi]

	local := localNames(region)
	stmtPath := anchor.Path.Child(anchor.Field, lo)
	outer := outerArgs(p, stmtPath)

	var order []string
	seen := map[string]bool{}
	for _, acc := range effects.AccessesOfBlock(region) {
		if acc.Buf == "" || local[acc.Buf] || seen[acc.Buf] {
			continue
		}
		seen[acc.Buf] = true
		order = append(order, acc.Buf)
	}

	newArgs := make([]loopir.Arg, 0, len(order))
	callArgs := make([]loopir.Expr, 0, len(order))
	for _, n := range order {
		arg, ok := outer[n]
		if !ok {
			return nil, nil, nil, errcode.New(errcode.Bug, "extract_subproc: free name %q has no visible declaration", n)
		}
		newArgs = append(newArgs, arg)
		callArgs = append(callArgs, loopir.RD(n))
	}

	subproc := &loopir.Proc{
		Name: name,
		Args: newArgs,
		Body: loopir.CloneStmts(region),
	}
	call := &loopir.Call{Callee: subproc, Args: callArgs}

	np, err := ReplaceRange(p, anchor, lo, hi, []loopir.Stmt{call})
	if err != nil {
		return nil, nil, nil, errcode.Wrap(errcode.Bug, err, "extract_subproc")
	}
	fwd := shiftForwarding(anchor, lo, hi, 1, len(fullBlock))
	return np, subproc, fwd, nil
}

// localNames collects every name a statement range binds itself: Alloc
// targets and Seq/ForAll iterators, at any nesting depth. These are exactly
// the names extract_subproc must NOT close over.
func localNames(stmts []loopir.Stmt) map[string]bool {
	out := map[string]bool{}
	var walk func([]loopir.Stmt)
	walk = func(ss []loopir.Stmt) {
		for _, s := range ss {
			switch n := s.(type) {
			case *loopir.Alloc:
				out[n.Name] = true
			case *loopir.Seq:
				out[n.Iter] = true
				walk(n.Body)
			case *loopir.ForAll:
				out[n.Iter] = true
				walk(n.Body)
			case *loopir.If:
				walk(n.Body)
				walk(n.Orelse)
			}
		}
	}
	walk(stmts)
	return out
}

// outerArgs reconstructs, as full loopir.Arg values (type and memory space),
// every name visible immediately before stmtPath: procedure arguments, plus
// every Alloc and loop iterator that lexically dominates it. It parallels
// binding.go's buildEnv, additionally carrying the Mem space extract_subproc
// needs to declare the new procedure's own parameter list.
func outerArgs(p *loopir.Proc, stmtPath cursor.Path) map[string]loopir.Arg {
	out := map[string]loopir.Arg{}
	for _, a := range p.Args {
		out[a.Name] = a
	}
	stmts := p.Body
	for i, sel := range stmtPath {
		if sel.Index < 0 || sel.Index >= len(stmts) {
			break
		}
		for j := 0; j < sel.Index; j++ {
			if alloc, ok := stmts[j].(*loopir.Alloc); ok {
				out[alloc.Name] = loopir.Arg{Name: alloc.Name, Typ: alloc.Typ, Mem: alloc.Mem}
			}
		}
		node := stmts[sel.Index]
		switch n := node.(type) {
		case *loopir.Seq:
			out[n.Iter] = loopir.Arg{Name: n.Iter, Typ: loopir.Scalar(loopir.TypeIndex)}
		case *loopir.ForAll:
			out[n.Iter] = loopir.Arg{Name: n.Iter, Typ: loopir.Scalar(loopir.TypeIndex)}
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
	return out
}

// Inline replaces a Call statement by its callee's body, with buffer
// parameters resolved by renaming and scalar parameters resolved by
// substitution. The callee's own locals
// (Allocs and loop iterators) are prefixed by the callee's name before
// splicing, a cheap guard against accidentally capturing a caller name of
// the same spelling.
func Inline(p *loopir.Proc, c cursor.Cursor) (*loopir.Proc, *cursor.ForwardingMap, error) {
	stmt, err := c.Stmt()
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	call, ok := stmt.(*loopir.Call)
	if !ok {
		return nil, nil, errcode.New(errcode.CursorKind, "inline: cursor does not point to a call")
	}
	if len(call.Args) != len(call.Callee.Args) {
		return nil, nil, errcode.New(errcode.Bug, "inline: call arity does not match callee")
	}

	body := loopir.CloneStmts(call.Callee.Body)
	prefix := call.Callee.Name
	for local := range localNames(body) {
		body = renameBufInBlock(body, local, prefix+"$"+local)
	}
	for i, arg := range call.Callee.Args {
		actual := call.Args[i]
		if arg.Typ.IsArray() || arg.Typ.IsWindow() {
			actualRead, ok := actual.(*loopir.Read)
			if !ok || len(actualRead.Idx) != 0 {
				return nil, nil, errcode.Argument(i, arg.Name, "inline", "buffer parameters must be bound to a plain buffer name")
			}
			body = renameBufInBlock(body, arg.Name, actualRead.Name)
		} else {
			body = SubstBlock(body, arg.Name, actual)
		}
	}

	anchor, idx, err := nodeAnchor(c)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	fullBlock, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	np, err := ReplaceRange(p, anchor, idx, idx+1, body)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "inline")
	}
	fwd := shiftForwarding(anchor, idx, idx+1, len(body), len(fullBlock))
	return np, fwd, nil
}

// Replace runs the unifier against subproc's body over the block b names,
// and on success collapses the block into a Call with the unifier's
// inferred actuals; on failure it raises a unification error. quiet
// downgrades a unification failure from an error
// to a no-op: the procedure is returned unchanged, letting a caller probe
// several candidate subprocs without aborting a larger rewrite script on
// the first one that does not match (an Open Question the source text left
// to the implementation, recorded in DESIGN.md).
func Replace(p *loopir.Proc, b cursor.Cursor, subproc *loopir.Proc, quiet bool) (*loopir.Proc, *cursor.ForwardingMap, error) {
	if b.Kind() != cursor.KindBlock {
		return nil, nil, errcode.New(errcode.CursorKind, "replace: expected a Block cursor")
	}
	anchor := b.Anchor()
	lo, hi := b.Range()
	fullBlock, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	block := fullBlock[lo:hi]

	subst, err := unify.Unify(subproc, block)
	if err != nil {
		if quiet {
			return p.Clone(), cursor.Identity(), nil
		}
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "replace: block does not unify with %s", subproc.Name)
	}
	actuals, err := subst.Actuals(subproc)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "replace")
	}

	call := &loopir.Call{Callee: subproc, Args: actuals}
	np, err := ReplaceRange(p, anchor, lo, hi, []loopir.Stmt{call})
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "replace")
	}
	fwd := shiftForwarding(anchor, lo, hi, 1, len(fullBlock))
	return np, fwd, nil
}

// CallEqv swaps a Call's callee for eqv, an equivalent procedure
// established by a provenance chain that preserves equal-mod-config,
// keeping the actual arguments unchanged. The provenance check itself — that eqv and
// call.Callee share an ancestor in their provenance chains — belongs to internal/api, which carries
// each Procedure's rewrite history; this primitive only performs the
// substitution once that check has passed, and guards the one precondition
// it can check locally: the two signatures must line up positionally.
func CallEqv(p *loopir.Proc, c cursor.Cursor, eqv *loopir.Proc) (*loopir.Proc, *cursor.ForwardingMap, error) {
	stmt, err := c.Stmt()
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	call, ok := stmt.(*loopir.Call)
	if !ok {
		return nil, nil, errcode.New(errcode.CursorKind, "call_eqv: cursor does not point to a call")
	}
	if len(eqv.Args) != len(call.Callee.Args) {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "call_eqv: %s is not equivalent to %s: argument count differs", eqv.Name, call.Callee.Name)
	}
	for i := range eqv.Args {
		if !eqv.Args[i].Typ.Equal(call.Callee.Args[i].Typ) {
			return nil, nil, errcode.New(errcode.PreconditionUnmet, "call_eqv: %s is not equivalent to %s: argument %d's type differs", eqv.Name, call.Callee.Name, i)
		}
	}

	newCall := &loopir.Call{Callee: eqv, Args: append([]loopir.Expr(nil), call.Args...)}
	anchor, idx, err := nodeAnchor(c)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	np, err := ReplaceRange(p, anchor, idx, idx+1, []loopir.Stmt{newCall})
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "call_eqv")
	}
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	fwd := cursor.NewForwardingMap()
	for i := range block {
		old := anchor.Path.Child(anchor.Field, i)
		fwd.Set(old, old)
	}
	return np, fwd, nil
}

// renameBufInBlock renames every declaration and use of old to new
// throughout stmts — unlike SubstBlock/SubstExpr in subst.go, which replace
// a bare-name *read* by an arbitrary expression, this renames the name
// itself wherever it appears (Alloc/Assign/Reduce targets, loop iterators,
// window and stride buffer references), the operation inline and
// reuse_buffer need when splicing one procedure's names into another's
// scope. Assumes loopir.Check's name-hygiene invariant: every bound name in
// a valid procedure is used in exactly one scope, so no shadowing check is
// needed before renaming.
func renameBufInBlock(stmts []loopir.Stmt, old, new string) []loopir.Stmt {
	out := make([]loopir.Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = renameBufInStmt(s, old, new)
	}
	return out
}

func renameBufInStmt(s loopir.Stmt, old, new string) loopir.Stmt {
	switch n := s.(type) {
	case *loopir.Assign:
		c := *n
		if c.Name == old {
			c.Name = new
		}
		c.Idx = renameBufInExprs(n.Idx, old, new)
		c.Rhs = renameBufInExpr(n.Rhs, old, new)
		return &c
	case *loopir.Reduce:
		c := *n
		if c.Name == old {
			c.Name = new
		}
		c.Idx = renameBufInExprs(n.Idx, old, new)
		c.Rhs = renameBufInExpr(n.Rhs, old, new)
		return &c
	case *loopir.WriteConfig:
		c := *n
		c.Rhs = renameBufInExpr(n.Rhs, old, new)
		return &c
	case *loopir.Alloc:
		c := *n
		if c.Name == old {
			c.Name = new
		}
		c.Typ = n.Typ.WithDims(renameBufInExprs(n.Typ.Dims, old, new))
		return &c
	case *loopir.Free:
		c := *n
		if c.Name == old {
			c.Name = new
		}
		return &c
	case *loopir.If:
		c := *n
		c.Cond = renameBufInExpr(n.Cond, old, new)
		c.Body = renameBufInBlock(n.Body, old, new)
		c.Orelse = renameBufInBlock(n.Orelse, old, new)
		return &c
	case *loopir.Seq:
		c := *n
		if c.Iter == old {
			c.Iter = new
		}
		c.Hi = renameBufInExpr(n.Hi, old, new)
		c.Body = renameBufInBlock(n.Body, old, new)
		return &c
	case *loopir.ForAll:
		c := *n
		if c.Iter == old {
			c.Iter = new
		}
		c.Hi = renameBufInExpr(n.Hi, old, new)
		c.Body = renameBufInBlock(n.Body, old, new)
		return &c
	case *loopir.Call:
		c := *n
		c.Args = renameBufInExprs(n.Args, old, new)
		return &c
	case *loopir.WindowStmt:
		c := *n
		we := renameBufInExpr(n.WinExpr, old, new).(*loopir.WindowExpr)
		c.WinExpr = we
		if c.Name == old {
			c.Name = new
		}
		return &c
	default:
		return loopir.CloneStmt(s)
	}
}

func renameBufInExpr(e loopir.Expr, old, new string) loopir.Expr {
	switch n := e.(type) {
	case *loopir.Read:
		c := *n
		if c.Name == old {
			c.Name = new
		}
		c.Idx = renameBufInExprs(n.Idx, old, new)
		return &c
	case *loopir.Const:
		return n
	case *loopir.USub:
		c := *n
		c.Arg = renameBufInExpr(n.Arg, old, new)
		return &c
	case *loopir.BinOp:
		c := *n
		c.Lhs = renameBufInExpr(n.Lhs, old, new)
		c.Rhs = renameBufInExpr(n.Rhs, old, new)
		return &c
	case *loopir.BuiltIn:
		c := *n
		c.Args = renameBufInExprs(n.Args, old, new)
		return &c
	case *loopir.WindowExpr:
		c := *n
		if c.Name == old {
			c.Name = new
		}
		c.WAccess = make([]loopir.WAccess, len(n.WAccess))
		for i, a := range n.WAccess {
			switch w := a.(type) {
			case loopir.Point:
				c.WAccess[i] = loopir.Point{E: renameBufInExpr(w.E, old, new)}
			case loopir.Interval:
				c.WAccess[i] = loopir.Interval{
					Lo: renameBufInExpr(w.Lo, old, new),
					Hi: renameBufInExpr(w.Hi, old, new),
				}
			}
		}
		return &c
	case *loopir.StrideExpr:
		c := *n
		if c.Name == old {
			c.Name = new
		}
		return &c
	default:
		return loopir.CloneExpr(e)
	}
}

func renameBufInExprs(es []loopir.Expr, old, new string) []loopir.Expr {
	if es == nil {
		return nil
	}
	out := make([]loopir.Expr, len(es))
	for i, e := range es {
		out[i] = renameBufInExpr(e, old, new)
	}
	return out
}
