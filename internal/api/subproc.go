package api

import (
	"exo/internal/argcheck"
	"exo/internal/cursor"
	"exo/internal/errcode"
	"exo/internal/loopir"
	"exo/internal/schedule"
)

// ExtractSubproc pulls the statement or statement range c names out into a
// freestanding procedure, replacing the region with a call. It returns both
// the rewritten caller, which extends pr's provenance chain, and the freshly
// minted callee, which is the root of a new chain not linked to pr.
func (pr *Procedure) ExtractSubproc(c cursor.Cursor, name string) (caller, callee *Procedure, err error) {
	name, err = argcheck.Name(1, "name", "extract_subproc", name)
	if err != nil {
		return nil, nil, err
	}
	np, sub, fwd, err := schedule.ExtractSubproc(pr.proc, c, name)
	if err != nil {
		return nil, nil, err
	}
	return pr.derive(np, fwd, "extract_subproc"), New(sub), nil
}

// Inline replaces a Call statement by its callee's body.
func (pr *Procedure) Inline(c cursor.Cursor) (*Procedure, error) {
	c, err := argcheck.CallCursor(pr.proc, 0, "call", "inline", c)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.Inline(pr.proc, c)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "inline"), nil
}

// Replace runs the unifier against subproc's body over the block b names,
// collapsing a match into a Call. quiet downgrades a unification failure to
// a no-op.
func (pr *Procedure) Replace(b cursor.Cursor, subproc *Procedure, quiet bool) (*Procedure, error) {
	b, err := argcheck.BlockCursor(0, "block", "replace", b)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.Replace(pr.proc, b, subproc.proc, quiet)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "replace"), nil
}

// CallEqv swaps a Call's callee for eqv, provided eqv and the current
// callee share a common ancestor in their provenance chains (see Eqv).
func (pr *Procedure) CallEqv(c cursor.Cursor, eqv *Procedure) (*Procedure, error) {
	c, err := argcheck.CallCursor(pr.proc, 0, "call", "call_eqv", c)
	if err != nil {
		return nil, err
	}
	stmt, err := c.Stmt()
	if err != nil {
		return nil, errcode.FromCursor(err)
	}
	call, ok := stmt.(*loopir.Call)
	if !ok {
		return nil, errcode.New(errcode.CursorKind, "call_eqv: cursor does not point to a call")
	}
	current, known := registry[call.Callee]
	if !known || !current.Eqv(eqv) {
		return nil, errcode.New(errcode.PreconditionUnmet, "call_eqv: %s is not on %s's provenance chain", eqv.proc.Name, call.Callee.Name)
	}
	np, fwd, err := schedule.CallEqv(pr.proc, c, eqv.proc)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "call_eqv"), nil
}
