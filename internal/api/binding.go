package api

import (
	"exo/internal/argcheck"
	"exo/internal/cursor"
	"exo/internal/schedule"
)

// BindExpr introduces a fresh scalar buffer holding the value of e,
// optionally substituting every later syntactically identical expression in
// the same block (cse).
func (pr *Procedure) BindExpr(e cursor.Cursor, name string, cse bool) (*Procedure, error) {
	e, err := argcheck.ExprCursor(0, "expr", "bind_expr", e)
	if err != nil {
		return nil, err
	}
	name = pr.freshName(name, "bound")
	np, fwd, err := schedule.BindExpr(pr.proc, e, name, cse)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "bind_expr"), nil
}
