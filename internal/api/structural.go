package api

import (
	"exo/internal/argcheck"
	"exo/internal/cursor"
	"exo/internal/schedule"
)

// Rename changes the procedure's own name.
func (pr *Procedure) Rename(name string) (*Procedure, error) {
	name, err := argcheck.Name(0, "name", "rename", name)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.Rename(pr.proc, name)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "rename"), nil
}

// Simplify folds constants, drops dead branches and zero-trip loops, to a
// fixpoint. It does not push loop-invariant conditions into branches.
func (pr *Procedure) Simplify() (*Procedure, error) {
	np, fwd, err := schedule.Simplify(pr.proc)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "simplify"), nil
}

// InsertPass inserts a Pass statement at the named gap.
func (pr *Procedure) InsertPass(gap cursor.Cursor) (*Procedure, error) {
	gap, err := argcheck.GapCursor(0, "gap", "insert_pass", gap)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.InsertPass(pr.proc, gap)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "insert_pass"), nil
}

// DeletePass removes a Pass statement.
func (pr *Procedure) DeletePass(c cursor.Cursor) (*Procedure, error) {
	c, err := argcheck.StmtCursor(0, "stmt", "delete_pass", c)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.DeletePass(pr.proc, c)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "delete_pass"), nil
}

// ReorderStmts swaps the two statements of a two-statement block.
func (pr *Procedure) ReorderStmts(b cursor.Cursor) (*Procedure, error) {
	b, err := argcheck.BlockCursor(0, "block", "reorder_stmts", b)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.ReorderStmts(pr.proc, b)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "reorder_stmts"), nil
}

// CommuteExpr swaps the operands of a commutative BinOp.
func (pr *Procedure) CommuteExpr(e cursor.Cursor) (*Procedure, error) {
	e, err := argcheck.ExprCursor(0, "expr", "commute_expr", e)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.CommuteExpr(pr.proc, e)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "commute_expr"), nil
}
