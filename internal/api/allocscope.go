package api

import (
	"exo/internal/argcheck"
	"exo/internal/cursor"
	"exo/internal/loopir"
	"exo/internal/schedule"
)

// LiftAlloc moves an Alloc (and its matching Free) outward n enclosing scope
// levels.
func (pr *Procedure) LiftAlloc(alloc cursor.Cursor, n int) (*Procedure, error) {
	alloc, err := argcheck.StmtCursor(0, "alloc", "lift_alloc", alloc)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.LiftAlloc(pr.proc, alloc, n)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "lift_alloc"), nil
}

// AutoliftAlloc is lift_alloc's legacy variant, which may additionally expand
// the alloc's shape to absorb a crossed binder. mode is "row" or "col".
func (pr *Procedure) AutoliftAlloc(alloc cursor.Cursor, n int, mode string, size loopir.Expr, keepDims []int) (*Procedure, error) {
	alloc, err := argcheck.StmtCursor(0, "alloc", "autolift_alloc", alloc)
	if err != nil {
		return nil, err
	}
	mode, err = argcheck.Enum(2, "mode", "autolift_alloc", mode, []string{"row", "col"})
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.AutoliftAlloc(pr.proc, alloc, n, mode, size, keepDims)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "autolift_alloc"), nil
}

// ReuseBuffer erases y's Alloc and substitutes x for y through y's live
// range.
func (pr *Procedure) ReuseBuffer(x, y string) (*Procedure, error) {
	x, err := argcheck.Name(0, "x", "reuse_buffer", x)
	if err != nil {
		return nil, err
	}
	y, err = argcheck.Name(1, "y", "reuse_buffer", y)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.ReuseBuffer(pr.proc, x, y)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "reuse_buffer"), nil
}

// StageMem inserts a staging buffer for a window, copying it in before block
// and back out after.
func (pr *Procedure) StageMem(block cursor.Cursor, win *loopir.WindowExpr, name string, accum bool) (*Procedure, error) {
	name = pr.freshName(name, "stage")
	np, fwd, err := schedule.StageMem(pr.proc, block, win, name, accum)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "stage_mem"), nil
}

// StageWindow binds a WindowStmt's alias to a freshly staged buffer.
func (pr *Procedure) StageWindow(winStmt, block cursor.Cursor, name string, accum bool) (*Procedure, error) {
	name = pr.freshName(name, "stage")
	np, fwd, err := schedule.StageWindow(pr.proc, winStmt, block, name, accum)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "stage_window"), nil
}

// InlineWindow strips a staged region produced by StageWindow.
func (pr *Procedure) InlineWindow(winStmt, block cursor.Cursor) (*Procedure, error) {
	np, fwd, err := schedule.InlineWindow(pr.proc, winStmt, block)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "inline_window"), nil
}
