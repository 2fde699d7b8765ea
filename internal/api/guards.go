package api

import (
	"exo/internal/argcheck"
	"exo/internal/cursor"
	"exo/internal/loopir"
	"exo/internal/schedule"
)

// Specialize produces an if/elif/.../else cascade over conds, one copy of
// block per branch.
func (pr *Procedure) Specialize(block cursor.Cursor, conds []loopir.Expr) (*Procedure, error) {
	np, fwd, err := schedule.Specialize(pr.proc, block, conds)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "specialize"), nil
}

// AssertIf replaces an If by its b branch, provided the condition provably
// evaluates to b.
func (pr *Procedure) AssertIf(c cursor.Cursor, b bool) (*Procedure, error) {
	c, err := argcheck.StmtCursor(0, "stmt", "assert_if", c)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.AssertIf(pr.proc, c, b)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "assert_if"), nil
}

// MergeWrites merges two adjacent writes to the same buffer location.
func (pr *Procedure) MergeWrites(c cursor.Cursor) (*Procedure, error) {
	c, err := argcheck.StmtCursor(0, "stmt", "merge_writes", c)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.MergeWrites(pr.proc, c)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "merge_writes"), nil
}

// LiftReduceConstant factors a loop-invariant multiplicand out of an
// accumulation loop.
func (pr *Procedure) LiftReduceConstant(initC cursor.Cursor) (*Procedure, error) {
	initC, err := argcheck.StmtCursor(0, "init", "lift_reduce_constant", initC)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.LiftReduceConstant(pr.proc, initC)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "lift_reduce_constant"), nil
}

// AddUnsafeGuard wraps block in `if cond: <block>` without discharging any
// legality obligation.
func (pr *Procedure) AddUnsafeGuard(block cursor.Cursor, cond loopir.Expr) (*Procedure, error) {
	np, fwd, err := schedule.AddUnsafeGuard(pr.proc, block, cond)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "add_unsafe_guard"), nil
}
