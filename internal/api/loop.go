package api

import (
	"exo/internal/argcheck"
	"exo/internal/cursor"
	"exo/internal/loopir"
	"exo/internal/schedule"
)

// DivideLoop splits the named loop into an outer loop of hiName and an inner
// loop of loName, handling the remainder per tail ("cut", "guard", or
// "cut_and_guard").
func (pr *Procedure) DivideLoop(loop any, q int, hiName, loName, tail string, perfect bool) (*Procedure, error) {
	c, err := argcheck.ForSeqCursor(pr.proc, 0, "loop", "divide_loop", loop)
	if err != nil {
		return nil, err
	}
	tail, err = argcheck.Enum(4, "tail", "divide_loop", tail, []string{"cut", "guard", "cut_and_guard"})
	if err != nil {
		return nil, err
	}
	hiName = pr.freshName(hiName, hiName)
	loName = pr.freshName(loName, loName)
	np, fwd, err := schedule.DivideLoop(pr.proc, c, q, hiName, loName, tail, perfect)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "divide_loop"), nil
}

// BoundAndGuard is divide_loop's tail="guard" variant immediately
// simplified.
func (pr *Procedure) BoundAndGuard(loop any, q int, hiName, loName string) (*Procedure, error) {
	c, err := argcheck.ForSeqCursor(pr.proc, 0, "loop", "bound_and_guard", loop)
	if err != nil {
		return nil, err
	}
	hiName = pr.freshName(hiName, hiName)
	loName = pr.freshName(loName, loName)
	np, fwd, err := schedule.BoundAndGuard(pr.proc, c, q, hiName, loName)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "bound_and_guard"), nil
}

// MultLoops collapses an outer loop whose entire body is a single inner loop
// of the same kind into one loop.
func (pr *Procedure) MultLoops(loop any, name string) (*Procedure, error) {
	c, err := argcheck.ForSeqCursor(pr.proc, 0, "loop", "mult_loops", loop)
	if err != nil {
		return nil, err
	}
	name = pr.freshName(name, name)
	np, fwd, err := schedule.MultLoops(pr.proc, c, name)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "mult_loops"), nil
}

// CutLoop splits [0,N) into [0,k) and [k,N).
func (pr *Procedure) CutLoop(loop any, k int) (*Procedure, error) {
	c, err := argcheck.ForSeqCursor(pr.proc, 0, "loop", "cut_loop", loop)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.CutLoop(pr.proc, c, k)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "cut_loop"), nil
}

// ReorderLoops swaps two perfectly-nested loops.
func (pr *Procedure) ReorderLoops(loop any) (*Procedure, error) {
	c, err := argcheck.ForSeqCursor(pr.proc, 0, "loop", "reorder_loops", loop)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.ReorderLoops(pr.proc, c)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "reorder_loops"), nil
}

// Fuse merges two adjacent loops of the same kind and bound, or two adjacent
// Ifs with identical conditions.
func (pr *Procedure) Fuse(s1, s2 cursor.Cursor) (*Procedure, error) {
	s1, err := argcheck.StmtCursor(0, "s1", "fuse", s1)
	if err != nil {
		return nil, err
	}
	s2, err = argcheck.StmtCursor(1, "s2", "fuse", s2)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.Fuse(pr.proc, s1, s2)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "fuse"), nil
}

// Fission splits the gap's n enclosing loop/if levels into two copies each.
func (pr *Procedure) Fission(gap cursor.Cursor, n int) (*Procedure, error) {
	gap, err := argcheck.GapCursor(0, "gap", "fission", gap)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.Fission(pr.proc, gap, n)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "fission"), nil
}

// AutoFission is Fission followed by removal of any resulting loop whose
// body became empty or idempotent.
func (pr *Procedure) AutoFission(gap cursor.Cursor, n int) (*Procedure, error) {
	gap, err := argcheck.GapCursor(0, "gap", "autofission", gap)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.AutoFission(pr.proc, gap, n)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "autofission"), nil
}

// RemoveLoop drops the surrounding loop when its body is idempotent and
// independent of the iterator.
func (pr *Procedure) RemoveLoop(loop any) (*Procedure, error) {
	c, err := argcheck.ForSeqCursor(pr.proc, 0, "loop", "remove_loop", loop)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.RemoveLoop(pr.proc, c)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "remove_loop"), nil
}

// AddLoop wraps a block in a new loop, either idempotence-proved or
// guard-protected.
func (pr *Procedure) AddLoop(block cursor.Cursor, name string, hi loopir.Expr, guard, isForAll bool) (*Procedure, error) {
	block, err := argcheck.BlockCursor(0, "block", "add_loop", block)
	if err != nil {
		return nil, err
	}
	name = pr.freshName(name, name)
	np, fwd, err := schedule.AddLoop(pr.proc, block, name, hi, guard, isForAll)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "add_loop"), nil
}

// UnrollLoop splices hi copies of a literal-bound loop's body.
func (pr *Procedure) UnrollLoop(loop any) (*Procedure, error) {
	c, err := argcheck.ForSeqCursor(pr.proc, 0, "loop", "unroll_loop", loop)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.UnrollLoop(pr.proc, c)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "unroll_loop"), nil
}

// LiftScope hoists an If or Seq one level outward.
func (pr *Procedure) LiftScope(c cursor.Cursor) (*Procedure, error) {
	c, err := argcheck.StmtCursor(0, "stmt", "lift_scope", c)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.LiftScope(pr.proc, c)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "lift_scope"), nil
}
