package api

import (
	"exo/internal/argcheck"
	"exo/internal/loopir"
	"exo/internal/schedule"
)

// ExpandDim adds a new outermost dimension to buf.
func (pr *Procedure) ExpandDim(buf string, size, idx loopir.Expr) (*Procedure, error) {
	buf, err := argcheck.Name(0, "buf", "expand_dim", buf)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.ExpandDim(pr.proc, buf, size, idx)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "expand_dim"), nil
}

// RearrangeDim permutes buf's declared dimensions.
func (pr *Procedure) RearrangeDim(buf string, perm []int) (*Procedure, error) {
	buf, err := argcheck.Name(0, "buf", "rearrange_dim", buf)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.RearrangeDim(pr.proc, buf, perm)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "rearrange_dim"), nil
}

// BoundAlloc tightens buf's declared extents.
func (pr *Procedure) BoundAlloc(buf string, newExtents []loopir.Expr) (*Procedure, error) {
	buf, err := argcheck.Name(0, "buf", "bound_alloc", buf)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.BoundAlloc(pr.proc, buf, newExtents)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "bound_alloc"), nil
}

// DivideDim splits dimension i of buf into an outer and inner dimension.
func (pr *Procedure) DivideDim(buf string, i, q int) (*Procedure, error) {
	buf, err := argcheck.Name(0, "buf", "divide_dim", buf)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.DivideDim(pr.proc, buf, i, q)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "divide_dim"), nil
}

// MultDim folds adjacent dimensions hi, lo of buf back into one.
func (pr *Procedure) MultDim(buf string, hi, lo int) (*Procedure, error) {
	buf, err := argcheck.Name(0, "buf", "mult_dim", buf)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.MultDim(pr.proc, buf, hi, lo)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "mult_dim"), nil
}
