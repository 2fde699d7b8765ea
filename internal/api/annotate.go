package api

import (
	"exo/internal/argcheck"
	"exo/internal/schedule"
)

// SetPrecision updates the declared base type of buf.
func (pr *Procedure) SetPrecision(buf, typeAbbrev string) (*Procedure, error) {
	buf, err := argcheck.Name(0, "buf", "set_precision", buf)
	if err != nil {
		return nil, err
	}
	base, err := argcheck.TypeAbbrev(1, "base", "set_precision", typeAbbrev)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.SetPrecision(pr.proc, buf, base)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "set_precision"), nil
}

// SetWindow toggles whether buf is declared as a window view.
func (pr *Procedure) SetWindow(buf string, window bool) (*Procedure, error) {
	buf, err := argcheck.Name(0, "buf", "set_window", buf)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.SetWindow(pr.proc, buf, window)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "set_window"), nil
}

// SetMemory records a new memory-space annotation on buf's Alloc.
func (pr *Procedure) SetMemory(buf, space string) (*Procedure, error) {
	buf, err := argcheck.Name(0, "buf", "set_memory", buf)
	if err != nil {
		return nil, err
	}
	mem, err := argcheck.MemorySpace(1, "space", "set_memory", space)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.SetMemory(pr.proc, buf, mem)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "set_memory"), nil
}

// MakeInstr tags the procedure as a hardware instruction template.
func (pr *Procedure) MakeInstr(instr string) (*Procedure, error) {
	np, fwd, err := schedule.MakeInstr(pr.proc, instr)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "make_instr"), nil
}
