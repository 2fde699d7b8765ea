package api

import (
	"exo/internal/argcheck"
	"exo/internal/config"
	"exo/internal/cursor"
	"exo/internal/loopir"
	"exo/internal/schedule"
)

// BindConfig routes a control expression through a configuration field.
func (pr *Procedure) BindConfig(e cursor.Cursor, cfg *config.Config, field string) (*Procedure, error) {
	e, err := argcheck.ExprCursor(0, "expr", "bind_config", e)
	if err != nil {
		return nil, err
	}
	if _, err := argcheck.ConfigField(2, "field", "bind_config", cfg, field); err != nil {
		return nil, err
	}
	np, fwd, err := schedule.BindConfig(pr.proc, e, cfg, field)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "bind_config"), nil
}

// DeleteConfig drops a WriteConfig statement.
func (pr *Procedure) DeleteConfig(c cursor.Cursor) (*Procedure, error) {
	c, err := argcheck.StmtCursor(0, "stmt", "delete_config", c)
	if err != nil {
		return nil, err
	}
	np, fwd, err := schedule.DeleteConfig(pr.proc, c)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "delete_config"), nil
}

// WriteConfigOp injects a WriteConfig into a gap.
func (pr *Procedure) WriteConfigOp(g cursor.Cursor, cfg *config.Config, field string, rhs loopir.Expr) (*Procedure, error) {
	g, err := argcheck.GapCursor(0, "gap", "write_config", g)
	if err != nil {
		return nil, err
	}
	if _, err := argcheck.ConfigField(2, "field", "write_config", cfg, field); err != nil {
		return nil, err
	}
	np, fwd, err := schedule.WriteConfigOp(pr.proc, g, cfg, field, rhs)
	if err != nil {
		return nil, err
	}
	return pr.derive(np, fwd, "write_config"), nil
}
