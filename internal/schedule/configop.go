package schedule

import (
	"exo/internal/config"
	"exo/internal/cursor"
	"exo/internal/effects"
	"exo/internal/errcode"
	"exo/internal/loopir"
)

// BindConfig routes a control expression through a configuration field:
// given a cursor to a control expression that is a bare Read, it inserts
// WriteConfig(cfg, field, that_read) immediately before the enclosing
// statement, then rewrites every occurrence of the original control
// expression up to the next writing site to ReadConfig(cfg, field). Types
// must match. e must resolve to a plain *loopir.Read (no index expression
// counts as a "control expression" here, matching bind_expr's own cse
// substitution which works over whole expressions rather than sub-reads).
func BindConfig(p *loopir.Proc, e cursor.Cursor, cfg *config.Config, field string) (*loopir.Proc, *cursor.ForwardingMap, error) {
	expr, err := e.Expr()
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	read, ok := expr.(*loopir.Read)
	if !ok {
		return nil, nil, errcode.New(errcode.ArgumentType, "bind_config: control expression must be a bare Read, got %T", expr)
	}
	if !cfg.HasField(field) {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "bind_config: %s has no field %q", cfg.Name, field)
	}
	ft, _ := cfg.Lookup(field)

	stmtPath, err := ownerStmtPath(e.Path())
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "bind_config")
	}
	env := buildEnv(p, stmtPath)
	et, ok := exprType(read, env)
	if !ok {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "bind_config: could not determine the control expression's type")
	}
	if et.Base != configFieldBase(ft) {
		return nil, nil, errcode.New(errcode.ArgumentType, "bind_config: %s.%s is %v, control expression is %v", cfg.Name, field, configFieldBase(ft), et.Base)
	}

	parentPath, sel, ok := stmtPath.Parent()
	if !ok {
		return nil, nil, errcode.New(errcode.Bug, "bind_config: statement has no enclosing block")
	}
	anchor := cursor.Anchor{Path: parentPath, Field: sel.Field}
	idx := sel.Index
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}

	write := &loopir.WriteConfig{Cfg: cfg, Field: field, Rhs: loopir.CloneExpr(read)}
	readCfg := &loopir.ReadConfig{Cfg: cfg, Field: field}
	newTail := substTailEqualWith(block[idx:], read.String(), map[string]bool{read.Name: true}, readCfg)

	replacement := append([]loopir.Stmt{write}, newTail...)
	np, err := ReplaceRange(p, anchor, idx, len(block), replacement)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "bind_config failed")
	}

	fwd := cursor.NewForwardingMap()
	for i := 0; i < idx; i++ {
		old := anchor.Path.Child(anchor.Field, i)
		fwd.Set(old, old)
	}
	for i := idx; i < len(block); i++ {
		old := anchor.Path.Child(anchor.Field, i)
		fwd.Set(old, anchor.Path.Child(anchor.Field, i+1))
	}
	return np, fwd, nil
}

// substTailEqualWith is substTailEqual generalized over the replacement
// expression: bind_expr always replaces with a Read of the freshly bound
// name, but bind_config replaces with a ReadConfig, so this variant takes
// repl directly instead of building loopir.RD(name) internally.
func substTailEqualWith(stmts []loopir.Stmt, targetStr string, free map[string]bool, repl loopir.Expr) []loopir.Stmt {
	out := make([]loopir.Stmt, len(stmts))
	killed := false
	for i, s := range stmts {
		if !killed {
			out[i] = substStmtEqual(s, targetStr, repl)
		} else {
			out[i] = loopir.CloneStmt(s)
		}
		for _, acc := range effects.AccessesOfStmt(s) {
			switch acc.Kind {
			case effects.AccessWrite, effects.AccessReduce:
				if free[acc.Buf] {
					killed = true
				}
			}
		}
	}
	return out
}

// DeleteConfig drops a WriteConfig statement, provided nothing downstream
// reads the configuration field it sets before some other WriteConfig
// overwrites it — dead on the configuration channel.
func DeleteConfig(p *loopir.Proc, c cursor.Cursor) (*loopir.Proc, *cursor.ForwardingMap, error) {
	stmt, err := c.Stmt()
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	write, ok := stmt.(*loopir.WriteConfig)
	if !ok {
		return nil, nil, errcode.New(errcode.ArgumentType, "delete_config: expected a WriteConfig, got %T", stmt)
	}
	anchor, idx, err := nodeAnchor(c)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.CursorKind, err, "delete_config")
	}
	block, err := anchor.StmtBlock(p)
	if err != nil {
		return nil, nil, errcode.FromCursor(err)
	}
	if deadOnConfig(block[idx+1:], write.Cfg.Name, write.Field) {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "delete_config: %s.%s is read before its next write", write.Cfg.Name, write.Field)
	}

	np, err := ReplaceRange(p, anchor, idx, idx+1, nil)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "delete_config failed")
	}
	fwd := shiftForwarding(anchor, idx, idx+1, 0, len(block))
	return np, fwd, nil
}

// deadOnConfig reports whether cfg.field is read anywhere in after before
// any statement there overwrites it.
func deadOnConfig(after []loopir.Stmt, cfgName, field string) bool {
	for _, s := range after {
		for _, acc := range effects.AccessesOfStmt(s) {
			if acc.Cfg != cfgName || acc.Field != field {
				continue
			}
			switch acc.Kind {
			case effects.AccessConfigRead:
				return true
			case effects.AccessConfigWrite:
				return false
			}
		}
		switch n := s.(type) {
		case *loopir.If:
			if deadOnConfig(n.Body, cfgName, field) || deadOnConfig(n.Orelse, cfgName, field) {
				return true
			}
		case *loopir.Seq:
			if deadOnConfig(n.Body, cfgName, field) {
				return true
			}
		case *loopir.ForAll:
			if deadOnConfig(n.Body, cfgName, field) {
				return true
			}
		}
	}
	return false
}

// WriteConfigOp injects a WriteConfig into the gap g names.
func WriteConfigOp(p *loopir.Proc, g cursor.Cursor, cfg *config.Config, field string, rhs loopir.Expr) (*loopir.Proc, *cursor.ForwardingMap, error) {
	if g.Kind() != cursor.KindGap {
		return nil, nil, errcode.New(errcode.CursorKind, "write_config: expected a Gap cursor, got %s", g.Kind())
	}
	if !cfg.HasField(field) {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "write_config: %s has no field %q", cfg.Name, field)
	}
	anchor := g.Anchor()
	at, _ := g.Range()
	write := &loopir.WriteConfig{Cfg: cfg, Field: field, Rhs: loopir.CloneExpr(rhs)}
	np, err := ReplaceRange(p, anchor, at, at, []loopir.Stmt{write})
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.Bug, err, "write_config failed")
	}
	fwd := shiftForwarding(anchor, at, at, 1, func() int {
		block, _ := anchor.StmtBlock(p)
		return len(block)
	}())
	return np, fwd, nil
}
