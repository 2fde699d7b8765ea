package argcheck

import (
	"fmt"

	"exo/internal/cursor"
	"exo/internal/errcode"
	"exo/internal/loopir"
	"exo/internal/pattern"
)

// resolveNamed expands a "<name>" or "<name> #<k>" shorthand into a concrete
// cursor by building a pattern source from patternOf and an occurrence
// selector, then delegating to pattern.Find; a caller passing an
// already-resolved cursor.Cursor skips this entirely.
func resolveNamed(proc *loopir.Proc, i int, argName, op, v string, patternOf func(name string) string) (cursor.Cursor, error) {
	name, occ, err := NameCount(i, argName, op, v)
	if err != nil {
		return cursor.Cursor{}, err
	}
	c, err := pattern.Find(proc, fmt.Sprintf("%s #%d", patternOf(name), occ))
	if err != nil {
		return cursor.Cursor{}, errcode.Argument(i, argName, op, fmt.Sprintf("no match for %q: %v", v, err))
	}
	return c, nil
}

func wantKind(i int, argName, op string, c cursor.Cursor, want cursor.Kind) (cursor.Cursor, error) {
	if c.Kind() != want {
		return cursor.Cursor{}, errcode.Argument(i, argName, op, fmt.Sprintf("expected a %s cursor, found %s", want, c.Kind()))
	}
	return c, nil
}

// ForSeqCursor resolves a scheduling op's loop argument: either an
// already-built cursor.Cursor, or a "<name>" / "<name> #<k>" shorthand
// expanded against `for NAME in _: _` (ArgumentProcessor ForSeqCursorA /
// ForSeqOrIfCursorA's loop branch).
func ForSeqCursor(proc *loopir.Proc, i int, argName, op string, v any) (cursor.Cursor, error) {
	switch t := v.(type) {
	case cursor.Cursor:
		return wantKind(i, argName, op, t, cursor.KindNode)
	case string:
		c, err := resolveNamed(proc, i, argName, op, t, func(name string) string {
			return "for " + name + " in _: _"
		})
		if err != nil {
			return cursor.Cursor{}, err
		}
		return wantKind(i, argName, op, c, cursor.KindNode)
	default:
		return cursor.Cursor{}, errcode.Argument(i, argName, op, "expected a cursor or a loop name")
	}
}

// IfCursor resolves an if-statement argument. The pattern grammar's
// IfPattern carries no name to key a shorthand off of, so the only string
// form accepted is an occurrence selector such as "#2" (default "#1")
// picking the k'th `if` in the procedure; a bare cursor.Cursor is always
// accepted directly.
func IfCursor(proc *loopir.Proc, i int, argName, op string, v any) (cursor.Cursor, error) {
	switch t := v.(type) {
	case cursor.Cursor:
		return wantKind(i, argName, op, t, cursor.KindNode)
	case string:
		src := "if _: _"
		if t != "" {
			src += " " + t
		}
		c, err := pattern.Find(proc, src)
		if err != nil {
			return cursor.Cursor{}, errcode.Argument(i, argName, op, "no matching if statement")
		}
		return wantKind(i, argName, op, c, cursor.KindNode)
	default:
		return cursor.Cursor{}, errcode.Argument(i, argName, op, "expected a cursor or an occurrence selector")
	}
}

// CallCursor resolves a callee-name shorthand ("<name>" / "<name> #<k>")
// against `NAME(_)` (ArgumentProcessor CallCursorA), or accepts an
// already-built cursor directly.
func CallCursor(proc *loopir.Proc, i int, argName, op string, v any) (cursor.Cursor, error) {
	switch t := v.(type) {
	case cursor.Cursor:
		return wantKind(i, argName, op, t, cursor.KindNode)
	case string:
		c, err := resolveNamed(proc, i, argName, op, t, func(name string) string {
			return name + "(_)"
		})
		if err != nil {
			return cursor.Cursor{}, err
		}
		return wantKind(i, argName, op, c, cursor.KindNode)
	default:
		return cursor.Cursor{}, errcode.Argument(i, argName, op, "expected a cursor or a procedure name")
	}
}

// AssignOrReduceCursor resolves a buffer-write shorthand ("<name>" /
// "<name> #<k>") against `NAME = _` (ArgumentProcessor
// AssignOrReduceCursorA). The `NAME = _` pattern matches Assign statements
// only; a `+=` reduction is not found by the name shorthand, though an
// already-built cursor to one is accepted.
func AssignOrReduceCursor(proc *loopir.Proc, i int, argName, op string, v any) (cursor.Cursor, error) {
	switch t := v.(type) {
	case cursor.Cursor:
		return wantKind(i, argName, op, t, cursor.KindNode)
	case string:
		c, err := resolveNamed(proc, i, argName, op, t, func(name string) string {
			return name + " = _"
		})
		if err != nil {
			return cursor.Cursor{}, err
		}
		return wantKind(i, argName, op, c, cursor.KindNode)
	default:
		return cursor.Cursor{}, errcode.Argument(i, argName, op, "expected a cursor or a buffer name")
	}
}

// AllocCursor resolves an allocation shorthand ("<name>") against
// `NAME : _` (ArgumentProcessor AllocCursorA).
func AllocCursor(proc *loopir.Proc, i int, argName, op string, v any) (cursor.Cursor, error) {
	switch t := v.(type) {
	case cursor.Cursor:
		return wantKind(i, argName, op, t, cursor.KindNode)
	case string:
		c, err := resolveNamed(proc, i, argName, op, t, func(name string) string {
			return name + " : _"
		})
		if err != nil {
			return cursor.Cursor{}, err
		}
		return wantKind(i, argName, op, c, cursor.KindNode)
	default:
		return cursor.Cursor{}, errcode.Argument(i, argName, op, "expected a cursor or a buffer name")
	}
}

// BlockCursor requires an already-built Block cursor; there is no textual
// shorthand for an arbitrary statement range (ArgumentProcessor
// BlockCursorA).
func BlockCursor(i int, argName, op string, c cursor.Cursor) (cursor.Cursor, error) {
	return wantKind(i, argName, op, c, cursor.KindBlock)
}

// GapCursor requires an already-built Gap cursor (ArgumentProcessor
// GapCursorA).
func GapCursor(i int, argName, op string, c cursor.Cursor) (cursor.Cursor, error) {
	return wantKind(i, argName, op, c, cursor.KindGap)
}

// ExprCursor requires an already-built Node cursor pointing at an
// expression; expression positions have no textual shorthand because the
// pattern grammar only names them by shape, not by occurrence of a unique
// identifier.
func ExprCursor(i int, argName, op string, c cursor.Cursor) (cursor.Cursor, error) {
	c, err := wantKind(i, argName, op, c, cursor.KindNode)
	if err != nil {
		return cursor.Cursor{}, err
	}
	if _, err := c.Expr(); err != nil {
		return cursor.Cursor{}, errcode.Argument(i, argName, op, "cursor does not point to an expression")
	}
	return c, nil
}

// StmtCursor requires an already-built Node cursor pointing at a statement
// (ArgumentProcessor StmtCursorA).
func StmtCursor(i int, argName, op string, c cursor.Cursor) (cursor.Cursor, error) {
	c, err := wantKind(i, argName, op, c, cursor.KindNode)
	if err != nil {
		return cursor.Cursor{}, err
	}
	if _, err := c.Stmt(); err != nil {
		return cursor.Cursor{}, errcode.Argument(i, argName, op, "cursor does not point to a statement")
	}
	return c, nil
}
