package pattern

import (
	"fmt"
	"strconv"

	"exo/internal/cursor"
	"exo/internal/loopir"
)

// Walk visits every statement and expression in p in pre-order, calling
// visit at each one; visit returning false stops the walk early. This is
// the traversal FindAll / Find use to enumerate pattern occurrences, and is
// exported for internal/unify's subproc-recognition search.
func Walk(root *loopir.Proc, visit func(cursor.Cursor) bool) {
	var rec func(path cursor.Path) bool
	rec = func(path cursor.Path) bool {
		node, err := cursor.Resolve(root, path)
		if err != nil {
			return true
		}
		switch node.(type) {
		case loopir.Stmt, loopir.Expr:
			c, err := cursor.NewNode(root, path)
			if err != nil {
				return true
			}
			if !visit(c) {
				return false
			}
		}
		for _, child := range cursor.ChildPaths(node, path) {
			if !rec(child) {
				return false
			}
		}
		return true
	}
	for i := range root.Body {
		if !rec(cursor.Path{}.Child(cursor.FieldBody, i)) {
			return
		}
	}
}

// FindAll returns every cursor matching patternSrc, in pre-order, ignoring
// any trailing `#k` the pattern source carries.
func FindAll(root *loopir.Proc, patternSrc string) ([]cursor.Cursor, error) {
	q, err := Parse(patternSrc)
	if err != nil {
		return nil, fmt.Errorf("pattern: %w", err)
	}
	var out []cursor.Cursor
	Walk(root, func(c cursor.Cursor) bool {
		if matches(root, c, q.Pattern) {
			out = append(out, c)
		}
		return true
	})
	return out, nil
}

// Find returns the k-th (1-indexed) cursor matching patternSrc, where k
// comes from the pattern's trailing `#k` or defaults to 1.
func Find(root *loopir.Proc, patternSrc string) (cursor.Cursor, error) {
	q, err := Parse(patternSrc)
	if err != nil {
		return cursor.Cursor{}, fmt.Errorf("pattern: %w", err)
	}
	k := 1
	if q.Occurrence != nil {
		k = *q.Occurrence
	}
	var matched []cursor.Cursor
	Walk(root, func(c cursor.Cursor) bool {
		if matches(root, c, q.Pattern) {
			matched = append(matched, c)
		}
		return true
	})
	if k < 1 || k > len(matched) {
		return cursor.Cursor{}, fmt.Errorf("pattern: %q has %d occurrence(s), #%d out of range", patternSrc, len(matched), k)
	}
	return matched[k-1], nil
}

func matches(root *loopir.Proc, c cursor.Cursor, p *Pattern) bool {
	switch {
	case p.For != nil:
		s, err := c.Stmt()
		if err != nil {
			return false
		}
		var iter string
		switch n := s.(type) {
		case *loopir.Seq:
			iter = n.Iter
		case *loopir.ForAll:
			iter = n.Iter
		default:
			return false
		}
		return p.For.Iter == "_" || p.For.Iter == iter
	case p.If != nil:
		s, err := c.Stmt()
		if err != nil {
			return false
		}
		_, ok := s.(*loopir.If)
		return ok
	case p.Assign != nil:
		return matchesAssign(c, p.Assign)
	case p.Call != nil:
		s, err := c.Stmt()
		if err != nil {
			return false
		}
		call, ok := s.(*loopir.Call)
		return ok && call.Callee.Name == p.Call.Name
	case p.Alloc != nil:
		s, err := c.Stmt()
		if err != nil {
			return false
		}
		a, ok := s.(*loopir.Alloc)
		return ok && a.Name == p.Alloc.Name
	case p.Expr != nil:
		e, err := c.Expr()
		if err != nil {
			return false
		}
		return matchesExpr(e, p.Expr)
	default:
		return false
	}
}

func matchesAssign(c cursor.Cursor, p *AssignPattern) bool {
	s, err := c.Stmt()
	if err != nil {
		return false
	}
	var name string
	var idxLen int
	switch n := s.(type) {
	case *loopir.Assign:
		if p.Op != "=" {
			return false
		}
		name, idxLen = n.Name, len(n.Idx)
	case *loopir.Reduce:
		if p.Op != "+=" {
			return false
		}
		name, idxLen = n.Name, len(n.Idx)
	default:
		return false
	}
	if name != p.Name {
		return false
	}
	if p.Indexed && idxLen == 0 {
		return false
	}
	return true
}

func matchesExpr(e loopir.Expr, p *ExprPattern) bool {
	if p.Op == nil {
		return matchesAtom(e, p.Left)
	}
	b, ok := e.(*loopir.BinOp)
	if !ok || b.Op.String() != *p.Op {
		return false
	}
	return matchesAtom(b.Lhs, p.Left) && matchesAtom(b.Rhs, p.Right)
}

func matchesAtom(e loopir.Expr, a *ExprAtom) bool {
	switch {
	case a.Wild:
		return true
	case a.Number != nil:
		c, ok := e.(*loopir.Const)
		if !ok {
			return false
		}
		return numericEqual(c.Value, *a.Number)
	case a.Name != nil:
		r, ok := e.(*loopir.Read)
		return ok && r.Name == *a.Name
	default:
		return false
	}
}

func numericEqual(v any, lit string) bool {
	n, err := strconv.Atoi(lit)
	if err != nil {
		return false
	}
	switch x := v.(type) {
	case int:
		return x == n
	case int64:
		return x == int64(n)
	case float64:
		return x == float64(n)
	default:
		return false
	}
}
