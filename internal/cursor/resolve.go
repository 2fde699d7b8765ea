package cursor

import (
	"fmt"

	"exo/internal/loopir"
)

// ErrNoSuchPath is returned when a Path or Anchor no longer resolves against
// a given procedure — the caller is expected to wrap this into a typed
// InvalidCursor error at the internal/errcode boundary.
type ErrNoSuchPath struct {
	Path Path
	Why  string
}

func (e *ErrNoSuchPath) Error() string { return fmt.Sprintf("cursor: %s: %s", e.Path, e.Why) }

// Resolve walks path from root and returns whatever node it denotes: a
// loopir.Stmt or a loopir.Expr.
func Resolve(root *loopir.Proc, path Path) (any, error) {
	if len(path) == 0 {
		return root.Body, nil
	}
	sel := path[0]
	if sel.Field != FieldBody {
		return nil, &ErrNoSuchPath{path, "path must begin by indexing the procedure body"}
	}
	if sel.Index < 0 || sel.Index >= len(root.Body) {
		return nil, &ErrNoSuchPath{path, "index out of range at procedure body"}
	}
	return resolveNode(root.Body[sel.Index], path[1:])
}

func resolveNode(node any, rest Path) (any, error) {
	if len(rest) == 0 {
		return node, nil
	}
	sel := rest[0]
	child, err := childField(node, sel.Field)
	if err != nil {
		return nil, err
	}
	switch c := child.(type) {
	case loopir.Expr:
		return resolveNode(c, rest[1:])
	case []loopir.Stmt:
		if sel.Index < 0 || sel.Index >= len(c) {
			return nil, &ErrNoSuchPath{rest, "index out of range"}
		}
		return resolveNode(c[sel.Index], rest[1:])
	case []loopir.Expr:
		if sel.Index < 0 || sel.Index >= len(c) {
			return nil, &ErrNoSuchPath{rest, "index out of range"}
		}
		return resolveNode(c[sel.Index], rest[1:])
	default:
		return nil, &ErrNoSuchPath{rest, "field is not indexable"}
	}
}

// childField looks up one named child field of a statement or expression
// node. It is the single place that knows the LoopIR node shapes, mirroring
// the _child_node/_child_block dispatch in original_source's cursor
// implementation but as a plain Go type switch instead of reflection.
func childField(node any, f Field) (any, error) {
	switch n := node.(type) {
	case *loopir.If:
		switch f {
		case FieldCond:
			return n.Cond, nil
		case FieldBody:
			return n.Body, nil
		case FieldOrelse:
			return n.Orelse, nil
		}
	case *loopir.Seq:
		switch f {
		case FieldHi:
			return n.Hi, nil
		case FieldBody:
			return n.Body, nil
		}
	case *loopir.ForAll:
		switch f {
		case FieldHi:
			return n.Hi, nil
		case FieldBody:
			return n.Body, nil
		}
	case *loopir.Assign:
		switch f {
		case FieldIdx:
			return n.Idx, nil
		case FieldRhs:
			return n.Rhs, nil
		}
	case *loopir.Reduce:
		switch f {
		case FieldIdx:
			return n.Idx, nil
		case FieldRhs:
			return n.Rhs, nil
		}
	case *loopir.WriteConfig:
		if f == FieldRhs {
			return n.Rhs, nil
		}
	case *loopir.Call:
		if f == FieldArgs {
			return n.Args, nil
		}
	case *loopir.WindowStmt:
		if f == FieldRhs {
			return n.WinExpr, nil
		}
	case *loopir.Read:
		if f == FieldIdx {
			return n.Idx, nil
		}
	case *loopir.USub:
		if f == FieldArg {
			return n.Arg, nil
		}
	case *loopir.BinOp:
		switch f {
		case FieldLhs:
			return n.Lhs, nil
		case FieldRhs:
			return n.Rhs, nil
		}
	case *loopir.BuiltIn:
		if f == FieldArgs {
			return n.Args, nil
		}
	}
	return nil, &ErrNoSuchPath{nil, fmt.Sprintf("%T has no field %q", node, f)}
}

// Anchor identifies a statement or expression block by the path to its
// owning node and the field that holds it (e.g. an If's Body, or a Call's
// Args). An empty Path with Field FieldBody denotes the procedure's own
// top-level statement list.
type Anchor struct {
	Path  Path
	Field Field
}

// StmtBlock resolves a to the []loopir.Stmt it names.
func (a Anchor) StmtBlock(root *loopir.Proc) ([]loopir.Stmt, error) {
	node, err := anchorNode(root, a)
	if err != nil {
		return nil, err
	}
	list, ok := node.([]loopir.Stmt)
	if !ok {
		return nil, &ErrNoSuchPath{a.Path, "field does not hold a statement block"}
	}
	return list, nil
}

// ExprBlock resolves a to the []loopir.Expr it names.
func (a Anchor) ExprBlock(root *loopir.Proc) ([]loopir.Expr, error) {
	node, err := anchorNode(root, a)
	if err != nil {
		return nil, err
	}
	list, ok := node.([]loopir.Expr)
	if !ok {
		return nil, &ErrNoSuchPath{a.Path, "field does not hold an expression block"}
	}
	return list, nil
}

// allChildFields lists every field name childField knows how to look up,
// in the order ChildPaths walks them.
var allChildFields = []Field{
	FieldCond, FieldBody, FieldOrelse, FieldHi,
	FieldIdx, FieldArgs, FieldRhs, FieldLhs, FieldArg,
}

// ChildPaths enumerates the full paths of every direct child of node
// (resolved by Resolve/childField), given the path node itself was reached
// by. Used by internal/pattern to walk a tree generically
// without repeating LoopIR's node shapes.
func ChildPaths(node any, base Path) []Path {
	var out []Path
	for _, f := range allChildFields {
		child, err := childField(node, f)
		if err != nil {
			continue
		}
		switch c := child.(type) {
		case loopir.Expr:
			out = append(out, base.Child(f, -1))
		case []loopir.Stmt:
			for i := range c {
				out = append(out, base.Child(f, i))
			}
		case []loopir.Expr:
			for i := range c {
				out = append(out, base.Child(f, i))
			}
		}
	}
	return out
}

func anchorNode(root *loopir.Proc, a Anchor) (any, error) {
	if len(a.Path) == 0 && a.Field == FieldBody {
		return root.Body, nil
	}
	parentNode, err := Resolve(root, a.Path)
	if err != nil {
		return nil, err
	}
	return childField(parentNode, a.Field)
}
