package cursor

import (
	"fmt"

	"exo/internal/loopir"
)

// The views in this file mirror original_source's per-statement-shape
// cursor subclasses (AssignCursor, IfCursor, ForSeqCursor, ...): typed,
// read-only accessors layered over a Node cursor so call sites in
// internal/schedule and internal/pattern do not repeat type switches over
// the resolved loopir.Stmt/Expr.

// AssignView exposes an Assign or Reduce statement's name/idx/rhs as
// sub-cursors.
type AssignView struct{ c Cursor }

// AsAssign views c as an Assign or Reduce statement.
func (c Cursor) AsAssign() (AssignView, error) {
	s, err := c.Stmt()
	if err != nil {
		return AssignView{}, err
	}
	switch s.(type) {
	case *loopir.Assign, *loopir.Reduce:
		return AssignView{c}, nil
	default:
		return AssignView{}, fmt.Errorf("%w: not an assignment or reduction", ErrWrongKind)
	}
}

func (v AssignView) Name() string {
	s, _ := v.c.Stmt()
	switch n := s.(type) {
	case *loopir.Assign:
		return n.Name
	case *loopir.Reduce:
		return n.Name
	}
	return ""
}

func (v AssignView) Idx() (Cursor, error) {
	return NewArgs(v.c.root, Anchor{Path: v.c.path, Field: FieldIdx}, 0, v.idxLen())
}

func (v AssignView) idxLen() int {
	s, _ := v.c.Stmt()
	switch n := s.(type) {
	case *loopir.Assign:
		return len(n.Idx)
	case *loopir.Reduce:
		return len(n.Idx)
	}
	return 0
}

func (v AssignView) Rhs() (Cursor, error) {
	return NewNode(v.c.root, v.c.path.Child(FieldRhs, -1))
}

// IfView exposes an If statement's cond/body/orelse.
type IfView struct{ c Cursor }

func (c Cursor) AsIf() (IfView, error) {
	s, err := c.Stmt()
	if err != nil {
		return IfView{}, err
	}
	if _, ok := s.(*loopir.If); !ok {
		return IfView{}, fmt.Errorf("%w: not an if statement", ErrWrongKind)
	}
	return IfView{c}, nil
}

func (v IfView) Cond() (Cursor, error) {
	return NewNode(v.c.root, v.c.path.Child(FieldCond, -1))
}

func (v IfView) Body() (Cursor, error) {
	n, _ := v.c.Stmt()
	body := n.(*loopir.If).Body
	return NewBlock(v.c.root, Anchor{Path: v.c.path, Field: FieldBody}, 0, len(body))
}

// Orelse returns the else-block cursor, or ok=false when there is none.
func (v IfView) Orelse() (Cursor, bool, error) {
	n, _ := v.c.Stmt()
	orelse := n.(*loopir.If).Orelse
	if len(orelse) == 0 {
		return Cursor{}, false, nil
	}
	bc, err := NewBlock(v.c.root, Anchor{Path: v.c.path, Field: FieldOrelse}, 0, len(orelse))
	return bc, true, err
}

// LoopView exposes a Seq or ForAll statement's iterator/bound/body.
type LoopView struct{ c Cursor }

func (c Cursor) AsLoop() (LoopView, error) {
	s, err := c.Stmt()
	if err != nil {
		return LoopView{}, err
	}
	switch s.(type) {
	case *loopir.Seq, *loopir.ForAll:
		return LoopView{c}, nil
	default:
		return LoopView{}, fmt.Errorf("%w: not a loop statement", ErrWrongKind)
	}
}

func (v LoopView) Iter() string {
	s, _ := v.c.Stmt()
	switch n := s.(type) {
	case *loopir.Seq:
		return n.Iter
	case *loopir.ForAll:
		return n.Iter
	}
	return ""
}

func (v LoopView) Kind() loopir.LoopKind {
	s, _ := v.c.Stmt()
	if _, ok := s.(*loopir.ForAll); ok {
		return loopir.LoopForAll
	}
	return loopir.LoopSeq
}

func (v LoopView) Hi() (Cursor, error) {
	return NewNode(v.c.root, v.c.path.Child(FieldHi, -1))
}

func (v LoopView) Body() (Cursor, error) {
	s, _ := v.c.Stmt()
	var body []loopir.Stmt
	switch n := s.(type) {
	case *loopir.Seq:
		body = n.Body
	case *loopir.ForAll:
		body = n.Body
	}
	return NewBlock(v.c.root, Anchor{Path: v.c.path, Field: FieldBody}, 0, len(body))
}

// AllocView exposes an Alloc statement's name/type/memory.
type AllocView struct{ c Cursor }

func (c Cursor) AsAlloc() (AllocView, error) {
	s, err := c.Stmt()
	if err != nil {
		return AllocView{}, err
	}
	if _, ok := s.(*loopir.Alloc); !ok {
		return AllocView{}, fmt.Errorf("%w: not an allocation", ErrWrongKind)
	}
	return AllocView{c}, nil
}

func (v AllocView) Alloc() *loopir.Alloc {
	s, _ := v.c.Stmt()
	return s.(*loopir.Alloc)
}
