package cursor

import (
	"errors"
	"fmt"

	"exo/internal/loopir"
)

// Kind is the closed enumeration of cursor varieties: {Node, Block, Gap,
// Args}. Kept as a small int enum rather than an interface hierarchy so
// the single Cursor struct below can be copied, compared, and stored in
// maps — it is a cheap value type.
type Kind int

const (
	KindNode Kind = iota
	KindBlock
	KindGap
	KindArgs
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindBlock:
		return "block"
	case KindGap:
		return "gap"
	case KindArgs:
		return "args"
	default:
		return "?"
	}
}

var (
	// ErrNoParent is returned by Parent() on a cursor already at the top of
	// the procedure.
	ErrNoParent = errors.New("cursor: already at top of procedure, has no parent")
	// ErrWrongKind is returned when an operation is invoked on a cursor kind
	// it is not defined for.
	ErrWrongKind = errors.New("cursor: operation not defined for this cursor kind")
	// ErrOutOfRange is returned by before/after/prev/next when the requested
	// sibling or gap falls outside the enclosing block.
	ErrOutOfRange = errors.New("cursor: out of range")
)

// Cursor is a (Procedure, Location) pair: a path from the procedure root
// to a position, never a live pointer into a tree.
// Because LoopIR is rewritten by producing whole new trees (internal/loopir
// Clone* machinery), a Cursor is only ever resolved against the *root it was
// built from*; the ForwardingMap each internal/schedule rewrite returns is what lets a Cursor
// built against an old Proc be translated into one valid against a new Proc.
type Cursor struct {
	root   *loopir.Proc
	kind   Kind
	path   Path   // valid for KindNode: full path to the node
	anchor Anchor // valid for KindBlock/KindGap/KindArgs: the containing list
	lo, hi int    // KindBlock/KindArgs: [lo,hi); KindGap: lo==hi==gap index
}

// Root returns a Block cursor spanning the procedure's entire top-level
// statement list, the starting point for all other cursor construction
// (original_source's Procedure.body()).
func Root(p *loopir.Proc) Cursor {
	return Cursor{root: p, kind: KindBlock, anchor: Anchor{Field: FieldBody}, lo: 0, hi: len(p.Body)}
}

// NewNode builds a Node cursor to the statement or expression at path.
func NewNode(root *loopir.Proc, path Path) (Cursor, error) {
	v, err := Resolve(root, path)
	if err != nil {
		return Cursor{}, err
	}
	switch v.(type) {
	case loopir.Stmt, loopir.Expr:
		return Cursor{root: root, kind: KindNode, path: path}, nil
	default:
		return Cursor{}, ErrNoParent
	}
}

// NewBlock builds a Block cursor over stmts[lo:hi] of the list named by anchor.
func NewBlock(root *loopir.Proc, anchor Anchor, lo, hi int) (Cursor, error) {
	list, err := anchor.StmtBlock(root)
	if err != nil {
		return Cursor{}, err
	}
	if lo < 0 || hi > len(list) || lo >= hi {
		return Cursor{}, fmt.Errorf("%w: block [%d,%d) of length-%d list", ErrOutOfRange, lo, hi, len(list))
	}
	return Cursor{root: root, kind: KindBlock, anchor: anchor, lo: lo, hi: hi}, nil
}

// NewGap builds a Gap cursor at index at (0..len, inclusive) of the list
// named by anchor.
func NewGap(root *loopir.Proc, anchor Anchor, at int) (Cursor, error) {
	list, err := anchor.StmtBlock(root)
	if err != nil {
		return Cursor{}, err
	}
	if at < 0 || at > len(list) {
		return Cursor{}, fmt.Errorf("%w: gap %d of length-%d list", ErrOutOfRange, at, len(list))
	}
	return Cursor{root: root, kind: KindGap, anchor: anchor, lo: at, hi: at}, nil
}

// NewArgs builds an Args cursor over exprs[lo:hi] of the list named by anchor.
func NewArgs(root *loopir.Proc, anchor Anchor, lo, hi int) (Cursor, error) {
	list, err := anchor.ExprBlock(root)
	if err != nil {
		return Cursor{}, err
	}
	if lo < 0 || hi > len(list) || lo > hi {
		return Cursor{}, fmt.Errorf("%w: args [%d,%d) of length-%d list", ErrOutOfRange, lo, hi, len(list))
	}
	return Cursor{root: root, kind: KindArgs, anchor: anchor, lo: lo, hi: hi}, nil
}

func (c Cursor) Proc() *loopir.Proc { return c.root }
func (c Cursor) Kind() Kind         { return c.kind }

// Path returns the Node cursor's path; callers must check Kind() == KindNode.
func (c Cursor) Path() Path { return c.path }

// Range returns the [lo,hi) span of a Block/Args cursor, or [at,at) for a
// Gap cursor.
func (c Cursor) Range() (int, int) { return c.lo, c.hi }

// Anchor returns the containing-list anchor of a Block/Gap/Args cursor.
func (c Cursor) Anchor() Anchor { return c.anchor }

// Node resolves a Node cursor to its underlying loopir value.
func (c Cursor) Node() (any, error) {
	if c.kind != KindNode {
		return nil, ErrWrongKind
	}
	return Resolve(c.root, c.path)
}

// Stmt resolves a Node cursor that points to a statement.
func (c Cursor) Stmt() (loopir.Stmt, error) {
	v, err := c.Node()
	if err != nil {
		return nil, err
	}
	s, ok := v.(loopir.Stmt)
	if !ok {
		return nil, fmt.Errorf("%w: cursor points to an expression", ErrWrongKind)
	}
	return s, nil
}

// Expr resolves a Node cursor that points to an expression.
func (c Cursor) Expr() (loopir.Expr, error) {
	v, err := c.Node()
	if err != nil {
		return nil, err
	}
	e, ok := v.(loopir.Expr)
	if !ok {
		return nil, fmt.Errorf("%w: cursor points to a statement", ErrWrongKind)
	}
	return e, nil
}

// Block materializes a Block/Args cursor's statement span. Callers on an
// Args cursor should use Exprs instead.
func (c Cursor) Block() ([]loopir.Stmt, error) {
	if c.kind != KindBlock {
		return nil, ErrWrongKind
	}
	list, err := c.anchor.StmtBlock(c.root)
	if err != nil {
		return nil, err
	}
	return list[c.lo:c.hi], nil
}

// Exprs materializes an Args cursor's expression span.
func (c Cursor) Exprs() ([]loopir.Expr, error) {
	if c.kind != KindArgs {
		return nil, ErrWrongKind
	}
	list, err := c.anchor.ExprBlock(c.root)
	if err != nil {
		return nil, err
	}
	return list[c.lo:c.hi], nil
}

// Len reports how many elements a Block or Args cursor spans.
func (c Cursor) Len() int {
	if c.kind != KindBlock && c.kind != KindArgs {
		return 0
	}
	return c.hi - c.lo
}

// At returns the i-th element of a Block or Args cursor as its own
// single-element Node (Block) or Node (Args) cursor.
func (c Cursor) At(i int) (Cursor, error) {
	if i < 0 || i >= c.Len() {
		return Cursor{}, ErrOutOfRange
	}
	switch c.kind {
	case KindBlock:
		return NewNode(c.root, c.anchor.Path.Child(c.anchor.Field, c.lo+i))
	case KindArgs:
		return NewNode(c.root, c.anchor.Path.Child(c.anchor.Field, c.lo+i))
	default:
		return Cursor{}, ErrWrongKind
	}
}

// Parent returns a Node cursor to c's syntactic parent. This implementation
// never produces a cursor onto a WAccess node, so no special unwrapping of
// a w_access sibling is required here.
func (c Cursor) Parent() (Cursor, error) {
	switch c.kind {
	case KindNode:
		if len(c.path) == 0 {
			return Cursor{}, ErrNoParent
		}
		return NewNode(c.root, c.path[:len(c.path)-1])
	case KindBlock, KindGap, KindArgs:
		if len(c.anchor.Path) == 0 {
			return Cursor{}, ErrNoParent
		}
		return NewNode(c.root, c.anchor.Path)
	default:
		return Cursor{}, ErrWrongKind
	}
}

// stmtIndex returns, for a Node cursor pointing at a statement, the
// (anchor, index) describing where that statement sits in its block.
func (c Cursor) stmtIndex() (Anchor, int, error) {
	if c.kind != KindNode || len(c.path) == 0 {
		return Anchor{}, 0, ErrWrongKind
	}
	parentPath, last, _ := c.path.Parent()
	return Anchor{Path: parentPath, Field: last.Field}, last.Index, nil
}

// Before returns the Gap immediately preceding a Stmt or Block cursor, or
// (for a Gap cursor, with dist steps) the statement preceding the gap.
func (c Cursor) Before(dist int) (Cursor, error) {
	if dist < 1 {
		dist = 1
	}
	switch c.kind {
	case KindNode:
		anchor, idx, err := c.stmtIndex()
		if err != nil {
			return Cursor{}, err
		}
		return NewGap(c.root, anchor, idx)
	case KindBlock:
		return NewGap(c.root, c.anchor, c.lo)
	case KindGap:
		return c.stmtAt(c.lo - dist)
	default:
		return Cursor{}, ErrWrongKind
	}
}

// After is the mirror of Before: Gap following a Stmt/Block, or the
// statement following a Gap.
func (c Cursor) After(dist int) (Cursor, error) {
	if dist < 1 {
		dist = 1
	}
	switch c.kind {
	case KindNode:
		anchor, idx, err := c.stmtIndex()
		if err != nil {
			return Cursor{}, err
		}
		return NewGap(c.root, anchor, idx+1)
	case KindBlock:
		return NewGap(c.root, c.anchor, c.hi)
	case KindGap:
		return c.stmtAt(c.lo + dist - 1)
	default:
		return Cursor{}, ErrWrongKind
	}
}

func (c Cursor) stmtAt(idx int) (Cursor, error) {
	return NewNode(c.root, c.anchor.Path.Child(c.anchor.Field, idx))
}

// Prev returns the sibling dist slots earlier: another Stmt cursor for a
// Stmt cursor, another Gap cursor for a Gap cursor.
func (c Cursor) Prev(dist int) (Cursor, error) {
	if dist < 1 {
		dist = 1
	}
	switch c.kind {
	case KindNode:
		anchor, idx, err := c.stmtIndex()
		if err != nil {
			return Cursor{}, err
		}
		return NewNode(c.root, anchor.Path.Child(anchor.Field, idx-dist))
	case KindGap:
		return NewGap(c.root, c.anchor, c.lo-dist)
	default:
		return Cursor{}, ErrWrongKind
	}
}

// Next is the mirror of Prev.
func (c Cursor) Next(dist int) (Cursor, error) {
	if dist < 1 {
		dist = 1
	}
	switch c.kind {
	case KindNode:
		anchor, idx, err := c.stmtIndex()
		if err != nil {
			return Cursor{}, err
		}
		return NewNode(c.root, anchor.Path.Child(anchor.Field, idx+dist))
	case KindGap:
		return NewGap(c.root, c.anchor, c.lo+dist)
	default:
		return Cursor{}, ErrWrongKind
	}
}

// AsBlock promotes a Stmt cursor to the singleton Block cursor covering it.
func (c Cursor) AsBlock() (Cursor, error) {
	anchor, idx, err := c.stmtIndex()
	if err != nil {
		return Cursor{}, err
	}
	return NewBlock(c.root, anchor, idx, idx+1)
}
