// Package schedule implements the atomic scheduling rewrite primitives:
// one file per family (structural, value-binding, sub-procedure,
// annotation, configuration, allocation-geometry, allocation-scope, loop
// transform, guard), each exporting a function of shape
//
//	func Op(p *loopir.Proc, c cursor.Cursor, params...) (*loopir.Proc, *cursor.ForwardingMap, error)
//
// Each primitive here is "single cursor-site rewrite, new IR plus
// forwarding map, or a categorical error," because the engine is
// user-directed rather than run to a fixpoint automatically. The one
// exception, Simplify, is genuinely iterated to a fixpoint in
// structural.go.
//
// rebuild.go collects the immutable-tree-surgery machinery every primitive
// shares: replacing a statement range inside the block a cursor.Anchor
// names, and splicing a rebuilt node back into the path leading to it.
// internal/cursor deliberately keeps its node-shape knowledge
// (childField/anchorNode) private, since its job is read-side navigation;
// constructing new trees is the rewrite layer's own job, the way the
// teacher's optimization passes build replacement *ast.Node values directly
// with a type switch rather than through a shared "setter" in the AST
// package itself.
package schedule

import (
	"fmt"

	"exo/internal/cursor"
	"exo/internal/loopir"
)

// stmtBlockField reads the []loopir.Stmt held by field (Body or Orelse) of
// a statement node that owns one.
func stmtBlockField(node loopir.Stmt, field cursor.Field) ([]loopir.Stmt, error) {
	switch n := node.(type) {
	case *loopir.If:
		switch field {
		case cursor.FieldBody:
			return n.Body, nil
		case cursor.FieldOrelse:
			return n.Orelse, nil
		}
	case *loopir.Seq:
		if field == cursor.FieldBody {
			return n.Body, nil
		}
	case *loopir.ForAll:
		if field == cursor.FieldBody {
			return n.Body, nil
		}
	}
	return nil, fmt.Errorf("schedule: %T has no statement-block field %q", node, field)
}

// withStmtBlockField returns a shallow copy of node with its Body/Orelse
// field replaced by value.
func withStmtBlockField(node loopir.Stmt, field cursor.Field, value []loopir.Stmt) (loopir.Stmt, error) {
	switch n := node.(type) {
	case *loopir.If:
		c := *n
		switch field {
		case cursor.FieldBody:
			c.Body = value
		case cursor.FieldOrelse:
			c.Orelse = value
		default:
			return nil, fmt.Errorf("schedule: *If has no field %q", field)
		}
		return &c, nil
	case *loopir.Seq:
		if field != cursor.FieldBody {
			return nil, fmt.Errorf("schedule: *Seq has no field %q", field)
		}
		c := *n
		c.Body = value
		return &c, nil
	case *loopir.ForAll:
		if field != cursor.FieldBody {
			return nil, fmt.Errorf("schedule: *ForAll has no field %q", field)
		}
		c := *n
		c.Body = value
		return &c, nil
	default:
		return nil, fmt.Errorf("schedule: %T has no statement-block field", node)
	}
}

// replaceNodeAtPath walks stmts along path (each Sel indexing into the
// current level, then descending into that element's block named by the
// next Sel's Field) and returns a new top-level slice with the node path
// denotes replaced by newNode. Every list from root to the target is
// copied; everything else is shared structurally.
func replaceNodeAtPath(stmts []loopir.Stmt, path cursor.Path, newNode loopir.Stmt) ([]loopir.Stmt, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("schedule: empty path has no node to replace")
	}
	sel := path[0]
	if sel.Index < 0 || sel.Index >= len(stmts) {
		return nil, fmt.Errorf("schedule: index %d out of range (len %d)", sel.Index, len(stmts))
	}
	out := append([]loopir.Stmt(nil), stmts...)
	if len(path) == 1 {
		out[sel.Index] = newNode
		return out, nil
	}
	childBlock, err := stmtBlockField(stmts[sel.Index], path[1].Field)
	if err != nil {
		return nil, err
	}
	newChildBlock, err := replaceNodeAtPath(childBlock, path[1:], newNode)
	if err != nil {
		return nil, err
	}
	newChildNode, err := withStmtBlockField(stmts[sel.Index], path[1].Field, newChildBlock)
	if err != nil {
		return nil, err
	}
	out[sel.Index] = newChildNode
	return out, nil
}

// setBlock returns a copy of root with the statement block anchor names
// replaced wholesale by newBlock.
func setBlock(root *loopir.Proc, anchor cursor.Anchor, newBlock []loopir.Stmt) (*loopir.Proc, error) {
	np := root.Clone()
	if len(anchor.Path) == 0 && anchor.Field == cursor.FieldBody {
		np.Body = newBlock
		return np, nil
	}
	node, err := cursor.Resolve(root, anchor.Path)
	if err != nil {
		return nil, err
	}
	stmtNode, ok := node.(loopir.Stmt)
	if !ok {
		return nil, fmt.Errorf("schedule: anchor path does not resolve to a statement")
	}
	newNode, err := withStmtBlockField(stmtNode, anchor.Field, newBlock)
	if err != nil {
		return nil, err
	}
	newBody, err := replaceNodeAtPath(root.Body, anchor.Path, newNode)
	if err != nil {
		return nil, err
	}
	np.Body = newBody
	return np, nil
}

// ReplaceRange replaces stmts[lo:hi] of the block anchor names with
// replacement (which may have a different length, supporting insertion,
// deletion, fission, and fusion) and returns the rebuilt procedure.
func ReplaceRange(root *loopir.Proc, anchor cursor.Anchor, lo, hi int, replacement []loopir.Stmt) (*loopir.Proc, error) {
	old, err := anchor.StmtBlock(root)
	if err != nil {
		return nil, err
	}
	if lo < 0 || hi > len(old) || lo > hi {
		return nil, fmt.Errorf("schedule: range [%d,%d) out of bounds for block of length %d", lo, hi, len(old))
	}
	merged := make([]loopir.Stmt, 0, len(old)-(hi-lo)+len(replacement))
	merged = append(merged, old[:lo]...)
	merged = append(merged, replacement...)
	merged = append(merged, old[hi:]...)
	return setBlock(root, anchor, merged)
}

// isStmtField reports whether f denotes a statement-list field (as opposed
// to an expression field): the two fields a statement's own position within
// its enclosing block is ever addressed by.
func isStmtField(f cursor.Field) bool {
	return f == cursor.FieldBody || f == cursor.FieldOrelse
}

// ownerStmtPath returns the longest prefix of path ending in a
// statement-block selector — the full path to the statement that owns
// whatever node path ultimately denotes, however deep inside that
// statement's own expression tree the rest of path descends. Used by every
// primitive that rewrites one expression position without changing the
// shape of the statements around it (commute_expr, bind_expr).
func ownerStmtPath(path cursor.Path) (cursor.Path, error) {
	stmtPath := path
	for len(stmtPath) > 0 && !isStmtField(stmtPath[len(stmtPath)-1].Field) {
		stmtPath = stmtPath[:len(stmtPath)-1]
	}
	if len(stmtPath) == 0 {
		return nil, fmt.Errorf("schedule: cursor has no owning statement")
	}
	return stmtPath, nil
}

// nodeAnchor splits a Node cursor pointing at a statement into the anchor
// of its owning block plus its index within that block — the information
// ReplaceRange needs to replace just that one statement.
func nodeAnchor(c cursor.Cursor) (cursor.Anchor, int, error) {
	if c.Kind() != cursor.KindNode {
		return cursor.Anchor{}, 0, fmt.Errorf("schedule: expected a Node cursor, got %s", c.Kind())
	}
	parent, sel, ok := c.Path().Parent()
	if !ok {
		return cursor.Anchor{}, 0, fmt.Errorf("schedule: node cursor has no parent block")
	}
	return cursor.Anchor{Path: parent, Field: sel.Field}, sel.Index, nil
}

// shiftForwarding builds the forwarding map for a range replacement: every
// statement strictly before lo keeps its path, everything at or after hi
// shifts by delta = len(replacement) - (hi - lo), and every statement in
// [lo, hi) is dropped (it no longer exists as a distinct node — replace,
// fuse, and delete all collapse old positions this way). Callers that keep
// a recognizable image of a specific old statement (e.g. reorder_stmts)
// call Set explicitly afterward to override the drop.
func shiftForwarding(anchor cursor.Anchor, lo, hi int, newLen int, blockLen int) *cursor.ForwardingMap {
	fwd := cursor.NewForwardingMap()
	delta := newLen - (hi - lo)
	for i := 0; i < blockLen; i++ {
		oldPath := anchor.Path.Child(anchor.Field, i)
		switch {
		case i < lo:
			fwd.Set(oldPath, oldPath)
		case i >= hi:
			fwd.Set(oldPath, anchor.Path.Child(anchor.Field, i+delta))
		default:
			fwd.Drop(oldPath)
		}
	}
	return fwd
}
