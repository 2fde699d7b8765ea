package cursor

import "exo/internal/loopir"

// PathKey is the comparable (map-key-safe) form of a Path, since a Path's
// backing slice cannot itself be a map key.
type PathKey string

// Key renders p into a PathKey.
func (p Path) Key() PathKey { return PathKey(p.String()) }

// ForwardingMap is the partial function fwd : path(old) -> path(new) that
// every internal/schedule rewrite emits: public cursor operations forward
// a cursor through the current procedure's history before navigating it. A
// path recorded via Drop denotes ⊥ — the rewrite deleted or otherwise could
// not preserve that position; with the pass-through flag this package uses,
// a path absent from the map keeps its old position (see Identity).
type ForwardingMap struct {
	to      map[PathKey]Path
	dropped map[PathKey]bool
}

// NewForwardingMap returns an empty map; Identity() and the rewrite
// primitives build one up via Set/Drop as they construct the new tree.
func NewForwardingMap() *ForwardingMap {
	return &ForwardingMap{to: map[PathKey]Path{}, dropped: map[PathKey]bool{}}
}

// Identity returns an empty map: with the pass-through flag used throughout
// this package, an empty map already forwards every untouched path
// unchanged, so Identity exists only to name that intent at call sites.
func Identity() *ForwardingMap { return NewForwardingMap() }

// Set records that oldPath now lives at newPath.
func (m *ForwardingMap) Set(oldPath, newPath Path) {
	m.to[oldPath.Key()] = newPath
	delete(m.dropped, oldPath.Key())
}

// Drop records that oldPath has no image in the rewritten tree (⊥).
func (m *ForwardingMap) Drop(oldPath Path) {
	m.dropped[oldPath.Key()] = true
	delete(m.to, oldPath.Key())
}

// Forward resolves a single path through one rewrite step. ok is false if
// the path was explicitly dropped or was never recorded (treated as
// unchanged only when passThrough is true, matching rewrites that register
// every touched path and leave the rest implicitly identity).
func (m *ForwardingMap) Forward(p Path, passThrough bool) (Path, bool) {
	if m.dropped[p.Key()] {
		return nil, false
	}
	if np, ok := m.to[p.Key()]; ok {
		return np, true
	}
	if passThrough {
		return p, true
	}
	return nil, false
}

// Compose builds fwd_{r2 . r1} from fwd_{r1} (inner, applied first) and
// fwd_{r2} (outer). Both maps are treated pass-through for any path they
// did not explicitly touch.
func Compose(inner, outer *ForwardingMap) *ForwardingMap {
	out := NewForwardingMap()
	seen := map[PathKey]bool{}
	for k, p1 := range inner.to {
		seen[k] = true
		if p2, ok := outer.Forward(p1, true); ok {
			out.to[k] = p2
		} else {
			out.dropped[k] = true
		}
	}
	for k := range inner.dropped {
		seen[k] = true
		out.dropped[k] = true
	}
	for k, p2 := range outer.to {
		if seen[k] {
			continue
		}
		out.to[k] = p2
	}
	for k := range outer.dropped {
		if seen[k] {
			continue
		}
		out.dropped[k] = true
	}
	return out
}

// Forward resolves a Cursor built against an older procedure into one valid
// against newRoot by forwarding its path (Node) or anchor path (Block/Gap/
// Args) through m. It returns a typed invalid-cursor failure via the
// returned bool when the position no longer exists.
func (c Cursor) Forward(m *ForwardingMap, newRoot *loopir.Proc) (Cursor, bool) {
	switch c.kind {
	case KindNode:
		np, ok := m.Forward(c.path, true)
		if !ok {
			return Cursor{}, false
		}
		nc, err := NewNode(newRoot, np)
		return nc, err == nil
	case KindBlock, KindGap, KindArgs:
		np, ok := m.Forward(c.anchor.Path, true)
		if !ok {
			return Cursor{}, false
		}
		anchor := Anchor{Path: np, Field: c.anchor.Field}
		var nc Cursor
		var err error
		switch c.kind {
		case KindBlock:
			nc, err = NewBlock(newRoot, anchor, c.lo, c.hi)
		case KindGap:
			nc, err = NewGap(newRoot, anchor, c.lo)
		case KindArgs:
			nc, err = NewArgs(newRoot, anchor, c.lo, c.hi)
		}
		return nc, err == nil
	default:
		return Cursor{}, false
	}
}
