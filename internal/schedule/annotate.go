package schedule

import (
	"exo/internal/cursor"
	"exo/internal/errcode"
	"exo/internal/loopir"
	"exo/internal/memory"
)

// SetPrecision updates the declared base type of buf, wherever it is
// declared — a procedure argument or an Alloc — and re-typechecks.
// Reads and writes of buf carry no type of their own (LoopIR Read/Assign
// nodes are untyped; precision flows entirely from the declaration), so
// every use automatically observes the new precision; this primitive only
// ever touches the one declaration site.
func SetPrecision(p *loopir.Proc, buf string, base loopir.BaseType) (*loopir.Proc, *cursor.ForwardingMap, error) {
	return annotate(p, buf, "set_precision", func(t *loopir.Type) { t.Base = base })
}

// SetWindow toggles whether buf is declared as a window view rather than a
// plain array.
func SetWindow(p *loopir.Proc, buf string, window bool) (*loopir.Proc, *cursor.ForwardingMap, error) {
	return annotate(p, buf, "set_window", func(t *loopir.Type) { t.Window = window })
}

// annotate locates buf's single declaration (a procedure Arg or an Alloc
// anywhere in the body) and applies edit to its Type, then re-typechecks
// via loopir.Check. Since the edit never changes which statements exist or
// where, the identity forwarding map is exact here, unlike Simplify's.
func annotate(p *loopir.Proc, buf, op string, edit func(*loopir.Type)) (*loopir.Proc, *cursor.ForwardingMap, error) {
	np := p.Clone()
	found := false
	for i := range np.Args {
		if np.Args[i].Name == buf {
			edit(&np.Args[i].Typ)
			found = true
			break
		}
	}
	if !found {
		body, ok := updateAlloc(np.Body, buf, func(a *loopir.Alloc) { edit(&a.Typ) })
		if ok {
			np.Body = body
			found = true
		}
	}
	if !found {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "%s: no declaration of buffer %q", op, buf)
	}
	if err := loopir.Check(np); err != nil {
		return nil, nil, errcode.Wrap(errcode.PreconditionUnmet, err, "%s: %q no longer typechecks", op, buf)
	}
	return np, cursor.Identity(), nil
}

// SetMemory records a new memory-space annotation on buf's Alloc; the
// rewrite engine never inspects what the annotation means. Unlike
// SetPrecision/SetWindow this does
// not reach procedure arguments: a caller's argument memory space is a
// contract with its own callers, not something one schedule rewrite on the
// callee can silently change.
func SetMemory(p *loopir.Proc, buf string, mem *memory.Space) (*loopir.Proc, *cursor.ForwardingMap, error) {
	np := p.Clone()
	body, ok := updateAlloc(np.Body, buf, func(a *loopir.Alloc) { a.Mem = mem })
	if !ok {
		return nil, nil, errcode.New(errcode.PreconditionUnmet, "set_memory: no Alloc of buffer %q", buf)
	}
	np.Body = body
	return np, cursor.Identity(), nil
}

// MakeInstr tags p as a hardware instruction template, recording instr as
// its Instr field. The tag is carried by Clone and printed by String; no
// rewrite primitive in this package reads it, so Inline splices a tagged
// callee's body like any other.
func MakeInstr(p *loopir.Proc, instr string) (*loopir.Proc, *cursor.ForwardingMap, error) {
	np := p.Clone()
	np.Instr = &instr
	return np, cursor.Identity(), nil
}

// updateAlloc returns a copy of stmts with the Alloc named name (found at
// any nesting depth) rewritten by edit, and whether it was found.
func updateAlloc(stmts []loopir.Stmt, name string, edit func(*loopir.Alloc)) ([]loopir.Stmt, bool) {
	out := make([]loopir.Stmt, len(stmts))
	found := false
	for i, s := range stmts {
		switch n := s.(type) {
		case *loopir.Alloc:
			if n.Name == name {
				c := *n
				edit(&c)
				out[i] = &c
				found = true
				continue
			}
			out[i] = s
		case *loopir.If:
			c := *n
			bodyFound, orelseFound := false, false
			c.Body, bodyFound = updateAlloc(n.Body, name, edit)
			c.Orelse, orelseFound = updateAlloc(n.Orelse, name, edit)
			found = found || bodyFound || orelseFound
			out[i] = &c
		case *loopir.Seq:
			c := *n
			var bodyFound bool
			c.Body, bodyFound = updateAlloc(n.Body, name, edit)
			found = found || bodyFound
			out[i] = &c
		case *loopir.ForAll:
			c := *n
			var bodyFound bool
			c.Body, bodyFound = updateAlloc(n.Body, name, edit)
			found = found || bodyFound
			out[i] = &c
		default:
			out[i] = s
		}
	}
	return out, found
}
