// Package api implements Procedure, the façade a caller schedules against:
// every atomic rewrite in internal/schedule appears here as one method,
// argument-checked through internal/argcheck before the underlying
// primitive ever runs. A Procedure also carries its own provenance chain,
// so two procedures derived from a common ancestor can be recognized as
// equivalent by call_eqv without re-deriving the relationship from scratch.
package api

import (
	"exo/internal/cursor"
	"exo/internal/errcode"
	"exo/internal/loopir"
	"exo/internal/pattern"
	"exo/internal/srcinfo"
)

// provenanceLink records one rewrite step: the procedure it was applied
// to, the forwarding map the rewrite produced, and the name of the
// operation, so a chain of links can be walked in either direction.
type provenanceLink struct {
	parent  *Procedure
	fwd     *cursor.ForwardingMap
	rewrite string
}

// Procedure wraps a loopir.Proc root with the external interface a
// scheduling session actually drives: find/find-all against the pattern
// mini-language, one method per rewrite primitive, and an equivalence
// check over the rewrite history.
type Procedure struct {
	proc  *loopir.Proc
	namer *srcinfo.Namer
	prov  *provenanceLink
}

// registry maps a wrapped loopir.Proc back to its owning Procedure, so a
// callee reached through a raw Call node (which carries only *loopir.Proc,
// not *Procedure) can still be resolved for an Eqv check.
var registry = map[*loopir.Proc]*Procedure{}

// New wraps p as the root of a fresh provenance chain.
func New(p *loopir.Proc) *Procedure {
	argNames := make([]string, len(p.Args))
	for i, a := range p.Args {
		argNames[i] = a.Name
	}
	pr := &Procedure{proc: p, namer: srcinfo.NewNamer(p.Name, argNames)}
	registry[p] = pr
	return pr
}

// IR returns the wrapped LoopIR tree. Callers needing direct tree access
// (pretty-printing a sub-expression, feeding a cursor to internal/fragment)
// use this rather than reaching into package internals.
func (pr *Procedure) IR() *loopir.Proc { return pr.proc }

// String pretty-prints the wrapped procedure.
func (pr *Procedure) String() string { return pr.proc.String() }

// Find resolves patternSrc to the match its `#k` selector names (the first
// match in pre-order when there is none), failing if there is no such match.
func (pr *Procedure) Find(patternSrc string) (cursor.Cursor, error) {
	c, err := pattern.Find(pr.proc, patternSrc)
	if err != nil {
		return cursor.Cursor{}, errcode.Wrap(errcode.PreconditionUnmet, err, "find %q", patternSrc)
	}
	return c, nil
}

// FindAll resolves patternSrc to every match, in pre-order.
func (pr *Procedure) FindAll(patternSrc string) ([]cursor.Cursor, error) {
	cs, err := pattern.FindAll(pr.proc, patternSrc)
	if err != nil {
		return nil, errcode.Wrap(errcode.PreconditionUnmet, err, "find_all %q", patternSrc)
	}
	return cs, nil
}

// derive wraps np as the result of applying rewrite to pr, sharing pr's
// namer (fresh names stay unique across the whole rewrite history, not
// just within one step) and recording the provenance link.
func (pr *Procedure) derive(np *loopir.Proc, fwd *cursor.ForwardingMap, rewrite string) *Procedure {
	next := &Procedure{
		proc:  np,
		namer: pr.namer,
		prov:  &provenanceLink{parent: pr, fwd: fwd, rewrite: rewrite},
	}
	registry[np] = next
	return next
}

// ancestry returns the set of every Procedure reachable by walking
// provenance links from pr back to its root, pr included.
func (pr *Procedure) ancestry() map[*Procedure]bool {
	out := map[*Procedure]bool{}
	for p := pr; p != nil; {
		out[p] = true
		if p.prov == nil {
			break
		}
		p = p.prov.parent
	}
	return out
}

// Eqv reports whether pr and other share a common ancestor in their
// provenance chains — the precondition call_eqv requires before swapping
// one callee for the other.
func (pr *Procedure) Eqv(other *Procedure) bool {
	if other == nil {
		return false
	}
	mine := pr.ancestry()
	for p := range other.ancestry() {
		if mine[p] {
			return true
		}
	}
	return false
}

// Provenance names every rewrite on the path from the root of pr's chain
// to pr itself, oldest first.
func (pr *Procedure) Provenance() []string {
	var chain []*provenanceLink
	for p := pr; p != nil && p.prov != nil; p = p.prov.parent {
		chain = append(chain, p.prov)
	}
	out := make([]string, len(chain))
	for i, link := range chain {
		out[len(chain)-1-i] = link.rewrite
	}
	return out
}

// freshName returns name unless it is empty, in which case it generates a
// fresh one from base using pr's namer.
func (pr *Procedure) freshName(name, base string) string {
	if name != "" {
		return name
	}
	return pr.namer.Fresh(base)
}
