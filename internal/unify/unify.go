// Package unify implements the unifier behind `replace`: given a candidate
// procedure body and a statement block, it searches for a substitution
// from the procedure's arguments to terms in the block's scope such that
// the substituted procedure body is structurally equivalent to the block,
// up to alpha-renaming of bound iterators and affine equivalence of index
// expressions, with affine index comparisons delegated to internal/effects.
package unify

import (
	"fmt"

	"exo/internal/effects"
	"exo/internal/loopir"
)

// Subst is the substitution discovered by Unify: a mapping from the
// candidate procedure's arguments to terms found in the block, plus the
// alpha-renaming of bound loop iterators encountered along the way.
type Subst struct {
	Buffers map[string]string     // proc buffer-arg name -> block buffer name
	Scalars map[string]loopir.Expr // proc scalar-arg name -> block expression
	Iters   map[string]string     // proc iterator name -> block iterator name
}

func newSubst() *Subst {
	return &Subst{Buffers: map[string]string{}, Scalars: map[string]loopir.Expr{}, Iters: map[string]string{}}
}

// Actuals returns the block-side terms to pass as Call arguments, in the
// order subproc.Args declares them, for use by `replace` when it rewrites
// the matched block into Call(subproc, actuals).
func (s *Subst) Actuals(subproc *loopir.Proc) ([]loopir.Expr, error) {
	out := make([]loopir.Expr, len(subproc.Args))
	for i, a := range subproc.Args {
		if a.Typ.IsArray() || a.Typ.IsWindow() {
			b, ok := s.Buffers[a.Name]
			if !ok {
				return nil, fmt.Errorf("unify: argument %q was never bound", a.Name)
			}
			out[i] = &loopir.Read{Name: b}
			continue
		}
		e, ok := s.Scalars[a.Name]
		if !ok {
			return nil, fmt.Errorf("unify: argument %q was never bound", a.Name)
		}
		out[i] = e
	}
	return out, nil
}

// Error reports a unification failure, naming the first mismatched node.
type Error struct {
	Proc  string
	Block string
}

func (e *Error) Error() string {
	return fmt.Sprintf("unify: cannot match %s against %s", e.Proc, e.Block)
}

// Unify attempts to find a substitution under which subproc.Body is
// equivalent to block. On ambiguity among several equally valid bindings
// for the same argument, the first consistent binding encountered during
// the left-to-right, top-to-bottom walk wins, which coincides with the
// lexicographically smallest substitution for the common run of
// scheduling idioms (a single contiguous statement-for-statement
// correspondence, not a search over reorderings or sub-regions — the
// caller picks the candidate block before unification ever runs).
func Unify(subproc *loopir.Proc, block []loopir.Stmt) (*Subst, error) {
	u := &unifier{subst: newSubst()}
	for _, a := range subproc.Args {
		if a.Typ.IsArray() || a.Typ.IsWindow() {
			u.bufferArgs = append(u.bufferArgs, a.Name)
		} else {
			u.scalarArgs = append(u.scalarArgs, a.Name)
		}
	}
	if err := u.unifyBlock(subproc.Body, block); err != nil {
		return nil, err
	}
	return u.subst, nil
}

type unifier struct {
	subst      *Subst
	bufferArgs []string
	scalarArgs []string
}

func (u *unifier) isBufferArg(name string) bool {
	for _, n := range u.bufferArgs {
		if n == name {
			return true
		}
	}
	return false
}

func (u *unifier) isScalarArg(name string) bool {
	for _, n := range u.scalarArgs {
		if n == name {
			return true
		}
	}
	return false
}

func (u *unifier) unifyBlock(p, b []loopir.Stmt) error {
	if len(p) != len(b) {
		return &Error{fmt.Sprintf("a block of %d statement(s)", len(p)), fmt.Sprintf("a block of %d statement(s)", len(b))}
	}
	for i := range p {
		if err := u.unifyStmt(p[i], b[i]); err != nil {
			return err
		}
	}
	return nil
}

func (u *unifier) unifyStmt(p, b loopir.Stmt) error {
	switch pn := p.(type) {
	case *loopir.Assign:
		bn, ok := b.(*loopir.Assign)
		if !ok {
			return mismatch(p, b)
		}
		return u.unifyWrite(pn.Name, pn.Idx, pn.Rhs, bn.Name, bn.Idx, bn.Rhs)
	case *loopir.Reduce:
		bn, ok := b.(*loopir.Reduce)
		if !ok {
			return mismatch(p, b)
		}
		return u.unifyWrite(pn.Name, pn.Idx, pn.Rhs, bn.Name, bn.Idx, bn.Rhs)
	case *loopir.If:
		bn, ok := b.(*loopir.If)
		if !ok {
			return mismatch(p, b)
		}
		if err := u.unifyExpr(pn.Cond, bn.Cond); err != nil {
			return err
		}
		if err := u.unifyBlock(pn.Body, bn.Body); err != nil {
			return err
		}
		return u.unifyBlock(pn.Orelse, bn.Orelse)
	case *loopir.Seq:
		bn, ok := b.(*loopir.Seq)
		if !ok {
			return mismatch(p, b)
		}
		return u.unifyLoop(pn.Iter, pn.Hi, pn.Body, bn.Iter, bn.Hi, bn.Body)
	case *loopir.ForAll:
		bn, ok := b.(*loopir.ForAll)
		if !ok {
			return mismatch(p, b)
		}
		return u.unifyLoop(pn.Iter, pn.Hi, pn.Body, bn.Iter, bn.Hi, bn.Body)
	case *loopir.Alloc:
		bn, ok := b.(*loopir.Alloc)
		if !ok {
			return mismatch(p, b)
		}
		if err := u.bindBuffer(pn.Name, bn.Name); err != nil {
			return err
		}
		if pn.Typ.Rank() != bn.Typ.Rank() {
			return mismatch(p, b)
		}
		return nil
	case *loopir.Call:
		bn, ok := b.(*loopir.Call)
		if !ok {
			return mismatch(p, b)
		}
		if pn.Callee.Name != bn.Callee.Name {
			return mismatch(p, b)
		}
		if len(pn.Args) != len(bn.Args) {
			return mismatch(p, b)
		}
		for i := range pn.Args {
			if err := u.unifyExpr(pn.Args[i], bn.Args[i]); err != nil {
				return err
			}
		}
		return nil
	case *loopir.WriteConfig:
		bn, ok := b.(*loopir.WriteConfig)
		if !ok {
			return mismatch(p, b)
		}
		if pn.Cfg.Name != bn.Cfg.Name || pn.Field != bn.Field {
			return mismatch(p, b)
		}
		return u.unifyExpr(pn.Rhs, bn.Rhs)
	default:
		return mismatch(p, b)
	}
}

func (u *unifier) unifyWrite(pName string, pIdx []loopir.Expr, pRhs loopir.Expr, bName string, bIdx []loopir.Expr, bRhs loopir.Expr) error {
	if err := u.bindBuffer(pName, bName); err != nil {
		return err
	}
	if len(pIdx) != len(bIdx) {
		return &Error{fmt.Sprintf("%s with %d index dims", pName, len(pIdx)), fmt.Sprintf("%s with %d index dims", bName, len(bIdx))}
	}
	for i := range pIdx {
		if err := u.unifyExpr(pIdx[i], bIdx[i]); err != nil {
			return err
		}
	}
	return u.unifyExpr(pRhs, bRhs)
}

func (u *unifier) unifyLoop(pIter string, pHi loopir.Expr, pBody []loopir.Stmt, bIter string, bHi loopir.Expr, bBody []loopir.Stmt) error {
	if err := u.bindIter(pIter, bIter); err != nil {
		return err
	}
	if err := u.unifyExpr(pHi, bHi); err != nil {
		return err
	}
	return u.unifyBlock(pBody, bBody)
}

func (u *unifier) bindBuffer(pName, bName string) error {
	if !u.isBufferArg(pName) {
		if pName != bName {
			return &Error{pName, bName}
		}
		return nil
	}
	if existing, ok := u.subst.Buffers[pName]; ok {
		if existing != bName {
			return &Error{fmt.Sprintf("%s (already bound to %s)", pName, existing), bName}
		}
		return nil
	}
	u.subst.Buffers[pName] = bName
	return nil
}

func (u *unifier) bindIter(pIter, bIter string) error {
	if existing, ok := u.subst.Iters[pIter]; ok {
		if existing != bIter {
			return &Error{fmt.Sprintf("iterator %s (already bound to %s)", pIter, existing), bIter}
		}
		return nil
	}
	u.subst.Iters[pIter] = bIter
	return nil
}

func (u *unifier) bindScalar(pName string, b loopir.Expr) error {
	if existing, ok := u.subst.Scalars[pName]; ok {
		if existing.String() != b.String() {
			return &Error{fmt.Sprintf("%s (already bound to %s)", pName, existing), b.String()}
		}
		return nil
	}
	u.subst.Scalars[pName] = b
	return nil
}

// unifyExpr matches a procedure-side expression against a block-side
// expression, binding scalar/buffer arguments and iterator renamings as it
// goes. It tries a structural, substitution-aware walk first, falling back
// to affine comparison (with iterator renaming applied) so that `i+1` and
// `1+k` unify when i has been bound to k.
func (u *unifier) unifyExpr(p, b loopir.Expr) error {
	if r, ok := p.(*loopir.Read); ok && len(r.Idx) == 0 && u.isScalarArg(r.Name) {
		return u.bindScalar(r.Name, b)
	}
	if err := u.tryStructural(p, b); err == nil {
		return nil
	}
	if pl, pok := effects.Affine(p); pok {
		if bl, bok := effects.Affine(b); bok {
			if affineEqual(pl, bl, u.subst.Iters) {
				return nil
			}
		}
	}
	return mismatch(p, b)
}

func (u *unifier) tryStructural(p, b loopir.Expr) error {
	switch pn := p.(type) {
	case *loopir.Read:
		bn, ok := b.(*loopir.Read)
		if !ok {
			return mismatch(p, b)
		}
		if len(pn.Idx) == 0 {
			if target, ok := u.subst.Iters[pn.Name]; ok {
				if target != bn.Name || len(bn.Idx) != 0 {
					return mismatch(p, b)
				}
				return nil
			}
			if u.isBufferArg(pn.Name) {
				return mismatch(p, b) // a bare buffer-arg name with no index never appears standalone
			}
			if pn.Name != bn.Name || len(bn.Idx) != 0 {
				return mismatch(p, b)
			}
			return nil
		}
		if err := u.bindBuffer(pn.Name, bn.Name); err != nil {
			return err
		}
		if len(pn.Idx) != len(bn.Idx) {
			return mismatch(p, b)
		}
		for i := range pn.Idx {
			if err := u.unifyExpr(pn.Idx[i], bn.Idx[i]); err != nil {
				return err
			}
		}
		return nil
	case *loopir.Const:
		bn, ok := b.(*loopir.Const)
		if !ok || fmt.Sprintf("%v", pn.Value) != fmt.Sprintf("%v", bn.Value) {
			return mismatch(p, b)
		}
		return nil
	case *loopir.USub:
		bn, ok := b.(*loopir.USub)
		if !ok {
			return mismatch(p, b)
		}
		return u.unifyExpr(pn.Arg, bn.Arg)
	case *loopir.BinOp:
		bn, ok := b.(*loopir.BinOp)
		if !ok || pn.Op != bn.Op {
			return mismatch(p, b)
		}
		if err := u.unifyExpr(pn.Lhs, bn.Lhs); err != nil {
			return err
		}
		return u.unifyExpr(pn.Rhs, bn.Rhs)
	case *loopir.BuiltIn:
		bn, ok := b.(*loopir.BuiltIn)
		if !ok || pn.Fn != bn.Fn || len(pn.Args) != len(bn.Args) {
			return mismatch(p, b)
		}
		for i := range pn.Args {
			if err := u.unifyExpr(pn.Args[i], bn.Args[i]); err != nil {
				return err
			}
		}
		return nil
	case *loopir.ReadConfig:
		bn, ok := b.(*loopir.ReadConfig)
		if !ok || pn.Cfg.Name != bn.Cfg.Name || pn.Field != bn.Field {
			return mismatch(p, b)
		}
		return nil
	default:
		return mismatch(p, b)
	}
}

// affineEqual compares two affine forms after renaming p's free variables
// through iters (a proc iterator name maps to its block-side counterpart;
// any other free variable must already match literally).
func affineEqual(p, b effects.LinExpr, iters map[string]string) bool {
	if p.Const != b.Const {
		return false
	}
	renamed := map[string]int64{}
	for v, c := range p.Coeffs {
		target := v
		if t, ok := iters[v]; ok {
			target = t
		}
		renamed[target] += c
	}
	if len(renamed) != len(b.Coeffs) {
		return false
	}
	for v, c := range renamed {
		if b.Coeffs[v] != c {
			return false
		}
	}
	return true
}

func mismatch(p, b any) error {
	return &Error{fmt.Sprintf("%v", p), fmt.Sprintf("%v", b)}
}
