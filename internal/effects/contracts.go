package effects

import (
	"fmt"

	"exo/internal/loopir"
)

// Counterexample is a concrete variable assignment under which a legality
// check failed, returned instead of a bare boolean so callers (and their
// error messages) can show the user why a rewrite was rejected, instead of
// an undecidable-or-not boolean with no further explanation.
type Counterexample struct {
	Env    map[string]int64
	Reason string
}

func (c *Counterexample) String() string {
	if c == nil {
		return "<none>"
	}
	if c.Reason == "" {
		return fmt.Sprintf("%v", c.Env)
	}
	return fmt.Sprintf("%s (%v)", c.Reason, c.Env)
}

// SafeAccess checks that every access of idx against a buffer shaped by
// shape stays in bounds, for every point of env.
func SafeAccess(idx []loopir.Expr, shape []loopir.Expr, env Env) (bool, *Counterexample, error) {
	if len(idx) != len(shape) {
		return false, nil, fmt.Errorf("effects: index rank %d does not match shape rank %d", len(idx), len(shape))
	}
	linIdx := make([]LinExpr, len(idx))
	for i, e := range idx {
		l, ok := Affine(e)
		if !ok {
			return false, nil, ErrUndecidable
		}
		linIdx[i] = l
	}
	linShape := make([]LinExpr, len(shape))
	for i, e := range shape {
		l, ok := Affine(e)
		if !ok {
			return false, nil, ErrUndecidable
		}
		linShape[i] = l
	}

	return forAllPoints(env, func(e map[string]int64) (bool, string) {
		for d := range idx {
			v := linIdx[d].Eval(e)
			n := linShape[d].Eval(e)
			if v < 0 || v >= n {
				return false, fmt.Sprintf("dim %d: index %d out of [0,%d)", d, v, n)
			}
		}
		return true, ""
	})
}

// Independent checks that, for any two distinct values of binder iter
// within its range, the accesses in writes touch disjoint locations
// — the write-disjointness obligation every ForAll must discharge.
func Independent(writes []Access, iter string, env Env) (bool, *Counterexample, error) {
	// Evaluate each write's index under two copies of the environment that
	// agree on every binder except iter, which takes distinct values i1/i2.
	shadow := make([]Binder, len(env.Binders))
	copy(shadow, env.Binders)
	for i, b := range shadow {
		if b.Name == iter {
			shadow[i].Name = iter + "$2"
		}
	}
	env2 := Env{Binders: append(append([]Binder(nil), env.Binders...), shadow...), Preds: env.Preds}

	linAll := make([][]LinExpr, len(writes))
	for wi, w := range writes {
		lin := make([]LinExpr, len(w.Idx))
		for i, e := range w.Idx {
			l, ok := Affine(e)
			if !ok {
				return false, nil, ErrUndecidable
			}
			lin[i] = l
		}
		linAll[wi] = lin
	}

	return forAllPoints(env2, func(e map[string]int64) (bool, string) {
		i1, i2 := e[iter], e[iter+"$2"]
		if i1 == i2 {
			return true, ""
		}
		for wi1, w1 := range writes {
			for wi2, w2 := range writes {
				if w1.Buf != w2.Buf {
					continue
				}
				l1, l2 := linAll[wi1], linAll[wi2]
				if len(l1) == 0 {
					continue
				}
				env1pt := cloneEnv(e)
				env1pt[iter] = i1
				env2pt := cloneEnv(e)
				env2pt[iter] = i2
				same := true
				for d := range l1 {
					if l1[d].Eval(env1pt) != l2[d].Eval(env2pt) {
						same = false
						break
					}
				}
				if same {
					return false, fmt.Sprintf("%s[%d]==%s[%d] for %s=%d,%s=%d", w1.Buf, wi1, w2.Buf, wi2, iter, i1, iter, i2)
				}
			}
		}
		return true, ""
	})
}

func cloneEnv(e map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Idempotent checks that running block twice in sequence is equivalent to
// running it once, used by remove_loop/add_loop.
// A block is treated as idempotent here when every write/reduce it performs
// assigns a value that does not depend on the buffer's own prior contents
// (a plain Assign whose Rhs does not read the same buffer at any index)
// and it contains no Reduce — generalizing the common "x = c"
// pattern to arbitrary affine-indexed Assigns.
func Idempotent(body []loopir.Stmt) (bool, string) {
	for _, s := range body {
		switch n := s.(type) {
		case *loopir.Assign:
			if readsOwnTarget(n.Name, n.Rhs) {
				return false, fmt.Sprintf("%s's rhs reads %s", n.Name, n.Name)
			}
		case *loopir.Reduce:
			return false, fmt.Sprintf("%s is a reduction, never idempotent", n.Name)
		case *loopir.If:
			if ok, why := Idempotent(n.Body); !ok {
				return false, why
			}
			if ok, why := Idempotent(n.Orelse); !ok {
				return false, why
			}
		case *loopir.Seq:
			if ok, why := Idempotent(n.Body); !ok {
				return false, why
			}
		case *loopir.ForAll:
			if ok, why := Idempotent(n.Body); !ok {
				return false, why
			}
		case *loopir.WriteConfig:
			return false, "WriteConfig is never idempotent"
		}
	}
	return true, ""
}

func readsOwnTarget(name string, e loopir.Expr) bool {
	found := false
	var walk func(loopir.Expr)
	walk = func(e loopir.Expr) {
		switch n := e.(type) {
		case *loopir.Read:
			if n.Name == name {
				found = true
			}
			for _, i := range n.Idx {
				walk(i)
			}
		case *loopir.USub:
			walk(n.Arg)
		case *loopir.BinOp:
			walk(n.Lhs)
			walk(n.Rhs)
		case *loopir.BuiltIn:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return found
}

// DeadAfter checks that buf is not read on any path from the given
// statement list onward, used by reuse_buffer.
func DeadAfter(buf string, after []loopir.Stmt) bool {
	for _, s := range after {
		if readsBuf(buf, s) {
			return false
		}
	}
	return true
}

func readsBuf(buf string, s loopir.Stmt) bool {
	for _, a := range AccessesOfStmt(s) {
		if a.Buf == buf && a.Kind == AccessRead {
			return true
		}
	}
	switch n := s.(type) {
	case *loopir.If:
		for _, s2 := range n.Body {
			if readsBuf(buf, s2) {
				return true
			}
		}
		for _, s2 := range n.Orelse {
			if readsBuf(buf, s2) {
				return true
			}
		}
	case *loopir.Seq:
		for _, s2 := range n.Body {
			if readsBuf(buf, s2) {
				return true
			}
		}
	case *loopir.ForAll:
		for _, s2 := range n.Body {
			if readsBuf(buf, s2) {
				return true
			}
		}
	}
	return false
}

// EqualModConfig reports whether p and q are equivalent up to their
// sequence of WriteConfig effects, used by call_eqv. Two bodies are
// equal-mod-config when they are structurally identical after erasing
// every top-level WriteConfig statement; WriteConfigs nested inside a loop
// or an If are kept and compared.
func EqualModConfig(p, q []loopir.Stmt) bool {
	return eraseConfig(p).String() == eraseConfig(q).String()
}

type stmtList []loopir.Stmt

func (l stmtList) String() string {
	out := ""
	for _, s := range l {
		out += s.String() + ";"
	}
	return out
}

func eraseConfig(body []loopir.Stmt) stmtList {
	var out stmtList
	for _, s := range body {
		if _, ok := s.(*loopir.WriteConfig); ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

// forAllPoints enumerates every point of env (binders resolved to finite
// domains, with any remaining free symbolic sizes substituted from
// SampleSizes) and calls check at each point; it returns ok=false with a
// Counterexample at the first failing point, or err=ErrUndecidable if the
// search space cannot be bounded.
func forAllPoints(env Env, check func(map[string]int64) (bool, string)) (bool, *Counterexample, error) {
	free := map[string]bool{}
	for _, b := range env.Binders {
		collectFree(b.Lo, free)
		collectFree(b.Hi, free)
	}
	for _, p := range env.Preds {
		collectFree(p, free)
	}
	for _, b := range env.Binders {
		delete(free, b.Name)
	}
	var freeNames []string
	for n := range free {
		freeNames = append(freeNames, n)
	}

	if len(freeNames) > 0 && pow(int64(len(SampleSizes)), int64(len(freeNames))) > domainCap {
		return false, nil, ErrUndecidable
	}

	var cex *Counterexample
	failed := false
	bounded := true

	var tryFreeAssignment func(idx int, assigned map[string]int64)
	tryFreeAssignment = func(idx int, assigned map[string]int64) {
		if failed || !bounded {
			return
		}
		if idx == len(freeNames) {
			if !exploreBinders(env.Binders, 0, assigned, env.Preds, check, &cex, &failed) {
				bounded = false
			}
			return
		}
		for _, v := range SampleSizes {
			assigned2 := cloneEnv(assigned)
			assigned2[freeNames[idx]] = v
			tryFreeAssignment(idx+1, assigned2)
			if failed || !bounded {
				return
			}
		}
	}

	tryFreeAssignment(0, map[string]int64{})
	if failed {
		return false, cex, nil
	}
	if !bounded {
		return false, nil, ErrUndecidable
	}
	return true, nil, nil
}

func pow(base, exp int64) int64 {
	r := int64(1)
	for i := int64(0); i < exp; i++ {
		r *= base
		if r > domainCap*10 {
			return r
		}
	}
	return r
}

// exploreBinders resolves binders[idx:] to finite domains given the
// already-bound values in env (earlier binders plus sampled free vars) and
// recurses; it calls check at every leaf point. A binder whose domain
// cannot be resolved is sampled over [0, largest SampleSizes entry), so
// every call returns true.
func exploreBinders(binders []Binder, idx int, env map[string]int64, preds []loopir.Expr, check func(map[string]int64) (bool, string), cex **Counterexample, failed *bool) bool {
	if idx == len(binders) {
		if !predsHold(preds, env) {
			return true
		}
		ok, why := check(env)
		if !ok {
			*cex = &Counterexample{Env: cloneEnv(env), Reason: why}
			*failed = true
			return true
		}
		return true
	}
	b := binders[idx]
	dom, ok := BinderDomain(b, env)
	if !ok {
		// symbolic bound depending on un-sampled state: fall back to sampling
		dom = Domain{Name: b.Name, Lo: 0, Hi: SampleSizes[len(SampleSizes)-1]}
	}
	n := dom.Hi - dom.Lo
	if n <= 0 {
		return true
	}
	if n > 64 {
		n = 64 // cap per-binder width for tractability
	}
	for v := dom.Lo; v < dom.Lo+n; v++ {
		env2 := cloneEnv(env)
		env2[b.Name] = v
		if !exploreBinders(binders, idx+1, env2, preds, check, cex, failed) {
			return false
		}
		if *failed {
			return true
		}
	}
	return true
}

func predsHold(preds []loopir.Expr, env map[string]int64) bool {
	for _, p := range preds {
		if !evalRelation(p, env) {
			return false
		}
	}
	return true
}

// evalRelation evaluates a comparison predicate `lhs OP rhs`; predicates
// that are not affine comparisons, or whose variables are not yet bound in
// env, do not prune the search (conservatively treated as satisfied).
func evalRelation(p loopir.Expr, env map[string]int64) bool {
	b, ok := p.(*loopir.BinOp)
	if !ok {
		return true
	}
	l, lok := Affine(b.Lhs)
	r, rok := Affine(b.Rhs)
	if !lok || !rok || !hasAllVars(l, env) || !hasAllVars(r, env) {
		return true
	}
	lv, rv := l.Eval(env), r.Eval(env)
	switch b.Op {
	case loopir.OpLt:
		return lv < rv
	case loopir.OpGt:
		return lv > rv
	case loopir.OpLe:
		return lv <= rv
	case loopir.OpGe:
		return lv >= rv
	case loopir.OpEq:
		return lv == rv
	default:
		return true
	}
}

func hasAllVars(l LinExpr, env map[string]int64) bool {
	for _, v := range l.Vars() {
		if _, ok := env[v]; !ok {
			return false
		}
	}
	return true
}

func collectFree(e loopir.Expr, out map[string]bool) {
	l, ok := Affine(e)
	if !ok {
		return
	}
	for _, v := range l.Vars() {
		out[v] = true
	}
}
