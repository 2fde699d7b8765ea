package loopir

import (
	"fmt"
	"strings"

	"exo/internal/memory"
)

// Arg is one procedure argument.
type Arg struct {
	Name string
	Typ  Type
	Mem  *memory.Space
}

func (a Arg) String() string {
	if a.Mem == nil {
		return fmt.Sprintf("%s : %s", a.Name, a.Typ)
	}
	return fmt.Sprintf("%s : %s @%s", a.Name, a.Typ, a.Mem)
}

// Proc is a top-level LoopIR procedure: (name, args, preds, body, instr?).
type Proc struct {
	Name  string
	Args  []Arg
	Preds []Expr
	Body  []Stmt
	Instr *string // non-nil when make_instr has tagged this as a hardware template
}

// Clone performs a deep structural copy of p. Every rewrite primitive
// starts from a Clone so the input IR is never mutated (the
// scheduler is "purely functional over immutable IR").
func (p *Proc) Clone() *Proc {
	np := &Proc{
		Name:  p.Name,
		Args:  append([]Arg(nil), p.Args...),
		Preds: cloneExprs(p.Preds),
		Body:  CloneStmts(p.Body),
	}
	if p.Instr != nil {
		s := *p.Instr
		np.Instr = &s
	}
	return np
}

func (p *Proc) String() string {
	var b strings.Builder
	if p.Instr != nil {
		fmt.Fprintf(&b, "# instr: %s\n", *p.Instr)
	}
	argStrs := make([]string, len(p.Args))
	for i, a := range p.Args {
		argStrs[i] = a.String()
	}
	fmt.Fprintf(&b, "def %s(%s)", p.Name, strings.Join(argStrs, ", "))
	for _, pr := range p.Preds {
		fmt.Fprintf(&b, "\n  assert %s", pr)
	}
	b.WriteString(":\n")
	b.WriteString(indentBlock(p.Body))
	return b.String()
}

// ArgNames returns the procedure's argument names in order, used to seed a
// deterministic srcinfo.Namer for this procedure root.
func (p *Proc) ArgNames() []string {
	names := make([]string, len(p.Args))
	for i, a := range p.Args {
		names[i] = a.Name
	}
	return names
}
