package loopir

import (
	"fmt"
	"strings"

	"exo/internal/config"
	"exo/internal/memory"
)

// Assign overwrites name[idx...] with rhs.
type Assign struct {
	base
	Name string
	Idx  []Expr
	Rhs  Expr
}

func (s *Assign) isStmt()        {}
func (s *Assign) Kind() NodeKind { return KindAssign }
func (s *Assign) String() string { return fmt.Sprintf("%s = %s", target(s.Name, s.Idx), s.Rhs) }

// Reduce accumulates rhs into name[idx...].
type Reduce struct {
	base
	Name string
	Idx  []Expr
	Rhs  Expr
}

func (s *Reduce) isStmt()        {}
func (s *Reduce) Kind() NodeKind { return KindReduce }
func (s *Reduce) String() string { return fmt.Sprintf("%s += %s", target(s.Name, s.Idx), s.Rhs) }

// WriteConfig commits rhs to cfg.field on the mod-config channel.
type WriteConfig struct {
	base
	Cfg   *config.Config
	Field string
	Rhs   Expr
}

func (s *WriteConfig) isStmt()        {}
func (s *WriteConfig) Kind() NodeKind { return KindWriteConfig }
func (s *WriteConfig) String() string {
	return fmt.Sprintf("%s.%s = %s", s.Cfg.Name, s.Field, s.Rhs)
}

// Pass is a no-op statement.
type Pass struct{ base }

func (s *Pass) isStmt()        {}
func (s *Pass) Kind() NodeKind { return KindPass }
func (s *Pass) String() string { return "pass" }

// If is a two-armed conditional.
type If struct {
	base
	Cond   Expr
	Body   []Stmt
	Orelse []Stmt
}

func (s *If) isStmt()        {}
func (s *If) Kind() NodeKind { return KindIf }
func (s *If) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "if %s:\n%s", s.Cond, indentBlock(s.Body))
	if len(s.Orelse) > 0 {
		fmt.Fprintf(&b, "\nelse:\n%s", indentBlock(s.Orelse))
	}
	return b.String()
}

// Seq is sequential iteration for iter in [0, hi).
type Seq struct {
	base
	Iter string
	Hi   Expr
	Body []Stmt
}

func (s *Seq) isStmt()        {}
func (s *Seq) Kind() NodeKind { return KindSeq }
func (s *Seq) String() string {
	return fmt.Sprintf("for %s in seq(0,%s):\n%s", s.Iter, s.Hi, indentBlock(s.Body))
}

// ForAll is unordered parallel iteration for iter in [0, hi).
type ForAll struct {
	base
	Iter string
	Hi   Expr
	Body []Stmt
}

func (s *ForAll) isStmt()        {}
func (s *ForAll) Kind() NodeKind { return KindForAll }
func (s *ForAll) String() string {
	return fmt.Sprintf("for %s in par(0,%s):\n%s", s.Iter, s.Hi, indentBlock(s.Body))
}

// Alloc declares a new buffer in scope.
type Alloc struct {
	base
	Name string
	Typ  Type
	Mem  *memory.Space
}

func (s *Alloc) isStmt()        {}
func (s *Alloc) Kind() NodeKind { return KindAlloc }
func (s *Alloc) String() string {
	return fmt.Sprintf("%s : %s @%s", s.Name, s.Typ, s.Mem)
}

// Free ends the live range of an Alloc-introduced name.
type Free struct {
	base
	Name string
}

func (s *Free) isStmt()        {}
func (s *Free) Kind() NodeKind { return KindFree }
func (s *Free) String() string { return fmt.Sprintf("free(%s)", s.Name) }

// Call invokes another procedure.
type Call struct {
	base
	Callee *Proc
	Args   []Expr
}

func (s *Call) isStmt()        {}
func (s *Call) Kind() NodeKind { return KindCall }
func (s *Call) String() string {
	return fmt.Sprintf("%s(%s)", s.Callee.Name, joinExprs(s.Args))
}

// WindowStmt binds name to a window expression.
type WindowStmt struct {
	base
	Name    string
	WinExpr *WindowExpr
}

func (s *WindowStmt) isStmt()        {}
func (s *WindowStmt) Kind() NodeKind { return KindWindowStmt }
func (s *WindowStmt) String() string {
	return fmt.Sprintf("%s = %s", s.Name, s.WinExpr)
}

func target(name string, idx []Expr) string {
	if len(idx) == 0 {
		return name
	}
	return fmt.Sprintf("%s[%s]", name, joinExprs(idx))
}

func indentBlock(body []Stmt) string {
	var b strings.Builder
	for i, s := range body {
		if i > 0 {
			b.WriteByte('\n')
		}
		lines := strings.Split(s.String(), "\n")
		for j, l := range lines {
			if j > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("  " + l)
		}
	}
	return b.String()
}
