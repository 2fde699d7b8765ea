package loopir

import "exo/internal/memory"

// This file collects small construction helpers used by tests, by
// cmd/exo-cli's seed procedures, and by rewrite primitives that synthesize
// new sub-trees. There is no surface-syntax parser in this engine, so
// callers build LoopIR directly through these helpers rather than by
// parsing text.

// RD builds a Read of a scalar or (with idx) an indexed buffer access.
func RD(name string, idx ...Expr) *Read { return &Read{Name: name, Idx: idx} }

// CI builds an integer Const of type index.
func CI(v int) *Const { return &Const{Value: v, Typ: Scalar(TypeIndex)} }

// CF builds a float32 Const.
func CF(v float64) *Const { return &Const{Value: v, Typ: Scalar(TypeF32)} }

// CB builds a bool Const.
func CB(v bool) *Const { return &Const{Value: v, Typ: Scalar(TypeBool)} }

// Bin builds a BinOp.
func Bin(op BinOpKind, lhs, rhs Expr) *BinOp { return &BinOp{Op: op, Lhs: lhs, Rhs: rhs} }

// Add, Sub, Mul, Div are shorthand for the common arithmetic BinOps.
func Add(l, r Expr) *BinOp { return Bin(OpAdd, l, r) }
func Sub(l, r Expr) *BinOp { return Bin(OpSub, l, r) }
func Mul(l, r Expr) *BinOp { return Bin(OpMul, l, r) }
func Div(l, r Expr) *BinOp { return Bin(OpDiv, l, r) }
func Mod(l, r Expr) *BinOp { return Bin(OpMod, l, r) }
func Lt(l, r Expr) *BinOp  { return Bin(OpLt, l, r) }
func Ge(l, r Expr) *BinOp  { return Bin(OpGe, l, r) }

// AssignS, ReduceS build the corresponding statements.
func AssignS(name string, idx []Expr, rhs Expr) *Assign { return &Assign{Name: name, Idx: idx, Rhs: rhs} }
func ReduceS(name string, idx []Expr, rhs Expr) *Reduce { return &Reduce{Name: name, Idx: idx, Rhs: rhs} }

// SeqS, ForAllS build loop statements.
func SeqS(iter string, hi Expr, body ...Stmt) *Seq {
	return &Seq{Iter: iter, Hi: hi, Body: body}
}
func ForAllS(iter string, hi Expr, body ...Stmt) *ForAll {
	return &ForAll{Iter: iter, Hi: hi, Body: body}
}

// IfS builds a conditional with no else branch.
func IfS(cond Expr, body ...Stmt) *If { return &If{Cond: cond, Body: body} }

// AllocS declares a buffer in the default DRAM memory space.
func AllocS(name string, typ Type) *Alloc { return &Alloc{Name: name, Typ: typ, Mem: memory.DRAM} }

// AllocMemS declares a buffer in an explicit memory space.
func AllocMemS(name string, typ Type, mem *memory.Space) *Alloc {
	return &Alloc{Name: name, Typ: typ, Mem: mem}
}

// NewProc builds a procedure from its pieces.
func NewProc(name string, args []Arg, preds []Expr, body []Stmt) *Proc {
	return &Proc{Name: name, Args: args, Preds: preds, Body: body}
}

// A builds a procedure argument.
func A(name string, typ Type) Arg { return Arg{Name: name, Typ: typ, Mem: memory.DRAM} }
