package pattern

// Query is a parsed pattern: a shape to search for plus an optional
// 1-indexed occurrence selector (a trailing `#k`).
type Query struct {
	Pattern    *Pattern `@@`
	Occurrence *int     `( "#" @Number )?`
}

// Pattern is one of the recognized statement or expression forms.
// The alternation order matters for participle's lookahead: For/If are
// disambiguated by their leading keyword, the Ident-led forms by their
// second token, and bare expressions fall through last.
type Pattern struct {
	For    *ForPattern    `  @@`
	If     *IfPattern     `| @@`
	Assign *AssignPattern `| @@`
	Call   *CallPattern   `| @@`
	Alloc  *AllocPattern  `| @@`
	Expr   *ExprPattern   `| @@`
}

// ForPattern matches `for NAME in _: _` against a Seq or ForAll statement.
// The grammar does not distinguish sequential from parallel loops; callers
// needing that distinction post-filter by cursor.LoopView.
type ForPattern struct {
	Iter string `"for" @Ident "in" "_" ":" "_"`
}

// IfPattern matches `if _: _` against an If statement.
type IfPattern struct {
	Anchor string `@"if" "_" ":" "_"`
}

// AssignPattern matches `NAME = _`, `NAME[_] = _`, or `NAME += _` against
// an Assign or Reduce statement.
type AssignPattern struct {
	Name    string `@Ident`
	Indexed bool   `( "[" "_" "]" )?`
	Op      string `@( "=" | "+=" )`
	Rhs     string `"_"`
}

// CallPattern matches `NAME(_)` against a Call statement.
type CallPattern struct {
	Name string `@Ident "(" "_" ")"`
}

// AllocPattern matches `NAME : _` against an Alloc statement.
type AllocPattern struct {
	Name string `@Ident ":" "_"`
}

// ExprAtom is one operand of an expression pattern: the wildcard, a
// numeric literal, or a bare identifier (matched against a Read's name).
type ExprAtom struct {
	Wild   bool    `  @"_"`
	Number *string `| @Number`
	Name   *string `| @Ident`
}

// ExprPattern matches a bare atom, or a single infix binary operation
// between two atoms: a name, a literal, or one level of
// arithmetic/comparison — the shapes the rewrite primitives' argument
// processors actually need to locate.
type ExprPattern struct {
	Left  *ExprAtom `@@`
	Op    *string   `( @( "+" | "-" | "*" | "/" | "%" | "<=" | ">=" | "==" | "!=" | "<" | ">" )`
	Right *ExprAtom `  @@ )?`
}
