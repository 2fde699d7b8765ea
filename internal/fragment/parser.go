package fragment

import (
	"fmt"

	"exo/internal/loopir"
)

var binaryPrecedence = map[TokenType]int{
	TokOr: 1, TokAnd: 2,
	TokEq: 3,
	TokLt: 4, TokLe: 4, TokGt: 4, TokGe: 4,
	TokPlus: 5, TokMinus: 5,
	TokStar: 6, TokSlash: 6, TokPercent: 6,
}

var tokenToOp = map[TokenType]loopir.BinOpKind{
	TokOr: loopir.OpOr, TokAnd: loopir.OpAnd,
	TokEq: loopir.OpEq,
	TokLt: loopir.OpLt, TokLe: loopir.OpLe, TokGt: loopir.OpGt, TokGe: loopir.OpGe,
	TokPlus: loopir.OpAdd, TokMinus: loopir.OpSub,
	TokStar: loopir.OpMul, TokSlash: loopir.OpDiv, TokPercent: loopir.OpMod,
}

// parser is a precedence-climbing expression parser that builds
// loopir.Expr values directly, with no intermediate untyped AST.
type parser struct {
	toks  []Token
	pos   int
	scope *Scope
	holes []loopir.Expr
	err   error
}

// Parse compiles src into a typed loopir.Expr in the context of scope, with
// holes[i] spliced in wherever src writes `$i`. Free identifiers not found
// in scope.vars or as a scope.configs `name.field` pair are a resolution
// error.
func Parse(src string, scope *Scope, holes []loopir.Expr) (loopir.Expr, error) {
	sc := NewScanner(src)
	toks, scanErrs := sc.ScanTokens()
	if len(scanErrs) > 0 {
		return nil, scanErrs[0]
	}
	p := &parser{toks: toks, scope: scope, holes: holes}
	e := p.parseExpr(1)
	if p.err != nil {
		return nil, p.err
	}
	if p.peek().Type != TokEOF {
		return nil, &ParseError{p.peek().Offset, fmt.Sprintf("unexpected trailing token %q", p.peek().Type)}
	}
	if err := Typecheck(e, scope); err != nil {
		return nil, err
	}
	return e, nil
}

// ParseError reports a syntactic error at a byte offset in the fragment.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string { return fmt.Sprintf("fragment: offset %d: %s", e.Offset, e.Message) }

func (p *parser) peek() Token { return p.toks[p.pos] }

func (p *parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) fail(msg string) {
	if p.err == nil {
		p.err = &ParseError{p.peek().Offset, msg}
	}
}

func (p *parser) parseExpr(minPrec int) loopir.Expr {
	left := p.parseUnary()
	for p.err == nil {
		t := p.peek()
		if t.Type == TokNe {
			p.fail("'!=' is not supported; loopir has no inequality operator, write `(a == b) == false` instead")
			return left
		}
		prec, ok := binaryPrecedence[t.Type]
		if !ok || prec < minPrec {
			break
		}
		p.advance()
		right := p.parseExpr(prec + 1)
		left = loopir.Bin(tokenToOp[t.Type], left, right)
	}
	return left
}

func (p *parser) parseUnary() loopir.Expr {
	if p.peek().Type == TokMinus {
		p.advance()
		arg := p.parseUnary()
		return &loopir.USub{Arg: arg}
	}
	if p.peek().Type == TokBang {
		p.fail("unary '!' is not supported; write `x == false` instead")
		return nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() loopir.Expr {
	t := p.peek()
	switch t.Type {
	case TokNumber:
		p.advance()
		return parseNumberLit(t.Lexeme)
	case TokHole:
		p.advance()
		if t.HoleN < 0 || t.HoleN >= len(p.holes) {
			p.fail(fmt.Sprintf("hole $%d out of range (%d holes supplied)", t.HoleN, len(p.holes)))
			return nil
		}
		return p.holes[t.HoleN]
	case TokLParen:
		p.advance()
		e := p.parseExpr(1)
		if p.peek().Type != TokRParen {
			p.fail("expected ')'")
			return e
		}
		p.advance()
		return e
	case TokIdent:
		p.advance()
		name := t.Lexeme
		if p.peek().Type == TokDot {
			p.advance()
			if p.peek().Type != TokIdent {
				p.fail("expected field name after '.'")
				return nil
			}
			field := p.advance().Lexeme
			cfg, ok := p.scope.LookupConfig(name)
			if !ok {
				p.fail(fmt.Sprintf("%q is not a configuration visible in this scope", name))
				return nil
			}
			return &loopir.ReadConfig{Field: field, Cfg: cfg}
		}
		if p.peek().Type == TokLParen {
			p.advance()
			var callArgs []loopir.Expr
			if p.peek().Type != TokRParen {
				for {
					callArgs = append(callArgs, p.parseExpr(1))
					if p.peek().Type == TokComma {
						p.advance()
						continue
					}
					break
				}
			}
			if p.peek().Type != TokRParen {
				p.fail("expected ')'")
			} else {
				p.advance()
			}
			return &loopir.BuiltIn{Fn: name, Args: callArgs}
		}
		var idx []loopir.Expr
		if p.peek().Type == TokLBracket {
			p.advance()
			for {
				idx = append(idx, p.parseExpr(1))
				if p.peek().Type == TokComma {
					p.advance()
					continue
				}
				break
			}
			if p.peek().Type != TokRBracket {
				p.fail("expected ']'")
			} else {
				p.advance()
			}
		}
		return &loopir.Read{Name: name, Idx: idx}
	default:
		p.fail(fmt.Sprintf("unexpected token %q", t.Type))
		return nil
	}
}

func parseNumberLit(lit string) loopir.Expr {
	for _, r := range lit {
		if r == '.' {
			var f float64
			fmt.Sscanf(lit, "%g", &f)
			return &loopir.Const{Value: f, Typ: loopir.Scalar(loopir.TypeF32)}
		}
	}
	var i int
	fmt.Sscanf(lit, "%d", &i)
	return &loopir.Const{Value: i, Typ: loopir.Scalar(loopir.TypeIndex)}
}
