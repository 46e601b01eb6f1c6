package gonewton

import (
	"strconv"
	"strings"
	"unicode"
)

// ============================================================
// Lexer
// ============================================================

const (
	maxExprLen   = 4096
	maxExprDepth = 200
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNum
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
	num  float64
}

// lexer produces tokens on demand so that a disallowed name is reported
// before anything after it is even looked at.
type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}
	c := l.src[l.pos]
	switch {
	case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		return l.number()
	case isIdentStart(c):
		for l.pos < len(l.src) && (isIdentPart(l.src[l.pos]) || l.src[l.pos] == '.') {
			l.pos++
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], pos: start}, nil
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case c == '*':
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '*' {
			l.pos++
			return token{kind: tokOp, text: "**", pos: start}, nil
		}
		return token{kind: tokOp, text: "*", pos: start}, nil
	case strings.IndexByte("+-/%^", c) >= 0:
		l.pos++
		return token{kind: tokOp, text: string(c), pos: start}, nil
	}
	r := rune(c)
	if !unicode.IsPrint(r) || c >= 0x80 {
		return token{}, syntaxError(start, "unexpected byte 0x%02x", c)
	}
	return token{}, syntaxError(start, "unexpected character %q", c)
}

func (l *lexer) number() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		l.pos++
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		save := l.pos
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		} else {
			// "2e" is a number followed by the constant e.
			l.pos = save
		}
	}
	text := l.src[start:l.pos]
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, syntaxError(start, "invalid number %q", text)
	}
	return token{kind: tokNum, text: text, pos: start, num: v}, nil
}

func isSpace(c byte) bool      { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }

// ============================================================
// Parser
// ============================================================
//
//	expr    := term (('+' | '-') term)*
//	term    := unary (('*' | '/' | '%') unary)*
//	unary   := ('+' | '-') unary | power
//	power   := primary (('**' | '^') unary)?
//	primary := number | name | name '(' expr ')' | '(' expr ')'

type parser struct {
	lex   lexer
	tok   token
	depth int
}

// Parse turns expression text into an AST restricted to arithmetic, x, and
// the whitelisted constants and functions.
func Parse(text string) (Expr, error) {
	e, err := parse(text)
	if err != nil {
		return nil, withExpr(err, text)
	}
	return e, nil
}

func parse(text string) (Expr, error) {
	if len(text) > maxExprLen {
		return nil, syntaxError(-1, "expression longer than %d bytes", maxExprLen)
	}
	if strings.TrimSpace(text) == "" {
		return nil, syntaxError(0, "empty expression")
	}
	p := &parser{lex: lexer{src: text}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, syntaxError(p.tok.pos, "unexpected %q", p.tok.text)
	}
	return e, nil
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) isOp(ops ...string) bool {
	if p.tok.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if p.tok.text == op {
			return true
		}
	}
	return false
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxExprDepth {
		return syntaxError(p.tok.pos, "expression nested deeper than %d levels", maxExprDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) expr() (Expr, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.isOp("+", "-") {
		op := p.tok.text[0]
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &Binary{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) term() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*", "/", "%") {
		op := p.tok.text[0]
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &Binary{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) unary() (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if p.isOp("+", "-") {
		neg := p.tok.text == "-"
		if err := p.advance(); err != nil {
			return nil, err
		}
		arg, err := p.unary()
		if err != nil {
			return nil, err
		}
		if neg {
			return &Neg{arg: arg}, nil
		}
		return arg, nil
	}
	return p.power()
}

func (p *parser) power() (Expr, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	if !p.isOp("**", "^") {
		return base, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &Pow{base: base, exp: exp}, nil
}

func (p *parser) primary() (Expr, error) {
	t := p.tok
	switch t.kind {
	case tokNum:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return N(t.num), nil

	case tokIdent:
		return p.name(t)

	case tokLParen:
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, syntaxError(p.tok.pos, "expected ')'")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil

	case tokEOF:
		return nil, syntaxError(t.pos, "unexpected end of expression")
	}
	return nil, syntaxError(t.pos, "unexpected %q", t.text)
}

func (p *parser) name(t token) (Expr, error) {
	name := canonicalName(t.text)
	// Resolve before consuming anything else: unknown names are rejected here.
	switch {
	case t.text == VarName:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return X(), nil
	case IsConstant(t.text):
		if err := p.advance(); err != nil {
			return nil, err
		}
		c, _ := ConstOf(t.text)
		return c, nil
	case IsFunction(t.text):
	default:
		return nil, disallowed(t.pos, t.text)
	}

	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokLParen {
		return nil, syntaxError(p.tok.pos, "function %s must be called with one argument", name)
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	if err := p.advance(); err != nil {
		return nil, err
	}
	arg, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokRParen {
		return nil, syntaxError(p.tok.pos, "function %s takes exactly one argument", name)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &Call{name: name, arg: arg}, nil
}
