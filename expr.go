// Package gonewton provides a deterministic, sandbox-free expression kernel and
// an incremental Newton's-method session built on top of it.
//
// Design goals:
//   - User formulas are parsed into a small AST; nothing is ever handed to a
//     general-purpose evaluator
//   - One free variable (x), float64 arithmetic, a fixed function allow-list
//   - Explicit session values owned by the caller, no hidden globals
//   - JSON, LaTeX, and tool-call APIs for servers, CLIs and agent backends
package gonewton

import (
	"math"
	"strconv"
)

// ============================================================
// Core Interface
// ============================================================

type Expr interface {
	Eval(x float64) (float64, error)
	String() string
	LaTeX() string
	Diff() Expr
	Equal(other Expr) bool
	exprType() string
	toJSON() map[string]interface{}
}

// Operator precedence used by String to decide where parentheses go.
const (
	precAdd = iota + 1
	precMul
	precUnary
	precPow
	precAtom
)

func precOf(e Expr) int {
	switch n := e.(type) {
	case *Binary:
		if n.op == '+' || n.op == '-' {
			return precAdd
		}
		return precMul
	case *Neg:
		return precUnary
	case *Pow:
		return precPow
	case *Num:
		if n.val < 0 {
			return precUnary
		}
	}
	return precAtom
}

func paren(e Expr, wrap bool) string {
	if wrap {
		return "(" + e.String() + ")"
	}
	return e.String()
}

func finite(v float64, what string) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domainError("%s is not finite", what)
	}
	return v, nil
}

// ============================================================
// Num: float64 literal
// ============================================================

type Num struct{ val float64 }

func N(v float64) *Num { return &Num{val: v} }

func (n *Num) Eval(float64) (float64, error) { return n.val, nil }
func (n *Num) Diff() Expr                    { return N(0) }
func (n *Num) Equal(other Expr) bool         { o, ok := other.(*Num); return ok && n.val == o.val }
func (n *Num) exprType() string              { return "num" }
func (n *Num) Value() float64                { return n.val }
func (n *Num) IsZero() bool                  { return n.val == 0 }
func (n *Num) IsOne() bool                   { return n.val == 1 }

func (n *Num) String() string { return strconv.FormatFloat(n.val, 'g', -1, 64) }
func (n *Num) LaTeX() string  { return n.String() }

func (n *Num) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "num", "value": n.val}
}

// ============================================================
// Var: the bound variable x
// ============================================================

type Var struct{}

func X() *Var { return &Var{} }

func (v *Var) Eval(x float64) (float64, error) { return x, nil }
func (v *Var) Diff() Expr                      { return N(1) }
func (v *Var) Equal(other Expr) bool           { _, ok := other.(*Var); return ok }
func (v *Var) exprType() string                { return "var" }
func (v *Var) String() string                  { return VarName }
func (v *Var) LaTeX() string                   { return VarName }
func (v *Var) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "var", "name": VarName}
}

// ============================================================
// Const: named mathematical constants
// ============================================================

type Const struct {
	name string
	val  float64
}

func (c *Const) Eval(float64) (float64, error) { return c.val, nil }
func (c *Const) Diff() Expr                    { return N(0) }
func (c *Const) Equal(other Expr) bool         { o, ok := other.(*Const); return ok && c.name == o.name }
func (c *Const) exprType() string              { return "const" }
func (c *Const) String() string                { return c.name }
func (c *Const) Name() string                  { return c.name }

func (c *Const) LaTeX() string {
	switch c.name {
	case "pi":
		return "\\pi"
	case "tau":
		return "\\tau"
	}
	return c.name
}

func (c *Const) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "const", "name": c.name}
}

// ============================================================
// Neg: unary minus
// ============================================================

type Neg struct{ arg Expr }

func (n *Neg) Eval(x float64) (float64, error) {
	v, err := n.arg.Eval(x)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

func (n *Neg) Diff() Expr            { return NegOf(n.arg.Diff()) }
func (n *Neg) Equal(other Expr) bool { o, ok := other.(*Neg); return ok && n.arg.Equal(o.arg) }
func (n *Neg) exprType() string      { return "neg" }
func (n *Neg) Arg() Expr             { return n.arg }
func (n *Neg) String() string        { return "-" + paren(n.arg, precOf(n.arg) < precPow) }
func (n *Neg) LaTeX() string {
	if precOf(n.arg) < precPow {
		return "-\\left(" + n.arg.LaTeX() + "\\right)"
	}
	return "-" + n.arg.LaTeX()
}
func (n *Neg) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "neg", "arg": n.arg.toJSON()}
}

// ============================================================
// Binary: + - * / %
// ============================================================

type Binary struct {
	op          byte
	left, right Expr
}

func (b *Binary) Eval(x float64) (float64, error) {
	l, err := b.left.Eval(x)
	if err != nil {
		return 0, err
	}
	r, err := b.right.Eval(x)
	if err != nil {
		return 0, err
	}
	switch b.op {
	case '+':
		return finite(l+r, "sum")
	case '-':
		return finite(l-r, "difference")
	case '*':
		return finite(l*r, "product")
	case '/':
		if r == 0 {
			return 0, domainError("division by zero")
		}
		return finite(l/r, "quotient")
	case '%':
		if r == 0 {
			return 0, domainError("modulo by zero")
		}
		m := math.Mod(l, r)
		// Result takes the sign of the divisor.
		if m != 0 && (m < 0) != (r < 0) {
			m += r
		}
		return m, nil
	}
	return 0, domainError("unknown operator %q", b.op)
}

func (b *Binary) Equal(other Expr) bool {
	o, ok := other.(*Binary)
	return ok && b.op == o.op && b.left.Equal(o.left) && b.right.Equal(o.right)
}

func (b *Binary) exprType() string { return "binary" }
func (b *Binary) Op() byte         { return b.op }
func (b *Binary) Left() Expr       { return b.left }
func (b *Binary) Right() Expr      { return b.right }

func (b *Binary) String() string {
	p := precOf(b)
	lp, rp := precOf(b.left), precOf(b.right)
	// + and * are associative on the right; - / % are not.
	rightWrap := rp < p || (rp == p && b.op != '+' && b.op != '*')
	sep := " " + string(b.op) + " "
	if b.op == '*' || b.op == '/' || b.op == '%' {
		sep = string(b.op)
	}
	return paren(b.left, lp < p) + sep + paren(b.right, rightWrap)
}

func (b *Binary) LaTeX() string {
	switch b.op {
	case '/':
		return "\\frac{" + b.left.LaTeX() + "}{" + b.right.LaTeX() + "}"
	case '*':
		return latexParen(b.left, precOf(b.left) < precMul) + " \\cdot " + latexParen(b.right, precOf(b.right) < precMul)
	case '%':
		return latexParen(b.left, precOf(b.left) < precMul) + " \\bmod " + latexParen(b.right, precOf(b.right) <= precMul)
	case '-':
		return b.left.LaTeX() + " - " + latexParen(b.right, precOf(b.right) <= precAdd)
	}
	return b.left.LaTeX() + " + " + b.right.LaTeX()
}

func (b *Binary) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "binary", "op": string(b.op), "left": b.left.toJSON(), "right": b.right.toJSON()}
}

func latexParen(e Expr, wrap bool) string {
	if wrap {
		return "\\left(" + e.LaTeX() + "\\right)"
	}
	return e.LaTeX()
}

// ============================================================
// Pow: base ** exp
// ============================================================

type Pow struct{ base, exp Expr }

func (p *Pow) Eval(x float64) (float64, error) {
	b, err := p.base.Eval(x)
	if err != nil {
		return 0, err
	}
	e, err := p.exp.Eval(x)
	if err != nil {
		return 0, err
	}
	if b == 0 && e < 0 {
		return 0, domainError("zero raised to a negative power")
	}
	if b < 0 && e != math.Trunc(e) {
		return 0, domainError("negative base %g raised to non-integer power %g", b, e)
	}
	return finite(math.Pow(b, e), "power")
}

func (p *Pow) Equal(other Expr) bool {
	o, ok := other.(*Pow)
	return ok && p.base.Equal(o.base) && p.exp.Equal(o.exp)
}

func (p *Pow) exprType() string { return "pow" }
func (p *Pow) Base() Expr       { return p.base }
func (p *Pow) ExpExpr() Expr    { return p.exp }

func (p *Pow) String() string {
	// Right associative: the base needs parens at equal precedence, the exponent does not.
	return paren(p.base, precOf(p.base) <= precPow) + "**" + paren(p.exp, precOf(p.exp) < precPow)
}

func (p *Pow) LaTeX() string {
	return latexParen(p.base, precOf(p.base) <= precPow) + "^{" + p.exp.LaTeX() + "}"
}

func (p *Pow) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "pow", "base": p.base.toJSON(), "exp": p.exp.toJSON()}
}

// ============================================================
// Call: whitelisted function applications
// ============================================================

type Call struct {
	name string
	arg  Expr
}

func (c *Call) Eval(x float64) (float64, error) {
	v, err := c.arg.Eval(x)
	if err != nil {
		return 0, err
	}
	fn, ok := functions[c.name]
	if !ok {
		return 0, &EvalError{Kind: ErrDisallowedReference, Pos: -1, Msg: "unknown function " + c.name}
	}
	out, err := fn(v)
	if err != nil {
		return 0, err
	}
	return finite(out, c.name+"("+strconv.FormatFloat(v, 'g', -1, 64)+")")
}

func (c *Call) Equal(other Expr) bool {
	o, ok := other.(*Call)
	return ok && c.name == o.name && c.arg.Equal(o.arg)
}

func (c *Call) exprType() string { return "call" }
func (c *Call) FuncName() string { return c.name }
func (c *Call) Arg() Expr        { return c.arg }
func (c *Call) String() string   { return c.name + "(" + c.arg.String() + ")" }

func (c *Call) LaTeX() string {
	switch c.name {
	case "sin", "cos", "tan", "exp", "ln", "sinh", "cosh", "tanh", "log":
		return "\\" + c.name + "\\left(" + c.arg.LaTeX() + "\\right)"
	case "log10":
		return "\\log_{10}\\left(" + c.arg.LaTeX() + "\\right)"
	case "log2":
		return "\\log_{2}\\left(" + c.arg.LaTeX() + "\\right)"
	case "sqrt":
		return "\\sqrt{" + c.arg.LaTeX() + "}"
	case "asin":
		return "\\arcsin\\left(" + c.arg.LaTeX() + "\\right)"
	case "acos":
		return "\\arccos\\left(" + c.arg.LaTeX() + "\\right)"
	case "atan":
		return "\\arctan\\left(" + c.arg.LaTeX() + "\\right)"
	case "abs":
		return "\\left|" + c.arg.LaTeX() + "\\right|"
	case "floor":
		return "\\lfloor " + c.arg.LaTeX() + " \\rfloor"
	case "ceil":
		return "\\lceil " + c.arg.LaTeX() + " \\rceil"
	}
	return "\\operatorname{" + c.name + "}\\left(" + c.arg.LaTeX() + "\\right)"
}

func (c *Call) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "call", "name": c.name, "arg": c.arg.toJSON()}
}

// ============================================================
// Public helpers
// ============================================================

func String(e Expr) string { return e.String() }
func LaTeX(e Expr) string  { return e.LaTeX() }

// DependsOnX reports whether x occurs anywhere in e.
func DependsOnX(e Expr) bool {
	switch n := e.(type) {
	case *Var:
		return true
	case *Neg:
		return DependsOnX(n.arg)
	case *Binary:
		return DependsOnX(n.left) || DependsOnX(n.right)
	case *Pow:
		return DependsOnX(n.base) || DependsOnX(n.exp)
	case *Call:
		return DependsOnX(n.arg)
	}
	return false
}
