package gonewton

import (
	"fmt"
	"math"
)

// ============================================================
// Folding constructors
// ============================================================

func isNum(e Expr, v float64) bool {
	n, ok := e.(*Num)
	return ok && n.val == v
}

func numPair(a, b Expr) (float64, float64, bool) {
	na, ok := a.(*Num)
	if !ok {
		return 0, 0, false
	}
	nb, ok := b.(*Num)
	if !ok {
		return 0, 0, false
	}
	return na.val, nb.val, true
}

// fold keeps a numeric result only when it stays finite.
func fold(v float64, fallback Expr) Expr {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return N(v)
}

func NegOf(a Expr) Expr {
	switch n := a.(type) {
	case *Num:
		return N(-n.val)
	case *Neg:
		return n.arg
	}
	return &Neg{arg: a}
}

func AddOf(a, b Expr) Expr {
	if x, y, ok := numPair(a, b); ok {
		return fold(x+y, &Binary{op: '+', left: a, right: b})
	}
	if isNum(a, 0) {
		return b
	}
	if isNum(b, 0) {
		return a
	}
	if n, ok := b.(*Neg); ok {
		return SubOf(a, n.arg)
	}
	if n, ok := b.(*Num); ok && n.val < 0 {
		return SubOf(a, N(-n.val))
	}
	return &Binary{op: '+', left: a, right: b}
}

func SubOf(a, b Expr) Expr {
	if x, y, ok := numPair(a, b); ok {
		return fold(x-y, &Binary{op: '-', left: a, right: b})
	}
	if isNum(b, 0) {
		return a
	}
	if isNum(a, 0) {
		return NegOf(b)
	}
	if a.Equal(b) {
		return N(0)
	}
	if n, ok := b.(*Neg); ok {
		return AddOf(a, n.arg)
	}
	return &Binary{op: '-', left: a, right: b}
}

func MulOf(a, b Expr) Expr {
	if x, y, ok := numPair(a, b); ok {
		return fold(x*y, &Binary{op: '*', left: a, right: b})
	}
	switch {
	case isNum(a, 0) || isNum(b, 0):
		return N(0)
	case isNum(a, 1):
		return b
	case isNum(b, 1):
		return a
	case isNum(a, -1):
		return NegOf(b)
	case isNum(b, -1):
		return NegOf(a)
	}
	// Keep numeric coefficients in front: x*2 -> 2*x.
	if _, ok := b.(*Num); ok {
		if _, ok := a.(*Num); !ok {
			a, b = b, a
		}
	}
	if na, ok := a.(*Neg); ok {
		return NegOf(MulOf(na.arg, b))
	}
	if nb, ok := b.(*Neg); ok {
		return NegOf(MulOf(a, nb.arg))
	}
	return &Binary{op: '*', left: a, right: b}
}

func DivOf(a, b Expr) Expr {
	if x, y, ok := numPair(a, b); ok && y != 0 {
		return fold(x/y, &Binary{op: '/', left: a, right: b})
	}
	switch {
	case isNum(a, 0):
		return N(0)
	case isNum(b, 1):
		return a
	case isNum(b, -1):
		return NegOf(a)
	}
	return &Binary{op: '/', left: a, right: b}
}

func PowOf(base, exp Expr) Expr {
	if x, y, ok := numPair(base, exp); ok && !(x == 0 && y < 0) && !(x < 0 && y != math.Trunc(y)) {
		return fold(math.Pow(x, y), &Pow{base: base, exp: exp})
	}
	switch {
	case isNum(exp, 0):
		return N(1)
	case isNum(exp, 1):
		return base
	case isNum(base, 1):
		return N(1)
	}
	return &Pow{base: base, exp: exp}
}

// CallOf applies a whitelisted function; it panics on names outside the
// allow-list since only the parser and Diff construct calls.
func CallOf(name string, arg Expr) Expr {
	name = canonicalName(name)
	if _, ok := functions[name]; !ok {
		panic(fmt.Sprintf("gonewton: function %q is not whitelisted", name))
	}
	return &Call{name: name, arg: arg}
}

// ============================================================
// Derivatives
// ============================================================

func (b *Binary) Diff() Expr {
	du, dv := b.left.Diff(), b.right.Diff()
	switch b.op {
	case '+':
		return AddOf(du, dv)
	case '-':
		return SubOf(du, dv)
	case '*':
		return AddOf(MulOf(du, b.right), MulOf(b.left, dv))
	case '/':
		if !DependsOnX(b.right) {
			return DivOf(du, b.right)
		}
		return DivOf(SubOf(MulOf(du, b.right), MulOf(b.left, dv)), PowOf(b.right, N(2)))
	case '%':
		// d(u mod v) = u' - v'*floor(u/v), valid away from the jumps.
		if !DependsOnX(b.right) {
			return du
		}
		return SubOf(du, MulOf(dv, CallOf("floor", DivOf(b.left, b.right))))
	}
	return N(0)
}

func (p *Pow) Diff() Expr {
	du, dv := p.base.Diff(), p.exp.Diff()
	switch {
	case !DependsOnX(p.exp):
		// Power rule: n*u^(n-1)*u'
		return MulOf(MulOf(p.exp, PowOf(p.base, SubOf(p.exp, N(1)))), du)
	case !DependsOnX(p.base):
		// a^v * ln(a) * v'
		return MulOf(MulOf(p, CallOf("ln", p.base)), dv)
	}
	// u^v * (v'*ln(u) + v*u'/u)
	return MulOf(p, AddOf(MulOf(dv, CallOf("ln", p.base)), DivOf(MulOf(p.exp, du), p.base)))
}

func (c *Call) Diff() Expr {
	u := c.arg
	du := u.Diff()
	if isNum(du, 0) {
		return N(0)
	}
	var outer Expr
	switch c.name {
	case "sin":
		outer = CallOf("cos", u)
	case "cos":
		outer = NegOf(CallOf("sin", u))
	case "tan":
		outer = AddOf(N(1), PowOf(CallOf("tan", u), N(2)))
	case "asin":
		outer = PowOf(SubOf(N(1), PowOf(u, N(2))), N(-0.5))
	case "acos":
		outer = NegOf(PowOf(SubOf(N(1), PowOf(u, N(2))), N(-0.5)))
	case "atan":
		outer = DivOf(N(1), AddOf(N(1), PowOf(u, N(2))))
	case "sinh":
		outer = CallOf("cosh", u)
	case "cosh":
		outer = CallOf("sinh", u)
	case "tanh":
		outer = SubOf(N(1), PowOf(CallOf("tanh", u), N(2)))
	case "exp":
		outer = c
	case "log", "ln":
		outer = DivOf(N(1), u)
	case "log10":
		outer = DivOf(N(1), MulOf(u, CallOf("ln", N(10))))
	case "log2":
		outer = DivOf(N(1), MulOf(u, CallOf("ln", N(2))))
	case "sqrt":
		outer = DivOf(N(1), MulOf(N(2), c))
	case "abs":
		outer = CallOf("sign", u)
	default:
		// floor, ceil and sign are piecewise constant.
		return N(0)
	}
	return MulOf(outer, du)
}

// Diff returns d/dx of e.
func Diff(e Expr) Expr { return e.Diff() }

// Derive parses text and returns the text of its derivative.
func Derive(text string) (string, error) {
	e, err := Parse(text)
	if err != nil {
		return "", err
	}
	return Diff(e).String(), nil
}
