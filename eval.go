package gonewton

// ============================================================
// Evaluator: parse once, evaluate many times
// ============================================================

// Evaluator is a compiled expression bound to its source text.
type Evaluator struct {
	text string
	root Expr
}

// Compile parses text into an Evaluator.
func Compile(text string) (*Evaluator, error) {
	root, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return &Evaluator{text: text, root: root}, nil
}

// CompileDerivative compiles the derivative text, or derives it from fn when
// text is empty.
func CompileDerivative(fn *Evaluator, text string) (*Evaluator, error) {
	if text != "" {
		return Compile(text)
	}
	d := Diff(fn.root)
	return &Evaluator{text: d.String(), root: d}, nil
}

// Eval evaluates the expression at x. Errors are *EvalError values carrying
// the source text.
func (e *Evaluator) Eval(x float64) (float64, error) {
	v, err := e.root.Eval(x)
	if err != nil {
		return 0, withExpr(err, e.text)
	}
	return v, nil
}

func (e *Evaluator) Expr() Expr     { return e.root }
func (e *Evaluator) Text() string   { return e.text }
func (e *Evaluator) String() string { return e.root.String() }
func (e *Evaluator) LaTeX() string  { return e.root.LaTeX() }

// Evaluate parses text and evaluates it at x. The result is always finite.
func Evaluate(text string, x float64) (float64, error) {
	ev, err := Compile(text)
	if err != nil {
		return 0, err
	}
	return ev.Eval(x)
}
