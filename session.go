package gonewton

import (
	"errors"
	"fmt"
	"math"
)

// ============================================================
// Parameters
// ============================================================

const (
	DefaultFunction      = "x**2 - 2"
	DefaultDerivative    = "2*x"
	DefaultX0            = -1.5
	DefaultTolerance     = 1e-6
	DefaultMaxIterations = 20
)

// Params are the user-adjustable inputs of one Newton action.
// An empty Derivative means "derive it from Function".
type Params struct {
	Function      string  `json:"f" yaml:"function"`
	Derivative    string  `json:"df,omitempty" yaml:"derivative"`
	X0            float64 `json:"x0" yaml:"x0"`
	Tolerance     float64 `json:"tol" yaml:"tolerance"`
	MaxIterations int     `json:"max_iter" yaml:"max_iterations"`
}

func DefaultParams() Params {
	return Params{
		Function:      DefaultFunction,
		Derivative:    DefaultDerivative,
		X0:            DefaultX0,
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
	}
}

func (p Params) Validate() error {
	switch {
	case p.Function == "":
		return fmt.Errorf("%w: function is empty", ErrInvalidParams)
	case math.IsNaN(p.X0) || math.IsInf(p.X0, 0):
		return fmt.Errorf("%w: initial guess must be finite", ErrInvalidParams)
	case !(p.Tolerance > 0) || math.IsInf(p.Tolerance, 0):
		return fmt.Errorf("%w: tolerance must be a positive number, got %g", ErrInvalidParams, p.Tolerance)
	case p.MaxIterations <= 0:
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidParams, p.MaxIterations)
	}
	return nil
}

// ============================================================
// Step results
// ============================================================

type StepKind int

const (
	StepRejected StepKind = iota
	StepStepped
	StepConverged
)

func (k StepKind) String() string {
	switch k {
	case StepStepped:
		return "stepped"
	case StepConverged:
		return "converged"
	}
	return "rejected"
}

func (k StepKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// StepResult is one of Stepped(x, fx), Converged(x, fx, n) or Rejected(err).
type StepResult struct {
	Kind       StepKind
	X          float64
	FX         float64
	Iterations int
	Err        error
}

func Stepped(x, fx float64, n int) StepResult {
	return StepResult{Kind: StepStepped, X: x, FX: fx, Iterations: n}
}

func Converged(x, fx float64, n int) StepResult {
	return StepResult{Kind: StepConverged, X: x, FX: fx, Iterations: n}
}

func Rejected(err error) StepResult { return StepResult{Kind: StepRejected, Err: err} }

func (r StepResult) OK() bool { return r.Kind != StepRejected }

// Message is the text shown to the user for this result.
func (r StepResult) Message() string {
	switch r.Kind {
	case StepConverged:
		return fmt.Sprintf("Converged to root ≈ %.3f in %d iterations.", r.X, r.Iterations)
	case StepStepped:
		return fmt.Sprintf("Step %d: x = %.6f, f(x) = %.6g", r.Iterations, r.X, r.FX)
	}
	switch {
	case errors.Is(r.Err, ErrZeroDerivative):
		return "Zero derivative encountered. Cannot proceed."
	case errors.Is(r.Err, ErrIterationBudgetExhausted):
		return "Maximum number of iterations reached."
	case r.Err != nil:
		return "Error evaluating expression: " + r.Err.Error()
	}
	return "rejected"
}

// ============================================================
// Session
// ============================================================

// Point is one visited (x, f(x)) pair.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Session holds one user's root-finding trajectory. It is owned by exactly
// one caller at a time; stores serialize access per ID.
//
// Invariant: History is empty, or len(History) == Iterations+1.
// Function and Derivative are the texts of the last accepted step, so the
// trajectory can be redrawn against the curve it was computed on.
type Session struct {
	ID         string  `json:"id"`
	Iterations int     `json:"iterations"`
	History    []Point `json:"history"`
	Function   string  `json:"f,omitempty"`
	Derivative string  `json:"df,omitempty"`
}

func NewSession(id string) *Session { return &Session{ID: id} }

// Advance performs one Newton step. A rejected step leaves s untouched.
func (s *Session) Advance(p Params) StepResult {
	if err := p.Validate(); err != nil {
		return Rejected(err)
	}
	if s.Iterations >= p.MaxIterations {
		return Rejected(fmt.Errorf("%w: %d of %d iterations used", ErrIterationBudgetExhausted, s.Iterations, p.MaxIterations))
	}

	f, err := Compile(p.Function)
	if err != nil {
		return Rejected(err)
	}
	df, err := CompileDerivative(f, p.Derivative)
	if err != nil {
		return Rejected(err)
	}

	// The seed is committed together with the first successful step only.
	var seed []Point
	cur, ok := s.Last()
	if !ok {
		fx0, err := f.Eval(p.X0)
		if err != nil {
			return Rejected(err)
		}
		cur = Point{X: p.X0, Y: fx0}
		seed = []Point{cur}
	}

	next, err := newtonStep(f, df, cur.X)
	if err != nil {
		return Rejected(err)
	}

	s.History = append(s.History, seed...)
	s.History = append(s.History, next)
	s.Iterations++
	s.Function, s.Derivative = p.Function, p.Derivative

	if math.Abs(next.Y) < p.Tolerance {
		return Converged(next.X, next.Y, s.Iterations)
	}
	return Stepped(next.X, next.Y, s.Iterations)
}

// newtonStep computes x1 = x0 - f(x0)/f'(x0) and f(x1).
func newtonStep(f, df *Evaluator, x0 float64) (Point, error) {
	d, err := df.Eval(x0)
	if err != nil {
		return Point{}, err
	}
	if d == 0 {
		return Point{}, fmt.Errorf("%w at x = %g", ErrZeroDerivative, x0)
	}
	fx0, err := f.Eval(x0)
	if err != nil {
		return Point{}, err
	}
	x1 := x0 - fx0/d
	if math.IsNaN(x1) || math.IsInf(x1, 0) {
		return Point{}, withExpr(domainError("next iterate is not finite"), f.Text())
	}
	fx1, err := f.Eval(x1)
	if err != nil {
		return Point{}, err
	}
	return Point{X: x1, Y: fx1}, nil
}

// Reset clears the trajectory. It cannot fail and is idempotent.
func (s *Session) Reset() {
	s.Iterations = 0
	s.History = nil
	s.Function, s.Derivative = "", ""
}

// Last returns the most recent point, if any.
func (s *Session) Last() (Point, bool) {
	if len(s.History) == 0 {
		return Point{}, false
	}
	return s.History[len(s.History)-1], true
}

func (s *Session) Clone() *Session {
	cp := &Session{ID: s.ID, Iterations: s.Iterations, Function: s.Function, Derivative: s.Derivative}
	if s.History != nil {
		cp.History = append([]Point(nil), s.History...)
	}
	return cp
}

// Valid reports whether the history-length invariant holds.
func (s *Session) Valid() bool {
	if len(s.History) == 0 {
		return s.Iterations == 0
	}
	return len(s.History) == s.Iterations+1
}
