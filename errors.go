package gonewton

import (
	"errors"
	"fmt"
)

// ============================================================
// Error taxonomy
// ============================================================

var (
	ErrExpressionSyntax         = errors.New("expression syntax error")
	ErrDisallowedReference      = errors.New("disallowed reference")
	ErrMathDomain               = errors.New("math domain error")
	ErrZeroDerivative           = errors.New("zero derivative encountered")
	ErrIterationBudgetExhausted = errors.New("iteration budget exhausted")
	ErrInvalidParams            = errors.New("invalid parameters")
	ErrSessionNotFound          = errors.New("session not found")
)

// EvalError reports why an expression could not be parsed or evaluated.
// Kind is one of ErrExpressionSyntax, ErrDisallowedReference or ErrMathDomain.
type EvalError struct {
	Kind error
	Expr string
	Pos  int // byte offset for syntax errors, -1 otherwise
	Msg  string
}

func (e *EvalError) Error() string {
	var where string
	if e.Pos >= 0 {
		where = fmt.Sprintf(" at offset %d", e.Pos)
	}
	if e.Expr == "" {
		return fmt.Sprintf("%v%s: %s", e.Kind, where, e.Msg)
	}
	return fmt.Sprintf("%v in %q%s: %s", e.Kind, e.Expr, where, e.Msg)
}

func (e *EvalError) Unwrap() error { return e.Kind }

func syntaxError(pos int, format string, args ...interface{}) *EvalError {
	return &EvalError{Kind: ErrExpressionSyntax, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func domainError(format string, args ...interface{}) *EvalError {
	return &EvalError{Kind: ErrMathDomain, Pos: -1, Msg: fmt.Sprintf(format, args...)}
}

func disallowed(pos int, name string) *EvalError {
	return &EvalError{Kind: ErrDisallowedReference, Pos: pos, Msg: fmt.Sprintf("name %q is not allowed", name)}
}

// withExpr attaches the source text to an EvalError that does not carry one yet.
func withExpr(err error, text string) error {
	var ee *EvalError
	if errors.As(err, &ee) && ee.Expr == "" {
		cp := *ee
		cp.Expr = text
		return &cp
	}
	return err
}
