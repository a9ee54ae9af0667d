package eval

import (
	"errors"
	"fmt"
)

// EvaluationError captures the engine and source alongside the failure.
type EvaluationError struct {
	Engine string
	Expr   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("eval: %s evaluator %s: %v", e.Engine, describeExpression(e.Expr), e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluationError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Err:    err,
	}
}

// IsEvaluationError returns true if err is or wraps an EvaluationError.
func IsEvaluationError(err error) bool {
	var evalErr *EvaluationError
	return errors.As(err, &evalErr)
}

var errEmptyExpression = errors.New("expression must not be empty")
