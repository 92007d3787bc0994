package scope

import (
	"errors"
	"fmt"
)

// ErrScopeNotFound reports a write addressed to a scope name that is not on
// the chain.
var ErrScopeNotFound = errors.New("scope: named scope not found")

// EvalError describes an expression that failed to compile or evaluate.
type EvalError struct {
	Expression string
	Scope      string
	Err        error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("scope: evaluate %q in %q: %v", e.Expression, e.Scope, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }
