package script

import (
	"errors"
	"fmt"
	"time"
)

// ErrBudgetExceeded is the cause of a BudgetError raised by the per-call
// time budget.
var ErrBudgetExceeded = errors.New("script: evaluation budget exceeded")

// EvaluationError reports a fault raised while running a fragment: a syntax
// error, a thrown exception or an unresolvable import. The interpreter's own
// error is reachable through errors.As.
type EvaluationError struct {
	// Fragment is "expression" or "program".
	Fragment string
	// Source is the fragment text.
	Source string
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("script: evaluating %s %s: %v", e.Fragment, snippet(e.Source), e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// BudgetError reports a fragment that was interrupted, either because it ran
// past the configured budget or because the caller interrupted the context.
type BudgetError struct {
	Fragment string
	Budget   time.Duration
	// Cause is ErrBudgetExceeded or the value passed to Interrupt.
	Cause error
}

func (e *BudgetError) Error() string {
	if errors.Is(e.Cause, ErrBudgetExceeded) {
		return fmt.Sprintf("script: %s exceeded its %s budget", e.Fragment, e.Budget)
	}
	return fmt.Sprintf("script: %s interrupted: %v", e.Fragment, e.Cause)
}

func (e *BudgetError) Unwrap() error { return e.Cause }

func snippet(src string) string {
	const limit = 40
	r := []rune(src)
	if len(r) > limit {
		return fmt.Sprintf("%q…", string(r[:limit]))
	}
	return fmt.Sprintf("%q", src)
}
