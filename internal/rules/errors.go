package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrEvaluationFailure marks every error produced while evaluating a rule.
	ErrEvaluationFailure = errors.New("rules: evaluation failed")

	// ErrFieldNotFound is returned when a required field is missing.
	ErrFieldNotFound = errors.New("rules: field not found")

	// ErrTypeMismatch is returned when an ordering operator gets values it
	// cannot compare.
	ErrTypeMismatch = errors.New("rules: type mismatch")

	// ErrUnknownOperator is returned for an unsupported compare operator.
	ErrUnknownOperator = errors.New("rules: unknown operator")

	// ErrUnknownFunction is returned when a custom predicate names a function
	// that is not registered.
	ErrUnknownFunction = errors.New("rules: unknown function")

	// ErrPredicatePanic is returned when a predicate panics.
	ErrPredicatePanic = errors.New("rules: predicate panicked")

	// ErrInvalidRule is returned when a rule set fails validation.
	ErrInvalidRule = errors.New("rules: invalid rule")
)

// EvaluationError reports the failure of one rule.
type EvaluationError struct {
	Rule string
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("rule %q: %v", e.Rule, e.Err)
}

// Unwrap matches both ErrEvaluationFailure and the cause.
func (e *EvaluationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrEvaluationFailure}
	}
	return []error{ErrEvaluationFailure, e.Err}
}
