package rules

import (
	"fmt"

	"github.com/nerrad567/bosun-core/internal/patch"
)

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Engine evaluates a fixed rule set. It is safe for concurrent use.
type Engine struct {
	rules  []Rule
	logger Logger
}

// NewEngine creates an engine over a copy of rules.
func NewEngine(rules []Rule) *Engine {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Engine{rules: cp, logger: noopLogger{}}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// Len returns the number of rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Names returns rule names in declaration order.
func (e *Engine) Names() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// Evaluate returns the actions of every rule whose predicate holds, in
// declaration order. Failing rules are logged and skipped.
func (e *Engine) Evaluate(state *patch.Object, env Env) []Action {
	actions, _ := e.EvaluateDetailed(state, env)
	return actions
}

// EvaluateDetailed is Evaluate that also returns the failures, in
// declaration order.
func (e *Engine) EvaluateDetailed(state *patch.Object, env Env) ([]Action, []*EvaluationError) {
	actions := []Action{}
	var failures []*EvaluationError

	for _, r := range e.rules {
		ok, err := evalRule(r, state, env)
		if err != nil {
			evalErr := &EvaluationError{Rule: r.Name, Err: err}
			failures = append(failures, evalErr)
			e.logger.Warn("rule evaluation failed", "rule", r.Name, "error", err)
			continue
		}
		if !ok {
			continue
		}
		a := r.Action.clone()
		a.Rule = r.Name
		actions = append(actions, a)
		e.logger.Debug("rule matched", "rule", r.Name, "action", a.Type, "target", a.Target)
	}
	return actions, failures
}

// evalRule runs one predicate, converting a panic into ErrPredicatePanic.
func evalRule(r Rule, state *patch.Object, env Env) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			err = fmt.Errorf("%w: %v", ErrPredicatePanic, rec)
		}
	}()
	if r.When == nil {
		return false, fmt.Errorf("%w: no predicate", ErrInvalidRule)
	}
	return r.When.Eval(state, env)
}
