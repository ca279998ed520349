package rules

import (
	"fmt"
	"strings"

	"github.com/nerrad567/bosun-core/internal/patch"
)

// Compare operators.
const (
	OpEqual            = "eq"
	OpNotEqual         = "ne"
	OpLessThan         = "lt"
	OpLessThanEqual    = "lte"
	OpGreaterThan      = "gt"
	OpGreaterThanEqual = "gte"
)

var validOps = map[string]struct{}{
	OpEqual: {}, OpNotEqual: {}, OpLessThan: {}, OpLessThanEqual: {}, OpGreaterThan: {}, OpGreaterThanEqual: {},
}

const envPrefix = "env."

// Compare tests a field against a literal Value or against the field named
// by ValueFrom.
//
// A missing field makes the comparison false, or an error when Required is
// set.
type Compare struct {
	Field     string
	Op        string
	Value     any
	ValueFrom string
	Required  bool
}

// Eval implements Predicate.
func (c Compare) Eval(state *patch.Object, env Env) (bool, error) {
	left, ok := Resolve(state, env, c.Field)
	if !ok {
		if c.Required {
			return false, fmt.Errorf("%w: %s", ErrFieldNotFound, c.Field)
		}
		return false, nil
	}

	right := c.Value
	if c.ValueFrom != "" {
		right, ok = Resolve(state, env, c.ValueFrom)
		if !ok {
			if c.Required {
				return false, fmt.Errorf("%w: %s", ErrFieldNotFound, c.ValueFrom)
			}
			return false, nil
		}
	}

	switch c.Op {
	case OpEqual:
		return patch.Equal(left, right), nil
	case OpNotEqual:
		return !patch.Equal(left, right), nil
	case OpLessThan, OpLessThanEqual, OpGreaterThan, OpGreaterThanEqual:
		cmp, err := order(left, right)
		if err != nil {
			return false, fmt.Errorf("%s %s: %w", c.Field, c.Op, err)
		}
		switch c.Op {
		case OpLessThan:
			return cmp < 0, nil
		case OpLessThanEqual:
			return cmp <= 0, nil
		case OpGreaterThan:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, c.Op)
	}
}

// Exists holds when the field resolves, even to null.
type Exists struct {
	Field string
}

// Eval implements Predicate.
func (e Exists) Eval(state *patch.Object, env Env) (bool, error) {
	_, ok := Resolve(state, env, e.Field)
	return ok, nil
}

// All holds when every predicate holds. An empty All holds.
type All []Predicate

// Eval implements Predicate.
func (a All) Eval(state *patch.Object, env Env) (bool, error) {
	for _, p := range a {
		ok, err := p.Eval(state, env)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Any holds when at least one predicate holds. An empty Any does not.
type Any []Predicate

// Eval implements Predicate.
func (a Any) Eval(state *patch.Object, env Env) (bool, error) {
	for _, p := range a {
		ok, err := p.Eval(state, env)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Not negates a predicate. Errors pass through.
type Not struct {
	P Predicate
}

// Eval implements Predicate.
func (n Not) Eval(state *patch.Object, env Env) (bool, error) {
	ok, err := n.P.Eval(state, env)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Custom calls a named function with fixed arguments.
type Custom struct {
	Name string
	Fn   Func
	Args map[string]any
}

// Eval implements Predicate.
func (c Custom) Eval(state *patch.Object, env Env) (bool, error) {
	if c.Fn == nil {
		return false, fmt.Errorf("%w: %q", ErrUnknownFunction, c.Name)
	}
	return c.Fn(state, env, c.Args)
}

// Resolve looks up a dot-separated path in the snapshot, or in env when the
// path starts with "env.".
func Resolve(state *patch.Object, env Env, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	if strings.HasPrefix(path, envPrefix) {
		var cur any = map[string]any(env)
		for _, seg := range strings.Split(strings.TrimPrefix(path, envPrefix), ".") {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			if cur, ok = m[seg]; !ok {
				return nil, false
			}
		}
		return cur, true
	}
	return state.Lookup(strings.Split(path, ".")...)
}

// order compares two numbers or two strings.
func order(a, b any) (int, error) {
	if af, ok := patch.ToFloat(a); ok {
		bf, ok := patch.ToFloat(b)
		if !ok {
			return 0, fmt.Errorf("%w: %T vs %T", ErrTypeMismatch, a, b)
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("%w: %T vs %T", ErrTypeMismatch, a, b)
		}
		return strings.Compare(as, bs), nil
	}
	return 0, fmt.Errorf("%w: cannot order %T", ErrTypeMismatch, a)
}
