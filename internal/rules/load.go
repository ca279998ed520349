package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ruleFile is the YAML document layout:
//
//	rules:
//	  - name: house-bank-low
//	    when:
//	      compare: {field: devices.AA:BB:CC:DD:EE:FF.metrics.soc, op: lt, value_from: env.critical_soc}
//	    action: {type: notify, target: crew, payload: {message: "House bank low"}}
type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Name   string        `yaml:"name"`
	When   predicateSpec `yaml:"when"`
	Action Action        `yaml:"action"`
}

// predicateSpec sets exactly one variant.
type predicateSpec struct {
	Compare *compareSpec    `yaml:"compare"`
	Exists  string          `yaml:"exists"`
	All     []predicateSpec `yaml:"all"`
	Any     []predicateSpec `yaml:"any"`
	Not     *predicateSpec  `yaml:"not"`
	Custom  *customSpec     `yaml:"custom"`
}

type compareSpec struct {
	Field     string `yaml:"field"`
	Op        string `yaml:"op"`
	Value     any    `yaml:"value"`
	ValueFrom string `yaml:"value_from"`
	Required  bool   `yaml:"required"`
}

type customSpec struct {
	Func string         `yaml:"func"`
	Args map[string]any `yaml:"args"`
}

// LoadFile reads and parses a rule file.
func LoadFile(path string, funcs Functions) ([]Rule, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	return Load(data, funcs)
}

// Load parses a YAML rule set. Every problem is reported, joined into one
// error wrapping ErrInvalidRule.
func Load(data []byte, funcs Functions) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}

	var errs []error
	seen := make(map[string]struct{}, len(f.Rules))
	rules := make([]Rule, 0, len(f.Rules))
	for i, spec := range f.Rules {
		where := fmt.Sprintf("rules[%d]", i)
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%w: %s: name is required", ErrInvalidRule, where))
		} else {
			where = fmt.Sprintf("rule %q", name)
			if _, dup := seen[name]; dup {
				errs = append(errs, fmt.Errorf("%w: %s: duplicate name", ErrInvalidRule, where))
			}
			seen[name] = struct{}{}
		}
		if strings.TrimSpace(spec.Action.Type) == "" {
			errs = append(errs, fmt.Errorf("%w: %s: action.type is required", ErrInvalidRule, where))
		}

		pred, err := spec.When.build(funcs, where+".when")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rules = append(rules, Rule{Name: name, When: pred, Action: spec.Action})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rules, nil
}

func (p predicateSpec) build(funcs Functions, where string) (Predicate, error) {
	set := 0
	if p.Compare != nil {
		set++
	}
	if p.Exists != "" {
		set++
	}
	if p.All != nil {
		set++
	}
	if p.Any != nil {
		set++
	}
	if p.Not != nil {
		set++
	}
	if p.Custom != nil {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: %s: exactly one of compare, exists, all, any, not, custom is required (got %d)",
			ErrInvalidRule, where, set)
	}

	switch {
	case p.Compare != nil:
		c := p.Compare
		if c.Field == "" {
			return nil, fmt.Errorf("%w: %s.compare: field is required", ErrInvalidRule, where)
		}
		if _, ok := validOps[c.Op]; !ok {
			return nil, fmt.Errorf("%w: %s.compare: %w %q", ErrInvalidRule, where, ErrUnknownOperator, c.Op)
		}
		if c.Value != nil && c.ValueFrom != "" {
			return nil, fmt.Errorf("%w: %s.compare: value and value_from are exclusive", ErrInvalidRule, where)
		}
		if c.Value == nil && c.ValueFrom == "" && isOrdering(c.Op) {
			return nil, fmt.Errorf("%w: %s.compare: %s needs value or value_from", ErrInvalidRule, where, c.Op)
		}
		return Compare{Field: c.Field, Op: c.Op, Value: c.Value, ValueFrom: c.ValueFrom, Required: c.Required}, nil

	case p.Exists != "":
		return Exists{Field: p.Exists}, nil

	case p.All != nil:
		preds, err := buildList(p.All, funcs, where+".all")
		if err != nil {
			return nil, err
		}
		return All(preds), nil

	case p.Any != nil:
		preds, err := buildList(p.Any, funcs, where+".any")
		if err != nil {
			return nil, err
		}
		return Any(preds), nil

	case p.Not != nil:
		inner, err := p.Not.build(funcs, where+".not")
		if err != nil {
			return nil, err
		}
		return Not{P: inner}, nil

	default:
		fn, ok := funcs[p.Custom.Func]
		if !ok {
			return nil, fmt.Errorf("%w: %s.custom: %w %q", ErrInvalidRule, where, ErrUnknownFunction, p.Custom.Func)
		}
		return Custom{Name: p.Custom.Func, Fn: fn, Args: p.Custom.Args}, nil
	}
}

func buildList(specs []predicateSpec, funcs Functions, where string) ([]Predicate, error) {
	preds := make([]Predicate, 0, len(specs))
	for i, s := range specs {
		p, err := s.build(funcs, fmt.Sprintf("%s[%d]", where, i))
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func isOrdering(op string) bool {
	switch op {
	case OpLessThan, OpLessThanEqual, OpGreaterThan, OpGreaterThanEqual:
		return true
	}
	return false
}
