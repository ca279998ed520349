package rules

import "github.com/nerrad567/bosun-core/internal/patch"

// Env is static context available to predicates under the "env." prefix,
// such as thresholds from configuration.
type Env map[string]any

// Action is the opaque descriptor a matching rule hands to the action sinks.
type Action struct {
	Rule    string         `yaml:"-" json:"rule"`
	Type    string         `yaml:"type" json:"type"`
	Target  string         `yaml:"target,omitempty" json:"target,omitempty"`
	Payload map[string]any `yaml:"payload,omitempty" json:"payload,omitempty"`
}

// Well-known action types understood by the bundled sinks.
const (
	ActionNotify  = "notify"
	ActionRecord  = "record"
	ActionLog     = "log"
	ActionPublish = "publish"
)

// Rule pairs a predicate with the action to emit when it holds.
type Rule struct {
	Name   string
	When   Predicate
	Action Action
}

// Predicate is a side-effect-free condition over the snapshot.
type Predicate interface {
	Eval(state *patch.Object, env Env) (bool, error)
}

// Func is the signature of a custom predicate.
type Func func(state *patch.Object, env Env, args map[string]any) (bool, error)

// Functions is the table of custom predicates a rule set may reference.
type Functions map[string]Func

func (a Action) clone() Action {
	a.Payload = clonePayload(a.Payload)
	return a
}

func clonePayload(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			out[k] = clonePayload(val)
		case []any:
			s := make([]any, len(val))
			copy(s, val)
			out[k] = s
		default:
			out[k] = v
		}
	}
	return out
}
