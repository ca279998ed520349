package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/bosun-core/internal/patch"
)

const sampleRules = `
rules:
  - name: house-bank-low
    when:
      compare:
        field: devices.AA:BB:CC:DD:EE:FF.metrics.soc
        op: lt
        value_from: env.critical_soc
    action:
      type: notify
      target: crew
      payload:
        message: House bank below critical charge
  - name: anchor-dragging
    when:
      any:
        - compare: {field: anchor.dragging, op: eq, value: true}
        - custom: {func: anchor_drift, args: {ratio: 1.2}}
    action: {type: notify, target: crew}
  - name: anchor-up
    when:
      not:
        exists: anchor.deployed
    action: {type: record}
`

func TestLoad(t *testing.T) {
	rules, err := Load([]byte(sampleRules), BuiltinFunctions())
	require.NoError(t, err)
	require.Len(t, rules, 3)

	assert.Equal(t, "house-bank-low", rules[0].Name)
	assert.Equal(t, Compare{
		Field:     "devices.AA:BB:CC:DD:EE:FF.metrics.soc",
		Op:        OpLessThan,
		ValueFrom: "env.critical_soc",
	}, rules[0].When)
	assert.Equal(t, "House bank below critical charge", rules[0].Action.Payload["message"])

	anyPred, ok := rules[1].When.(Any)
	require.True(t, ok)
	require.Len(t, anyPred, 2)
	custom, ok := anyPred[1].(Custom)
	require.True(t, ok)
	assert.Equal(t, FuncAnchorDrift, custom.Name)
	assert.Equal(t, 1.2, custom.Args["ratio"])

	assert.IsType(t, Not{}, rules[2].When)

	state := patch.FromMap(map[string]any{
		"devices": map[string]any{"AA:BB:CC:DD:EE:FF": map[string]any{"metrics": map[string]any{"soc": 12.0}}},
		"anchor":  map[string]any{"dragging": true, "deployed": true},
	})
	actions := NewEngine(rules).Evaluate(state, Env{"critical_soc": 20})
	require.Len(t, actions, 2)
	assert.Equal(t, "house-bank-low", actions[0].Rule)
	assert.Equal(t, "anchor-dragging", actions[1].Rule)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "missing name and action type",
			yaml: "rules:\n  - when: {exists: a}\n    action: {}\n",
			want: []string{"name is required", "action.type is required"},
		},
		{
			name: "duplicate names",
			yaml: "rules:\n  - {name: a, when: {exists: x}, action: {type: log}}\n  - {name: a, when: {exists: y}, action: {type: log}}\n",
			want: []string{"duplicate name"},
		},
		{
			name: "unknown operator",
			yaml: "rules:\n  - {name: a, when: {compare: {field: x, op: like, value: 1}}, action: {type: log}}\n",
			want: []string{"unknown operator"},
		},
		{
			name: "ordering without operand",
			yaml: "rules:\n  - {name: a, when: {compare: {field: a, op: gt}}, action: {type: log}}\n",
			want: []string{"gt needs value or value_from"},
		},
		{
			name: "two variants",
			yaml: "rules:\n  - {name: a, when: {exists: x, not: {exists: y}}, action: {type: log}}\n",
			want: []string{"exactly one"},
		},
		{
			name: "empty predicate",
			yaml: "rules:\n  - {name: a, action: {type: log}}\n",
			want: []string{"exactly one"},
		},
		{
			name: "unknown function",
			yaml: "rules:\n  - {name: a, when: {all: [{custom: {func: nope}}]}, action: {type: log}}\n",
			want: []string{"unknown function", "when.all[0].custom"},
		},
		{
			name: "value and value_from",
			yaml: "rules:\n  - {name: a, when: {compare: {field: x, op: eq, value: 1, value_from: env.y}}, action: {type: log}}\n",
			want: []string{"exclusive"},
		},
		{
			name: "compare without field",
			yaml: "rules:\n  - {name: a, when: {compare: {op: eq, value: 1}}, action: {type: log}}\n",
			want: []string{"field is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml), BuiltinFunctions())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRule)
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load([]byte("rules: [unclosed"), nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRule)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o600))

	rules, err := LoadFile(path, BuiltinFunctions())
	require.NoError(t, err)
	assert.Len(t, rules, 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}
