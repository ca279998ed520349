package rules

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/bosun-core/internal/patch"
)

type predicateFunc func(*patch.Object, Env) (bool, error)

func (f predicateFunc) Eval(s *patch.Object, e Env) (bool, error) { return f(s, e) }

var (
	alwaysTrue  = predicateFunc(func(*patch.Object, Env) (bool, error) { return true, nil })
	alwaysFalse = predicateFunc(func(*patch.Object, Env) (bool, error) { return false, nil })
	failing     = predicateFunc(func(*patch.Object, Env) (bool, error) { return false, errors.New("boom") })
	panicking   = predicateFunc(func(*patch.Object, Env) (bool, error) { panic("nil map") })
)

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}
func (l *recordingLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprint(append([]any{msg}, args...)...))
}

func TestEngine_RuleIsolation(t *testing.T) {
	logger := &recordingLogger{}
	e := NewEngine([]Rule{
		{Name: "R1", When: failing, Action: Action{Type: "notify", Target: "one"}},
		{Name: "R2", When: alwaysTrue, Action: Action{Type: "notify", Target: "two"}},
	})
	e.SetLogger(logger)

	var actions []Action
	require.NotPanics(t, func() { actions = e.Evaluate(patch.NewObject(), nil) })
	assert.Equal(t, []Action{{Rule: "R2", Type: "notify", Target: "two"}}, actions)
	require.Len(t, logger.warns, 1)
	assert.Contains(t, logger.warns[0], "R1")
}

func TestEngine_PanicIsolated(t *testing.T) {
	e := NewEngine([]Rule{
		{Name: "panics", When: panicking, Action: Action{Type: "log"}},
		{Name: "nil predicate", Action: Action{Type: "log"}},
		{Name: "ok", When: alwaysTrue, Action: Action{Type: "record"}},
	})

	actions, failures := e.EvaluateDetailed(patch.NewObject(), nil)
	require.Len(t, actions, 1)
	assert.Equal(t, "ok", actions[0].Rule)

	require.Len(t, failures, 2)
	assert.Equal(t, "panics", failures[0].Rule)
	assert.ErrorIs(t, failures[0], ErrPredicatePanic)
	assert.ErrorIs(t, failures[0], ErrEvaluationFailure)
	assert.ErrorIs(t, failures[1], ErrInvalidRule)
}

func TestEngine_DeclarationOrderAndOverlap(t *testing.T) {
	e := NewEngine([]Rule{
		{Name: "c", When: alwaysTrue, Action: Action{Type: "notify", Target: "x"}},
		{Name: "a", When: alwaysFalse, Action: Action{Type: "notify"}},
		{Name: "b", When: alwaysTrue, Action: Action{Type: "notify", Target: "x"}},
	})

	actions := e.Evaluate(patch.NewObject(), nil)
	require.Len(t, actions, 2)
	assert.Equal(t, "c", actions[0].Rule)
	assert.Equal(t, "b", actions[1].Rule)
	assert.Equal(t, []string{"c", "a", "b"}, e.Names())
	assert.Equal(t, 3, e.Len())
}

func TestEngine_EmptyResultIsNotNil(t *testing.T) {
	actions := NewEngine(nil).Evaluate(patch.NewObject(), nil)
	assert.NotNil(t, actions)
	assert.Empty(t, actions)
}

func TestEngine_Deterministic(t *testing.T) {
	state := patch.FromMap(map[string]any{
		"devices": map[string]any{
			"A": map[string]any{"metrics": map[string]any{"soc": 15.0}},
			"B": map[string]any{"metrics": map[string]any{"soc": 55.0}},
			"C": map[string]any{"metrics": map[string]any{"soc": 5.0}},
		},
	})
	env := Env{"critical_soc": 20}

	var rules []Rule
	for _, addr := range []string{"C", "A", "B"} {
		rules = append(rules, Rule{
			Name:   "low-" + addr,
			When:   Compare{Field: "devices." + addr + ".metrics.soc", Op: OpLessThan, ValueFrom: "env.critical_soc"},
			Action: Action{Type: "notify", Target: addr, Payload: map[string]any{"n": []any{1}}},
		})
	}
	e := NewEngine(rules)

	first := e.Evaluate(state, env)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, e.Evaluate(state, env))
	}
	require.Len(t, first, 2)
	assert.Equal(t, "C", first[0].Target)
	assert.Equal(t, "A", first[1].Target)
}

func TestEngine_ActionsAreCopies(t *testing.T) {
	e := NewEngine([]Rule{{Name: "r", When: alwaysTrue, Action: Action{Type: "notify", Payload: map[string]any{"msg": "x"}}}})

	a := e.Evaluate(nil, nil)
	a[0].Payload["msg"] = "changed"

	b := e.Evaluate(nil, nil)
	assert.Equal(t, "x", b[0].Payload["msg"])
}

func TestEvaluationError(t *testing.T) {
	err := &EvaluationError{Rule: "r", Err: ErrFieldNotFound}
	assert.Equal(t, `rule "r": rules: field not found`, err.Error())
	assert.ErrorIs(t, err, ErrFieldNotFound)
	assert.ErrorIs(t, err, ErrEvaluationFailure)

	var target *EvaluationError
	assert.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &target)
}
