package patch

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Op is the kind of a patch operation.
type Op string

// Operation kinds.
const (
	OpAdd     Op = "add"
	OpReplace Op = "replace"
	OpRemove  Op = "remove"
)

// Operation is one edit. Value is absent for removes.
type Operation struct {
	Op    Op     `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// MarshalJSON always emits value for add and replace, even when it is null.
func (op Operation) MarshalJSON() ([]byte, error) {
	if op.Op == OpRemove {
		return json.Marshal(struct {
			Op   Op     `json:"op"`
			Path string `json:"path"`
		}{op.Op, op.Path})
	}
	return json.Marshal(struct {
		Op    Op     `json:"op"`
		Path  string `json:"path"`
		Value any    `json:"value"`
	}{op.Op, op.Path, op.Value})
}

// Diff returns the operations that turn old into next. Neither argument
// is modified and the returned values share nothing with next. A nil
// object is treated as empty.
func Diff(old, next *Object) []Operation {
	ops := []Operation{}
	diffObjects(&ops, "", old, next)
	return ops
}

func diffObjects(ops *[]Operation, path string, a, b *Object) {
	for _, k := range a.Keys() {
		p := path + "/" + EscapeToken(k)
		av, _ := a.Get(k)
		bv, ok := b.Get(k)
		if !ok {
			*ops = append(*ops, Operation{Op: OpRemove, Path: p})
			continue
		}
		diffValues(ops, p, av, bv)
	}
	for _, k := range b.Keys() {
		if _, ok := a.Get(k); ok {
			continue
		}
		bv, _ := b.Get(k)
		*ops = append(*ops, Operation{Op: OpAdd, Path: path + "/" + EscapeToken(k), Value: cloneValue(bv)})
	}
}

func diffValues(ops *[]Operation, path string, a, b any) {
	ao, aIsObj := asObject(a)
	bo, bIsObj := asObject(b)
	if aIsObj && bIsObj {
		diffObjects(ops, path, ao, bo)
		return
	}
	if Equal(a, b) {
		return
	}
	*ops = append(*ops, Operation{Op: OpReplace, Path: path, Value: cloneValue(b)})
}

func asObject(v any) (*Object, bool) {
	switch val := v.(type) {
	case *Object:
		if val == nil {
			return nil, false
		}
		return val, true
	case map[string]any:
		return FromMap(val), true
	default:
		return nil, false
	}
}

// Equal reports whether two JSON-shaped values are structurally equal.
// Object key order is ignored and numbers compare by value, so int 1 and
// float64 1.0 are equal.
func Equal(a, b any) bool {
	if ao, ok := asObject(a); ok {
		bo, ok := asObject(b)
		if !ok || ao.Len() != bo.Len() {
			return false
		}
		for _, k := range ao.Keys() {
			av, _ := ao.Get(k)
			bv, ok := bo.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}

	if as, ok := a.([]any); ok {
		bs, ok := b.([]any)
		if !ok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	}

	if af, ok := ToFloat(a); ok {
		bf, ok := ToFloat(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

// ToFloat converts any Go numeric kind or json.Number to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

var (
	tokenEscaper   = strings.NewReplacer("~", "~0", "/", "~1")
	tokenUnescaper = strings.NewReplacer("~1", "/", "~0", "~")
)

// EscapeToken escapes one JSON Pointer reference token.
func EscapeToken(s string) string {
	return tokenEscaper.Replace(s)
}

// UnescapeToken reverses EscapeToken.
func UnescapeToken(s string) string {
	return tokenUnescaper.Replace(s)
}
