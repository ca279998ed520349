package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject_OrderAndJSON(t *testing.T) {
	o := NewObject().Set("b", 1).Set("a", 2).Set("c", obj("y", true, "x", nil))
	o.Set("b", 3)

	assert.Equal(t, []string{"b", "a", "c"}, o.Keys())
	data, err := json.Marshal(o)
	require.NoError(t, err)
	assert.Equal(t, `{"b":3,"a":2,"c":{"y":true,"x":null}}`, string(data))

	o.Delete("a")
	o.Delete("missing")
	assert.Equal(t, []string{"b", "c"}, o.Keys())
	assert.Equal(t, 2, o.Len())
}

func TestObject_UnmarshalKeepsOrder(t *testing.T) {
	var o Object
	require.NoError(t, json.Unmarshal([]byte(`{"z":1,"a":{"y":2.5,"b":[1,"x"]},"m":null}`), &o))

	assert.Equal(t, []string{"z", "a", "m"}, o.Keys())
	v, ok := o.Lookup("a", "y")
	require.True(t, ok)
	assert.Equal(t, 2.5, v)
	z, _ := o.Get("z")
	assert.Equal(t, int64(1), z)

	var bad Object
	assert.ErrorIs(t, json.Unmarshal([]byte(`[1]`), &bad), ErrNotObject)
}

func TestObject_FromMapAndLookup(t *testing.T) {
	o := FromMap(map[string]any{"b": 1, "a": map[string]any{"c": "x"}})
	assert.Equal(t, []string{"a", "b"}, o.Keys())

	v, ok := o.Lookup("a", "c")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = o.Lookup("a", "c", "deeper")
	assert.False(t, ok)
	_, ok = o.Lookup("nope")
	assert.False(t, ok)

	var nilObj *Object
	assert.Equal(t, 0, nilObj.Len())
	assert.Nil(t, nilObj.Clone())
}

func TestObject_CloneIsDeep(t *testing.T) {
	o := obj("a", obj("list", []any{1}))
	c := o.Clone()

	inner, _ := c.Get("a")
	inner.(*Object).Set("new", true)
	list, _ := inner.(*Object).Get("list")
	list.([]any)[0] = 9

	assert.Equal(t, `{"a":{"list":[1]}}`, mustJSON(o))
}

func TestApply_Errors(t *testing.T) {
	base := obj("a", 1, "n", obj())

	_, err := Apply(base, []Operation{{Op: OpReplace, Path: "/missing", Value: 1}})
	assert.ErrorIs(t, err, ErrPathNotFound)

	_, err = Apply(base, []Operation{{Op: OpRemove, Path: "/missing"}})
	assert.ErrorIs(t, err, ErrPathNotFound)

	_, err = Apply(base, []Operation{{Op: OpAdd, Path: "/a/b", Value: 1}})
	assert.ErrorIs(t, err, ErrPathNotFound)

	_, err = Apply(base, []Operation{{Op: "move", Path: "/a"}})
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = Apply(base, []Operation{{Op: OpAdd, Path: "a"}})
	assert.ErrorIs(t, err, ErrInvalidPath)

	got, err := Apply(base, []Operation{{Op: OpAdd, Path: "/n/x~1y", Value: 2}})
	require.NoError(t, err)
	v, _ := got.Lookup("n", "x/y")
	assert.Equal(t, 2, v)
	_, ok := base.Lookup("n", "x/y")
	assert.False(t, ok, "Apply mutated its input")
}
