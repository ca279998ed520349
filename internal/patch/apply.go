package patch

import (
	"fmt"
	"strings"
)

// Apply returns a copy of obj with ops applied in order. Adds append new
// keys at the end; replaces keep the key's position.
func Apply(obj *Object, ops []Operation) (*Object, error) {
	out := obj.Clone()
	if out == nil {
		out = NewObject()
	}

	for i, op := range ops {
		tokens, err := splitPath(op.Path)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		if len(tokens) == 0 {
			if op.Op != OpReplace {
				return nil, fmt.Errorf("operation %d: %w: %s on document root", i, ErrInvalidOperation, op.Op)
			}
			root, ok := asObject(op.Value)
			if !ok {
				return nil, fmt.Errorf("operation %d: %w: root must be an object", i, ErrInvalidOperation)
			}
			out = root.Clone()
			continue
		}

		parent, err := walk(out, tokens[:len(tokens)-1])
		if err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i, op.Path, err)
		}
		key := tokens[len(tokens)-1]
		_, exists := parent.Get(key)

		switch op.Op {
		case OpAdd:
			parent.Set(key, cloneValue(op.Value))
		case OpReplace:
			if !exists {
				return nil, fmt.Errorf("operation %d: %w: %s", i, ErrPathNotFound, op.Path)
			}
			parent.Set(key, cloneValue(op.Value))
		case OpRemove:
			if !exists {
				return nil, fmt.Errorf("operation %d: %w: %s", i, ErrPathNotFound, op.Path)
			}
			parent.Delete(key)
		default:
			return nil, fmt.Errorf("operation %d: %w: %q", i, ErrInvalidOperation, op.Op)
		}
	}
	return out, nil
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: %q does not start with '/'", ErrInvalidPath, path)
	}
	raw := strings.Split(path[1:], "/")
	tokens := make([]string, len(raw))
	for i, t := range raw {
		tokens[i] = UnescapeToken(t)
	}
	return tokens, nil
}

// walk descends to the object at tokens, converting plain maps in place.
func walk(o *Object, tokens []string) (*Object, error) {
	cur := o
	for _, t := range tokens {
		v, ok := cur.Get(t)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrPathNotFound, t)
		}
		switch node := v.(type) {
		case *Object:
			cur = node
		case map[string]any:
			converted := FromMap(node)
			cur.Set(t, converted)
			cur = converted
		default:
			return nil, fmt.Errorf("%w: %q is not an object", ErrPathNotFound, t)
		}
	}
	return cur, nil
}
