// Package tree provides helpers for the loosely typed configuration trees
// produced by the settings loaders (map[string]any with nested maps and
// []any lists).
package tree

// DeepMerge recursively merges src into dst.
// Values in src override values in dst.
// Maps are merged recursively; other types are replaced.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	if src == nil {
		return dst
	}

	for key, srcVal := range src {
		dstVal, exists := dst[key]
		if !exists {
			dst[key] = srcVal
			continue
		}

		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dstVal.(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
		} else {
			dst[key] = srcVal
		}
	}

	return dst
}

// Clone creates a deep copy of a configuration map.
func Clone(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	dst := make(map[string]any, len(src))
	for key, val := range src {
		dst[key] = CloneValue(val)
	}

	return dst
}

// CloneValue deep-copies maps and slices and returns scalars unchanged.
func CloneValue(val any) any {
	switch v := val.(type) {
	case map[string]any:
		return Clone(v)
	case []any:
		return cloneSlice(v)
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = Clone(m)
		}
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	default:
		return val
	}
}

// cloneSlice creates a deep copy of a slice.
func cloneSlice(src []any) []any {
	if src == nil {
		return nil
	}

	dst := make([]any, len(src))
	for i, val := range src {
		dst[i] = CloneValue(val)
	}

	return dst
}

// List normalizes a configuration value into a list.
// nil yields nil, a list is returned as is, anything else becomes a
// single-element list.
func List(val any) []any {
	switch v := val.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

// String returns m[key] if it is a string.
func String(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// Bool returns m[key] if it is a bool.
func Bool(m map[string]any, key string) (bool, bool) {
	b, ok := m[key].(bool)
	return b, ok
}

// Strings returns the string items of m[key].
// A single string is treated as a one-element list; non-string items are skipped.
func Strings(m map[string]any, key string) []string {
	var out []string
	for _, item := range List(m[key]) {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Selector interprets a "bool or list of names" option.
// It returns all=true for a literal true, names for a string or list, and
// the zero value when the option is absent or false.
func Selector(m map[string]any, key string) (all bool, names []string) {
	switch v := m[key].(type) {
	case bool:
		return v, nil
	case nil:
		return false, nil
	default:
		return false, Strings(m, key)
	}
}
