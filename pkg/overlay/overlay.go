// Package overlay resolves layered configuration: a base record with an
// optional override merged on top at read time.
package overlay

// Resolve returns a new map holding base with every key present in override
// replacing the base value. Neither input is modified. A nil override yields
// a copy of base.
func Resolve[K comparable, V any](base, override map[K]V) map[K]V {
	out := make(map[K]V, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// ResolveTree merges nested string-keyed maps. When both sides hold a
// map[string]any under the same key the two are merged recursively; any other
// override value replaces the base value outright.
func ResolveTree(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = copyValue(v)
	}
	for k, v := range override {
		if ov, ok := v.(map[string]any); ok {
			if bv, ok := out[k].(map[string]any); ok {
				out[k] = ResolveTree(bv, ov)
				continue
			}
		}
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	if m, ok := v.(map[string]any); ok {
		return ResolveTree(m, nil)
	}
	return v
}
