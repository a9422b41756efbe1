// ABOUTME: Fill-empty deep merge of an incoming person over a stored one
// ABOUTME: Keeps stored values, fills gaps, and unions list sub-resources by natural key
package merge

import (
	"reflect"
	"strings"
)

// Record is a decoded EveryAction person resource.
type Record = map[string]any

// FillEmpty merges incoming over existing without overwriting any non-empty
// existing value. Neither input is modified.
//
// Nested objects merge recursively. Lists with a registered natural key
// (see KeyedLists) are unioned by that key, existing items first. Any other
// value keeps the existing side unless it is empty.
func FillEmpty(existing, incoming Record) Record {
	if existing == nil {
		return cloneMap(incoming)
	}
	return mergeMaps(existing, incoming)
}

// IsEmpty reports whether v is nil, a blank string, or an empty list or map.
// Numbers and booleans are never empty.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []map[string]any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func mergeMaps(existing, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = cloneValue(v)
	}
	for k, in := range incoming {
		ex, ok := existing[k]
		if !ok {
			out[k] = cloneValue(in)
			continue
		}
		out[k] = mergeValue(k, ex, in)
	}
	return out
}

func mergeValue(field string, existing, incoming any) any {
	exMap, exIsMap := existing.(map[string]any)
	inMap, inIsMap := incoming.(map[string]any)
	if exIsMap && inIsMap {
		return mergeMaps(exMap, inMap)
	}

	if key, ok := KeyedLists[field]; ok {
		exList, exIsList := asList(existing)
		inList, inIsList := asList(incoming)
		if exIsList && inIsList {
			return mergeList(key, exList, inList)
		}
	}

	if IsEmpty(existing) && !IsEmpty(incoming) {
		return cloneValue(incoming)
	}
	return cloneValue(existing)
}

// mergeList unions two lists by key. Items sharing a key collapse into the
// position of the first one; keyless incoming items are appended unless an
// identical item is already present.
func mergeList(key KeyFunc, existing, incoming []any) []any {
	out := make([]any, 0, len(existing)+len(incoming))
	index := make(map[string]int)

	add := func(item any, dedupeKeyless bool) {
		m, isMap := item.(map[string]any)
		if isMap {
			if k, ok := key(m); ok {
				if i, seen := index[k]; seen {
					out[i] = mergeMaps(out[i].(map[string]any), m)
					return
				}
				index[k] = len(out)
				out = append(out, cloneMap(m))
				return
			}
		}
		if dedupeKeyless && containsEqual(out, item) {
			return
		}
		out = append(out, cloneValue(item))
	}

	for _, item := range existing {
		add(item, false)
	}
	for _, item := range incoming {
		add(item, true)
	}
	return out
}

func containsEqual(list []any, item any) bool {
	for _, candidate := range list {
		if reflect.DeepEqual(candidate, item) {
			return true
		}
	}
	return false
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneMap(item)
		}
		return out
	}
	return v
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}
