package cachekey

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// ReservedPrefix marks internal implementation flags inside a parameter map.
// Keys with this prefix are stripped at every nesting level before
// canonicalization so that request-scoped bookkeeping never leaks into keys.
const ReservedPrefix = "__"

// CanonicalParams serializes a transform parameter map into a deterministic
// JSON string. Object keys are sorted recursively, arrays keep their order
// with canonicalized elements, and reserved-prefix keys are dropped.
// {"width":800,"height":600} and {"height":600,"width":800} serialize
// identically.
func CanonicalParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	return string(canonicalizeMap(params))
}

// CanonicalQuery normalizes a query string: parameters sorted alphabetically
// by name, repeated values sorted within a name. The raw query is part of the
// hash input because some parameter sources are lossy when parsed, so the key
// must reflect the full effective request identity.
func CanonicalQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}
	normalized := make(url.Values, len(query))
	for name, values := range query {
		sorted := make([]string, len(values))
		copy(sorted, values)
		sort.Strings(sorted)
		normalized[name] = sorted
	}
	// url.Values.Encode sorts by key.
	return normalized.Encode()
}

func canonicalize(v any) []byte {
	switch val := v.(type) {
	case nil:
		return []byte("null")
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			// Non-serializable values should not occur in transform
			// parameters; fall back to their string form so the key
			// stays deterministic instead of failing the request.
			return []byte(strconv.Quote(fmt.Sprint(val)))
		}
		return data
	}
}

func canonicalizeMap(m map[string]any) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		if strings.HasPrefix(k, ReservedPrefix) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			keyBytes = []byte(strconv.Quote(k))
		}
		result = append(result, keyBytes...)
		result = append(result, ':')
		result = append(result, canonicalize(m[k])...)
	}
	return append(result, '}')
}

func canonicalizeSlice(s []any) []byte {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		result = append(result, canonicalize(v)...)
	}
	return append(result, ']')
}
