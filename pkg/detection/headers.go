package detection

import (
	"maps"
	"net/http"
	"slices"
	"strings"
)

// SelectHeader walks names in priority order and returns the first header
// for which lookup yields a non-empty value.
func SelectHeader(names []string, lookup func(name string) string) (name, value string, ok bool) {
	for _, n := range names {
		if v := lookup(n); v != "" {
			return n, v, true
		}
	}
	return "", "", false
}

// headerLookup returns a case-insensitive lookup over h. When a header has
// several values the last non-empty one is used. Non-canonical keys that
// match the same name are visited in sorted order, as in headerFromMap.
func headerLookup(h http.Header) func(string) string {
	var keys []string
	return func(name string) string {
		if v := lastNonEmpty(h.Values(name)); v != "" {
			return v
		}
		// Keys set directly on the map bypass canonicalization.
		if keys == nil {
			keys = slices.Sorted(maps.Keys(h))
		}
		var v string
		for _, k := range keys {
			if strings.EqualFold(k, name) {
				if last := lastNonEmpty(h[k]); last != "" {
					v = last
				}
			}
		}
		return v
	}
}

func lastNonEmpty(vs []string) string {
	for _, v := range slices.Backward(vs) {
		if v != "" {
			return v
		}
	}
	return ""
}

// headerFromMap folds m into an http.Header. Keys that differ only in case
// are merged in sorted key order so the result does not depend on map
// iteration order.
func headerFromMap(m map[string]string) http.Header {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	h := make(http.Header, len(m))
	for _, k := range keys {
		h.Add(k, m[k])
	}
	return h
}
