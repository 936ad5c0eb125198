package models

import "sort"

// FeatureVector is a flat set of named features for one point in time.
// Keys carry their group prefix: price_, tech_, vol_, stat_, pattern_.
type FeatureVector map[string]float64

// Keys returns feature names in sorted order.
func (f FeatureVector) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Group returns the subset of features whose name starts with prefix.
func (f FeatureVector) Group(prefix string) FeatureVector {
	out := FeatureVector{}
	for k, v := range f {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out[k] = v
		}
	}
	return out
}
