package tracevent

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Args is the order-preserving key/value container backing TraceEvent.args.
// Using an ordered map (rather than a plain Go map) keeps unrecognized keys
// in the exact order they were read from the input trace, so a pipeline run
// that never touches a given key reproduces it byte-for-byte on export.
type Args = *orderedmap.OrderedMap[string, any]

// NewArgs returns an empty, ready-to-use Args map.
func NewArgs() Args {
	return orderedmap.New[string, any]()
}

// CloneArgs returns a shallow copy of a, preserving key order. Used whenever
// a stage fabricates a new event that shares the source event's args (e.g.
// firmware event pairs, synthesized flow events).
func CloneArgs(a Args) Args {
	out := NewArgs()
	if a == nil {
		return out
	}
	for pair := a.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value)
	}
	return out
}

// getPath walks a dotted path through v, where v is either a TraceEvent top
// level field already resolved by the caller, an Args map, or a plain
// map[string]any (nested args values may arrive as either from JSON
// decoding). Returns the leaf value and whether the full path resolved.
func getPath(v any, path []string) (any, bool) {
	cur := v
	for _, key := range path {
		switch m := cur.(type) {
		case Args:
			val, ok := m.Get(key)
			if !ok {
				return nil, false
			}
			cur = val
		case map[string]any:
			val, ok := m[key]
			if !ok {
				return nil, false
			}
			cur = val
		default:
			return nil, false
		}
	}
	return cur, true
}
