// Package sortstage implements the trace-wide ordering pass: a composite,
// per-field sort key (each field independently ascending or descending)
// followed by overlap recombination on each (pid, tid) stream so that
// "X"-phase durations nest correctly within a thread after normalization
// may have shifted their timestamps.
package sortstage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aiutrace/analyzer/internal/tracevent"
)

// Key is one field of a composite sort key: Field is a dotted path resolved
// against the event ("ts", "dur", "args.event_class", ...), Reverse selects
// descending order for that field alone.
type Key struct {
	Field   string
	Reverse bool
	path    []string
}

// ParseKeys parses a comma-separated sort-key spec such as
// "pid,tid,ts:r" into a composite Key list. A ":r" suffix on a field marks
// it descending; fields are otherwise ascending.
func ParseKeys(spec string) ([]Key, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, fmt.Errorf("sortstage: empty sort key spec")
	}
	parts := strings.Split(spec, ",")
	keys := make([]Key, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		field := p
		reverse := false
		if idx := strings.LastIndex(p, ":"); idx >= 0 && p[idx+1:] == "r" {
			field = p[:idx]
			reverse = true
		}
		keys = append(keys, Key{Field: field, Reverse: reverse, path: strings.Split(field, ".")})
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("sortstage: no usable fields in sort key spec %q", spec)
	}
	return keys, nil
}

// compare returns -1, 0, or 1 comparing a and b by the full composite key,
// evaluating each field with its own ascending/descending direction and
// its own type (numeric fields compare numerically, everything else
// compares as text) rather than folding direction into a numeric sign, so
// non-numeric fields never get corrupted by an implicit float coercion.
func compare(keys []Key, a, b *tracevent.TraceEvent) int {
	for _, k := range keys {
		av, aok := a.Lookup(k.path)
		bv, bok := b.Lookup(k.path)
		c := compareValues(av, aok, bv, bok)
		if k.Reverse {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func compareValues(a any, aok bool, b any, bok bool) int {
	if !aok && !bok {
		return 0
	}
	if !aok {
		return -1
	}
	if !bok {
		return 1
	}
	if af, aIsNum := asFloat(a); aIsNum {
		if bf, bIsNum := asFloat(b); bIsNum {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	as, bs := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	return strings.Compare(as, bs)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
