// Package warnings implements the pipeline-wide, deduplicating warning
// accumulator: templated messages with named placeholders filled from a
// per-occurrence data map, with optional reducers that fold repeated
// warnings of the same template into one aggregate instead of flooding the
// log with thousands of near-identical lines.
package warnings

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
)

var placeholderPattern = regexp.MustCompile(`\{d\[(\w+)\]\}`)

// Warning is one accumulated occurrence: a stage tag, the template it was
// raised against, and the data that filled it (post-reduction if a reducer
// folded several occurrences together).
type Warning struct {
	Stage    string
	Template string
	Data     map[string]any
	Count    int // number of raw occurrences folded into this entry
}

// Render fills the template's {d[key]} placeholders from Data.
func (w Warning) Render() string {
	return placeholderPattern.ReplaceAllStringFunc(w.Template, func(m string) string {
		key := placeholderPattern.FindStringSubmatch(m)[1]
		if v, ok := w.Data[key]; ok {
			return fmt.Sprintf("%v", v)
		}
		return m
	})
}

// Reducer folds an incoming occurrence's data into the existing aggregate
// for a template, returning the new aggregate. existing is nil on the first
// occurrence. Both maps, and whatever the reducer returns, must use the
// same key set as the template's placeholders; Issue validates this.
type Reducer func(existing, incoming map[string]any) map[string]any

// Accumulator collects warnings raised across every pipeline stage and,
// for templates with a registered reducer, merges repeats into one entry.
// The zero value is not usable; use NewAccumulator.
type Accumulator struct {
	mu       sync.Mutex
	order    []string // template strings in first-seen order
	entries  map[string]*Warning
	reducers map[string]Reducer
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		entries:  make(map[string]*Warning),
		reducers: make(map[string]Reducer),
	}
}

// RegisterReducer arranges for future Issue calls against template to be
// folded via r instead of appended as separate entries.
func (a *Accumulator) RegisterReducer(template string, r Reducer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reducers[template] = r
}

func templateKeys(template string) map[string]bool {
	keys := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		keys[m[1]] = true
	}
	return keys
}

// Issue records one occurrence of template, raised by stage, with data
// supplying the placeholder values. It returns an error if data is missing
// any key the template references, or supplies a key the template does not
// reference (the two are required to match exactly, so a typo in either
// the template or a call site is caught at the point it is raised rather
// than silently rendering "{d[typo]}" in a user-facing report).
func (a *Accumulator) Issue(stage, template string, data map[string]any) error {
	want := templateKeys(template)
	for k := range want {
		if _, ok := data[k]; !ok {
			return fmt.Errorf("warnings: template %q references %q, not present in data %v", template, k, data)
		}
	}
	for k := range data {
		if !want[k] {
			return fmt.Errorf("warnings: data key %q not referenced by template %q", k, template)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	existing, seen := a.entries[template]
	if !seen {
		a.order = append(a.order, template)
		a.entries[template] = &Warning{Stage: stage, Template: template, Data: data, Count: 1}
		return nil
	}

	reducer, hasReducer := a.reducers[template]
	if !hasReducer {
		// No reducer: keep every occurrence distinguishable by re-keying on
		// template+count rather than silently overwriting.
		key := fmt.Sprintf("%s#%d", template, existing.Count+1)
		a.order = append(a.order, key)
		a.entries[key] = &Warning{Stage: stage, Template: template, Data: data, Count: 1}
		return nil
	}

	merged := reducer(existing.Data, data)
	mergedKeys := templateKeys(template)
	for k := range mergedKeys {
		if _, ok := merged[k]; !ok {
			return fmt.Errorf("warnings: reducer for %q dropped required key %q", template, k)
		}
	}
	existing.Data = merged
	existing.Count++
	return nil
}

// All returns every accumulated warning (post-reduction) in first-raised
// order.
func (a *Accumulator) All() []Warning {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Warning, 0, len(a.order))
	for _, key := range a.order {
		if w, ok := a.entries[key]; ok {
			out = append(out, *w)
		}
	}
	return out
}

// PrintAll writes every accumulated warning to w, one per line, prefixed
// with its stage tag. Intended to run once at process exit, mirroring the
// original's destructor-time warning dump.
func (a *Accumulator) PrintAll(w io.Writer) {
	for _, warning := range a.All() {
		count := ""
		if warning.Count > 1 {
			count = fmt.Sprintf(" (x%d)", warning.Count)
		}
		fmt.Fprintf(w, "[%s] %s%s\n", warning.Stage, warning.Render(), count)
	}
}

// Len reports how many distinct warning entries are accumulated.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order)
}

// SumReducer is a ready-made Reducer for templates whose data carries a
// single numeric "count" key that should accumulate across occurrences.
func SumReducer(existing, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(existing))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		if strings.HasSuffix(k, "count") {
			out[k] = toFloat(out[k]) + toFloat(v)
			continue
		}
		out[k] = v
	}
	return out
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
