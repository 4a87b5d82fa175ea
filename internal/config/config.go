// Package config parses and validates the analyzer's command-line
// surface: input/output paths, frequency overrides, the overlap-resolution
// policy, event limits, the key:regex filter, and the named collection
// profile, along with the staged profile loader that decides which
// two-phase barrier stages actually run.
package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"github.com/aiutrace/analyzer/internal/tracevent"
)

// Overlap names the policy applied when two events on the same stream
// overlap in time after normalization.
type Overlap string

const (
	OverlapDrop  Overlap = "drop"  // discard the later event outright
	OverlapTid   Overlap = "tid"   // move host CPU events to a synthetic tid, then clip as shift does
	OverlapAsync Overlap = "async" // rewrite the earlier event as an async begin/end pair
	OverlapWarn  Overlap = "warn"  // keep both, issue a warning
	OverlapShift Overlap = "shift" // clip the earlier event's dur to end at the later one's start
)

var validOverlaps = map[Overlap]bool{
	OverlapDrop: true, OverlapTid: true, OverlapAsync: true, OverlapWarn: true, OverlapShift: true,
}

// ParseOverlap validates a --overlap flag value.
func ParseOverlap(raw string) (Overlap, error) {
	o := Overlap(raw)
	if !validOverlaps[o] {
		return "", fmt.Errorf("config: invalid --overlap value %q (want one of drop, tid, async, warn, shift)", raw)
	}
	return o, nil
}

// Filter is a parsed --filter=<key:regex,...> expression: every clause
// must match for an event to pass.
type Filter struct {
	clauses []filterClause
}

type filterClause struct {
	path    []string
	pattern *regexp.Regexp
}

// ParseFilter parses a comma-separated list of "key:regex" clauses, where
// key is a dotted event path (e.g. "name", "cat", "args.event_class"). An
// empty string yields a Filter that matches everything.
func ParseFilter(raw string) (*Filter, error) {
	f := &Filter{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return f, nil
	}
	for _, clause := range strings.Split(raw, ",") {
		parts := strings.SplitN(clause, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("config: invalid --filter clause %q, want key:regex", clause)
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			return nil, fmt.Errorf("config: invalid --filter clause %q, empty key", clause)
		}
		pattern, err := regexp.Compile(parts[1])
		if err != nil {
			return nil, fmt.Errorf("config: invalid --filter regex for key %q: %w", key, err)
		}
		f.clauses = append(f.clauses, filterClause{path: strings.Split(key, "."), pattern: pattern})
	}
	return f, nil
}

// Match reports whether every clause matches e. An event missing a
// clause's key fails that clause.
func (f *Filter) Match(e *tracevent.TraceEvent) bool {
	for _, c := range f.clauses {
		v, ok := e.Lookup(c.path)
		if !ok {
			return false
		}
		if !c.pattern.MatchString(fmt.Sprintf("%v", v)) {
			return false
		}
	}
	return true
}

// Apply returns the subset of events matching f, preserving order.
func (f *Filter) Apply(events []*tracevent.TraceEvent) []*tracevent.TraceEvent {
	if len(f.clauses) == 0 {
		return events
	}
	out := make([]*tracevent.TraceEvent, 0, len(events))
	for _, e := range events {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// ParseFreq parses a --freq=<soc>[:<core>] flag value into SoC and core
// frequencies in Hz. A bare value with no ':' applies to both.
func ParseFreq(raw string) (socHz, coreHz float64, err error) {
	parts := strings.SplitN(raw, ":", 2)
	socHz, err = cast.ToFloat64E(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("config: invalid --freq soc value %q: %w", parts[0], err)
	}
	if len(parts) == 1 {
		return socHz, socHz, nil
	}
	coreHz, err = cast.ToFloat64E(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("config: invalid --freq core value %q: %w", parts[1], err)
	}
	return socHz, coreHz, nil
}

// Config is the fully parsed and validated command-line surface for a
// single analyzer run.
type Config struct {
	Inputs       []string // -i, comma-separated input URIs
	Output       string   // -o
	SocFreqHz    float64  // --freq soc component
	CoreFreqHz   float64  // --freq core component
	TensorBoard  bool     // --tb
	Overlap      Overlap  // --overlap
	EventLimits  EventLimits
	DisableFile  bool   // --disable_file
	Filter       *Filter
	IgnoreCrit   bool // --ignore_crit
	ZeroAlign    bool // --zero_align
	KeepNames    bool // --keep_names
	CompilerLogs []string
	Profile      Profile
}

// Raw bundles the command line's string-typed flag values, the shape
// cobra hands back before parsing and validation.
type Raw struct {
	Inputs       string
	Output       string
	Freq         string
	TensorBoard  bool
	Overlap      string
	EventLimits  string
	DisableFile  bool
	Filter       string
	IgnoreCrit   bool
	ZeroAlign    bool
	KeepNames    bool
	CompilerLogs []string
	Profile      string
}

// Parse validates r into a Config, or returns the first error encountered.
// Every error is a Fatal-class config error: the caller should abort the
// run rather than attempt to recover with defaults.
func Parse(r Raw) (Config, error) {
	var cfg Config

	if strings.TrimSpace(r.Inputs) == "" {
		return Config{}, fmt.Errorf("config: -i is required")
	}
	for _, in := range strings.Split(r.Inputs, ",") {
		in = strings.TrimSpace(in)
		if in != "" {
			cfg.Inputs = append(cfg.Inputs, in)
		}
	}
	if len(cfg.Inputs) == 0 {
		return Config{}, fmt.Errorf("config: -i is required")
	}

	if strings.TrimSpace(r.Output) == "" {
		return Config{}, fmt.Errorf("config: -o is required")
	}
	cfg.Output = r.Output

	freq := r.Freq
	if freq == "" {
		freq = "0"
	}
	socHz, coreHz, err := ParseFreq(freq)
	if err != nil {
		return Config{}, err
	}
	cfg.SocFreqHz = socHz
	cfg.CoreFreqHz = coreHz

	overlap := r.Overlap
	if overlap == "" {
		overlap = string(OverlapWarn)
	}
	ov, err := ParseOverlap(overlap)
	if err != nil {
		return Config{}, err
	}
	cfg.Overlap = ov

	limits, err := ParseEventLimits(r.EventLimits)
	if err != nil {
		return Config{}, err
	}
	cfg.EventLimits = limits

	filter, err := ParseFilter(r.Filter)
	if err != nil {
		return Config{}, err
	}
	cfg.Filter = filter

	cfg.TensorBoard = r.TensorBoard
	cfg.DisableFile = r.DisableFile
	cfg.IgnoreCrit = r.IgnoreCrit
	cfg.ZeroAlign = r.ZeroAlign
	cfg.KeepNames = r.KeepNames
	cfg.CompilerLogs = r.CompilerLogs
	cfg.Profile = GetProfile(r.Profile)

	return cfg, nil
}
