// Package normalize implements the first pipeline stage: reconstructing
// wrapped 32-bit hardware counters (TS1..TS5) into monotonic tick counts
// with drift-calibrated clock frequencies, unifying inconsistent naming
// across emitters, and coercing hex-encoded counter args into numbers the
// rest of the pipeline can do arithmetic on.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/aiutrace/analyzer/internal/ingest"
	"github.com/aiutrace/analyzer/internal/pipectx"
	"github.com/aiutrace/analyzer/internal/tracevent"
	"github.com/aiutrace/analyzer/internal/warnings"
)

// tsKeys are the 32-bit free-running hardware counters found in event args,
// in pipeline stage order: each is expected to be non-decreasing relative
// to the one before it within the same event.
var tsKeys = []string{"TS1", "TS2", "TS3", "TS4", "TS5"}

// tsWrapSpan is 2^32, the wraparound period of one hardware TSx counter.
const tsWrapSpan = uint64(1) << 32

type streamKey struct {
	pid int
	key string
}

// Context is the normalization stage. It owns per-(pid, TSx) overflow and
// drift state, so it must see every event of a trace in a single pass and
// cannot be shared across unrelated traces.
type Context struct {
	pipectx.Context
	registry   *ingest.Registry
	streams    map[streamKey]*streamStats
	jobStats   map[int]*jobStats
	ignoreCrit bool

	// driftMin/Max/Mean track the trace-wide actual-frequency spread
	// across every COMPUTE_EXEC event, reported once by Drain.
	driftMin, driftMax, driftMean float64
	driftCount                    int
}

// NewContext returns a normalization stage reading dialect/frequency info
// from registry and issuing warnings through warn (may be nil). When
// ignoreCrit is set, an intra-event TSx sequence that is still
// non-monotonic after correction is downgraded from a pipeline-aborting
// error to a warning (spec §7's Critical/soft-error policy).
func NewContext(registry *ingest.Registry, warn *warnings.Accumulator, ignoreCrit bool) *Context {
	return &Context{
		Context:    pipectx.NewContext("NORM", warn),
		registry:   registry,
		streams:    make(map[streamKey]*streamStats),
		jobStats:   make(map[int]*jobStats),
		ignoreCrit: ignoreCrit,
		driftMin:   math.Inf(1),
	}
}

func (c *Context) frequencyFor(pid int) float64 {
	if job, ok := c.registry.Job(pid); ok && job.SocFreqHz > 0 {
		return job.SocFreqHz
	}
	return 0
}

func (c *Context) streamFor(pid int, key string) *streamStats {
	sk := streamKey{pid, key}
	s, ok := c.streams[sk]
	if !ok {
		s = newStreamStats(c.frequencyFor(pid))
		c.streams[sk] = s
	}
	return s
}

// Process runs phase 1 (name unification, hex decoding, attribute
// hoisting) and phase 2 (overflow/drift correction) on e and returns it
// unchanged in count, since normalization never drops or splits events.
// It returns an error only when e's TSx sequence is still non-monotonic
// after correction and ignoreCrit is not set, the one condition spec §7
// treats as a Critical (soft) failure that aborts the run by default.
func (c *Context) Process(e pipectx.Event) ([]pipectx.Event, error) {
	c.normalizePhase1(e)
	if err := c.normalizePhase2(e); err != nil {
		return nil, err
	}
	return []pipectx.Event{e}, nil
}

// Drain reports the trace-wide frequency-drift warnings accumulated over
// every COMPUTE_EXEC event; normalization otherwise has nothing to flush.
func (c *Context) Drain() ([]pipectx.Event, error) {
	c.emitDriftWarnings()
	return nil, nil
}

// normalizePhase1 unifies event names across emitters and hoists pid/tid
// into args so later stages can look them up uniformly, regardless of
// whether the emitter already duplicated them there.
func (c *Context) normalizePhase1(e *tracevent.TraceEvent) {
	e.Name = unifyName(e.Name)
	attrToArgs(e)
}

// normalizePhase2 reconstructs each wrapped 32-bit counter present in e's
// args. It first runs the intra-event correction (spec step 5): TS1..TS5
// are read in stage order and any field whose raw value is less than the
// corrected value of the one immediately before it is assumed to have
// wrapped and gets tsWrapSpan added, so one wrap cascades through the
// later fields, with the triggering field name recorded in args["TSxOF"]. It then feeds the
// original (uncorrected) raw value through the per-(pid, key) stream to
// reconstruct a monotonic tick count and drift-calibrated absolute
// microsecond timestamp across the whole trace, storing both back into
// args as "<key>_ticks" and "<key>_us" so downstream stages never
// re-derive them. If the corrected sequence is still non-monotonic (more
// than one wrap occurred between two adjacent fields, beyond what a
// single tsWrapSpan addition can fix), that is a Critical (soft) failure:
// normalizePhase2 returns an error unless ignoreCrit downgrades it to a
// warning.
func (c *Context) normalizePhase2(e *tracevent.TraceEvent) error {
	var present []string
	raw := make(map[string]uint64, len(tsKeys))

	for _, key := range tsKeys {
		arg, ok := e.Arg(key)
		if !ok {
			continue
		}
		hexStr, ok := arg.(string)
		if !ok {
			continue
		}
		v, ok := hexToInt(hexStr)
		if !ok {
			c.Warn("could not parse {d[key]} value {d[value]} for pid {d[pid]} as hex",
				map[string]any{"key": key, "value": hexStr, "pid": e.Pid})
			continue
		}
		raw[key] = v
		present = append(present, key)
	}

	_, haveTS1 := raw["TS1"]
	corrected := raw
	if haveTS1 {
		var overflowed []string
		corrected, overflowed = intraEventCorrect(present, raw)
		if len(overflowed) > 0 {
			e.SetArg("TSxOF", overflowed[0])
		}

		freq := c.frequencyFor(e.Pid)
		if freq > 0 && e.Dur > float64(tsWrapSpan)/freq*1e6 {
			c.Warn("event {d[name]} on pid {d[pid]} has duration {d[dur]}us, longer than one TSx counter period - a wrap may go undetected",
				map[string]any{"name": e.Name, "pid": e.Pid, "dur": e.Dur})
		}

		if bad, ok := firstNonMonotonic(present, corrected); ok {
			c.Warn("TSx sequence for event {d[name]} on pid {d[pid]} is still out of order at {d[field]} after correction",
				map[string]any{"name": e.Name, "pid": e.Pid, "field": bad})
			if !c.ignoreCrit {
				return fmt.Errorf("normalize: TSx sequence for event %q on pid %d incomplete after correction at %s", e.Name, e.Pid, bad)
			}
		}

		c.updateEventStats(e, corrected)
	}

	for _, key := range present {
		e.SetArg(key, strconv.FormatUint(corrected[key], 10))

		stats := c.streamFor(e.Pid, key)
		ticks := stats.localCorrection(uint32(raw[key]), e.Ts)
		e.SetArg(key+"_ticks", ticks)
		e.SetArg(key+"_us", stats.globalCorrection(ticks))
	}
	return nil
}

// firstNonMonotonic reports the first field (in present's order) whose
// corrected value is lower than the field before it.
func firstNonMonotonic(present []string, corrected map[string]uint64) (string, bool) {
	var prev uint64
	havePrev := false
	for _, key := range present {
		v := corrected[key]
		if havePrev && v < prev {
			return key, true
		}
		prev = v
		havePrev = true
	}
	return "", false
}

// intraEventCorrect walks present's keys in stage order, comparing each
// field's raw value against the PREVIOUS FIELD'S ALREADY-CORRECTED value:
// whenever a field comes in lower than that running value, its counter is
// assumed to have wrapped once since the prior stage within the same
// event, and tsWrapSpan is added to it before it becomes the running value
// for the next comparison. A wrap can therefore cascade into every field
// after it, but only the first field where it was detected is recorded in
// overflowed (args["TSxOF"] names the trigger, not every affected field).
func intraEventCorrect(present []string, raw map[string]uint64) (corrected map[string]uint64, overflowed []string) {
	corrected = make(map[string]uint64, len(present))
	var prev uint64
	havePrev := false
	for _, key := range present {
		cv := raw[key]
		if havePrev && cv < prev {
			if len(overflowed) == 0 {
				overflowed = append(overflowed, key)
			}
			cv += tsWrapSpan
		}
		corrected[key] = cv
		prev = cv
		havePrev = true
	}
	return corrected, overflowed
}

var nameUnifyReplacements = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`RDMA`), "Rdma"},
	{regexp.MustCompile(`Receive`), "Recv"},
}

// unifyName applies the small set of cross-emitter spelling fixups so
// downstream name-substring matching (classify, flows) does not need to
// special-case every emitter's naming convention.
func unifyName(name string) string {
	for _, r := range nameUnifyReplacements {
		name = r.pattern.ReplaceAllString(name, r.repl)
	}
	return name
}

// hexToInt parses a "0x..."-prefixed (or bare) hex string into a uint64.
func hexToInt(s string) (uint64, bool) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// attrToArgs copies pid/tid into args when an emitter omitted them there,
// so stages that only ever look at args (predicate tables, exporters) see
// a consistent shape regardless of emitter.
func attrToArgs(e *tracevent.TraceEvent) {
	if !e.HasArg("pid") {
		e.SetArg("pid", e.Pid)
	}
	if !e.HasArg("tid") {
		e.SetArg("tid", e.Tid)
	}
}
