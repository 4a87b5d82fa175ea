package derive

import (
	"sort"

	"github.com/aiutrace/analyzer/internal/pipectx"
	"github.com/aiutrace/analyzer/internal/tracevent"
	"github.com/aiutrace/analyzer/internal/warnings"
)

type powerSample struct {
	ts    float64
	watts float64
}

type interval struct {
	start, end float64
}

// Stats is the statistics computed over one segment of power samples
// (either while some kernel was executing, or while none was). Every sample
// counts once; the time between samples is not used as a weight.
type Stats struct {
	MinNonZero    float64
	Max           float64
	MeanNonZero   float64
	MedianNonZero float64
	AvgTotal float64 // per-sample average including zero samples
}

// PowerContext computes per-sample (not time-weighted) power statistics split into two
// segments: samples observed while at least one kernel was executing on
// the device, and samples observed while none was. It is a barrier stage:
// the split can only be computed once every kernel interval and every
// power sample for the whole trace has been seen.
type PowerContext struct {
	pipectx.Context
	samples   []powerSample
	intervals []interval

	WithKernels    Stats
	WithoutKernels Stats
}

// NewPowerContext returns a power-statistics barrier stage.
func NewPowerContext(warn *warnings.Accumulator) *PowerContext {
	return &PowerContext{Context: pipectx.NewContext("DERIVE", warn)}
}

func isPowerSample(e pipectx.Event) bool {
	return e.HasArg("power_watts")
}

func isKernelExec(e pipectx.Event) bool {
	return e.ArgString("event_class") == tracevent.ClassComputeExec.String()
}

// Collect records power samples and kernel-execution intervals.
func (c *PowerContext) Collect(e pipectx.Event) error {
	if isPowerSample(e) {
		if w, ok := toFloat(mustArg(e, "power_watts")); ok {
			c.samples = append(c.samples, powerSample{ts: e.Ts, watts: w})
		}
		return nil
	}
	if isKernelExec(e) && e.Dur > 0 {
		c.intervals = append(c.intervals, interval{start: e.Ts, end: e.Ts + e.Dur})
	}
	return nil
}

func mustArg(e pipectx.Event, key string) any {
	v, _ := e.Arg(key)
	return v
}

// Finalize merges overlapping kernel intervals, splits the power samples
// into "with kernels" / "without kernels" segments by that merged interval
// set, and computes both segments' statistics.
func (c *PowerContext) Finalize() error {
	merged := mergeIntervals(c.intervals)
	sort.Slice(c.samples, func(i, j int) bool { return c.samples[i].ts < c.samples[j].ts })

	var withKernels, withoutKernels []float64
	for _, s := range c.samples {
		if withinAny(merged, s.ts) {
			withKernels = append(withKernels, s.watts)
		} else {
			withoutKernels = append(withoutKernels, s.watts)
		}
	}

	c.WithKernels = computeStats(withKernels)
	c.WithoutKernels = computeStats(withoutKernels)
	return nil
}

// Apply passes every event through unmodified: the statistics this stage
// computes are trace-wide aggregates, reported once at Drain rather than
// attached back onto individual events.
func (c *PowerContext) Apply(e pipectx.Event) ([]pipectx.Event, error) {
	return []pipectx.Event{e}, nil
}

// Drain emits one synthetic metadata event per segment carrying its
// computed statistics, so they flow through export like any other event.
func (c *PowerContext) Drain() ([]pipectx.Event, error) {
	var out []pipectx.Event
	out = append(out, statsEvent("power_stats_with_kernels", c.WithKernels))
	out = append(out, statsEvent("power_stats_without_kernels", c.WithoutKernels))
	return out, nil
}

func statsEvent(name string, s Stats) *tracevent.TraceEvent {
	e := tracevent.New(tracevent.PhaseMetadata, name, "power", 0, 0, 0, 0)
	e.SetArg("min_non_zero", s.MinNonZero)
	e.SetArg("max", s.Max)
	e.SetArg("mean_non_zero", s.MeanNonZero)
	e.SetArg("median_non_zero", s.MedianNonZero)
	e.SetArg("avg_total", s.AvgTotal)
	return e
}

// mergeIntervals collapses overlapping/adjacent kernel-execution intervals
// into the minimal set of disjoint spans.
func mergeIntervals(in []interval) []interval {
	if len(in) == 0 {
		return nil
	}
	sorted := make([]interval, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	merged := []interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.start <= last.end {
			if iv.end > last.end {
				last.end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func withinAny(intervals []interval, ts float64) bool {
	for _, iv := range intervals {
		if ts >= iv.start && ts <= iv.end {
			return true
		}
	}
	return false
}

// computeStats computes the non-zero min/max/mean/median plus the
// zero-inclusive average over samples.
func computeStats(samples []float64) Stats {
	if len(samples) == 0 {
		return Stats{}
	}
	var total float64
	var nonZero []float64
	for _, s := range samples {
		total += s
		if s != 0 {
			nonZero = append(nonZero, s)
		}
	}
	stats := Stats{AvgTotal: total / float64(len(samples))}
	if len(nonZero) == 0 {
		return stats
	}
	sort.Float64s(nonZero)
	stats.MinNonZero = nonZero[0]
	stats.Max = nonZero[len(nonZero)-1]
	var sum float64
	for _, v := range nonZero {
		sum += v
	}
	stats.MeanNonZero = sum / float64(len(nonZero))
	mid := len(nonZero) / 2
	if len(nonZero)%2 == 0 {
		stats.MedianNonZero = (nonZero[mid-1] + nonZero[mid]) / 2
	} else {
		stats.MedianNonZero = nonZero[mid]
	}
	return stats
}
