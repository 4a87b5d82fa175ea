package sortstage

import (
	"strconv"

	"golang.org/x/exp/slices"

	"github.com/aiutrace/analyzer/internal/config"
	"github.com/aiutrace/analyzer/internal/pipectx"
	"github.com/aiutrace/analyzer/internal/tracevent"
	"github.com/aiutrace/analyzer/internal/warnings"
)

// Context buffers every event it sees, bucketed by stream, and emits them
// on Drain sorted by a composite key with per-stream overlap resolution
// applied. It cannot stream output incrementally since the final order of
// an early event can depend on events seen much later in the input.
type Context struct {
	pipectx.Context
	keys         []Key
	perStream    bool
	overlap      config.Overlap
	cpuStreamTid int
	queue        *pipectx.Queue
}

// NewContext returns a sort stage ordering by keys. When perStream is true,
// events are bucketed by (pid, tid) before sorting and overlap resolution,
// and buckets are concatenated in first-seen order; when false, every
// event shares one global bucket. overlap selects the policy applied to
// same-stream events whose spans collide after sorting; cpuStreamTid is
// only consulted by the "tid" policy.
func NewContext(keys []Key, perStream bool, overlap config.Overlap, cpuStreamTid int, warn *warnings.Accumulator) *Context {
	return &Context{
		Context:      pipectx.NewContext("SORT", warn),
		keys:         keys,
		perStream:    perStream,
		overlap:      overlap,
		cpuStreamTid: cpuStreamTid,
		queue:        pipectx.NewQueue(),
	}
}

// Process buffers e; sorting happens entirely in Drain. Under the "tid"
// overlap policy, host-side CPU events are first moved onto the
// configured synthetic stream so they bucket (and later recombine)
// together rather than colliding with device-stream tid reuse.
func (c *Context) Process(e pipectx.Event) ([]pipectx.Event, error) {
	if c.overlap == config.OverlapTid {
		rewriteCPUStreamTid(e, c.cpuStreamTid)
	}
	c.queue.Push(pipectx.KeyFor(e, c.perStream), e)
	return nil, nil
}

// rewriteCPUStreamTid moves e onto tid when it is a host-side CPU event:
// a complete ("X") event that is neither an "AIU Roundtrip" span nor
// carries a TS1 hardware counter arg (the signal that it is an
// AIU/device-side event sharing the host's tid numbering).
func rewriteCPUStreamTid(e *tracevent.TraceEvent, tid int) {
	if e.Ph != tracevent.PhaseComplete {
		return
	}
	if e.Name == "AIU Roundtrip" {
		return
	}
	if e.HasArg("TS1") {
		return
	}
	e.Tid = tid
}

// Drain sorts and recombines every bucket, returning the full ordered
// output.
func (c *Context) Drain() ([]pipectx.Event, error) {
	var out []pipectx.Event
	for _, key := range c.queue.Keys() {
		bucket := c.queue.Bucket(key)
		sorted := make([]*tracevent.TraceEvent, len(bucket))
		copy(sorted, bucket)
		slices.SortStableFunc(sorted, func(a, b *tracevent.TraceEvent) bool {
			return compare(c.keys, a, b) < 0
		})
		recombined := recombineOverlaps(sorted, c)
		for _, e := range recombined {
			out = append(out, e)
		}
	}
	return out, nil
}

// recombineOverlaps walks a single stream's sorted complete ("X") events
// and resolves any whose span runs past the start of the next event on
// the same stream, per the stage's configured overlap policy. Non-complete
// phases (flow/counter/metadata events) always pass through untouched.
// The "tid" policy has already been applied in Process, by the time
// events reach here a colliding pair is either two genuinely overlapping
// device-stream events or two CPU events that were never truly
// overlapping in the first place, so it falls through to the same
// shift/clip handling as the default policy.
func recombineOverlaps(events []*tracevent.TraceEvent, c *Context) []*tracevent.TraceEvent {
	switch c.overlap {
	case config.OverlapDrop:
		return recombineDrop(events, c)
	case config.OverlapAsync:
		return recombineAsync(events, c)
	case config.OverlapWarn:
		return recombineWarn(events, c)
	default: // "" (unset), OverlapShift, OverlapTid
		return recombineShift(events, c)
	}
}

// recombineShift clips the earlier event's duration back to the start of
// the overlapping later event, restoring the non-overlapping nesting a
// single hardware stream's timeline must have.
func recombineShift(events []*tracevent.TraceEvent, c *Context) []*tracevent.TraceEvent {
	out := make([]*tracevent.TraceEvent, 0, len(events))
	var openEnd float64
	var haveOpen bool

	for _, e := range events {
		if e.Ph != tracevent.PhaseComplete {
			out = append(out, e)
			continue
		}
		if haveOpen && e.Ts < openEnd {
			prev := out[len(out)-1]
			if prev.Ph == tracevent.PhaseComplete {
				clippedDur := e.Ts - prev.Ts
				if clippedDur < 0 {
					clippedDur = 0
				}
				c.Warn("clipped overlapping event {d[name]} on pid {d[pid]} tid {d[tid]} by {d[amount]}us",
					map[string]any{"name": prev.Name, "pid": prev.Pid, "tid": prev.Tid, "amount": prev.Dur - clippedDur})
				prev.Dur = clippedDur
			}
		}
		out = append(out, e)
		openEnd = e.Ts + e.Dur
		haveOpen = true
	}
	return out
}

// recombineWarn keeps both events of an overlapping pair untouched, only
// recording the collision as a warning.
func recombineWarn(events []*tracevent.TraceEvent, c *Context) []*tracevent.TraceEvent {
	out := make([]*tracevent.TraceEvent, 0, len(events))
	var openEnd float64
	var haveOpen bool

	for _, e := range events {
		if e.Ph != tracevent.PhaseComplete {
			out = append(out, e)
			continue
		}
		if haveOpen && e.Ts < openEnd {
			prev := out[len(out)-1]
			c.Warn("overlapping event {d[name]} on pid {d[pid]} tid {d[tid]} starts before prior event ends",
				map[string]any{"name": prev.Name, "pid": prev.Pid, "tid": prev.Tid})
		}
		out = append(out, e)
		openEnd = e.Ts + e.Dur
		haveOpen = true
	}
	return out
}

// recombineDrop discards the later event of an overlapping pair outright.
func recombineDrop(events []*tracevent.TraceEvent, c *Context) []*tracevent.TraceEvent {
	out := make([]*tracevent.TraceEvent, 0, len(events))
	var openEnd float64
	var haveOpen bool

	for _, e := range events {
		if e.Ph != tracevent.PhaseComplete {
			out = append(out, e)
			continue
		}
		if haveOpen && e.Ts < openEnd {
			prev := out[len(out)-1]
			c.Warn("dropped overlapping event {d[name]} on pid {d[pid]} tid {d[tid]}",
				map[string]any{"name": e.Name, "pid": prev.Pid, "tid": prev.Tid})
			continue
		}
		out = append(out, e)
		openEnd = e.Ts + e.Dur
		haveOpen = true
	}
	return out
}

// recombineAsync rewrites an overlapping pair as a matched async begin/end
// so both spans survive in a viewer that otherwise cannot render
// overlapping complete events on one track: the earlier event becomes a
// "b" phase at its original start, paired with an "e" phase at its
// original end, sharing a synthetic id; the later event is left as-is.
func recombineAsync(events []*tracevent.TraceEvent, c *Context) []*tracevent.TraceEvent {
	out := make([]*tracevent.TraceEvent, 0, len(events))
	var openEnd float64
	var haveOpen bool
	var nextID int

	for _, e := range events {
		if e.Ph != tracevent.PhaseComplete {
			out = append(out, e)
			continue
		}
		if haveOpen && e.Ts < openEnd {
			prev := out[len(out)-1]
			if prev.Ph == tracevent.PhaseComplete {
				nextID++
				id := strconv.Itoa(nextID)
				begin := prev.Clone()
				begin.Ph = tracevent.PhaseAsyncBegin
				begin.ID = id
				end := prev.Clone()
				end.Ph = tracevent.PhaseAsyncEnd
				end.Ts = prev.Ts + prev.Dur
				end.ID = id
				out[len(out)-1] = begin
				out = append(out, end)
				c.Warn("converted overlapping event {d[name]} on pid {d[pid]} tid {d[tid]} to async begin/end",
					map[string]any{"name": prev.Name, "pid": prev.Pid, "tid": prev.Tid})
			}
		}
		out = append(out, e)
		openEnd = e.Ts + e.Dur
		haveOpen = true
	}
	return out
}
