package utilization

import (
	"github.com/aiutrace/analyzer/internal/pipectx"
	"github.com/aiutrace/analyzer/internal/tracevent"
	"github.com/aiutrace/analyzer/internal/warnings"
)

type streamKey struct {
	pid int
	tid int
}

// CategoryRollup accumulates ideal-vs-actual cycle time for one kernel
// category across the whole trace, the basis for the per-category PT-active
// roll-up table in the exported report.
type CategoryRollup struct {
	Category       string
	IdealCyclesSum float64
	ActualUs       float64
	Count          int
}

// PTActive returns the category's aggregate PT-active ratio across the
// whole trace: how much of the wall time actually spent running this
// category's kernels was doing useful (ideal-cycle-accounted) work, capped
// at 1.0 since a kernel running faster than the compiler's ideal estimate
// is still fully utilized. This is the roll-up table's number, distinct
// from the per-event ratio Apply attaches to each kernel-exec event.
func (r *CategoryRollup) PTActive(coreFreqHz float64) float64 {
	if r.ActualUs <= 0 || coreFreqHz <= 0 {
		return 0
	}
	idealUs := r.IdealCyclesSum / coreFreqHz * 1e6
	ratio := idealUs / r.ActualUs
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// Context is the PT-active utilization barrier stage: Collect builds a
// per-(pid,tid) kernel fingerprint, Finalize matches each fingerprint
// against the supplied ideal-cycle tables, and Apply annotates each
// kernel-exec event with its own ideal cycle count and PT-active ratio
// while accumulating the category roll-up.
type Context struct {
	pipectx.Context
	tables      []*Table
	socFreqHz   float64
	coreFreqHz  float64
	fingerprint map[streamKey]*Fingerprint
	matched     map[streamKey]*Table
	matchIdx    map[streamKey]int // next unmatched entry index to consume per stream, during Apply
	Rollup      map[string]*CategoryRollup
}

// NewContext returns a utilization stage matching against tables.
// socFreqHz is stored on the context but not consulted by this stage;
// coreFreqHz converts an individual kernel's ideal
// cycle count into an ideal duration for its own PT-active ratio.
func NewContext(tables []*Table, socFreqHz, coreFreqHz float64, warn *warnings.Accumulator) *Context {
	return &Context{
		Context:     pipectx.NewContext("UTL", warn),
		tables:      tables,
		socFreqHz:   socFreqHz,
		coreFreqHz:  coreFreqHz,
		fingerprint: make(map[streamKey]*Fingerprint),
		matched:     make(map[streamKey]*Table),
		matchIdx:    make(map[streamKey]int),
		Rollup:      make(map[string]*CategoryRollup),
	}
}

func isKernelExec(e pipectx.Event) bool {
	return e.ArgString("event_class") == tracevent.ClassComputeExec.String()
}

// Collect appends kernel-exec event names to their stream's fingerprint.
func (c *Context) Collect(e pipectx.Event) error {
	if !isKernelExec(e) {
		return nil
	}
	key := streamKey{e.Pid, e.Tid}
	fp, ok := c.fingerprint[key]
	if !ok {
		fp = NewFingerprint()
		c.fingerprint[key] = fp
	}
	fp.Add(e.Name, e.Dur)
	return nil
}

// Finalize matches every stream's fingerprint against the candidate
// tables, warning when a stream has no usable match at all, or when its
// best match scored low or was nearly tied with the runner-up.
func (c *Context) Finalize() error {
	for key, fp := range c.fingerprint {
		result := MatchBest(fp, c.tables)
		if result.Table == nil {
			c.Warn("no ideal-cycle table matched kernel stream pid {d[pid]} tid {d[tid]}",
				map[string]any{"pid": key.pid, "tid": key.tid})
			continue
		}
		if result.Uncertain {
			c.Warn("uncertain match for kernel stream pid {d[pid]} tid {d[tid]}: best similarity {d[score]}",
				map[string]any{"pid": key.pid, "tid": key.tid, "score": result.Score})
		}
		if result.Ambiguous {
			c.Warn("ambiguous match for kernel stream pid {d[pid]} tid {d[tid]}: top two tables scored within {d[margin]} of each other",
				map[string]any{"pid": key.pid, "tid": key.tid, "margin": ambiguousMargin})
		}
		c.matched[key] = result.Table
	}
	return nil
}

// Apply annotates e (if it is a kernel-exec event on a matched stream)
// with args["ideal_cycles"], args["category"] and args["pt_active"] - the
// ratio between this single kernel's own ideal duration and its actual
// duration, not the running category average - folds its contribution
// into the category roll-up, and emits a matching "PT Active" counter
// event so the ratio is visible on its own track in a viewer.
func (c *Context) Apply(e pipectx.Event) ([]pipectx.Event, error) {
	if !isKernelExec(e) {
		return []pipectx.Event{e}, nil
	}
	key := streamKey{e.Pid, e.Tid}
	table, ok := c.matched[key]
	if !ok {
		return []pipectx.Event{e}, nil
	}
	idx := c.matchIdx[key]
	if idx >= len(table.Entries) {
		return []pipectx.Event{e}, nil
	}
	entry := table.Entries[idx]
	c.matchIdx[key] = idx + 1

	e.SetArg("ideal_cycles", entry.IdealCycles)
	e.SetArg("category", entry.Category)

	rollup, ok := c.Rollup[entry.Category]
	if !ok {
		rollup = &CategoryRollup{Category: entry.Category}
		c.Rollup[entry.Category] = rollup
	}
	rollup.IdealCyclesSum += entry.IdealCycles
	rollup.ActualUs += e.Dur
	rollup.Count++

	ptActive := perEventPTActive(entry.IdealCycles, c.coreFreqHz, e.Dur)
	if ptActive > 1 {
		c.Warn("kernel {d[name]} on pid {d[pid]} tid {d[tid]} ran faster than its ideal cycle estimate ({d[ratio]})",
			map[string]any{"name": e.Name, "pid": e.Pid, "tid": e.Tid, "ratio": ptActive})
		ptActive = 1
	}
	e.SetArg("pt_active", ptActive)

	counter := e.Clone()
	counter.Ph = tracevent.PhaseCounter
	counter.Name = "PT Active"
	counter.Dur = 0
	counter.Args = tracevent.NewArgs()
	counter.SetArg("ratio", ptActive)

	return []pipectx.Event{e, counter}, nil
}

// perEventPTActive computes one kernel's own PT-active ratio: its
// compiler-estimated ideal duration over the time it actually took.
func perEventPTActive(idealCycles, coreFreqHz, actualUs float64) float64 {
	if actualUs <= 0 || coreFreqHz <= 0 {
		return 0
	}
	idealUs := idealCycles / coreFreqHz * 1e6
	return idealUs / actualUs
}

// Drain has nothing left to flush once every stream has replayed.
func (c *Context) Drain() ([]pipectx.Event, error) { return nil, nil }
