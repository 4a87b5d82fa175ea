// Package flows synthesizes the two families of flow-arrow events that
// connect otherwise-independent trace records: launch-to-kernel-to-
// schedule-wait arrows (this file) and host-to-firmware-event arrows
// (firmware.go).
package flows

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aiutrace/analyzer/internal/pipectx"
	"github.com/aiutrace/analyzer/internal/tracevent"
	"github.com/aiutrace/analyzer/internal/warnings"
)

// launchPattern identifies the host-side launch event that starts a
// launch->kernel->schedule-wait chain; a bare name check for "Launch" is
// too loose since schedule-wait events and unrelated host ops can also
// carry that substring.
var launchPattern = regexp.MustCompile(`Launch.*ControlBlock`)

// launchEntry is one correlation id's record, built up over Collect and
// consulted by Apply/Drain: src is the flow-start event that originally
// named this id (flow events carry no args.correlation of their own, so
// it is keyed by id directly), launch/schedwait are the two host-side
// milestones, and lastTs/lastPid/lastTid track the latest kernel event
// seen for this id that still falls inside the schedule-wait window.
type launchEntry struct {
	src       *tracevent.TraceEvent
	launch    *tracevent.TraceEvent
	schedwait *tracevent.TraceEvent
	lastTs    float64
	lastPid   int
	lastTid   int
}

// LaunchContext synthesizes launch->kernel->schedule-wait flow arrows. It
// is a two-phase barrier: Collect builds one record per correlation id
// across the whole trace (a kernel event's schedule-wait bound may not be
// known yet when the kernel itself is collected, and the final
// last_ts->schedwait arrow needs every kernel event accounted for before
// it can be emitted), Apply then re-walks the trace synthesizing the
// src->kernel arrow for every kernel event whose id has a src, and Drain
// emits the closing last_ts->schedwait arrow for every id that has both.
type LaunchContext struct {
	pipectx.Context
	entries map[string]*launchEntry
	order   []string
	flowSeq int
}

// NewLaunchContext returns a launch-flow synthesis stage.
func NewLaunchContext(warn *warnings.Accumulator) *LaunchContext {
	return &LaunchContext{
		Context: pipectx.NewContext("FLOWS", warn),
		entries: make(map[string]*launchEntry),
	}
}

func correlationID(e *tracevent.TraceEvent) (string, bool) {
	v, ok := e.Arg("correlation")
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%v", v), true
}

// getOrCreate returns id's entry, creating it from e's own ts/pid/tid if
// this is the first time anything has touched it - matching the source's
// behavior of seeding last_ts from whichever event (src, launch,
// schedwait, or kernel) happens to observe the id first.
func (c *LaunchContext) getOrCreate(id string, e *tracevent.TraceEvent) *launchEntry {
	entry, ok := c.entries[id]
	if !ok {
		entry = &launchEntry{lastTs: e.Ts, lastPid: e.Pid, lastTid: e.Tid}
		c.entries[id] = entry
		c.order = append(c.order, id)
	}
	return entry
}

// observeID keeps the synthetic flow-id sequence above every numeric
// correlation/flow id seen in the trace, so newly minted flow ids can
// never collide with one the input already used.
func (c *LaunchContext) observeID(id string) {
	if n, err := strconv.Atoi(id); err == nil && n > c.flowSeq {
		c.flowSeq = n
	}
}

func (c *LaunchContext) newFlowID() string {
	c.flowSeq++
	return strconv.Itoa(c.flowSeq)
}

// Collect builds each correlation id's {src, launch, schedwait, last_ts,
// last_pid_tid} record. A flow-start event is keyed by its own id; every
// other relevant event is keyed by args["correlation"], with id "0"
// treated as "no real correlation" and ignored.
func (c *LaunchContext) Collect(e pipectx.Event) error {
	if e.Ph == tracevent.PhaseFlowStart {
		c.observeID(e.ID)
		c.getOrCreate(e.ID, e).src = e
		return nil
	}
	if e.Ph != tracevent.PhaseComplete {
		return nil
	}
	corr, ok := correlationID(e)
	if !ok {
		return nil
	}

	switch {
	case launchPattern.MatchString(e.Name):
		if corr == "0" {
			return nil
		}
		c.observeID(corr)
		c.getOrCreate(corr, e).launch = e

	case strings.Contains(e.Name, "ScheduleWait") || strings.Contains(e.Name, "Schedule Wait"):
		if corr == "0" {
			return nil
		}
		c.observeID(corr)
		c.getOrCreate(corr, e).schedwait = e

	case e.Cat == "kernel":
		if corr == "0" {
			return nil
		}
		c.observeID(corr)
		c.updateLastTs(c.getOrCreate(corr, e), e)
	}
	return nil
}

// updateLastTs advances entry's last_ts to e's end (minus a small epsilon,
// so a kernel ending exactly when the schedule wait ends still counts as
// in-range) when that candidate both improves on the current last_ts and
// does not run past the schedule-wait window already known for this id.
// An event that fails either check is out of range: warn and leave the
// entry untouched.
func (c *LaunchContext) updateLastTs(entry *launchEntry, e *tracevent.TraceEvent) {
	candidate := e.Ts + e.Dur - 0.001
	bound := candidate
	if entry.schedwait != nil {
		bound = entry.schedwait.Ts + entry.schedwait.Dur
	}
	if candidate <= bound && candidate > entry.lastTs {
		entry.lastTs = candidate
		entry.lastPid, entry.lastTid = e.Pid, e.Tid
		return
	}
	c.Warn("ignoring kernel event {d[name]} on pid {d[pid]} tid {d[tid]} with ts after its schedule wait window",
		map[string]any{"name": e.Name, "pid": e.Pid, "tid": e.Tid})
}

// Finalize has nothing to precompute: Apply and Drain consult the
// finished per-id entries directly.
func (c *LaunchContext) Finalize() error { return nil }

// Apply emits e unchanged, plus a freshly-minted flow-start/flow-finish
// pair from its id's src event to e, for every kernel event whose
// correlation id has a recorded src. Unlike the collection-phase record,
// this runs once per qualifying kernel event, not once per id: a
// correlation id with several kernel events gets one arrow per kernel.
func (c *LaunchContext) Apply(e pipectx.Event) ([]pipectx.Event, error) {
	out := []pipectx.Event{e}
	if e.Ph != tracevent.PhaseComplete || e.Cat != "kernel" {
		return out, nil
	}
	if launchPattern.MatchString(e.Name) || strings.Contains(e.Name, "ScheduleWait") || strings.Contains(e.Name, "Schedule Wait") {
		return out, nil
	}
	corr, ok := correlationID(e)
	if !ok {
		return out, nil
	}
	entry, ok := c.entries[corr]
	if !ok || entry.src == nil {
		return out, nil
	}
	out = append(out, c.missingFlowPair(entry.src, e)...)
	return out, nil
}

// missingFlowPair synthesizes the arrow connecting a launch's src event to
// one of its kernel events, minted under a fresh id so it never collides
// with the original flow ids already present in the trace.
func (c *LaunchContext) missingFlowPair(launcher, kernel *tracevent.TraceEvent) []*tracevent.TraceEvent {
	id := c.newFlowID()

	s := launcher.Clone()
	s.Ph = tracevent.PhaseFlowStart
	s.ID = id
	s.Dur = 0

	f := kernel.Clone()
	f.Ph = tracevent.PhaseFlowFinish
	f.ID = id
	f.Name = launcher.Name
	f.Cat = launcher.Cat
	f.BP = "e"
	f.Dur = 0

	return []*tracevent.TraceEvent{s, f}
}

// Drain emits, for every correlation id that ended up with both a src and
// a schedule-wait event, the closing arrow from the last in-range kernel
// event's location to the schedule-wait's own end - the flow that shows a
// viewer where the host's wait actually picked up the kernel stream's
// progress.
func (c *LaunchContext) Drain() ([]pipectx.Event, error) {
	var out []pipectx.Event
	for _, id := range c.order {
		entry := c.entries[id]
		if entry.src == nil || entry.schedwait == nil {
			continue
		}
		newID := c.newFlowID()

		s := entry.src.Clone()
		s.Ph = tracevent.PhaseFlowStart
		s.ID = newID
		s.Pid = entry.lastPid
		s.Tid = entry.lastTid
		s.Ts = entry.lastTs
		s.Dur = 0

		f := entry.schedwait.Clone()
		f.Ph = tracevent.PhaseFlowFinish
		f.ID = newID
		f.Name = entry.src.Name
		f.Cat = entry.src.Cat
		f.Ts = entry.schedwait.Ts + entry.schedwait.Dur
		f.Dur = 0
		f.BP = "e"

		out = append(out, s, f)
	}
	return out, nil
}
