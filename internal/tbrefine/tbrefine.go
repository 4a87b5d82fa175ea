// Package tbrefine rewrites a normalized, classified trace into the shape
// TensorBoard's trace viewer expects: per-process track metadata, a
// collapsed tid namespace (so two jobs sharing a pid space don't collide),
// and a coarse "cat" field derived from each event's class rather than
// whatever string the emitter happened to set.
package tbrefine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aiutrace/analyzer/internal/ingest"
	"github.com/aiutrace/analyzer/internal/pipectx"
	"github.com/aiutrace/analyzer/internal/tracevent"
	"github.com/aiutrace/analyzer/internal/warnings"
)

var funcIndexSuffix = regexp.MustCompile(`_\[\d+\]$`)

// Context is the TensorBoard refinement stage.
type Context struct {
	pipectx.Context
	registry  *ingest.Registry
	keepNames bool // --keep_names: skip collapsing the "_[N]" function-index suffix

	pidIndex map[int]int
	seenPids []int
}

// NewContext returns a refinement stage. keepNames disables the default
// "_[N]" suffix collapsing, restoring each event's literal emitted name.
func NewContext(registry *ingest.Registry, keepNames bool, warn *warnings.Accumulator) *Context {
	return &Context{
		Context:   pipectx.NewContext("TBR", warn),
		registry:  registry,
		keepNames: keepNames,
		pidIndex:  make(map[int]int),
	}
}

// Process rewrites e's name, tid, and cat, and records e's pid for the
// process metadata emitted at Drain.
func (c *Context) Process(e pipectx.Event) ([]pipectx.Event, error) {
	if !c.keepNames {
		e.Name = funcIndexSuffix.ReplaceAllString(e.Name, "")
	}
	c.trackPid(e.Pid)
	e.Tid = e.Pid*100000 + e.Tid

	if c.isAccEvent(e) {
		e.Cat = c.catForAccEvent(e)
	} else {
		e.Cat = c.catForRegularEvent(e)
	}

	return []pipectx.Event{e}, nil
}

func (c *Context) trackPid(pid int) {
	if _, ok := c.pidIndex[pid]; ok {
		return
	}
	c.pidIndex[pid] = len(c.seenPids)
	c.seenPids = append(c.seenPids, pid)
}

// isAccEvent reports whether e belongs to the accelerator's dialect, per
// that dialect's coarse acc_event_cat predicate, as opposed to a host-side
// runtime event the dialect has no special category for.
func (c *Context) isAccEvent(e *tracevent.TraceEvent) bool {
	dialect, _ := c.registry.Dialect(e.Pid)
	return dialect.Is(e, tracevent.CatEventCat)
}

// catForAccEvent derives a coarse TensorBoard category from the event's
// already-computed class.
func (c *Context) catForAccEvent(e *tracevent.TraceEvent) string {
	class := e.ArgString("event_class")
	switch {
	case strings.HasPrefix(class, "COMPUTE"):
		return "compute"
	case class == tracevent.ClassDataIn.String(), class == tracevent.ClassDataOut.String(), class == tracevent.ClassSenDataConvert.String():
		return "data_transfer"
	case strings.HasPrefix(class, "MAIU_COLLECTIVE"), strings.HasPrefix(class, "MAIU_HDMA"):
		return "collective"
	case class == tracevent.ClassMaiuWireup.String(), class == tracevent.ClassMaiuBarrier.String(), class == tracevent.ClassRoundtripFlex.String():
		return "sync"
	default:
		return "other"
	}
}

// catForRegularEvent keeps a host-side event's own category when the
// emitter set one, defaulting to "host_runtime" otherwise.
func (c *Context) catForRegularEvent(e *tracevent.TraceEvent) string {
	if e.Cat != "" {
		return e.Cat
	}
	return "host_runtime"
}

// Drain emits process_name/process_labels/process_sort_index metadata
// events for every pid observed, in first-seen order.
func (c *Context) Drain() ([]pipectx.Event, error) {
	var out []pipectx.Event
	for i, pid := range c.seenPids {
		out = append(out, metaEvent(pid, "process_name", map[string]any{"name": fmt.Sprintf("pid %d", pid)}))

		label := "unknown"
		if job, ok := c.registry.Job(pid); ok && job.Dialect.Name != "" {
			label = job.Dialect.Name
		}
		out = append(out, metaEvent(pid, "process_labels", map[string]any{"labels": label}))
		out = append(out, metaEvent(pid, "process_sort_index", map[string]any{"sort_index": i}))
	}
	return out, nil
}

func metaEvent(pid int, name string, args map[string]any) *tracevent.TraceEvent {
	e := tracevent.New(tracevent.PhaseMetadata, name, "", 0, 0, pid, 0)
	for k, v := range args {
		e.SetArg(k, v)
	}
	return e
}
