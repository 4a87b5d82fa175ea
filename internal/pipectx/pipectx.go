// Package pipectx defines the shared stage contract every pipeline stage
// implements, the hash-bucketed event queue used by the sort/overlap
// stage, and the two-phase barrier contract for stages whose
// output depends on statistics gathered across the whole trace.
package pipectx

import (
	"github.com/aiutrace/analyzer/internal/applog"
	"github.com/aiutrace/analyzer/internal/tracevent"
	"github.com/aiutrace/analyzer/internal/warnings"
)

// Event is the unit every stage consumes and produces.
type Event = *tracevent.TraceEvent

// Stage is a single-pass pipeline stage: it sees each event once, in order,
// and may emit zero or more events for it. Drain is called exactly once
// after the last input event, to flush anything the stage buffered (e.g.
// unmatched flow starts, pending firmware pairs).
type Stage interface {
	Name() string
	Process(e Event) ([]Event, error)
	Drain() ([]Event, error)
}

// BarrierStage is a stage whose output for any one event depends on
// statistics gathered across the entire trace (kernel-stream fingerprint
// tables, power statistics). The driver runs these in two passes:
// Collect sees every event once to build up stage-local statistics,
// Finalize runs once between the passes to turn those statistics into
// whatever the Apply pass consults (matched tables, computed weights), and
// Apply then replays every event once using the finalized results.
type BarrierStage interface {
	Name() string
	Collect(e Event) error
	Finalize() error
	Apply(e Event) ([]Event, error)
	Drain() ([]Event, error)
}

// Context is the base embedded by stateful stages: it binds a stage name to
// the shared warning accumulator so a stage can issue warnings without
// threading the accumulator through every method signature.
type Context struct {
	name string
	warn *warnings.Accumulator
}

// NewContext returns a Context for a stage named name, issuing warnings
// into w (nil is valid; warnings are then dropped).
func NewContext(name string, w *warnings.Accumulator) Context {
	return Context{name: name, warn: w}
}

// Name returns the stage name this context was built for.
func (c *Context) Name() string { return c.name }

// Warn issues a templated warning tagged with this stage's name. A
// malformed template (mismatched placeholder/data keys) is logged as an
// error rather than propagated, since a warning call site should never be
// able to abort the pipeline over a logging mistake.
func (c *Context) Warn(template string, data map[string]any) {
	if c.warn == nil {
		return
	}
	if err := c.warn.Issue(c.name, template, data); err != nil {
		applog.Error(c.name, "invalid warning template: %v", err)
	}
}

// QueueKey identifies one bucket of a hash-bucketed event queue: either a
// specific (pid, tid) stream, or the single global bucket used by stages
// that need one shared ordering (e.g. exporting a single timeline).
type QueueKey struct {
	Pid    int
	Tid    int
	Global bool
}

// GlobalKey is the QueueKey for stages that do not bucket per-stream.
var GlobalKey = QueueKey{Global: true}

// KeyFor returns e's per-stream bucket key, or GlobalKey if perStream is
// false.
func KeyFor(e Event, perStream bool) QueueKey {
	if !perStream {
		return GlobalKey
	}
	return QueueKey{Pid: e.Pid, Tid: e.Tid}
}

// Queue buckets events by QueueKey, preserving both arrival order within a
// bucket and the order buckets were first created, so a stage that fans
// events back out deterministically reproduces bucket order across runs.
type Queue struct {
	order   []QueueKey
	buckets map[QueueKey][]Event
}

// NewQueue returns an empty bucketed queue.
func NewQueue() *Queue {
	return &Queue{buckets: make(map[QueueKey][]Event)}
}

// Push appends e to key's bucket, creating the bucket if this is its first
// event.
func (q *Queue) Push(key QueueKey, e Event) {
	if _, ok := q.buckets[key]; !ok {
		q.order = append(q.order, key)
	}
	q.buckets[key] = append(q.buckets[key], e)
}

// Keys returns every bucket key in first-seen order.
func (q *Queue) Keys() []QueueKey {
	out := make([]QueueKey, len(q.order))
	copy(out, q.order)
	return out
}

// Bucket returns the events pushed under key, or nil if key was never used.
func (q *Queue) Bucket(key QueueKey) []Event {
	return q.buckets[key]
}

// Len returns the number of distinct buckets.
func (q *Queue) Len() int { return len(q.order) }

// All drains every bucket in key order, concatenating them. Useful for
// stages that bucket only to group related events (e.g. per-stream
// overlap recombination) but must still emit a single flat sequence.
func (q *Queue) All() []Event {
	var out []Event
	for _, key := range q.order {
		out = append(out, q.buckets[key]...)
	}
	return out
}
