package classify

import (
	"github.com/aiutrace/analyzer/internal/pipectx"
	"github.com/aiutrace/analyzer/internal/tracevent"
	"github.com/aiutrace/analyzer/internal/warnings"
)

// computeSpan tracks the first and last COMPUTE_EXEC ts observed for one
// job's batch, the window the second-pass classifier promotes stray
// DATA_IN/DATA_OUT events within.
type computeSpan struct {
	first, last float64
	seen        bool
}

func (s *computeSpan) observe(ts float64) {
	if !s.seen {
		s.first, s.last, s.seen = ts, ts, true
		return
	}
	if ts < s.first {
		s.first = ts
	}
	if ts > s.last {
		s.last = ts
	}
}

// BarrierContext runs spec §4.4's second-pass classification: any event
// whose first-pass class is still the plain DATA_IN/DATA_OUT base (i.e. it
// was never refined into a collective-protocol class) and whose ts falls
// strictly inside its job's COMPUTE_EXEC window gets promoted to
// MAIU_PROTOCOL_RECV_DATA/SEND_DATA, the signal that this transfer is
// actually interleaved with compute rather than a wireup/teardown transfer.
// A job's batch is its pid: every event sharing a pid belongs to the same
// correlation scope for this purpose.
//
// When zeroAlign is set, BarrierContext also owns --zero_align: it tracks
// the minimum ts across the whole trace during Collect and subtracts it
// from every event's ts during Apply. This mirrors the original
// categorize-pass context, which folds zero-align into the same
// collect/apply barrier as collective reclassification rather than running
// it as a separate pass.
type BarrierContext struct {
	pipectx.Context
	spans     map[int]*computeSpan
	zeroAlign bool
	haveFirst bool
	firstTs   float64
}

// NewBarrierContext returns the second-pass classification barrier stage.
func NewBarrierContext(warn *warnings.Accumulator, zeroAlign bool) *BarrierContext {
	return &BarrierContext{
		Context:   pipectx.NewContext("CAT2", warn),
		spans:     make(map[int]*computeSpan),
		zeroAlign: zeroAlign,
	}
}

// Collect records the ts of every COMPUTE_EXEC event, per pid, and (when
// zero-align is enabled) the minimum ts seen across all events.
func (b *BarrierContext) Collect(e pipectx.Event) error {
	if b.zeroAlign && (!b.haveFirst || e.Ts < b.firstTs) {
		b.firstTs, b.haveFirst = e.Ts, true
	}
	if e.ArgString("event_class") != tracevent.ClassComputeExec.String() {
		return nil
	}
	span, ok := b.spans[e.Pid]
	if !ok {
		span = &computeSpan{}
		b.spans[e.Pid] = span
	}
	span.observe(e.Ts)
	return nil
}

// Finalize has nothing to precompute: Apply consults the per-pid spans
// directly.
func (b *BarrierContext) Finalize() error { return nil }

// Apply promotes e's class when it qualifies, per the rule above, and
// shifts e.Ts to be relative to the trace's first event when zero-align is
// enabled.
func (b *BarrierContext) Apply(e pipectx.Event) ([]pipectx.Event, error) {
	ts := e.Ts
	if b.zeroAlign && b.haveFirst {
		e.Ts -= b.firstTs
	}
	class, ok := tracevent.ParseEventClass(e.ArgString("event_class"))
	if !ok || (class != tracevent.ClassDataIn && class != tracevent.ClassDataOut) {
		return []pipectx.Event{e}, nil
	}
	span, ok := b.spans[e.Pid]
	if !ok || !span.seen || !(ts > span.first && ts < span.last) {
		return []pipectx.Event{e}, nil
	}
	if class == tracevent.ClassDataIn {
		e.SetArg("event_class", tracevent.ClassMaiuProtocolRecvData.String())
	} else {
		e.SetArg("event_class", tracevent.ClassMaiuProtocolSendData.String())
	}
	return []pipectx.Event{e}, nil
}

// Drain has nothing left to flush once every event has replayed through
// Apply.
func (b *BarrierContext) Drain() ([]pipectx.Event, error) { return nil, nil }
