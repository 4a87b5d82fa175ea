package flows

import (
	"math"
	"testing"

	"github.com/aiutrace/analyzer/internal/tracevent"
	"github.com/aiutrace/analyzer/internal/warnings"
)

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func newCorrEvent(name string, ts, dur float64, corr string) *tracevent.TraceEvent {
	e := tracevent.New(tracevent.PhaseComplete, name, "kernel", ts, dur, 1, 1)
	e.SetArg("correlation", corr)
	return e
}

func flowStart(ts float64, id string, pid, tid int) *tracevent.TraceEvent {
	e := tracevent.New(tracevent.PhaseFlowStart, "launch", "", ts, 0, pid, tid)
	e.ID = id
	return e
}

// runBarrier drives events through the full Collect/Finalize/Apply/Drain
// cycle, the way the pipeline driver's barrierStep does.
func runBarrier(t *testing.T, ctx *LaunchContext, events []*tracevent.TraceEvent) []*tracevent.TraceEvent {
	t.Helper()
	for _, e := range events {
		if err := ctx.Collect(e); err != nil {
			t.Fatalf("Collect: %v", err)
		}
	}
	if err := ctx.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	var out []*tracevent.TraceEvent
	for _, e := range events {
		res, err := ctx.Apply(e)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		out = append(out, res...)
	}
	drained, err := ctx.Drain()
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	return append(out, drained...)
}

func TestApplyEmitsFlowFromSrcToEachKernel(t *testing.T) {
	ctx := NewLaunchContext(nil)

	src := flowStart(0, "1", 1, 1)
	launch := newCorrEvent("Launch ControlBlock", 0, 1, "1")
	kernel := newCorrEvent("Cmpt Exec", 5, 2, "1")

	out := runBarrier(t, ctx, []*tracevent.TraceEvent{src, launch, kernel})

	var starts, finishes int
	for _, e := range out {
		if e == src {
			continue
		}
		switch e.Ph {
		case tracevent.PhaseFlowStart:
			starts++
		case tracevent.PhaseFlowFinish:
			finishes++
			if e.BP != "e" {
				t.Fatalf("expected flow finish to carry bp=e, got %q", e.BP)
			}
		}
	}
	if starts != 1 || finishes != 1 {
		t.Fatalf("expected 1 flow start/finish pair for the one kernel event, got %d/%d", starts, finishes)
	}
}

func TestApplyEmitsOneFlowPerKernelEvent(t *testing.T) {
	ctx := NewLaunchContext(nil)

	src := flowStart(0, "2", 1, 1)
	k1 := newCorrEvent("Cmpt Exec", 5, 1, "2")
	k2 := newCorrEvent("Cmpt Exec", 10, 1, "2")

	out := runBarrier(t, ctx, []*tracevent.TraceEvent{src, k1, k2})

	var starts int
	for _, e := range out {
		if e == src {
			continue
		}
		if e.Ph == tracevent.PhaseFlowStart {
			starts++
		}
	}
	if starts != 2 {
		t.Fatalf("expected one flow arrow per kernel event, got %d", starts)
	}
}

func TestNoSrcMeansNoFlowSynthesized(t *testing.T) {
	ctx := NewLaunchContext(nil)
	kernel := newCorrEvent("Cmpt Exec", 5, 1, "3")

	out := runBarrier(t, ctx, []*tracevent.TraceEvent{kernel})

	if len(out) != 1 {
		t.Fatalf("expected just the original kernel event with no src recorded, got %d events", len(out))
	}
}

func TestDrainEmitsLastTsToScheduleWaitArrow(t *testing.T) {
	ctx := NewLaunchContext(nil)

	src := flowStart(0, "4", 1, 1)
	kernel := newCorrEvent("Cmpt Exec", 5, 2, "4")
	wait := newCorrEvent("Schedule Wait", 10, 3, "4")

	out := runBarrier(t, ctx, []*tracevent.TraceEvent{src, kernel, wait})

	const wantLastTs = 5 + 2 - 0.001
	var drainStart, drainFinish *tracevent.TraceEvent
	for _, e := range out {
		if e.Ph == tracevent.PhaseFlowStart && closeEnough(e.Ts, wantLastTs) {
			drainStart = e
		}
		if e.Ph == tracevent.PhaseFlowFinish && e.Ts == 13 {
			drainFinish = e
		}
	}
	if drainStart == nil || drainFinish == nil {
		t.Fatalf("expected a closing arrow from last_ts (%v) to schedwait end (13), got: %+v", wantLastTs, out)
	}
	if drainStart.ID != drainFinish.ID {
		t.Fatalf("expected the closing arrow's start/finish to share an id")
	}
}

func TestDrainSkipsCorrelationsWithoutScheduleWait(t *testing.T) {
	ctx := NewLaunchContext(nil)
	src := flowStart(0, "5", 1, 1)
	kernel := newCorrEvent("Cmpt Exec", 5, 1, "5")

	out := runBarrier(t, ctx, []*tracevent.TraceEvent{src, kernel})

	var finishes int
	for _, e := range out {
		if e.Ph == tracevent.PhaseFlowFinish {
			finishes++
		}
	}
	if finishes != 1 {
		t.Fatalf("expected only the Apply-phase arrow, no drain-time closing arrow, got %d flow finishes", finishes)
	}
}

func TestOutOfRangeKernelEventIsIgnoredAndWarned(t *testing.T) {
	acc := warnings.NewAccumulator()
	ctx := NewLaunchContext(acc)

	src := flowStart(0, "6", 1, 1)
	wait := newCorrEvent("Schedule Wait", 4, 1, "6") // window ends at ts=5
	late := newCorrEvent("Cmpt Exec", 10, 5, "6")    // ends at ts=15, out of range

	out := runBarrier(t, ctx, []*tracevent.TraceEvent{src, wait, late})

	for _, e := range out {
		if e.Ph == tracevent.PhaseFlowStart && e.Ts > 5 {
			t.Fatalf("expected the out-of-range kernel to never move last_ts past the schedule-wait window, got start at %v", e.Ts)
		}
	}
	if acc.Len() == 0 {
		t.Fatalf("expected a warning for the out-of-range kernel event")
	}
}
