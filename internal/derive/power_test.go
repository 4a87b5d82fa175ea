package derive

import (
	"testing"

	"github.com/aiutrace/analyzer/internal/tracevent"
)

func powerEvent(ts, watts float64) *tracevent.TraceEvent {
	e := tracevent.New(tracevent.PhaseCounter, "power_sample", "", ts, 0, 1, 1)
	e.SetArg("power_watts", watts)
	return e
}

func execEvent(ts, dur float64) *tracevent.TraceEvent {
	e := tracevent.New(tracevent.PhaseComplete, "Cmpt Exec", "", ts, dur, 1, 1)
	e.SetArg("event_class", tracevent.ClassComputeExec.String())
	return e
}

func TestPowerStatsSplitByKernelActivity(t *testing.T) {
	ctx := NewPowerContext(nil)

	ctx.Collect(execEvent(10, 5)) // kernel busy [10,15]

	ctx.Collect(powerEvent(0, 50))  // before kernel: "without kernels"
	ctx.Collect(powerEvent(12, 90)) // during kernel: "with kernels"
	ctx.Collect(powerEvent(20, 40)) // after kernel: "without kernels"

	if err := ctx.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if ctx.WithKernels.MeanNonZero != 90 {
		t.Fatalf("expected with-kernels mean 90, got %v", ctx.WithKernels.MeanNonZero)
	}
	if ctx.WithoutKernels.MeanNonZero != 45 {
		t.Fatalf("expected without-kernels mean of 50/40 = 45, got %v", ctx.WithoutKernels.MeanNonZero)
	}
}

func TestMergeIntervalsCollapsesOverlaps(t *testing.T) {
	merged := mergeIntervals([]interval{{0, 10}, {5, 15}, {20, 25}})
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged intervals, got %d: %+v", len(merged), merged)
	}
	if merged[0].start != 0 || merged[0].end != 15 {
		t.Fatalf("expected first merged interval [0,15], got %+v", merged[0])
	}
}

func TestDrainEmitsStatsEvents(t *testing.T) {
	ctx := NewPowerContext(nil)
	ctx.Collect(powerEvent(0, 10))
	ctx.Finalize()

	out, err := ctx.Drain()
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 stats events, got %d", len(out))
	}
}
