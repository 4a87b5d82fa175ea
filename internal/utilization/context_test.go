package utilization

import (
	"testing"

	"github.com/aiutrace/analyzer/internal/tracevent"
)

func kernelEvent(name string, dur float64, pid, tid int) *tracevent.TraceEvent {
	e := tracevent.New(tracevent.PhaseComplete, name, "", 0, dur, pid, tid)
	e.SetArg("event_class", tracevent.ClassComputeExec.String())
	return e
}

func TestFingerprintSimilarityExactMatchWins(t *testing.T) {
	fp := NewFingerprint()
	fp.Add("k1", 10)
	fp.Add("k2", 10)
	table := &Table{Entries: []KernelEntry{
		{Kernel: "k1", IdealCycles: 10},
		{Kernel: "k2", IdealCycles: 10},
	}}
	other := &Table{Entries: []KernelEntry{
		{Kernel: "zz", IdealCycles: 1000},
	}}

	result := MatchBest(fp, []*Table{other, table})
	if result.Table != table {
		t.Fatalf("expected the identical-sequence table to win")
	}
	if result.Uncertain {
		t.Fatalf("expected an exact digest/count/time match to score above the uncertain threshold")
	}
}

func TestMatchBestWarnsUncertainOnLowScore(t *testing.T) {
	fp := NewFingerprint()
	fp.Add("totally_unrelated_kernel", 1)
	table := &Table{Entries: []KernelEntry{{Kernel: "k1", IdealCycles: 10}}}

	result := MatchBest(fp, []*Table{table})
	if !result.Uncertain {
		t.Fatalf("expected a non-matching digest to score below the uncertain threshold")
	}
}

func TestMatchBestWarnsAmbiguousOnCloseScores(t *testing.T) {
	fp := NewFingerprint()
	fp.Add("k1", 10)
	tableA := &Table{Entries: []KernelEntry{{Kernel: "k1", IdealCycles: 10}}}
	tableB := &Table{Entries: []KernelEntry{{Kernel: "k1", IdealCycles: 10}}}

	result := MatchBest(fp, []*Table{tableA, tableB})
	if !result.Ambiguous {
		t.Fatalf("expected two identically-scoring tables to be flagged ambiguous")
	}
}

func TestMatchBestReturnsZeroValueForNoTables(t *testing.T) {
	fp := NewFingerprint()
	fp.Add("k1", 1)
	result := MatchBest(fp, nil)
	if result.Table != nil {
		t.Fatalf("expected a nil table when there are no candidates")
	}
}

func TestContextCollectFinalizeApplyAnnotatesEvents(t *testing.T) {
	table := &Table{Entries: []KernelEntry{
		{Kernel: "matmul_kernel", IdealCycles: 1000, Category: "compute"},
		{Kernel: "dma_copy_kernel", IdealCycles: 500, Category: "dma"},
	}}
	ctx := NewContext([]*Table{table}, 1e9, 1e9, nil) // 1GHz soc, 1GHz core

	e1 := kernelEvent("matmul_kernel", 2.0, 1, 1) // 2us actual, ideal 1us -> pt_active 0.5
	e2 := kernelEvent("dma_copy_kernel", 1.0, 1, 1)

	if err := ctx.Collect(e1); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if err := ctx.Collect(e2); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if err := ctx.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	out1, err := ctx.Apply(e1)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(out1) != 2 {
		t.Fatalf("expected kernel event plus PT Active counter, got %d events", len(out1))
	}
	if !out1[0].HasArg("pt_active") {
		t.Fatalf("expected pt_active to be set")
	}
	if got := out1[0].ArgString("category"); got != "compute" {
		t.Fatalf("category = %q, want compute", got)
	}
	if got, _ := out1[0].Arg("pt_active"); got != 0.5 {
		t.Fatalf("pt_active = %v, want 0.5 (1us ideal over 2us actual)", got)
	}
	if out1[1].Name != "PT Active" || out1[1].Ph != tracevent.PhaseCounter {
		t.Fatalf("expected a PT Active counter event, got %+v", out1[1])
	}

	if _, err := ctx.Apply(e2); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if len(ctx.Rollup) != 2 {
		t.Fatalf("expected 2 category rollups, got %d", len(ctx.Rollup))
	}
}

func TestUnmatchedStreamWarns(t *testing.T) {
	ctx := NewContext(nil, 1e9, 1e9, nil)
	e := kernelEvent("k1", 1, 1, 1)
	ctx.Collect(e)
	if err := ctx.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	out, err := ctx.Apply(e)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out[0].HasArg("pt_active") {
		t.Fatalf("expected unmatched stream to not annotate pt_active")
	}
}
