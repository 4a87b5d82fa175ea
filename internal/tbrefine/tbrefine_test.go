package tbrefine

import (
	"testing"

	"github.com/aiutrace/analyzer/internal/ingest"
	"github.com/aiutrace/analyzer/internal/tracevent"
)

func newRegistryWithFlex(pid int) *ingest.Registry {
	r := ingest.NewRegistry()
	r.RegisterJob(pid, ingest.JobInfo{Dialect: tracevent.FLEX})
	return r
}

func TestNameSuffixCollapsedByDefault(t *testing.T) {
	r := newRegistryWithFlex(1)
	ctx := NewContext(r, false, nil)

	e := tracevent.New(tracevent.PhaseComplete, "Cmpt Exec_[3]", "", 0, 1, 1, 2)
	out, err := ctx.Process(e)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out[0].Name != "Cmpt Exec" {
		t.Fatalf("expected suffix stripped, got %q", out[0].Name)
	}
}

func TestKeepNamesPreservesSuffix(t *testing.T) {
	r := newRegistryWithFlex(1)
	ctx := NewContext(r, true, nil)

	e := tracevent.New(tracevent.PhaseComplete, "Cmpt Exec_[3]", "", 0, 1, 1, 2)
	out, err := ctx.Process(e)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out[0].Name != "Cmpt Exec_[3]" {
		t.Fatalf("expected suffix preserved, got %q", out[0].Name)
	}
}

func TestTidCollapsedIntoPidNamespace(t *testing.T) {
	r := newRegistryWithFlex(3)
	ctx := NewContext(r, false, nil)

	e := tracevent.New(tracevent.PhaseComplete, "Cmpt Exec", "", 0, 1, 3, 7)
	out, _ := ctx.Process(e)
	if out[0].Tid != 3*100000+7 {
		t.Fatalf("expected collapsed tid, got %d", out[0].Tid)
	}
}

func TestAccEventClassifiedByEventClass(t *testing.T) {
	r := newRegistryWithFlex(1)
	ctx := NewContext(r, false, nil)

	e := tracevent.New(tracevent.PhaseComplete, "Cmpt Exec", "", 0, 1, 1, 2)
	e.SetArg("TS1", "10")
	e.SetArg("event_class", tracevent.ClassComputeExec.String())

	out, _ := ctx.Process(e)
	if out[0].Cat != "compute" {
		t.Fatalf("expected cat=compute, got %q", out[0].Cat)
	}
}

func TestRegularHostEventKeepsOwnCat(t *testing.T) {
	r := newRegistryWithFlex(1)
	ctx := NewContext(r, false, nil)

	e := tracevent.New(tracevent.PhaseComplete, "malloc", "runtime", 0, 1, 1, 2)
	out, _ := ctx.Process(e)
	if out[0].Cat != "runtime" {
		t.Fatalf("expected original cat preserved, got %q", out[0].Cat)
	}
}

func TestRegularHostEventDefaultsCatWhenEmpty(t *testing.T) {
	r := newRegistryWithFlex(1)
	ctx := NewContext(r, false, nil)

	e := tracevent.New(tracevent.PhaseComplete, "malloc", "", 0, 1, 1, 2)
	out, _ := ctx.Process(e)
	if out[0].Cat != "host_runtime" {
		t.Fatalf("expected default host_runtime cat, got %q", out[0].Cat)
	}
}

func TestDrainEmitsMetadataPerPidInFirstSeenOrder(t *testing.T) {
	r := ingest.NewRegistry()
	r.RegisterJob(5, ingest.JobInfo{Dialect: tracevent.TORCH})
	ctx := NewContext(r, false, nil)

	ctx.Process(tracevent.New(tracevent.PhaseComplete, "a", "", 0, 1, 5, 0))
	ctx.Process(tracevent.New(tracevent.PhaseComplete, "b", "", 0, 1, 2, 0))

	out, err := ctx.Drain()
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(out) != 6 {
		t.Fatalf("expected 3 metadata events per pid * 2 pids = 6, got %d", len(out))
	}
	if out[0].Pid != 5 || out[0].Name != "process_name" {
		t.Fatalf("expected first pid seen (5) first, got %+v", out[0])
	}
	if out[1].Name != "process_labels" {
		t.Fatalf("expected process_labels second, got %q", out[1].Name)
	}
}
