package runner

import (
	"testing"

	"github.com/aiutrace/analyzer/internal/config"
	"github.com/aiutrace/analyzer/internal/tracevent"
)

func TestBootstrapRegistryDetectsFlexByTS1Arg(t *testing.T) {
	e := tracevent.New(tracevent.PhaseComplete, "Cmpt Exec", "", 0, 1, 7, 1)
	e.SetArg("TS1", "0x10")
	registry := bootstrapRegistry([]*tracevent.TraceEvent{e}, config.Config{SocFreqHz: 1e9})

	dialect, _ := registry.Dialect(7)
	if dialect.Name != "FLEX" {
		t.Fatalf("expected FLEX dialect, got %q", dialect.Name)
	}
	job, ok := registry.Job(7)
	if !ok || job.SocFreqHz != 1e9 {
		t.Fatalf("expected SocFreqHz 1e9 registered, got %+v", job)
	}
}

func TestBootstrapRegistryDetectsTorchByKernelCat(t *testing.T) {
	e := tracevent.New(tracevent.PhaseComplete, "matmul", "kernel", 0, 1, 3, 1)
	registry := bootstrapRegistry([]*tracevent.TraceEvent{e}, config.Config{})

	dialect, _ := registry.Dialect(3)
	if dialect.Name != "TORCH" {
		t.Fatalf("expected TORCH dialect, got %q", dialect.Name)
	}
}

func TestBootstrapRegistryFallsBackToFlexWithoutSignature(t *testing.T) {
	e := tracevent.New(tracevent.PhaseComplete, "anything", "", 0, 1, 9, 1)
	registry := bootstrapRegistry([]*tracevent.TraceEvent{e}, config.Config{})

	dialect, _ := registry.Dialect(9)
	if dialect.Name != "FLEX" {
		t.Fatalf("expected fallback FLEX dialect, got %q", dialect.Name)
	}
}

func TestBootstrapRegistryRegistersEveryDistinctPid(t *testing.T) {
	events := []*tracevent.TraceEvent{
		tracevent.New(tracevent.PhaseComplete, "a", "", 0, 1, 1, 0),
		tracevent.New(tracevent.PhaseComplete, "b", "", 0, 1, 2, 0),
		tracevent.New(tracevent.PhaseComplete, "c", "", 0, 1, 1, 0),
	}
	registry := bootstrapRegistry(events, config.Config{})
	if got := registry.Pids(); len(got) != 2 {
		t.Fatalf("expected 2 distinct pids, got %v", got)
	}
}
