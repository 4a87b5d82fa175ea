package normalize

import (
	"strconv"
	"testing"

	"github.com/aiutrace/analyzer/internal/ingest"
	"github.com/aiutrace/analyzer/internal/tracevent"
	"github.com/aiutrace/analyzer/internal/warnings"
)

func TestNameUnification(t *testing.T) {
	cases := map[string]string{
		"RDMA Receive Complete": "Rdma Recv Complete",
		"Cmpt Exec":             "Cmpt Exec",
	}
	for in, want := range cases {
		if got := unifyName(in); got != want {
			t.Fatalf("unifyName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHexToInt(t *testing.T) {
	v, ok := hexToInt("0x1A")
	if !ok || v != 26 {
		t.Fatalf("hexToInt(0x1A) = (%d, %v), want (26, true)", v, ok)
	}
	if _, ok := hexToInt("not-hex"); ok {
		t.Fatalf("expected hexToInt to reject non-hex input")
	}
}

func TestProcessDecodesAndReconstructsCounters(t *testing.T) {
	reg := ingest.NewRegistry()
	reg.RegisterJob(1, ingest.JobInfo{SocFreqHz: 1e9})
	ctx := NewContext(reg, nil, false)

	e := tracevent.New(tracevent.PhaseComplete, "RDMA Prep", "", 0, 1, 1, 1)
	e.SetArg("TS1", "0x64") // 100

	out, err := ctx.Process(e)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 event out, got %d", len(out))
	}
	if out[0].Name != "Rdma Prep" {
		t.Fatalf("expected unified name, got %q", out[0].Name)
	}
	if got := out[0].ArgString("TS1"); got != "100" {
		t.Fatalf("expected TS1 decoded to decimal, got %q", got)
	}
	if !out[0].HasArg("TS1_ticks") || !out[0].HasArg("TS1_us") {
		t.Fatalf("expected reconstructed tick/us args to be set")
	}
	if !out[0].HasArg("pid") || !out[0].HasArg("tid") {
		t.Fatalf("expected pid/tid hoisted into args")
	}
}

func TestProcessWarnsOnUnparseableCounter(t *testing.T) {
	reg := ingest.NewRegistry()
	acc := warnings.NewAccumulator()
	ctx := NewContext(reg, acc, false)

	e := tracevent.New(tracevent.PhaseComplete, "n", "", 0, 1, 1, 1)
	e.SetArg("TS2", "not-hex")

	if _, err := ctx.Process(e); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if acc.Len() == 0 {
		t.Fatalf("expected a warning for the unparseable TS2 value")
	}
}

func TestIntraEventCorrectionCascadesThroughLaterFields(t *testing.T) {
	reg := ingest.NewRegistry()
	reg.RegisterJob(1, ingest.JobInfo{SocFreqHz: 1e9})
	ctx := NewContext(reg, nil, false)

	e := tracevent.New(tracevent.PhaseComplete, "Cmpt Exec", "", 0, 1, 1, 1)
	e.SetArg("TS1", "0xA")  // 10
	e.SetArg("TS2", "0x14") // 20
	e.SetArg("TS3", "0x5")  // 5, wrapped relative to TS2
	e.SetArg("TS4", "0xF")  // 15, still below TS3's corrected value: cascades
	e.SetArg("TS5", "0x19") // 25, still below TS4's corrected value: cascades

	out, err := ctx.Process(e)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	span := uint64(1) << 32
	wantTS3 := strconv.FormatUint(span+5, 10)
	wantTS4 := strconv.FormatUint(span+15, 10)
	wantTS5 := strconv.FormatUint(span+25, 10)
	if got := out[0].ArgString("TS3"); got != wantTS3 {
		t.Fatalf("TS3 = %q, want %q", got, wantTS3)
	}
	if got := out[0].ArgString("TS4"); got != wantTS4 {
		t.Fatalf("TS4 = %q, want %q", got, wantTS4)
	}
	if got := out[0].ArgString("TS5"); got != wantTS5 {
		t.Fatalf("TS5 = %q, want %q", got, wantTS5)
	}
	if got := out[0].ArgString("TSxOF"); got != "TS3" {
		t.Fatalf("TSxOF = %q, want the first triggering field TS3", got)
	}
}

func TestIntraEventCorrectionStillNonMonotonicFailsUnlessIgnoreCrit(t *testing.T) {
	newEvent := func() *tracevent.TraceEvent {
		e := tracevent.New(tracevent.PhaseComplete, "Cmpt Exec", "", 0, 1, 1, 1)
		e.SetArg("TS1", "0xA")  // 10
		e.SetArg("TS2", "0x14") // 20
		e.SetArg("TS3", "0x5")  // 5, wraps once
		e.SetArg("TS4", "0x2")  // 2, still below TS3's corrected value even after one wrap
		return e
	}

	reg := ingest.NewRegistry()
	reg.RegisterJob(1, ingest.JobInfo{SocFreqHz: 1e9})

	strict := NewContext(reg, nil, false)
	if _, err := strict.Process(newEvent()); err == nil {
		t.Fatalf("expected an error for a sequence still out of order after correction")
	}

	acc := warnings.NewAccumulator()
	lenient := NewContext(reg, acc, true)
	if _, err := lenient.Process(newEvent()); err != nil {
		t.Fatalf("expected ignoreCrit to downgrade the failure to a warning, got error: %v", err)
	}
	if acc.Len() == 0 {
		t.Fatalf("expected a warning even when ignoreCrit suppresses the error")
	}
}
