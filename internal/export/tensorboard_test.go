package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aiutrace/analyzer/internal/tracevent"
)

func TestWorkerIDIsPidMod1000(t *testing.T) {
	if WorkerID(2001) != 1 {
		t.Fatalf("expected worker 1, got %d", WorkerID(2001))
	}
	if WorkerID(3) != 3 {
		t.Fatalf("expected worker 3, got %d", WorkerID(3))
	}
}

func TestSplitByWorkerGroupsByModdedPid(t *testing.T) {
	events := []*tracevent.TraceEvent{
		tracevent.New(tracevent.PhaseComplete, "a", "", 0, 1, 1, 0),
		tracevent.New(tracevent.PhaseComplete, "b", "", 0, 1, 1001, 0),
		tracevent.New(tracevent.PhaseComplete, "c", "", 0, 1, 2, 0),
	}
	byWorker := SplitByWorker(events)
	if len(byWorker[1]) != 2 {
		t.Fatalf("expected 2 events for worker 1 (pid 1 and pid 1001), got %d", len(byWorker[1]))
	}
	if len(byWorker[2]) != 1 {
		t.Fatalf("expected 1 event for worker 2, got %d", len(byWorker[2]))
	}
}

func TestWriteTensorBoardFilesWritesPerWorkerAndAggregate(t *testing.T) {
	dir := t.TempDir()
	events := []*tracevent.TraceEvent{
		tracevent.New(tracevent.PhaseComplete, "a", "", 0, 1, 1, 0),
		tracevent.New(tracevent.PhaseComplete, "b", "", 0, 1, 2, 0),
	}

	paths, aggPath, err := WriteTensorBoardFiles(dir, events, nil)
	if err != nil {
		t.Fatalf("WriteTensorBoardFiles: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 worker files, got %d", len(paths))
	}
	for worker, path := range paths {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("worker %d file missing: %v", worker, err)
		}
		if filepath.Dir(path) != dir {
			t.Fatalf("expected file under %s, got %s", dir, path)
		}
	}
	if _, err := os.Stat(aggPath); err != nil {
		t.Fatalf("aggregate file missing: %v", err)
	}
}
