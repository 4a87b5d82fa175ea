package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aiutrace/analyzer/internal/tracevent"
)

// WorkerID derives a TensorBoard worker id from a pid: "pid mod 1000",
// per the wire contract (a pid ≥ 1000 indicates a host proxy process
// sharing the accelerator rank's worker id).
func WorkerID(pid int) int {
	return pid % 1000
}

// SplitByWorker groups events by their TensorBoard worker id, preserving
// each group's relative event order.
func SplitByWorker(events []*tracevent.TraceEvent) map[int][]*tracevent.TraceEvent {
	out := make(map[int][]*tracevent.TraceEvent)
	for _, e := range events {
		w := WorkerID(e.Pid)
		out[w] = append(out[w], e)
	}
	return out
}

// WriteTensorBoardFiles writes one "_worker_<N>.pt.trace.json" file per
// worker plus an "aggregate.pt.trace.json" file containing every event,
// into dir. Returns the per-worker file paths and the aggregate path.
func WriteTensorBoardFiles(dir string, events []*tracevent.TraceEvent, devices []DeviceProperty) (map[int]string, string, error) {
	byWorker := SplitByWorker(events)
	paths := make(map[int]string, len(byWorker))

	for worker, evs := range byWorker {
		name := fmt.Sprintf("_worker_%d.pt.trace.json", worker)
		path := filepath.Join(dir, name)
		file := &TraceFile{TraceEvents: evs, DisplayTimeUnit: "ms", DeviceProperties: devices}
		data, err := MarshalChromeJSON(file)
		if err != nil {
			return nil, "", fmt.Errorf("export: marshal worker %d: %w", worker, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, "", fmt.Errorf("export: write worker %d: %w", worker, err)
		}
		paths[worker] = path
	}

	aggPath := filepath.Join(dir, "aggregate.pt.trace.json")
	aggFile := &TraceFile{TraceEvents: events, DisplayTimeUnit: "ms", DeviceProperties: devices}
	data, err := MarshalChromeJSON(aggFile)
	if err != nil {
		return nil, "", fmt.Errorf("export: marshal aggregate: %w", err)
	}
	if err := os.WriteFile(aggPath, data, 0o644); err != nil {
		return nil, "", fmt.Errorf("export: write aggregate: %w", err)
	}

	return paths, aggPath, nil
}
