package runner

import (
	"github.com/aiutrace/analyzer/internal/config"
	"github.com/aiutrace/analyzer/internal/ingest"
	"github.com/aiutrace/analyzer/internal/tracevent"
)

// bootstrapRegistry scans events once to infer each pid's dialect from
// the same signatures tracevent.FLEX/TORCH use for their acc_event_cat
// category (presence of the TS1 hardware counter for FLEX, a "kernel" cat
// for TORCH), then registers every pid with that dialect and the
// frequency override from cfg. A pid with no recognizable signature falls
// back to FLEX, matching Registry.Dialect's own fallback for traces with
// no explicit per-job dialect metadata.
func bootstrapRegistry(events []*tracevent.TraceEvent, cfg config.Config) *ingest.Registry {
	registry := ingest.NewRegistry()

	detected := make(map[int]tracevent.Dialect)
	for _, e := range events {
		if _, ok := detected[e.Pid]; ok {
			continue
		}
		switch {
		case e.HasArg("TS1"):
			detected[e.Pid] = tracevent.FLEX
		case e.Cat == "kernel":
			detected[e.Pid] = tracevent.TORCH
		}
	}

	seen := make(map[int]bool)
	for _, e := range events {
		if seen[e.Pid] {
			continue
		}
		seen[e.Pid] = true

		dialect, ok := detected[e.Pid]
		if !ok {
			dialect = tracevent.FLEX
		}
		registry.RegisterJob(e.Pid, ingest.JobInfo{
			Pid:        e.Pid,
			Dialect:    dialect,
			SocFreqHz:  cfg.SocFreqHz,
			CoreFreqHz: cfg.CoreFreqHz,
		})
	}
	return registry
}
