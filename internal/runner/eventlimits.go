package runner

import (
	"github.com/aiutrace/analyzer/internal/config"
	"github.com/aiutrace/analyzer/internal/tracevent"
)

// applyEventLimits bounds events per cfg.EventLimits: a timestamp window
// (ts_start/ts_end) is applied first and unconditionally, then skip/count
// bookkeeping is applied to whatever survives, except for event names
// listed in no_count_types, which pass the skip/count budget through
// untouched (metadata and marker events typically want this, so a tight
// --event_limits=count doesn't silently eat the process_name event a
// later stage needs).
func applyEventLimits(events []*tracevent.TraceEvent, limits config.EventLimits) []*tracevent.TraceEvent {
	if limits.Skip == 0 && limits.Count == 0 && limits.TsStart == 0 && limits.TsEnd == 0 && len(limits.NoCountTypes) == 0 {
		return events
	}

	noCount := make(map[string]bool, len(limits.NoCountTypes))
	for _, name := range limits.NoCountTypes {
		noCount[name] = true
	}

	out := make([]*tracevent.TraceEvent, 0, len(events))
	skipped, kept := 0, 0
	for _, e := range events {
		if e.Ts < limits.TsStart {
			continue
		}
		if limits.TsEnd != 0 && e.Ts >= limits.TsEnd {
			continue
		}
		if noCount[e.Name] {
			out = append(out, e)
			continue
		}
		if skipped < limits.Skip {
			skipped++
			continue
		}
		if limits.Count > 0 && kept >= limits.Count {
			continue
		}
		kept++
		out = append(out, e)
	}
	return out
}
