// Package derive synthesizes events whose content is computed from other
// events rather than read directly off the wire: bandwidth counters for
// data-transfer events, and per-sample power statistics over the whole
// trace.
package derive

import (
	"github.com/aiutrace/analyzer/internal/pipectx"
	"github.com/aiutrace/analyzer/internal/tracevent"
	"github.com/aiutrace/analyzer/internal/warnings"
)

// BandwidthContext emits a synthetic counter event alongside every
// data-transfer event that carries a byte count, recording the transfer's
// effective bandwidth in GB/s.
type BandwidthContext struct {
	pipectx.Context
}

// NewBandwidthContext returns a bandwidth-counter synthesis stage.
func NewBandwidthContext(warn *warnings.Accumulator) *BandwidthContext {
	return &BandwidthContext{Context: pipectx.NewContext("DERIVE", warn)}
}

func isDataTransfer(e pipectx.Event) bool {
	switch e.ArgString("event_class") {
	case tracevent.ClassDataIn.String(), tracevent.ClassDataOut.String():
		return true
	default:
		return false
	}
}

// Process emits e unchanged, plus a bandwidth counter event when e is a
// data-transfer event carrying a "bytes" arg and a nonzero duration.
func (c *BandwidthContext) Process(e pipectx.Event) ([]pipectx.Event, error) {
	out := []pipectx.Event{e}
	if !isDataTransfer(e) || e.Dur <= 0 {
		return out, nil
	}
	bytesVal, ok := e.Arg("bytes")
	if !ok {
		return out, nil
	}
	bytesF, ok := toFloat(bytesVal)
	if !ok {
		c.Warn("event {d[name]} on pid {d[pid]} has non-numeric bytes arg", map[string]any{"name": e.Name, "pid": e.Pid})
		return out, nil
	}

	gbps := (bytesF / 1e9) / (e.Dur / 1e6)

	counter := e.Clone()
	counter.Ph = tracevent.PhaseCounter
	counter.Name = e.Name + " bandwidth"
	counter.Dur = 0
	counter.Args = tracevent.NewArgs()
	counter.SetArg("GB/s", gbps)

	return []pipectx.Event{e, counter}, nil
}

// Drain has nothing to flush: bandwidth synthesis is purely per-event.
func (c *BandwidthContext) Drain() ([]pipectx.Event, error) { return nil, nil }

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
