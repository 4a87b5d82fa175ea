package flows

import (
	"github.com/google/uuid"

	"github.com/aiutrace/analyzer/internal/applog"
	"github.com/aiutrace/analyzer/internal/pipectx"
	"github.com/aiutrace/analyzer/internal/tracevent"
	"github.com/aiutrace/analyzer/internal/warnings"
)

// FirmwareContext synthesizes firmware-side duration events (derived from
// a host event's fw_begin_time and its normalized TS5 counter) and a flow
// arrow connecting the host event to its firmware counterpart. It also
// tracks the observed host/device timestamp gap across the whole trace,
// which is useful for spotting a miscalibrated clock frequency.
type FirmwareContext struct {
	pipectx.Context
	haveDiff bool
	minDiff  float64
	maxDiff  float64
}

// NewFirmwareContext returns a firmware-event synthesis stage.
func NewFirmwareContext(warn *warnings.Accumulator) *FirmwareContext {
	return &FirmwareContext{Context: pipectx.NewContext("FLOWS", warn)}
}

// isRelevant reports whether e carries both the fields needed to place a
// firmware event: the firmware-reported begin time and a normalized TS5
// counter reading.
func isRelevant(e *tracevent.TraceEvent) bool {
	return e.HasArg("fw_begin_time") && e.HasArg("TS5_us")
}

// Process emits e unchanged, plus a synthesized firmware duration event and
// its connecting flow arrow when e carries firmware timing fields.
func (c *FirmwareContext) Process(e pipectx.Event) ([]pipectx.Event, error) {
	out := []pipectx.Event{e}
	if !isRelevant(e) {
		return out, nil
	}

	fwTs, fwDur, ok := c.deriveFirmwareTiming(e)
	if !ok {
		return out, nil
	}

	fw := e.Clone()
	fw.Name = "fw: " + e.Name
	fw.Ts = fwTs
	fw.Dur = fwDur

	out = append(out, fw)
	out = append(out, c.firmwareFlowPair(e, fw)...)
	return out, nil
}

// deriveFirmwareTiming aligns the synthesized firmware event's end to the
// host event's own end, and its start to the firmware-reported begin time,
// tracking the gap between the host's view of "now" (its own ts+dur) and
// the device's TS5 reading for drift diagnostics.
func (c *FirmwareContext) deriveFirmwareTiming(e *tracevent.TraceEvent) (ts, dur float64, ok bool) {
	beginRaw, _ := e.Arg("fw_begin_time")
	ts5Raw, _ := e.Arg("TS5_us")
	begin, okBegin := asFloat(beginRaw)
	ts5, okTs5 := asFloat(ts5Raw)
	if !okBegin || !okTs5 {
		return 0, 0, false
	}

	hostEnd := e.Ts + e.Dur
	c.trackDiff(hostEnd - ts5)

	fwDur := hostEnd - begin
	if fwDur < 0 {
		fwDur = 0
	}
	return begin, fwDur, true
}

func (c *FirmwareContext) trackDiff(d float64) {
	if !c.haveDiff {
		c.minDiff, c.maxDiff = d, d
		c.haveDiff = true
		return
	}
	if d < c.minDiff {
		c.minDiff = d
	}
	if d > c.maxDiff {
		c.maxDiff = d
	}
}

// firmwareFlowPair builds the flow arrow from the firmware event to the
// host event that triggered it.
func (c *FirmwareContext) firmwareFlowPair(host, fw *tracevent.TraceEvent) []*tracevent.TraceEvent {
	id := uuid.NewString()

	s := fw.Clone()
	s.Ph = tracevent.PhaseFlowStart
	s.ID = id
	s.Name = "fw_flow"
	s.Dur = 0

	f := host.Clone()
	f.Ph = tracevent.PhaseFlowFinish
	f.ID = id
	f.Name = "fw_flow"
	f.BP = "e"
	f.Dur = 0
	f.Ts = host.Ts + host.Dur

	return []*tracevent.TraceEvent{s, f}
}

// Drain logs the observed host/device timestamp gap range; a wide range
// usually indicates a miscalibrated --freq setting.
func (c *FirmwareContext) Drain() ([]pipectx.Event, error) {
	if c.haveDiff {
		applog.Info("FLOWS", "firmware host/device ts diff range: [%.3f, %.3f]us", c.minDiff, c.maxDiff)
	}
	return nil, nil
}
