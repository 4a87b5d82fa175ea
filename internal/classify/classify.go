// Package classify reduces every event to a tracevent.EventClass: first a
// dialect-driven base class from the event's category predicates, then a
// dialect-independent refinement pass for the collective-protocol (MAIU/
// HDMA/P2P-RDMA handshake) family, recognized by event-name substrings that
// are the same across both input dialects and gated on the acc_collective
// predicate. A second-pass barrier stage (barrier.go) runs after this one
// and reclassifies any DATA_IN/DATA_OUT event whose ts falls inside its
// job's COMPUTE_EXEC span.
package classify

import (
	"strings"

	"github.com/aiutrace/analyzer/internal/ingest"
	"github.com/aiutrace/analyzer/internal/pipectx"
	"github.com/aiutrace/analyzer/internal/tracevent"
	"github.com/aiutrace/analyzer/internal/warnings"
)

// Context is the classification stage.
type Context struct {
	pipectx.Context
	registry *ingest.Registry
}

// NewContext returns a classification stage resolving each event's dialect
// from registry.
func NewContext(registry *ingest.Registry, warn *warnings.Accumulator) *Context {
	return &Context{Context: pipectx.NewContext("CAT", warn), registry: registry}
}

// Process classifies e in place, storing the result under args["event_class"]
// and returns it unchanged in count.
func (c *Context) Process(e pipectx.Event) ([]pipectx.Event, error) {
	dialect, ok := c.registry.Dialect(e.Pid)
	if !ok {
		c.Warn("pid {d[pid]} has no registered dialect, defaulting to FLEX", map[string]any{"pid": e.Pid})
	}
	class := baseClass(dialect, e)
	if strings.Contains(e.Name, "AIU Roundtrip") {
		class = tracevent.ClassRoundtripAiu
	}
	if dialect.Is(e, tracevent.CatCollective) {
		class = refineCollectiveProtocol(e, class)
	}
	e.SetArg("event_class", class.String())
	return []pipectx.Event{e}, nil
}

// Drain has nothing to flush: classification is purely per-event.
func (c *Context) Drain() ([]pipectx.Event, error) { return nil, nil }

// baseClass runs the dialect's category predicate table against e in
// priority order, returning the first matching class. This replaces what
// the original expressed as a chain of dialect-specific substring checks
// with one ordered lookup against a compiled predicate table.
func baseClass(d tracevent.Dialect, e *tracevent.TraceEvent) tracevent.EventClass {
	class := tracevent.ClassOther
	switch {
	case d.Is(e, tracevent.CatComputePrep):
		class = tracevent.ClassComputePrep
	case d.Is(e, tracevent.CatKernel):
		class = tracevent.ClassComputeExec
	case d.Is(e, tracevent.CatDataTransferH2D):
		class = tracevent.ClassDataIn
	case d.Is(e, tracevent.CatDataTransferD2H):
		class = tracevent.ClassDataOut
	}

	if d.Is(e, tracevent.CatDataConvert) {
		class = tracevent.ClassSenDataConvert
	}
	if d.Is(e, tracevent.CatRdmaPrepSync) {
		class = tracevent.ClassMaiuWireup
	}
	if d.Is(e, tracevent.CatBarrier) {
		class = tracevent.ClassMaiuBarrier
	}
	if d.Is(e, tracevent.CatSupernodeLaunch) || d.Is(e, tracevent.CatSupernodeExec) {
		class = tracevent.ClassRoundtripFlex
	}
	return class
}

// refineCollectiveProtocol recognizes the MAIU/HDMA/P2P-RDMA collective
// handshake family by event-name substrings that do not vary across
// dialects. Grounded on
// _examples/original_source/src/aiu_trace_analyzer/pipeline/categorize.py:
// the original's three-way branch on "Host DMA"/"HCOLL" presence, "DLM
// Wait" as a prefix-less fallback, and everything else falling through to
// the local-serial/P2P-RDMA cases. class is the base class computed before
// this refinement runs; it is only consulted as a fallback for the
// DATA_IN/DATA_OUT cases, which every branch below preserves.
func refineCollectiveProtocol(e *tracevent.TraceEvent, class tracevent.EventClass) tracevent.EventClass {
	name := e.Name

	switch {
	case strings.Contains(name, "Host DMA") || strings.Contains(name, "HCOLL"):
		switch {
		case strings.Contains(name, "Wdone DmaI"),
			strings.Contains(name, "Wait for Data Avail Notice"),
			strings.Contains(name, "Wait for Notice (gather notifications)"),
			strings.Contains(name, "R5 Wait DATA"):
			return tracevent.ClassMaiuHdmaProtocolWaitData
		case strings.Contains(name, "Wait for ACK"), strings.Contains(name, "R5 Wait ACK"):
			return tracevent.ClassMaiuHdmaProtocolWaitAck
		case strings.Contains(name, "Send ACK Instruction"), strings.Contains(name, "R5 Send ACK"):
			return tracevent.ClassMaiuHdmaProtocolSignalAck
		case strings.Contains(name, "Send Instruction"), strings.Contains(name, "HCOLL Signal"), strings.Contains(name, "R5 Send DATA"):
			return tracevent.ClassMaiuHdmaProtocolSignalData
		case strings.Contains(name, "Wait for Notice"), strings.Contains(name, "Wait for Delivery Notice"):
			return tracevent.ClassMaiuHdmaProtocolMonitorNotice
		case class == tracevent.ClassDataOut:
			return tracevent.ClassMaiuHdmaProtocolSendData
		case class == tracevent.ClassDataIn:
			return tracevent.ClassMaiuHdmaProtocolRecvData
		default:
			return class
		}

	// DLM Wait might not carry the "Host DMA" prefix; assume it is waiting
	// on data.
	case strings.Contains(name, "DLM Wait"):
		return tracevent.ClassMaiuHdmaProtocolWaitData

	default:
		switch {
		case strings.Contains(name, "Set BcList"), strings.Contains(name, "Xseg to rank"):
			return tracevent.ClassMaiuProtocolSerial
		case class == tracevent.ClassDataOut:
			return tracevent.ClassMaiuP2prdmaProtocolSendData
		case class == tracevent.ClassDataIn:
			return tracevent.ClassMaiuP2prdmaProtocolRecvData
		default:
			return class
		}
	}
}
