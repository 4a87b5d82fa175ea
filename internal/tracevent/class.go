package tracevent

// EventClass is the closed taxonomy every compute/data-transfer/collective
// event gets reduced to during classification. Downstream stages (sort,
// utilization, derive) switch on EventClass rather than re-inspecting names.
type EventClass int

const (
	ClassUnknown EventClass = iota
	ClassOther
	ClassComputePrep
	ClassComputeExec
	ClassDataIn
	ClassDataOut
	ClassSenDataConvert
	ClassMaiuBarrier
	ClassMaiuWireup
	ClassRoundtripFlex
	ClassRoundtripAiu
	ClassMaiuProtocolSerial
	ClassMaiuHdmaProtocolWaitData
	ClassMaiuHdmaProtocolWaitAck
	ClassMaiuHdmaProtocolSignalData
	ClassMaiuHdmaProtocolSignalAck
	ClassMaiuHdmaProtocolMonitorNotice
	ClassMaiuHdmaProtocolSendData
	ClassMaiuHdmaProtocolRecvData
	ClassMaiuP2prdmaProtocolSendData
	ClassMaiuP2prdmaProtocolRecvData
	ClassMaiuProtocolSendData
	ClassMaiuProtocolRecvData
)

var classNames = map[EventClass]string{
	ClassUnknown:                       "UNKNOWN",
	ClassOther:                         "OTHER",
	ClassComputePrep:                   "COMPUTE_PREP",
	ClassComputeExec:                   "COMPUTE_EXEC",
	ClassDataIn:                        "DATA_IN",
	ClassDataOut:                       "DATA_OUT",
	ClassSenDataConvert:                "SEN_DATA_CONVERT",
	ClassMaiuBarrier:                   "MAIU_BARRIER",
	ClassMaiuWireup:                    "MAIU_WIREUP",
	ClassRoundtripFlex:                 "ROUNDTRIP_FLEX",
	ClassRoundtripAiu:                  "ROUNDTRIP_AIU",
	ClassMaiuProtocolSerial:            "MAIU_PROTOCOL_SERIAL",
	ClassMaiuHdmaProtocolWaitData:      "MAIU_HDMA_PROTOCOL_WAIT_DATA",
	ClassMaiuHdmaProtocolWaitAck:       "MAIU_HDMA_PROTOCOL_WAIT_ACK",
	ClassMaiuHdmaProtocolSignalData:    "MAIU_HDMA_PROTOCOL_SIGNAL_DATA",
	ClassMaiuHdmaProtocolSignalAck:     "MAIU_HDMA_PROTOCOL_SIGNAL_ACK",
	ClassMaiuHdmaProtocolMonitorNotice: "MAIU_HDMA_PROTOCOL_MONITOR_NOTICE",
	ClassMaiuHdmaProtocolSendData:      "MAIU_HDMA_PROTOCOL_SEND_DATA",
	ClassMaiuHdmaProtocolRecvData:      "MAIU_HDMA_PROTOCOL_RECV_DATA",
	ClassMaiuP2prdmaProtocolSendData:   "MAIU_P2PRDMA_PROTOCOL_SEND_DATA",
	ClassMaiuP2prdmaProtocolRecvData:   "MAIU_P2PRDMA_PROTOCOL_RECV_DATA",
	ClassMaiuProtocolSendData:          "MAIU_PROTOCOL_SEND_DATA",
	ClassMaiuProtocolRecvData:          "MAIU_PROTOCOL_RECV_DATA",
}

var classByName map[string]EventClass

func init() {
	classByName = make(map[string]EventClass, len(classNames))
	for c, name := range classNames {
		classByName[name] = c
	}
}

// ParseEventClass looks up the EventClass previously rendered by String, for
// stages (the second-pass barrier classifier) that need to read back a class
// another stage already wrote into args["event_class"].
func ParseEventClass(name string) (EventClass, bool) {
	c, ok := classByName[name]
	return c, ok
}

func (c EventClass) String() string {
	if s, ok := classNames[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// MarshalJSON renders the class by name, not its underlying int, so exported
// traces and reports stay stable across reordering of the const block.
func (c EventClass) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// IsCompute reports whether c is one of the compute-engine classes.
func (c EventClass) IsCompute() bool {
	return c == ClassComputePrep || c == ClassComputeExec
}

// IsDataTransfer reports whether c moves data between host and device.
func (c EventClass) IsDataTransfer() bool {
	return c == ClassDataIn || c == ClassDataOut || c == ClassSenDataConvert
}

// IsCollectiveProtocol reports whether c belongs to the MAIU/HDMA/P2P-RDMA
// collective handshake family (wait/signal/send/recv phases of a collective
// operation, or its local serial setup).
func (c EventClass) IsCollectiveProtocol() bool {
	switch c {
	case ClassMaiuProtocolSerial,
		ClassMaiuHdmaProtocolWaitData, ClassMaiuHdmaProtocolWaitAck,
		ClassMaiuHdmaProtocolSignalData, ClassMaiuHdmaProtocolSignalAck,
		ClassMaiuHdmaProtocolMonitorNotice,
		ClassMaiuHdmaProtocolSendData, ClassMaiuHdmaProtocolRecvData,
		ClassMaiuP2prdmaProtocolSendData, ClassMaiuP2prdmaProtocolRecvData,
		ClassMaiuProtocolSendData, ClassMaiuProtocolRecvData:
		return true
	default:
		return false
	}
}
