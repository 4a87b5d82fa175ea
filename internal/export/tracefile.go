// Package export serializes a finished pipeline run into the output
// formats external tools expect: a single Chrome/Perfetto trace JSON
// file, one TensorBoard-compatible file per worker plus an aggregate, and
// a flat tabular row format for DataFrame-style consumers.
package export

import (
	"fmt"
	"io"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jwriter"

	"github.com/aiutrace/analyzer/internal/tracevent"
)

// DeviceProperty is one entry of the Chrome/Perfetto "deviceProperties"
// array describing an accelerator device track.
type DeviceProperty struct {
	ID   int
	Type string
	Name string
	Core int
}

// TraceFile is the Chrome/Perfetto trace-file wrapper: the top-level JSON
// object containing the event array plus the handful of recognized
// sibling keys. It hand-implements easyjson.Marshaler so a
// millions-of-events export avoids encoding/json's reflection-driven
// struct walk.
type TraceFile struct {
	TraceEvents      []*tracevent.TraceEvent
	DisplayTimeUnit  string
	OtherData        map[string]any
	DeviceProperties []DeviceProperty
}

var _ easyjson.Marshaler = (*TraceFile)(nil)

// MarshalEasyJSON writes f as Chrome Trace Event JSON.
func (f *TraceFile) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"traceEvents":[`)
	for i, e := range f.TraceEvents {
		if i > 0 {
			w.RawByte(',')
		}
		writeEvent(w, e)
	}
	w.RawByte(']')

	if f.DisplayTimeUnit != "" {
		w.RawByte(',')
		w.RawString(`"displayTimeUnit":`)
		w.String(f.DisplayTimeUnit)
	}

	if len(f.DeviceProperties) > 0 {
		w.RawByte(',')
		w.RawString(`"deviceProperties":[`)
		for i, d := range f.DeviceProperties {
			if i > 0 {
				w.RawByte(',')
			}
			w.RawByte('{')
			w.RawString(`"id":`)
			w.Int(d.ID)
			w.RawByte(',')
			w.RawString(`"type":`)
			w.String(d.Type)
			w.RawByte(',')
			w.RawString(`"name":`)
			w.String(d.Name)
			w.RawByte(',')
			w.RawString(`"core":`)
			w.Int(d.Core)
			w.RawByte('}')
		}
		w.RawByte(']')
	}

	if len(f.OtherData) > 0 {
		w.RawByte(',')
		w.RawString(`"otherData":`)
		writeMap(w, f.OtherData)
	}

	w.RawByte('}')
}

// writeEvent writes one TraceEvent in Chrome Trace Event JSON shape,
// omitting fields the wire format treats as optional when empty/zero
// (cat, dur outside "X" phase, id, bp).
func writeEvent(w *jwriter.Writer, e *tracevent.TraceEvent) {
	w.RawByte('{')
	w.RawString(`"ph":`)
	w.String(string(e.Ph))
	w.RawByte(',')
	w.RawString(`"name":`)
	w.String(e.Name)

	if e.Cat != "" {
		w.RawByte(',')
		w.RawString(`"cat":`)
		w.String(e.Cat)
	}

	w.RawByte(',')
	w.RawString(`"ts":`)
	w.Float64(e.Ts)

	if e.Ph == tracevent.PhaseComplete {
		w.RawByte(',')
		w.RawString(`"dur":`)
		w.Float64(e.Dur)
	}

	w.RawByte(',')
	w.RawString(`"pid":`)
	w.Int(e.Pid)
	w.RawByte(',')
	w.RawString(`"tid":`)
	w.Int(e.Tid)

	if e.ID != "" {
		w.RawByte(',')
		w.RawString(`"id":`)
		w.String(e.ID)
	}
	if e.BP != "" {
		w.RawByte(',')
		w.RawString(`"bp":`)
		w.String(e.BP)
	}

	if e.Args != nil && e.Args.Len() > 0 {
		w.RawByte(',')
		w.RawString(`"args":`)
		writeArgs(w, e.Args)
	}

	if e.Extra != nil {
		for pair := e.Extra.Oldest(); pair != nil; pair = pair.Next() {
			w.RawByte(',')
			w.String(pair.Key)
			w.RawByte(':')
			writeValue(w, pair.Value)
		}
	}

	w.RawByte('}')
}

// writeArgs writes an order-preserving args map as a JSON object,
// visiting keys in their original insertion order.
func writeArgs(w *jwriter.Writer, a tracevent.Args) {
	w.RawByte('{')
	first := true
	if a != nil {
		for pair := a.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				w.RawByte(',')
			}
			first = false
			w.String(pair.Key)
			w.RawByte(':')
			writeValue(w, pair.Value)
		}
	}
	w.RawByte('}')
}

// writeMap writes a plain map[string]any. Go's unordered map iteration
// means key order here is not preserved; this only ever backs nested args
// values more than one level deep, or the rarely-populated top-level
// otherData key, neither of which carries the round-trip-order invariant
// args.go documents for the top-level args map.
func writeMap(w *jwriter.Writer, m map[string]any) {
	w.RawByte('{')
	first := true
	for k, v := range m {
		if !first {
			w.RawByte(',')
		}
		first = false
		w.String(k)
		w.RawByte(':')
		writeValue(w, v)
	}
	w.RawByte('}')
}

// writeValue encodes one arg value of any of the shapes ingest/normalize
// can produce: scalars, nested order-preserving args, plain maps (from
// deeper-than-one-level nesting), and slices.
func writeValue(w *jwriter.Writer, v any) {
	switch val := v.(type) {
	case nil:
		w.RawString("null")
	case string:
		w.String(val)
	case bool:
		w.Bool(val)
	case float64:
		w.Float64(val)
	case float32:
		w.Float64(float64(val))
	case int:
		w.Int(val)
	case int64:
		w.Int64(val)
	case uint64:
		w.Int64(int64(val))
	case tracevent.Args:
		writeArgs(w, val)
	case map[string]any:
		writeMap(w, val)
	case []any:
		w.RawByte('[')
		for i, item := range val {
			if i > 0 {
				w.RawByte(',')
			}
			writeValue(w, item)
		}
		w.RawByte(']')
	case []string:
		w.RawByte('[')
		for i, item := range val {
			if i > 0 {
				w.RawByte(',')
			}
			w.String(item)
		}
		w.RawByte(']')
	default:
		w.String(fmt.Sprintf("%v", val))
	}
}

// MarshalChromeJSON renders f as Chrome/Perfetto trace JSON bytes.
func MarshalChromeJSON(f *TraceFile) ([]byte, error) {
	return easyjson.Marshal(f)
}

// WriteChromeJSON streams f as Chrome/Perfetto trace JSON to w.
func WriteChromeJSON(w io.Writer, f *TraceFile) error {
	_, err := easyjson.MarshalToWriter(f, w)
	return err
}
