package ingest

import (
	"fmt"

	"github.com/buger/jsonparser"

	"github.com/aiutrace/analyzer/internal/tracevent"
)

// ParseEvents reads the Chrome Trace Event JSON in data and returns its
// events in file order. data may be either a bare JSON array of events or
// an object carrying them under "traceEvents", both of which are valid
// Chrome Trace Event documents. Parsing is streaming (jsonparser never
// builds an intermediate map[string]any for the whole file) since traces
// commonly run into the hundreds of megabytes.
func ParseEvents(data []byte) ([]*tracevent.TraceEvent, error) {
	events := data
	if v, dt, _, err := jsonparser.Get(data, "traceEvents"); err == nil && dt == jsonparser.Array {
		events = v
	}

	var out []*tracevent.TraceEvent
	var parseErr error
	_, err := jsonparser.ArrayEach(events, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if parseErr != nil || err != nil {
			if err != nil {
				parseErr = err
			}
			return
		}
		if dataType != jsonparser.Object {
			return
		}
		ev, perr := parseEvent(value)
		if perr != nil {
			parseErr = perr
			return
		}
		out = append(out, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: parsing trace events array: %w", err)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("ingest: parsing trace event: %w", parseErr)
	}
	return out, nil
}

func parseEvent(raw []byte) (*tracevent.TraceEvent, error) {
	e := tracevent.New(tracevent.PhaseComplete, "", "", 0, 0, 0, 0)

	var objErr error
	err := jsonparser.ObjectEach(raw, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		k := string(key)
		switch k {
		case "ph":
			s, _ := jsonparser.ParseString(value)
			e.Ph = tracevent.Phase(s)
		case "name":
			e.Name, _ = jsonparser.ParseString(value)
		case "cat":
			e.Cat, _ = jsonparser.ParseString(value)
		case "ts":
			e.Ts = parseNumber(value, dataType)
		case "dur":
			e.Dur = parseNumber(value, dataType)
		case "pid":
			e.Pid = int(parseNumber(value, dataType))
		case "tid":
			e.Tid = int(parseNumber(value, dataType))
		case "id":
			if dataType == jsonparser.String {
				e.ID, _ = jsonparser.ParseString(value)
			} else {
				e.ID = fmt.Sprintf("%v", parseNumber(value, dataType))
			}
		case "bp":
			e.BP, _ = jsonparser.ParseString(value)
		case "args":
			args, aerr := parseArgs(value, dataType)
			if aerr != nil {
				return aerr
			}
			e.Args = args
		default:
			v, verr := parseAny(value, dataType)
			if verr != nil {
				return verr
			}
			e.Extra.Set(k, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if objErr != nil {
		return nil, objErr
	}
	return e, nil
}

// parseArgs decodes the object under "args" into an order-preserving Args
// map. Nested objects are decoded one level deep into plain map[string]any
// (args rarely nest further in practice); deeper nesting still parses, just
// without preserving sub-object key order.
func parseArgs(raw []byte, dt jsonparser.ValueType) (tracevent.Args, error) {
	args := tracevent.NewArgs()
	if dt != jsonparser.Object {
		return args, nil
	}
	var err error
	iterErr := jsonparser.ObjectEach(raw, func(key []byte, value []byte, valueType jsonparser.ValueType, _ int) error {
		v, verr := parseAny(value, valueType)
		if verr != nil {
			err = verr
			return verr
		}
		args.Set(string(key), v)
		return nil
	})
	if iterErr != nil {
		return nil, iterErr
	}
	return args, err
}

func parseAny(value []byte, dt jsonparser.ValueType) (any, error) {
	switch dt {
	case jsonparser.String:
		return jsonparser.ParseString(value)
	case jsonparser.Number:
		return jsonparser.ParseFloat(value)
	case jsonparser.Boolean:
		return jsonparser.ParseBoolean(value)
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Object:
		out := make(map[string]any)
		err := jsonparser.ObjectEach(value, func(key []byte, v []byte, vt jsonparser.ValueType, _ int) error {
			nested, nerr := parseAny(v, vt)
			if nerr != nil {
				return nerr
			}
			out[string(key)] = nested
			return nil
		})
		return out, err
	case jsonparser.Array:
		var out []any
		var arrErr error
		jsonparser.ArrayEach(value, func(v []byte, vt jsonparser.ValueType, _ int, err error) {
			if err != nil {
				arrErr = err
				return
			}
			nested, nerr := parseAny(v, vt)
			if nerr != nil {
				arrErr = nerr
				return
			}
			out = append(out, nested)
		})
		return out, arrErr
	default:
		return nil, nil
	}
}

func parseNumber(value []byte, dt jsonparser.ValueType) float64 {
	if dt != jsonparser.Number {
		return 0
	}
	f, _ := jsonparser.ParseFloat(value)
	return f
}
