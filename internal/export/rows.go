package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/aiutrace/analyzer/internal/tracevent"
)

// Row is one flattened, tabular record of an "X" event, matching the
// DataFrame-like output contract: (Timestamp, Duration, Category, Event
// Name, PT_Active).
type Row struct {
	Timestamp float64
	Duration  float64
	Category  string
	EventName string
	PTActive  float64
}

// ToRows flattens every complete ("X") event into a Row, reading
// pt_active out of args when the utilization stage annotated it.
func ToRows(events []*tracevent.TraceEvent) []Row {
	var out []Row
	for _, e := range events {
		if e.Ph != tracevent.PhaseComplete {
			continue
		}
		var pt float64
		if v, ok := e.Arg("pt_active"); ok {
			pt, _ = toFloat(v)
		}
		out = append(out, Row{
			Timestamp: e.Ts,
			Duration:  e.Dur,
			Category:  e.Cat,
			EventName: e.Name,
			PTActive:  pt,
		})
	}
	return out
}

// WriteCSV writes rows as a header plus one CSV record per row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Timestamp", "Duration", "Category", "Event Name", "PT_Active"}); err != nil {
		return fmt.Errorf("export: write csv header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatFloat(r.Timestamp, 'f', -1, 64),
			strconv.FormatFloat(r.Duration, 'f', -1, 64),
			r.Category,
			r.EventName,
			strconv.FormatFloat(r.PTActive, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("export: write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
