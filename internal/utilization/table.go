// Package utilization extracts ideal-cycle tables from compiler log text,
// matches each device kernel stream's observed fingerprint against those
// tables by similarity, and uses the match to compute per-event PT-active
// utilization and category roll-up statistics.
package utilization

import (
	"regexp"
	"strconv"
	"strings"
)

// KernelEntry is one row of an ideal-cycle table: a kernel name, the
// compiler's ideal cycle count for it, and the roll-up category it belongs
// to (e.g. "compute", "dma", "sync").
type KernelEntry struct {
	Kernel      string
	IdealCycles float64
	Category    string
}

// Table is one ideal-cycle table extracted from a compiler log. Autopilot
// is set when the table's header indicates it was produced by the
// compiler's autopilot (auto-tuning) pass rather than a fixed schedule.
type Table struct {
	Entries   []KernelEntry
	Autopilot bool

	fprint *Fingerprint
}

// KernelNames returns the table's kernel names in table order.
func (t *Table) KernelNames() []string {
	out := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		out[i] = e.Kernel
	}
	return out
}

// Fingerprint returns (building and caching on first call) the table's own
// fingerprint: its kernel names in row order, with the compiler's summed
// ideal-cycle count standing in for the "time" a matching observed stream
// is compared against (a compiler log carries no observed wall time of its
// own).
func (t *Table) Fingerprint() *Fingerprint {
	if t.fprint != nil {
		return t.fprint
	}
	fp := NewTableFingerprint()
	for _, e := range t.Entries {
		fp.Add(e.Kernel, e.IdealCycles)
	}
	t.fprint = fp
	return fp
}

var (
	startPattern        = regexp.MustCompile(`(?i)ideal\s*/?\s*total\s*cycles`)
	clockScalingPattern = regexp.MustCompile(`(?i)ideal\s*clock\s*scaling`)
	autopilotPattern    = regexp.MustCompile(`(?i)autopilot`)
	ignorePattern       = regexp.MustCompile(`^\s*-+\s*$`)
	blankPattern        = regexp.MustCompile(`^\s*$`)
	dataPattern         = regexp.MustCompile(`^\s*(\S.*?)\s{2,}([0-9]+(?:\.[0-9]+)?)\s{2,}(\S+)\s*$`)
	excludePattern      = regexp.MustCompile(`Precompute|-LxPreload`)
)

// ParseResult is what extracting tables from a compiler log yields.
type ParseResult struct {
	Tables               []*Table
	ClockScalingObsolete bool // --freq setting looks stale relative to a logged "Ideal Clock Scaling" section
}

// ParseTables runs the line-by-line state machine over lines (a compiler
// log, split on newlines) and extracts every "Ideal/Total Cycles" section
// as a Table. Multiple tables (one per autopilot iteration, or one per
// compiled region) are all returned.
func ParseTables(lines []string) ParseResult {
	var result ParseResult
	var current *Table

	finish := func() {
		if current != nil && len(current.Entries) > 0 {
			result.Tables = append(result.Tables, current)
		}
		current = nil
	}

	for _, line := range lines {
		switch {
		case clockScalingPattern.MatchString(line):
			result.ClockScalingObsolete = true
		case startPattern.MatchString(line):
			finish()
			current = &Table{Autopilot: autopilotPattern.MatchString(line)}
		case current != nil && ignorePattern.MatchString(line):
			// table separator row, skip
		case current != nil && blankPattern.MatchString(line):
			finish()
		case current != nil && excludePattern.MatchString(line):
			// precompute/preload rows never ran as a real kernel; the
			// fingerprint and roll-up should both skip them.
		case current != nil:
			if m := dataPattern.FindStringSubmatch(line); m != nil {
				cycles, err := strconv.ParseFloat(m[2], 64)
				if err == nil {
					current.Entries = append(current.Entries, KernelEntry{
						Kernel:      strings.TrimSpace(m[1]),
						IdealCycles: cycles,
						Category:    m[3],
					})
				}
			}
		}
	}
	finish()
	return result
}
