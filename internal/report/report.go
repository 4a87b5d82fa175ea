// Package report pretty-prints the pipeline's category roll-up and power
// statistics as aligned text tables, the way a human reviewing a run on a
// terminal would want to see them (export handles the machine-readable
// formats).
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/aiutrace/analyzer/internal/derive"
	"github.com/aiutrace/analyzer/internal/utilization"
)

// PrintCategoryTable writes one aligned row per category in rollup, sorted
// by category name for deterministic output, showing event count, total
// actual time, total ideal cycles, and the aggregate PT-active ratio.
func PrintCategoryTable(w io.Writer, rollup map[string]*utilization.CategoryRollup, coreFreqHz float64) error {
	names := make([]string, 0, len(rollup))
	for name := range rollup {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tCOUNT\tACTUAL_US\tIDEAL_CYCLES\tPT_ACTIVE")
	for _, name := range names {
		r := rollup[name]
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.0f\t%.1f%%\n",
			name, r.Count, r.ActualUs, r.IdealCyclesSum, r.PTActive(coreFreqHz)*100)
	}
	return tw.Flush()
}

// PrintPowerStats writes the two per-sample power-statistics segments
// side by side.
func PrintPowerStats(w io.Writer, withKernels, withoutKernels derive.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEGMENT\tMIN_NONZERO\tMAX\tMEAN_NONZERO\tMEDIAN_NONZERO\tAVG_TOTAL")
	printRow := func(label string, s derive.Stats) {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			label, s.MinNonZero, s.Max, s.MeanNonZero, s.MedianNonZero, s.AvgTotal)
	}
	printRow("with_kernels", withKernels)
	printRow("without_kernels", withoutKernels)
	return tw.Flush()
}

// Summary renders both tables as a single string, for contexts (MCP tool
// responses, diff input) that want the whole report as one text blob
// rather than writing to two separate streams.
func Summary(rollup map[string]*utilization.CategoryRollup, coreFreqHz float64, withKernels, withoutKernels derive.Stats) string {
	var sb strings.Builder
	sb.WriteString("Category utilization:\n")
	PrintCategoryTable(&sb, rollup, coreFreqHz)
	sb.WriteString("\nPower statistics:\n")
	PrintPowerStats(&sb, withKernels, withoutKernels)
	return sb.String()
}
