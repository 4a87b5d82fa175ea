// Package diff compares two aiutrace analysis reports (category
// utilization roll-up plus power statistics) across runs and highlights
// regressions and improvements, the way a compiler or kernel-schedule
// change that made PT-active utilization worse would show up in CI.
package diff

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/aiutrace/analyzer/internal/derive"
	"github.com/aiutrace/analyzer/internal/utilization"
)

// CategoryStats is the persisted summary of one utilization category's
// roll-up from a single run.
type CategoryStats struct {
	Count          int     `json:"count"`
	ActualUs       float64 `json:"actual_us"`
	IdealCyclesSum float64 `json:"ideal_cycles_sum"`
	PTActive       float64 `json:"pt_active"`
}

// PowerStats is the persisted summary of a run's power statistics.
type PowerStats struct {
	WithKernelsMean    float64 `json:"with_kernels_mean"`
	WithoutKernelsMean float64 `json:"without_kernels_mean"`
}

// Report is the serializable shape of one analysis run, the unit diff
// compares two of.
type Report struct {
	Timestamp  string                   `json:"timestamp,omitempty"`
	Categories map[string]CategoryStats `json:"categories"`
	Power      PowerStats               `json:"power"`
}

// NewReport builds a Report from a completed run's category roll-up and
// power statistics.
func NewReport(rollup map[string]*utilization.CategoryRollup, coreFreqHz float64, withKernels, withoutKernels derive.Stats) *Report {
	r := &Report{Categories: make(map[string]CategoryStats, len(rollup))}
	for name, c := range rollup {
		r.Categories[name] = CategoryStats{
			Count:          c.Count,
			ActualUs:       c.ActualUs,
			IdealCyclesSum: c.IdealCyclesSum,
			PTActive:       c.PTActive(coreFreqHz),
		}
	}
	r.Power = PowerStats{
		WithKernelsMean:    withKernels.MeanNonZero,
		WithoutKernelsMean: withoutKernels.MeanNonZero,
	}
	return r
}

// LoadReport reads and parses a JSON report file written by a previous
// analyze run.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("diff: reading %s: %w", path, err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("diff: parsing %s: %w", path, err)
	}
	return &report, nil
}

// Save writes report to path as indented JSON, the counterpart LoadReport
// reads back in on a later run.
func Save(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("diff: marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("diff: writing %s: %w", path, err)
	}
	return nil
}

// MetricChange is a single metric's difference between two reports.
type MetricChange struct {
	Category     string  `json:"category"`
	Metric       string  `json:"metric"`
	OldValue     float64 `json:"old_value"`
	NewValue     float64 `json:"new_value"`
	Delta        float64 `json:"delta"`
	DeltaPct     float64 `json:"delta_pct"`
	Direction    string  `json:"direction"`    // "regression", "improvement", "unchanged"
	Significance string  `json:"significance"` // "high", "medium", "low"
}

// DiffReport is the result of comparing two Reports.
type DiffReport struct {
	Baseline     string         `json:"baseline"`
	Current      string         `json:"current"`
	Changes      []MetricChange `json:"changes"`
	Regressions  int            `json:"regressions"`
	Improvements int            `json:"improvements"`
}

// Compare computes per-category PT-active/actual-time changes and
// power-statistics changes between baseline and current. A category
// present in only one of the two reports is skipped: there is nothing to
// diff a kernel category against if it didn't run in both traces.
func Compare(baseline, current *Report) *DiffReport {
	diff := &DiffReport{Baseline: baseline.Timestamp, Current: current.Timestamp}

	for name, cur := range current.Categories {
		old, ok := baseline.Categories[name]
		if !ok {
			continue
		}
		// Higher PT-active is better: a drop is a regression.
		addChange(diff, name, "pt_active", old.PTActive, cur.PTActive, false)
		// Spending more actual time on the same category's kernels is a
		// regression regardless of why.
		addChange(diff, name, "actual_us", old.ActualUs, cur.ActualUs, true)
	}

	addChange(diff, "power", "with_kernels_mean", baseline.Power.WithKernelsMean, current.Power.WithKernelsMean, true)
	addChange(diff, "power", "without_kernels_mean", baseline.Power.WithoutKernelsMean, current.Power.WithoutKernelsMean, true)

	for _, c := range diff.Changes {
		switch c.Direction {
		case "regression":
			diff.Regressions++
		case "improvement":
			diff.Improvements++
		}
	}

	return diff
}

func addChange(diff *DiffReport, category, metric string, oldVal, newVal float64, higherIsWorse bool) {
	delta := newVal - oldVal
	deltaPct := 0.0
	if oldVal != 0 {
		deltaPct = (delta / math.Abs(oldVal)) * 100
	}

	// Skip negligible changes
	if math.Abs(deltaPct) < 1.0 && math.Abs(delta) < 0.1 {
		return
	}

	direction := "unchanged"
	if higherIsWorse {
		if deltaPct > 5 {
			direction = "regression"
		} else if deltaPct < -5 {
			direction = "improvement"
		}
	} else {
		if deltaPct < -5 {
			direction = "regression"
		} else if deltaPct > 5 {
			direction = "improvement"
		}
	}

	significance := "low"
	absPct := math.Abs(deltaPct)
	if absPct >= 50 {
		significance = "high"
	} else if absPct >= 20 {
		significance = "medium"
	}

	diff.Changes = append(diff.Changes, MetricChange{
		Category:     category,
		Metric:       metric,
		OldValue:     oldVal,
		NewValue:     newVal,
		Delta:        delta,
		DeltaPct:     deltaPct,
		Direction:    direction,
		Significance: significance,
	})
}

// FormatDiff returns a human-readable diff summary, regressions first.
func FormatDiff(d *DiffReport) string {
	var sb strings.Builder

	sb.WriteString("=== aiutrace diff ===\n")
	if d.Baseline != "" || d.Current != "" {
		sb.WriteString(fmt.Sprintf("Baseline: %s\n", d.Baseline))
		sb.WriteString(fmt.Sprintf("Current:  %s\n\n", d.Current))
	}
	sb.WriteString(fmt.Sprintf("Regressions: %d, Improvements: %d\n\n", d.Regressions, d.Improvements))

	if d.Regressions > 0 {
		sb.WriteString("⚠ Regressions:\n")
		for _, c := range d.Changes {
			if c.Direction == "regression" {
				sb.WriteString(fmt.Sprintf("  [%s] %s/%s: %.4f → %.4f (%+.1f%%)\n",
					strings.ToUpper(c.Significance), c.Category, c.Metric,
					c.OldValue, c.NewValue, c.DeltaPct))
			}
		}
		sb.WriteString("\n")
	}

	if d.Improvements > 0 {
		sb.WriteString("✓ Improvements:\n")
		for _, c := range d.Changes {
			if c.Direction == "improvement" {
				sb.WriteString(fmt.Sprintf("  [%s] %s/%s: %.4f → %.4f (%+.1f%%)\n",
					strings.ToUpper(c.Significance), c.Category, c.Metric,
					c.OldValue, c.NewValue, c.DeltaPct))
			}
		}
	}

	if d.Regressions == 0 && d.Improvements == 0 {
		sb.WriteString("No significant changes.\n")
	}

	return sb.String()
}
