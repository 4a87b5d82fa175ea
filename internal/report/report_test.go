package report

import (
	"strings"
	"testing"

	"github.com/aiutrace/analyzer/internal/derive"
	"github.com/aiutrace/analyzer/internal/utilization"
)

func TestPrintCategoryTableSortsByNameAndFormatsPTActive(t *testing.T) {
	rollup := map[string]*utilization.CategoryRollup{
		"compute": {Category: "compute", IdealCyclesSum: 1e9, ActualUs: 1e6, Count: 3},
		"barrier": {Category: "barrier", IdealCyclesSum: 0, ActualUs: 100, Count: 1},
	}

	var sb strings.Builder
	if err := PrintCategoryTable(&sb, rollup, 1e9); err != nil {
		t.Fatalf("PrintCategoryTable: %v", err)
	}
	out := sb.String()

	barrierIdx := strings.Index(out, "barrier")
	computeIdx := strings.Index(out, "compute")
	if barrierIdx == -1 || computeIdx == -1 || barrierIdx > computeIdx {
		t.Fatalf("expected barrier before compute (alphabetical), got:\n%s", out)
	}
	if !strings.Contains(out, "%") {
		t.Fatalf("expected PT_ACTIVE percentage column, got:\n%s", out)
	}
}

func TestPrintPowerStatsIncludesBothSegments(t *testing.T) {
	var sb strings.Builder
	err := PrintPowerStats(&sb, derive.Stats{MeanNonZero: 90}, derive.Stats{MeanNonZero: 45})
	if err != nil {
		t.Fatalf("PrintPowerStats: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "with_kernels") || !strings.Contains(out, "without_kernels") {
		t.Fatalf("expected both segment labels, got:\n%s", out)
	}
}

func TestSummaryCombinesBothTables(t *testing.T) {
	rollup := map[string]*utilization.CategoryRollup{
		"compute": {Category: "compute", Count: 1},
	}
	out := Summary(rollup, 1e9, derive.Stats{}, derive.Stats{})
	if !strings.Contains(out, "Category utilization") || !strings.Contains(out, "Power statistics") {
		t.Fatalf("expected both section headers, got:\n%s", out)
	}
}
