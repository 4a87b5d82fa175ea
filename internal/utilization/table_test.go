package utilization

import "testing"

func TestParseTablesBasic(t *testing.T) {
	lines := []string{
		"Compiling region foo",
		"Ideal / Total Cycles",
		"-----------------------------------",
		"matmul_kernel          1024.0   compute",
		"dma_copy_kernel        512.5    dma",
		"",
		"some unrelated line",
	}
	result := ParseTables(lines)
	if len(result.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(result.Tables))
	}
	table := result.Tables[0]
	if len(table.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(table.Entries))
	}
	if table.Entries[0].Kernel != "matmul_kernel" || table.Entries[0].IdealCycles != 1024.0 || table.Entries[0].Category != "compute" {
		t.Fatalf("unexpected first entry: %+v", table.Entries[0])
	}
}

func TestParseTablesDetectsAutopilotAndMultipleTables(t *testing.T) {
	lines := []string{
		"Ideal / Total Cycles (autopilot iteration 1)",
		"k1   100   compute",
		"",
		"Ideal / Total Cycles",
		"k2   200   dma",
		"",
	}
	result := ParseTables(lines)
	if len(result.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(result.Tables))
	}
	if !result.Tables[0].Autopilot {
		t.Fatalf("expected first table to be marked autopilot")
	}
	if result.Tables[1].Autopilot {
		t.Fatalf("expected second table to not be marked autopilot")
	}
}

func TestParseTablesExcludesPrecomputeAndPreloadRows(t *testing.T) {
	lines := []string{
		"Ideal / Total Cycles",
		"matmul_kernel          1024.0   compute",
		"Precompute-opCat          50.0   compute",
		"foo-LxPreload             25.0   other",
		"",
	}
	result := ParseTables(lines)
	if len(result.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(result.Tables))
	}
	if len(result.Tables[0].Entries) != 1 {
		t.Fatalf("expected precompute/preload rows excluded, got entries: %+v", result.Tables[0].Entries)
	}
}

func TestParseTablesDetectsObsoleteClockScaling(t *testing.T) {
	lines := []string{"Ideal Clock Scaling: enabled (deprecated)"}
	result := ParseTables(lines)
	if !result.ClockScalingObsolete {
		t.Fatalf("expected clock scaling obsolete flag to be set")
	}
}
