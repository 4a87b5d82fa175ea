package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aiutrace/analyzer/internal/config"
	diffpkg "github.com/aiutrace/analyzer/internal/diff"
	"github.com/aiutrace/analyzer/internal/runner"
)

const sampleTrace = `{
  "traceEvents": [
    {"ph": "X", "name": "Cmpt Exec", "ts": 0, "dur": 100, "pid": 1, "tid": 1, "args": {"TS1": "0xA", "event_class": "COMPUTE_EXEC"}},
    {"ph": "X", "name": "Cmpt Exec", "ts": 200, "dur": 100, "pid": 1, "tid": 1, "args": {"TS1": "0xB", "event_class": "COMPUTE_EXEC"}}
  ]
}`

func writeSampleTrace(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "trace.json")
	if err := os.WriteFile(path, []byte(sampleTrace), 0o644); err != nil {
		t.Fatalf("writing sample trace: %v", err)
	}
	return path
}

func TestAnalyzeCmdRegistersExpectedFlags(t *testing.T) {
	cmd := newAnalyzeCmd()
	for _, name := range []string{
		"input", "output", "freq", "tb", "overlap", "event_limits",
		"disable_file", "filter", "ignore_crit", "zero_align", "keep_names",
		"compiler_log", "profile", "diff_report",
	} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("analyze command missing --%s flag", name)
		}
	}
}

func TestDiffCmdRequiresExactlyTwoArgs(t *testing.T) {
	cmd := newDiffCmd()
	if err := cmd.Args(cmd, []string{"a.json"}); err == nil {
		t.Fatal("expected an error for a single argument")
	}
	if err := cmd.Args(cmd, []string{"a.json", "b.json"}); err != nil {
		t.Fatalf("expected two arguments to be accepted, got %v", err)
	}
}

func TestMCPCmdRegistersRunHandler(t *testing.T) {
	cmd := newMCPCmd()
	if cmd.Use != "mcp" {
		t.Errorf("Use = %q, want mcp", cmd.Use)
	}
	if cmd.RunE == nil {
		t.Fatal("expected a RunE handler")
	}
}

func TestWriteExportsSkipsFileOutputWhenOutputIsDash(t *testing.T) {
	result := &runner.Result{}
	cfg := config.Config{Output: "-"}
	if err := writeExports(cfg, result); err != nil {
		t.Fatalf("writeExports: %v", err)
	}
}

func TestWriteExportsWritesChromeTraceAndCSV(t *testing.T) {
	dir := t.TempDir()
	tracePath := writeSampleTrace(t, dir)

	outDir := filepath.Join(dir, "out")
	cfg, err := config.Parse(config.Raw{Inputs: tracePath, Output: outDir, Profile: "fast"})
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}

	result, err := runner.Run(cfg)
	if err != nil {
		t.Fatalf("runner.Run: %v", err)
	}

	if err := writeExports(cfg, result); err != nil {
		t.Fatalf("writeExports: %v", err)
	}

	if _, err := os.Stat(filepath.Join(outDir, "trace.json")); err != nil {
		t.Errorf("expected trace.json to be written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "events.csv")); err != nil {
		t.Errorf("expected events.csv to be written: %v", err)
	}
}

func TestWriteExportsHonorsDisableFile(t *testing.T) {
	dir := t.TempDir()
	tracePath := writeSampleTrace(t, dir)

	outDir := filepath.Join(dir, "out")
	cfg, err := config.Parse(config.Raw{Inputs: tracePath, Output: outDir, Profile: "fast", DisableFile: true})
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}

	result, err := runner.Run(cfg)
	if err != nil {
		t.Fatalf("runner.Run: %v", err)
	}

	if err := writeExports(cfg, result); err != nil {
		t.Fatalf("writeExports: %v", err)
	}

	if _, err := os.Stat(filepath.Join(outDir, "trace.json")); !os.IsNotExist(err) {
		t.Errorf("expected trace.json to be skipped, stat error = %v", err)
	}
}

func TestRunDiffWritesHumanReadableSummaryToStdoutPath(t *testing.T) {
	dir := t.TempDir()
	baselinePath := filepath.Join(dir, "baseline.json")
	currentPath := filepath.Join(dir, "current.json")

	baseline := &diffpkg.Report{Categories: map[string]diffpkg.CategoryStats{
		"compute": {ActualUs: 100, PTActive: 0.9},
	}}
	current := &diffpkg.Report{Categories: map[string]diffpkg.CategoryStats{
		"compute": {ActualUs: 200, PTActive: 0.4},
	}}
	if err := diffpkg.Save(baselinePath, baseline); err != nil {
		t.Fatalf("Save baseline: %v", err)
	}
	if err := diffpkg.Save(currentPath, current); err != nil {
		t.Fatalf("Save current: %v", err)
	}

	if err := runDiff(baselinePath, currentPath, "-"); err != nil {
		t.Fatalf("runDiff: %v", err)
	}
}

func TestRunDiffWritesJSONWhenOutputGiven(t *testing.T) {
	dir := t.TempDir()
	baselinePath := filepath.Join(dir, "baseline.json")
	currentPath := filepath.Join(dir, "current.json")
	outPath := filepath.Join(dir, "diff.json")

	baseline := &diffpkg.Report{Categories: map[string]diffpkg.CategoryStats{
		"compute": {ActualUs: 100, PTActive: 0.9},
	}}
	current := &diffpkg.Report{Categories: map[string]diffpkg.CategoryStats{
		"compute": {ActualUs: 200, PTActive: 0.4},
	}}
	if err := diffpkg.Save(baselinePath, baseline); err != nil {
		t.Fatalf("Save baseline: %v", err)
	}
	if err := diffpkg.Save(currentPath, current); err != nil {
		t.Fatalf("Save current: %v", err)
	}

	if err := runDiff(baselinePath, currentPath, outPath); err != nil {
		t.Fatalf("runDiff: %v", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("expected a diff JSON file: %v", err)
	}
}
