// aiutrace — accelerator execution-trace normalization and analysis tool.
//
// Ingests Chrome/Perfetto-format traces from one or more ranks, runs them
// through the normalize/classify/sort/derive pipeline, and produces a
// category-utilization and power-statistics report alongside Chrome,
// TensorBoard, and CSV exports.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aiutrace/analyzer/internal/config"
	diffpkg "github.com/aiutrace/analyzer/internal/diff"
	"github.com/aiutrace/analyzer/internal/export"
	"github.com/aiutrace/analyzer/internal/mcpserver"
	"github.com/aiutrace/analyzer/internal/report"
	"github.com/aiutrace/analyzer/internal/runner"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "aiutrace",
		Short: "Accelerator execution-trace normalization and analysis tool",
		Long: `aiutrace — single Go binary for accelerator trace analysis.

Ingests Chrome/Perfetto-format execution traces from one or more ranks,
normalizes timestamps and overlapping events, classifies kernels against
a compiler log's ideal-cycle table, and reports per-category PT-active
utilization alongside per-sample power statistics.`,
		Version: version,
	}

	rootCmd.AddCommand(newAnalyzeCmd(), newDiffCmd(), newMCPCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newAnalyzeCmd() *cobra.Command {
	var raw config.Raw
	var diffReportPath string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the analysis pipeline over one or more trace files",
		Long:  "Normalize, classify, and derive statistics for one or more input traces, writing a report and optional Chrome/TensorBoard/CSV exports.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Parse(raw)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := runner.RunContext(ctx, cfg)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			if err := writeExports(cfg, result); err != nil {
				return err
			}

			if result.Rollup != nil {
				fmt.Print(report.Summary(result.Rollup, cfg.CoreFreqHz, result.WithKernels, result.WithoutKernels))
			} else {
				fmt.Fprintln(os.Stderr, "aiutrace: utilization and power stages skipped under the \"fast\" profile")
			}

			result.Warnings.PrintAll(os.Stderr)

			if diffReportPath != "" {
				if result.Rollup == nil {
					return fmt.Errorf("analyze: --diff_report requires a profile with utilization enabled")
				}
				saved := diffpkg.NewReport(result.Rollup, cfg.CoreFreqHz, result.WithKernels, result.WithoutKernels)
				saved.Timestamp = time.Now().UTC().Format(time.RFC3339)
				if err := diffpkg.Save(diffReportPath, saved); err != nil {
					return fmt.Errorf("analyze: %w", err)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&raw.Inputs, "input", "i", "", "Comma-separated input trace file path(s) (required)")
	cmd.Flags().StringVarP(&raw.Output, "output", "o", "-", "Output directory for exports (- disables file export)")
	cmd.Flags().StringVar(&raw.Freq, "freq", "0", "SoC[:core] clock frequency in Hz, e.g. 1.2e9 or 1.2e9:2.4e9")
	cmd.Flags().BoolVar(&raw.TensorBoard, "tb", false, "Also write TensorBoard-compatible per-worker trace files")
	cmd.Flags().StringVar(&raw.Overlap, "overlap", "warn", "Overlap-resolution policy: drop, tid, async, warn, shift")
	cmd.Flags().StringVar(&raw.EventLimits, "event_limits", "", "JSON object bounding/subsetting input events; keys: skip, count, ts_start, ts_end, no_count_types")
	cmd.Flags().BoolVar(&raw.DisableFile, "disable_file", false, "Skip writing the Chrome-format trace export")
	cmd.Flags().StringVar(&raw.Filter, "filter", "", "key:regex[,key:regex...] predicate events must all match")
	cmd.Flags().BoolVar(&raw.IgnoreCrit, "ignore_crit", false, "Downgrade normally-fatal normalization errors to warnings")
	cmd.Flags().BoolVar(&raw.ZeroAlign, "zero_align", false, "Shift every timestamp so the trace starts at zero")
	cmd.Flags().BoolVar(&raw.KeepNames, "keep_names", false, "Preserve original event names instead of the refined short form")
	cmd.Flags().StringSliceVar(&raw.CompilerLogs, "compiler_log", nil, "Path to a compiler log to build the ideal-cycle table from (repeatable)")
	cmd.Flags().StringVar(&raw.Profile, "profile", "standard", "Collection profile: fast, standard, full")
	cmd.Flags().StringVar(&diffReportPath, "diff_report", "", "Also write a diff-comparable JSON report to this path")

	return cmd
}

func newDiffCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "diff <baseline.json> <current.json>",
		Short: "Compare two aiutrace diff reports",
		Long:  "Load two JSON reports written by `analyze --diff_report` and print category-utilization and power-statistics regressions/improvements.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(args[0], args[1], outputPath)
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Output diff file path (- for a human-readable summary on stdout)")
	return cmd
}

func runDiff(baselinePath, currentPath, outputPath string) error {
	baseline, err := diffpkg.LoadReport(baselinePath)
	if err != nil {
		return fmt.Errorf("diff: load baseline: %w", err)
	}
	current, err := diffpkg.LoadReport(currentPath)
	if err != nil {
		return fmt.Errorf("diff: load current: %w", err)
	}

	result := diffpkg.Compare(baseline, current)

	if outputPath == "-" {
		fmt.Print(diffpkg.FormatDiff(result))
		return nil
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("diff: marshaling result: %w", err)
	}
	return os.WriteFile(outputPath, data, 0o644)
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start a Model Context Protocol (MCP) server",
		Long: `Starts a JSON-RPC server implementing the Model Context Protocol (MCP),
so an AI agent can drive trace analysis interactively instead of shelling
out to the CLI. Communication happens over standard input/output (stdio).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := mcpserver.NewServer(version)
			return srv.Start(ctx)
		},
	}
}

// writeExports writes the configured output formats for a completed run.
// Output "-" means no file export; the text report still goes to stdout.
func writeExports(cfg config.Config, result *runner.Result) error {
	if cfg.Output == "-" {
		return nil
	}
	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		return fmt.Errorf("analyze: creating output directory: %w", err)
	}

	if !cfg.DisableFile {
		path := filepath.Join(cfg.Output, "trace.json")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("analyze: creating %s: %w", path, err)
		}
		defer f.Close()
		traceFile := &export.TraceFile{TraceEvents: result.Events, DisplayTimeUnit: "ms"}
		if err := export.WriteChromeJSON(f, traceFile); err != nil {
			return fmt.Errorf("analyze: writing %s: %w", path, err)
		}
	}

	if cfg.TensorBoard {
		if _, _, err := export.WriteTensorBoardFiles(cfg.Output, result.Events, nil); err != nil {
			return fmt.Errorf("analyze: writing TensorBoard files: %w", err)
		}
	}

	rows := export.ToRows(result.Events)
	if len(rows) > 0 {
		path := filepath.Join(cfg.Output, "events.csv")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("analyze: creating %s: %w", path, err)
		}
		defer f.Close()
		if err := export.WriteCSV(f, rows); err != nil {
			return fmt.Errorf("analyze: writing %s: %w", path, err)
		}
	}

	return nil
}
