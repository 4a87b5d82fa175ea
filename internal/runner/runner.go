// Package runner ties ingest, pipeline, and the report/export layers
// together into the single end-to-end operation every entry point
// (cmd/aiutrace's analyze/diff subcommands, internal/mcpserver's tools)
// drives: load trace files, bound and filter them per config, run them
// through the pipeline, and hand back both the transformed events and the
// barrier stages' accumulated statistics.
package runner

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aiutrace/analyzer/internal/config"
	"github.com/aiutrace/analyzer/internal/derive"
	"github.com/aiutrace/analyzer/internal/ingest"
	"github.com/aiutrace/analyzer/internal/pipeline"
	"github.com/aiutrace/analyzer/internal/sortstage"
	"github.com/aiutrace/analyzer/internal/tracevent"
	"github.com/aiutrace/analyzer/internal/utilization"
	"github.com/aiutrace/analyzer/internal/warnings"
)

// defaultSortSpec orders every stream first by pid/tid (so per-stream
// overlap recombination sees a contiguous run) and then by timestamp.
const defaultSortSpec = "pid,tid,ts"

// Result is the outcome of one full pipeline run: the final event
// sequence, plus whatever the active profile's barrier stages
// accumulated.
type Result struct {
	Events         []*tracevent.TraceEvent
	Registry       *ingest.Registry
	Rollup         map[string]*utilization.CategoryRollup // nil if the profile skipped utilization
	WithKernels    derive.Stats
	WithoutKernels derive.Stats
	HasPowerStats  bool
	Warnings       *warnings.Accumulator
}

// Run executes the full analyzer pipeline for cfg.
func Run(cfg config.Config) (*Result, error) {
	return RunContext(context.Background(), cfg)
}

// RunContext is Run with cancellation checked between pipeline stages, for
// callers (the CLI under a signal-driven context, the MCP server under a
// per-request context) that want a long-running analysis to stop cleanly
// rather than run to completion after the caller has given up.
func RunContext(ctx context.Context, cfg config.Config) (*Result, error) {
	warn := warnings.NewAccumulator()

	events, err := loadEvents(cfg.Inputs)
	if err != nil {
		return nil, err
	}

	events = applyEventLimits(events, cfg.EventLimits)
	events = cfg.Filter.Apply(events)

	registry := bootstrapRegistry(events, cfg)

	tables, err := loadCompilerLogTables(cfg.CompilerLogs)
	if err != nil {
		return nil, err
	}

	sortKeys, err := sortstage.ParseKeys(defaultSortSpec)
	if err != nil {
		return nil, fmt.Errorf("runner: building default sort key: %w", err)
	}

	built := pipeline.Build(registry, pipeline.Options{
		SortKeys:          sortKeys,
		PerStreamSort:     true,
		Overlap:           cfg.Overlap,
		UtilizationTables: tables,
		SocFreqHz:         cfg.SocFreqHz,
		CoreFreqHz:        cfg.CoreFreqHz,
		IgnoreCrit:        cfg.IgnoreCrit,
		ZeroAlign:         cfg.ZeroAlign,
		KeepNames:         cfg.KeepNames,
		RunUtilization:    cfg.Profile.RunUtilization,
		RunPowerStats:     cfg.Profile.RunPowerStats,
	}, warn)

	out, err := built.Driver.RunContext(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("runner: pipeline run: %w", err)
	}

	result := &Result{
		Events:   out,
		Registry: registry,
		Warnings: warn,
	}
	if built.Utilization != nil {
		result.Rollup = built.Utilization.Rollup
	}
	if built.Power != nil {
		result.HasPowerStats = true
		result.WithKernels = built.Power.WithKernels
		result.WithoutKernels = built.Power.WithoutKernels
	}
	return result, nil
}

// loadEvents reads every input path and concatenates their events in the
// order given, matching a multi-rank trace's natural file order.
func loadEvents(inputs []string) ([]*tracevent.TraceEvent, error) {
	var all []*tracevent.TraceEvent
	for _, path := range inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("runner: reading input %q: %w", path, err)
		}
		events, err := ingest.ParseEvents(data)
		if err != nil {
			return nil, fmt.Errorf("runner: parsing input %q: %w", path, err)
		}
		all = append(all, events...)
	}
	return all, nil
}

// loadCompilerLogTables reads and parses every --compiler-log path into
// ideal-cycle tables. A missing/empty list is not an error: the
// utilization barrier simply has nothing to match kernel streams against.
func loadCompilerLogTables(paths []string) ([]*utilization.Table, error) {
	var tables []*utilization.Table
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("runner: reading compiler log %q: %w", path, err)
		}
		result := utilization.ParseTables(strings.Split(string(data), "\n"))
		tables = append(tables, result.Tables...)
	}
	return tables, nil
}
