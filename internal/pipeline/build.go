package pipeline

import (
	"github.com/aiutrace/analyzer/internal/classify"
	"github.com/aiutrace/analyzer/internal/config"
	"github.com/aiutrace/analyzer/internal/derive"
	"github.com/aiutrace/analyzer/internal/flows"
	"github.com/aiutrace/analyzer/internal/ingest"
	"github.com/aiutrace/analyzer/internal/normalize"
	"github.com/aiutrace/analyzer/internal/sortstage"
	"github.com/aiutrace/analyzer/internal/tbrefine"
	"github.com/aiutrace/analyzer/internal/utilization"
	"github.com/aiutrace/analyzer/internal/warnings"
)

// defaultCPUStreamTid is the synthetic tid host-side CPU events are moved
// onto under the "tid" overlap policy, when the caller does not override
// it.
const defaultCPUStreamTid = 1000

// Options configures the stages Build wires together, covering the parts
// of the chain that vary by run rather than by trace content.
type Options struct {
	SortKeys          []sortstage.Key
	PerStreamSort     bool
	Overlap           config.Overlap // --overlap, consulted by the sort stage
	CPUStreamTid      int            // synthetic tid for the "tid" overlap policy; 0 uses the default
	UtilizationTables []*utilization.Table
	SocFreqHz         float64
	CoreFreqHz        float64
	IgnoreCrit        bool // --ignore_crit, downgrades normalize's monotonicity check
	ZeroAlign         bool // --zero_align, subtracts the trace's first ts from every event
	KeepNames         bool // --keep_names, passed through to tbrefine

	// RunUtilization and RunPowerStats gate the utilization and
	// power-statistics barrier stages, set
	// from the active profile (see internal/config). A profile that
	// disables one skips it entirely rather than running Collect/Apply
	// over a trace with nothing to roll up against.
	RunUtilization bool
	RunPowerStats  bool
}

// Built is the driver plus handles on the utilization and power-statistics
// barrier stages, for callers
// that need their accumulated statistics (category roll-up, power stats)
// after Run rather than just the transformed events.
type Built struct {
	Driver      *Driver
	Utilization *utilization.Context // nil when the profile skipped it
	Power       *derive.PowerContext // nil when the profile skipped it
}

// Build assembles the standard aiutrace chain in data-flow order:
// normalize -> classify -> sort/overlap -> flows -> utilization ->
// derived events -> TB refinement. The utilization and power-statistics
// barrier stages are included only when the active profile asks for them.
func Build(registry *ingest.Registry, opts Options, warn *warnings.Accumulator) Built {
	d := NewDriver()
	built := Built{Driver: d}

	cpuStreamTid := opts.CPUStreamTid
	if cpuStreamTid == 0 {
		cpuStreamTid = defaultCPUStreamTid
	}

	d.AddStage(normalize.NewContext(registry, warn, opts.IgnoreCrit))
	d.AddStage(classify.NewContext(registry, warn))
	d.AddBarrier(classify.NewBarrierContext(warn, opts.ZeroAlign))
	d.AddStage(sortstage.NewContext(opts.SortKeys, opts.PerStreamSort, opts.Overlap, cpuStreamTid, warn))
	d.AddBarrier(flows.NewLaunchContext(warn))
	d.AddStage(flows.NewFirmwareContext(warn))
	if opts.RunUtilization {
		utl := utilization.NewContext(opts.UtilizationTables, opts.SocFreqHz, opts.CoreFreqHz, warn)
		d.AddBarrier(utl)
		built.Utilization = utl
	}
	d.AddStage(derive.NewBandwidthContext(warn))
	if opts.RunPowerStats {
		pow := derive.NewPowerContext(warn)
		d.AddBarrier(pow)
		built.Power = pow
	}
	d.AddStage(tbrefine.NewContext(registry, opts.KeepNames, warn))

	return built
}
