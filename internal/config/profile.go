package config

// Profile selects whether the utilization and power-statistics barrier
// stages run. Every profile runs the other stages (normalize, classify
// and its second-pass barrier, sort, flows including the launch-flow
// barrier, bandwidth, tbrefine) unconditionally; what varies is whether
// the expensive collect/finalize/apply passes of those two stages
// (utilization roll-up against a compiler log, power statistics) are
// worth paying for.
type Profile struct {
	Name string

	// RunUtilization gates the utilization barrier's Collect/Apply
	// passes. The "fast" profile disables it whether or not a compiler
	// log is supplied.
	RunUtilization bool

	// RunPowerStats gates the power-statistics barrier.
	RunPowerStats bool
}

// profiles contains the built-in profile presets.
var profiles = map[string]Profile{
	"fast": {
		Name:           "fast",
		RunUtilization: false,
		RunPowerStats:  false,
	},
	"standard": {
		Name:           "standard",
		RunUtilization: true,
		RunPowerStats:  true,
	},
	"full": {
		Name:           "full",
		RunUtilization: true,
		RunPowerStats:  true,
	},
}

// GetProfile returns the profile config for the given name, falling back
// to "standard" if name is unknown.
func GetProfile(name string) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles["standard"]
}

// ProfileNames returns available profile names.
func ProfileNames() []string {
	return []string{"fast", "standard", "full"}
}
