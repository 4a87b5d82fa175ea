package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// EventLimits is the decoded shape of the --event_limits=<json> flag: a
// bound on how many events to keep from a (possibly huge) input trace,
// applied by the runner before the pipeline sees any event.
type EventLimits struct {
	Skip         int      `json:"skip,omitempty" jsonschema:"description=number of leading events to drop before counting begins"`
	Count        int      `json:"count,omitempty" jsonschema:"description=maximum number of events to keep after the skip; 0 means unbounded"`
	TsStart      float64  `json:"ts_start,omitempty" jsonschema:"description=drop events with ts before this value (microseconds)"`
	TsEnd        float64  `json:"ts_end,omitempty" jsonschema:"description=drop events with ts at or after this value (microseconds)"`
	NoCountTypes []string `json:"no_count_types,omitempty" jsonschema:"description=event names excluded from the skip/count bookkeeping entirely"`
}

// eventLimitsSchema is reflected once from EventLimits itself, so the
// schema advertised to callers and the struct actually decoded into can
// never drift apart.
var eventLimitsSchema = jsonschema.Reflect(&EventLimits{})

// EventLimitsSchemaJSON renders the --event_limits JSON Schema, for
// embedding in parse-error messages.
func EventLimitsSchemaJSON() string {
	data, err := json.MarshalIndent(eventLimitsSchema, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

// ParseEventLimits parses a --event_limits=<json> flag value. An empty
// string is a valid "no limits" value. Unknown keys are rejected rather
// than silently ignored, so a typo in the flag surfaces as a Fatal
// config error instead of quietly doing nothing.
func ParseEventLimits(raw string) (EventLimits, error) {
	var limits EventLimits
	if strings.TrimSpace(raw) == "" {
		return limits, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&limits); err != nil {
		return EventLimits{}, fmt.Errorf("config: invalid --event_limits value %q (expected schema:\n%s\n): %w",
			raw, EventLimitsSchemaJSON(), err)
	}
	if limits.Count < 0 {
		return EventLimits{}, fmt.Errorf("config: --event_limits count must be >= 0, got %d", limits.Count)
	}
	if limits.Skip < 0 {
		return EventLimits{}, fmt.Errorf("config: --event_limits skip must be >= 0, got %d", limits.Skip)
	}
	if limits.TsEnd != 0 && limits.TsStart > limits.TsEnd {
		return EventLimits{}, fmt.Errorf("config: --event_limits ts_start (%v) must be <= ts_end (%v)", limits.TsStart, limits.TsEnd)
	}
	return limits, nil
}
