package normalize

import (
	"math"
	"strings"

	"github.com/aiutrace/analyzer/internal/tracevent"
)

// freqTolerance is the relative deviation between a detected frequency and
// the configured one before normalize recommends a different --freq.
const freqTolerance = 0.1

// eventStats is a rolling per-pid statistic over one kind of frequency
// estimate (duration-based or interval-based): the cycle/ts/dur of the
// most recent qualifying event plus a running min/max/mean of the
// estimated frequency, the mean kept exact via Welford's running-average
// update rather than an accumulate-then-divide that would overflow on a
// long trace.
type eventStats struct {
	cycleStart, cycleEnd int64
	ts, dur              float64
	freqMean, freqMin    float64
	freqMax              float64
	count                int
}

func newEventStats() *eventStats {
	return &eventStats{freqMin: math.Inf(1)}
}

func (s *eventStats) update(cycleStart, cycleEnd int64, ts, dur, freq float64) {
	s.cycleStart, s.cycleEnd = cycleStart, cycleEnd
	s.ts, s.dur = ts, dur
	if freq > s.freqMax {
		s.freqMax = freq
	}
	if freq < s.freqMin {
		s.freqMin = freq
	}
	s.count++
	s.freqMean += (freq - s.freqMean) / float64(s.count)
}

// jobStats holds one pid's duration-based and interval-based frequency
// estimates, computed from consecutive COMPUTE_EXEC events.
type jobStats struct {
	duration *eventStats
	interval *eventStats
}

// computeTSMapping names the pair of corrected TSx fields a "Cmpt Exec"
// event's compute span starts and ends on. TS3 marks compute dispatch and
// TS5 marks compute completion in every observed dialect, so the mapping
// is dialect-independent for this one event kind.
func computeTSMapping(name string) (tsA, tsB string, ok bool) {
	if !strings.Contains(name, "Cmpt Exec") {
		return "", "", false
	}
	return "TS3", "TS5", true
}

// updateEventStats feeds a compute-exec event's corrected TSx values into
// its pid's running frequency estimates and the trace-wide drift tracker
// that Drain reports against at the end of the run.
func (c *Context) updateEventStats(e *tracevent.TraceEvent, corrected map[string]uint64) {
	tsA, tsB, ok := computeTSMapping(e.Name)
	if !ok || e.Dur <= 0 {
		return
	}
	a, okA := corrected[tsA]
	b, okB := corrected[tsB]
	if !okA || !okB {
		return
	}

	js, ok := c.jobStats[e.Pid]
	if !ok {
		js = &jobStats{duration: newEventStats(), interval: newEventStats()}
		c.jobStats[e.Pid] = js
	}

	durCycles := int64(b) - int64(a)
	durFreq := float64(durCycles) / e.Dur
	js.duration.update(int64(a), int64(b), e.Ts, e.Dur, durFreq)

	var gapFreq float64
	if js.interval.count > 0 {
		gapCycles := int64(a) - js.interval.cycleStart
		gapTime := e.Ts - js.interval.ts
		if gapTime != 0 {
			gapFreq = float64(gapCycles) / gapTime
		} else {
			gapFreq = durFreq
		}
	} else {
		gapFreq = durFreq
	}
	js.interval.update(int64(a), int64(b), e.Ts, e.Dur, gapFreq)

	c.trackDrift(durFreq)
}

// trackDrift folds one more actual-frequency sample into the trace-wide
// min/max/mean drift tracker, the basis for Drain's end-of-run warnings.
func (c *Context) trackDrift(freq float64) {
	c.driftCount++
	if freq > c.driftMax {
		c.driftMax = freq
	}
	if freq < c.driftMin {
		c.driftMin = freq
	}
	c.driftMean += (freq - c.driftMean) / float64(c.driftCount)
}

// emitDriftWarnings reports the trace-wide actual-frequency spread once,
// at the end of the run: a spread over 20% of the mean suggests some
// events landed in the wrong TSx epoch; otherwise a mean far from the
// configured SoC frequency suggests a better --freq value.
func (c *Context) emitDriftWarnings() {
	if c.driftCount == 0 {
		return
	}
	if c.driftMax-c.driftMin > c.driftMean*0.2 {
		c.Warn("detected actual frequency range {d[range]} (min {d[min]}, max {d[max]}) spans more than 20% of the mean {d[mean]} - some events may have been assigned to the wrong TSx epoch",
			map[string]any{"range": c.driftMax - c.driftMin, "min": c.driftMin, "max": c.driftMax, "mean": c.driftMean})
		return
	}
	socFreq := c.configuredSocFreq()
	if socFreq > 0 && math.Abs(c.driftMean-socFreq) > socFreq*freqTolerance {
		c.Warn("detected actual frequency {d[mean]} drifts from the configured SoC frequency {d[configured]} - consider --freq={d[mean]}",
			map[string]any{"mean": c.driftMean, "configured": socFreq})
	}
}

// configuredSocFreq returns the SoC frequency of an arbitrary registered
// job, used only as the reference point for the end-of-run drift
// recommendation.
func (c *Context) configuredSocFreq() float64 {
	for pid := range c.jobStats {
		if freq := c.frequencyFor(pid); freq > 0 {
			return freq
		}
	}
	return 0
}
