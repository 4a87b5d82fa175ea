package normalize

import "math"

const counterWidthBits = 32

var counterSpan = math.Exp2(counterWidthBits) // 2^32 raw counter ticks per epoch

// streamStats tracks 32-bit hardware counter overflow reconstruction and
// clock-frequency drift for a single (pid, TSx key) stream. TS1..TS5 are
// independent free-running counters on the same device clock; each wraps
// every 2^32 ticks, so a trace spanning more wall-clock time than one wrap
// period needs its raw values lifted into a monotonically increasing
// 64-bit tick count before they are usable for duration math.
type streamStats struct {
	socFreqHz float64 // nominal configured frequency, ticks/second

	haveFirst      bool
	firstWallUs    float64
	firstTicks     uint64
	lastRaw        uint32
	epoch          uint64
	lastWallUs     float64
	lastTicks      uint64
	calibratedFreq float64 // actual_freq: drift-corrected ticks/second
}

func newStreamStats(socFreqHz float64) *streamStats {
	return &streamStats{socFreqHz: socFreqHz, calibratedFreq: socFreqHz}
}

// overflowSpanUs is the wall-clock duration one 32-bit epoch spans at this
// stream's last-calibrated frequency.
func (s *streamStats) overflowSpanUs() float64 {
	freq := s.calibratedFreq
	if freq <= 0 {
		freq = s.socFreqHz
	}
	if freq <= 0 {
		return math.Inf(1)
	}
	return counterSpan / freq * 1e6
}

// localCorrection reconstructs raw's full 64-bit tick count by detecting
// wraparound (the raw value decreasing since the previous observation on
// this stream means the counter has overflowed at least once) and folding
// it into a running epoch count. eventWallUs is the event's own (possibly
// still-uncorrected) microsecond timestamp: it seeds the first observation
// and, on every later call, feeds the frequency recalibration; wrap
// detection itself is driven by the raw counter alone.
func (s *streamStats) localCorrection(raw uint32, eventWallUs float64) uint64 {
	if !s.haveFirst {
		s.haveFirst = true
		s.firstWallUs = eventWallUs
		s.firstTicks = uint64(raw)
		s.lastRaw = raw
		s.lastWallUs = eventWallUs
		s.lastTicks = uint64(raw)
		return uint64(raw)
	}

	if raw < s.lastRaw {
		s.epoch++
	}
	s.lastRaw = raw

	ticks := s.epoch*uint64(counterSpan) + uint64(raw)
	s.recalibrate(ticks, eventWallUs)
	s.lastTicks = ticks
	s.lastWallUs = eventWallUs
	return ticks
}

// recalibrate updates calibratedFreq from the elapsed device ticks and
// elapsed wall-clock time since the stream's first observation, so a
// stream whose true oscillator runs slightly off its nominal frequency
// (clock drift) still converts ticks to microseconds accurately over a
// long-running trace.
func (s *streamStats) recalibrate(ticks uint64, wallUs float64) {
	elapsedWallUs := wallUs - s.firstWallUs
	if elapsedWallUs <= 0 {
		return
	}
	elapsedTicks := ticks - s.firstTicks
	s.calibratedFreq = float64(elapsedTicks) / (elapsedWallUs / 1e6)
}

// globalCorrection converts a locally reconstructed tick count into an
// absolute microsecond timestamp, anchored at the stream's first
// observation and scaled by the drift-calibrated frequency.
func (s *streamStats) globalCorrection(ticks uint64) float64 {
	freq := s.calibratedFreq
	if freq <= 0 {
		freq = s.socFreqHz
	}
	if freq <= 0 {
		return s.firstWallUs
	}
	elapsedTicks := ticks - s.firstTicks
	return s.firstWallUs + float64(elapsedTicks)/freq*1e6
}
