package normalize

import "testing"

func TestLocalCorrectionDetectsWraparound(t *testing.T) {
	s := newStreamStats(1e9)

	first := s.localCorrection(100, 0)
	if first != 100 {
		t.Fatalf("first observation should return raw value, got %d", first)
	}

	// counter climbs normally
	second := s.localCorrection(4_000_000_000, 10)
	if second != 4_000_000_000 {
		t.Fatalf("expected no epoch bump yet, got %d", second)
	}

	// wraps past 2^32 back down to a small value: must bump the epoch
	third := s.localCorrection(50, 20)
	wantEpoch := uint64(1) << 32
	if third != wantEpoch+50 {
		t.Fatalf("expected wraparound reconstruction %d, got %d", wantEpoch+50, third)
	}
}

func TestGlobalCorrectionUsesCalibratedFrequency(t *testing.T) {
	s := newStreamStats(1e9) // 1 GHz nominal

	s.localCorrection(0, 0)
	// 1000 ticks elapsed over 1us of wall time => true frequency is 1GHz, matches nominal
	s.localCorrection(1000, 1)

	corrected := s.globalCorrection(1000)
	if corrected < 0.9 || corrected > 1.1 {
		t.Fatalf("expected globalCorrection(1000) to land near 1us, got %v", corrected)
	}
}

func TestOverflowSpanShrinksAtHigherFrequency(t *testing.T) {
	slow := newStreamStats(1e6)
	fast := newStreamStats(1e9)
	if slow.overflowSpanUs() <= fast.overflowSpanUs() {
		t.Fatalf("expected a slower clock to have a longer overflow span")
	}
}
