package utilization

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// fingerprintBucket is the modulus every kernel name's hash is folded into
// before it joins a fingerprint string, matching rcu_utilization.py's
// `hash(kernel_name) mod 65535`: collisions inside that range are
// intentional, since the match below only needs the concatenated digest to
// line up between an observed stream and a table, not to identify a kernel
// uniquely.
const fingerprintBucket = 65535

// maxObservedEntries and maxTableEntries bound how many kernel names a
// fingerprint accumulates before it stops growing: an observed device
// stream only needs its first few dozen kernels to be distinguishable,
// while a compiler's ideal-cycle table can run to hundreds of rows.
const (
	maxObservedEntries = 30
	maxTableEntries    = 500
)

// Fingerprint is a bounded, order-preserving digest of a kernel name
// sequence: one built incrementally from an observed device kernel stream,
// or one built once from a compiler-log Table's rows. Matching an observed
// fingerprint against a table's identifies which compiled schedule that
// stream actually ran.
type Fingerprint struct {
	data      []string // hash(name) mod 65535, in arrival order, joined with "_" on demand
	limit     int
	totalTime float64
	itemCount int
}

// newFingerprint returns an empty fingerprint bounded to at most limit
// entries.
func newFingerprint(limit int) *Fingerprint {
	return &Fingerprint{limit: limit}
}

// NewFingerprint returns an empty fingerprint for an observed kernel
// stream, bounded the way rcu_utilization.py bounds a live stream's
// fingerprint (N=30).
func NewFingerprint() *Fingerprint {
	return newFingerprint(maxObservedEntries)
}

// NewTableFingerprint returns an empty fingerprint for a compiler-log
// table's kernel rows, bounded the way rcu_utilization.py bounds a table's
// fingerprint (N=500).
func NewTableFingerprint() *Fingerprint {
	return newFingerprint(maxTableEntries)
}

// Add folds one more kernel observation into the fingerprint: its name
// joins the digest (until the entry limit is hit) and its duration accrues
// to the fingerprint's total_time, regardless of the limit, so item_count
// and total_time always reflect everything seen even once the digest
// itself stops growing.
func (f *Fingerprint) Add(kernel string, dur float64) {
	f.itemCount++
	f.totalTime += dur
	if f.limit > 0 && len(f.data) >= f.limit {
		return
	}
	f.data = append(f.data, strconv.FormatUint(xxhash.Sum64String(kernel)%fingerprintBucket, 10))
}

// Digest returns the fingerprint's underscore-joined hash sequence.
func (f *Fingerprint) Digest() string {
	return strings.Join(f.data, "_")
}

// Len returns the number of kernel names folded into the digest so far
// (capped at the fingerprint's entry limit).
func (f *Fingerprint) Len() int {
	return len(f.data)
}

// matchThreshold is the minimum similarity score MatchBest accepts before
// it warns the match is uncertain.
const matchThreshold = 0.8

// ambiguousMargin is how close the top two candidate scores can be before
// MatchBest warns the match is ambiguous.
const ambiguousMargin = 0.2

// MatchResult is one fingerprint match outcome: the best-scoring table, its
// score, and whether that match looked uncertain or ambiguous against the
// runner-up.
type MatchResult struct {
	Table     *Table
	Score     float64
	Uncertain bool
	Ambiguous bool
}

// MatchBest scores fp against every candidate table's fingerprint and
// returns the best match. Returns a zero-value result with a nil Table if
// tables is empty.
func MatchBest(fp *Fingerprint, tables []*Table) MatchResult {
	var best *Table
	var bestScore, secondScore float64
	bestScore = -1
	secondScore = -1
	for _, t := range tables {
		score := similarity(fp, t.Fingerprint())
		if score > bestScore {
			secondScore = bestScore
			bestScore = score
			best = t
		} else if score > secondScore {
			secondScore = score
		}
	}
	if best == nil {
		return MatchResult{}
	}
	return MatchResult{
		Table:     best,
		Score:     bestScore,
		Uncertain: bestScore < matchThreshold,
		Ambiguous: secondScore >= 0 && bestScore-secondScore < ambiguousMargin,
	}
}

// similarity implements rcu_utilization.py's weighted fingerprint-match
// score: 0.5 for the observed digest appearing as a substring of the
// table's (full credit) or not (half credit), plus 0.5 times the observed
// item count as a share of the table's (zero when the stream ran more
// items than the table), plus 0.5 times the table's elapsed time as a
// share of the observed stream's (zero when the stream took less time
// than the table).
func similarity(o, t *Fingerprint) float64 {
	if o.Len() == 0 || t.Len() == 0 {
		return 0
	}

	digestScore := 0.5
	if !strings.Contains(t.Digest(), o.Digest()) {
		digestScore = 0.25
	}

	countScore := 0.0
	if o.itemCount <= t.itemCount && t.itemCount > 0 {
		countScore = float64(o.itemCount) / float64(t.itemCount)
	}

	timeScore := 0.0
	if t.totalTime <= o.totalTime && o.totalTime > 0 {
		timeScore = t.totalTime / o.totalTime
	}

	return digestScore + 0.5*countScore + 0.5*timeScore
}
