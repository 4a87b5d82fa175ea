// Package ingest owns process-wide, read-mostly bookkeeping about the jobs
// and ranks present in a trace: which dialect each pid belongs to, the
// soc/core clock frequencies it was recorded under, and loading the raw
// Chrome Trace Event JSON into tracevent.TraceEvent values.
package ingest

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/aiutrace/analyzer/internal/tracevent"
)

// JobInfo is what the pipeline knows about one pid/job before any event
// from it has been normalized.
type JobInfo struct {
	Pid        int
	JobHash    string
	Dialect    tracevent.Dialect
	SocFreqHz  float64
	CoreFreqHz float64
}

// Registry is the process-wide job table, equivalent to the Python
// GlobalIngestData singleton but passed explicitly rather than hidden as
// module state, so tests can run several independent registries.
type Registry struct {
	mu   sync.RWMutex
	jobs map[int]JobInfo
}

// NewRegistry returns an empty job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[int]JobInfo)}
}

// RegisterJob records or updates the job info for a pid. Later calls for the
// same pid overwrite fields that were set (zero values are ignored), since
// dialect and frequency are often reported in separate metadata events.
func (r *Registry) RegisterJob(pid int, info JobInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.jobs[pid]
	if !ok {
		existing = JobInfo{Pid: pid}
	}
	if info.JobHash != "" {
		existing.JobHash = info.JobHash
	}
	if info.Dialect.Name != "" {
		existing.Dialect = info.Dialect
	}
	if info.SocFreqHz != 0 {
		existing.SocFreqHz = info.SocFreqHz
	}
	if info.CoreFreqHz != 0 {
		existing.CoreFreqHz = info.CoreFreqHz
	}
	existing.Pid = pid
	r.jobs[pid] = existing
}

// Job returns the registered info for pid.
func (r *Registry) Job(pid int) (JobInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.jobs[pid]
	return info, ok
}

// Dialect returns the dialect registered for pid, defaulting to FLEX with
// ok=false when the pid was never registered (matches the original's
// fallback behavior for traces without an explicit dialect metadata event).
func (r *Registry) Dialect(pid int) (tracevent.Dialect, bool) {
	info, ok := r.Job(pid)
	if !ok || info.Dialect.Name == "" {
		return tracevent.FLEX, false
	}
	return info.Dialect, true
}

// Pids returns all registered pids in ascending order.
func (r *Registry) Pids() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int, 0, len(r.jobs))
	for pid := range r.jobs {
		out = append(out, pid)
	}
	slices.Sort(out)
	return out
}

// String renders the registry for diagnostic logging.
func (r *Registry) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("ingest.Registry{%d jobs}", len(r.jobs))
}
