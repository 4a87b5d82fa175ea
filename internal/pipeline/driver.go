// Package pipeline wires the stage implementations into the ordered chain
// the rest of the program runs: normalize, classify, sort/overlap, flows,
// utilization, derived events, and TensorBoard refinement.
//
// The driver below materializes each stage's full output before handing it
// to the next stage, rather than interleaving every stage per input event.
// Since no stage's behavior depends on what a downstream stage does with
// its output, the two are observationally equivalent here; staging by
// slice is far simpler to get right in Go than a generator-based
// event-at-a-time interleave, and was chosen deliberately over replicating
// that shape.
package pipeline

import (
	"context"
	"fmt"

	"github.com/aiutrace/analyzer/internal/pipectx"
)

// step is one position in the driver's stage list: either a single-pass
// Stage or a two-phase BarrierStage, wrapped so the driver can run either
// uniformly over a materialized event slice.
type step interface {
	name() string
	run(events []pipectx.Event) ([]pipectx.Event, error)
}

type stageStep struct{ s pipectx.Stage }

func (st stageStep) name() string { return st.s.Name() }

func (st stageStep) run(events []pipectx.Event) ([]pipectx.Event, error) {
	var out []pipectx.Event
	for _, e := range events {
		res, err := st.s.Process(e)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", st.s.Name(), err)
		}
		out = append(out, res...)
	}
	drained, err := st.s.Drain()
	if err != nil {
		return nil, fmt.Errorf("%s: drain: %w", st.s.Name(), err)
	}
	return append(out, drained...), nil
}

type barrierStep struct{ b pipectx.BarrierStage }

func (bs barrierStep) name() string { return bs.b.Name() }

// run implements the two-phase barrier contract: every event in this
// stage's input is collected first, Finalize turns the accumulated
// statistics into whatever Apply consults, and only then is the same
// input replayed through Apply. This is the "run the pipeline twice"
// behavior, scoped to a single stage rather than the whole chain.
func (bs barrierStep) run(events []pipectx.Event) ([]pipectx.Event, error) {
	for _, e := range events {
		if err := bs.b.Collect(e); err != nil {
			return nil, fmt.Errorf("%s: collect: %w", bs.b.Name(), err)
		}
	}
	if err := bs.b.Finalize(); err != nil {
		return nil, fmt.Errorf("%s: finalize: %w", bs.b.Name(), err)
	}
	var out []pipectx.Event
	for _, e := range events {
		res, err := bs.b.Apply(e)
		if err != nil {
			return nil, fmt.Errorf("%s: apply: %w", bs.b.Name(), err)
		}
		out = append(out, res...)
	}
	drained, err := bs.b.Drain()
	if err != nil {
		return nil, fmt.Errorf("%s: drain: %w", bs.b.Name(), err)
	}
	return append(out, drained...), nil
}

// Driver runs an ordered list of stages over a materialized event slice,
// feeding each stage's full output (including its drain) as the next
// stage's input.
type Driver struct {
	steps []step
}

// NewDriver returns an empty driver; stages are appended with AddStage and
// AddBarrier in the order they should run.
func NewDriver() *Driver {
	return &Driver{}
}

// AddStage appends a single-pass stage to the chain.
func (d *Driver) AddStage(s pipectx.Stage) {
	d.steps = append(d.steps, stageStep{s})
}

// AddBarrier appends a two-phase barrier stage to the chain.
func (d *Driver) AddBarrier(b pipectx.BarrierStage) {
	d.steps = append(d.steps, barrierStep{b})
}

// Names returns the stage names in execution order, for diagnostics.
func (d *Driver) Names() []string {
	out := make([]string, len(d.steps))
	for i, s := range d.steps {
		out[i] = s.name()
	}
	return out
}

// Run pushes events through every stage in order and returns the final
// output. A stage's error is wrapped with its name and returned
// immediately; no further stages run.
func (d *Driver) Run(events []pipectx.Event) ([]pipectx.Event, error) {
	return d.RunContext(context.Background(), events)
}

// RunContext is Run with cancellation checked between stages, mirroring
// the teacher's context-driven orchestrator run loop: ctx is never passed
// into a stage mid-flight, only consulted at the stage boundary, so a
// cancellation never interrupts a stage partway through its Collect/Apply
// pass.
func (d *Driver) RunContext(ctx context.Context, events []pipectx.Event) ([]pipectx.Event, error) {
	cur := events
	for _, s := range d.steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline: canceled before %s: %w", s.name(), err)
		}
		next, err := s.run(cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
