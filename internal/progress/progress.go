// Package progress implements a monotonic 0→100 progress reporter with
// sub-ranges for each Synchronizer phase, generalizing the teacher's
// single-shot job-status POST into a reusable callback the orchestrator
// can call repeatedly mid-run.
package progress

import "sync"

// Phase names a pipeline stage. Values mirror the Synchronizer state
// machine's phase names.
type Phase string

const (
	PhaseParsing        Phase = "Parsing"
	PhaseFetching       Phase = "Fetching"
	PhaseStretching     Phase = "Stretching"
	PhaseAssembling     Phase = "Assembling"
	PhasePostProcessing Phase = "PostProcessing"
	PhaseFinalizing     Phase = "Finalizing"
	PhaseDone           Phase = "Done"
)

// Callback receives a monotonic non-decreasing overall percentage and the
// phase it belongs to.
type Callback func(percent float32, phase Phase)

// PhaseWeight gives a pipeline phase its share of the overall 0-100 range.
type PhaseWeight struct {
	Phase  Phase
	Weight float32
}

// DefaultPhaseWeights mirrors SYSTEM OVERVIEW's approximate per-component
// share of the pipeline's work.
func DefaultPhaseWeights() []PhaseWeight {
	return []PhaseWeight{
		{PhaseParsing, 5},
		{PhaseFetching, 25},
		{PhaseStretching, 35},
		{PhaseAssembling, 15},
		{PhasePostProcessing, 15},
		{PhaseFinalizing, 5},
	}
}

// Tracker maps fractional progress within a phase to an overall
// percentage, guaranteeing the reported value never decreases.
type Tracker struct {
	mu      sync.Mutex
	cb      Callback
	weights []PhaseWeight
	starts  map[Phase]float32
	lastPct float32
}

// NewTracker builds a Tracker from an ordered list of phase weights (which
// should sum to 100); cb is invoked on every Report.
func NewTracker(cb Callback, weights []PhaseWeight) *Tracker {
	t := &Tracker{cb: cb, weights: weights, starts: make(map[Phase]float32)}

	var cursor float32
	for _, w := range weights {
		t.starts[w.Phase] = cursor
		cursor += w.Weight
	}

	return t
}

// Report maps fraction (in [0,1], progress within the named phase) to an
// overall percentage and invokes the callback. Values are clamped so the
// reported percentage never decreases across calls, matching the
// monotonicity guarantee in spec §5.
func (t *Tracker) Report(phase Phase, fraction float32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	start, ok := t.starts[phase]
	if !ok {
		start = t.lastPct
	}

	pct := start + t.weightFor(phase)*fraction
	if pct < t.lastPct {
		pct = t.lastPct
	}
	t.lastPct = pct

	if t.cb != nil {
		t.cb(pct, phase)
	}
}

// Done reports a terminal 100% at PhaseDone.
func (t *Tracker) Done() {
	t.mu.Lock()
	t.lastPct = 100
	t.mu.Unlock()

	if t.cb != nil {
		t.cb(100, PhaseDone)
	}
}

func (t *Tracker) weightFor(phase Phase) float32 {
	for _, w := range t.weights {
		if w.Phase == phase {
			return w.Weight
		}
	}
	return 0
}
