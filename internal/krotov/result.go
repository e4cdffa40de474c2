package krotov

import "time"

// Result accumulates the diagnostics, pulses and states of an optimization.
// It is appended to after every iteration and returned on normal
// termination (converged or iteration limit reached).
type Result struct {
	// Tlist is the time grid the optimization ran on.
	Tlist TimeGrid
	// Objectives are the control problems that were optimized.
	Objectives []*Objective
	// GuessControls are the discretized guess controls (one value per grid
	// point) the optimization started from.
	GuessControls [][]float64
	// ControlsMapping locates the controls within the objectives'
	// generators.
	ControlsMapping []ControlsMapping

	// Iters lists the iteration numbers, starting at the pre-update
	// iteration (IterStart).
	Iters []int
	// IterSeconds holds the wall-clock seconds spent in each iteration.
	IterSeconds []float64
	// InfoVals holds the info-hook return value of each iteration.
	InfoVals []interface{}
	// TauVals holds, per iteration, the overlap of each objective's
	// final-time state with its target.
	TauVals [][]complex128
	// States are the final-time forward states of the last iteration.
	States []State
	// OptimizedControls are the optimized controls, point-valued on the
	// time grid after termination.
	OptimizedControls [][]float64
	// AllPulses holds the pulses of every iteration, if requested.
	AllPulses [][]Pulse

	// StartTime and EndTime bracket the whole optimization.
	StartTime time.Time
	EndTime   time.Time
	// Message is the human-readable termination reason.
	Message string
	// Converged reports whether the convergence check stopped the
	// optimization before the iteration limit.
	Converged bool
}

func newResult(tlist TimeGrid, objectives []*Objective) *Result {
	return &Result{
		Tlist:      tlist,
		Objectives: objectives,
		StartTime:  time.Now(),
	}
}

// Iterations returns the number of update iterations performed, not
// counting the pre-update evaluation of the guess pulses.
func (r *Result) Iterations() int {
	if len(r.Iters) == 0 {
		return 0
	}
	return len(r.Iters) - 1
}

// LastTau returns the overlap values of the most recent iteration, or nil.
func (r *Result) LastTau() []complex128 {
	if len(r.TauVals) == 0 {
		return nil
	}
	return r.TauVals[len(r.TauVals)-1]
}
