package krotov

// Sigma computes the scalar coefficient of the second-order contribution to
// the pulse update. A non-nil Sigma in the Config switches the update rule
// from the first-order to the second-order variant of Krotov's method.
type Sigma interface {
	// Value returns σ(t), evaluated at the midpoint of a time interval.
	Value(t float64) float64
	// Refresh is invoked at the end of every iteration that does not stop
	// the optimization by convergence, with the trajectories of the
	// just-finished iteration, so the implementation can update its
	// internal coefficients for the next one.
	Refresh(data *RefreshData)
}

// RefreshData is everything a Sigma implementation may need to recompute
// its coefficients between iterations.
type RefreshData struct {
	// ForwardStates are the forward trajectories of the finished iteration.
	ForwardStates []StateSequence
	// ForwardStates0 are the unperturbed reference trajectories the
	// finished iteration started from.
	ForwardStates0 []StateSequence
	// ChiStates are the normalized backward boundary states.
	ChiStates []State
	// ChiNorms are the norms divided out of ChiStates.
	ChiNorms []float64
	// OptimizedPulses and GuessPulses are the pulses after and before the
	// finished iteration.
	OptimizedPulses []Pulse
	GuessPulses     []Pulse
	Objectives      []*Objective
	Result          *Result
}
