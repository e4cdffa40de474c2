// Package krotov implements Krotov's method for quantum optimal control:
// an iterative algorithm that computes time-dependent control fields
// steering a set of dynamical systems from known initial states toward
// target states, with a first-order guarantee of monotonic improvement.
//
// The package owns the optimization loop only. The equation of motion
// (Propagator), the optimization functional (ChiConstructor), the state
// algebra (State), and the generator algebra (Operator) are supplied by the
// caller through the narrow contracts defined in this file.
package krotov

import (
	"go.uber.org/zap"
)

// State is a quantum (or classical) state with the algebraic operations the
// optimization needs. Implementations must treat states as immutable values:
// every operation returns a new State.
type State interface {
	// Overlap returns the inner product ⟨s|other⟩.
	Overlap(other State) complex128
	// Norm returns the norm sqrt(⟨s|s⟩).
	Norm() float64
	// Scale returns c·s.
	Scale(c complex128) State
	// Add returns s + other.
	Add(other State) State
	// Sub returns s − other.
	Sub(other State) State
	// Zero returns the zero state of the same shape as s.
	Zero() State
}

// Operator is a linear operator acting on states.
type Operator interface {
	// Apply returns the operator applied to the given state.
	Apply(s State) State
	// Dagger returns the Hermitian adjoint of the operator.
	Dagger() Operator
}

// Control is an opaque handle for a time-dependent control field appearing
// in a generator. Handles are pointers, so two terms reference the same
// control exactly if they hold the same handle. The optimizer never mutates
// the caller's controls.
type Control interface {
	control()
}

// FuncControl is a control given as a continuous function of time.
type FuncControl struct {
	F func(t float64) float64
}

func (*FuncControl) control() {}

// NewFuncControl wraps a control function in a fresh handle.
func NewFuncControl(f func(t float64) float64) *FuncControl {
	return &FuncControl{F: f}
}

// ArrayControl is a control given as values sampled on the points of the
// optimization time grid. Its length must match the time grid.
type ArrayControl struct {
	Values []float64
}

func (*ArrayControl) control() {}

// NewArrayControl wraps sampled control values in a fresh handle. The slice
// is copied, so later mutation by the caller has no effect.
func NewArrayControl(values []float64) *ArrayControl {
	v := make([]float64, len(values))
	copy(v, values)
	return &ArrayControl{Values: v}
}

// Pulse holds the interval-discretized values of a control: one value per
// time-grid interval (length N−1 for a grid of N points).
type Pulse []float64

// PulseOptions are the per-control optimization parameters. One entry is
// required for every distinct control referenced by the objectives.
type PulseOptions struct {
	// LambdaA is the Krotov step-size parameter λₐ. It governs the overall
	// magnitude of the pulse update: large values give small updates, small
	// values may cause spikes and numerical instability. Must be positive.
	LambdaA float64
	// Shape is the update shape S(t) with values in [0, 1], scaling the
	// update at each point in time. Use OneShape for an unconstrained
	// update; ZeroShape freezes the control entirely.
	Shape Shape
}

// Propagator advances a state over a single time interval under an
// evaluated generator. A backwards propagation request reverses the
// direction of the evolution (used for the adjoint states).
type Propagator interface {
	Propagate(gen EvaluatedGenerator, state State, dt float64, dissipation []EvaluatedGenerator, backwards bool) (State, error)
}

// PropagatorFunc adapts a function to the Propagator interface.
type PropagatorFunc func(gen EvaluatedGenerator, state State, dt float64, dissipation []EvaluatedGenerator, backwards bool) (State, error)

// Propagate calls f.
func (f PropagatorFunc) Propagate(gen EvaluatedGenerator, state State, dt float64, dissipation []EvaluatedGenerator, backwards bool) (State, error) {
	return f(gen, state, dt, dissipation, backwards)
}

// Mu computes the directional derivative ∂H/∂ϵ of the generator of the
// objective with index iObj with respect to the control with index iPulse,
// at the given time interval. The returned operator, applied to a forward
// state, yields the term entering the update overlap. A nil return means
// the generator does not depend on that control.
type Mu func(objectives []*Objective, iObj int, pulses []Pulse, mapping []ControlsMapping, iPulse, timeIndex int) Operator

// ChiConstructor computes the boundary condition for the backward
// propagation from the final-time forward states: one adjoint state per
// objective. This is where the optimization functional enters.
type ChiConstructor func(fwStatesT []State, objectives []*Objective, tauVals [][]complex128) ([]State, error)

// StateConstraint is the signature for state-dependent constraints.
// Constraints are not implemented; passing one is a configuration error.
type StateConstraint func(objectives []*Objective, forward []StateSequence) error

// Config collects everything a single optimization run needs. Objectives,
// PulseOptions, Tlist, Propagator and ChiConstructor are required; all
// remaining fields have working defaults.
type Config struct {
	// Objectives are the control problems to be solved simultaneously.
	Objectives []*Objective
	// PulseOptions maps every distinct control handle appearing in the
	// objectives to its optimization parameters.
	PulseOptions map[Control]PulseOptions
	// Tlist is the propagation time grid.
	Tlist TimeGrid
	// Propagator advances states interval by interval.
	Propagator Propagator
	// ChiConstructor computes the backward boundary condition.
	ChiConstructor ChiConstructor

	// Mu computes generator derivatives. Defaults to DerivativeWrtPulse,
	// which covers generators that are linear in their controls.
	Mu Mu
	// Sigma enables the second-order contribution to the pulse update when
	// non-nil. With a nil Sigma the first-order method is used.
	Sigma Sigma
	// IterStart is the formal iteration number at which to start.
	IterStart int
	// IterStop is the iteration number after which to stop, whether or not
	// convergence was reached. Defaults to 5000.
	IterStop int
	// CheckConvergence decides after each iteration whether to stop.
	// With a nil check the optimization only ends at IterStop.
	CheckConvergence ConvergenceCheck
	// InfoHook is called after each iteration (including the pre-update
	// iteration 0); its return value is stored in Result.InfoVals.
	InfoHook InfoHook
	// ModifyParams are mutators run immediately before the info hook, in
	// order. They may adjust λₐ values or shape arrays in place, and can
	// hand data to the info hook through IterationData.SharedData.
	ModifyParams []ModifyParams
	// StateConstraint must be nil; state-dependent constraints are not
	// implemented.
	StateConstraint StateConstraint
	// Storage allocates the per-objective state sequences. Defaults to
	// in-memory dense storage.
	Storage Storage
	// ParallelMap evaluates the per-objective propagation tasks. Defaults
	// to SerialMap.
	ParallelMap ParallelMap
	// StoreAllPulses records the optimized pulses of every iteration in the
	// result, not just the final ones.
	StoreAllPulses bool
	// Logger receives progress events. Defaults to a no-op logger.
	Logger *zap.Logger
}
