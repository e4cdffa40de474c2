package krotov

import (
	"time"

	"go.uber.org/zap"
)

// IterationData is the read view of one finished iteration, handed to the
// parameter mutators and the info hook. Hooks must not modify anything but
// SharedData, with the exception of ModifyParams mutators, which may adjust
// LambdaVals and ShapeArrays in place.
type IterationData struct {
	// Iteration is the iteration number; 0 is the pre-update evaluation of
	// the guess pulses.
	Iteration         int
	Objectives        []*Objective
	AdjointObjectives []*Objective
	// BackwardStates are the adjoint trajectories; nil at iteration 0.
	BackwardStates []StateSequence
	// ForwardStates are the full forward trajectories of this iteration.
	ForwardStates []StateSequence
	// FwStatesT are the forward states at final time.
	FwStatesT []State
	// OptimizedPulses are the pulses after this iteration's update (the
	// guess pulses at iteration 0).
	OptimizedPulses []Pulse
	LambdaVals      []float64
	ShapeArrays     []Pulse
	// TauVals are the overlaps of the final-time states with the targets.
	TauVals []complex128
	// StartTime and StopTime bracket the iteration's wall-clock interval.
	StartTime time.Time
	StopTime  time.Time
	// SharedData is a scratch map shared by all hooks of one iteration;
	// mutators use it to hand data to the info hook.
	SharedData map[string]interface{}
}

// InfoHook is called after every iteration for analysis purposes. Its
// return value is recorded in Result.InfoVals. An error aborts the
// optimization.
type InfoHook func(d *IterationData) (interface{}, error)

// ModifyParams is called after every iteration, before the info hook, and
// may mutate λₐ values, shape arrays, or SharedData for advanced use cases
// such as dynamically adjusting the step size.
type ModifyParams func(d *IterationData) error

// ChainInfoHooks combines several info hooks into one. All hooks run in
// order; the combined return value is that of the last hook returning
// non-nil.
func ChainInfoHooks(hooks ...InfoHook) InfoHook {
	return func(d *IterationData) (interface{}, error) {
		var result interface{}
		for _, hook := range hooks {
			v, err := hook(d)
			if err != nil {
				return nil, err
			}
			if v != nil {
				result = v
			}
		}
		return result, nil
	}
}

// LogProgress returns an info hook that logs one structured event per
// iteration and records the average infidelity as the iteration's info
// value.
func LogProgress(logger *zap.Logger) InfoHook {
	return func(d *IterationData) (interface{}, error) {
		sum := 0.0
		for _, tau := range d.TauVals {
			sum += real(tau)*real(tau) + imag(tau)*imag(tau)
		}
		infidelity := 1.0
		if len(d.TauVals) > 0 {
			infidelity = 1.0 - sum/float64(len(d.TauVals))
		}
		logger.Info("krotov iteration finished",
			zap.Int("iteration", d.Iteration),
			zap.Float64("infidelity", infidelity),
			zap.Duration("elapsed", d.StopTime.Sub(d.StartTime)),
		)
		return infidelity, nil
	}
}
