package krotov

import "go.uber.org/zap"

// forwardPropagation propagates the initial state of objective iObj over
// the entire time grid with the given pulses, storing the state at every
// grid point. Propagator errors pass through unmodified.
func (o *optimization) forwardPropagation(iObj int, pulses []Pulse) (StateSequence, error) {
	o.log.Debug("started forward propagation", zap.Int("objective", iObj))
	obj := o.objectives[iObj]
	mapping := o.mapping[iObj]
	seq := o.storage.Allocate(len(o.tlist))
	state := obj.InitialState
	seq.Set(0, state)
	for timeIndex := 0; timeIndex < o.tlist.Intervals(); timeIndex++ {
		gen := obj.Generator.evaluate(pulses, mapping[0], timeIndex, false)
		diss := evaluateDissipation(obj, pulses, mapping, timeIndex, false)
		var err error
		state, err = o.propagator.Propagate(gen, state, o.tlist.Dt(timeIndex), diss, false)
		if err != nil {
			return nil, err
		}
		seq.Set(timeIndex+1, state)
	}
	o.log.Debug("finished forward propagation", zap.Int("objective", iObj))
	return seq, nil
}

// backwardPropagation propagates the normalized boundary state chi of
// objective iObj backward over the entire time grid, storing the adjoint
// state at every grid point. The generator is evaluated with the Conjugate
// flag set; taking the adjoint is the propagator's job.
func (o *optimization) backwardPropagation(iObj int, chi State, pulses []Pulse) (StateSequence, error) {
	o.log.Debug("started backward propagation", zap.Int("objective", iObj))
	obj := o.objectives[iObj]
	mapping := o.mapping[iObj]
	seq := o.storage.Allocate(len(o.tlist))
	state := chi
	seq.Set(len(o.tlist)-1, state)
	for timeIndex := o.tlist.Intervals() - 1; timeIndex >= 0; timeIndex-- {
		gen := obj.Generator.evaluate(pulses, mapping[0], timeIndex, true)
		diss := evaluateDissipation(obj, pulses, mapping, timeIndex, true)
		var err error
		state, err = o.propagator.Propagate(gen, state, o.tlist.Dt(timeIndex), diss, true)
		if err != nil {
			return nil, err
		}
		seq.Set(timeIndex, state)
	}
	o.log.Debug("finished backward propagation", zap.Int("objective", iObj))
	return seq, nil
}

// forwardStep advances objective iObj by the single interval timeIndex,
// reading the state at timeIndex from forward and returning the state at
// timeIndex+1.
func (o *optimization) forwardStep(iObj int, forward []StateSequence, pulses []Pulse, timeIndex int) (State, error) {
	obj := o.objectives[iObj]
	mapping := o.mapping[iObj]
	state := forward[iObj].Get(timeIndex)
	gen := obj.Generator.evaluate(pulses, mapping[0], timeIndex, false)
	diss := evaluateDissipation(obj, pulses, mapping, timeIndex, false)
	return o.propagator.Propagate(gen, state, o.tlist.Dt(timeIndex), diss, false)
}

func evaluateDissipation(obj *Objective, pulses []Pulse, mapping ControlsMapping, timeIndex int, conjugate bool) []EvaluatedGenerator {
	if len(obj.Dissipation) == 0 {
		return nil
	}
	diss := make([]EvaluatedGenerator, len(obj.Dissipation))
	for k, d := range obj.Dissipation {
		diss[k] = d.evaluate(pulses, mapping[k+1], timeIndex, conjugate)
	}
	return diss
}
