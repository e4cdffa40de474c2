package krotov

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

const defaultIterStop = 5000

// optimization holds the validated, iteration-invariant pieces of a single
// optimization run.
type optimization struct {
	cfg         Config
	log         *zap.Logger
	objectives  []*Objective
	adjoint     []*Objective
	tlist       TimeGrid
	propagator  Propagator
	mapping     []ControlsMapping
	lambdaVals  []float64
	shapeArrays []Pulse
	mu          Mu
	storage     Storage
	pmap        ParallelMap
	secondOrder bool
}

// Optimize runs Krotov's method on the configured objectives until the
// convergence check stops it or the iteration limit is reached.
//
// Configuration problems (missing pulse options, invalid shapes, a
// requested state-dependent constraint) are reported before any propagation
// runs. Errors from the collaborators (propagator, mu, sigma, hooks,
// convergence check) abort the optimization immediately and propagate to
// the caller; no partial result is returned. The context is only consulted
// between outer iterations: a single propagation call is never interrupted.
func Optimize(ctx context.Context, cfg Config) (*Result, error) {
	o, setup, err := newOptimization(cfg)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, setup)
}

func newOptimization(cfg Config) (*optimization, *controlSetup, error) {
	if len(cfg.Objectives) == 0 {
		return nil, nil, configError("at least one objective is required")
	}
	for i, obj := range cfg.Objectives {
		if obj == nil {
			return nil, nil, configError("objective %d is nil", i)
		}
		if len(obj.Generator) == 0 {
			return nil, nil, configError("objective %d has an empty generator", i)
		}
		if obj.InitialState == nil {
			return nil, nil, configError("objective %d has no initial state", i)
		}
	}
	if err := cfg.Tlist.Validate(); err != nil {
		return nil, nil, err
	}
	if cfg.Propagator == nil {
		return nil, nil, configError("a propagator is required")
	}
	if cfg.ChiConstructor == nil {
		return nil, nil, configError("a chi constructor is required")
	}
	if cfg.StateConstraint != nil {
		return nil, nil, configError("state-dependent constraints are not implemented")
	}

	o := &optimization{
		cfg:         cfg,
		log:         cfg.Logger,
		objectives:  cfg.Objectives,
		tlist:       cfg.Tlist,
		propagator:  cfg.Propagator,
		mu:          cfg.Mu,
		storage:     cfg.Storage,
		pmap:        cfg.ParallelMap,
		secondOrder: cfg.Sigma != nil,
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.mu == nil {
		o.mu = DerivativeWrtPulse
	}
	if o.storage == nil {
		o.storage = MemoryStorage{}
	}
	if o.pmap == nil {
		o.pmap = SerialMap
	}
	if o.cfg.IterStop == 0 {
		o.cfg.IterStop = defaultIterStop
	}

	setup, err := initializeControls(cfg.Objectives, cfg.PulseOptions, cfg.Tlist)
	if err != nil {
		return nil, nil, err
	}
	o.mapping = setup.mapping
	o.lambdaVals = setup.lambdaVals
	o.shapeArrays = setup.shapeArrays

	o.adjoint = make([]*Objective, len(cfg.Objectives))
	for i, obj := range cfg.Objectives {
		o.adjoint[i] = obj.Adjoint()
	}
	return o, setup, nil
}

func (o *optimization) run(ctx context.Context, setup *controlSetup) (*Result, error) {
	o.log.Info("initializing optimization with Krotov's method",
		zap.Int("objectives", len(o.objectives)),
		zap.Int("time_points", len(o.tlist)),
		zap.Int("controls", len(setup.guessPulses)),
		zap.Bool("second_order", o.secondOrder),
	)

	result := newResult(o.tlist, o.objectives)
	result.GuessControls = setup.guessControls
	result.ControlsMapping = setup.mapping

	guessPulses := setup.guessPulses

	// Initial forward propagation of all objectives under the guess pulses.
	tic := time.Now()
	forward := make([]StateSequence, len(o.objectives))
	err := o.pmap(len(o.objectives), func(i int) error {
		seq, err := o.forwardPropagation(i, guessPulses)
		if err != nil {
			return err
		}
		forward[i] = seq
		return nil
	})
	if err != nil {
		return nil, err
	}
	toc := time.Now()

	var forward0 []StateSequence
	if o.secondOrder {
		forward0 = forward // Δϕ ≡ 0 for iteration 0
	}

	fwStatesT := finalStates(forward)
	tauVals := o.overlaps(fwStatesT)

	info, err := o.runHooks(&IterationData{
		Iteration:         o.cfg.IterStart,
		Objectives:        o.objectives,
		AdjointObjectives: o.adjoint,
		BackwardStates:    nil,
		ForwardStates:     forward,
		FwStatesT:         fwStatesT,
		OptimizedPulses:   guessPulses,
		LambdaVals:        o.lambdaVals,
		ShapeArrays:       o.shapeArrays,
		TauVals:           tauVals,
		StartTime:         tic,
		StopTime:          toc,
	})
	if err != nil {
		return nil, err
	}

	result.Iters = append(result.Iters, o.cfg.IterStart)
	result.IterSeconds = append(result.IterSeconds, toc.Sub(tic).Seconds())
	result.InfoVals = append(result.InfoVals, info)
	result.TauVals = append(result.TauVals, tauVals)
	if o.cfg.StoreAllPulses {
		result.AllPulses = append(result.AllPulses, copyPulses(guessPulses))
	}
	result.States = fwStatesT

	optimized := guessPulses
	converged := false

	for iteration := o.cfg.IterStart + 1; iteration <= o.cfg.IterStop; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o.log.Info("started krotov iteration", zap.Int("iteration", iteration))
		tic = time.Now()

		// Boundary condition for the backward propagation; this is where
		// the functional enters the optimization.
		chiStates, err := o.cfg.ChiConstructor(fwStatesT, o.objectives, result.TauVals)
		if err != nil {
			return nil, err
		}
		// Normalizing χ improves numerical stability; the norm is
		// reintroduced when accumulating Δϵ, so the update is unchanged.
		chiNorms := make([]float64, len(chiStates))
		for k, chi := range chiStates {
			nrm := chi.Norm()
			if nrm == 0 {
				return nil, NewErrorf("boundary state %d has zero norm", k).WithComponent("chi")
			}
			chiNorms[k] = nrm
			chiStates[k] = chi.Scale(complex(1.0/nrm, 0))
		}

		backward := make([]StateSequence, len(o.objectives))
		err = o.pmap(len(o.objectives), func(i int) error {
			seq, err := o.backwardPropagation(i, chiStates[i], guessPulses)
			if err != nil {
				return err
			}
			backward[i] = seq
			return nil
		})
		if err != nil {
			return nil, err
		}

		o.log.Debug("started forward propagation/pulse update")
		upd := o.newUpdate(guessPulses, backward, chiNorms, forward0)
		if err := upd.run(); err != nil {
			return nil, err
		}
		o.log.Debug("finished forward propagation/pulse update")

		forward = upd.forward
		optimized = upd.optimized
		fwStatesT = finalStates(forward)
		tauVals = o.overlaps(fwStatesT)
		toc = time.Now()

		info, err = o.runHooks(&IterationData{
			Iteration:         iteration,
			Objectives:        o.objectives,
			AdjointObjectives: o.adjoint,
			BackwardStates:    backward,
			ForwardStates:     forward,
			FwStatesT:         fwStatesT,
			OptimizedPulses:   optimized,
			LambdaVals:        o.lambdaVals,
			ShapeArrays:       o.shapeArrays,
			TauVals:           tauVals,
			StartTime:         tic,
			StopTime:          toc,
		})
		if err != nil {
			return nil, err
		}

		result.Iters = append(result.Iters, iteration)
		result.IterSeconds = append(result.IterSeconds, toc.Sub(tic).Seconds())
		result.InfoVals = append(result.InfoVals, info)
		result.TauVals = append(result.TauVals, tauVals)
		if o.cfg.StoreAllPulses {
			result.AllPulses = append(result.AllPulses, copyPulses(optimized))
		}
		result.States = fwStatesT

		var verdict Verdict
		if o.cfg.CheckConvergence != nil {
			verdict = o.cfg.CheckConvergence(result)
		}
		if verdict.Converged {
			result.Message = "Reached convergence"
			if verdict.Message != "" {
				result.Message += ": " + verdict.Message
			}
			result.Converged = true
			converged = true
			o.log.Info("finished krotov iteration", zap.Int("iteration", iteration))
			break
		}

		// The optimized pulses become the guess for the next iteration.
		guessPulses = optimized

		if o.secondOrder {
			o.cfg.Sigma.Refresh(&RefreshData{
				ForwardStates:   forward,
				ForwardStates0:  forward0,
				ChiStates:       chiStates,
				ChiNorms:        chiNorms,
				OptimizedPulses: optimized,
				GuessPulses:     guessPulses,
				Objectives:      o.objectives,
				Result:          result,
			})
			forward0 = forward
		}
		o.log.Info("finished krotov iteration", zap.Int("iteration", iteration))
	}

	if !converged {
		result.Message = fmt.Sprintf("Reached %d iterations", o.cfg.IterStop)
	}
	result.EndTime = time.Now()
	result.OptimizedControls = make([][]float64, len(optimized))
	for i, pulse := range optimized {
		result.OptimizedControls[i] = PulseOntoTimeGrid(pulse)
	}
	o.log.Info("optimization finished", zap.String("message", result.Message))
	return result, nil
}

// runHooks runs the parameter mutators in order, then the info hook. All
// hooks of one iteration share a fresh SharedData map.
func (o *optimization) runHooks(d *IterationData) (interface{}, error) {
	d.SharedData = make(map[string]interface{})
	for _, modify := range o.cfg.ModifyParams {
		if err := modify(d); err != nil {
			return nil, err
		}
	}
	if o.cfg.InfoHook == nil {
		return nil, nil
	}
	return o.cfg.InfoHook(d)
}

// overlaps computes τ_k = ⟨ψ_k(T)|φ_k⟩ for every objective; NaN for
// objectives without a target.
func (o *optimization) overlaps(fwStatesT []State) []complex128 {
	taus := make([]complex128, len(o.objectives))
	for k, obj := range o.objectives {
		if obj.Target == nil {
			taus[k] = complex(math.NaN(), math.NaN())
			continue
		}
		taus[k] = fwStatesT[k].Overlap(obj.Target)
	}
	return taus
}

// update is the iteration-scoped mutable state of the interleaved
// pulse-update / forward-propagation sweep: the optimized pulses under
// construction, the partially propagated forward trajectories, and the
// update accumulators.
type update struct {
	o         *optimization
	guess     []Pulse
	optimized []Pulse
	backward  []StateSequence
	chiNorms  []float64
	forward   []StateSequence
	forward0  []StateSequence // unperturbed reference, second order only
	deltaEps  [][]complex128
	deltaPhis []State // second order only
}

func (o *optimization) newUpdate(guess []Pulse, backward []StateSequence, chiNorms []float64, forward0 []StateSequence) *update {
	u := &update{
		o:         o,
		guess:     guess,
		optimized: copyPulses(guess),
		backward:  backward,
		chiNorms:  chiNorms,
	}
	u.forward = make([]StateSequence, len(o.objectives))
	for k, obj := range o.objectives {
		seq := o.storage.Allocate(len(o.tlist))
		seq.Set(0, obj.InitialState)
		u.forward[k] = seq
	}
	u.deltaEps = make([][]complex128, len(guess))
	for i := range u.deltaEps {
		u.deltaEps[i] = make([]complex128, o.tlist.Intervals())
	}
	if o.secondOrder {
		u.forward0 = forward0
		// The update of the first interval uses the states at t=0, where
		// the perturbed and unperturbed trajectories coincide: Δϕ(0) = 0.
		u.deltaPhis = make([]State, len(o.objectives))
		for k, obj := range o.objectives {
			u.deltaPhis[k] = obj.InitialState.Zero()
		}
	}
	return u
}

func (u *update) run() error {
	for timeIndex := 0; timeIndex < u.o.tlist.Intervals(); timeIndex++ {
		if err := u.step(timeIndex); err != nil {
			return err
		}
	}
	return nil
}

// step updates every pulse at the given time interval and then advances
// every objective across that interval with the just-updated pulses. The
// strict interval ordering is load-bearing: the update at interval i sees
// the forward states produced by the already-updated pulses of all prior
// intervals, which is the mechanism behind the monotonic-improvement
// guarantee of Krotov's method.
func (u *update) step(timeIndex int) error {
	o := u.o
	var sigma float64
	if o.secondOrder {
		sigma = o.cfg.Sigma.Value(o.tlist.Midpoint(timeIndex))
	}
	for iPulse := range u.guess {
		for iObj := range o.objectives {
			muOp := o.mu(o.objectives, iObj, u.guess, o.mapping, iPulse, timeIndex)
			if muOp == nil {
				continue
			}
			chi := u.backward[iObj].Get(timeIndex)
			psi := u.forward[iObj].Get(timeIndex)
			muPsi := muOp.Apply(psi)
			upd := chi.Overlap(muPsi) * complex(u.chiNorms[iObj], 0)
			if o.secondOrder {
				upd += complex(0.5*sigma, 0) * u.deltaPhis[iObj].Overlap(muPsi)
			}
			u.deltaEps[iPulse][timeIndex] += upd
		}
		s := o.shapeArrays[iPulse][timeIndex]
		lambdaA := o.lambdaVals[iPulse]
		u.optimized[iPulse][timeIndex] += (s / lambdaA) * imag(u.deltaEps[iPulse][timeIndex])
	}

	newStates := make([]State, len(o.objectives))
	err := o.pmap(len(o.objectives), func(i int) error {
		state, err := o.forwardStep(i, u.forward, u.optimized, timeIndex)
		if err != nil {
			return err
		}
		newStates[i] = state
		return nil
	})
	if err != nil {
		return err
	}
	if o.secondOrder {
		// Δϕ(t+dt), used for the update in the next interval.
		for k := range newStates {
			u.deltaPhis[k] = newStates[k].Sub(u.forward0[k].Get(timeIndex + 1))
		}
	}
	for k, state := range newStates {
		u.forward[k].Set(timeIndex+1, state)
	}
	return nil
}

func copyPulses(pulses []Pulse) []Pulse {
	out := make([]Pulse, len(pulses))
	for i, p := range pulses {
		out[i] = make(Pulse, len(p))
		copy(out[i], p)
	}
	return out
}

func finalStates(forward []StateSequence) []State {
	states := make([]State, len(forward))
	for i, seq := range forward {
		states[i] = seq.Get(seq.Len() - 1)
	}
	return states
}
