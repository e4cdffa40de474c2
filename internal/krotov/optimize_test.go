package krotov_test

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willst/krotov/internal/dense"
	"github.com/willst/krotov/internal/krotov"
)

// qubitConfig sets up the canonical state-to-state problem: drive a qubit
// with H(t) = ω/2·σz + ε(t)·σx from |0⟩ to |1⟩, starting from a
// Blackman-shaped guess pulse.
func qubitConfig(guessAmplitude, lambdaA float64, nPoints, iterStop int) (krotov.Config, *krotov.FuncControl) {
	const tFinal = 5.0
	blackman := krotov.Blackman(0, tFinal)
	eps := krotov.NewFuncControl(func(t float64) float64 {
		return guessAmplitude * blackman(t)
	})

	halfOmegaZ := dense.NewMatrix(2, []complex128{0.5, 0, 0, -0.5})
	objective := &krotov.Objective{
		Generator: krotov.Generator{
			{Op: halfOmegaZ},
			{Op: dense.PauliX(), Control: eps},
		},
		InitialState: dense.BasisState(2, 0),
		Target:       dense.BasisState(2, 1),
	}

	return krotov.Config{
		Objectives: []*krotov.Objective{objective},
		PulseOptions: map[krotov.Control]krotov.PulseOptions{
			eps: {LambdaA: lambdaA, Shape: krotov.FlatTop(0, tFinal, 0.5, 0.5)},
		},
		Tlist:          krotov.UniformTimeGrid(0, tFinal, nPoints),
		Propagator:     dense.ExpmPropagator{},
		ChiConstructor: krotov.ChiSS,
		IterStop:       iterStop,
	}, eps
}

func infidelities(r *krotov.Result) []float64 {
	out := make([]float64, len(r.TauVals))
	for i, taus := range r.TauVals {
		sum := 0.0
		for _, tau := range taus {
			sum += real(tau)*real(tau) + imag(tau)*imag(tau)
		}
		out[i] = 1 - sum/float64(len(taus))
	}
	return out
}

func TestIterationZeroReportsGuess(t *testing.T) {
	cfg, _ := qubitConfig(1.0, 5.0, 20, 2)

	var iterations []int
	var backwardAtZero bool
	cfg.InfoHook = func(d *krotov.IterationData) (interface{}, error) {
		iterations = append(iterations, d.Iteration)
		if d.Iteration == 0 {
			backwardAtZero = d.BackwardStates != nil
		}
		return d.Iteration, nil
	}

	result, err := krotov.Optimize(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, iterations, "info hook must see iteration 0 first")
	assert.False(t, backwardAtZero, "iteration 0 has no backward states")
	assert.Equal(t, []int{0, 1, 2}, result.Iters)
	assert.Equal(t, 2, result.Iterations())
	assert.Len(t, result.InfoVals, 3)
	assert.Equal(t, 0, result.InfoVals[0])
}

func TestIntervalSequentialUpdate(t *testing.T) {
	cfg, _ := qubitConfig(1.0, 5.0, 4, 1)

	var events []string
	inner := dense.ExpmPropagator{}
	cfg.Propagator = krotov.PropagatorFunc(func(gen krotov.EvaluatedGenerator, state krotov.State, dt float64, diss []krotov.EvaluatedGenerator, backwards bool) (krotov.State, error) {
		if backwards {
			events = append(events, "bw")
		} else {
			events = append(events, "fw")
		}
		return inner.Propagate(gen, state, dt, diss, backwards)
	})
	cfg.Mu = func(objectives []*krotov.Objective, iObj int, pulses []krotov.Pulse, mapping []krotov.ControlsMapping, iPulse, timeIndex int) krotov.Operator {
		events = append(events, fmt.Sprintf("mu%d", timeIndex))
		return krotov.DerivativeWrtPulse(objectives, iObj, pulses, mapping, iPulse, timeIndex)
	}

	_, err := krotov.Optimize(context.Background(), cfg)
	require.NoError(t, err)

	// Initial forward propagation, then backward propagation, then the
	// strictly interval-ordered update/propagate sweep.
	want := []string{
		"fw", "fw", "fw",
		"bw", "bw", "bw",
		"mu0", "fw", "mu1", "fw", "mu2", "fw",
	}
	assert.Equal(t, want, events)
}

func TestZeroShapeFreezesPulse(t *testing.T) {
	cfg, eps := qubitConfig(1.0, 5.0, 30, 3)
	cfg.PulseOptions[eps] = krotov.PulseOptions{LambdaA: 5.0, Shape: krotov.ZeroShape}
	cfg.StoreAllPulses = true

	result, err := krotov.Optimize(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, result.AllPulses, 4)
	for i := 1; i < len(result.AllPulses); i++ {
		assert.Equal(t, result.AllPulses[0], result.AllPulses[i],
			"a zero update shape must leave the pulse untouched (iteration %d)", i)
	}
}

func TestMonotonicImprovement(t *testing.T) {
	cfg, _ := qubitConfig(1.0, 5.0, 50, 8)

	result, err := krotov.Optimize(context.Background(), cfg)
	require.NoError(t, err)

	errs := infidelities(result)
	require.Len(t, errs, 9)
	for i := 1; i < len(errs); i++ {
		assert.LessOrEqual(t, errs[i], errs[i-1]+1e-9,
			"infidelity must not increase (iteration %d)", i)
	}
	assert.Less(t, errs[len(errs)-1], errs[0], "optimization should make progress")
}

func TestQubitFlipOptimization(t *testing.T) {
	cfg, _ := qubitConfig(1.0, 1.0, 100, 20)
	cfg.StoreAllPulses = true
	cfg.CheckConvergence = krotov.ValueBelow(1e-3, krotov.AverageInfidelity, "average infidelity")

	result, err := krotov.Optimize(context.Background(), cfg)
	require.NoError(t, err)

	assert.Contains(t, result.Message, "Reached")
	require.NotEmpty(t, result.TauVals)

	tau0 := result.TauVals[0][0]
	tauEnd := result.LastTau()[0]
	assert.Greater(t, cmplx.Abs(tauEnd), cmplx.Abs(tau0),
		"final overlap with the target should exceed the guess overlap")

	require.Len(t, result.OptimizedControls, 1)
	assert.Len(t, result.OptimizedControls[0], 100)
	assert.Len(t, result.AllPulses, len(result.Iters))
	for _, pulses := range result.AllPulses {
		require.Len(t, pulses, 1)
		assert.Len(t, pulses[0], 99)
	}

	// Propagation is unitary; the final state stays normalized.
	require.Len(t, result.States, 1)
	assert.InDelta(t, 1.0, result.States[0].Norm(), 1e-9)

	if result.Converged {
		assert.Less(t, krotov.AverageInfidelity(result), 1e-3)
	}
}

func TestConfigErrorsBeforePropagation(t *testing.T) {
	propagations := 0
	counting := krotov.PropagatorFunc(func(gen krotov.EvaluatedGenerator, state krotov.State, dt float64, diss []krotov.EvaluatedGenerator, backwards bool) (krotov.State, error) {
		propagations++
		return dense.ExpmPropagator{}.Propagate(gen, state, dt, diss, backwards)
	})

	tests := []struct {
		name   string
		mutate func(cfg *krotov.Config)
	}{
		{"no objectives", func(cfg *krotov.Config) { cfg.Objectives = nil }},
		{"no propagator", func(cfg *krotov.Config) { cfg.Propagator = nil }},
		{"no chi constructor", func(cfg *krotov.Config) { cfg.ChiConstructor = nil }},
		{"missing pulse options", func(cfg *krotov.Config) { cfg.PulseOptions = nil }},
		{"bad time grid", func(cfg *krotov.Config) { cfg.Tlist = krotov.TimeGrid{1, 0} }},
		{"state constraint", func(cfg *krotov.Config) {
			cfg.StateConstraint = func(objectives []*krotov.Objective, forward []krotov.StateSequence) error {
				return nil
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _ := qubitConfig(1.0, 5.0, 10, 1)
			if cfg.Propagator != nil {
				cfg.Propagator = counting
			}
			tt.mutate(&cfg)

			result, err := krotov.Optimize(context.Background(), cfg)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, krotov.IsConfigError(err), "expected a configuration error, got %v", err)
			assert.Zero(t, propagations, "no propagation may run on invalid configuration")
		})
	}
}

func TestContextCancellation(t *testing.T) {
	cfg, _ := qubitConfig(1.0, 5.0, 20, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := krotov.Optimize(ctx, cfg)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}

// zeroSigma is a second-order contribution that is identically zero.
type zeroSigma struct {
	refreshes int
}

func (s *zeroSigma) Value(t float64) float64 { return 0 }

func (s *zeroSigma) Refresh(d *krotov.RefreshData) { s.refreshes++ }

func TestSecondOrderWithZeroSigma(t *testing.T) {
	first, _ := qubitConfig(1.0, 5.0, 30, 3)
	firstResult, err := krotov.Optimize(context.Background(), first)
	require.NoError(t, err)

	second, _ := qubitConfig(1.0, 5.0, 30, 3)
	sigma := &zeroSigma{}
	second.Sigma = sigma
	secondResult, err := krotov.Optimize(context.Background(), second)
	require.NoError(t, err)

	// A vanishing σ must reduce the second-order update to the first-order
	// one.
	require.Len(t, secondResult.OptimizedControls, 1)
	for i := range firstResult.OptimizedControls[0] {
		assert.InDelta(t, firstResult.OptimizedControls[0][i], secondResult.OptimizedControls[0][i], 1e-14)
	}
	assert.Equal(t, 3, sigma.refreshes, "sigma must be refreshed after every iteration")
}

func TestModifyParamsRunInOrder(t *testing.T) {
	cfg, _ := qubitConfig(1.0, 5.0, 10, 2)

	var order []string
	cfg.ModifyParams = []krotov.ModifyParams{
		func(d *krotov.IterationData) error {
			order = append(order, "first")
			d.SharedData["marker"] = d.Iteration
			return nil
		},
		func(d *krotov.IterationData) error {
			order = append(order, "second")
			return nil
		},
	}
	cfg.InfoHook = func(d *krotov.IterationData) (interface{}, error) {
		order = append(order, "hook")
		marker, ok := d.SharedData["marker"]
		if !ok || marker != d.Iteration {
			return nil, fmt.Errorf("shared data not visible to the info hook")
		}
		return nil, nil
	}

	_, err := krotov.Optimize(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"first", "second", "hook",
		"first", "second", "hook",
		"first", "second", "hook",
	}, order)
}

func TestLambdaAScalesUpdate(t *testing.T) {
	small, _ := qubitConfig(1.0, 5.0, 30, 1)
	smallResult, err := krotov.Optimize(context.Background(), small)
	require.NoError(t, err)

	large, _ := qubitConfig(1.0, 50.0, 30, 1)
	largeResult, err := krotov.Optimize(context.Background(), large)
	require.NoError(t, err)

	// Larger λₐ means smaller pulse changes.
	change := func(r *krotov.Result) float64 {
		sum := 0.0
		for i, v := range r.OptimizedControls[0] {
			sum += math.Abs(v - r.GuessControls[0][i])
		}
		return sum
	}
	assert.Greater(t, change(smallResult), change(largeResult))
}

func TestRK4PropagatorOptimization(t *testing.T) {
	cfg, _ := qubitConfig(1.0, 5.0, 50, 3)
	cfg.Propagator = dense.RK4Propagator{Substeps: 4}

	result, err := krotov.Optimize(context.Background(), cfg)
	require.NoError(t, err)

	errs := infidelities(result)
	assert.Less(t, errs[len(errs)-1], errs[0])
}

func TestConcurrentMapMatchesSerial(t *testing.T) {
	serial, _ := qubitConfig(1.0, 5.0, 30, 2)
	serialResult, err := krotov.Optimize(context.Background(), serial)
	require.NoError(t, err)

	parallel, _ := qubitConfig(1.0, 5.0, 30, 2)
	parallel.ParallelMap = krotov.ConcurrentMap
	parallelResult, err := krotov.Optimize(context.Background(), parallel)
	require.NoError(t, err)

	assert.Equal(t, serialResult.OptimizedControls, parallelResult.OptimizedControls)
}
