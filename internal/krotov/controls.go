package krotov

import (
	"gonum.org/v1/gonum/floats"
)

// shapeMax is the largest accepted discretized shape value. Values slightly
// above 1 are tolerated to absorb rounding; anything larger would silently
// cancel against λₐ.
const shapeMax = 1.01

// ControlsMapping locates, for one objective, the control behind every
// generator term: entry 0 covers the generator, entry k+1 the k-th
// dissipation term. Each inner slice maps a term position to a control
// index, with −1 marking static terms.
type ControlsMapping [][]int

// extractControls collects the distinct control handles referenced across
// all objectives, in order of first appearance.
func extractControls(objectives []*Objective) []Control {
	var controls []Control
	seen := make(map[Control]bool)
	add := func(g Generator) {
		for _, term := range g {
			if term.Control == nil || seen[term.Control] {
				continue
			}
			seen[term.Control] = true
			controls = append(controls, term.Control)
		}
	}
	for _, obj := range objectives {
		add(obj.Generator)
		for _, d := range obj.Dissipation {
			add(d)
		}
	}
	return controls
}

// extractControlsMapping builds the term-position → control-index mapping
// for every objective.
func extractControlsMapping(objectives []*Objective, controls []Control) []ControlsMapping {
	index := make(map[Control]int, len(controls))
	for i, c := range controls {
		index[c] = i
	}
	mapOne := func(g Generator) []int {
		m := make([]int, len(g))
		for i, term := range g {
			if term.Control == nil {
				m[i] = -1
			} else {
				m[i] = index[term.Control]
			}
		}
		return m
	}
	mappings := make([]ControlsMapping, len(objectives))
	for k, obj := range objectives {
		mapping := make(ControlsMapping, 0, 1+len(obj.Dissipation))
		mapping = append(mapping, mapOne(obj.Generator))
		for _, d := range obj.Dissipation {
			mapping = append(mapping, mapOne(d))
		}
		mappings[k] = mapping
	}
	return mappings
}

// Discretize samples a control at every point of the time grid. Array
// controls must already have exactly one value per grid point.
func Discretize(c Control, tlist TimeGrid) ([]float64, error) {
	switch ctl := c.(type) {
	case *FuncControl:
		if ctl.F == nil {
			return nil, configError("function control has a nil function")
		}
		points := make([]float64, len(tlist))
		for i, t := range tlist {
			points[i] = ctl.F(t)
		}
		return points, nil
	case *ArrayControl:
		if len(ctl.Values) != len(tlist) {
			return nil, configError(
				"array control has %d values, but the time grid has %d points",
				len(ctl.Values), len(tlist))
		}
		points := make([]float64, len(ctl.Values))
		copy(points, ctl.Values)
		return points, nil
	default:
		return nil, configError("unknown control type %T", c)
	}
}

// ControlOntoInterval converts point-valued samples into interval-valued
// pulse samples by averaging adjacent points.
func ControlOntoInterval(points []float64) Pulse {
	pulse := make(Pulse, len(points)-1)
	for i := range pulse {
		pulse[i] = 0.5 * (points[i] + points[i+1])
	}
	return pulse
}

// PulseOntoTimeGrid converts interval-valued pulse samples back onto the
// time-grid points. It is the inverse of ControlOntoInterval in the sense
// that pulses which came from piecewise-constant controls reproduce the
// original point values.
func PulseOntoTimeGrid(pulse Pulse) []float64 {
	points := make([]float64, len(pulse)+1)
	points[0] = pulse[0]
	for i := 1; i < len(pulse); i++ {
		points[i] = 0.5 * (pulse[i-1] + pulse[i])
	}
	points[len(pulse)] = pulse[len(pulse)-1]
	return points
}

// controlSetup is the discretized form of the controls and their options,
// produced once at the start of an optimization.
type controlSetup struct {
	controls      []Control
	guessControls [][]float64
	guessPulses   []Pulse
	mapping       []ControlsMapping
	lambdaVals    []float64
	shapeArrays   []Pulse
}

// initializeControls extracts and discretizes the guess controls from the
// objectives and validates the per-control options. All configuration
// errors surface here, before any propagation runs.
func initializeControls(objectives []*Objective, options map[Control]PulseOptions, tlist TimeGrid) (*controlSetup, error) {
	controls := extractControls(objectives)
	if len(controls) == 0 {
		return nil, configError("objectives reference no controls; nothing to optimize")
	}
	setup := &controlSetup{
		controls:      controls,
		guessControls: make([][]float64, len(controls)),
		guessPulses:   make([]Pulse, len(controls)),
		lambdaVals:    make([]float64, len(controls)),
		shapeArrays:   make([]Pulse, len(controls)),
		mapping:       extractControlsMapping(objectives, controls),
	}
	for i, control := range controls {
		opts, ok := options[control]
		if !ok {
			return nil, configError("pulse options missing for control %d", i)
		}
		if opts.LambdaA <= 0 {
			return nil, configError(
				"pulse options for control %d must set a positive lambda_a", i)
		}
		if opts.Shape == nil {
			return nil, configError(
				"pulse options for control %d must set a shape (use OneShape or ZeroShape for a constant shape)", i)
		}
		points, err := Discretize(control, tlist)
		if err != nil {
			return nil, err
		}
		setup.guessControls[i] = points
		setup.guessPulses[i] = ControlOntoInterval(points)
		setup.lambdaVals[i] = opts.LambdaA

		shapePoints := make([]float64, len(tlist))
		for j, t := range tlist {
			shapePoints[j] = opts.Shape(t)
		}
		shape := ControlOntoInterval(shapePoints)
		if floats.Min(shape) < 0 || floats.Max(shape) > shapeMax {
			return nil, configError(
				"update shape for control %d must have values in the range [0, 1]", i)
		}
		setup.shapeArrays[i] = shape
	}
	return setup, nil
}
