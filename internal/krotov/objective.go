package krotov

// Term is one additive term of a generator: an operator with an optional
// control coefficient. A term with a nil Control is static (coefficient 1).
type Term struct {
	Op      Operator
	Control Control
}

// Generator is the equation-of-motion operator of an objective, written as
// a sum of terms, some of which may be scaled by time-dependent controls.
type Generator []Term

// Objective describes a single control problem: the dynamics, the initial
// state, and the target. Objectives are read-only throughout an
// optimization.
type Objective struct {
	// Generator is the equation-of-motion generator, possibly
	// control-dependent.
	Generator Generator
	// Dissipation holds additional (Lindblad-style) terms of the equation
	// of motion, each possibly control-dependent.
	Dissipation []Generator
	// InitialState is the state at the first time-grid point.
	InitialState State
	// Target is the state the optimization steers toward. It may be nil if
	// the functional encoded in the chi constructor does not use targets;
	// overlap values are then NaN.
	Target State
}

// Adjoint returns the adjoint variant of the objective, with every operator
// replaced by its Hermitian adjoint. The result is independent of the
// original. The optimization hands adjoint objectives to the iteration
// hooks; the backward propagation itself conjugates at the propagator
// level via the evaluated generator's Conjugate flag.
func (o *Objective) Adjoint() *Objective {
	adj := &Objective{
		Generator:    o.Generator.adjoint(),
		InitialState: o.InitialState,
		Target:       o.Target,
	}
	if len(o.Dissipation) > 0 {
		adj.Dissipation = make([]Generator, len(o.Dissipation))
		for i, d := range o.Dissipation {
			adj.Dissipation[i] = d.adjoint()
		}
	}
	return adj
}

func (g Generator) adjoint() Generator {
	out := make(Generator, len(g))
	for i, term := range g {
		out[i] = Term{Op: term.Op.Dagger(), Control: term.Control}
	}
	return out
}

// EvaluatedTerm is a generator term with its control replaced by a concrete
// pulse value.
type EvaluatedTerm struct {
	Op    Operator
	Coeff float64
}

// EvaluatedGenerator is a generator with all pulse values substituted for a
// specific time interval, ready to be handed to a propagator. The Conjugate
// flag marks adjoint (backward-in-time) evolution; pulse values are real,
// so the coefficients themselves are unchanged.
type EvaluatedGenerator struct {
	Terms     []EvaluatedTerm
	Conjugate bool
}

// evaluate substitutes the pulse value of interval timeIndex for every
// control-dependent term. termControls maps term positions to control
// indices (−1 for static terms), as built by extractControlsMapping.
func (g Generator) evaluate(pulses []Pulse, termControls []int, timeIndex int, conjugate bool) EvaluatedGenerator {
	terms := make([]EvaluatedTerm, len(g))
	for i, term := range g {
		coeff := 1.0
		if idx := termControls[i]; idx >= 0 {
			coeff = pulses[idx][timeIndex]
		}
		terms[i] = EvaluatedTerm{Op: term.Op, Coeff: coeff}
	}
	return EvaluatedGenerator{Terms: terms, Conjugate: conjugate}
}
